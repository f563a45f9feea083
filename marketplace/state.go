// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/acurast/acurastvm/reputation"
	"github.com/acurast/acurastvm/types"
)

var (
	jobPrefix        = []byte("job")
	advertPrefix     = []byte("advertisement")
	capacityPrefix   = []byte("capacity")
	assignmentPrefix = []byte("assignment")
	reputationPrefix = []byte("reputation")
	averagePrefix    = []byte("rewardAverage")
	heartbeatPrefix  = []byte("heartbeat")
	envPrefix        = []byte("environment")
	singletonPrefix  = []byte("singleton")

	localSequenceKey = []byte("localJobSequence")
)

// state groups the storage maps of the marketplace.
type state struct {
	jobDB        database.Database
	advertDB     database.Database
	capacityDB   database.Database
	assignmentDB database.Database
	reputationDB database.Database
	averageDB    database.Database
	heartbeatDB  database.Database
	envDB        database.Database
	singletonDB  database.Database
}

func newState(db database.Database) state {
	return state{
		jobDB:        prefixdb.New(jobPrefix, db),
		advertDB:     prefixdb.New(advertPrefix, db),
		capacityDB:   prefixdb.New(capacityPrefix, db),
		assignmentDB: prefixdb.New(assignmentPrefix, db),
		reputationDB: prefixdb.New(reputationPrefix, db),
		averageDB:    prefixdb.New(averagePrefix, db),
		heartbeatDB:  prefixdb.New(heartbeatPrefix, db),
		envDB:        prefixdb.New(envPrefix, db),
		singletonDB:  prefixdb.New(singletonPrefix, db),
	}
}

func getRecord(db database.KeyValueReader, key []byte, dst interface{}) (bool, error) {
	bytes, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := Codec.Unmarshal(bytes, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return true, nil
}

func putRecord(db database.KeyValueWriter, key []byte, src interface{}) error {
	bytes, err := Codec.Marshal(CodecVersion, src)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return db.Put(key, bytes)
}

func (s *state) getJob(id types.JobID) (*Job, bool, error) {
	job := &Job{}
	found, err := getRecord(s.jobDB, id.Key(), job)
	return job, found, err
}

func (s *state) putJob(id types.JobID, job *Job) error {
	return putRecord(s.jobDB, id.Key(), job)
}

func (s *state) deleteJob(id types.JobID) error {
	return s.jobDB.Delete(id.Key())
}

func (s *state) nextLocalSequence() (types.JobIDSequence, error) {
	current, err := database.GetUInt64(s.singletonDB, localSequenceKey)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return 0, err
	}
	next := current + 1
	if next == 0 {
		return 0, ErrCalculationOverflow
	}
	return next, database.PutUInt64(s.singletonDB, localSequenceKey, next)
}

func (s *state) getAdvertisement(source types.AccountID) (*Advertisement, bool, error) {
	ad := &Advertisement{}
	found, err := getRecord(s.advertDB, source[:], ad)
	return ad, found, err
}

func (s *state) putAdvertisement(source types.AccountID, ad *Advertisement) error {
	return putRecord(s.advertDB, source[:], ad)
}

// advertisedSources lists every advertising source in ascending byte order.
func (s *state) advertisedSources() ([]types.AccountID, error) {
	it := s.advertDB.NewIterator()
	defer it.Release()

	var sources []types.AccountID
	for it.Next() {
		source, err := ids.ToShortID(it.Key())
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, it.Error()
}

func (s *state) remainingCapacity(source types.AccountID) (uint64, error) {
	v, err := database.GetUInt64(s.capacityDB, source[:])
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return v, err
}

func (s *state) setRemainingCapacity(source types.AccountID, v uint64) error {
	return database.PutUInt64(s.capacityDB, source[:], v)
}

func assignmentKey(source types.AccountID, id types.JobID) []byte {
	return append(source.Bytes(), id.Key()...)
}

func (s *state) getAssignment(source types.AccountID, id types.JobID) (*Assignment, bool, error) {
	a := &Assignment{}
	found, err := getRecord(s.assignmentDB, assignmentKey(source, id), a)
	return a, found, err
}

func (s *state) putAssignment(source types.AccountID, id types.JobID, a *Assignment) error {
	return putRecord(s.assignmentDB, assignmentKey(source, id), a)
}

func (s *state) deleteAssignment(source types.AccountID, id types.JobID) error {
	return s.assignmentDB.Delete(assignmentKey(source, id))
}

// assignedJobKeys returns the job keys [source] is assigned to. Job keys are
// stored verbatim after the source, so the suffix is the JobID key.
func (s *state) assignedJobKeys(source types.AccountID) ([][]byte, error) {
	it := s.assignmentDB.NewIteratorWithPrefix(source[:])
	defer it.Release()

	var keys [][]byte
	for it.Next() {
		key := it.Key()
		keys = append(keys, append([]byte(nil), key[len(source):]...))
	}
	return keys, it.Error()
}

func (s *state) hasAssignments(source types.AccountID) (bool, error) {
	it := s.assignmentDB.NewIteratorWithPrefix(source[:])
	defer it.Release()
	return it.Next(), it.Error()
}

func reputationKey(source types.AccountID, asset types.AssetID) []byte {
	return append(source.Bytes(), types.Uint32Bytes(uint32(asset))...)
}

func (s *state) getReputation(source types.AccountID, asset types.AssetID) (reputation.BetaParameters, error) {
	var params reputation.BetaParameters
	_, err := getRecord(s.reputationDB, reputationKey(source, asset), &params)
	return params, err
}

func (s *state) putReputation(source types.AccountID, asset types.AssetID, params reputation.BetaParameters) error {
	return putRecord(s.reputationDB, reputationKey(source, asset), &params)
}

// getRewardAverage returns the running average fee per execution paid in
// [asset].
func (s *state) getRewardAverage(asset types.AssetID) (reputation.RewardAverage, error) {
	var avg reputation.RewardAverage
	_, err := getRecord(s.averageDB, types.Uint32Bytes(uint32(asset)), &avg)
	return avg, err
}

func (s *state) putRewardAverage(asset types.AssetID, avg reputation.RewardAverage) error {
	return putRecord(s.averageDB, types.Uint32Bytes(uint32(asset)), &avg)
}

func (s *state) lastSeen(source types.AccountID) (uint64, bool, error) {
	v, err := database.GetUInt64(s.heartbeatDB, source[:])
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	return v, err == nil, err
}

func envKey(id types.JobID, source types.AccountID) []byte {
	return append(id.Key(), source[:]...)
}

func (s *state) getEnvironment(id types.JobID, source types.AccountID) (*Environment, bool, error) {
	env := &Environment{}
	found, err := getRecord(s.envDB, envKey(id, source), env)
	return env, found, err
}
