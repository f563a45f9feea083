// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/acurast/acurastvm/types"
)

// Job returns the stored job.
func (m *Marketplace) Job(id types.JobID) (*Job, error) {
	job, found, err := m.getJob(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrap(ErrJobNotFound, id.String())
	}
	return job, nil
}

// Advertisement returns the offer of [source].
func (m *Marketplace) Advertisement(source types.AccountID) (*Advertisement, error) {
	ad, found, err := m.getAdvertisement(source)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrAdvertisementNotFound
	}
	return ad, nil
}

// RemainingStorage returns the storage capacity [source] has left.
func (m *Marketplace) RemainingStorage(source types.AccountID) (uint64, error) {
	return m.remainingCapacity(source)
}

// Assignment returns the assignment of [source] to the job.
func (m *Marketplace) Assignment(source types.AccountID, id types.JobID) (*Assignment, bool, error) {
	return m.getAssignment(source, id)
}

// MatchedJobs lists every job [source] is assigned to.
func (m *Marketplace) MatchedJobs(source types.AccountID) ([]MatchedJob, error) {
	keys, err := m.assignedJobKeys(source)
	if err != nil {
		return nil, err
	}
	matched := make([]MatchedJob, 0, len(keys))
	for _, key := range keys {
		id, err := types.ParseJobIDKey(key)
		if err != nil {
			return nil, err
		}
		job, found, err := m.getJob(id)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		assignment, found, err := m.getAssignment(source, id)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		matched = append(matched, MatchedJob{
			JobID:        id,
			Registration: job.Registration,
			Assignment:   *assignment,
		})
	}
	return matched, nil
}

// JobEnvironment returns the variables the creator set for [source].
func (m *Marketplace) JobEnvironment(id types.JobID, source types.AccountID) (*Environment, error) {
	env, found, err := m.getEnvironment(id, source)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrEnvironmentNotFound
	}
	return env, nil
}

// FilterMatchingSources returns the sources that could take a slot of [reg]
// submitted by [consumer] with a zero start delay. An empty [sources] checks
// every advertising source. When [latestSeenAfter] is set, sources without a
// heartbeat after it are dropped.
func (m *Marketplace) FilterMatchingSources(
	reg *JobRegistration,
	consumer types.MultiOrigin,
	sources []types.AccountID,
	latestSeenAfter *uint64,
	now uint64,
) ([]types.AccountID, error) {
	if len(sources) == 0 {
		var err error
		sources, err = m.advertisedSources()
		if err != nil {
			return nil, err
		}
	}
	id := types.JobID{Origin: consumer}
	job := &Job{Registration: *reg, Status: StatusOpen}

	var matching []types.AccountID
	for _, source := range sources {
		if latestSeenAfter != nil {
			seen, ok, err := m.lastSeen(source)
			if err != nil {
				return nil, err
			}
			if !ok || seen <= *latestSeenAfter {
				continue
			}
		}
		_, rejection, err := m.checkSource(id, job, source, 0, now)
		if err != nil {
			return nil, err
		}
		if rejection == nil {
			matching = append(matching, source)
		}
	}
	return matching, nil
}
