// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"

	"github.com/acurast/acurastvm/mmr"
	"github.com/acurast/acurastvm/types"
)

var (
	outgoingPrefix = []byte("outgoing")
	incomingPrefix = []byte("incoming")
	oraclePrefix   = []byte("oracle")
	snapshotPrefix = []byte("snapshot")
	mmrPrefix      = []byte("mmr")
	metaPrefix     = []byte("meta")

	snapshotCountKey = []byte("snapshotCount")
	testNonceKey     = []byte("testNonce")
)

type state struct {
	outgoingDB database.Database
	incomingDB database.Database
	oracleDB   database.Database
	snapshotDB database.Database
	metaDB     database.Database
	chain      *mmr.ChainStore
}

func newState(db database.Database) state {
	return state{
		outgoingDB: prefixdb.New(outgoingPrefix, db),
		incomingDB: prefixdb.New(incomingPrefix, db),
		oracleDB:   prefixdb.New(oraclePrefix, db),
		snapshotDB: prefixdb.New(snapshotPrefix, db),
		metaDB:     prefixdb.New(metaPrefix, db),
		chain:      mmr.NewChainStore(prefixdb.New(mmrPrefix, db)),
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

func (s *state) getOutgoing(id MessageID) (*OutgoingMessageWithMeta, bool, error) {
	meta := &OutgoingMessageWithMeta{}
	found, err := getRecord(s.outgoingDB, id[:], meta)
	return meta, found, err
}

func (s *state) putOutgoing(meta *OutgoingMessageWithMeta) error {
	return putRecord(s.outgoingDB, meta.Message.ID[:], meta)
}

func (s *state) deleteOutgoing(id MessageID) error {
	return s.outgoingDB.Delete(id[:])
}

func (s *state) getIncoming(id MessageID) (*IncomingMessageWithMeta, bool, error) {
	meta := &IncomingMessageWithMeta{}
	found, err := getRecord(s.incomingDB, id[:], meta)
	return meta, found, err
}

func (s *state) putIncoming(meta *IncomingMessageWithMeta) error {
	return putRecord(s.incomingDB, meta.Message.ID[:], meta)
}

func (s *state) deleteIncoming(id MessageID) error {
	return s.incomingDB.Delete(id[:])
}

func (s *state) getOracle(pubKey []byte) (*Oracle, bool, error) {
	oracle := &Oracle{}
	found, err := getRecord(s.oracleDB, pubKey, oracle)
	return oracle, found, err
}

func (s *state) putOracle(oracle Oracle) error {
	return putRecord(s.oracleDB, oracle.PubKey, &oracle)
}

func (s *state) deleteOracle(pubKey []byte) error {
	return s.oracleDB.Delete(pubKey)
}

func (s *state) counter(key []byte) (uint64, error) {
	v, err := database.GetUInt64(s.metaDB, key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return v, err
}

func (s *state) snapshotCount() (uint64, error) {
	return s.counter(snapshotCountKey)
}

func (s *state) getSnapshot(number uint64) (*Snapshot, bool, error) {
	snapshot := &Snapshot{}
	found, err := getRecord(s.snapshotDB, types.Uint64Bytes(number), snapshot)
	return snapshot, found, err
}

func (s *state) putSnapshot(snapshot *Snapshot) error {
	if err := putRecord(s.snapshotDB, types.Uint64Bytes(snapshot.Number), snapshot); err != nil {
		return err
	}
	return database.PutUInt64(s.metaDB, snapshotCountKey, snapshot.Number+1)
}

func (s *state) putCounter(key []byte, v uint64) error {
	return database.PutUInt64(s.metaDB, key, v)
}
