// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ethereum/go-ethereum/common"
)

const forkKeyLen = hashing.HashLen + 8 + common.HashLength

// ForkKey scopes off-chain nodes written by a block that is not final yet:
// the block's parent and the root the block produced.
type ForkKey struct {
	Parent ids.ID
	Root   common.Hash
}

// ForkResolver finds the fork key of the block that appended a position.
type ForkResolver interface {
	ForkOf(pos uint64) (ForkKey, bool, error)
}

// OffchainStore keeps every node outside of consensus state. Nodes of
// non-final blocks live at (parent, pos, root); canonicalization moves them
// to (pos).
type OffchainStore struct {
	db database.Database
}

func NewOffchainStore(db database.Database, prefix []byte) *OffchainStore {
	return &OffchainStore{db: prefixdb.New(prefix, db)}
}

func forkNodeKey(fork ForkKey, pos uint64) []byte {
	key := make([]byte, 0, forkKeyLen)
	key = append(key, fork.Parent[:]...)
	key = binary.BigEndian.AppendUint64(key, pos)
	return append(key, fork.Root[:]...)
}

func (s *OffchainStore) getNode(key []byte) (Node, bool, error) {
	bytes, err := s.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return Node{}, false, nil
	}
	if err != nil {
		return Node{}, false, err
	}
	var node Node
	if _, err := Codec.Unmarshal(bytes, &node); err != nil {
		return Node{}, false, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return node, true, nil
}

// PutFork writes the nodes a block appended starting at [first].
func (s *OffchainStore) PutFork(fork ForkKey, first uint64, nodes []Node) error {
	batch := s.db.NewBatch()
	for i := range nodes {
		bytes, err := Codec.Marshal(codecVersion, &nodes[i])
		if err != nil {
			return fmt.Errorf("failed to marshal node: %w", err)
		}
		if err := batch.Put(forkNodeKey(fork, first+uint64(i)), bytes); err != nil {
			return err
		}
	}
	return batch.Write()
}

func (s *OffchainStore) Canonical(pos uint64) (Node, bool, error) {
	return s.getNode(posKey(pos))
}

func (s *OffchainStore) Fork(fork ForkKey, pos uint64) (Node, bool, error) {
	return s.getNode(forkNodeKey(fork, pos))
}

// Canonicalize moves the nodes in [from, to) written under [fork] to their
// canonical keys. Positions already canonical are skipped.
func (s *OffchainStore) Canonicalize(fork ForkKey, from, to uint64) (int, error) {
	batch := s.db.NewBatch()
	moved := 0
	for pos := from; pos < to; pos++ {
		key := forkNodeKey(fork, pos)
		bytes, err := s.db.Get(key)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if err := batch.Put(posKey(pos), bytes); err != nil {
			return 0, err
		}
		if err := batch.Delete(key); err != nil {
			return 0, err
		}
		moved++
	}
	return moved, batch.Write()
}

// PruneForks deletes the nodes written by children of [parent] other than
// the one that produced [keep].
func (s *OffchainStore) PruneForks(parent ids.ID, keep common.Hash) (int, error) {
	var stale [][]byte
	it := s.db.NewIteratorWithPrefix(parent[:])
	for it.Next() {
		key := it.Key()
		if len(key) != forkKeyLen {
			continue
		}
		if common.BytesToHash(key[hashing.HashLen+8:]) == keep {
			continue
		}
		stale = append(stale, append([]byte(nil), key...))
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return 0, err
	}

	batch := s.db.NewBatch()
	for _, key := range stale {
		if err := batch.Delete(key); err != nil {
			return 0, err
		}
	}
	return len(stale), batch.Write()
}

// DropFork deletes the nodes in [from, to) written under [fork].
func (s *OffchainStore) DropFork(fork ForkKey, from, to uint64) error {
	batch := s.db.NewBatch()
	for pos := from; pos < to; pos++ {
		if err := batch.Delete(forkNodeKey(fork, pos)); err != nil {
			return err
		}
	}
	return batch.Write()
}

// Reader resolves nodes that are not canonical yet through [resolver].
func (s *OffchainStore) Reader(resolver ForkResolver) *Reader {
	return &Reader{store: s, resolver: resolver}
}

// Reader serves every node of the range, final or not.
type Reader struct {
	store    *OffchainStore
	resolver ForkResolver
}

func (r *Reader) Node(pos uint64) (Node, bool, error) {
	node, ok, err := r.store.Canonical(pos)
	if err != nil || ok {
		return node, ok, err
	}
	if r.resolver == nil {
		return Node{}, false, nil
	}
	fork, ok, err := r.resolver.ForkOf(pos)
	if err != nil || !ok {
		return Node{}, false, err
	}
	return r.store.Fork(fork, pos)
}

func (r *Reader) Get(pos uint64) (common.Hash, bool, error) {
	node, ok, err := r.Node(pos)
	return node.Hash, ok, err
}
