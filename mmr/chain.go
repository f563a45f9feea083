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
	"github.com/ethereum/go-ethereum/common"
)

var (
	peakPrefix    = []byte("peak")
	pendingPrefix = []byte("pending")
	blockPrefix   = []byte("block")
	sizePrefix    = []byte("size")
	metaPrefix    = []byte("meta")

	sizeKey = []byte("mmrSize")
)

// BlockInfo records the nodes a block appended and the root it produced.
type BlockInfo struct {
	Parent     ids.ID      `serialize:"true" json:"parent"`
	SizeBefore uint64      `serialize:"true" json:"sizeBefore"`
	SizeAfter  uint64      `serialize:"true" json:"sizeAfter"`
	Root       common.Hash `serialize:"true" json:"root"`
}

// Fork is the fork-scoped part of an off-chain key.
func (b BlockInfo) Fork() ForkKey {
	return ForkKey{Parent: b.Parent, Root: b.Root}
}

// ChainStore is the state-side storage of the mmr: the size, the hashes of
// the current peaks and the nodes of the executing block until it finishes.
type ChainStore struct {
	peakDB    database.Database
	pendingDB database.Database
	blockDB   database.Database
	sizeDB    database.Database
	metaDB    database.Database
}

func NewChainStore(db database.Database) *ChainStore {
	return &ChainStore{
		peakDB:    prefixdb.New(peakPrefix, db),
		pendingDB: prefixdb.New(pendingPrefix, db),
		blockDB:   prefixdb.New(blockPrefix, db),
		sizeDB:    prefixdb.New(sizePrefix, db),
		metaDB:    prefixdb.New(metaPrefix, db),
	}
}

func (s *ChainStore) Size() (uint64, error) {
	size, err := database.GetUInt64(s.metaDB, sizeKey)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return size, err
}

// Open returns the mmr at its current size.
func (s *ChainStore) Open() (*MMR, error) {
	size, err := s.Size()
	if err != nil {
		return nil, err
	}
	return New(size, s), nil
}

// Get only serves peaks.
func (s *ChainStore) Get(pos uint64) (common.Hash, bool, error) {
	bytes, err := s.peakDB.Get(posKey(pos))
	if errors.Is(err, database.ErrNotFound) {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, err
	}
	return common.BytesToHash(bytes), true, nil
}

// Append keeps the nodes that are peaks at the new size and deletes the
// peaks they supersede. Every node is also kept as pending until the block
// finishes.
func (s *ChainStore) Append(pos uint64, nodes []Node) error {
	newSize := pos + uint64(len(nodes))
	after := make(map[uint64]struct{})
	for _, peak := range GetPeaks(newSize) {
		after[peak] = struct{}{}
	}
	for _, peak := range GetPeaks(pos) {
		if _, ok := after[peak]; ok {
			continue
		}
		if err := s.peakDB.Delete(posKey(peak)); err != nil {
			return err
		}
	}
	for i, node := range nodes {
		p := pos + uint64(i)
		if _, ok := after[p]; ok {
			if err := s.peakDB.Put(posKey(p), node.Hash[:]); err != nil {
				return err
			}
		}
		bytes, err := Codec.Marshal(codecVersion, &node)
		if err != nil {
			return fmt.Errorf("failed to marshal node: %w", err)
		}
		if err := s.pendingDB.Put(posKey(p), bytes); err != nil {
			return err
		}
	}
	return database.PutUInt64(s.metaDB, sizeKey, newSize)
}

// FinishBlock closes the block at [height]. It returns nil when the block
// appended nothing, otherwise the block's info and its nodes in position
// order, and clears the pending nodes.
func (s *ChainStore) FinishBlock(height uint64, parent ids.ID) (*BlockInfo, []Node, error) {
	var (
		first uint64
		nodes []Node
		keys  [][]byte
	)
	it := s.pendingDB.NewIterator()
	for it.Next() {
		if len(nodes) == 0 {
			first = binary.BigEndian.Uint64(it.Key())
		}
		var node Node
		if _, err := Codec.Unmarshal(it.Value(), &node); err != nil {
			it.Release()
			return nil, nil, fmt.Errorf("failed to unmarshal node: %w", err)
		}
		nodes = append(nodes, node)
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return nil, nil, err
	}
	if len(nodes) == 0 {
		return nil, nil, nil
	}

	m, err := s.Open()
	if err != nil {
		return nil, nil, err
	}
	root, err := m.Root()
	if err != nil {
		return nil, nil, err
	}
	info := &BlockInfo{
		Parent:     parent,
		SizeBefore: first,
		SizeAfter:  m.Size(),
		Root:       root,
	}
	if info.SizeAfter != first+uint64(len(nodes)) {
		return nil, nil, ErrInconsistentStore
	}

	bytes, err := Codec.Marshal(codecVersion, info)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal block info: %w", err)
	}
	if err := s.blockDB.Put(posKey(height), bytes); err != nil {
		return nil, nil, err
	}
	if err := database.PutUInt64(s.sizeDB, posKey(info.SizeAfter), height); err != nil {
		return nil, nil, err
	}
	for _, key := range keys {
		if err := s.pendingDB.Delete(key); err != nil {
			return nil, nil, err
		}
	}
	return info, nodes, nil
}

// BlockInfo returns what the block at [height] appended, if anything.
func (s *ChainStore) BlockInfo(height uint64) (BlockInfo, bool, error) {
	bytes, err := s.blockDB.Get(posKey(height))
	if errors.Is(err, database.ErrNotFound) {
		return BlockInfo{}, false, nil
	}
	if err != nil {
		return BlockInfo{}, false, err
	}
	var info BlockInfo
	if _, err := Codec.Unmarshal(bytes, &info); err != nil {
		return BlockInfo{}, false, fmt.Errorf("failed to unmarshal block info: %w", err)
	}
	return info, true, nil
}

// ForkOf returns the fork key of the block that appended [pos].
func (s *ChainStore) ForkOf(pos uint64) (ForkKey, bool, error) {
	it := s.sizeDB.NewIteratorWithStart(posKey(pos + 1))
	defer it.Release()
	if !it.Next() {
		return ForkKey{}, false, it.Error()
	}
	height, err := database.ParseUInt64(it.Value())
	if err != nil {
		return ForkKey{}, false, err
	}
	info, ok, err := s.BlockInfo(height)
	if err != nil || !ok {
		return ForkKey{}, false, err
	}
	if pos < info.SizeBefore {
		return ForkKey{}, false, nil
	}
	return info.Fork(), true, nil
}
