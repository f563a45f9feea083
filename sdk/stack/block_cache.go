// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stack

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/snow/consensus/snowman"
	"github.com/prometheus/client_golang/prometheus"
)

var DefaultBlockCacheConfig = BlockCacheConfig{
	Decided:    1024,
	Unverified: 1024,
	Missing:    1024,
	BytesToID:  1024,
}

type BlockCacheConfig struct {
	Decided    int `mapstructure:"decided" json:"decided"`
	Unverified int `mapstructure:"unverified" json:"unverified"`
	Missing    int `mapstructure:"missing" json:"missing"`
	BytesToID  int `mapstructure:"bytesToID" json:"bytesToID"`
}

// BlockCache hands out one wrapped block per block ID, tracks which blocks
// are in consensus and caches the rest.
//
// It is not safe for concurrent use. Callers hold the chain's lock.
type BlockCache[B StatelessBlock] struct {
	backend ChainBackend[B]

	// verifiedBlocks are verified and neither accepted nor rejected yet
	verifiedBlocks map[ids.ID]*Block[B]
	decidedBlocks cache.Cacher[ids.ID, *Block[B]]
	// unverifiedBlocks have status processing and did not pass verification
	// yet
	unverifiedBlocks cache.Cacher[ids.ID, *Block[B]]
	missingBlocks    cache.Cacher[ids.ID, struct{}]
	// string(block bytes) -> block ID
	bytesToIDCache cache.Cacher[string, ids.ID]

	lastAcceptedBlock *Block[B]
	preferredBlock    *Block[B]
}

func newMeteredLRU[K comparable, V any](
	namespace, name string,
	size int,
	registerer prometheus.Registerer,
) (cache.Cacher[K, V], error) {
	return metercacher.New[K, V](namespace+"_"+name, registerer, &cache.LRU[K, V]{Size: size})
}

// NewBlockCache starts with [lastAccepted] accepted and preferred. Every
// cache reports its hits and misses to [registerer] under [namespace].
func NewBlockCache[B StatelessBlock](
	backend ChainBackend[B],
	lastAccepted B,
	config BlockCacheConfig,
	namespace string,
	registerer prometheus.Registerer,
) (*BlockCache[B], error) {
	decided, err := newMeteredLRU[ids.ID, *Block[B]](namespace, "decided_cache", config.Decided, registerer)
	if err != nil {
		return nil, err
	}
	missing, err := newMeteredLRU[ids.ID, struct{}](namespace, "missing_cache", config.Missing, registerer)
	if err != nil {
		return nil, err
	}
	unverified, err := newMeteredLRU[ids.ID, *Block[B]](namespace, "unverified_cache", config.Unverified, registerer)
	if err != nil {
		return nil, err
	}
	bytesToID, err := newMeteredLRU[string, ids.ID](namespace, "bytes_to_id_cache", config.BytesToID, registerer)
	if err != nil {
		return nil, err
	}

	bc := &BlockCache[B]{
		backend:          backend,
		verifiedBlocks:   make(map[ids.ID]*Block[B]),
		decidedBlocks:    decided,
		missingBlocks:    missing,
		unverifiedBlocks: unverified,
		bytesToIDCache:   bytesToID,
	}

	// lastAccepted is never verified, so its parent stays unresolved
	accepted := bc.wrap(lastAccepted, choices.Accepted)
	bc.lastAcceptedBlock = accepted
	bc.preferredBlock = accepted
	bc.decidedBlocks.Put(accepted.ID(), accepted)
	return bc, nil
}

func (bc *BlockCache[B]) wrap(blk B, status choices.Status) *Block[B] {
	return &Block[B]{
		innerBlock: blk,
		cache:      bc,
		status:     status,
	}
}

// Flush empties every cache. Blocks in consensus are kept.
func (bc *BlockCache[B]) Flush() {
	bc.decidedBlocks.Flush()
	bc.missingBlocks.Flush()
	bc.unverifiedBlocks.Flush()
	bc.bytesToIDCache.Flush()
}

func (bc *BlockCache[B]) getCachedBlock(blkID ids.ID) (*Block[B], bool) {
	if blk, ok := bc.verifiedBlocks[blkID]; ok {
		return blk, true
	}
	if blk, ok := bc.decidedBlocks.Get(blkID); ok {
		return blk, true
	}
	if blk, ok := bc.unverifiedBlocks.Get(blkID); ok {
		return blk, true
	}
	return nil, false
}

func (bc *BlockCache[B]) GetBlock(ctx context.Context, blkID ids.ID) (snowman.Block, error) {
	blk, err := bc.getBlock(ctx, blkID)
	if err != nil {
		return nil, err
	}
	return blk, nil
}

func (bc *BlockCache[B]) getBlock(ctx context.Context, blkID ids.ID) (*Block[B], error) {
	if blk, ok := bc.getCachedBlock(blkID); ok {
		return blk, nil
	}
	if _, ok := bc.missingBlocks.Get(blkID); ok {
		return nil, database.ErrNotFound
	}

	blk, err := bc.backend.GetBlock(ctx, blkID)
	if errors.Is(err, database.ErrNotFound) {
		bc.missingBlocks.Put(blkID, struct{}{})
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return bc.addBlockOutsideConsensus(ctx, blk)
}

// ParseBlock returns the wrapped block of [b], parsing it only if it is not
// cached yet.
func (bc *BlockCache[B]) ParseBlock(ctx context.Context, b []byte) (snowman.Block, error) {
	key := string(b)
	if blkID, ok := bc.bytesToIDCache.Get(key); ok {
		if cached, ok := bc.getCachedBlock(blkID); ok {
			return cached, nil
		}
	}

	blk, err := bc.backend.ParseBlock(ctx, b)
	if err != nil {
		return nil, err
	}
	blkID := blk.ID()
	bc.bytesToIDCache.Put(key, blkID)
	if cached, ok := bc.getCachedBlock(blkID); ok {
		return cached, nil
	}
	bc.missingBlocks.Evict(blkID)
	return bc.addBlockOutsideConsensus(ctx, blk)
}

// BuildBlock builds a block on top of the preferred block.
func (bc *BlockCache[B]) BuildBlock(ctx context.Context) (snowman.Block, error) {
	blk, err := bc.backend.BuildBlock(ctx, bc.preferredBlock.innerBlock)
	if err != nil {
		return nil, err
	}

	blkID := blk.ID()
	if existing, ok := bc.getCachedBlock(blkID); ok {
		return existing, nil
	}
	bc.missingBlocks.Evict(blkID)
	return bc.addBlockOutsideConsensus(ctx, blk)
}

// addBlockOutsideConsensus wraps [blk], which is either decided or not
// verified yet, and caches it by its status.
func (bc *BlockCache[B]) addBlockOutsideConsensus(ctx context.Context, blk B) (*Block[B], error) {
	blkID := blk.ID()
	status, err := bc.getStatus(ctx, blk)
	if err != nil {
		return nil, fmt.Errorf("could not get block status for %s: %w", blkID, err)
	}
	wrapped := bc.wrap(blk, status)

	switch status {
	case choices.Accepted, choices.Rejected:
		bc.decidedBlocks.Put(blkID, wrapped)
	case choices.Processing:
		bc.unverifiedBlocks.Put(blkID, wrapped)
	default:
		return nil, fmt.Errorf("found unexpected status for blk %s: %s", blkID, status)
	}
	return wrapped, nil
}

func (bc *BlockCache[B]) LastAccepted(context.Context) (ids.ID, error) {
	return bc.lastAcceptedBlock.ID(), nil
}

func (bc *BlockCache[B]) LastAcceptedBlock() *Block[B] {
	return bc.lastAcceptedBlock
}

func (bc *BlockCache[B]) Preferred() *Block[B] {
	return bc.preferredBlock
}

func (bc *BlockCache[B]) SetPreference(ctx context.Context, blkID ids.ID) error {
	preferred, err := bc.getBlock(ctx, blkID)
	if err != nil {
		return fmt.Errorf("failed to get preferred block %s: %w", blkID, err)
	}
	bc.preferredBlock = preferred
	return nil
}

// Processing is the number of verified blocks awaiting a decision.
func (bc *BlockCache[B]) Processing() int {
	return len(bc.verifiedBlocks)
}

func (bc *BlockCache[B]) getStatus(ctx context.Context, blk B) (choices.Status, error) {
	height := blk.Height()
	if height > bc.lastAcceptedBlock.Height() {
		return choices.Processing, nil
	}

	acceptedID, err := bc.backend.GetBlockIDAtHeight(ctx, height)
	switch {
	case err == nil && acceptedID == blk.ID():
		return choices.Accepted, nil
	case err == nil:
		return choices.Rejected, nil
	case errors.Is(err, database.ErrNotFound):
		return choices.Processing, nil
	default:
		return choices.Unknown, fmt.Errorf("failed to get accepted blkID at height %d: %w", height, err)
	}
}
