// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/snow/consensus/snowman"
)

var (
	_ snowman.Block = (*Block[StatelessBlock])(nil)

	errParentNotAccepted = errors.New("parent of the accepted block is not the last accepted block")
)

// Block is the snowman.Block of a backend block. Its status follows the
// decisions taken through it.
type Block[B StatelessBlock] struct {
	innerBlock B
	cache      *BlockCache[B]

	status choices.Status
}

func (b *Block[B]) ID() ids.ID { return b.innerBlock.ID() }

func (b *Block[B]) Parent() ids.ID { return b.innerBlock.Parent() }

func (b *Block[B]) Bytes() []byte { return b.innerBlock.Bytes() }

func (b *Block[B]) Height() uint64 { return b.innerBlock.Height() }

func (b *Block[B]) Timestamp() time.Time { return b.innerBlock.Timestamp() }

func (b *Block[B]) Status() choices.Status { return b.status }

// Inner returns the backend block.
func (b *Block[B]) Inner() B { return b.innerBlock }

// Verify executes the block on top of its parent. Verifying a block twice
// is a no-op.
func (b *Block[B]) Verify(ctx context.Context) error {
	blkID := b.innerBlock.ID()
	if _, ok := b.cache.verifiedBlocks[blkID]; ok {
		return nil
	}
	if b.status.Decided() {
		return fmt.Errorf("block %s is already %s", blkID, b.status)
	}

	parent, err := b.cache.getBlock(ctx, b.innerBlock.Parent())
	if err != nil {
		return fmt.Errorf("failed to get parent of %s for verification: %w", blkID, err)
	}
	if parent.status == choices.Rejected {
		return fmt.Errorf("parent of %s was rejected", blkID)
	}
	if err := b.cache.backend.Verify(ctx, parent.innerBlock, b.innerBlock); err != nil {
		return err
	}

	b.cache.unverifiedBlocks.Evict(blkID)
	b.cache.verifiedBlocks[blkID] = b
	return nil
}

func (b *Block[B]) Accept(ctx context.Context) error {
	if b.innerBlock.Parent() != b.cache.lastAcceptedBlock.ID() {
		return fmt.Errorf("%w: %s", errParentNotAccepted, b.innerBlock.ID())
	}
	if err := b.cache.backend.Accept(ctx, b.innerBlock); err != nil {
		return err
	}

	b.status = choices.Accepted
	blkID := b.innerBlock.ID()
	delete(b.cache.verifiedBlocks, blkID)
	b.cache.decidedBlocks.Put(blkID, b)
	b.cache.lastAcceptedBlock = b
	if b.cache.preferredBlock.Height() <= b.Height() {
		b.cache.preferredBlock = b
	}
	return nil
}

func (b *Block[B]) Reject(ctx context.Context) error {
	if err := b.cache.backend.Reject(ctx, b.innerBlock); err != nil {
		return err
	}

	b.status = choices.Rejected
	blkID := b.innerBlock.ID()
	delete(b.cache.verifiedBlocks, blkID)
	b.cache.decidedBlocks.Put(blkID, b)
	if b.cache.preferredBlock == b {
		b.cache.preferredBlock = b.cache.lastAcceptedBlock
	}
	return nil
}
