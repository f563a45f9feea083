// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stack

import (
	"context"
	"fmt"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/snow/consensus/snowman"
	"github.com/ava-labs/avalanchego/snow/engine/common"
)

// Producer decides blocks of a single node chain: every block it builds is
// accepted right after it verifies.
//
// A Producer must be the only user of its BlockCache.
type Producer[B StatelessBlock] struct {
	chain *BlockCache[B]
	log   log.Logger
}

func NewProducer[B StatelessBlock](chain *BlockCache[B]) *Producer[B] {
	return &Producer[B]{
		chain: chain,
		log:   log.New("module", "producer"),
	}
}

// Produce builds a block on the last accepted block and accepts it.
func (p *Producer[B]) Produce(ctx context.Context) (snowman.Block, error) {
	blk, err := p.chain.BuildBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build block: %w", err)
	}
	blkID := blk.ID()
	if err := blk.Verify(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify block %s: %w", blkID, err)
	}
	if err := p.chain.SetPreference(ctx, blkID); err != nil {
		return nil, err
	}
	if err := blk.Accept(ctx); err != nil {
		return nil, fmt.Errorf("failed to accept block %s: %w", blkID, err)
	}
	return blk, nil
}

// Run produces a block at most every [interval] while [toEngine] reports
// pending txs. It returns once [ctx] is done.
func (p *Producer[B]) Run(ctx context.Context, toEngine <-chan common.Message, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-toEngine:
			if msg == common.PendingTxs {
				pending = true
			}
		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			blk, err := p.Produce(ctx)
			if err != nil {
				p.log.Warn("block production failed", "err", err)
				continue
			}
			p.log.Debug("produced block", "id", blk.ID(), "height", blk.Height())
		}
	}
}
