// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package canonicalizer moves the off-chain mmr nodes of finalized blocks
// from their fork-scoped keys to their canonical keys, and drops the nodes
// written by blocks that lost to a finalized sibling.
//
// It runs next to block production and only ever touches off-chain storage.
package canonicalizer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ethereum/go-ethereum/common"

	"github.com/acurast/acurastvm/metrics"
	"github.com/acurast/acurastvm/mmr"
)

var bestKey = []byte("best_canonicalized")

// Chain answers what finalized blocks did. It reads accepted state only.
type Chain interface {
	// BlockInfo returns what the block at [height] appended to the mmr.
	BlockInfo(height uint64) (mmr.BlockInfo, bool, error)
	// ParentOf returns the parent of the finalized block at [height].
	ParentOf(height uint64) (ids.ID, error)
}

type Config struct {
	// Aux persists the gadget's progress.
	Aux      database.Database
	Offchain *mmr.OffchainStore
	Chain    Chain
	Metrics  *metrics.Collector
	Log      log.Logger
}

// Gadget canonicalizes every finalized block exactly once, in height order.
type Gadget struct {
	aux      database.Database
	offchain *mmr.OffchainStore
	chain    Chain
	metrics  *metrics.Collector
	log      log.Logger

	lock      sync.Mutex
	finalized uint64
	notify    chan struct{}
}

func New(config Config) *Gadget {
	logger := config.Log
	if logger == nil {
		logger = log.New("module", "canonicalizer")
	}
	return &Gadget{
		aux:      config.Aux,
		offchain: config.Offchain,
		chain:    config.Chain,
		metrics:  config.Metrics,
		log:      logger,
		notify:   make(chan struct{}, 1),
	}
}

// Best is the height of the last canonicalized block.
func (g *Gadget) Best() (uint64, error) {
	best, err := database.GetUInt64(g.aux, bestKey)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return best, err
}

// Finalized tells the gadget that [height] is final. It never blocks.
func (g *Gadget) Finalized(height uint64) {
	g.lock.Lock()
	if height > g.finalized {
		g.finalized = height
	}
	g.lock.Unlock()

	select {
	case g.notify <- struct{}{}:
	default:
	}
}

func (g *Gadget) target() uint64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.finalized
}

// Run processes finality notifications until [ctx] is done. Notifications
// missed while the gadget was busy or stopped are caught up on from the
// persisted progress.
func (g *Gadget) Run(ctx context.Context) {
	g.log.Info("canonicalization gadget started")
	for {
		select {
		case <-ctx.Done():
			g.log.Info("canonicalization gadget stopped")
			return
		case <-g.notify:
			if err := g.CatchUp(ctx, g.target()); err != nil && !errors.Is(err, context.Canceled) {
				g.log.Error("failed to canonicalize", "error", err)
			}
		}
	}
}

// CatchUp canonicalizes every block after the persisted best up to
// [finalized]. Progress is persisted per block, so an interrupted walk
// resumes where it stopped. Re-canonicalizing a block is a no-op.
func (g *Gadget) CatchUp(ctx context.Context, finalized uint64) error {
	best, err := g.Best()
	if err != nil {
		return err
	}
	if finalized <= best {
		return nil
	}
	if finalized-best > 1 {
		g.log.Debug("catching up", "from", best+1, "to", finalized)
	}
	for height := best + 1; height <= finalized; height++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.canonicalize(height); err != nil {
			return fmt.Errorf("block %d: %w", height, err)
		}
	}
	return nil
}

func (g *Gadget) canonicalize(height uint64) error {
	info, ok, err := g.chain.BlockInfo(height)
	if err != nil {
		return err
	}

	var (
		moved  int
		parent = info.Parent
		keep   common.Hash
	)
	if ok {
		moved, err = g.offchain.Canonicalize(info.Fork(), info.SizeBefore, info.SizeAfter)
		if err != nil {
			return err
		}
		keep = info.Root
	} else {
		// Nothing appended, so every sibling fork is stale.
		parent, err = g.chain.ParentOf(height)
		if err != nil {
			return err
		}
	}
	pruned, err := g.offchain.PruneForks(parent, keep)
	if err != nil {
		return err
	}
	if err := database.PutUInt64(g.aux, bestKey, height); err != nil {
		return err
	}

	g.metrics.Canonicalized(height, moved, pruned)
	if moved > 0 || pruned > 0 {
		g.log.Debug("canonicalized block",
			"height", height,
			"moved", moved,
			"pruned", pruned,
		)
	}
	return nil
}
