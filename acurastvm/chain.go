// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package acurastvm

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/acurast/acurastvm/canonicalizer"
	"github.com/acurast/acurastvm/mmr"
)

var _ canonicalizer.Chain = (*finalizedChain)(nil)

// finalizedChain is the gadget's view of accepted blocks.
type finalizedChain struct{ vm *VM }

func (c *finalizedChain) BlockInfo(height uint64) (mmr.BlockInfo, bool, error) {
	c.vm.lock.RLock()
	defer c.vm.lock.RUnlock()
	return c.vm.runtime.Queries(c.vm.state).MMRBlockInfo(height)
}

func (c *finalizedChain) ParentOf(height uint64) (ids.ID, error) {
	c.vm.lock.RLock()
	defer c.vm.lock.RUnlock()

	ctx := context.Background()
	blkID, err := c.vm.GetBlockIDAtHeight(ctx, height)
	if err != nil {
		return ids.Empty, err
	}
	blk, err := c.vm.GetBlock(ctx, blkID)
	if err != nil {
		return ids.Empty, err
	}
	return blk.PrntID, nil
}
