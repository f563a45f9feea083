// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package acurastvm

import (
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/acurast/acurastvm/runtime"
	"github.com/acurast/acurastvm/sdk/stack"
	"github.com/acurast/acurastvm/types"
)

var _ stack.StatelessBlock = (*Block)(nil)

// Block defines a stateless block
type Block struct {
	PrntID ids.ID   `serialize:"true" json:"parentID"`  // parent's ID
	Hght   uint64   `serialize:"true" json:"height"`    // The genesis block is at height 0.
	Tmstmp int64    `serialize:"true" json:"timestamp"` // unix milliseconds
	Txs    [][]byte `serialize:"true" json:"txs"`       // signed extrinsics in execution order

	id    ids.ID
	bytes []byte
	txs   []*runtime.Tx
}

func newBlock(parent ids.ID, height uint64, timestamp int64, txs []*runtime.Tx) (*Block, error) {
	block := &Block{
		PrntID: parent,
		Hght:   height,
		Tmstmp: timestamp,
		Txs:    make([][]byte, len(txs)),
		txs:    txs,
	}
	for i, tx := range txs {
		block.Txs[i] = tx.Bytes()
	}
	bytes, err := Codec.Marshal(CodecVersion, block)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal block: %w", err)
	}
	block.bytes = bytes
	block.id = hashing.ComputeHash256Array(bytes)
	return block, nil
}

// ParseBlock decodes [bytes] and recovers the signer of every extrinsic.
func ParseBlock(bytes []byte) (*Block, error) {
	block := &Block{}
	if _, err := Codec.Unmarshal(bytes, block); err != nil {
		return nil, err
	}
	block.txs = make([]*runtime.Tx, len(block.Txs))
	for i, txBytes := range block.Txs {
		tx, err := runtime.ParseTx(txBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tx %d: %w", i, err)
		}
		block.txs[i] = tx
	}
	block.bytes = bytes
	block.id = hashing.ComputeHash256Array(bytes)
	return block, nil
}

func (b *Block) ID() ids.ID { return b.id }

func (b *Block) Parent() ids.ID { return b.PrntID }

func (b *Block) Height() uint64 { return b.Hght }

func (b *Block) Timestamp() time.Time { return time.UnixMilli(b.Tmstmp) }

func (b *Block) Bytes() []byte { return b.bytes }

func (b *Block) Transactions() []*runtime.Tx { return b.txs }

// context is what the pallets see of the block.
func (b *Block) context() types.BlockContext {
	return types.BlockContext{
		Height: b.Hght,
		Parent: b.PrntID,
		Time:   uint64(b.Tmstmp),
	}
}
