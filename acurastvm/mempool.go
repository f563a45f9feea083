// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package acurastvm

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/snow/engine/common"

	"github.com/acurast/acurastvm/runtime"
)

var errMempoolFull = errors.New("mempool is full")

// mempool queues submitted extrinsics in arrival order.
type mempool struct {
	toEngine chan<- common.Message
	txs      chan *runtime.Tx
}

func newMempool(size int, toEngine chan<- common.Message) *mempool {
	return &mempool{
		toEngine: toEngine,
		txs:      make(chan *runtime.Tx, size),
	}
}

func (m *mempool) Add(tx *runtime.Tx) error {
	select {
	case m.txs <- tx:
	default:
		return fmt.Errorf("%w: dropping tx %s at size %d", errMempoolFull, tx.ID(), cap(m.txs))
	}
	m.notify()
	return nil
}

// notify tells the engine a block can be built. It never blocks.
func (m *mempool) notify() {
	select {
	case m.toEngine <- common.PendingTxs:
	default:
	}
}

func (m *mempool) Next() (*runtime.Tx, bool) {
	select {
	case tx := <-m.txs:
		return tx, true
	default:
		return nil, false
	}
}

func (m *mempool) Len() int {
	return len(m.txs)
}
