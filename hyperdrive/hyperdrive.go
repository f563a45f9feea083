// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hyperdrive relays messages between Acurast and the proxy chains.
//
// Outgoing messages are appended to a Merkle Mountain Range whose snapshot
// roots are posted to the target chains, so each message can be proven
// there. Delivery is confirmed by oracle signatures, which releases the fee
// escrowed by the sender to the relayer. Incoming messages are accepted on
// oracle signatures and deduplicated by id, then handed to a
// MessageProcessor.
package hyperdrive

import (
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"

	"github.com/acurast/acurastvm/assets"
	"github.com/acurast/acurastvm/metrics"
	"github.com/acurast/acurastvm/mmr"
	"github.com/acurast/acurastvm/signature"
	"github.com/acurast/acurastvm/types"
)

// FeeHold is the hold reason of fees escrowed for outgoing messages.
const FeeHold assets.HoldReason = "hyperdrive/outgoing"

// Currency escrows message fees in the native asset.
type Currency interface {
	Hold(asset types.AssetID, account types.AccountID, reason assets.HoldReason, amount types.Balance) error
	Release(asset types.AssetID, account types.AccountID, reason assets.HoldReason, amount types.Balance) error
	TransferOnHold(asset types.AssetID, reason assets.HoldReason, from, to types.AccountID, amount types.Balance) error
}

// MessageProcessor handles a received message. [db] is a nested view of the
// whole state: its writes are kept only if Process returns nil.
type MessageProcessor interface {
	Process(db database.Database, block types.BlockContext, msg Message) error
}

// Deps are the collaborators of the relay.
type Deps struct {
	Currency  Currency
	Verifier  signature.Verifier
	Processor MessageProcessor
	Events    types.EventSink
	Metrics   *metrics.Collector
	Log       log.Logger
}

// Relay is a view of the hyperdrive state of one database. [db] is the
// database of the executing extrinsic; the relay keeps its records under its
// own prefix.
type Relay struct {
	state

	db        database.Database
	params    Params
	currency  Currency
	verifier  signature.Verifier
	processor MessageProcessor
	events    types.EventSink
	metrics   *metrics.Collector
	log       log.Logger
}

// Prefix namespaces the relay's records in the state.
var Prefix = []byte(ModuleName)

func New(db database.Database, params Params, deps Deps) *Relay {
	logger := deps.Log
	if logger == nil {
		logger = log.New("module", ModuleName)
	}
	verifier := deps.Verifier
	if verifier == nil {
		verifier = signature.Default{}
	}
	return &Relay{
		state:     newState(prefixdb.New(Prefix, db)),
		db:        db,
		params:    params,
		currency:  deps.Currency,
		verifier:  verifier,
		processor: deps.Processor,
		events:    deps.Events,
		metrics:   deps.Metrics,
		log:       logger,
	}
}

func (r *Relay) Params() Params { return r.params }

// Chain is the state side of the message mmr.
func (r *Relay) Chain() *mmr.ChainStore { return r.chain }

// process runs the processor on a nested database so that its failure does
// not undo the receipt.
func (r *Relay) process(block types.BlockContext, msg Message) error {
	if r.processor == nil {
		return nil
	}
	nested := versiondb.New(r.db)
	if err := r.processor.Process(nested, block, msg); err != nil {
		nested.Abort()
		return err
	}
	return nested.Commit()
}
