// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package runtime composes the pallets into the state transition function of
// a block: extrinsics run one by one, each atomically over its own nested
// database, followed by the end of block hook.
package runtime

import (
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/acurast/acurastvm/actions"
	"github.com/acurast/acurastvm/assets"
	"github.com/acurast/acurastvm/attestation"
	"github.com/acurast/acurastvm/hyperdrive"
	"github.com/acurast/acurastvm/marketplace"
	"github.com/acurast/acurastvm/metrics"
	"github.com/acurast/acurastvm/mmr"
	"github.com/acurast/acurastvm/types"
)

var (
	assetsPrefix      = []byte("assets")
	attestationPrefix = []byte("attestation")
	marketplacePrefix = []byte("marketplace")
	systemPrefix      = []byte("system")
)

type Runtime struct {
	params  Params
	metrics *metrics.Collector
	log     log.Logger
}

func New(params Params, m *metrics.Collector, logger log.Logger) *Runtime {
	if logger == nil {
		logger = log.New("module", "runtime")
	}
	return &Runtime{params: params, metrics: m, log: logger}
}

func (r *Runtime) Params() Params { return r.params }

// pallets is the runtime's view of one database.
type pallets struct {
	system       database.Database
	ledger       *assets.Ledger
	attestations *attestation.Store
	marketplace  *marketplace.Marketplace
	relay        *hyperdrive.Relay
}

func (r *Runtime) open(db database.Database, events types.EventSink) *pallets {
	ledger := assets.NewPrefixed(assetsPrefix, db)
	attestations := attestation.New(prefixdb.New(attestationPrefix, db))
	return &pallets{
		system:       prefixdb.New(systemPrefix, db),
		ledger:       ledger,
		attestations: attestations,
		marketplace: marketplace.New(prefixdb.New(marketplacePrefix, db), r.params.Marketplace, marketplace.Deps{
			Currency:     ledger,
			Attestations: attestations,
			Events:       events,
			Metrics:      r.metrics,
		}),
		relay: hyperdrive.New(db, r.params.Hyperdrive, hyperdrive.Deps{
			Currency:  ledger,
			Processor: &dispatcher{runtime: r, events: events},
			Events:    events,
			Metrics:   r.metrics,
		}),
	}
}

// dispatcher hands received messages to the marketplace. Events of a failed
// message are dropped along with its writes.
type dispatcher struct {
	runtime *Runtime
	events  types.EventSink
}

func (d *dispatcher) Process(db database.Database, block types.BlockContext, msg hyperdrive.Message) error {
	var events types.EventLog
	processor := actions.NewProcessor(func(db database.Database) actions.Marketplace {
		return d.runtime.open(db, &events).marketplace
	}, nil)
	if err := processor.Process(db, block, msg); err != nil {
		return err
	}
	if d.events != nil {
		for _, e := range events.Events {
			d.events.Emit(e)
		}
	}
	return nil
}

// Receipt is the outcome of one extrinsic. Failed extrinsics carry the
// registered codespace and code of their error.
type Receipt struct {
	TxID      ids.ID          `serialize:"true" json:"txId"`
	Signer    types.AccountID `serialize:"true" json:"signer"`
	Success   bool            `serialize:"true" json:"success"`
	Codespace string          `serialize:"true" json:"codespace,omitempty"`
	Code      uint32          `serialize:"true" json:"code,omitempty"`
	Log       string          `serialize:"true" json:"log,omitempty"`
	// FeeWaived is set by cleanups that removed something.
	FeeWaived bool          `serialize:"true" json:"feeWaived"`
	Events    []types.Event `serialize:"true" json:"events"`
}

// Execute applies [tx] to [state]. An error means [tx] cannot be included
// in the block at all. A failing call is included: its writes are
// discarded, the nonce still advances and the receipt reports the failure.
func (r *Runtime) Execute(state database.Database, block types.BlockContext, tx *Tx) (*Receipt, error) {
	signer := tx.Signer()
	system := prefixdb.New(systemPrefix, state)
	nonce, err := getNonce(system, signer)
	if err != nil {
		return nil, err
	}
	if tx.Unsigned.Nonce != nonce {
		return nil, errorsmod.Wrapf(ErrBadNonce, "expected %d, got %d", nonce, tx.Unsigned.Nonce)
	}
	if err := database.PutUInt64(system, signer[:], nonce+1); err != nil {
		return nil, err
	}

	receipt := &Receipt{TxID: tx.ID(), Signer: signer}
	events := &types.EventLog{}
	nested := versiondb.New(state)
	pays, err := r.dispatch(r.open(nested, events), block, signer, tx.Unsigned.Call)
	if err != nil {
		nested.Abort()
		receipt.Codespace, receipt.Code, receipt.Log = errorsmod.ABCIInfo(err, false)
		r.metrics.Extrinsic(false)
		r.log.Debug("extrinsic failed",
			"tx", tx.ID(),
			"signer", signer,
			"call", fmt.Sprintf("%T", tx.Unsigned.Call),
			"error", err,
		)
		return receipt, nil
	}
	if err := nested.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit extrinsic %s: %w", tx.ID(), err)
	}
	receipt.Success = true
	receipt.FeeWaived = pays == hyperdrive.PaysNo
	receipt.Events = events.Events
	r.metrics.Extrinsic(true)
	return receipt, nil
}

func getNonce(system database.KeyValueReader, account types.AccountID) (uint64, error) {
	nonce, err := database.GetUInt64(system, account[:])
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return nonce, err
}

func (r *Runtime) dispatch(p *pallets, block types.BlockContext, signer types.AccountID, call Call) (hyperdrive.Pays, error) {
	origin := types.AcurastOrigin(signer)
	m := p.marketplace
	switch c := call.(type) {
	case *Transfer:
		return hyperdrive.PaysYes, p.ledger.Transfer(c.Asset, signer, c.To, c.Amount)
	case *RegisterJob:
		_, err := m.Register(signer, &c.Registration, block.Time)
		return hyperdrive.PaysYes, err
	case *DeregisterJob:
		return hyperdrive.PaysYes, m.Deregister(origin, c.JobID)
	case *UpdateAllowedSources:
		return hyperdrive.PaysYes, m.UpdateAllowedSources(origin, c.JobID, c.Updates)
	case *SetEnvironment:
		return hyperdrive.PaysYes, m.SetEnvironment(origin, c.JobID, c.Source, &c.Environment)
	case *FinalizeJob:
		return hyperdrive.PaysYes, m.FinalizeJob(origin, c.JobID, block.Time)
	case *Advertise:
		return hyperdrive.PaysYes, m.Advertise(signer, &c.Advertisement)
	case *DeleteAdvertisement:
		return hyperdrive.PaysYes, m.DeleteAdvertisement(signer)
	case *ProposeMatching:
		return hyperdrive.PaysYes, m.ProposeMatching(c.Matches, block.Time)
	case *MatchJob:
		return hyperdrive.PaysYes, m.MatchJob(c.JobID, block.Time)
	case *AcknowledgeMatch:
		return hyperdrive.PaysYes, m.Acknowledge(signer, c.JobID, c.PubKeys)
	case *Report:
		return hyperdrive.PaysYes, m.Report(signer, c.JobID, c.IsLast, c.Result, block.Time)
	case *Heartbeat:
		return hyperdrive.PaysYes, m.Heartbeat(signer, block.Time)
	case *SubmitAttestation:
		if signer != r.params.Admin {
			return hyperdrive.PaysYes, errorsmod.Wrap(ErrBadOrigin, "only the admin submits attestations")
		}
		return hyperdrive.PaysYes, p.attestations.Put(c.Account, c.Attestation)
	default:
		return r.dispatchHyperdrive(p.relay, block, signer, call)
	}
}

func (r *Runtime) dispatchHyperdrive(relay *hyperdrive.Relay, block types.BlockContext, signer types.AccountID, call Call) (hyperdrive.Pays, error) {
	switch c := call.(type) {
	case *SendMessage:
		recipient, err := c.Recipient.Subject()
		if err != nil {
			return hyperdrive.PaysYes, err
		}
		sender := &hyperdrive.AcurastSubject{Target: hyperdrive.ExtrinsicLayer(signer.Bytes())}
		_, err = relay.SendMessage(block, sender, signer, c.Nonce, recipient, c.Payload, c.TTL, c.Fee)
		return hyperdrive.PaysYes, err
	case *SendTestMessage:
		recipient, err := c.Recipient.Subject()
		if err != nil {
			return hyperdrive.PaysYes, err
		}
		_, err = relay.SendTestMessage(block, signer, recipient)
		return hyperdrive.PaysYes, err
	case *ConfirmMessageDelivery:
		return hyperdrive.PaysYes, relay.ConfirmMessageDelivery(block, signer, c.ID, c.Signatures)
	case *ReceiveMessage:
		sender, err := c.Sender.Subject()
		if err != nil {
			return hyperdrive.PaysYes, err
		}
		recipient, err := c.Recipient.Subject()
		if err != nil {
			return hyperdrive.PaysYes, err
		}
		_, err = relay.ReceiveMessage(block, sender, c.Nonce, recipient, c.Payload, signer, c.Signatures)
		return hyperdrive.PaysYes, err
	case *RemoveMessage:
		return hyperdrive.PaysYes, relay.RemoveMessage(block, c.ID)
	case *CleanOutgoing:
		result, err := relay.CleanOutgoing(block, c.IDs)
		return result.Pays, err
	case *CleanIncoming:
		result, err := relay.CleanIncoming(block, c.IDs)
		return result.Pays, err
	case *UpdateOracles:
		return hyperdrive.PaysYes, relay.UpdateOracles(signer, c.Updates)
	default:
		return hyperdrive.PaysYes, errorsmod.Wrapf(ErrUnknownCall, "%T", call)
	}
}

// Finalization is what the end of block hook produced: the mmr nodes the
// block appended, to be written off-chain, and the hook's events.
type Finalization struct {
	MMR    *mmr.BlockInfo
	Nodes  []mmr.Node
	Events []types.Event
}

// OnFinalize closes the block: it snapshots the message mmr when it grew
// and hands out the block's new nodes.
func (r *Runtime) OnFinalize(state database.Database, block types.BlockContext) (*Finalization, error) {
	events := &types.EventLog{}
	info, nodes, err := r.open(state, events).relay.OnFinalize(block)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize block %d: %w", block.Height, err)
	}
	return &Finalization{MMR: info, Nodes: nodes, Events: events.Events}, nil
}
