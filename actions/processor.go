// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"

	"github.com/acurast/acurastvm/hyperdrive"
	"github.com/acurast/acurastvm/hyperdrive/ethereum"
	"github.com/acurast/acurastvm/marketplace"
	"github.com/acurast/acurastvm/types"
)

// Marketplace is the part of the marketplace actions are dispatched to.
type Marketplace interface {
	RegisterWithID(id types.JobID, reg *marketplace.JobRegistration, now uint64) error
	Deregister(origin types.MultiOrigin, id types.JobID) error
	FinalizeJob(origin types.MultiOrigin, id types.JobID, now uint64) error
	SetEnvironment(origin types.MultiOrigin, id types.JobID, source types.AccountID, env *marketplace.Environment) error
}

// MarketplaceFactory builds the marketplace over the database a message is
// processed in.
type MarketplaceFactory func(db database.Database) Marketplace

// Processor is the hyperdrive.MessageProcessor of the marketplace.
type Processor struct {
	marketplace MarketplaceFactory
	log         log.Logger
}

var _ hyperdrive.MessageProcessor = (*Processor)(nil)

func NewProcessor(factory MarketplaceFactory, logger log.Logger) *Processor {
	if logger == nil {
		logger = log.New("module", "actions")
	}
	return &Processor{marketplace: factory, log: logger}
}

// Process decodes the action carried by [msg] and executes it with the
// sender as origin. Jobs are keyed by the sender and the sequence it chose.
func (p *Processor) Process(db database.Database, block types.BlockContext, msg hyperdrive.Message) error {
	action, err := Decode(msg.Payload)
	if err != nil {
		return err
	}
	origin := hyperdrive.Origin(msg.Sender)
	m := p.marketplace(db)
	jobID := func(seq types.JobIDSequence) types.JobID {
		return types.JobID{Origin: origin, Seq: seq}
	}

	p.log.Debug("processing action",
		"message", msg.ID,
		"origin", origin,
		"action", fmt.Sprintf("%T", action),
	)
	switch a := action.(type) {
	case *RegisterJob:
		return m.RegisterWithID(jobID(a.Seq), &a.Registration, block.Time)
	case *RegisterJobABI:
		reg, err := ethereum.DecodeJobRegistration(a.Registration)
		if err != nil {
			return err
		}
		return m.RegisterWithID(jobID(a.Seq), reg, block.Time)
	case *DeregisterJob:
		return m.Deregister(origin, jobID(a.Seq))
	case *FinalizeJob:
		for _, seq := range a.Seqs {
			if err := m.FinalizeJob(origin, jobID(seq), block.Time); err != nil {
				return err
			}
		}
		return nil
	case *SetJobEnvironment:
		return m.SetEnvironment(origin, jobID(a.Seq), a.Source, &a.Environment)
	case *Noop:
		return nil
	default:
		return fmt.Errorf("unknown action %T", action)
	}
}
