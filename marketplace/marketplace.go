// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package marketplace implements the job registry, the matcher that pairs
// job slots with advertising processors, and the ledger that pays processors
// for reported executions out of the job's escrow.
//
// A Marketplace is a view over one database. The runtime builds a fresh view
// over the nested database of every extrinsic, so a failed call leaves no
// partial writes behind.
package marketplace

import (
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"

	"github.com/acurast/acurastvm/metrics"
	"github.com/acurast/acurastvm/types"
)

// Currency moves the reward asset between accounts.
type Currency interface {
	Transfer(asset types.AssetID, from, to types.AccountID, amount types.Balance) error
}

// Attestations tells whether a processor runs on attested hardware.
type Attestations interface {
	IsVerified(account types.AccountID, now uint64) (bool, error)
}

// Deps are the collaborators of the marketplace.
type Deps struct {
	Currency     Currency
	Attestations Attestations
	Events       types.EventSink
	Metrics      *metrics.Collector
	Log          log.Logger
}

type Marketplace struct {
	state

	params       Params
	currency     Currency
	attestations Attestations
	events       types.EventSink
	metrics      *metrics.Collector
	log          log.Logger
}

func New(db database.Database, params Params, deps Deps) *Marketplace {
	logger := deps.Log
	if logger == nil {
		logger = log.New("module", ModuleName)
	}
	return &Marketplace{
		state:        newState(db),
		params:       params,
		currency:     deps.Currency,
		attestations: deps.Attestations,
		events:       deps.Events,
		metrics:      deps.Metrics,
		log:          logger,
	}
}

func (m *Marketplace) Params() Params { return m.params }
