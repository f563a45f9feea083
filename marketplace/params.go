// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	"fmt"

	"github.com/acurast/acurastvm/reputation"
	"github.com/acurast/acurastvm/types"
)

// Params are the runtime constants of the marketplace.
type Params struct {
	MaxAllowedSources   int
	MaxAllowedConsumers int
	MaxSlots            uint8
	MaxProposedMatches  int
	MaxPubKeys          int
	MaxEnvVars          int
	MaxEnvKeyLen        int
	MaxEnvValueLen      int
	// ReportTolerance is how long after an execution ends its report is
	// still accepted, in milliseconds.
	ReportTolerance uint64
	FeePercentage   types.Percent
	FeeManager      types.AccountID
	ReputationDecay types.Permill
	// FulfillmentFee is escrowed per slot and execution on top of the reward
	// and paid to the source with each report.
	FulfillmentFee types.Balance
}

func DefaultParams() Params {
	return Params{
		MaxAllowedSources:   1000,
		MaxAllowedConsumers: 100,
		MaxSlots:            64,
		MaxProposedMatches:  10,
		MaxPubKeys:          8,
		MaxEnvVars:          50,
		MaxEnvKeyLen:        32,
		MaxEnvValueLen:      1024,
		ReportTolerance:     120_000,
		FeePercentage:       30,
		FeeManager:          types.PalletAccount("marketplace/fees"),
		ReputationDecay:     reputation.DefaultDecay,
	}
}

func (p Params) Validate() error {
	switch {
	case !p.FeePercentage.Valid():
		return fmt.Errorf("fee percentage %d exceeds 100", p.FeePercentage)
	case !p.ReputationDecay.Valid():
		return fmt.Errorf("reputation decay %d exceeds one", p.ReputationDecay)
	case p.MaxSlots == 0:
		return fmt.Errorf("max slots must be positive")
	case p.MaxAllowedSources <= 0 || p.MaxAllowedConsumers <= 0 || p.MaxProposedMatches <= 0:
		return fmt.Errorf("list bounds must be positive")
	}
	return nil
}

// EscrowAccount holds the rewards of every registered job.
var EscrowAccount = types.PalletAccount("marketplace/escrow")
