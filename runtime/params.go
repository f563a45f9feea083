// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"

	"github.com/acurast/acurastvm/hyperdrive"
	"github.com/acurast/acurastvm/marketplace"
	"github.com/acurast/acurastvm/types"
)

// Params are the constants of every pallet.
type Params struct {
	Marketplace marketplace.Params `json:"marketplace"`
	Hyperdrive  hyperdrive.Params  `json:"hyperdrive"`

	// Admin submits attestations.
	Admin types.AccountID `json:"admin"`
}

func DefaultParams() Params {
	return Params{
		Marketplace: marketplace.DefaultParams(),
		Hyperdrive:  hyperdrive.DefaultParams(),
		Admin:       types.PalletAccount("runtime/admin"),
	}
}

func (p Params) Validate() error {
	if err := p.Marketplace.Validate(); err != nil {
		return fmt.Errorf("invalid marketplace params: %w", err)
	}
	if err := p.Hyperdrive.Validate(); err != nil {
		return fmt.Errorf("invalid hyperdrive params: %w", err)
	}
	return nil
}
