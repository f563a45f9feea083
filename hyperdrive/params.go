// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	"fmt"

	"github.com/acurast/acurastvm/types"
)

type Params struct {
	// MinTTL is the lowest ttl, in blocks, an outgoing message may carry.
	MinTTL uint64 `json:"minTTL"`

	// IncomingTTL is how many blocks received messages are kept before they
	// can be cleaned.
	IncomingTTL uint64 `json:"incomingTTL"`

	MinDeliveryConfirmationSignatures uint32           `json:"minDeliveryConfirmationSignatures"`
	MinReceiptConfirmationSignatures  uint32           `json:"minReceiptConfirmationSignatures"`
	MaxMessagesCleanup                uint32           `json:"maxMessagesCleanup"`
	MaxOracleUpdates                  uint32           `json:"maxOracleUpdates"`
	MaxPayloadSize                    uint32           `json:"maxPayloadSize"`
	ThisChain                         types.ProxyChain `json:"thisChain"`

	// Updater may change the oracle set.
	Updater types.AccountID `json:"updater"`
}

func DefaultParams() Params {
	return Params{
		MinTTL:                            20,
		IncomingTTL:                       50,
		MinDeliveryConfirmationSignatures: 1,
		MinReceiptConfirmationSignatures:  1,
		MaxMessagesCleanup:                100,
		MaxOracleUpdates:                  50,
		MaxPayloadSize:                    4096,
		ThisChain:                         types.Acurast,
		Updater:                           types.PalletAccount("hyperdrive/updater"),
	}
}

func (p Params) Validate() error {
	switch {
	case p.MinTTL == 0:
		return fmt.Errorf("min ttl must be positive")
	case p.MinDeliveryConfirmationSignatures == 0:
		return fmt.Errorf("at least one delivery confirmation signature must be required")
	case p.MinReceiptConfirmationSignatures == 0:
		return fmt.Errorf("at least one receipt confirmation signature must be required")
	case p.MaxMessagesCleanup == 0:
		return fmt.Errorf("max messages cleanup must be positive")
	case !p.ThisChain.Valid():
		return fmt.Errorf("unknown chain %d", p.ThisChain)
	}
	return nil
}
