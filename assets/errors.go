// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package assets

import (
	errorsmod "cosmossdk.io/errors"
)

const Codespace = "assets"

var (
	ErrInsufficientBalance = errorsmod.Register(Codespace, 2, "insufficient balance")
	ErrInsufficientHold    = errorsmod.Register(Codespace, 3, "insufficient balance on hold")
	ErrOverflow            = errorsmod.Register(Codespace, 4, "balance overflow")
)
