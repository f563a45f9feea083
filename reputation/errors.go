// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reputation

import (
	errorsmod "cosmossdk.io/errors"
)

const Codespace = "reputation"

var ErrCalculationOverflow = errorsmod.Register(Codespace, 2, "reputation calculation overflow")
