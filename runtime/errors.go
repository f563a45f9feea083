// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	errorsmod "cosmossdk.io/errors"
)

const Codespace = "runtime"

var (
	ErrBadOrigin        = errorsmod.Register(Codespace, 2, "call not allowed for this signer")
	ErrBadNonce         = errorsmod.Register(Codespace, 3, "unexpected transaction nonce")
	ErrInvalidSignature = errorsmod.Register(Codespace, 4, "invalid transaction signature")
	ErrUnknownCall      = errorsmod.Register(Codespace, 5, "unknown call")
	ErrMalformedTx      = errorsmod.Register(Codespace, 6, "malformed transaction")
)
