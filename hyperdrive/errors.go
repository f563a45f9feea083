// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	errorsmod "cosmossdk.io/errors"
)

const Codespace = "hyperdrive"

var (
	ErrTTLSmallerThanMinimum        = errorsmod.Register(Codespace, 2, "ttl smaller than minimum")
	ErrMessageWithSameNoncePending  = errorsmod.Register(Codespace, 3, "a message with the same nonce is pending")
	ErrMessageNotFound              = errorsmod.Register(Codespace, 4, "message not found")
	ErrDeliveryConfirmationOverdue  = errorsmod.Register(Codespace, 5, "delivery confirmation overdue")
	ErrNotEnoughValidSignatures     = errorsmod.Register(Codespace, 6, "not enough valid signatures")
	ErrSignatureInvalid             = errorsmod.Register(Codespace, 7, "invalid signature from an active oracle")
	ErrMessageAlreadyReceived       = errorsmod.Register(Codespace, 8, "message already received")
	ErrIncorrectRecipient           = errorsmod.Register(Codespace, 9, "recipient does not address this chain")
	ErrCannotRemoveMessageBeforeTTL = errorsmod.Register(Codespace, 10, "message can only be removed after its ttl")
	ErrTooManyMessagesToClean       = errorsmod.Register(Codespace, 11, "too many messages to clean")
	ErrNotUpdater                   = errorsmod.Register(Codespace, 12, "caller is not the oracle updater")
	ErrInvalidSubject               = errorsmod.Register(Codespace, 13, "invalid subject")
	ErrSnapshotNotFound             = errorsmod.Register(Codespace, 14, "snapshot not found")
	ErrInvalidActivityWindow        = errorsmod.Register(Codespace, 15, "activity window ends before it starts")
	ErrPayloadTooLarge              = errorsmod.Register(Codespace, 16, "payload too large")
	ErrTooManyOracleUpdates         = errorsmod.Register(Codespace, 17, "too many oracle updates")
	ErrOracleNotFound               = errorsmod.Register(Codespace, 18, "oracle not found")
)
