// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import (
	errorsmod "cosmossdk.io/errors"
)

const Codespace = "mmr"

var (
	ErrGetRootOnEmpty           = errorsmod.Register(Codespace, 2, "cannot compute the root of an empty mmr")
	ErrInconsistentStore        = errorsmod.Register(Codespace, 3, "mmr store is missing a node")
	ErrNodeProofsNotSupported   = errorsmod.Register(Codespace, 4, "proofs are only supported for leaves")
	ErrGenProofForInvalidLeaves = errorsmod.Register(Codespace, 5, "cannot generate a proof for the given leaves")
	ErrCorruptedProof           = errorsmod.Register(Codespace, 6, "corrupted proof")
	ErrPositionOverflow         = errorsmod.Register(Codespace, 7, "mmr position overflow")
	ErrInvalidSize              = errorsmod.Register(Codespace, 8, "mmr size does not describe a valid mountain range")
)
