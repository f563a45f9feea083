// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrProofRootMismatch is returned when a proof does not lead to the trusted
// root.
var ErrProofRootMismatch = errorsmod.Register(Codespace, 19, "proof does not match the trusted root")

// Proof proves that a proxy chain committed to a message. Each target chain
// provides its own encoding.
type Proof interface {
	CalculateRoot() (common.Hash, error)
	MessageID() MessageID
	Message() Message
}

// VerifyProof returns the message of [proof] if it leads to [trustedRoot]
// and its id matches its content.
func VerifyProof(proof Proof, trustedRoot common.Hash) (Message, error) {
	root, err := proof.CalculateRoot()
	if err != nil {
		return Message{}, err
	}
	if root != trustedRoot {
		return Message{}, errorsmod.Wrapf(ErrProofRootMismatch, "%s != %s", root, trustedRoot)
	}
	msg := proof.Message()
	id, err := ComputeMessageID(msg.Sender, msg.Nonce)
	if err != nil {
		return Message{}, err
	}
	if id != proof.MessageID() || id != msg.ID {
		return Message{}, errorsmod.Wrap(ErrProofRootMismatch, "message id does not match its sender and nonce")
	}
	return msg, nil
}
