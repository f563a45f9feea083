// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ethereum

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/acurast/acurastvm/hyperdrive"
)

var (
	errEmptyProof         = errors.New("empty account proof")
	errAccountNotFound    = errors.New("contract account not in state")
	errSlotNotFound       = errors.New("message slot not in contract storage")
	errCommitmentMismatch = errors.New("stored commitment does not match the message")
)

// MessagesSlot is the storage slot of the hyperdrive contract's
// mapping(bytes32 => bytes32) from message id to message commitment.
const MessagesSlot = 0

// MessageSlot is the storage slot of [id] in the messages mapping.
func MessageSlot(id hyperdrive.MessageID) common.Hash {
	var base [32]byte
	binary.BigEndian.PutUint64(base[24:], MessagesSlot)
	return crypto.Keccak256Hash(id[:], base[:])
}

// MessageCommitment is the value the contract stores for a message.
func MessageCommitment(msg hyperdrive.Message) (common.Hash, error) {
	bytes, err := msg.Bytes()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(bytes), nil
}

// StorageProof proves that the hyperdrive contract at Contract stored the
// commitment of Msg. AccountProof and StorageProof are the node lists of
// eth_getProof, root first.
type StorageProof struct {
	Contract     common.Address
	AccountProof [][]byte
	StorageProof [][]byte
	Msg          hyperdrive.Message
}

func (p *StorageProof) MessageID() hyperdrive.MessageID { return p.Msg.ID }

func (p *StorageProof) Message() hyperdrive.Message { return p.Msg }

// CalculateRoot checks the proof and returns the state root it is rooted in.
func (p *StorageProof) CalculateRoot() (common.Hash, error) {
	if len(p.AccountProof) == 0 {
		return common.Hash{}, errEmptyProof
	}
	stateRoot := crypto.Keccak256Hash(p.AccountProof[0])

	accountRLP, err := verify(stateRoot, crypto.Keccak256(p.Contract[:]), p.AccountProof)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid account proof: %w", err)
	}
	if accountRLP == nil {
		return common.Hash{}, errAccountNotFound
	}
	var account gethtypes.StateAccount
	if err := rlp.DecodeBytes(accountRLP, &account); err != nil {
		return common.Hash{}, fmt.Errorf("failed to decode account: %w", err)
	}

	slot := MessageSlot(p.Msg.ID)
	valueRLP, err := verify(account.Root, crypto.Keccak256(slot[:]), p.StorageProof)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid storage proof: %w", err)
	}
	if valueRLP == nil {
		return common.Hash{}, errSlotNotFound
	}
	var stored []byte
	if err := rlp.DecodeBytes(valueRLP, &stored); err != nil {
		return common.Hash{}, fmt.Errorf("failed to decode slot value: %w", err)
	}
	commitment, err := MessageCommitment(p.Msg)
	if err != nil {
		return common.Hash{}, err
	}
	if common.BytesToHash(stored) != commitment {
		return common.Hash{}, errCommitmentMismatch
	}
	return stateRoot, nil
}

func verify(root common.Hash, key []byte, nodes [][]byte) ([]byte, error) {
	db := memorydb.New()
	for _, node := range nodes {
		if err := db.Put(crypto.Keccak256(node), node); err != nil {
			return nil, err
		}
	}
	return trie.VerifyProof(root, key, db)
}
