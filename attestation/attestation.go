// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package attestation stores hardware attestations of processors.
package attestation

import (
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/database"

	"github.com/acurast/acurastvm/types"
)

const (
	Codespace    = "attestation"
	codecVersion = 0
)

var (
	ErrInvalidValidity = errorsmod.Register(Codespace, 2, "attestation expires before it is issued")
	ErrNotFound        = errorsmod.Register(Codespace, 3, "attestation not found")

	Codec codec.Manager
)

func init() {
	Codec = codec.NewDefaultManager()
	if err := Codec.RegisterCodec(codecVersion, linearcodec.NewDefault()); err != nil {
		panic(err)
	}
}

// Attestation is the validity window of a verified key attestation, in unix
// milliseconds.
type Attestation struct {
	IssuedAt  uint64 `serialize:"true" json:"issuedAt"`
	ExpiresAt uint64 `serialize:"true" json:"expiresAt"`
}

// Store keys attestations by account.
type Store struct {
	db database.Database
}

func New(db database.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Put(account types.AccountID, a Attestation) error {
	if a.ExpiresAt <= a.IssuedAt {
		return ErrInvalidValidity
	}
	bytes, err := Codec.Marshal(codecVersion, &a)
	if err != nil {
		return fmt.Errorf("failed to marshal attestation: %w", err)
	}
	return s.db.Put(account[:], bytes)
}

func (s *Store) Get(account types.AccountID) (Attestation, error) {
	bytes, err := s.db.Get(account[:])
	if errors.Is(err, database.ErrNotFound) {
		return Attestation{}, errorsmod.Wrap(ErrNotFound, account.String())
	}
	if err != nil {
		return Attestation{}, err
	}
	var a Attestation
	if _, err := Codec.Unmarshal(bytes, &a); err != nil {
		return Attestation{}, fmt.Errorf("failed to unmarshal attestation: %w", err)
	}
	return a, nil
}

// IsVerified reports whether [account] holds an attestation valid at [now].
func (s *Store) IsVerified(account types.AccountID, now uint64) (bool, error) {
	a, err := s.Get(account)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.IssuedAt <= now && now < a.ExpiresAt, nil
}
