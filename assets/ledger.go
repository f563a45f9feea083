// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package assets is a multi-asset balance ledger with named holds.
package assets

import (
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/acurast/acurastvm/types"
)

const (
	balancePrefix byte = iota
	holdPrefix
	issuancePrefix
)

// HoldReason namespaces the funds an account has on hold.
type HoldReason string

// Ledger reads and writes balances in [db]. It holds no state of its own, so
// a Ledger over a nested database commits or aborts together with it.
type Ledger struct {
	db database.Database
}

func New(db database.Database) *Ledger {
	return &Ledger{db: db}
}

// NewPrefixed returns a ledger namespaced under [prefix] in [db].
func NewPrefixed(prefix []byte, db database.Database) *Ledger {
	return New(prefixdb.New(prefix, db))
}

func balanceKey(asset types.AssetID, account types.AccountID) []byte {
	key := make([]byte, 0, 1+4+len(account))
	key = append(key, balancePrefix)
	key = append(key, types.Uint32Bytes(uint32(asset))...)
	return append(key, account[:]...)
}

func holdKey(asset types.AssetID, account types.AccountID, reason HoldReason) []byte {
	key := make([]byte, 0, 1+4+len(account)+len(reason))
	key = append(key, holdPrefix)
	key = append(key, types.Uint32Bytes(uint32(asset))...)
	key = append(key, account[:]...)
	return append(key, reason...)
}

func issuanceKey(asset types.AssetID) []byte {
	return append([]byte{issuancePrefix}, types.Uint32Bytes(uint32(asset))...)
}

func (l *Ledger) get(key []byte) (types.Balance, error) {
	v, err := database.GetUInt64(l.db, key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return v, nil
}

func (l *Ledger) put(key []byte, v types.Balance) error {
	if v == 0 {
		return l.db.Delete(key)
	}
	return database.PutUInt64(l.db, key, v)
}

func (l *Ledger) add(key []byte, amount types.Balance) error {
	current, err := l.get(key)
	if err != nil {
		return err
	}
	next, err := safemath.Add64(current, amount)
	if err != nil {
		return ErrOverflow
	}
	return l.put(key, next)
}

func (l *Ledger) sub(key []byte, amount types.Balance, insufficient error) error {
	current, err := l.get(key)
	if err != nil {
		return err
	}
	if current < amount {
		return errorsmod.Wrapf(insufficient, "have %d, need %d", current, amount)
	}
	return l.put(key, current-amount)
}

// BalanceOf returns the free balance of [account].
func (l *Ledger) BalanceOf(asset types.AssetID, account types.AccountID) (types.Balance, error) {
	return l.get(balanceKey(asset, account))
}

// BalanceOnHold returns the amount [account] has on hold for [reason].
func (l *Ledger) BalanceOnHold(asset types.AssetID, account types.AccountID, reason HoldReason) (types.Balance, error) {
	return l.get(holdKey(asset, account, reason))
}

// TotalIssuance returns the amount of [asset] ever minted.
func (l *Ledger) TotalIssuance(asset types.AssetID) (types.Balance, error) {
	return l.get(issuanceKey(asset))
}

// Mint credits newly issued funds to [account].
func (l *Ledger) Mint(asset types.AssetID, account types.AccountID, amount types.Balance) error {
	if err := l.add(issuanceKey(asset), amount); err != nil {
		return err
	}
	return l.add(balanceKey(asset, account), amount)
}

// Transfer moves free funds between accounts.
func (l *Ledger) Transfer(asset types.AssetID, from, to types.AccountID, amount types.Balance) error {
	if err := l.sub(balanceKey(asset, from), amount, ErrInsufficientBalance); err != nil {
		return err
	}
	return l.add(balanceKey(asset, to), amount)
}

// Hold moves free funds of [account] on hold under [reason].
func (l *Ledger) Hold(asset types.AssetID, account types.AccountID, reason HoldReason, amount types.Balance) error {
	if err := l.sub(balanceKey(asset, account), amount, ErrInsufficientBalance); err != nil {
		return err
	}
	return l.add(holdKey(asset, account, reason), amount)
}

// Release returns held funds to the free balance of [account].
func (l *Ledger) Release(asset types.AssetID, account types.AccountID, reason HoldReason, amount types.Balance) error {
	if err := l.sub(holdKey(asset, account, reason), amount, ErrInsufficientHold); err != nil {
		return err
	}
	return l.add(balanceKey(asset, account), amount)
}

// TransferOnHold pays held funds of [from] into the free balance of [to].
func (l *Ledger) TransferOnHold(asset types.AssetID, reason HoldReason, from, to types.AccountID, amount types.Balance) error {
	if err := l.sub(holdKey(asset, from, reason), amount, ErrInsufficientHold); err != nil {
		return err
	}
	return l.add(balanceKey(asset, to), amount)
}

// Endowment is a genesis balance.
type Endowment struct {
	Asset   types.AssetID   `json:"asset"`
	Account types.AccountID `json:"account"`
	Amount  types.Balance   `json:"amount"`
}

// InitGenesis mints every endowment.
func (l *Ledger) InitGenesis(endowments []Endowment) error {
	for _, e := range endowments {
		if err := l.Mint(e.Asset, e.Account, e.Amount); err != nil {
			return fmt.Errorf("failed to endow %s: %w", e.Account, err)
		}
	}
	return nil
}
