// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package assets

import (
	"math"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/acurast/acurastvm/types"
)

var (
	alice = ids.ShortID{1}
	bob   = ids.ShortID{2}
)

func TestTransfer(t *testing.T) {
	require := require.New(t)
	l := New(memdb.New())

	require.NoError(l.Mint(types.NativeAsset, alice, 100))
	require.NoError(l.Transfer(types.NativeAsset, alice, bob, 40))

	balance, err := l.BalanceOf(types.NativeAsset, alice)
	require.NoError(err)
	require.Equal(uint64(60), balance)
	balance, err = l.BalanceOf(types.NativeAsset, bob)
	require.NoError(err)
	require.Equal(uint64(40), balance)

	require.ErrorIs(l.Transfer(types.NativeAsset, bob, alice, 41), ErrInsufficientBalance)

	// assets are independent
	balance, err = l.BalanceOf(1, alice)
	require.NoError(err)
	require.Zero(balance)

	issuance, err := l.TotalIssuance(types.NativeAsset)
	require.NoError(err)
	require.Equal(uint64(100), issuance)
}

func TestHolds(t *testing.T) {
	require := require.New(t)
	l := New(memdb.New())
	const reason HoldReason = "fee"

	require.NoError(l.Mint(types.NativeAsset, alice, 100))
	require.NoError(l.Hold(types.NativeAsset, alice, reason, 30))
	require.ErrorIs(l.Hold(types.NativeAsset, alice, reason, 71), ErrInsufficientBalance)

	held, err := l.BalanceOnHold(types.NativeAsset, alice, reason)
	require.NoError(err)
	require.Equal(uint64(30), held)

	require.NoError(l.Release(types.NativeAsset, alice, reason, 10))
	require.NoError(l.TransferOnHold(types.NativeAsset, reason, alice, bob, 20))
	require.ErrorIs(l.TransferOnHold(types.NativeAsset, reason, alice, bob, 1), ErrInsufficientHold)

	free, err := l.BalanceOf(types.NativeAsset, alice)
	require.NoError(err)
	require.Equal(uint64(80), free)
	free, err = l.BalanceOf(types.NativeAsset, bob)
	require.NoError(err)
	require.Equal(uint64(20), free)
}

func TestMintOverflow(t *testing.T) {
	require := require.New(t)
	l := New(memdb.New())

	require.NoError(l.Mint(types.NativeAsset, alice, math.MaxUint64))
	require.ErrorIs(l.Mint(types.NativeAsset, bob, 1), ErrOverflow)
}

func TestAbortDiscardsWrites(t *testing.T) {
	require := require.New(t)
	base := memdb.New()
	require.NoError(New(base).Mint(types.NativeAsset, alice, 10))

	vdb := versiondb.New(base)
	l := New(vdb)
	require.NoError(l.Transfer(types.NativeAsset, alice, bob, 10))
	vdb.Abort()

	balance, err := New(base).BalanceOf(types.NativeAsset, alice)
	require.NoError(err)
	require.Equal(uint64(10), balance)
}
