// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types holds the primitives shared by every Acurast pallet.
package types

import (
	"encoding/binary"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

type (
	// AccountID identifies an account on the Acurast chain.
	AccountID = ids.ShortID
	// AssetID identifies a fungible asset. Asset 0 is the native token.
	AssetID uint32
	// Balance is an amount of some asset.
	Balance = uint64
	// BlockNumber is a block height.
	BlockNumber = uint64
)

// NativeAsset is the asset transaction fees and Hyperdrive fees are paid in.
const NativeAsset AssetID = 0

// PalletAccount derives the account a pallet holds funds with.
func PalletAccount(name string) AccountID {
	return ids.ShortID(hashing.ComputeHash160Array([]byte("acurast/pallet/" + name)))
}

// Uint64Bytes returns the big endian encoding of [v], used for ordered keys.
func Uint64Bytes(v uint64) []byte {
	b := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Uint32Bytes returns the big endian encoding of [v].
func Uint32Bytes(v uint32) []byte {
	b := make([]byte, wrappers.IntLen)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// BlockContext is the block an extrinsic executes in.
type BlockContext struct {
	Height uint64
	Parent ids.ID
	// Time is the block timestamp in unix milliseconds.
	Time uint64
}
