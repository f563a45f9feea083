// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package acurastvm

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"

	"github.com/acurast/acurastvm/runtime"
)

const CodecVersion = 0

// Codec marshals blocks and the receipts stored next to them.
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()
	if err := Codec.RegisterCodec(CodecVersion, c); err != nil {
		panic(err)
	}
}

type blockReceipts struct {
	Receipts []runtime.Receipt `serialize:"true"`
}
