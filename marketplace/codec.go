// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketplace

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
)

// CodecVersion is the version stored records are marshalled with.
const CodecVersion = 0

// Codec marshals the records the marketplace stores.
var Codec codec.Manager

func init() {
	Codec = codec.NewDefaultManager()
	if err := Codec.RegisterCodec(CodecVersion, linearcodec.NewDefault()); err != nil {
		panic(err)
	}
}
