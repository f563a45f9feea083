// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import (
	"encoding/binary"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
)

const codecVersion = 0

var Codec codec.Manager

func init() {
	Codec = codec.NewDefaultManager()
	if err := Codec.RegisterCodec(codecVersion, linearcodec.NewDefault()); err != nil {
		panic(err)
	}
}

func posKey(pos uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, pos)
	return key
}
