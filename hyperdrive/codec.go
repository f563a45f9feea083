// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const CodecVersion = 0

// Codec marshals messages and the records of the relay. Subject variants are
// registered in chain order, so the type id of a variant is its chain index.
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	errs := wrappers.Errs{}
	errs.Add(
		c.RegisterType(&AcurastSubject{}),
		c.RegisterType(&TezosSubject{}),
		c.RegisterType(&EthereumSubject{}),
		c.RegisterType(&AlephZeroSubject{}),
		c.RegisterType(&VaraSubject{}),
		c.RegisterType(&SolanaSubject{}),
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}
