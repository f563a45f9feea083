// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package actions turns messages received over hyperdrive into marketplace
// calls made on behalf of the sending contract.
package actions

import (
	"fmt"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/acurast/acurastvm/marketplace"
	"github.com/acurast/acurastvm/types"
)

const CodecVersion = 0

// Action is the payload of a message sent to the marketplace.
type Action interface {
	isAction()
}

type (
	// RegisterJob registers a job under the sender's sequence [Seq].
	RegisterJob struct {
		Seq          types.JobIDSequence         `serialize:"true" json:"seq"`
		Registration marketplace.JobRegistration `serialize:"true" json:"registration"`
	}
	DeregisterJob struct {
		Seq types.JobIDSequence `serialize:"true" json:"seq"`
	}
	FinalizeJob struct {
		Seqs []types.JobIDSequence `serialize:"true" json:"seqs"`
	}
	SetJobEnvironment struct {
		Seq         types.JobIDSequence     `serialize:"true" json:"seq"`
		Source      types.AccountID         `serialize:"true" json:"source"`
		Environment marketplace.Environment `serialize:"true" json:"environment"`
	}
	Noop struct{}
	// RegisterJobABI carries an ABI-encoded AcurastJobRegistration, the
	// form Ethereum contracts emit.
	RegisterJobABI struct {
		Seq          types.JobIDSequence `serialize:"true" json:"seq"`
		Registration []byte              `serialize:"true" json:"registration"`
	}
)

func (*RegisterJob) isAction()       {}
func (*DeregisterJob) isAction()     {}
func (*FinalizeJob) isAction()       {}
func (*SetJobEnvironment) isAction() {}
func (*Noop) isAction()              {}
func (*RegisterJobABI) isAction()    {}

// Codec registers the variants in wire order; the type id of a variant is
// its index.
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	errs := wrappers.Errs{}
	errs.Add(
		c.RegisterType(&RegisterJob{}),
		c.RegisterType(&DeregisterJob{}),
		c.RegisterType(&FinalizeJob{}),
		c.RegisterType(&SetJobEnvironment{}),
		c.RegisterType(&Noop{}),
		c.RegisterType(&RegisterJobABI{}),
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}

type envelope struct {
	Action Action `serialize:"true"`
}

// Encode is the payload a proxy contract sends for [action].
func Encode(action Action) ([]byte, error) {
	return Codec.Marshal(CodecVersion, &envelope{Action: action})
}

func Decode(payload []byte) (Action, error) {
	var e envelope
	if _, err := Codec.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("failed to decode action: %w", err)
	}
	if e.Action == nil {
		return nil, fmt.Errorf("empty action")
	}
	return e.Action, nil
}
