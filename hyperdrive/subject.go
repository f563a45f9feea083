// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hyperdrive

import (
	"bytes"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/acurast/acurastvm/types"
)

const (
	// SelectorLen is the length of a contract entry point selector.
	SelectorLen = 4
	// maxTezosAddressLen bounds the variable length tezos addresses.
	maxTezosAddressLen = 36
)

// LayerKind tells whether a subject is an account or a contract entry point.
type LayerKind uint8

const (
	Extrinsic LayerKind = iota
	Contract
)

// Layer is the endpoint of a subject on its chain.
type Layer struct {
	Kind     LayerKind `serialize:"true" json:"kind"`
	Address  []byte    `serialize:"true" json:"address"`
	Selector []byte    `serialize:"true" json:"selector,omitempty"`
}

func ExtrinsicLayer(address []byte) Layer {
	return Layer{Kind: Extrinsic, Address: address}
}

func ContractLayer(address, selector []byte) Layer {
	return Layer{Kind: Contract, Address: address, Selector: selector}
}

func (l Layer) Equal(other Layer) bool {
	return l.Kind == other.Kind &&
		bytes.Equal(l.Address, other.Address) &&
		bytes.Equal(l.Selector, other.Selector)
}

// Subject addresses a sender or recipient of a message on one of the proxy
// chains. Each chain is a distinct variant in the wire format.
type Subject interface {
	Chain() types.ProxyChain
	Endpoint() Layer
	isSubject()
}

type (
	AcurastSubject   struct{ Target Layer `serialize:"true" json:"target"` }
	TezosSubject     struct{ Target Layer `serialize:"true" json:"target"` }
	EthereumSubject  struct{ Target Layer `serialize:"true" json:"target"` }
	AlephZeroSubject struct{ Target Layer `serialize:"true" json:"target"` }
	VaraSubject      struct{ Target Layer `serialize:"true" json:"target"` }
	SolanaSubject    struct{ Target Layer `serialize:"true" json:"target"` }
)

func (*AcurastSubject) Chain() types.ProxyChain   { return types.Acurast }
func (*TezosSubject) Chain() types.ProxyChain     { return types.Tezos }
func (*EthereumSubject) Chain() types.ProxyChain  { return types.Ethereum }
func (*AlephZeroSubject) Chain() types.ProxyChain { return types.AlephZero }
func (*VaraSubject) Chain() types.ProxyChain      { return types.Vara }
func (*SolanaSubject) Chain() types.ProxyChain    { return types.Solana }

func (s *AcurastSubject) Endpoint() Layer   { return s.Target }
func (s *TezosSubject) Endpoint() Layer     { return s.Target }
func (s *EthereumSubject) Endpoint() Layer  { return s.Target }
func (s *AlephZeroSubject) Endpoint() Layer { return s.Target }
func (s *VaraSubject) Endpoint() Layer      { return s.Target }
func (s *SolanaSubject) Endpoint() Layer    { return s.Target }

func (*AcurastSubject) isSubject()   {}
func (*TezosSubject) isSubject()     {}
func (*EthereumSubject) isSubject()  {}
func (*AlephZeroSubject) isSubject() {}
func (*VaraSubject) isSubject()      {}
func (*SolanaSubject) isSubject()    {}

// NewSubject builds the variant of [chain].
func NewSubject(chain types.ProxyChain, target Layer) (Subject, error) {
	switch chain {
	case types.Acurast:
		return &AcurastSubject{Target: target}, nil
	case types.Tezos:
		return &TezosSubject{Target: target}, nil
	case types.Ethereum:
		return &EthereumSubject{Target: target}, nil
	case types.AlephZero:
		return &AlephZeroSubject{Target: target}, nil
	case types.Vara:
		return &VaraSubject{Target: target}, nil
	case types.Solana:
		return &SolanaSubject{Target: target}, nil
	default:
		return nil, errorsmod.Wrapf(ErrInvalidSubject, "unknown chain %d", chain)
	}
}

// VerifySubject checks the address and selector lengths of [s].
func VerifySubject(s Subject) error {
	if s == nil {
		return errorsmod.Wrap(ErrInvalidSubject, "missing subject")
	}
	target := s.Endpoint()
	switch target.Kind {
	case Extrinsic:
		if len(target.Selector) != 0 {
			return errorsmod.Wrap(ErrInvalidSubject, "extrinsic with selector")
		}
	case Contract:
		if len(target.Selector) != SelectorLen {
			return errorsmod.Wrapf(ErrInvalidSubject, "selector of %d bytes", len(target.Selector))
		}
	default:
		return errorsmod.Wrapf(ErrInvalidSubject, "unknown layer %d", target.Kind)
	}

	expected, err := s.Chain().AddressLen()
	if err != nil {
		return errorsmod.Wrap(ErrInvalidSubject, err.Error())
	}
	switch {
	case expected == 0:
		if len(target.Address) == 0 || len(target.Address) > maxTezosAddressLen {
			return errorsmod.Wrapf(ErrInvalidSubject, "address of %d bytes", len(target.Address))
		}
	case len(target.Address) != expected:
		return errorsmod.Wrapf(ErrInvalidSubject, "%s address of %d bytes", s.Chain(), len(target.Address))
	}
	return nil
}

// Origin is the origin calls on behalf of [s] are dispatched with.
func Origin(s Subject) types.MultiOrigin {
	return types.MultiOrigin{Chain: s.Chain(), Address: s.Endpoint().Address}
}

func SubjectEqual(a, b Subject) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Chain() == b.Chain() && a.Endpoint().Equal(b.Endpoint())
}

func SubjectString(s Subject) string {
	if s == nil {
		return "none"
	}
	target := s.Endpoint()
	if target.Kind == Contract {
		return fmt.Sprintf("%s:contract:%x:%x", s.Chain(), target.Address, target.Selector)
	}
	return fmt.Sprintf("%s:%x", s.Chain(), target.Address)
}
