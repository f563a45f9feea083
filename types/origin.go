// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// ProxyChain enumerates the chains Acurast exchanges jobs and messages with.
type ProxyChain uint8

const (
	Acurast ProxyChain = iota
	Tezos
	Ethereum
	AlephZero
	Vara
	Solana

	numProxyChains
)

var (
	errUnknownChain    = errors.New("unknown proxy chain")
	errMalformedJobKey = errors.New("malformed job key")
)

func (c ProxyChain) String() string {
	switch c {
	case Acurast:
		return "acurast"
	case Tezos:
		return "tezos"
	case Ethereum:
		return "ethereum"
	case AlephZero:
		return "alephzero"
	case Vara:
		return "vara"
	case Solana:
		return "solana"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Valid reports whether [c] is a supported chain.
func (c ProxyChain) Valid() bool { return c < numProxyChains }

// AddressLen is the byte length of an account address on [c].
// Tezos addresses are variable length and report 0.
func (c ProxyChain) AddressLen() (int, error) {
	switch c {
	case Acurast:
		return hashing.AddrLen, nil
	case Ethereum:
		return 20, nil
	case AlephZero, Vara, Solana:
		return 32, nil
	case Tezos:
		return 0, nil
	default:
		return 0, errUnknownChain
	}
}

// MultiOrigin tags an address with the chain it originates from.
type MultiOrigin struct {
	Chain   ProxyChain `serialize:"true" json:"chain"`
	Address []byte     `serialize:"true" json:"address"`
}

// AcurastOrigin wraps a local account.
func AcurastOrigin(account AccountID) MultiOrigin {
	return MultiOrigin{Chain: Acurast, Address: account.Bytes()}
}

// Verify checks the address length against the chain's address format.
func (o MultiOrigin) Verify() error {
	expected, err := o.Chain.AddressLen()
	if err != nil {
		return err
	}
	if len(o.Address) == 0 || len(o.Address) > 64 {
		return fmt.Errorf("invalid %s address length %d", o.Chain, len(o.Address))
	}
	if expected != 0 && len(o.Address) != expected {
		return fmt.Errorf("%s address must be %d bytes, got %d", o.Chain, expected, len(o.Address))
	}
	return nil
}

// Account returns the local account of an Acurast origin.
func (o MultiOrigin) Account() (AccountID, bool) {
	if o.Chain != Acurast {
		return ids.ShortEmpty, false
	}
	account, err := ids.ToShortID(o.Address)
	if err != nil {
		return ids.ShortEmpty, false
	}
	return account, true
}

// Owner returns the local account that funds and is refunded for jobs of
// this origin. Foreign origins map to a deterministic proxy account.
func (o MultiOrigin) Owner() AccountID {
	if account, ok := o.Account(); ok {
		return account
	}
	return ids.ShortID(hashing.ComputeHash160Array(append([]byte("acurast/proxy/"), o.Key()...)))
}

func (o MultiOrigin) Equal(other MultiOrigin) bool {
	return o.Chain == other.Chain && bytes.Equal(o.Address, other.Address)
}

// Key is a prefix-free byte encoding used in storage keys.
func (o MultiOrigin) Key() []byte {
	key := make([]byte, 0, 2+len(o.Address))
	key = append(key, byte(o.Chain), byte(len(o.Address)))
	return append(key, o.Address...)
}

func (o MultiOrigin) String() string {
	return fmt.Sprintf("%s:%x", o.Chain, o.Address)
}

// JobIDSequence numbers the jobs of one origin.
type JobIDSequence = uint64

// JobID identifies a job registration across chains.
type JobID struct {
	Origin MultiOrigin   `serialize:"true" json:"origin"`
	Seq    JobIDSequence `serialize:"true" json:"seq"`
}

// Key is the storage key of the job.
func (j JobID) Key() []byte {
	return append(j.Origin.Key(), Uint64Bytes(j.Seq)...)
}

// ParseJobIDKey inverts JobID.Key.
func ParseJobIDKey(key []byte) (JobID, error) {
	if len(key) < 2 {
		return JobID{}, errMalformedJobKey
	}
	addrLen := int(key[1])
	if len(key) != 2+addrLen+8 {
		return JobID{}, errMalformedJobKey
	}
	return JobID{
		Origin: MultiOrigin{
			Chain:   ProxyChain(key[0]),
			Address: append([]byte(nil), key[2:2+addrLen]...),
		},
		Seq: binary.BigEndian.Uint64(key[2+addrLen:]),
	}, nil
}

func (j JobID) Equal(other JobID) bool {
	return j.Seq == other.Seq && j.Origin.Equal(other.Origin)
}

func (j JobID) String() string {
	return fmt.Sprintf("%s#%d", j.Origin, j.Seq)
}
