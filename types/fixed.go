// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrZeroDenominator = errors.New("zero denominator")
	ErrInvalidFraction = errors.New("fraction exceeds one")
	ErrOverflow        = errors.New("fixed point overflow")
)

const (
	percentAccuracy = 100
	permillAccuracy = 1_000_000
	perbillAccuracy = 1_000_000_000
)

// Percent is a fraction in parts per hundred.
type Percent uint8

// Permill is a fraction in parts per million.
type Permill uint32

// Perbill is a fraction in parts per billion.
type Perbill uint32

// MulFloor returns floor(x * p).
func (p Percent) MulFloor(x Balance) Balance { return mulFloor(x, uint64(p), percentAccuracy) }

// MulFloor returns floor(x * p).
func (p Permill) MulFloor(x Balance) Balance { return mulFloor(x, uint64(p), permillAccuracy) }

// MulFloor returns floor(x * p).
func (p Perbill) MulFloor(x Balance) Balance { return mulFloor(x, uint64(p), perbillAccuracy) }

func (p Percent) Valid() bool { return p <= percentAccuracy }
func (p Permill) Valid() bool { return p <= permillAccuracy }
func (p Perbill) Valid() bool { return p <= perbillAccuracy }

// Parts returns the numerator.
func (p Permill) Parts() uint32 { return uint32(p) }

// PermillFromRational returns floor(n / d) in parts per million.
func PermillFromRational(n, d *uint256.Int) (Permill, error) {
	if d.IsZero() {
		return 0, ErrZeroDenominator
	}
	if n.Gt(d) {
		return 0, ErrInvalidFraction
	}
	num, overflow := new(uint256.Int).MulOverflow(n, uint256.NewInt(permillAccuracy))
	if overflow {
		return 0, ErrOverflow
	}
	return Permill(num.Div(num, d).Uint64()), nil
}

// mulFloor computes floor(x * parts / accuracy). parts <= accuracy keeps the
// result within 64 bits.
func mulFloor(x, parts, accuracy uint64) uint64 {
	v := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(parts))
	return v.Div(v, uint256.NewInt(accuracy)).Uint64()
}
