// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reputation keeps a Beta distributed reliability estimate per
// processor.
//
// Both pseudo-counts are 18 decimal fixed point numbers. An observation weighs
// its reward relative to the running average reward: a job paying twice the
// average moves the estimate twice as far. An observation of weight W first
// forgets the share (1-decay)*W of the existing evidence and then adds W to
// the count of the observed outcome, so past events fade and recent behaviour
// dominates. A unit weight decays by exactly [decay]. Weights are capped at
// 1/(1-decay), which keeps R+S below that bound; a success therefore never
// lowers the score and a failure never raises it. The normalized score is the
// Beta mean under a uniform prior, (R+1)/(R+S+2), in parts per million.
package reputation

import (
	"github.com/holiman/uint256"

	"github.com/acurast/acurastvm/types"
)

// DefaultDecay keeps 90% of the previous evidence on every update.
const DefaultDecay types.Permill = 900_000

var (
	// Unit is the fixed point representation of one observation.
	Unit = uint256.NewInt(1_000_000_000_000_000_000)

	permill = uint256.NewInt(1_000_000)
)

// BetaParameters are the (alpha, beta) pseudo-counts of a source.
type BetaParameters struct {
	R uint256.Int `serialize:"true" json:"r"`
	S uint256.Int `serialize:"true" json:"s"`
}

// Update returns the parameters after observing one execution outcome of
// fixed point [weight]. Weights above 1/(1-decay) units count as that bound.
func Update(params BetaParameters, success bool, weight uint256.Int, decay types.Permill) (BetaParameters, error) {
	if !decay.Valid() {
		return BetaParameters{}, ErrCalculationOverflow
	}
	forget := new(uint256.Int).Sub(permill, uint256.NewInt(uint64(decay)))
	if !forget.IsZero() {
		limit := new(uint256.Int).Mul(Unit, permill)
		limit.Div(limit, forget)
		if weight.Gt(limit) {
			weight.Set(limit)
		}
	}
	// share of the evidence forgotten, at most one unit
	share, overflow := new(uint256.Int).MulOverflow(forget, &weight)
	if overflow {
		return BetaParameters{}, ErrCalculationOverflow
	}
	share.Div(share, permill)

	var next BetaParameters
	if err := decayed(&next.R, &params.R, share); err != nil {
		return BetaParameters{}, err
	}
	if err := decayed(&next.S, &params.S, share); err != nil {
		return BetaParameters{}, err
	}

	target := &next.S
	if success {
		target = &next.R
	}
	if _, overflow := target.AddOverflow(target, &weight); overflow {
		return BetaParameters{}, ErrCalculationOverflow
	}
	return next, nil
}

// Normalize maps the Beta mean to parts per million, rounding down.
func Normalize(params BetaParameters) (types.Permill, error) {
	num, overflow := new(uint256.Int).AddOverflow(&params.R, Unit)
	if overflow {
		return 0, ErrCalculationOverflow
	}
	den, overflow := new(uint256.Int).AddOverflow(&params.R, &params.S)
	if overflow {
		return 0, ErrCalculationOverflow
	}
	twoUnits := new(uint256.Int).Lsh(Unit, 1)
	if _, overflow := den.AddOverflow(den, twoUnits); overflow {
		return 0, ErrCalculationOverflow
	}
	if den.IsZero() {
		return 0, ErrCalculationOverflow
	}
	if _, overflow := num.MulOverflow(num, permill); overflow {
		return 0, ErrCalculationOverflow
	}
	return types.Permill(num.Div(num, den).Uint64()), nil
}

// Observe applies [failures] failed observations followed by the report
// outcome itself, all of the same [weight].
func Observe(params BetaParameters, failures uint64, success bool, weight uint256.Int, decay types.Permill) (BetaParameters, error) {
	for i := uint64(0); i < failures; i++ {
		next, err := Update(params, false, weight, decay)
		if err != nil {
			return BetaParameters{}, err
		}
		// Repeated failures converge to a fixed point; stop once reached.
		if next == params {
			break
		}
		params = next
	}
	return Update(params, success, weight, decay)
}

// RewardAverage is the running mean of the rewards paid for observations.
type RewardAverage struct {
	Mean  uint64 `serialize:"true" json:"mean"`
	Count uint64 `serialize:"true" json:"count"`
}

// Weight is the fixed point weight of an observation paid [reward]. Before
// any positive reward was seen every observation weighs one unit.
func (a RewardAverage) Weight(reward uint64) uint256.Int {
	var w uint256.Int
	if a.Mean == 0 {
		return *w.Set(Unit)
	}
	// reward * 1e18 fits in 128 bits
	w.Mul(uint256.NewInt(reward), Unit)
	w.Div(&w, uint256.NewInt(a.Mean))
	return w
}

// Add returns the average including [reward], rounded down.
func (a RewardAverage) Add(reward uint64) (RewardAverage, error) {
	count := a.Count + 1
	if count == 0 {
		return RewardAverage{}, ErrCalculationOverflow
	}
	total := new(uint256.Int).Mul(uint256.NewInt(a.Mean), uint256.NewInt(a.Count))
	total.Add(total, uint256.NewInt(reward))
	total.Div(total, uint256.NewInt(count))
	return RewardAverage{Mean: total.Uint64(), Count: count}, nil
}

func decayed(dst, v, share *uint256.Int) error {
	lost, overflow := new(uint256.Int).MulOverflow(v, share)
	if overflow {
		return ErrCalculationOverflow
	}
	lost.Div(lost, Unit)
	dst.Sub(v, lost)
	return nil
}
