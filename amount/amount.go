// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amount implements the integer arithmetic the orchestrator uses for
// fees, net/gross conversions and slippage selection. All USDC values are
// big-integer minor units (6 decimals); division truncates toward zero.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

const (
	// GatewayFeeBps is the gross-up applied on deposits so that the
	// settlement service's ~2% intrinsic fee never leaves a burn short.
	// Slight overshoot gives headroom against off-by-one rounding.
	GatewayFeeBps = 205

	// bpsDenom is the basis-point denominator.
	bpsDenom = 10000

	// CrossChainFeePercent is the service fee for a single cross-chain send.
	CrossChainFeePercent = "0.3"

	// BatchFeePercent is the service fee for batch sends, bridges and collects.
	BatchFeePercent = "0.25"

	// maxFeeBps and minMaxFee bound the burn-intent max-fee ceiling.
	maxFeeBps = 300
	minMaxFee = 50_000
)

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrBadPercent     = errors.New("malformed percent string")
)

// mulDivDown computes x * mul / div truncating toward zero. The fast path
// runs on uint256; values beyond 256 bits fall back to big.Int.
func mulDivDown(x *big.Int, mul, div uint64) *big.Int {
	v, overflow := uint256.FromBig(x)
	if !overflow {
		res, overflow := new(uint256.Int).MulDivOverflow(v, uint256.NewInt(mul), uint256.NewInt(div))
		if !overflow {
			return res.ToBig()
		}
	}
	r := new(big.Int).Mul(x, new(big.Int).SetUint64(mul))
	return r.Quo(r, new(big.Int).SetUint64(div))
}

// NetBurnAmount returns the amount that can be burned out of a deposited
// balance once the gateway fee gross-up is unwound:
// net = balance * 10000 / (10000 + GatewayFeeBps).
func NetBurnAmount(balance *big.Int) *big.Int {
	return mulDivDown(balance, bpsDenom, bpsDenom+GatewayFeeBps)
}

// GrossDepositAmount returns the deposit required so that burn minor units
// survive the gateway fee: gross = burn * (10000 + GatewayFeeBps) / 10000.
func GrossDepositAmount(burn *big.Int) *big.Int {
	return mulDivDown(burn, bpsDenom+GatewayFeeBps, bpsDenom)
}

// CalcMaxFee returns the fee ceiling attached to a burn intent. It is a
// bound the settlement service may charge up to, not a charge:
// max(amount * 300 / 10000, 50000) minor units.
func CalcMaxFee(amt *big.Int) *big.Int {
	fee := mulDivDown(amt, maxFeeBps, bpsDenom)
	if fee.Cmp(big.NewInt(minMaxFee)) < 0 {
		return big.NewInt(minMaxFee)
	}
	return fee
}

// PercentToBps converts a decimal percent string such as "0.3" into basis
// points (rounded to the nearest bp).
func PercentToBps(percent string) (uint64, error) {
	s := strings.TrimSpace(percent)
	if s == "" || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: %q", ErrBadPercent, percent)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	// percent * 100 gives bps; keep two fractional digits for rounding.
	frac = frac + "0000"
	scaled := whole + frac[:2]
	rest := frac[2:]

	bps, ok := new(big.Int).SetString(scaled, 10)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadPercent, percent)
	}
	if len(rest) > 0 && rest[0] >= '5' {
		bps.Add(bps, big.NewInt(1))
	}
	if !bps.IsUint64() {
		return 0, fmt.Errorf("%w: %q out of range", ErrBadPercent, percent)
	}
	return bps.Uint64(), nil
}

// ServiceFee computes the service fee for a total, given a decimal percent
// string: total * round(percent * 100) / 10000, truncating toward zero.
func ServiceFee(total *big.Int, percent string) (*big.Int, error) {
	bps, err := PercentToBps(percent)
	if err != nil {
		return nil, err
	}
	return mulDivDown(total, bps, bpsDenom), nil
}

// Slippage tier floors, fractional (0.05 is 5%). Small notionals are
// vulnerable to quote/execute drift, so the floor rises as the amount
// shrinks.
var slippageTiers = []struct {
	below *big.Int // USDC minor units
	floor float64
}{
	{big.NewInt(1_000_000), 0.05},   // < 1 USDC
	{big.NewInt(10_000_000), 0.03},  // < 10 USDC
	{big.NewInt(100_000_000), 0.01}, // < 100 USDC
}

// defaultSlippage applies when the notional clears every tier.
const defaultSlippage = 0.005

// EffectiveSwapSlippage returns the fractional slippage tolerance to quote a
// swap with: the caller's requested value raised to the tier floor for the
// USDC notional. A zero or negative userSlippage means "unset".
func EffectiveSwapSlippage(usdcMinor *big.Int, userSlippage float64) float64 {
	floor := defaultSlippage
	for _, tier := range slippageTiers {
		if usdcMinor.Cmp(tier.below) < 0 {
			floor = tier.floor
			break
		}
	}
	if userSlippage > floor {
		return userSlippage
	}
	return floor
}
