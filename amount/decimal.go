// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// USDCDecimals is the on-chain precision of USDC.
const USDCDecimals = 6

var ErrBadDecimal = errors.New("malformed decimal amount")

// ParseDecimal parses a non-negative decimal string with at most decimals
// fractional digits into minor units.
func ParseDecimal(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("%w: %q", ErrBadDecimal, s)
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasDot && frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadDecimal, s)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q exceeds %d decimals", ErrBadDecimal, s, decimals)
	}
	frac = frac + strings.Repeat("0", int(decimals)-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadDecimal, s)
	}
	return v, nil
}

// ParseUSDC parses a non-negative decimal string with at most six fractional
// digits into minor units. "102.05" parses to 102050000.
func ParseUSDC(s string) (*big.Int, error) {
	return ParseDecimal(s, USDCDecimals)
}

// FormatUSDC renders minor units as a canonical decimal string with exactly
// six fractional digits. 102050000 formats as "102.050000".
func FormatUSDC(minor *big.Int) string {
	neg := minor.Sign() < 0
	abs := new(big.Int).Abs(minor)

	q, r := new(big.Int).QuoRem(abs, big.NewInt(1_000_000), new(big.Int))
	s := fmt.Sprintf("%s.%06d", q.String(), r)
	if neg {
		return "-" + s
	}
	return s
}
