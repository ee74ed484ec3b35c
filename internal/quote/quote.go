// Package quote converts local-currency purchase amounts into token amounts
// at a given spot price.
package quote

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrUnavailable means the spot price is missing or zero; no quote can
	// be produced and submission must stay blocked.
	ErrUnavailable = errors.New("spot price unavailable")

	// ErrTooSmall means the amount quantized to zero token units at the
	// paying token's precision.
	ErrTooSmall = errors.New("amount quantizes to zero token units")
)

// Limits bounds the local-currency amount a single purchase may carry.
type Limits struct {
	Min int64
	Max int64
}

// Validate checks localAmount against the configured bounds. Out-of-bounds
// input is a validation error, distinct from a quoting failure.
func (l Limits) Validate(localAmount int64) error {
	if localAmount < l.Min {
		return fmt.Errorf("amount %d below minimum %d", localAmount, l.Min)
	}
	if l.Max > 0 && localAmount > l.Max {
		return fmt.Errorf("amount %d above maximum %d", localAmount, l.Max)
	}
	return nil
}

// TokenAmount returns localAmount / spot in the token's base units,
// rounded down. Rounding down is applied uniformly so the user is never
// asked to pay fractionally more than the local amount implies.
func TokenAmount(localAmount int64, spot *big.Rat, decimals int) (*big.Int, error) {
	if localAmount <= 0 {
		return nil, fmt.Errorf("non-positive amount %d", localAmount)
	}
	if spot == nil || spot.Sign() <= 0 {
		return nil, ErrUnavailable
	}

	// localAmount / spot, scaled to base units before truncating.
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	ratio := new(big.Rat).SetInt64(localAmount)
	ratio.Quo(ratio, spot)
	ratio.Mul(ratio, new(big.Rat).SetInt(scale))

	units := new(big.Int).Quo(ratio.Num(), ratio.Denom())
	if units.Sign() <= 0 {
		return nil, ErrTooSmall
	}
	return units, nil
}

// FormatUnits renders a base-unit amount as a decimal string, trimming
// trailing zeros. Used for the biller's cryptoUsed field.
func FormatUnits(units *big.Int, decimals int) string {
	if decimals == 0 {
		return units.String()
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(units, scale, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := fmt.Sprintf("%0*s", decimals, frac.String())
	fracStr = strings.TrimRight(fracStr, "0")
	return whole.String() + "." + fracStr
}
