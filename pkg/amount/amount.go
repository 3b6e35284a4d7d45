package amount

import (
	"fmt"
	"math/big"
	"strings"
)

// DisplayPrecision is the number of fractional digits shown to the user.
// Display values are truncated, never rounded, so what is shown never
// overstates the on-chain balance.
const DisplayPrecision = 4

// Amount is an exact token amount: a non-negative integer count of minor
// units tagged with the decimal count of the asset it denominates. Two
// amounts are only comparable when their decimal tags match; mixing assets
// is a programming error and panics rather than miscalculating.
type Amount struct {
	units    *big.Int
	decimals uint8
}

// Zero returns a zero amount for an asset with the given decimal count
func Zero(decimals uint8) Amount {
	return Amount{units: new(big.Int), decimals: decimals}
}

// FromUnits creates an amount from a big.Int count of minor units
func FromUnits(units *big.Int, decimals uint8) (Amount, error) {
	if units == nil {
		return Amount{}, fmt.Errorf("nil minor-unit value")
	}
	if units.Sign() < 0 {
		return Amount{}, fmt.Errorf("negative amount: %s", units.String())
	}
	return Amount{units: new(big.Int).Set(units), decimals: decimals}, nil
}

// FromMinorUnits creates an amount from a minor-unit integer string, the
// representation used on the wire and by chain balance queries
func FromMinorUnits(s string, decimals uint8) (Amount, error) {
	units, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid minor-unit integer: %q", s)
	}
	return FromUnits(units, decimals)
}

// Parse converts a user-entered decimal string (e.g. "1.25") into an exact
// amount. More fractional digits than the asset carries is an error, not a
// rounding opportunity.
func Parse(s string, decimals uint8) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return Amount{}, fmt.Errorf("negative amount: %q", s)
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return Amount{}, fmt.Errorf("invalid amount: %q", s)
	}
	if len(fracPart) > int(decimals) {
		return Amount{}, fmt.Errorf("amount %q has more than %d fractional digits", s, decimals)
	}

	// Scale to minor units: right-pad the fractional part to the full
	// decimal count and concatenate. No floating point involved.
	padded := fracPart + strings.Repeat("0", int(decimals)-len(fracPart))
	units, ok := new(big.Int).SetString(intPart+padded, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount: %q", s)
	}
	return Amount{units: units, decimals: decimals}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Units returns a copy of the minor-unit integer
func (a Amount) Units() *big.Int {
	if a.units == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.units)
}

// Decimals returns the decimal-count tag
func (a Amount) Decimals() uint8 {
	return a.decimals
}

// IsZero reports whether the amount is zero
func (a Amount) IsZero() bool {
	return a.units == nil || a.units.Sign() == 0
}

// MinorString returns the exact minor-unit integer string. This is the only
// representation ever serialized into a payload.
func (a Amount) MinorString() string {
	return a.Units().String()
}

// Add returns a + b. Panics if the amounts denominate different assets.
func (a Amount) Add(b Amount) Amount {
	a.mustMatch(b)
	return Amount{units: new(big.Int).Add(a.Units(), b.Units()), decimals: a.decimals}
}

// Sub returns a - b, or an error if the result would be negative.
// Panics if the amounts denominate different assets.
func (a Amount) Sub(b Amount) (Amount, error) {
	a.mustMatch(b)
	diff := new(big.Int).Sub(a.Units(), b.Units())
	if diff.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount underflow: %s - %s", a.MinorString(), b.MinorString())
	}
	return Amount{units: diff, decimals: a.decimals}, nil
}

// Cmp compares two amounts of the same asset, returning -1, 0 or 1.
// Panics if the decimal tags differ.
func (a Amount) Cmp(b Amount) int {
	a.mustMatch(b)
	return a.Units().Cmp(b.Units())
}

func (a Amount) mustMatch(b Amount) {
	if a.decimals != b.decimals {
		panic(fmt.Sprintf("amount: mixed-asset arithmetic (%d vs %d decimals)", a.decimals, b.decimals))
	}
}

// DisplayString renders the amount as integerPart.fractionalPart truncated
// to at most DisplayPrecision fractional digits, using exact integer
// division. Re-parsing the result at display precision yields the same
// displayed value.
func (a Amount) DisplayString() string {
	units := a.Units()
	if a.decimals == 0 {
		return units.String()
	}

	base := pow10(int(a.decimals))
	quo, rem := new(big.Int).QuoRem(units, base, new(big.Int))

	shown := int(a.decimals)
	if shown > DisplayPrecision {
		// Drop the digits beyond display precision. Integer division
		// truncates toward zero, which for non-negative amounts is the
		// required truncation.
		rem.Quo(rem, pow10(int(a.decimals)-DisplayPrecision))
		shown = DisplayPrecision
	}

	frac := rem.String()
	for len(frac) < shown {
		frac = "0" + frac
	}
	return quo.String() + "." + frac
}

// String implements fmt.Stringer using the display rendering
func (a Amount) String() string {
	return a.DisplayString()
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
