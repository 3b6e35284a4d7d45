package amount

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExact(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint8
		want     string // minor units
	}{
		{"1", 10, "10000000000"},
		{"1.5", 10, "15000000000"},
		{"0.0000000001", 10, "1"},
		{"5", 18, "5000000000000000000"},
		{"0.000000000000000001", 18, "1"},
		{"0", 10, "0"},
		{".5", 10, "5000000000"},
		{"1000", 0, "1000"},
	}
	for _, tt := range tests {
		amt, err := Parse(tt.in, tt.decimals)
		require.NoError(t, err, "parse %q", tt.in)
		assert.Equal(t, tt.want, amt.MinorString(), "parse %q", tt.in)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	bad := []struct {
		in       string
		decimals uint8
	}{
		{"", 10},
		{"-1", 10},
		{"1.2.3", 10},
		{"abc", 10},
		{"1,5", 10},
		{"0.12345678901", 10}, // 11 fractional digits on a 10-decimal asset
		{"0.1", 0},
	}
	for _, tt := range bad {
		_, err := Parse(tt.in, tt.decimals)
		assert.Error(t, err, "parse %q at %d decimals", tt.in, tt.decimals)
	}
}

func TestFromMinorUnitsRejectsNegative(t *testing.T) {
	_, err := FromMinorUnits("-5", 10)
	assert.Error(t, err)

	_, err = FromUnits(big.NewInt(-1), 10)
	assert.Error(t, err)
}

func TestDisplayTruncatesNeverRounds(t *testing.T) {
	// 1.99999 at 10 decimals: the 5th fractional digit must be dropped,
	// not rounded up.
	amt, err := FromMinorUnits("19999900000", 10)
	require.NoError(t, err)
	assert.Equal(t, "1.9999", amt.DisplayString())

	// 18-decimal asset with dust beyond display precision.
	amt, err = FromMinorUnits("1999999999999999999", 18)
	require.NoError(t, err)
	assert.Equal(t, "1.9999", amt.DisplayString())
}

func TestDisplayIdempotentUnderReparse(t *testing.T) {
	for _, decimals := range []uint8{10, 18} {
		for _, minor := range []string{"0", "1", "12345", "50000000000", "19999912345", "7000000000000000001"} {
			amt, err := FromMinorUnits(minor, decimals)
			require.NoError(t, err)

			shown := amt.DisplayString()
			reparsed, err := Parse(shown, DisplayPrecision)
			require.NoError(t, err, "reparse %q", shown)
			assert.Equal(t, shown, reparsed.DisplayString(), "decimals=%d minor=%s", decimals, minor)
		}
	}
}

func TestDisplayNeverExceedsFourFractionalDigits(t *testing.T) {
	amt, err := FromMinorUnits("123456789123456789", 18)
	require.NoError(t, err)
	shown := amt.DisplayString()
	dot := -1
	for i, r := range shown {
		if r == '.' {
			dot = i
		}
	}
	require.GreaterOrEqual(t, dot, 0)
	assert.LessOrEqual(t, len(shown)-dot-1, DisplayPrecision)
}

func TestDisplayPadsFraction(t *testing.T) {
	amt, err := FromMinorUnits("10000000001", 10)
	require.NoError(t, err)
	assert.Equal(t, "1.0000", amt.DisplayString())

	amt, err = Parse("2.05", 10)
	require.NoError(t, err)
	assert.Equal(t, "2.0500", amt.DisplayString())
}

func TestArithmetic(t *testing.T) {
	a, _ := Parse("1.5", 10)
	b, _ := Parse("0.5", 10)

	assert.Equal(t, "20000000000", a.Add(b).MinorString())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "10000000000", diff.MinorString())

	_, err = b.Sub(a)
	assert.Error(t, err, "underflow must be an error")

	assert.Equal(t, 1, a.Cmp(b))
	assert.Equal(t, -1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(a))
}

func TestMixedAssetArithmeticPanics(t *testing.T) {
	dot, _ := Parse("1", 10)
	glmr, _ := Parse("1", 18)

	assert.Panics(t, func() { dot.Add(glmr) })
	assert.Panics(t, func() { dot.Cmp(glmr) })
}

func TestZero(t *testing.T) {
	z := Zero(10)
	assert.True(t, z.IsZero())
	assert.Equal(t, "0", z.MinorString())
	assert.Equal(t, "0.0000", z.DisplayString())
}
