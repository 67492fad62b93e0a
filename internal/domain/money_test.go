package domain

import (
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_ToDecimal(t *testing.T) {
	m := NewMoney(10_500_000) // 10.50
	d := m.ToDecimal()
	assert.Equal(t, "10.5", d.String())
	assert.Equal(t, "10.50", m.String())
}

func TestFromDecimal(t *testing.T) {
	d := decimal.NewFromFloat(10.50)
	micros := FromDecimal(d)
	assert.Equal(t, int64(10_500_000), micros)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"50", 50_000_000},
		{"0.1", 100_000},
		{" 12,75 ", 12_750_000},
		{"0.000001", 1},
		{"9223372036854.775807", math.MaxInt64},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, raw := range []string{
		"", "abc", "1.0000001",
		// Would wrap around int64 micros.
		"9223372036854.775808",
		"9300000000000",
		"18446744073710.551616",
		"-9300000000000",
	} {
		_, err := ParseAmount(raw)
		require.Error(t, err, raw)
		assert.Equal(t, KindValidation, KindOf(err), raw)
	}
}

func TestFormatMicros(t *testing.T) {
	assert.Equal(t, "0.1", FormatMicros(100_000))
	assert.Equal(t, "50", FormatMicros(50_000_000))
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("purchase: %w", ErrListingUnavailable)
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, "listing-unavailable", CodeOf(wrapped))
	assert.Equal(t, KindBusiness, KindOf(ErrInsufficientFunds))
	assert.Equal(t, KindForbidden, KindOf(ErrNotAdmin))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
