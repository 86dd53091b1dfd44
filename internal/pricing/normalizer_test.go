package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/pricing"
)

func TestParse_USDAnnotation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "annotation with thousands separator", raw: "($1,234.50)", want: "1234.50"},
		{name: "annotation after crypto amount", raw: "0.5 WETH ($1,234.50)", want: "1234.50"},
		{name: "annotation without decimals", raw: "2 ETH ($3,000)", want: "3000"},
		{name: "large annotated amount", raw: "120 ETH ($402,112.80)", want: "402112.80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pricing.Parse(tt.raw)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestParse_DirectUSD(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "usdc amount", raw: "1500.00 USDC", want: "1500.00"},
		{name: "usd amount", raw: "99.95 USD", want: "99.95"},
		{name: "usdc with thousands separator", raw: "12,000.00 USDC", want: "12000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pricing.Parse(tt.raw)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestParse_ExcludedRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "zero eth", raw: "0 ETH"},
		{name: "zero weth", raw: "0 WETH"},
		{name: "zero eth with empty annotation", raw: "0 ETH ($0.00)"},
		{name: "excluded currency code", raw: "150 EDC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pricing.Parse(tt.raw)
			assert.ErrorIs(t, err, domain.ErrExcludedRecord)
		})
	}
}

func TestParse_UnsupportedCurrency(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "eth without annotation", raw: "5 ETH"},
		{name: "weth without annotation", raw: "1.25 WETH"},
		{name: "empty string", raw: ""},
		{name: "unknown token", raw: "42 APE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pricing.Parse(tt.raw)
			assert.ErrorIs(t, err, domain.ErrUnsupportedCurrency)
		})
	}
}

func TestParse_MalformedPrice(t *testing.T) {
	// Carries the USD marker but no numeric run to extract.
	_, err := pricing.Parse("USD")
	assert.ErrorIs(t, err, domain.ErrMalformedPrice)
}

func TestParse_DoesNotRejectNonZeroAmountsEndingInZero(t *testing.T) {
	// "10 ETH" contains the substring "0 ETH"; make sure the zero-value rule
	// does not swallow it.
	got, err := pricing.Parse("10 ETH ($25,000.00)")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("25000.00")))
}
