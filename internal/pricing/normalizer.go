// Package pricing turns the free-text price column of a scraped trade row
// into a USD decimal amount.
//
// The trading-activity page renders prices in several encodings: a native
// crypto amount with a parenthesized USD equivalent ("0.5 WETH ($1,234.50)"),
// a direct USD/USDC amount ("1500.00 USDC"), zero-value placeholder trades
// ("0 ETH"), and a handful of unsupported currencies. Each encoding is an
// explicit rule; new formats are added by extending the rule table, not by
// editing control flow.
package pricing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/reneepyh/ape-index/internal/domain"
)

// FormatKind tags the price-format variant a rule recognizes.
type FormatKind string

const (
	// FormatZeroNonUSD matches zero-value trades denominated in ETH or WETH
	FormatZeroNonUSD FormatKind = "zero_non_usd"
	// FormatExcludedCurrency matches currencies excluded from the dataset
	FormatExcludedCurrency FormatKind = "excluded_currency"
	// FormatUSDAnnotation matches a parenthesized USD equivalent, "($1,234.50)"
	FormatUSDAnnotation FormatKind = "usd_annotation"
	// FormatUSDDirect matches amounts denominated directly in USD or USDC
	FormatUSDDirect FormatKind = "usd_direct"
)

var (
	zeroNonUSDPattern    = regexp.MustCompile(`(?:^|[^0-9.])0(?:\.0+)? W?ETH\b`)
	usdAnnotationPattern = regexp.MustCompile(`\(\$([0-9][0-9,]*(?:\.[0-9]+)?)\)`)
	numericRunPattern    = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)
)

// rule is one ordered match rule. Either reject is set (the record is
// excluded with that error) or extract parses the USD amount.
type rule struct {
	kind    FormatKind
	match   func(string) bool
	reject  error
	extract func(string) (decimal.Decimal, error)
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{
		kind:   FormatZeroNonUSD,
		match:  func(s string) bool { return zeroNonUSDPattern.MatchString(s) },
		reject: domain.ErrExcludedRecord,
	},
	{
		kind:   FormatExcludedCurrency,
		match:  func(s string) bool { return strings.Contains(s, "EDC") },
		reject: domain.ErrExcludedRecord,
	},
	{
		kind:    FormatUSDAnnotation,
		match:   func(s string) bool { return usdAnnotationPattern.MatchString(s) },
		extract: extractAnnotatedUSD,
	},
	{
		kind:    FormatUSDDirect,
		match:   func(s string) bool { return strings.Contains(s, "USD") },
		extract: extractDirectUSD,
	},
}

// Parse extracts the USD amount from a raw price string.
//
// Returns domain.ErrExcludedRecord for zero-value non-USD trades and excluded
// currencies, domain.ErrUnsupportedCurrency when no rule recognizes the
// string, and domain.ErrMalformedPrice when a recognized format carries an
// unparseable number.
func Parse(raw string) (decimal.Decimal, error) {
	for _, r := range rules {
		if !r.match(raw) {
			continue
		}
		if r.reject != nil {
			return decimal.Zero, fmt.Errorf("%w: %q (%s)", r.reject, raw, r.kind)
		}
		return r.extract(raw)
	}

	return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrUnsupportedCurrency, raw)
}

// extractAnnotatedUSD pulls the number out of the "($...)" annotation and
// strips thousands separators.
func extractAnnotatedUSD(raw string) (decimal.Decimal, error) {
	m := usdAnnotationPattern.FindStringSubmatch(raw)
	if m == nil {
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrMalformedPrice, raw)
	}
	return parseAmount(raw, strings.ReplaceAll(m[1], ",", ""))
}

// extractDirectUSD takes the first numeric run of a USD/USDC-denominated
// string and strips thousands separators.
func extractDirectUSD(raw string) (decimal.Decimal, error) {
	m := numericRunPattern.FindString(raw)
	if m == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrMalformedPrice, raw)
	}
	return parseAmount(raw, strings.ReplaceAll(m, ",", ""))
}

func parseAmount(raw, numeric string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(numeric)
	if err != nil || amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrMalformedPrice, raw)
	}
	return amount, nil
}
