package domain

import "errors"

var (
	// ErrExcludedRecord is returned for zero-value trades denominated in a
	// non-USD unit or trades in a currency the pipeline excludes outright
	ErrExcludedRecord = errors.New("record excluded")

	// ErrUnsupportedCurrency is returned when a price string carries no USD
	// amount the normalizer knows how to extract
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrMalformedPrice is returned when a price string matches a USD format
	// but its numeric part does not parse
	ErrMalformedPrice = errors.New("malformed price")

	// ErrUnmappedValue indicates a record references a dimension value with no
	// surrogate key after reconciliation; this is a pipeline defect, not a
	// recoverable input error
	ErrUnmappedValue = errors.New("value has no surrogate key")
)
