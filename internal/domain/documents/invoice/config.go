package invoice

import "salescycle/internal/core/numerator"

const (
	NumberPrefix = "INV"

	// NumeratorStrategy: invoices are fiscal documents and need gapless numbers.
	NumeratorStrategy = numerator.StrategyStrict
)
