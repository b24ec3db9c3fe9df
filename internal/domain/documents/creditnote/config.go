package creditnote

import "salescycle/internal/core/numerator"

const (
	NumberPrefix = "CN"

	// NumeratorStrategy: credit notes are fiscal documents and need gapless numbers.
	NumeratorStrategy = numerator.StrategyStrict
)
