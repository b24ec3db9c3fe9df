package order

import "salescycle/internal/core/numerator"

const (
	NumberPrefix = "SO"

	// NumeratorStrategy: orders are internal documents, gaps are acceptable.
	NumeratorStrategy = numerator.StrategyCached
)
