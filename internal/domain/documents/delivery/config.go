package delivery

import "salescycle/internal/core/numerator"

const (
	NumberPrefix = "DN"

	// NumeratorStrategy: delivery notes are internal documents, gaps are acceptable.
	NumeratorStrategy = numerator.StrategyCached
)
