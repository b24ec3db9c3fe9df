package quotation

import "salescycle/internal/core/numerator"

const (
	NumberPrefix = "QT"

	// NumeratorStrategy: quotations are not fiscal documents, gaps are acceptable.
	NumeratorStrategy = numerator.StrategyCached
)
