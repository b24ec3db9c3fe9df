package invoice

import (
	"context"
	"time"
)

// StampResult is what the tax authority returns for an accepted invoice.
type StampResult struct {
	Reference string
	StampedAt time.Time
}

// Stamper submits invoices to the tax authority.
//
// Implementations must not retry on their own: a resubmission of a fiscal
// document is a user decision.
type Stamper interface {
	Stamp(ctx context.Context, inv *Invoice) (StampResult, error)
}
