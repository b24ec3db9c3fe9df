// Package tx declares the transaction boundary used by the sales service.
package tx

import "context"

// Manager runs a unit of work atomically.
//
// The transaction travels in the ctx passed to fn; repositories called with
// that ctx join it. Row locks taken inside fn (deliveries read FOR UPDATE
// during consolidation) are held until fn returns. A strict document number
// drawn inside fn is given back when fn fails.
//
// A nested call joins the outer transaction instead of opening a new one.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
