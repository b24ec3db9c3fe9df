package party

import (
	"context"
)

// Repository loads parties from the legacy client and vendor tables.
// Reads are always fresh; display caching is the caller's concern.
type Repository interface {
	// ListByKind returns every party of the given kind, inactive ones included.
	ListByKind(ctx context.Context, kind Kind) ([]*Party, error)
}
