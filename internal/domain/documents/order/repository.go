package order

import (
	"context"

	"salescycle/internal/core/id"
	"salescycle/internal/domain/workflow"
)

// Repository defines operations for orders. GetByID always reads the stored row.
type Repository interface {
	Create(ctx context.Context, doc *Order) error
	GetByID(ctx context.Context, docID id.ID) (*Order, error)

	// UpdateState moves the document from `from` to `to`; it fails with
	// ConcurrentModification when the stored state is no longer `from`.
	UpdateState(ctx context.Context, docID id.ID, from, to workflow.State) error
}
