package quotation

import (
	"context"

	"salescycle/internal/core/id"
	"salescycle/internal/domain/workflow"
)

// Repository defines operations for quotations. GetByID always reads the stored row.
type Repository interface {
	Create(ctx context.Context, doc *Quotation) error
	GetByID(ctx context.Context, docID id.ID) (*Quotation, error)

	// UpdateState moves the document from `from` to `to`; it fails with
	// ConcurrentModification when the stored state is no longer `from`.
	UpdateState(ctx context.Context, docID id.ID, from, to workflow.State) error
}
