package invoice

import (
	"context"
	"time"

	"salescycle/internal/core/id"
	"salescycle/internal/domain/workflow"
)

// Repository defines operations for invoices. GetByID always reads the stored row.
type Repository interface {
	Create(ctx context.Context, doc *Invoice) error
	GetByID(ctx context.Context, docID id.ID) (*Invoice, error)

	// GetForUpdate reads the invoice and locks its row until the surrounding
	// transaction ends. It must be called inside RunInTransaction.
	GetForUpdate(ctx context.Context, docID id.ID) (*Invoice, error)

	// UpdateState moves the document from `from` to `to`; it fails with
	// ConcurrentModification when the stored state is no longer `from`.
	UpdateState(ctx context.Context, docID id.ID, from, to workflow.State) error

	// MarkStamped moves a DRAFT invoice to ISSUED and stores the stamping reference.
	MarkStamped(ctx context.Context, docID id.ID, reference string, stampedAt time.Time) error
}
