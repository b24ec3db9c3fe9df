package creditnote

import (
	"context"

	"salescycle/internal/core/id"
)

// Repository defines operations for credit notes.
type Repository interface {
	Create(ctx context.Context, doc *CreditNote) error
	GetByID(ctx context.Context, docID id.ID) (*CreditNote, error)
	ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*CreditNote, error)
}
