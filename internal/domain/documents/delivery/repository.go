package delivery

import (
	"context"

	"salescycle/internal/core/id"
	"salescycle/internal/domain/workflow"
)

// Repository defines operations for deliveries. All reads are authoritative.
type Repository interface {
	Create(ctx context.Context, doc *Delivery) error
	GetByID(ctx context.Context, docID id.ID) (*Delivery, error)

	// GetByIDs returns the deliveries in the order of ids; a missing id is NotFound.
	GetByIDs(ctx context.Context, ids []id.ID) ([]*Delivery, error)

	// GetForUpdate is GetByIDs with row locks; call inside a transaction.
	GetForUpdate(ctx context.Context, ids []id.ID) ([]*Delivery, error)

	ListByOrder(ctx context.Context, orderID id.ID) ([]*Delivery, error)

	// UpdateState moves the document from `from` to `to`; it fails with
	// ConcurrentModification when the stored state is no longer `from`.
	UpdateState(ctx context.Context, docID id.ID, from, to workflow.State) error

	// MarkInvoiced stamps the deliveries with invoiceID and sets the invoiced
	// quantity of the listed lines only. Deliveries that already carry an
	// invoice are not touched and the call fails with AlreadyConsolidated.
	MarkInvoiced(ctx context.Context, ids []id.ID, invoiceID id.ID, lines []InvoicedLine) error

	// ReleaseInvoice clears invoiceID from every delivery that references it.
	ReleaseInvoice(ctx context.Context, invoiceID id.ID) error
}
