package document_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"salescycle/internal/core/entity"
	"salescycle/internal/core/id"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/invoice"
	"salescycle/internal/domain/workflow"
	"salescycle/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable     = "doc_invoices"
	invoiceLinesTable = "doc_invoice_lines"
)

var _ invoice.Repository = (*InvoiceRepo)(nil)

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	*documentRepo[*invoice.Invoice, documents.Item]
}

// NewInvoiceRepo creates an invoice repository.
func NewInvoiceRepo(txManager *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		documentRepo: newDocumentRepo(
			txManager, "invoice", invoicesTable, invoiceLinesTable,
			postgres.ExtractDBColumns[invoice.Invoice](),
			func() *invoice.Invoice { return &invoice.Invoice{} },
			func(inv *invoice.Invoice) *entity.Document { return &inv.Document },
			func(inv *invoice.Invoice) []documents.Item { return inv.Items },
			func(inv *invoice.Invoice, items []documents.Item) { inv.Items = items },
		),
	}
}

// GetForUpdate implements invoice.Repository.
func (r *InvoiceRepo) GetForUpdate(ctx context.Context, docID id.ID) (*invoice.Invoice, error) {
	return r.getOne(ctx, r.lockOne(docID), docID)
}

func (r *InvoiceRepo) lockOne(docID id.ID) squirrel.SelectBuilder {
	return r.selectHeaders().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE")
}

// MarkStamped implements invoice.Repository.
func (r *InvoiceRepo) MarkStamped(ctx context.Context, docID id.ID, reference string, stampedAt time.Time) error {
	return r.updateWhereState(ctx, docID, workflow.StateDraft, map[string]any{
		"state":              workflow.StateIssued,
		"stamping_reference": reference,
		"stamped_at":         stampedAt,
	})
}
