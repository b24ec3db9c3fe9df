package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"salescycle/internal/core/entity"
	"salescycle/internal/core/id"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/creditnote"
	"salescycle/internal/infrastructure/storage/postgres"
)

const (
	creditNotesTable     = "doc_credit_notes"
	creditNoteLinesTable = "doc_credit_note_lines"
)

var _ creditnote.Repository = (*CreditNoteRepo)(nil)

// CreditNoteRepo implements creditnote.Repository.
type CreditNoteRepo struct {
	*documentRepo[*creditnote.CreditNote, documents.Item]
}

// NewCreditNoteRepo creates a credit note repository.
func NewCreditNoteRepo(txManager *postgres.TxManager) *CreditNoteRepo {
	return &CreditNoteRepo{
		documentRepo: newDocumentRepo(
			txManager, "credit_note", creditNotesTable, creditNoteLinesTable,
			postgres.ExtractDBColumns[creditnote.CreditNote](),
			func() *creditnote.CreditNote { return &creditnote.CreditNote{} },
			func(c *creditnote.CreditNote) *entity.Document { return &c.Document },
			func(c *creditnote.CreditNote) []documents.Item { return c.Items },
			func(c *creditnote.CreditNote, items []documents.Item) { c.Items = items },
		),
	}
}

// ListByInvoice returns every credit note issued against an invoice.
func (r *CreditNoteRepo) ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*creditnote.CreditNote, error) {
	return r.selectMany(ctx, r.selectHeaders().
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("date", "created_at"))
}
