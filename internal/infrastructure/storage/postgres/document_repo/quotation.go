package document_repo

import (
	"salescycle/internal/core/entity"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/quotation"
	"salescycle/internal/infrastructure/storage/postgres"
)

const (
	quotationsTable     = "doc_quotations"
	quotationLinesTable = "doc_quotation_lines"
)

var _ quotation.Repository = (*QuotationRepo)(nil)

// QuotationRepo implements quotation.Repository.
type QuotationRepo struct {
	*documentRepo[*quotation.Quotation, documents.Item]
}

// NewQuotationRepo creates a quotation repository.
func NewQuotationRepo(txManager *postgres.TxManager) *QuotationRepo {
	return &QuotationRepo{
		documentRepo: newDocumentRepo(
			txManager, "quotation", quotationsTable, quotationLinesTable,
			postgres.ExtractDBColumns[quotation.Quotation](),
			func() *quotation.Quotation { return &quotation.Quotation{} },
			func(q *quotation.Quotation) *entity.Document { return &q.Document },
			func(q *quotation.Quotation) []documents.Item { return q.Items },
			func(q *quotation.Quotation, items []documents.Item) { q.Items = items },
		),
	}
}
