package document_repo

import (
	"salescycle/internal/core/entity"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/order"
	"salescycle/internal/infrastructure/storage/postgres"
)

const (
	ordersTable     = "doc_sales_orders"
	orderLinesTable = "doc_sales_order_lines"
)

var _ order.Repository = (*OrderRepo)(nil)

// OrderRepo implements order.Repository.
type OrderRepo struct {
	*documentRepo[*order.Order, documents.Item]
}

// NewOrderRepo creates an order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		documentRepo: newDocumentRepo(
			txManager, "order", ordersTable, orderLinesTable,
			postgres.ExtractDBColumns[order.Order](),
			func() *order.Order { return &order.Order{} },
			func(o *order.Order) *entity.Document { return &o.Document },
			func(o *order.Order) []documents.Item { return o.Items },
			func(o *order.Order, items []documents.Item) { o.Items = items },
		),
	}
}
