package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/entity"
	"salescycle/internal/core/id"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/infrastructure/storage/postgres"
)

const (
	deliveriesTable    = "doc_deliveries"
	deliveryLinesTable = "doc_delivery_lines"
)

var _ delivery.Repository = (*DeliveryRepo)(nil)

// DeliveryRepo implements delivery.Repository.
type DeliveryRepo struct {
	*documentRepo[*delivery.Delivery, delivery.Item]
}

// NewDeliveryRepo creates a delivery repository.
func NewDeliveryRepo(txManager *postgres.TxManager) *DeliveryRepo {
	return &DeliveryRepo{
		documentRepo: newDocumentRepo(
			txManager, "delivery", deliveriesTable, deliveryLinesTable,
			postgres.ExtractDBColumns[delivery.Delivery](),
			func() *delivery.Delivery { return &delivery.Delivery{} },
			func(d *delivery.Delivery) *entity.Document { return &d.Document },
			func(d *delivery.Delivery) []delivery.Item { return d.Items },
			func(d *delivery.Delivery, items []delivery.Item) { d.Items = items },
		),
	}
}

// GetByIDs reads deliveries in the requested order. A missing id is NotFound.
func (r *DeliveryRepo) GetByIDs(ctx context.Context, ids []id.ID) ([]*delivery.Delivery, error) {
	docs, err := r.selectMany(ctx, r.selectHeaders().Where(squirrel.Eq{"id": ids}))
	if err != nil {
		return nil, err
	}
	return inRequestOrder(docs, ids)
}

// GetForUpdate reads deliveries and locks their rows until the transaction ends.
// Rows are locked in id order so concurrent consolidations cannot deadlock.
func (r *DeliveryRepo) GetForUpdate(ctx context.Context, ids []id.ID) ([]*delivery.Delivery, error) {
	q := r.selectHeaders().
		Where(squirrel.Eq{"id": ids}).
		OrderBy("id").
		Suffix("FOR UPDATE")

	docs, err := r.selectMany(ctx, q)
	if err != nil {
		return nil, err
	}
	return inRequestOrder(docs, ids)
}

// ListByOrder returns the deliveries created from an order, oldest first.
func (r *DeliveryRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]*delivery.Delivery, error) {
	return r.selectMany(ctx, r.selectHeaders().
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("date", "created_at"))
}

// MarkInvoiced links the deliveries to an invoice and records the invoiced
// quantity of each billed line. Lines left off the invoice keep zero. It fails
// with AlreadyConsolidated if any delivery is linked already.
func (r *DeliveryRepo) MarkInvoiced(ctx context.Context, ids []id.ID, invoiceID id.ID, lines []delivery.InvoicedLine) error {
	var batch postgres.Batch

	if err := batch.QueueBuilder("mark deliveries", r.markDeliveries(ids, invoiceID)); err != nil {
		return err
	}
	for _, l := range lines {
		if err := batch.QueueBuilder("mark delivery line", r.markLine(l)); err != nil {
			return err
		}
	}

	affected, err := batch.Exec(ctx, r.querier(ctx))
	if err != nil {
		return fmt.Errorf("mark invoiced: %w", err)
	}
	if affected[0] == int64(len(ids)) {
		return nil
	}

	// Someone linked a delivery since it was read; name it.
	current, err := r.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, d := range current {
		if err := d.EnsureNotConsolidated(); err != nil && *d.InvoiceID != invoiceID {
			return err
		}
	}
	return apperror.NewConcurrentModification("delivery", nil).
		WithDetail("expected", len(ids)).
		WithDetail("updated", affected[0])
}

func (r *DeliveryRepo) markDeliveries(ids []id.ID, invoiceID id.ID) squirrel.UpdateBuilder {
	return r.Builder().
		Update(deliveriesTable).
		Set("invoice_id", invoiceID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": ids, "invoice_id": nil})
}

func (r *DeliveryRepo) markLine(l delivery.InvoicedLine) squirrel.UpdateBuilder {
	return r.Builder().
		Update(deliveryLinesTable).
		Set("quantity_invoiced", l.Quantity).
		Where(squirrel.Eq{"document_id": l.DeliveryID, "line_no": l.LineNo})
}

// ReleaseInvoice unlinks every delivery of a voided invoice.
func (r *DeliveryRepo) ReleaseInvoice(ctx context.Context, invoiceID id.ID) error {
	var batch postgres.Batch

	linked := r.Builder().Select("id").From(deliveriesTable).Where(squirrel.Eq{"invoice_id": invoiceID})
	linkedSQL, linkedArgs, err := linked.ToSql()
	if err != nil {
		return fmt.Errorf("build linked deliveries: %w", err)
	}

	err = batch.QueueBuilder("release delivery lines", r.Builder().
		Update(deliveryLinesTable).
		Set("quantity_invoiced", 0).
		Where("document_id IN ("+linkedSQL+")", linkedArgs...))
	if err != nil {
		return err
	}

	err = batch.QueueBuilder("release deliveries", r.Builder().
		Update(deliveriesTable).
		Set("invoice_id", nil).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"invoice_id": invoiceID}))
	if err != nil {
		return err
	}

	if _, err := batch.Exec(ctx, r.querier(ctx)); err != nil {
		return fmt.Errorf("release invoice deliveries: %w", err)
	}
	return nil
}

func inRequestOrder(docs []*delivery.Delivery, ids []id.ID) ([]*delivery.Delivery, error) {
	byID := make(map[id.ID]*delivery.Delivery, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	out := make([]*delivery.Delivery, 0, len(ids))
	for _, v := range ids {
		d, ok := byID[v]
		if !ok {
			return nil, apperror.NewNotFound("delivery", v.String())
		}
		out = append(out, d)
	}
	return out, nil
}
