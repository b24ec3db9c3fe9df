package cache

import (
	"context"

	"salescycle/internal/core/id"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/domain/sales"
	"salescycle/pkg/logger"
)

// DeliverySource is the authoritative delivery store.
type DeliverySource interface {
	GetByID(ctx context.Context, docID id.ID) (*delivery.Delivery, error)
}

// DeliveryDisplay caches delivery views for the read endpoints and takes the
// optimistic updates issued during consolidation.
type DeliveryDisplay struct {
	cache  *DisplayCache[id.ID, delivery.Delivery]
	source DeliverySource
}

var _ sales.DeliveryDisplay = (*DeliveryDisplay)(nil)

// NewDeliveryDisplay creates a display cache over source.
func NewDeliveryDisplay(source DeliverySource) *DeliveryDisplay {
	return &DeliveryDisplay{
		cache:  NewDisplayCache[id.ID, delivery.Delivery](),
		source: source,
	}
}

// Get returns the cached view, loading and confirming it on a miss.
func (d *DeliveryDisplay) Get(ctx context.Context, docID id.ID) (Entry[delivery.Delivery], error) {
	if e, ok := d.cache.Get(docID); ok {
		return e, nil
	}

	doc, err := d.source.GetByID(ctx, docID)
	if err != nil {
		return Entry[delivery.Delivery]{}, err
	}
	d.cache.Confirm(docID, snapshot(doc))

	e, _ := d.cache.Get(docID)
	return e, nil
}

// MarkPending shows the deliveries as linked to invoiceID.
func (d *DeliveryDisplay) MarkPending(_ context.Context, deliveryIDs []id.ID, invoiceID id.ID) {
	for _, docID := range deliveryIDs {
		var view delivery.Delivery
		if e, ok := d.cache.Get(docID); ok {
			view = e.Value
		} else {
			view.ID = docID
		}
		inv := invoiceID
		view.InvoiceID = &inv
		d.cache.SetPending(docID, view)
	}
}

// Confirm reloads the deliveries from storage. A delivery that cannot be read
// is dropped and left for the next read-through.
func (d *DeliveryDisplay) Confirm(ctx context.Context, deliveryIDs []id.ID) {
	for _, docID := range deliveryIDs {
		doc, err := d.source.GetByID(ctx, docID)
		if err != nil {
			logger.Warn(ctx, "delivery display reconcile failed", "delivery_id", docID.String(), "error", err)
			d.cache.Invalidate(docID)
			continue
		}
		d.cache.Confirm(docID, snapshot(doc))
	}
}

// Rollback restores the views shown before MarkPending.
func (d *DeliveryDisplay) Rollback(_ context.Context, deliveryIDs []id.ID) {
	for _, docID := range deliveryIDs {
		d.cache.Rollback(docID)
	}
}

// Invalidate drops a view after an out-of-band change.
func (d *DeliveryDisplay) Invalidate(docID id.ID) {
	d.cache.Invalidate(docID)
}

func snapshot(doc *delivery.Delivery) delivery.Delivery {
	v := *doc
	v.Items = append([]delivery.Item(nil), doc.Items...)
	return v
}
