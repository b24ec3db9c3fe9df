// Package delivery provides the Delivery (remission) document.
package delivery

import (
	"context"
	"strings"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/entity"
	"salescycle/internal/core/id"
	"salescycle/internal/core/types"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/workflow"
)

// Item is a shipped line. Item.Quantity is the shipped quantity.
type Item struct {
	documents.Item

	QuantityInvoiced types.Quantity `db:"quantity_invoiced" json:"quantityInvoiced"`
	QuantityReturned types.Quantity `db:"quantity_returned" json:"quantityReturned"`
}

// Shipped returns the shipped quantity.
func (i *Item) Shipped() types.Quantity {
	return i.Quantity
}

// Invoiceable is the quantity still billable: shipped minus returned.
func (i *Item) Invoiceable() types.Quantity {
	return i.Quantity.Sub(i.QuantityReturned)
}

// InvoicedLine is the quantity of one delivery line billed on an invoice.
type InvoicedLine struct {
	DeliveryID id.ID
	LineNo     int
	Quantity   types.Quantity
}

// Delivery records goods leaving a site for a client.
//
// ClientID and VendorID may hold a surrogate id or a legacy code depending on
// which application wrote the row; consumers resolve them before use.
type Delivery struct {
	entity.Document

	OrderID    *id.ID `db:"order_id" json:"orderId,omitempty"`
	ClientID   string `db:"client_id" json:"clientId"`
	ClientCode string `db:"client_code" json:"clientCode,omitempty"`
	VendorID   string `db:"vendor_id" json:"vendorId,omitempty"`
	SiteID     string `db:"site_id" json:"siteId"`

	State workflow.State `db:"state" json:"state"`

	// InvoiceID is set once the delivery is consolidated; it guards against double billing
	InvoiceID *id.ID `db:"invoice_id" json:"invoiceId,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// NewDelivery creates a draft delivery.
func NewDelivery(orderID *id.ID, clientID, vendorID, siteID string, items []Item) *Delivery {
	return &Delivery{
		Document: entity.NewDocument(),
		OrderID:  orderID,
		ClientID: clientID,
		VendorID: vendorID,
		SiteID:   siteID,
		State:    workflow.StateDraft,
		Items:    items,
	}
}

// IsConsolidated reports whether the delivery already belongs to an invoice.
func (d *Delivery) IsConsolidated() bool {
	return d.InvoiceID != nil && !id.IsNil(*d.InvoiceID)
}

// EnsureNotConsolidated returns AlreadyConsolidated for billed deliveries.
func (d *Delivery) EnsureNotConsolidated() error {
	if !d.IsConsolidated() {
		return nil
	}
	return apperror.NewAlreadyConsolidated(d.ID.String(), d.InvoiceID.String()).
		WithDocument(d.Number)
}

// Validate implements entity.Validatable.
func (d *Delivery) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}

	if strings.TrimSpace(d.ClientID) == "" {
		return apperror.NewValidation("client is required").
			WithDetail("field", "clientId").
			WithDocument(d.Number)
	}

	if strings.TrimSpace(d.SiteID) == "" {
		return apperror.NewValidation("site is required").
			WithDetail("field", "siteId").
			WithDocument(d.Number)
	}

	lines := make([]documents.Item, len(d.Items))
	for i := range d.Items {
		d.Items[i].LineNo = i + 1
		lines[i] = d.Items[i].Item
		if d.Items[i].QuantityReturned.IsNegative() || d.Items[i].QuantityReturned.GreaterThan(d.Items[i].Quantity) {
			return apperror.NewInvalidLine(d.Items[i].ProductID, "returned quantity must be between 0 and shipped").
				WithDetail("lineNo", i+1).
				WithDocument(d.Number)
		}
	}
	return documents.ValidateUnpriced(d.Number, lines)
}

// ShippedByProduct sums shipped quantities (net of returns) per product.
func ShippedByProduct(deliveries []*Delivery) map[string]types.Quantity {
	out := make(map[string]types.Quantity)
	for _, d := range deliveries {
		for i := range d.Items {
			it := &d.Items[i]
			out[it.ProductID] = out[it.ProductID].Add(it.Invoiceable())
		}
	}
	return out
}
