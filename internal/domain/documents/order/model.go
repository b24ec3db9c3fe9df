// Package order provides the sales Order document.
package order

import (
	"context"
	"strings"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/entity"
	"salescycle/internal/core/id"
	"salescycle/internal/core/types"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/finance"
	"salescycle/internal/domain/workflow"
)

// Order is a confirmed intent to sell. Party and site references are resolved
// surrogate ids, never raw legacy codes.
type Order struct {
	entity.Document

	ClientID    string `db:"client_id" json:"clientId"`
	VendorID    string `db:"vendor_id" json:"vendorId,omitempty"`
	SiteID      string `db:"site_id" json:"siteId"`
	QuotationID *id.ID `db:"quotation_id" json:"quotationId,omitempty"`

	State workflow.State `db:"state" json:"state"`

	finance.Totals

	Items []documents.Item `db:"-" json:"items"`
}

// NewOrder creates a draft order.
func NewOrder(clientID, vendorID, siteID string, items []documents.Item) *Order {
	return &Order{
		Document: entity.NewDocument(),
		ClientID: clientID,
		VendorID: vendorID,
		SiteID:   siteID,
		State:    workflow.StateDraft,
		Items:    items,
	}
}

// Recalculate reprices all lines and refreshes totals.
func (o *Order) Recalculate() error {
	totals, err := documents.PriceItems(o.Number, o.Items)
	if err != nil {
		return err
	}
	o.Totals = totals
	return nil
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}

	if strings.TrimSpace(o.ClientID) == "" {
		return apperror.NewValidation("client is required").
			WithDetail("field", "clientId").
			WithDocument(o.Number)
	}

	if strings.TrimSpace(o.SiteID) == "" {
		return apperror.NewValidation("site is required").
			WithDetail("field", "siteId").
			WithDocument(o.Number)
	}

	return o.Recalculate()
}

// CanShip reports whether deliveries may be created from the order.
func (o *Order) CanShip() error {
	if o.State == workflow.StateConfirmed || o.State == workflow.StateInProcess {
		return nil
	}
	return apperror.NewBusinessRule(apperror.CodeBusinessRule, "Only confirmed orders can be shipped").
		WithDetail("state", string(o.State)).
		WithDocument(o.Number)
}

// PriceFor returns the first positive unit price the order carries for productID.
func (o *Order) PriceFor(productID string) (types.Money, bool) {
	for _, it := range o.Items {
		if it.ProductID == productID && it.UnitPrice.IsPositive() {
			return it.UnitPrice, true
		}
	}
	return types.Zero(), false
}
