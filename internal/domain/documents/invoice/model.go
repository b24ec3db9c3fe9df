// Package invoice provides the sales Invoice document.
package invoice

import (
	"context"
	"strings"
	"time"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/entity"
	"salescycle/internal/core/id"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/finance"
	"salescycle/internal/domain/workflow"
)

// Invoice bills one client for one or more deliveries.
type Invoice struct {
	entity.Document

	ClientID string `db:"client_id" json:"clientId"`
	// VendorID is empty when the delivery vendor could not be resolved
	VendorID string `db:"vendor_id" json:"vendorId,omitempty"`
	SiteID   string `db:"site_id" json:"siteId,omitempty"`

	DeliveryIDs []id.ID `db:"delivery_ids" json:"deliveryIds"`

	IssueDate time.Time `db:"issue_date" json:"issueDate"`
	DueDate   time.Time `db:"due_date" json:"dueDate"`

	State workflow.State `db:"state" json:"state"`

	// Set only after successful stamping
	StampingReference *string    `db:"stamping_reference" json:"stampingReference,omitempty"`
	StampedAt         *time.Time `db:"stamped_at" json:"stampedAt,omitempty"`

	finance.Totals

	Items []documents.Item `db:"-" json:"items"`
}

// NewInvoice creates a draft invoice.
func NewInvoice(clientID string, deliveryIDs []id.ID, items []documents.Item) *Invoice {
	return &Invoice{
		Document:    entity.NewDocument(),
		ClientID:    clientID,
		DeliveryIDs: deliveryIDs,
		State:       workflow.StateDraft,
		Items:       items,
	}
}

// Recalculate reprices all lines and refreshes totals.
func (inv *Invoice) Recalculate() error {
	totals, err := documents.PriceItems(inv.Number, inv.Items)
	if err != nil {
		return err
	}
	inv.Totals = totals
	return nil
}

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if err := inv.Document.Validate(ctx); err != nil {
		return err
	}

	if strings.TrimSpace(inv.ClientID) == "" {
		return apperror.NewValidation("client is required").
			WithDetail("field", "clientId").
			WithDocument(inv.Number)
	}

	if len(inv.DeliveryIDs) == 0 {
		return apperror.NewValidation("an invoice must reference at least one delivery").
			WithDetail("field", "deliveryIds").
			WithDocument(inv.Number)
	}

	if inv.DueDate.Before(inv.IssueDate) {
		return apperror.NewValidation("due date cannot precede issue date").
			WithDetail("field", "dueDate").
			WithDocument(inv.Number)
	}

	return inv.Recalculate()
}

// IsStamped reports whether the tax authority accepted the invoice.
func (inv *Invoice) IsStamped() bool {
	return inv.StampingReference != nil && *inv.StampingReference != ""
}

// FindItem returns the invoice line for productID.
func (inv *Invoice) FindItem(productID string) (documents.Item, bool) {
	return documents.FindByProduct(inv.Items, productID)
}
