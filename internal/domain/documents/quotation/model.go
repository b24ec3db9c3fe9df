// Package quotation provides the Quotation document.
package quotation

import (
	"context"
	"sort"
	"strings"
	"time"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/entity"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/finance"
	"salescycle/internal/domain/workflow"
)

// Quotation is an offer sent to a client. Client and vendor are kept as the
// legacy codes the salesperson typed; they are resolved when an order is spawned.
type Quotation struct {
	entity.Document

	ClientID string `db:"client_id" json:"clientId"`
	VendorID string `db:"vendor_id" json:"vendorId"`

	State      workflow.State `db:"state" json:"state"`
	ExpiryDate *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`

	finance.Totals

	Items []documents.Item `db:"-" json:"items"`
}

// NewQuotation creates a draft quotation.
func NewQuotation(clientID, vendorID string, items []documents.Item) *Quotation {
	return &Quotation{
		Document: entity.NewDocument(),
		ClientID: clientID,
		VendorID: vendorID,
		State:    workflow.StateDraft,
		Items:    items,
	}
}

// Recalculate reprices all lines and refreshes totals.
func (q *Quotation) Recalculate() error {
	totals, err := documents.PriceItems(q.Number, q.Items)
	if err != nil {
		return err
	}
	q.Totals = totals
	return nil
}

// Validate implements entity.Validatable.
func (q *Quotation) Validate(ctx context.Context) error {
	if err := q.Document.Validate(ctx); err != nil {
		return err
	}

	if strings.TrimSpace(q.ClientID) == "" {
		return apperror.NewValidation("client is required").
			WithDetail("field", "clientId").
			WithDocument(q.Number)
	}

	return q.Recalculate()
}

// CanEdit reports whether lines may still change.
func (q *Quotation) CanEdit() error {
	if q.State == workflow.StateDraft || q.State == workflow.StateSent {
		return nil
	}
	return apperror.NewBusinessRule(apperror.CodeBusinessRule, "Quotation can no longer be edited").
		WithDetail("state", string(q.State)).
		WithDocument(q.Number)
}

// IsExpired reports whether the expiry date has passed at `at`.
func (q *Quotation) IsExpired(at time.Time) bool {
	return q.ExpiryDate != nil && at.After(*q.ExpiryDate)
}

// SelectItems returns copies of the lines whose products are listed, in quotation order.
// An empty selection means every line.
func (q *Quotation) SelectItems(productIDs []string) ([]documents.Item, error) {
	if len(productIDs) == 0 {
		out := make([]documents.Item, len(q.Items))
		copy(out, q.Items)
		return out, nil
	}

	wanted := make(map[string]bool, len(productIDs))
	for _, p := range productIDs {
		wanted[p] = true
	}

	out := make([]documents.Item, 0, len(productIDs))
	for _, it := range q.Items {
		if wanted[it.ProductID] {
			out = append(out, it)
			delete(wanted, it.ProductID)
		}
	}

	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for p := range wanted {
			missing = append(missing, p)
		}
		sort.Strings(missing)
		return nil, apperror.NewValidation("products are not part of the quotation").
			WithDetail("product_ids", missing).
			WithDocument(q.Number)
	}
	return out, nil
}
