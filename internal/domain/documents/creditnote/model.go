// Package creditnote provides the CreditNote document.
package creditnote

import (
	"context"
	"strings"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/entity"
	"salescycle/internal/core/id"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/finance"
	"salescycle/internal/domain/workflow"
)

// CreditNote adjusts an invoice. It is recorded once and never transitions.
type CreditNote struct {
	entity.Document

	InvoiceID id.ID  `db:"invoice_id" json:"invoiceId"`
	ClientID  string `db:"client_id" json:"clientId"`
	Reason    string `db:"reason" json:"reason"`

	State workflow.State `db:"state" json:"state"`

	finance.Totals

	Items []documents.Item `db:"-" json:"items"`
}

// NewCreditNote creates a recorded credit note.
func NewCreditNote(invoiceID id.ID, clientID, reason string, items []documents.Item) *CreditNote {
	return &CreditNote{
		Document:  entity.NewDocument(),
		InvoiceID: invoiceID,
		ClientID:  clientID,
		Reason:    reason,
		State:     workflow.StateRecorded,
		Items:     items,
	}
}

// Validate implements entity.Validatable.
func (c *CreditNote) Validate(ctx context.Context) error {
	if err := c.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(c.InvoiceID) {
		return apperror.NewValidation("invoice is required").
			WithDetail("field", "invoiceId").
			WithDocument(c.Number)
	}

	if strings.TrimSpace(c.Reason) == "" {
		return apperror.NewValidation("reason is required").
			WithDetail("field", "reason").
			WithDocument(c.Number)
	}

	totals, err := documents.PriceItems(c.Number, c.Items)
	if err != nil {
		return err
	}
	c.Totals = totals
	return nil
}
