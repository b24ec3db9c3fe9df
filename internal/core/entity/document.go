package entity

import (
	"context"
	"time"

	"salescycle/internal/core/apperror"
)

// Document is the base type for sales documents.
// Examples: Quotation, Order, Delivery, Invoice, CreditNote.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within type+period)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document with generated ID dated today.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date").
			WithDocument(d.Number)
	}
	return nil
}

// Label returns the identifier shown to users: the number, or the id for unnumbered drafts.
func (d *Document) Label() string {
	if d.Number != "" {
		return d.Number
	}
	return d.ID.String()
}
