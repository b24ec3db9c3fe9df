package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/id"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/creditnote"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/domain/documents/invoice"
	"salescycle/internal/domain/documents/order"
	"salescycle/internal/domain/documents/quotation"
	"salescycle/internal/domain/workflow"
	"salescycle/pkg/logger"
)

// CreateQuotationInput describes a new offer. Client and vendor are stored as typed.
type CreateQuotationInput struct {
	ClientID   string
	VendorID   string
	ExpiryDate *time.Time
	Comment    string
	Items      []documents.Item
}

// CreateQuotation stores a new DRAFT quotation.
func (s *Service) CreateQuotation(ctx context.Context, in CreateQuotationInput) (*quotation.Quotation, error) {
	items := make([]documents.Item, len(in.Items))
	copy(items, in.Items)

	q := quotation.NewQuotation(strings.TrimSpace(in.ClientID), strings.TrimSpace(in.VendorID), items)
	q.Date = s.today()
	q.Comment = in.Comment
	q.ExpiryDate = in.ExpiryDate
	if q.ExpiryDate != nil && q.ExpiryDate.Before(q.Date) {
		return nil, apperror.NewValidation("expiry date cannot precede the quotation date").
			WithDetail("field", "expiryDate")
	}
	if err := q.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.nextNumber(ctx, quotation.NumberPrefix, quotation.NumeratorStrategy, q.Date)
	if err != nil {
		return nil, err
	}
	q.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repos.Quotations.Create(ctx, q); err != nil {
			return fmt.Errorf("create quotation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.ActionCreate, string(workflow.EntityQuotation), q.ID.String(), map[string]any{
		"number": q.Number,
		"lines":  len(q.Items),
	})
	logger.Info(ctx, "quotation created", "id", q.ID, "number", q.Number)
	return q, nil
}

// GetQuotation reads a quotation.
func (s *Service) GetQuotation(ctx context.Context, docID id.ID) (*quotation.Quotation, error) {
	q, err := s.repos.Quotations.GetByID(ctx, docID)
	return q, notFoundAs(err, workflow.EntityQuotation, docID)
}

// GetOrder reads an order.
func (s *Service) GetOrder(ctx context.Context, docID id.ID) (*order.Order, error) {
	o, err := s.repos.Orders.GetByID(ctx, docID)
	return o, notFoundAs(err, workflow.EntityOrder, docID)
}

// GetDelivery reads a delivery from storage.
func (s *Service) GetDelivery(ctx context.Context, docID id.ID) (*delivery.Delivery, error) {
	d, err := s.repos.Deliveries.GetByID(ctx, docID)
	return d, notFoundAs(err, workflow.EntityDelivery, docID)
}

// GetInvoice reads an invoice.
func (s *Service) GetInvoice(ctx context.Context, docID id.ID) (*invoice.Invoice, error) {
	inv, err := s.repos.Invoices.GetByID(ctx, docID)
	return inv, notFoundAs(err, workflow.EntityInvoice, docID)
}

// GetCreditNote reads a credit note.
func (s *Service) GetCreditNote(ctx context.Context, docID id.ID) (*creditnote.CreditNote, error) {
	cn, err := s.repos.CreditNotes.GetByID(ctx, docID)
	return cn, notFoundAs(err, workflow.EntityCreditNote, docID)
}
