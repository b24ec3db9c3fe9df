package sales

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/id"
	"salescycle/internal/core/types"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/creditnote"
	"salescycle/internal/domain/documents/invoice"
	"salescycle/internal/domain/workflow"
	"salescycle/pkg/logger"
)

// CreditNoteLine credits part of an invoice line.
type CreditNoteLine struct {
	ProductID string
	Quantity  types.Quantity
	// UnitPrice defaults to the invoiced price
	UnitPrice *types.Money
}

// IssueCreditNoteInput describes a credit note against an invoice.
type IssueCreditNoteInput struct {
	InvoiceID id.ID
	Reason    string
	Lines     []CreditNoteLine
}

// IssueCreditNote records a credit note against a non-VOID invoice. Across all
// credit notes of the invoice, no product may be credited beyond its invoiced quantity.
func (s *Service) IssueCreditNote(ctx context.Context, in IssueCreditNoteInput) (_ *creditnote.CreditNote, err error) {
	ctx, span := startSpan(ctx, "IssueCreditNote", attribute.String("invoice.id", in.InvoiceID.String()))
	defer func() { endSpan(span, err) }()

	// The invoice row lock serializes credit notes of one invoice, so the
	// cumulative cap is checked against every committed note.
	var (
		inv *invoice.Invoice
		cn  *creditnote.CreditNote
	)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repos.Invoices.GetForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return notFoundAs(err, workflow.EntityInvoice, in.InvoiceID)
		}
		if inv.State == workflow.StateVoid {
			return apperror.NewIllegalTransition(string(workflow.EntityCreditNote), string(inv.State), string(workflow.StateRecorded)).
				WithDetail("reason", "invoice is void").
				WithDocument(inv.Number)
		}

		previous, err := s.repos.CreditNotes.ListByInvoice(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("list credit notes of invoice: %w", err)
		}

		items, err := creditItems(inv, previous, in.Lines)
		if err != nil {
			return err
		}

		cn = creditnote.NewCreditNote(inv.ID, inv.ClientID, in.Reason, items)
		cn.Date = s.today()
		if err := cn.Validate(ctx); err != nil {
			return err
		}

		cn.Number, err = s.nextNumber(ctx, creditnote.NumberPrefix, creditnote.NumeratorStrategy, cn.Date)
		if err != nil {
			return err
		}
		if err := s.repos.CreditNotes.Create(ctx, cn); err != nil {
			return fmt.Errorf("create credit note: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.ActionCreate, string(workflow.EntityCreditNote), cn.ID.String(), map[string]any{
		"number":         cn.Number,
		"invoice_id":     inv.ID.String(),
		"invoice_number": inv.Number,
		"total":          cn.PayableAmount.StringFixed(2),
	})
	logger.Info(ctx, "credit note issued", "invoice", inv.Number, "credit_note", cn.Number)
	return cn, nil
}

// creditItems prices the requested lines from the invoice and enforces the cumulative cap.
func creditItems(inv *invoice.Invoice, previous []*creditnote.CreditNote, lines []CreditNoteLine) ([]documents.Item, error) {
	if len(lines) == 0 {
		return nil, apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines").
			WithDocument(inv.Number)
	}

	invoiced := quantityByProduct(inv.Items)
	ceiling := maxPriceByProduct(inv.Items)
	credited := make(map[string]types.Quantity)
	for _, cn := range previous {
		for p, q := range quantityByProduct(cn.Items) {
			credited[p] = credited[p].Add(q)
		}
	}

	items := make([]documents.Item, 0, len(lines))
	for _, l := range lines {
		src, ok := inv.FindItem(l.ProductID)
		if !ok {
			return nil, apperror.NewInvalidLine(l.ProductID, "product is not on the invoice").
				WithDocument(inv.Number)
		}

		credited[l.ProductID] = credited[l.ProductID].Add(l.Quantity)
		if credited[l.ProductID].GreaterThan(invoiced[l.ProductID]) {
			return nil, apperror.NewInvalidLine(l.ProductID, "credited quantity exceeds the invoiced quantity").
				WithDetail("invoiced", invoiced[l.ProductID].String()).
				WithDetail("credited", credited[l.ProductID].String()).
				WithDocument(inv.Number)
		}

		price := src.UnitPrice
		if l.UnitPrice != nil {
			if l.UnitPrice.GreaterThan(ceiling[l.ProductID]) {
				return nil, apperror.NewInvalidLine(l.ProductID, "unit price exceeds the invoiced price").
					WithDetail("invoiced_price", ceiling[l.ProductID].String()).
					WithDetail("unit_price", l.UnitPrice.String()).
					WithDocument(inv.Number)
			}
			price = *l.UnitPrice
		}

		items = append(items, documents.Item{
			ProductID:       src.ProductID,
			ProductCode:     src.ProductCode,
			Description:     src.Description,
			Quantity:        l.Quantity,
			UnitPrice:       price,
			DiscountPercent: src.DiscountPercent,
			TaxPercent:      src.TaxPercent,
		})
	}
	return items, nil
}

func quantityByProduct(items []documents.Item) map[string]types.Quantity {
	out := make(map[string]types.Quantity, len(items))
	for _, it := range items {
		out[it.ProductID] = out[it.ProductID].Add(it.Quantity)
	}
	return out
}

// maxPriceByProduct is the highest invoiced unit price of each product.
// A product shipped at different prices spans several invoice lines.
func maxPriceByProduct(items []documents.Item) map[string]types.Money {
	out := make(map[string]types.Money, len(items))
	for _, it := range items {
		if cur, ok := out[it.ProductID]; !ok || it.UnitPrice.GreaterThan(cur) {
			out[it.ProductID] = it.UnitPrice
		}
	}
	return out
}
