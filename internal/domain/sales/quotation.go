package sales

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/id"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/domain/documents/order"
	"salescycle/internal/domain/documents/quotation"
	"salescycle/internal/domain/resolver"
	"salescycle/internal/domain/workflow"
	"salescycle/pkg/logger"
)

// ApproveQuotationInput selects what an approval turns into an order.
type ApproveQuotationInput struct {
	QuotationID id.ID
	// ProductIDs restricts the order to these quotation lines; empty means all
	ProductIDs []string
	// SiteID is the shipping site, resolved like any legacy identifier
	SiteID string
}

// ApproveQuotation approves a SENT quotation and seeds a DRAFT order from the
// selected lines. The quotation's legacy client and vendor codes are resolved
// to catalog ids on the way.
func (s *Service) ApproveQuotation(ctx context.Context, in ApproveQuotationInput) (_ *order.Order, err error) {
	ctx, span := startSpan(ctx, "ApproveQuotation", attribute.String("quotation.id", in.QuotationID.String()))
	defer func() { endSpan(span, err) }()

	q, err := s.repos.Quotations.GetByID(ctx, in.QuotationID)
	if err != nil {
		return nil, notFoundAs(err, workflow.EntityQuotation, in.QuotationID)
	}

	if err := s.machine.Check(workflow.EntityQuotation, q.State, workflow.StateApproved, workflow.TriggerUser); err != nil {
		return nil, withDocument(err, q.Number)
	}
	if q.IsExpired(s.now()) {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "Quotation has expired").
			WithDetail("expiry_date", q.ExpiryDate).
			WithDocument(q.Number)
	}

	items, err := q.SelectItems(in.ProductIDs)
	if err != nil {
		return nil, err
	}

	client, err := s.resolver.ResolveParty(ctx, party.KindClient, q.ClientID, resolver.Hints{})
	if err != nil {
		return nil, withDocument(err, q.Number)
	}
	if err := client.EnsureActive(); err != nil {
		return nil, withDocument(err, q.Number)
	}

	vendorID := s.optionalVendor(ctx, q)

	site, err := s.resolver.ResolveSite(ctx, in.SiteID, resolver.Hints{})
	if err != nil {
		return nil, withDocument(err, q.Number)
	}

	o := order.NewOrder(client.ID, vendorID, site.ID, items)
	o.QuotationID = &q.ID
	o.Date = s.today()
	if err := o.Validate(ctx); err != nil {
		return nil, err
	}

	o.Number, err = s.nextNumber(ctx, order.NumberPrefix, order.NumeratorStrategy, o.Date)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repos.Quotations.UpdateState(ctx, q.ID, q.State, workflow.StateApproved); err != nil {
			return withDocument(err, q.Number)
		}
		if err := s.repos.Orders.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.ActionApprove, string(workflow.EntityQuotation), q.ID.String(), map[string]any{
		"number":   q.Number,
		"from":     string(q.State),
		"order_id": o.ID.String(),
	})
	s.audit.Emit(ctx, audit.ActionCreate, string(workflow.EntityOrder), o.ID.String(), map[string]any{
		"number":       o.Number,
		"quotation_id": q.ID.String(),
		"lines":        len(o.Items),
	})

	logger.Info(ctx, "quotation approved", "quotation", q.Number, "order", o.Number, "lines", len(o.Items))
	return o, nil
}

// optionalVendor resolves the quotation's vendor; an unknown or inactive vendor is left off the order.
func (s *Service) optionalVendor(ctx context.Context, q *quotation.Quotation) string {
	if q.VendorID == "" {
		return ""
	}
	v, err := s.resolver.ResolveParty(ctx, party.KindVendor, q.VendorID, resolver.Hints{})
	if err != nil || !v.Active {
		logger.Warn(ctx, "quotation vendor omitted from order",
			"quotation", q.Number,
			"vendor", q.VendorID,
			"error", err)
		return ""
	}
	return v.ID
}

func withDocument(err error, number string) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDocument(number)
	}
	return err
}
