package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/id"
	"salescycle/internal/core/types"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/domain/documents/order"
	"salescycle/internal/domain/resolver"
	"salescycle/internal/domain/workflow"
	"salescycle/pkg/logger"
)

// CreateOrderInput describes an order created without a quotation.
// Party and site values may be legacy codes; they are resolved before storing.
type CreateOrderInput struct {
	ClientID string
	VendorID string
	SiteID   string
	Date     time.Time
	Comment  string
	Items    []documents.Item
}

// CreateOrder stores a new DRAFT order.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (_ *order.Order, err error) {
	ctx, span := startSpan(ctx, "CreateOrder")
	defer func() { endSpan(span, err) }()

	client, err := s.resolver.ResolveParty(ctx, party.KindClient, in.ClientID, resolver.Hints{})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureActive(); err != nil {
		return nil, err
	}

	var vendorID string
	if strings.TrimSpace(in.VendorID) != "" {
		v, err := s.resolver.ResolveParty(ctx, party.KindVendor, in.VendorID, resolver.Hints{})
		if err != nil {
			return nil, err
		}
		if err := v.EnsureActive(); err != nil {
			return nil, err
		}
		vendorID = v.ID
	}

	site, err := s.resolver.ResolveSite(ctx, in.SiteID, resolver.Hints{})
	if err != nil {
		return nil, err
	}

	items := make([]documents.Item, len(in.Items))
	copy(items, in.Items)

	o := order.NewOrder(client.ID, vendorID, site.ID, items)
	o.Comment = in.Comment
	o.Date = in.Date
	if o.Date.IsZero() {
		o.Date = s.today()
	}
	if err := o.Validate(ctx); err != nil {
		return nil, err
	}

	o.Number, err = s.nextNumber(ctx, order.NumberPrefix, order.NumeratorStrategy, o.Date)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repos.Orders.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.ActionCreate, string(workflow.EntityOrder), o.ID.String(), map[string]any{
		"number": o.Number,
		"lines":  len(o.Items),
		"total":  o.PayableAmount.StringFixed(2),
	})
	logger.Info(ctx, "order created", "id", o.ID, "number", o.Number)
	return o, nil
}

// DeliveryLine picks an order line to ship.
type DeliveryLine struct {
	ProductID string
	// Quantity defaults to what is left to ship
	Quantity *types.Quantity
}

// CreateDeliveryInput describes a shipment of part of an order.
type CreateDeliveryInput struct {
	OrderID id.ID
	// Lines to ship; empty ships everything still pending
	Lines []DeliveryLine
	Date  time.Time
}

// CreateDelivery ships a subset of an order. A CONFIRMED order moves to IN_PROCESS
// with its first delivery.
func (s *Service) CreateDelivery(ctx context.Context, in CreateDeliveryInput) (_ *delivery.Delivery, err error) {
	ctx, span := startSpan(ctx, "CreateDelivery", attribute.String("order.id", in.OrderID.String()))
	defer func() { endSpan(span, err) }()

	o, err := s.repos.Orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, notFoundAs(err, workflow.EntityOrder, in.OrderID)
	}
	if err := o.CanShip(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Deliveries.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries of order: %w", err)
	}

	items, err := shipmentItems(o, delivery.ShippedByProduct(existing), in.Lines)
	if err != nil {
		return nil, err
	}

	d := delivery.NewDelivery(&o.ID, o.ClientID, o.VendorID, o.SiteID, items)
	d.Date = in.Date
	if d.Date.IsZero() {
		d.Date = s.today()
	}
	if err := d.Validate(ctx); err != nil {
		return nil, err
	}

	d.Number, err = s.nextNumber(ctx, delivery.NumberPrefix, delivery.NumeratorStrategy, d.Date)
	if err != nil {
		return nil, err
	}

	startsProcessing := o.State == workflow.StateConfirmed
	if startsProcessing {
		if err := s.machine.Check(workflow.EntityOrder, o.State, workflow.StateInProcess, workflow.TriggerSystem); err != nil {
			return nil, withDocument(err, o.Number)
		}
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if startsProcessing {
			if err := s.repos.Orders.UpdateState(ctx, o.ID, o.State, workflow.StateInProcess); err != nil {
				return withDocument(err, o.Number)
			}
		}
		if err := s.repos.Deliveries.Create(ctx, d); err != nil {
			return fmt.Errorf("create delivery: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.ActionCreate, string(workflow.EntityDelivery), d.ID.String(), map[string]any{
		"number":   d.Number,
		"order_id": o.ID.String(),
		"lines":    len(d.Items),
	})
	if startsProcessing {
		s.audit.Emit(ctx, audit.ActionTransition, string(workflow.EntityOrder), o.ID.String(), map[string]any{
			"number":  o.Number,
			"from":    string(o.State),
			"to":      string(workflow.StateInProcess),
			"trigger": workflow.TriggerSystem.String(),
		})
	}

	logger.Info(ctx, "delivery created", "order", o.Number, "delivery", d.Number, "lines", len(d.Items))
	return d, nil
}

// shipmentItems builds delivery lines priced like the order, bounded by what is left to ship.
func shipmentItems(o *order.Order, shipped map[string]types.Quantity, lines []DeliveryLine) ([]delivery.Item, error) {
	ordered := make(map[string]types.Quantity)
	var products []string
	for _, it := range o.Items {
		if _, ok := ordered[it.ProductID]; !ok {
			products = append(products, it.ProductID)
		}
		ordered[it.ProductID] = ordered[it.ProductID].Add(it.Quantity)
	}

	remaining := func(productID string) types.Quantity {
		return ordered[productID].Sub(shipped[productID])
	}

	if len(lines) == 0 {
		for _, p := range products {
			if remaining(p).IsPositive() {
				lines = append(lines, DeliveryLine{ProductID: p})
			}
		}
		if len(lines) == 0 {
			return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "Order is fully shipped").
				WithDocument(o.Number)
		}
	}

	seen := make(map[string]bool, len(lines))
	items := make([]delivery.Item, 0, len(lines))
	for _, l := range lines {
		src, ok := documents.FindByProduct(o.Items, l.ProductID)
		if !ok {
			return nil, apperror.NewInvalidLine(l.ProductID, "product is not part of the order").
				WithDocument(o.Number)
		}
		if seen[l.ProductID] {
			return nil, apperror.NewInvalidLine(l.ProductID, "product listed twice").
				WithDocument(o.Number)
		}
		seen[l.ProductID] = true

		left := remaining(l.ProductID)
		qty := left
		if l.Quantity != nil {
			qty = *l.Quantity
		}
		if !qty.IsPositive() {
			return nil, apperror.NewInvalidLine(l.ProductID, "quantity to ship must be positive").
				WithDetail("remaining", left.String()).
				WithDocument(o.Number)
		}
		if qty.GreaterThan(left) {
			return nil, apperror.NewInvalidLine(l.ProductID, "quantity exceeds what is left to ship").
				WithDetail("remaining", left.String()).
				WithDetail("requested", qty.String()).
				WithDocument(o.Number)
		}

		items = append(items, delivery.Item{Item: documents.Item{
			ProductID:       src.ProductID,
			ProductCode:     src.ProductCode,
			Description:     src.Description,
			Quantity:        qty,
			UnitPrice:       src.UnitPrice,
			DiscountPercent: src.DiscountPercent,
			TaxPercent:      src.TaxPercent,
		}})
	}
	return items, nil
}
