// Package consolidation merges deliveries of one client into an invoice draft.
//
// The engine never mutates the deliveries it reads. It produces a new, merged
// item set whose amounts are recomputed from merged quantities.
package consolidation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/id"
	"salescycle/internal/core/types"
	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/domain/catalogs/product"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/domain/documents/order"
	"salescycle/internal/domain/resolver"
	"salescycle/pkg/logger"
)

// DeliveryLoader reads deliveries by id.
type DeliveryLoader interface {
	GetByIDs(ctx context.Context, ids []id.ID) ([]*delivery.Delivery, error)
}

// OrderLoader reads the originating orders used as price fallback.
type OrderLoader interface {
	GetByID(ctx context.Context, docID id.ID) (*order.Order, error)
}

// PartyLoader snapshots a party catalog for resolution.
type PartyLoader interface {
	LoadParties(ctx context.Context, kind party.Kind) (*resolver.PartyIndex, error)
}

// Options tune a consolidation run.
type Options struct {
	// IssueDate defaults to today (UTC)
	IssueDate time.Time
}

// Engine builds invoice drafts.
type Engine struct {
	deliveries DeliveryLoader
	orders     OrderLoader
	parties    PartyLoader
	products   product.Catalog
	now        func() time.Time
}

// NewEngine creates an Engine. products may be nil when no legacy product codes need recovery.
func NewEngine(deliveries DeliveryLoader, orders OrderLoader, parties PartyLoader, products product.Catalog) *Engine {
	return &Engine{
		deliveries: deliveries,
		orders:     orders,
		parties:    parties,
		products:   products,
		now:        time.Now,
	}
}

// Consolidate loads the deliveries and builds the draft.
func (e *Engine) Consolidate(ctx context.Context, deliveryIDs []id.ID, opts Options) (*Draft, error) {
	ids, err := UniqueIDs(deliveryIDs)
	if err != nil {
		return nil, err
	}

	deliveries, err := e.deliveries.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return e.Build(ctx, deliveries, opts)
}

// Build computes the draft from already loaded deliveries.
func (e *Engine) Build(ctx context.Context, deliveries []*delivery.Delivery, opts Options) (*Draft, error) {
	if len(deliveries) == 0 {
		return nil, apperror.NewValidation("at least one delivery is required").
			WithDetail("field", "deliveryIds")
	}

	for _, d := range deliveries {
		if err := d.EnsureNotConsolidated(); err != nil {
			return nil, err
		}
	}

	client, err := e.resolveClient(ctx, deliveries)
	if err != nil {
		return nil, err
	}

	draft := &Draft{
		Client:      client,
		SiteID:      deliveries[0].SiteID,
		DeliveryIDs: make([]id.ID, 0, len(deliveries)),
	}
	for _, d := range deliveries {
		draft.DeliveryIDs = append(draft.DeliveryIDs, d.ID)
	}

	draft.VendorID = e.resolveVendor(ctx, deliveries[0], draft)

	items, err := e.aggregate(ctx, deliveries, draft)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperror.NewValidation("the selected deliveries have nothing left to invoice").
			WithDetail("delivery_ids", idStrings(draft.DeliveryIDs))
	}

	totals, err := documents.PriceItems("", items)
	if err != nil {
		return nil, err
	}
	draft.Items = items
	draft.Totals = totals

	issue := opts.IssueDate
	if issue.IsZero() {
		issue = e.now().UTC()
	}
	draft.IssueDate = truncateDay(issue)
	draft.DueDate = draft.IssueDate.AddDate(0, 0, client.CreditTerm())

	for _, w := range draft.Warnings {
		logger.Warn(ctx, "consolidation warning",
			"code", string(w.Code),
			"delivery", w.DeliveryNumber,
			"product_id", w.ProductID,
			"message", w.Message)
	}

	return draft, nil
}

// resolveClient resolves every delivery's client and requires a single active party.
func (e *Engine) resolveClient(ctx context.Context, deliveries []*delivery.Delivery) (*party.Party, error) {
	clients, err := e.parties.LoadParties(ctx, party.KindClient)
	if err != nil {
		return nil, err
	}

	var first *party.Party
	distinct := make(map[string]bool)
	for _, d := range deliveries {
		p, err := clients.Resolve(ctx, d.ClientID, resolver.Hints{CanonicalCode: d.ClientCode})
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDocument(d.Number)
			}
			return nil, err
		}
		if first == nil {
			first = p
		}
		distinct[p.ID] = true
	}

	if len(distinct) > 1 {
		ids := make([]string, 0, len(distinct))
		for k := range distinct {
			ids = append(ids, k)
		}
		sort.Strings(ids)
		return nil, apperror.NewMixedClient(ids).
			WithDetail("delivery_numbers", deliveryNumbers(deliveries))
	}

	if err := first.EnsureActive(); err != nil {
		if appErr, ok := apperror.AsAppError(err); ok {
			return nil, appErr.WithDocument(deliveries[0].Number)
		}
		return nil, err
	}
	return first, nil
}

// resolveVendor returns the vendor id or "" with a warning. It never fails the run.
func (e *Engine) resolveVendor(ctx context.Context, first *delivery.Delivery, draft *Draft) string {
	if strings.TrimSpace(first.VendorID) == "" {
		return ""
	}

	omit := func(reason string) string {
		draft.Warnings = append(draft.Warnings, Warning{
			Code:           WarnVendorOmitted,
			DeliveryNumber: first.Number,
			Message:        fmt.Sprintf("vendor %q omitted: %s", first.VendorID, reason),
		})
		return ""
	}

	vendors, err := e.parties.LoadParties(ctx, party.KindVendor)
	if err != nil {
		return omit("vendor catalog unavailable")
	}
	v, err := vendors.Resolve(ctx, first.VendorID, resolver.Hints{})
	if err != nil {
		return omit("not found")
	}
	if !v.Active {
		return omit("inactive")
	}
	return v.ID
}

type aggregateLine struct {
	item documents.Item
	qty  types.Quantity
}

// mergeKey groups delivery lines that can share one invoice line. Decimal
// strings are normalized, so 10 and 10.00 compare equal.
type mergeKey struct {
	productID string
	price     string
	discount  string
	tax       string
}

func keyOf(productID string, price types.Money, it documents.Item) mergeKey {
	return mergeKey{
		productID: productID,
		price:     price.String(),
		discount:  it.DiscountPercent.String(),
		tax:       it.TaxPercent.String(),
	}
}

// aggregate merges delivery lines by product and pricing, keeping first-seen
// order. A product shipped at different prices is billed on one line per price.
// Every billed delivery line is recorded in draft.Invoiced.
func (e *Engine) aggregate(ctx context.Context, deliveries []*delivery.Delivery, draft *Draft) ([]documents.Item, error) {
	var keys []mergeKey
	lines := make(map[mergeKey]*aggregateLine)
	products := make(map[string]bool)
	orders := make(map[id.ID]*orderRef)

	for _, d := range deliveries {
		for i := range d.Items {
			it := d.Items[i]

			productID, err := e.productID(ctx, it.Item)
			if err != nil {
				return nil, err
			}
			if productID == "" {
				draft.Warnings = append(draft.Warnings, Warning{
					Code:           WarnItemDropped,
					DeliveryNumber: d.Number,
					ProductCode:    it.ProductCode,
					Message:        "product could not be resolved, line dropped",
				})
				continue
			}

			qty := it.Invoiceable()
			if !qty.IsPositive() {
				draft.Warnings = append(draft.Warnings, Warning{
					Code:           WarnNothingToInvoice,
					DeliveryNumber: d.Number,
					ProductID:      productID,
					Message:        "line fully returned, skipped",
				})
				continue
			}

			price := it.UnitPrice
			if !price.IsPositive() {
				price, err = e.orderPrice(ctx, d, productID, orders)
				if err != nil {
					return nil, err
				}
				draft.Warnings = append(draft.Warnings, Warning{
					Code:           WarnPriceFromOrder,
					DeliveryNumber: d.Number,
					ProductID:      productID,
					Message:        "unit price taken from the originating order",
				})
			}

			draft.Invoiced = append(draft.Invoiced, delivery.InvoicedLine{
				DeliveryID: d.ID,
				LineNo:     it.LineNo,
				Quantity:   qty,
			})

			key := keyOf(productID, price, it.Item)
			if agg, ok := lines[key]; ok {
				agg.qty = agg.qty.Add(qty)
				continue
			}

			if products[productID] {
				draft.Warnings = append(draft.Warnings, Warning{
					Code:           WarnPricingDiverged,
					DeliveryNumber: d.Number,
					ProductID:      productID,
					Message:        "different price, discount or tax than an earlier delivery, billed on a separate line",
				})
			}
			products[productID] = true

			keys = append(keys, key)
			lines[key] = &aggregateLine{
				item: documents.Item{
					ProductID:       productID,
					ProductCode:     it.ProductCode,
					Description:     it.Description,
					UnitPrice:       price,
					DiscountPercent: it.DiscountPercent,
					TaxPercent:      it.TaxPercent,
				},
				qty: qty,
			}
		}
	}

	items := make([]documents.Item, 0, len(keys))
	for _, key := range keys {
		agg := lines[key]
		item := agg.item
		item.Quantity = agg.qty
		items = append(items, item)
	}
	return items, nil
}

// productID returns the line's product id, recovering it from the legacy code when missing.
func (e *Engine) productID(ctx context.Context, it documents.Item) (string, error) {
	if strings.TrimSpace(it.ProductID) != "" {
		return it.ProductID, nil
	}
	if e.products == nil || strings.TrimSpace(it.ProductCode) == "" {
		return "", nil
	}

	productID, ok, err := e.products.FindIDByCode(ctx, it.ProductCode)
	if err != nil {
		return "", apperror.NewExternalService("product catalog", err)
	}
	if !ok {
		return "", nil
	}
	return productID, nil
}

type orderRef struct {
	doc *order.Order
}

// orderPrice walks to the originating order for a usable positive price.
func (e *Engine) orderPrice(ctx context.Context, d *delivery.Delivery, productID string, cache map[id.ID]*orderRef) (types.Money, error) {
	missing := func() error {
		return apperror.NewMissingPrice(productID).WithDocument(d.Number)
	}

	if d.OrderID == nil || e.orders == nil {
		return types.Zero(), missing()
	}

	ref, ok := cache[*d.OrderID]
	if !ok {
		doc, err := e.orders.GetByID(ctx, *d.OrderID)
		if err != nil && !apperror.IsNotFound(err) {
			return types.Zero(), err
		}
		ref = &orderRef{doc: doc}
		cache[*d.OrderID] = ref
	}

	if ref.doc == nil {
		return types.Zero(), missing()
	}
	price, ok := ref.doc.PriceFor(productID)
	if !ok {
		return types.Zero(), missing()
	}
	return price, nil
}

// UniqueIDs drops duplicates while keeping order. Nil ids are rejected.
func UniqueIDs(ids []id.ID) ([]id.ID, error) {
	if len(ids) == 0 {
		return nil, apperror.NewValidation("at least one delivery is required").
			WithDetail("field", "deliveryIds")
	}

	seen := make(map[id.ID]bool, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, v := range ids {
		if id.IsNil(v) {
			return nil, apperror.NewValidation("delivery id cannot be empty").
				WithDetail("field", "deliveryIds")
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func deliveryNumbers(deliveries []*delivery.Delivery) []string {
	out := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, d.Label())
	}
	return out
}

func idStrings(ids []id.ID) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		out = append(out, v.String())
	}
	return out
}
