package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/entity"
	"salescycle/internal/core/id"
	"salescycle/internal/core/types"
	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/domain/catalogs/site"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/domain/documents/order"
	"salescycle/internal/domain/resolver"
)

// --- fakes ---

type fakeParties map[party.Kind][]*party.Party

func (f fakeParties) ListByKind(ctx context.Context, kind party.Kind) ([]*party.Party, error) {
	return f[kind], nil
}

type noSites struct{}

func (noSites) List(ctx context.Context) ([]*site.Site, error) { return nil, nil }

type fakeDeliveries map[id.ID]*delivery.Delivery

func (f fakeDeliveries) GetByIDs(ctx context.Context, ids []id.ID) ([]*delivery.Delivery, error) {
	out := make([]*delivery.Delivery, 0, len(ids))
	for _, v := range ids {
		d, ok := f[v]
		if !ok {
			return nil, apperror.NewNotFound("delivery", v)
		}
		out = append(out, d)
	}
	return out, nil
}

type fakeOrders map[id.ID]*order.Order

func (f fakeOrders) GetByID(ctx context.Context, docID id.ID) (*order.Order, error) {
	o, ok := f[docID]
	if !ok {
		return nil, apperror.NewNotFound("order", docID)
	}
	return o, nil
}

type fakeProducts map[string]string

func (f fakeProducts) FindIDByCode(ctx context.Context, code string) (string, bool, error) {
	v, ok := f[code]
	return v, ok, nil
}

// --- builders ---

func client(pid, code string, active bool, term *int) *party.Party {
	return &party.Party{
		Catalog:        entity.Catalog{ID: pid, Code: code, Name: "Client " + pid},
		Kind:           party.KindClient,
		Active:         active,
		CreditTermDays: term,
	}
}

func vendor(pid, code string, active bool) *party.Party {
	return &party.Party{
		Catalog: entity.Catalog{ID: pid, Code: code, Name: "Vendor " + pid},
		Kind:    party.KindVendor,
		Active:  active,
	}
}

func line(productID, qty, price, tax string) delivery.Item {
	return delivery.Item{Item: documents.Item{
		ProductID:       productID,
		Quantity:        types.MustMoney(qty),
		UnitPrice:       types.MustMoney(price),
		DiscountPercent: types.Zero(),
		TaxPercent:      types.MustMoney(tax),
	}}
}

func newDelivery(number, clientID string, items ...delivery.Item) *delivery.Delivery {
	d := delivery.NewDelivery(nil, clientID, "", "001", items)
	d.Number = number
	return d
}

type fixture struct {
	parties    fakeParties
	deliveries fakeDeliveries
	orders     fakeOrders
	products   fakeProducts
}

func newFixture() *fixture {
	days := 15
	return &fixture{
		parties: fakeParties{
			party.KindClient: {
				client("1", "900100", true, nil),
				client("2", "900200", true, &days),
				client("3", "900300", false, nil),
			},
			party.KindVendor: {
				vendor("10", "V-01", true),
				vendor("11", "V-02", false),
			},
		},
		deliveries: fakeDeliveries{},
		orders:     fakeOrders{},
		products:   fakeProducts{},
	}
}

func (f *fixture) add(ds ...*delivery.Delivery) []id.ID {
	ids := make([]id.ID, 0, len(ds))
	for _, d := range ds {
		f.deliveries[d.ID] = d
		ids = append(ids, d.ID)
	}
	return ids
}

func (f *fixture) engine() *Engine {
	e := NewEngine(f.deliveries, f.orders, resolver.New(f.parties, noSites{}), f.products)
	e.now = func() time.Time { return time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC) }
	return e
}

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.True(t, types.MustMoney(want).Equal(got), "want %s, got %s", want, got.String())
}

// --- tests ---

func TestConsolidate_MergesSameProduct(t *testing.T) {
	f := newFixture()
	ids := f.add(
		newDelivery("DN-2026-00001", "1", line("P1", "3", "100", "19")),
		newDelivery("DN-2026-00002", "1", line("P1", "2", "100", "19")),
	)

	draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.NoError(t, err)

	require.Len(t, draft.Items, 1)
	item := draft.Items[0]
	assert.Equal(t, "P1", item.ProductID)
	assertMoney(t, "5", item.Quantity)
	assertMoney(t, "500.00", item.Subtotal)
	assertMoney(t, "95.00", item.TaxAmount)
	assertMoney(t, "595.00", item.Total)

	assertMoney(t, "500.00", draft.Totals.TaxBase)
	assertMoney(t, "95.00", draft.Totals.TaxAmount)
	assertMoney(t, "595.00", draft.Totals.PayableAmount)
	assert.Equal(t, ids, draft.DeliveryIDs)
	assert.Empty(t, draft.Warnings)
}

func TestConsolidate_MergeRecomputesInsteadOfSumming(t *testing.T) {
	f := newFixture()
	ids := f.add(
		newDelivery("DN-1", "1", line("P1", "1", "0.35", "19")),
		newDelivery("DN-2", "1", line("P1", "1", "0.35", "19")),
		newDelivery("DN-3", "1", line("P1", "1", "0.35", "19")),
	)

	draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.NoError(t, err)

	require.Len(t, draft.Items, 1)
	// 1.05 * 19% = 0.1995 -> 0.20, while 3 * round(0.0665) = 0.21
	assertMoney(t, "1.05", draft.Items[0].Subtotal)
	assertMoney(t, "0.20", draft.Items[0].TaxAmount)
	assertMoney(t, "1.25", draft.Items[0].Total)
}

func TestConsolidate_MixedClients(t *testing.T) {
	f := newFixture()
	ids := f.add(
		newDelivery("DN-1", "1", line("P1", "1", "10", "0")),
		newDelivery("DN-2", "2", line("P1", "1", "10", "0")),
	)

	draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.Error(t, err)
	assert.Nil(t, draft)
	assert.True(t, apperror.HasCode(err, apperror.CodeMixedClient))
}

func TestConsolidate_SameClientThroughDifferentIdentifiers(t *testing.T) {
	f := newFixture()
	byID := newDelivery("DN-1", "1", line("P1", "1", "10", "0"))
	byCode := newDelivery("DN-2", "900100", line("P2", "1", "10", "0"))
	ids := f.add(byID, byCode)

	draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.NoError(t, err)
	assert.Equal(t, "1", draft.Client.ID)
	assert.Len(t, draft.Items, 2)
}

func TestConsolidate_InactiveClient(t *testing.T) {
	f := newFixture()
	ids := f.add(newDelivery("DN-9", "3", line("P1", "1", "10", "0")))

	_, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInactiveParty))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "DN-9", appErr.Details[apperror.DetailDocumentNumber])
}

func TestConsolidate_UnknownClient(t *testing.T) {
	f := newFixture()
	ids := f.add(newDelivery("DN-5", "nobody", line("P1", "1", "10", "0")))

	_, err := f.engine().Consolidate(context.Background(), ids, Options{})
	assert.True(t, apperror.IsNotFound(err))
}

func TestConsolidate_AlreadyConsolidated(t *testing.T) {
	f := newFixture()
	d := newDelivery("DN-1", "1", line("P1", "1", "10", "0"))
	invID := id.New()
	d.InvoiceID = &invID
	ids := f.add(d)

	_, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyConsolidated))
}

func TestConsolidate_Vendor(t *testing.T) {
	tests := []struct {
		name       string
		vendor     string
		wantVendor string
		wantWarn   bool
	}{
		{"active vendor kept", "V-01", "10", false},
		{"inactive vendor omitted", "V-02", "", true},
		{"unknown vendor omitted", "V-99", "", true},
		{"no vendor", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			d := newDelivery("DN-1", "1", line("P1", "1", "10", "0"))
			d.VendorID = tt.vendor
			ids := f.add(d)

			draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantVendor, draft.VendorID)
			assert.Equal(t, tt.wantWarn, draft.HasWarning(WarnVendorOmitted))
		})
	}
}

func TestConsolidate_ProductCodeRecoveryAndDrop(t *testing.T) {
	f := newFixture()
	f.products["LEG-7"] = "P7"

	recovered := line("", "2", "10", "0")
	recovered.ProductCode = "LEG-7"
	unknown := line("", "1", "10", "0")
	unknown.ProductCode = "LEG-404"

	ids := f.add(newDelivery("DN-1", "1", line("P1", "1", "10", "0"), recovered, unknown))

	draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.NoError(t, err)

	require.Len(t, draft.Items, 2)
	assert.Equal(t, "P1", draft.Items[0].ProductID)
	assert.Equal(t, "P7", draft.Items[1].ProductID)
	assert.True(t, draft.HasWarning(WarnItemDropped))
	assert.Equal(t, 2, draft.Items[1].LineNo)
}

func TestConsolidate_PriceFallbackToOrder(t *testing.T) {
	f := newFixture()
	o := order.NewOrder("1", "", "001", []documents.Item{{
		ProductID:       "P1",
		Quantity:        types.MustMoney("10"),
		UnitPrice:       types.MustMoney("42.50"),
		DiscountPercent: types.Zero(),
		TaxPercent:      types.Zero(),
	}})
	f.orders[o.ID] = o

	d := newDelivery("DN-1", "1", line("P1", "2", "0", "0"))
	d.OrderID = &o.ID
	ids := f.add(d)

	draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.NoError(t, err)
	assertMoney(t, "42.50", draft.Items[0].UnitPrice)
	assertMoney(t, "85.00", draft.Items[0].Total)
	assert.True(t, draft.HasWarning(WarnPriceFromOrder))
}

func TestConsolidate_MissingPrice(t *testing.T) {
	f := newFixture()
	o := order.NewOrder("1", "", "001", []documents.Item{{
		ProductID: "OTHER",
		Quantity:  types.MustMoney("1"),
		UnitPrice: types.MustMoney("5"),
	}})
	f.orders[o.ID] = o

	withOrder := newDelivery("DN-1", "1", line("P1", "2", "0", "0"))
	withOrder.OrderID = &o.ID
	withoutOrder := newDelivery("DN-2", "1", line("P2", "2", "0", "0"))

	for _, d := range []*delivery.Delivery{withOrder, withoutOrder} {
		t.Run(d.Number, func(t *testing.T) {
			ids := f.add(d)
			_, err := f.engine().Consolidate(context.Background(), ids, Options{})
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeMissingPrice))
			appErr, _ := apperror.AsAppError(err)
			assert.Equal(t, d.Number, appErr.Details[apperror.DetailDocumentNumber])
		})
	}
}

func TestConsolidate_ReturnedQuantities(t *testing.T) {
	f := newFixture()
	partly := line("P1", "5", "10", "0")
	partly.QuantityReturned = types.MustMoney("2")
	fully := line("P2", "3", "10", "0")
	fully.QuantityReturned = types.MustMoney("3")

	d := newDelivery("DN-1", "1", partly, fully)
	ids := f.add(d)

	draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.NoError(t, err)
	require.Len(t, draft.Items, 1)
	assertMoney(t, "3", draft.Items[0].Quantity)
	assert.True(t, draft.HasWarning(WarnNothingToInvoice))

	// source lines untouched
	assertMoney(t, "5", d.Items[0].Quantity)
	assert.True(t, d.Items[0].Subtotal.IsZero())
	assert.Nil(t, d.InvoiceID)
}

func TestConsolidate_NothingLeft(t *testing.T) {
	f := newFixture()
	unknown := line("", "1", "10", "0")
	ids := f.add(newDelivery("DN-1", "1", unknown))

	_, err := f.engine().Consolidate(context.Background(), ids, Options{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestConsolidate_DueDate(t *testing.T) {
	f := newFixture()
	defaultTerm := f.add(newDelivery("DN-1", "1", line("P1", "1", "10", "0")))
	customTerm := f.add(newDelivery("DN-2", "2", line("P1", "1", "10", "0")))

	draft, err := f.engine().Consolidate(context.Background(), defaultTerm, Options{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), draft.IssueDate)
	assert.Equal(t, time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC), draft.DueDate)

	issue := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	draft, err = f.engine().Consolidate(context.Background(), customTerm, Options{IssueDate: issue})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC), draft.DueDate)
}

func TestConsolidate_DivergentPricingSplitsLines(t *testing.T) {
	f := newFixture()
	ids := f.add(
		newDelivery("DN-1", "1", line("P1", "1", "10", "19")),
		newDelivery("DN-2", "1", line("P1", "1", "12", "19")),
		newDelivery("DN-3", "1", line("P1", "2", "10.00", "19")),
	)

	draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.NoError(t, err)

	require.Len(t, draft.Items, 2)
	assertMoney(t, "10", draft.Items[0].UnitPrice)
	assertMoney(t, "3", draft.Items[0].Quantity)
	assertMoney(t, "12", draft.Items[1].UnitPrice)
	assertMoney(t, "1", draft.Items[1].Quantity)
	// 30 + 12 = 42 billed, not 4 x 10
	assertMoney(t, "42.00", draft.Totals.TaxBase)
	assert.True(t, draft.HasWarning(WarnPricingDiverged))
}

func TestConsolidate_InvoicedLinesExcludeDroppedAndReturned(t *testing.T) {
	f := newFixture()

	billed := line("P1", "5", "10", "0")
	billed.LineNo = 1
	billed.QuantityReturned = types.MustMoney("1")
	unknown := line("", "4", "10", "0")
	unknown.ProductCode = "LEG-404"
	unknown.LineNo = 2
	returned := line("P2", "3", "10", "0")
	returned.QuantityReturned = types.MustMoney("3")
	returned.LineNo = 3

	d := newDelivery("DN-1", "1", billed, unknown, returned)
	ids := f.add(d)

	draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.NoError(t, err)

	require.Len(t, draft.Invoiced, 1)
	assert.Equal(t, d.ID, draft.Invoiced[0].DeliveryID)
	assert.Equal(t, 1, draft.Invoiced[0].LineNo)
	assertMoney(t, "4", draft.Invoiced[0].Quantity)
}

func TestUniqueIDs(t *testing.T) {
	a, b := id.New(), id.New()

	got, err := UniqueIDs([]id.ID{a, b, a})
	require.NoError(t, err)
	assert.Equal(t, []id.ID{a, b}, got)

	_, err = UniqueIDs(nil)
	assert.Error(t, err)

	_, err = UniqueIDs([]id.ID{id.Nil()})
	assert.Error(t, err)
}

func TestDraft_Invoice(t *testing.T) {
	f := newFixture()
	ids := f.add(newDelivery("DN-1", "1", line("P1", "2", "10", "19")))

	draft, err := f.engine().Consolidate(context.Background(), ids, Options{})
	require.NoError(t, err)

	inv := draft.Invoice()
	assert.Equal(t, "1", inv.ClientID)
	assert.Equal(t, ids, inv.DeliveryIDs)
	assert.Equal(t, draft.DueDate, inv.DueDate)
	assertMoney(t, "23.80", inv.PayableAmount)
	assert.NoError(t, inv.Validate(context.Background()))
}
