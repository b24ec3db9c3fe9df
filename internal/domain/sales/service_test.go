package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/entity"
	"salescycle/internal/core/id"
	"salescycle/internal/core/numerator"
	"salescycle/internal/core/types"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/creditnote"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/domain/documents/invoice"
	"salescycle/internal/domain/documents/order"
	"salescycle/internal/domain/documents/quotation"
	"salescycle/internal/domain/resolver"
	"salescycle/internal/domain/workflow"
)

type env struct {
	svc        *Service
	parties    *memParties
	quotations *memQuotations
	orders     *memOrders
	deliveries *memDeliveries
	invoices   *memInvoices
	credits    *memCreditNotes
	numbers    *countingNumerator
	stamper    *fakeStamper
	log        *audit.BoundedLog
}

type option func(*Config)

func newEnv(t *testing.T, opts ...option) *env {
	t.Helper()

	e := &env{
		parties: &memParties{items: map[party.Kind][]*party.Party{
			party.KindClient: {
				{Catalog: entity.Catalog{ID: "1", Code: "900100", Name: "Acme"}, Kind: party.KindClient, Active: true},
				{Catalog: entity.Catalog{ID: "2", Code: "900200", Name: "Globex"}, Kind: party.KindClient, Active: true},
				{Catalog: entity.Catalog{ID: "3", Code: "900300", Name: "Initech"}, Kind: party.KindClient, Active: false},
			},
			party.KindVendor: {
				{Catalog: entity.Catalog{ID: "10", Code: "V-01", Name: "Ana"}, Kind: party.KindVendor, Active: true},
			},
		}},
		quotations: &memQuotations{docs: map[id.ID]*quotation.Quotation{}},
		orders:     &memOrders{docs: map[id.ID]*order.Order{}},
		deliveries: &memDeliveries{docs: map[id.ID]*delivery.Delivery{}},
		invoices:   &memInvoices{docs: map[id.ID]*invoice.Invoice{}},
		credits:    &memCreditNotes{},
		numbers:    &countingNumerator{counts: map[string]int{}},
		log:        audit.NewBoundedLog(100),
	}
	e.stamper = &fakeStamper{fn: func(ctx context.Context, inv *invoice.Invoice) (invoice.StampResult, error) {
		return invoice.StampResult{Reference: "CUFE-" + inv.Number, StampedAt: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)}, nil
	}}

	sites := memSites{{Catalog: entity.Catalog{ID: "7", Code: "002", Name: "Main warehouse"}}}

	cfg := Config{
		Repos: Repositories{
			Quotations:  e.quotations,
			Orders:      e.orders,
			Deliveries:  e.deliveries,
			Invoices:    e.invoices,
			CreditNotes: e.credits,
		},
		Resolver:  resolver.New(e.parties, sites),
		Numerator: e.numbers,
		TxManager: &passthroughTx{},
		Stamper:   e.stamper,
		Audit:     audit.NewEmitter(e.log),
	}
	for _, o := range opts {
		o(&cfg)
	}

	e.svc = NewService(cfg)
	e.svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return e
}

func item(productID, qty, price, tax string) documents.Item {
	return documents.Item{
		ProductID:       productID,
		Quantity:        types.MustMoney(qty),
		UnitPrice:       types.MustMoney(price),
		DiscountPercent: types.Zero(),
		TaxPercent:      types.MustMoney(tax),
	}
}

func (e *env) addQuotation(t *testing.T, state workflow.State, items ...documents.Item) *quotation.Quotation {
	t.Helper()
	q := quotation.NewQuotation("900100", "V-01", items)
	q.Number = "QT-2026-00001"
	q.State = state
	require.NoError(t, e.quotations.Create(context.Background(), q))
	return q
}

func (e *env) addOrder(t *testing.T, state workflow.State, items ...documents.Item) *order.Order {
	t.Helper()
	o := order.NewOrder("1", "10", "7", items)
	o.Number = "SO-2026-00001"
	o.State = state
	require.NoError(t, o.Recalculate())
	require.NoError(t, e.orders.Create(context.Background(), o))
	return o
}

func (e *env) addDelivery(t *testing.T, number, clientID string, items ...documents.Item) *delivery.Delivery {
	t.Helper()
	lines := make([]delivery.Item, len(items))
	for i, it := range items {
		it.LineNo = i + 1
		lines[i] = delivery.Item{Item: it}
	}
	d := delivery.NewDelivery(nil, clientID, "", "7", lines)
	d.Number = number
	d.State = workflow.StateDelivered
	require.NoError(t, e.deliveries.Create(context.Background(), d))
	return d
}

func (e *env) actions() []audit.Action {
	var out []audit.Action
	for _, entry := range e.log.Entries() {
		out = append(out, entry.Action)
	}
	return out
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, code), "want %s, got %v", code, err)
}

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.True(t, types.MustMoney(want).Equal(got), "want %s, got %s", want, got.String())
}

// --- quotations ---

func TestApproveQuotation_SeedsOrderFromSelectedLines(t *testing.T) {
	e := newEnv(t)
	q := e.addQuotation(t, workflow.StateSent, item("P1", "2", "10", "19"), item("P2", "1", "50", "0"))

	o, err := e.svc.ApproveQuotation(context.Background(), ApproveQuotationInput{
		QuotationID: q.ID,
		ProductIDs:  []string{"P2"},
		SiteID:      "2",
	})
	require.NoError(t, err)

	assert.Equal(t, "1", o.ClientID, "legacy client code resolved to the surrogate id")
	assert.Equal(t, "10", o.VendorID)
	assert.Equal(t, "7", o.SiteID, "site \"2\" matches code \"002\"")
	assert.Equal(t, workflow.StateDraft, o.State)
	require.NotNil(t, o.QuotationID)
	assert.Equal(t, q.ID, *o.QuotationID)
	assert.Equal(t, "SO-2026-00001", o.Number)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "P2", o.Items[0].ProductID)
	assertMoney(t, "50.00", o.PayableAmount)

	stored, err := e.svc.GetQuotation(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateApproved, stored.State)

	assert.Equal(t, []audit.Action{audit.ActionApprove, audit.ActionCreate}, e.actions())
}

func TestApproveQuotation_OnlyFromSent(t *testing.T) {
	for _, state := range []workflow.State{workflow.StateDraft, workflow.StateApproved, workflow.StateRejected} {
		t.Run(string(state), func(t *testing.T) {
			e := newEnv(t)
			q := e.addQuotation(t, state, item("P1", "1", "10", "0"))

			_, err := e.svc.ApproveQuotation(context.Background(), ApproveQuotationInput{QuotationID: q.ID, SiteID: "002"})
			assertCode(t, err, apperror.CodeIllegalTransition)
			assert.Empty(t, e.orders.docs)
		})
	}
}

func TestApproveQuotation_UnknownSiteAndProducts(t *testing.T) {
	e := newEnv(t)
	q := e.addQuotation(t, workflow.StateSent, item("P1", "1", "10", "0"))

	_, err := e.svc.ApproveQuotation(context.Background(), ApproveQuotationInput{QuotationID: q.ID, SiteID: "999"})
	assert.True(t, apperror.IsNotFound(err))

	_, err = e.svc.ApproveQuotation(context.Background(), ApproveQuotationInput{
		QuotationID: q.ID, SiteID: "002", ProductIDs: []string{"P9"},
	})
	assertCode(t, err, apperror.CodeValidation)

	stored, _ := e.svc.GetQuotation(context.Background(), q.ID)
	assert.Equal(t, workflow.StateSent, stored.State)
}

func TestCreateQuotation(t *testing.T) {
	e := newEnv(t)

	q, err := e.svc.CreateQuotation(context.Background(), CreateQuotationInput{
		ClientID: " 900100 ",
		Items:    []documents.Item{item("P1", "3", "10", "19")},
	})
	require.NoError(t, err)
	assert.Equal(t, "900100", q.ClientID)
	assert.Equal(t, workflow.StateDraft, q.State)
	assert.Equal(t, "QT-2026-00001", q.Number)
	assertMoney(t, "35.70", q.PayableAmount)

	_, err = e.svc.CreateQuotation(context.Background(), CreateQuotationInput{
		ClientID: "900100",
		Items:    []documents.Item{item("P1", "0", "10", "19")},
	})
	assertCode(t, err, apperror.CodeInvalidLine)
}

// --- transitions ---

func TestTransition_RejectedQuotationCannotBeResent(t *testing.T) {
	e := newEnv(t)
	q := e.addQuotation(t, workflow.StateRejected, item("P1", "1", "10", "0"))

	_, err := e.svc.Transition(context.Background(), workflow.EntityQuotation, q.ID, workflow.StateSent)
	assertCode(t, err, apperror.CodeIllegalTransition)

	stored, _ := e.svc.GetQuotation(context.Background(), q.ID)
	assert.Equal(t, workflow.StateRejected, stored.State)
	assert.Empty(t, e.actions())
}

func TestTransition_ReopenRejectedQuotation(t *testing.T) {
	e := newEnv(t)
	q := e.addQuotation(t, workflow.StateRejected, item("P1", "1", "10", "0"))

	res, err := e.svc.Transition(context.Background(), workflow.EntityQuotation, q.ID, workflow.StateDraft)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateRejected, res.From)
	assert.Equal(t, workflow.StateDraft, res.To)
	assert.Equal(t, []audit.Action{audit.ActionTransition}, e.actions())
}

func TestTransition_ConfirmingTwiceFails(t *testing.T) {
	e := newEnv(t)
	o := e.addOrder(t, workflow.StateSent, item("P1", "1", "10", "0"))

	_, err := e.svc.Transition(context.Background(), workflow.EntityOrder, o.ID, workflow.StateConfirmed)
	require.NoError(t, err)

	_, err = e.svc.Transition(context.Background(), workflow.EntityOrder, o.ID, workflow.StateConfirmed)
	assertCode(t, err, apperror.CodeIllegalTransition)

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, o.Number, appErr.Details[apperror.DetailDocumentNumber])
}

func TestTransition_StaleReadLosesCompareAndSet(t *testing.T) {
	orders := &memOrders{docs: map[id.ID]*order.Order{}}
	stale := &staleOrders{memOrders: orders, state: workflow.StateDraft}
	e := newEnv(t, func(c *Config) { c.Repos.Orders = stale })

	o := order.NewOrder("1", "", "7", []documents.Item{item("P1", "1", "10", "0")})
	o.State = workflow.StateConfirmed
	require.NoError(t, orders.Create(context.Background(), o))

	_, err := e.svc.Transition(context.Background(), workflow.EntityOrder, o.ID, workflow.StateConfirmed)
	assert.True(t, apperror.IsConcurrentModification(err))
	assert.Equal(t, workflow.StateConfirmed, orders.docs[o.ID].State)
}

func TestTransition_UserCannotIssueInvoice(t *testing.T) {
	e := newEnv(t)
	d := e.addDelivery(t, "DN-1", "1", item("P1", "1", "10", "0"))
	res, err := e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{DeliveryIDs: []id.ID{d.ID}})
	require.NoError(t, err)

	_, err = e.svc.Transition(context.Background(), workflow.EntityInvoice, res.Invoice.ID, workflow.StateIssued)
	assertCode(t, err, apperror.CodeIllegalTransition)
}

func TestTransition_VoidReleasesDeliveries(t *testing.T) {
	e := newEnv(t)
	d := e.addDelivery(t, "DN-1", "1", item("P1", "1", "10", "0"))
	res, err := e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{DeliveryIDs: []id.ID{d.ID}})
	require.NoError(t, err)

	_, err = e.svc.Transition(context.Background(), workflow.EntityInvoice, res.Invoice.ID, workflow.StateVoid)
	require.NoError(t, err)

	released, err := e.svc.GetDelivery(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Nil(t, released.InvoiceID)

	again, err := e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{DeliveryIDs: []id.ID{d.ID}})
	require.NoError(t, err)
	assert.NotEqual(t, res.Invoice.ID, again.Invoice.ID)
	assert.Contains(t, e.actions(), audit.ActionVoid)
}

func TestTransition_CreditNoteHasNoEdgesAndUnknownEntity(t *testing.T) {
	e := newEnv(t)
	cn := creditnote.NewCreditNote(id.New(), "1", "damaged", nil)
	require.NoError(t, e.credits.Create(context.Background(), cn))

	_, err := e.svc.Transition(context.Background(), workflow.EntityCreditNote, cn.ID, workflow.StateVoid)
	assertCode(t, err, apperror.CodeIllegalTransition)

	_, err = e.svc.Transition(context.Background(), workflow.EntityType("payment"), id.New(), workflow.StateVoid)
	assertCode(t, err, apperror.CodeValidation)

	_, err = e.svc.Transition(context.Background(), workflow.EntityDelivery, id.New(), workflow.StateDelivered)
	assert.True(t, apperror.IsNotFound(err))
}

// --- orders and deliveries ---

func TestCreateOrder_ResolvesLegacyCodes(t *testing.T) {
	e := newEnv(t)

	o, err := e.svc.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "900200",
		VendorID: "v-01",
		SiteID:   "Main warehouse",
		Items:    []documents.Item{item("P1", "4", "25", "19")},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", o.ClientID)
	assert.Equal(t, "10", o.VendorID)
	assert.Equal(t, "7", o.SiteID)
	assertMoney(t, "119.00", o.PayableAmount)
	assert.Equal(t, []numerator.Strategy{order.NumeratorStrategy}, e.numbers.seen)

	_, err = e.svc.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "900300",
		SiteID:   "002",
		Items:    []documents.Item{item("P1", "1", "25", "0")},
	})
	assertCode(t, err, apperror.CodeInactiveParty)
}

func TestCreateDelivery_ShipsRemainingQuantities(t *testing.T) {
	e := newEnv(t)
	o := e.addOrder(t, workflow.StateConfirmed, item("P1", "10", "5", "19"), item("P2", "2", "8", "0"))
	four := types.MustMoney("4")

	first, err := e.svc.CreateDelivery(context.Background(), CreateDeliveryInput{
		OrderID: o.ID,
		Lines:   []DeliveryLine{{ProductID: "P1", Quantity: &four}},
	})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assertMoney(t, "4", first.Items[0].Quantity)
	assertMoney(t, "5", first.Items[0].UnitPrice)
	assert.Equal(t, "DN-2026-00001", first.Number)

	stored, _ := e.svc.GetOrder(context.Background(), o.ID)
	assert.Equal(t, workflow.StateInProcess, stored.State)

	second, err := e.svc.CreateDelivery(context.Background(), CreateDeliveryInput{OrderID: o.ID})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assertMoney(t, "6", second.Items[0].Quantity)
	assertMoney(t, "2", second.Items[1].Quantity)

	_, err = e.svc.CreateDelivery(context.Background(), CreateDeliveryInput{OrderID: o.ID})
	assertCode(t, err, apperror.CodeBusinessRule)

	assert.Equal(t, []audit.Action{
		audit.ActionCreate, audit.ActionTransition, audit.ActionCreate,
	}, e.actions())
}

func TestCreateDelivery_Rejections(t *testing.T) {
	e := newEnv(t)
	draft := e.addOrder(t, workflow.StateDraft, item("P1", "1", "5", "0"))
	_, err := e.svc.CreateDelivery(context.Background(), CreateDeliveryInput{OrderID: draft.ID})
	assertCode(t, err, apperror.CodeBusinessRule)

	o := e.addOrder(t, workflow.StateInProcess, item("P1", "3", "5", "0"))
	tooMany := types.MustMoney("4")
	_, err = e.svc.CreateDelivery(context.Background(), CreateDeliveryInput{
		OrderID: o.ID,
		Lines:   []DeliveryLine{{ProductID: "P1", Quantity: &tooMany}},
	})
	assertCode(t, err, apperror.CodeInvalidLine)

	_, err = e.svc.CreateDelivery(context.Background(), CreateDeliveryInput{
		OrderID: o.ID,
		Lines:   []DeliveryLine{{ProductID: "P9"}},
	})
	assertCode(t, err, apperror.CodeInvalidLine)
	assert.Empty(t, e.deliveries.docs)
}

// --- consolidation ---

func TestConsolidate_IsIdempotentPerDelivery(t *testing.T) {
	e := newEnv(t)
	a := e.addDelivery(t, "DN-1", "1", item("P1", "3", "100", "19"))
	b := e.addDelivery(t, "DN-2", "900100", item("P1", "2", "100", "19"))

	res, err := e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{
		DeliveryIDs: []id.ID{a.ID, b.ID, a.ID},
	})
	require.NoError(t, err)

	inv := res.Invoice
	assert.Equal(t, "INV-2026-00001", inv.Number)
	assert.Equal(t, workflow.StateDraft, inv.State)
	assert.Equal(t, []id.ID{a.ID, b.ID}, inv.DeliveryIDs)
	require.Len(t, inv.Items, 1)
	assertMoney(t, "5", inv.Items[0].Quantity)
	assertMoney(t, "500.00", inv.Items[0].Subtotal)
	assertMoney(t, "95.00", inv.Items[0].TaxAmount)
	assertMoney(t, "595.00", inv.Items[0].Total)
	assertMoney(t, "595.00", inv.PayableAmount)
	assert.True(t, time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC).Equal(inv.DueDate), "due %s", inv.DueDate)

	for _, d := range []*delivery.Delivery{a, b} {
		stored, err := e.svc.GetDelivery(context.Background(), d.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.InvoiceID)
		assert.Equal(t, inv.ID, *stored.InvoiceID)
	}

	_, err = e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{DeliveryIDs: []id.ID{b.ID}})
	assertCode(t, err, apperror.CodeAlreadyConsolidated)
	assert.Equal(t, 1, e.invoices.count())
	assert.Equal(t, []audit.Action{audit.ActionConsolidate}, e.actions())
}

func TestConsolidate_MixedClientsCreateNothing(t *testing.T) {
	e := newEnv(t)
	a := e.addDelivery(t, "DN-1", "1", item("P1", "1", "10", "0"))
	b := e.addDelivery(t, "DN-2", "2", item("P1", "1", "10", "0"))

	_, err := e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{DeliveryIDs: []id.ID{a.ID, b.ID}})
	assertCode(t, err, apperror.CodeMixedClient)
	assert.Zero(t, e.invoices.count())

	stored, _ := e.svc.GetDelivery(context.Background(), a.ID)
	assert.Nil(t, stored.InvoiceID)
}

func TestConsolidate_LockKeyIgnoresOrder(t *testing.T) {
	a, b := id.New(), id.New()
	assert.Equal(t, ConsolidationLockKey([]id.ID{a, b}), ConsolidationLockKey([]id.ID{b, a}))
	assert.NotEqual(t, ConsolidationLockKey([]id.ID{a}), ConsolidationLockKey([]id.ID{a, b}))
}

func TestConsolidate_HeldLockIsConflict(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{}}
	e := newEnv(t, func(c *Config) { c.Locker = locker })
	d := e.addDelivery(t, "DN-1", "1", item("P1", "1", "10", "0"))

	locker.held[ConsolidationLockKey([]id.ID{d.ID})] = true
	_, err := e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{DeliveryIDs: []id.ID{d.ID}})
	assertCode(t, err, apperror.CodeConflict)
	assert.Zero(t, e.invoices.count())

	locker.held = map[string]bool{}
	_, err = e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{DeliveryIDs: []id.ID{d.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.released)
}

func TestConsolidate_DisplayIsReconciled(t *testing.T) {
	display := &recordingDisplay{}
	e := newEnv(t, func(c *Config) { c.Display = display })
	d := e.addDelivery(t, "DN-1", "1", item("P1", "1", "10", "0"))

	_, err := e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{DeliveryIDs: []id.ID{d.ID}})
	require.NoError(t, err)
	require.Len(t, display.calls, 2)
	assert.Equal(t, "pending", display.calls[0].op)
	assert.Equal(t, "confirm", display.calls[1].op)

	display.calls = nil
	e.invoices.createErr = errors.New("disk full")
	other := e.addDelivery(t, "DN-2", "1", item("P1", "1", "10", "0"))

	_, err = e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{DeliveryIDs: []id.ID{other.ID}})
	require.Error(t, err)
	require.Len(t, display.calls, 2)
	assert.Equal(t, "rollback", display.calls[1].op)
	assert.Equal(t, []id.ID{other.ID}, display.calls[1].ids)
}

// --- stamping ---

func (e *env) consolidated(t *testing.T) *invoice.Invoice {
	t.Helper()
	d := e.addDelivery(t, "DN-1", "1", item("P1", "2", "10", "19"))
	res, err := e.svc.ConsolidateDeliveriesIntoInvoice(context.Background(), ConsolidateInput{DeliveryIDs: []id.ID{d.ID}})
	require.NoError(t, err)
	return res.Invoice
}

func TestStampInvoice_IssuesOnSuccess(t *testing.T) {
	e := newEnv(t)
	inv := e.consolidated(t)

	issued, err := e.svc.StampInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateIssued, issued.State)
	require.NotNil(t, issued.StampingReference)
	assert.Equal(t, "CUFE-"+inv.Number, *issued.StampingReference)
	require.NotNil(t, issued.StampedAt)

	stored, _ := e.svc.GetInvoice(context.Background(), inv.ID)
	assert.True(t, stored.IsStamped())

	_, err = e.svc.StampInvoice(context.Background(), inv.ID)
	assertCode(t, err, apperror.CodeIllegalTransition)
	assert.Equal(t, 1, e.stamper.calls)
}

func TestStampInvoice_FailureLeavesDraft(t *testing.T) {
	e := newEnv(t)
	inv := e.consolidated(t)
	e.stamper.fn = func(context.Context, *invoice.Invoice) (invoice.StampResult, error) {
		return invoice.StampResult{}, errors.New("authority rejected signature")
	}

	_, err := e.svc.StampInvoice(context.Background(), inv.ID)
	assertCode(t, err, apperror.CodeExternalService)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, inv.Number, appErr.Details[apperror.DetailDocumentNumber])
	assert.Equal(t, 1, e.stamper.calls, "no automatic retry")

	stored, _ := e.svc.GetInvoice(context.Background(), inv.ID)
	assert.Equal(t, workflow.StateDraft, stored.State)
	assert.Nil(t, stored.StampingReference)
	assert.Contains(t, e.actions(), audit.ActionStampFailed)
}

func TestStampInvoice_Timeout(t *testing.T) {
	e := newEnv(t, func(c *Config) { c.StampingTimeout = 20 * time.Millisecond })
	inv := e.consolidated(t)
	e.stamper.fn = func(ctx context.Context, _ *invoice.Invoice) (invoice.StampResult, error) {
		<-ctx.Done()
		return invoice.StampResult{}, ctx.Err()
	}

	_, err := e.svc.StampInvoice(context.Background(), inv.ID)
	assertCode(t, err, apperror.CodeExternalService)
	appErr, _ := apperror.AsAppError(err)
	assert.Contains(t, appErr.Details, "timeout")

	stored, _ := e.svc.GetInvoice(context.Background(), inv.ID)
	assert.Equal(t, workflow.StateDraft, stored.State)
}

func TestStampInvoice_EmptyReferenceIsFailure(t *testing.T) {
	e := newEnv(t)
	inv := e.consolidated(t)
	e.stamper.fn = func(context.Context, *invoice.Invoice) (invoice.StampResult, error) {
		return invoice.StampResult{}, nil
	}

	_, err := e.svc.StampInvoice(context.Background(), inv.ID)
	assertCode(t, err, apperror.CodeExternalService)
}

func TestStampInvoice_HeldKeyIsConflict(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{}}
	e := newEnv(t, func(c *Config) { c.Locker = locker })
	inv := e.consolidated(t)

	locker.held[StampLockKey(inv.ID)] = true
	_, err := e.svc.StampInvoice(context.Background(), inv.ID)
	assertCode(t, err, apperror.CodeConflict)
	assert.Zero(t, e.stamper.calls)

	locker.held = map[string]bool{}
	_, err = e.svc.StampInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Contains(t, locker.keys, StampLockKey(inv.ID))
}

func TestStampInvoice_ConcurrentCallsStampOnce(t *testing.T) {
	e := newEnv(t)
	inv := e.consolidated(t)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	e.stamper.fn = func(context.Context, *invoice.Invoice) (invoice.StampResult, error) {
		close(entered)
		<-proceed
		return invoice.StampResult{Reference: "CUFE-1", StampedAt: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.svc.StampInvoice(context.Background(), inv.ID)
		done <- err
	}()
	<-entered

	_, err := e.svc.StampInvoice(context.Background(), inv.ID)
	assertCode(t, err, apperror.CodeConflict)

	close(proceed)
	require.NoError(t, <-done)
	assert.Equal(t, 1, e.stamper.calls)
}

func TestStampInvoice_InactiveClientBlocksIssue(t *testing.T) {
	e := newEnv(t)
	inv := e.consolidated(t)
	e.parties.setActive(party.KindClient, "1", false)

	_, err := e.svc.StampInvoice(context.Background(), inv.ID)
	assertCode(t, err, apperror.CodeInactiveParty)
	assert.Zero(t, e.stamper.calls)
}

// --- credit notes ---

func TestIssueCreditNote(t *testing.T) {
	e := newEnv(t)
	inv := e.consolidated(t)

	cn, err := e.svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: inv.ID,
		Reason:    "damaged on arrival",
		Lines:     []CreditNoteLine{{ProductID: "P1", Quantity: types.MustMoney("1")}},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateRecorded, cn.State)
	assert.Equal(t, "CN-2026-00001", cn.Number)
	assert.Equal(t, "1", cn.ClientID)
	assertMoney(t, "10", cn.Items[0].UnitPrice)
	assertMoney(t, "11.90", cn.PayableAmount)

	_, err = e.svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: inv.ID,
		Reason:    "again",
		Lines:     []CreditNoteLine{{ProductID: "P1", Quantity: types.MustMoney("1.5")}},
	})
	assertCode(t, err, apperror.CodeInvalidLine)

	_, err = e.svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: inv.ID,
		Reason:    "wrong product",
		Lines:     []CreditNoteLine{{ProductID: "P9", Quantity: types.MustMoney("1")}},
	})
	assertCode(t, err, apperror.CodeInvalidLine)
}

func TestIssueCreditNote_VoidInvoiceRejected(t *testing.T) {
	e := newEnv(t)
	inv := e.consolidated(t)
	_, err := e.svc.Transition(context.Background(), workflow.EntityInvoice, inv.ID, workflow.StateVoid)
	require.NoError(t, err)

	_, err = e.svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: inv.ID,
		Reason:    "late",
		Lines:     []CreditNoteLine{{ProductID: "P1", Quantity: types.MustMoney("1")}},
	})
	assertCode(t, err, apperror.CodeIllegalTransition)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, string(workflow.EntityCreditNote), appErr.Details["entity_type"])
	assert.Equal(t, string(workflow.StateVoid), appErr.Details["from"])
	assert.Empty(t, e.credits.docs)
}

func TestIssueCreditNote_AgainstIssuedInvoice(t *testing.T) {
	e := newEnv(t)
	inv := e.consolidated(t)
	_, err := e.svc.StampInvoice(context.Background(), inv.ID)
	require.NoError(t, err)

	price := types.MustMoney("4")
	cn, err := e.svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: inv.ID,
		Reason:    "price adjustment",
		Lines:     []CreditNoteLine{{ProductID: "P1", Quantity: types.MustMoney("2"), UnitPrice: &price}},
	})
	require.NoError(t, err)
	assertMoney(t, "8.00", cn.TaxBase)
	assert.Equal(t, []numerator.Strategy{
		invoice.NumeratorStrategy, creditnote.NumeratorStrategy,
	}, e.numbers.seen)
}

func TestIssueCreditNote_PriceAboveInvoiceRejected(t *testing.T) {
	e := newEnv(t)
	inv := e.consolidated(t)

	over := types.MustMoney("10.01")
	_, err := e.svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: inv.ID,
		Reason:    "price adjustment",
		Lines:     []CreditNoteLine{{ProductID: "P1", Quantity: types.MustMoney("1"), UnitPrice: &over}},
	})
	assertCode(t, err, apperror.CodeInvalidLine)
	appErr, _ := apperror.AsAppError(err)
	assert.Contains(t, appErr.Details, "invoiced_price")
	assert.Empty(t, e.credits.docs)

	same := types.MustMoney("10")
	cn, err := e.svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: inv.ID,
		Reason:    "price adjustment",
		Lines:     []CreditNoteLine{{ProductID: "P1", Quantity: types.MustMoney("1"), UnitPrice: &same}},
	})
	require.NoError(t, err)
	assertMoney(t, "10", cn.TaxBase)
}

func TestIssueCreditNote_ReadsInvoiceUnderRowLock(t *testing.T) {
	e := newEnv(t)
	inv := e.consolidated(t)

	_, err := e.svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: inv.ID,
		Reason:    "short shipment",
		Lines:     []CreditNoteLine{{ProductID: "P1", Quantity: types.MustMoney("1.5")}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, e.invoices.locked)

	_, err = e.svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: inv.ID,
		Reason:    "short shipment",
		Lines:     []CreditNoteLine{{ProductID: "P1", Quantity: types.MustMoney("1")}},
	})
	assertCode(t, err, apperror.CodeInvalidLine)
	assert.Equal(t, 2, e.invoices.locked)
	assert.Len(t, e.credits.docs, 1)
	assert.Equal(t, 1, e.numbers.counts[creditnote.NumberPrefix])
}
