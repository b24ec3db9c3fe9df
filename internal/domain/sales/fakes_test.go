package sales

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/id"
	"salescycle/internal/core/numerator"
	"salescycle/internal/core/types"
	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/domain/catalogs/site"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/creditnote"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/domain/documents/invoice"
	"salescycle/internal/domain/documents/order"
	"salescycle/internal/domain/documents/quotation"
	"salescycle/internal/domain/workflow"
)

// --- catalogs ---

type memParties struct {
	mu    sync.Mutex
	items map[party.Kind][]*party.Party
}

func (m *memParties) ListByKind(_ context.Context, kind party.Kind) ([]*party.Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*party.Party, 0, len(m.items[kind]))
	for _, p := range m.items[kind] {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memParties) setActive(kind party.Kind, partyID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items[kind] {
		if p.ID == partyID {
			p.Active = active
		}
	}
}

type memSites []*site.Site

func (m memSites) List(context.Context) ([]*site.Site, error) { return m, nil }

// --- documents ---

func cloneItems(in []documents.Item) []documents.Item {
	return append([]documents.Item(nil), in...)
}

func stateConflict(entity string, docID id.ID) error {
	return apperror.NewConcurrentModification(entity, docID.String())
}

type memQuotations struct {
	mu   sync.Mutex
	docs map[id.ID]*quotation.Quotation
}

func (m *memQuotations) Create(_ context.Context, doc *quotation.Quotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	cp.Items = cloneItems(doc.Items)
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memQuotations) GetByID(_ context.Context, docID id.ID) (*quotation.Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("quotation", docID.String())
	}
	cp := *d
	cp.Items = cloneItems(d.Items)
	return &cp, nil
}

func (m *memQuotations) UpdateState(_ context.Context, docID id.ID, from, to workflow.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok || d.State != from {
		return stateConflict("quotation", docID)
	}
	d.State = to
	return nil
}

type memOrders struct {
	mu   sync.Mutex
	docs map[id.ID]*order.Order
}

func (m *memOrders) Create(_ context.Context, doc *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	cp.Items = cloneItems(doc.Items)
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memOrders) GetByID(_ context.Context, docID id.ID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("order", docID.String())
	}
	cp := *d
	cp.Items = cloneItems(d.Items)
	return &cp, nil
}

func (m *memOrders) UpdateState(_ context.Context, docID id.ID, from, to workflow.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok || d.State != from {
		return stateConflict("order", docID)
	}
	d.State = to
	return nil
}

// staleOrders serves an outdated state, as a cached copy would.
type staleOrders struct {
	*memOrders
	state workflow.State
}

func (s *staleOrders) GetByID(ctx context.Context, docID id.ID) (*order.Order, error) {
	o, err := s.memOrders.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	o.State = s.state
	return o, nil
}

type memDeliveries struct {
	mu   sync.Mutex
	docs map[id.ID]*delivery.Delivery
	seq  []id.ID
}

func cloneDelivery(d *delivery.Delivery) *delivery.Delivery {
	cp := *d
	cp.Items = append([]delivery.Item(nil), d.Items...)
	if d.InvoiceID != nil {
		v := *d.InvoiceID
		cp.InvoiceID = &v
	}
	return &cp
}

func (m *memDeliveries) Create(_ context.Context, doc *delivery.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = cloneDelivery(doc)
	m.seq = append(m.seq, doc.ID)
	return nil
}

func (m *memDeliveries) GetByID(_ context.Context, docID id.ID) (*delivery.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("delivery", docID.String())
	}
	return cloneDelivery(d), nil
}

func (m *memDeliveries) GetByIDs(ctx context.Context, ids []id.ID) ([]*delivery.Delivery, error) {
	out := make([]*delivery.Delivery, 0, len(ids))
	for _, v := range ids {
		d, err := m.GetByID(ctx, v)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *memDeliveries) GetForUpdate(ctx context.Context, ids []id.ID) ([]*delivery.Delivery, error) {
	return m.GetByIDs(ctx, ids)
}

func (m *memDeliveries) ListByOrder(_ context.Context, orderID id.ID) ([]*delivery.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*delivery.Delivery
	for _, v := range m.seq {
		d := m.docs[v]
		if d.OrderID != nil && *d.OrderID == orderID {
			out = append(out, cloneDelivery(d))
		}
	}
	return out, nil
}

func (m *memDeliveries) UpdateState(_ context.Context, docID id.ID, from, to workflow.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok || d.State != from {
		return stateConflict("delivery", docID)
	}
	d.State = to
	return nil
}

func (m *memDeliveries) MarkInvoiced(_ context.Context, ids []id.ID, invoiceID id.ID, lines []delivery.InvoicedLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range ids {
		if d := m.docs[v]; d.IsConsolidated() {
			return d.EnsureNotConsolidated()
		}
	}
	for _, v := range ids {
		d := m.docs[v]
		inv := invoiceID
		d.InvoiceID = &inv
	}
	for _, l := range lines {
		d := m.docs[l.DeliveryID]
		for i := range d.Items {
			if d.Items[i].LineNo == l.LineNo {
				d.Items[i].QuantityInvoiced = l.Quantity
			}
		}
	}
	return nil
}

func (m *memDeliveries) ReleaseInvoice(_ context.Context, invoiceID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.InvoiceID != nil && *d.InvoiceID == invoiceID {
			d.InvoiceID = nil
			for i := range d.Items {
				d.Items[i].QuantityInvoiced = types.Zero()
			}
		}
	}
	return nil
}

type memInvoices struct {
	mu        sync.Mutex
	docs      map[id.ID]*invoice.Invoice
	createErr error
	locked    int
}

func cloneInvoice(d *invoice.Invoice) *invoice.Invoice {
	cp := *d
	cp.Items = cloneItems(d.Items)
	cp.DeliveryIDs = append([]id.ID(nil), d.DeliveryIDs...)
	return &cp
}

func (m *memInvoices) Create(_ context.Context, doc *invoice.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.docs[doc.ID] = cloneInvoice(doc)
	return nil
}

func (m *memInvoices) GetByID(_ context.Context, docID id.ID) (*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", docID.String())
	}
	return cloneInvoice(d), nil
}

func (m *memInvoices) GetForUpdate(ctx context.Context, docID id.ID) (*invoice.Invoice, error) {
	if !inTx(ctx) {
		return nil, errors.New("row lock outside a transaction")
	}
	m.mu.Lock()
	m.locked++
	m.mu.Unlock()
	return m.GetByID(ctx, docID)
}

func (m *memInvoices) UpdateState(_ context.Context, docID id.ID, from, to workflow.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok || d.State != from {
		return stateConflict("invoice", docID)
	}
	d.State = to
	return nil
}

func (m *memInvoices) MarkStamped(_ context.Context, docID id.ID, reference string, stampedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok || d.State != workflow.StateDraft {
		return stateConflict("invoice", docID)
	}
	d.State = workflow.StateIssued
	d.StampingReference = &reference
	d.StampedAt = &stampedAt
	return nil
}

func (m *memInvoices) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

type memCreditNotes struct {
	mu   sync.Mutex
	docs []*creditnote.CreditNote
}

func (m *memCreditNotes) Create(_ context.Context, doc *creditnote.CreditNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	cp.Items = cloneItems(doc.Items)
	m.docs = append(m.docs, &cp)
	return nil
}

func (m *memCreditNotes) GetByID(_ context.Context, docID id.ID) (*creditnote.CreditNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.ID == docID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("credit_note", docID.String())
}

func (m *memCreditNotes) ListByInvoice(_ context.Context, invoiceID id.ID) ([]*creditnote.CreditNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*creditnote.CreditNote
	for _, d := range m.docs {
		if d.InvoiceID == invoiceID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- collaborators ---

type passthroughTx struct{ calls int }

type inTxKey struct{}

func (p *passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(context.WithValue(ctx, inTxKey{}, true))
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(inTxKey{}).(bool)
	return v
}

// countingNumerator hands out PREFIX-YEAR-00001, 00002, ... per prefix.
type countingNumerator struct {
	mu     sync.Mutex
	counts map[string]int
	seen   []numerator.Strategy
}

func (c *countingNumerator) GetNextNumber(_ context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[cfg.Prefix]++
	if opts != nil {
		c.seen = append(c.seen, opts.Strategy)
	}
	return fmt.Sprintf("%s-%d-%05d", cfg.Prefix, period.Year(), c.counts[cfg.Prefix]), nil
}

func (c *countingNumerator) SetNextNumber(context.Context, numerator.Config, time.Time, int64) error {
	return nil
}

type fakeStamper struct {
	calls int
	fn    func(ctx context.Context, inv *invoice.Invoice) (invoice.StampResult, error)
}

func (f *fakeStamper) Stamp(ctx context.Context, inv *invoice.Invoice) (invoice.StampResult, error) {
	f.calls++
	return f.fn(ctx, inv)
}

type fakeLock struct{ released *int }

func (l fakeLock) Release(context.Context) error {
	*l.released++
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	keys     []string
	released int
}

func (f *fakeLocker) Obtain(_ context.Context, key string) (Lock, error) {
	f.keys = append(f.keys, key)
	if f.held[key] {
		return nil, apperror.NewConflict("consolidation already in progress")
	}
	return fakeLock{released: &f.released}, nil
}

type displayCall struct {
	op  string
	ids []id.ID
}

type recordingDisplay struct {
	calls []displayCall
}

func (r *recordingDisplay) MarkPending(_ context.Context, ids []id.ID, _ id.ID) {
	r.calls = append(r.calls, displayCall{"pending", ids})
}

func (r *recordingDisplay) Confirm(_ context.Context, ids []id.ID) {
	r.calls = append(r.calls, displayCall{"confirm", ids})
}

func (r *recordingDisplay) Rollback(_ context.Context, ids []id.ID) {
	r.calls = append(r.calls, displayCall{"rollback", ids})
}
