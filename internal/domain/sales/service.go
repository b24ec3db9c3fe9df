// Package sales orchestrates the sales cycle: quotation approval, orders,
// deliveries, invoice consolidation, stamping and credit notes.
//
// Every state change is checked against a freshly read document and written
// with a compare-and-set on the stored state.
package sales

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/id"
	"salescycle/internal/core/numerator"
	"salescycle/internal/core/tx"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/catalogs/product"
	"salescycle/internal/domain/consolidation"
	"salescycle/internal/domain/documents/creditnote"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/domain/documents/invoice"
	"salescycle/internal/domain/documents/order"
	"salescycle/internal/domain/documents/quotation"
	"salescycle/internal/domain/resolver"
	"salescycle/internal/domain/workflow"
)

var tracer = otel.Tracer("salescycle/sales")

// DefaultStampingTimeout bounds a single call to the tax authority.
const DefaultStampingTimeout = 30 * time.Second

// Repositories groups the document stores.
type Repositories struct {
	Quotations  quotation.Repository
	Orders      order.Repository
	Deliveries  delivery.Repository
	Invoices    invoice.Repository
	CreditNotes creditnote.Repository
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker keeps one consolidation in flight per delivery set and one stamping
// call in flight per invoice.
// Obtain fails with a Conflict AppError when the key is held elsewhere.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

// DeliveryDisplay receives optimistic updates of the delivery views shown to users.
// Confirm replaces pending entries with the stored state; Rollback drops them.
type DeliveryDisplay interface {
	MarkPending(ctx context.Context, deliveryIDs []id.ID, invoiceID id.ID)
	Confirm(ctx context.Context, deliveryIDs []id.ID)
	Rollback(ctx context.Context, deliveryIDs []id.ID)
}

// Config holds the service dependencies.
type Config struct {
	Repos     Repositories
	Resolver  *resolver.Resolver
	Products  product.Catalog
	Numerator numerator.Generator
	TxManager tx.Manager
	Stamper   invoice.Stamper
	Audit     *audit.Emitter

	// Optional
	Machine         *workflow.Machine
	Locker          Locker
	Display         DeliveryDisplay
	StampingTimeout time.Duration
}

// Service implements the lifecycle operations.
type Service struct {
	repos     Repositories
	resolver  *resolver.Resolver
	engine    *consolidation.Engine
	machine   *workflow.Machine
	numerator numerator.Generator
	txManager tx.Manager
	stamper   invoice.Stamper
	locker    Locker
	local     *localLocker
	display   DeliveryDisplay
	audit     *audit.Emitter

	stampingTimeout time.Duration
	now             func() time.Time
}

// NewService creates the sales service.
func NewService(cfg Config) *Service {
	machine := cfg.Machine
	if machine == nil {
		machine = workflow.Default()
	}
	timeout := cfg.StampingTimeout
	if timeout <= 0 {
		timeout = DefaultStampingTimeout
	}

	return &Service{
		repos:           cfg.Repos,
		resolver:        cfg.Resolver,
		engine:          consolidation.NewEngine(cfg.Repos.Deliveries, cfg.Repos.Orders, cfg.Resolver, cfg.Products),
		machine:         machine,
		numerator:       cfg.Numerator,
		txManager:       cfg.TxManager,
		stamper:         cfg.Stamper,
		locker:          cfg.Locker,
		local:           newLocalLocker(),
		display:         cfg.Display,
		audit:           cfg.Audit,
		stampingTimeout: timeout,
		now:             time.Now,
	}
}

// Machine exposes the transition graphs (used by transport to list targets).
func (s *Service) Machine() *workflow.Machine {
	return s.machine
}

// nextNumber draws a document number. Strict numbering must run inside the
// transaction that stores the document; cached numbering must not.
func (s *Service) nextNumber(ctx context.Context, prefix string, strategy numerator.Strategy, date time.Time) (string, error) {
	cfg := numerator.DefaultConfig(prefix)
	number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: strategy}, date)
	if err != nil {
		return "", fmt.Errorf("generate %s number: %w", prefix, err)
	}
	return number, nil
}

func (s *Service) today() time.Time {
	t := s.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startSpan opens a span for an orchestrator operation.
func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sales."+op, trace.WithAttributes(attrs...))
}

// endSpan records err on the span and closes it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// notFoundAs rewrites a repository NotFound so it names the requested entity.
func notFoundAs(err error, entity workflow.EntityType, docID id.ID) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(string(entity), docID.String())
	}
	return err
}
