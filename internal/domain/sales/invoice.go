package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/id"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/domain/consolidation"
	"salescycle/internal/domain/documents/invoice"
	"salescycle/internal/domain/resolver"
	"salescycle/internal/domain/workflow"
	"salescycle/pkg/logger"
)

// StamperService is the name reported when the tax authority fails.
const StamperService = "tax authority"

// ConsolidateInput lists the deliveries to bill.
type ConsolidateInput struct {
	DeliveryIDs []id.ID
	// IssueDate defaults to today (UTC)
	IssueDate time.Time
}

// ConsolidateResult is the stored invoice plus the item-level problems that did not abort the run.
type ConsolidateResult struct {
	Invoice  *invoice.Invoice        `json:"invoice"`
	Warnings []consolidation.Warning `json:"warnings,omitempty"`
}

// ConsolidateDeliveriesIntoInvoice bills one client's deliveries in a single DRAFT invoice.
//
// Deliveries are re-read under row locks right before the invoice is stored, and
// are stamped with the invoice id in the same transaction. A delivery that already
// carries an invoice fails the whole call with AlreadyConsolidated.
func (s *Service) ConsolidateDeliveriesIntoInvoice(ctx context.Context, in ConsolidateInput) (_ *ConsolidateResult, err error) {
	ids, err := consolidation.UniqueIDs(in.DeliveryIDs)
	if err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "ConsolidateDeliveriesIntoInvoice", attribute.Int("deliveries", len(ids)))
	defer func() { endSpan(span, err) }()

	release, err := s.claim(ctx, ConsolidationLockKey(ids))
	if err != nil {
		return nil, err
	}
	defer release()

	invoiceID := id.New()
	if s.display != nil {
		s.display.MarkPending(ctx, ids, invoiceID)
	}

	var (
		inv   *invoice.Invoice
		draft *consolidation.Draft
	)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		deliveries, err := s.repos.Deliveries.GetForUpdate(ctx, ids)
		if err != nil {
			return err
		}

		issue := in.IssueDate
		if issue.IsZero() {
			issue = s.today()
		}
		draft, err = s.engine.Build(ctx, deliveries, consolidation.Options{IssueDate: issue})
		if err != nil {
			return err
		}

		inv = draft.Invoice()
		inv.ID = invoiceID
		if err := inv.Validate(ctx); err != nil {
			return err
		}

		inv.Number, err = s.nextNumber(ctx, invoice.NumberPrefix, invoice.NumeratorStrategy, inv.IssueDate)
		if err != nil {
			return err
		}

		if err := s.repos.Invoices.Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		return s.repos.Deliveries.MarkInvoiced(ctx, ids, inv.ID, draft.Invoiced)
	})
	if err != nil {
		if s.display != nil {
			s.display.Rollback(ctx, ids)
		}
		return nil, err
	}

	if s.display != nil {
		s.display.Confirm(ctx, ids)
	}

	deliveryIDs := make([]string, len(ids))
	for i, v := range ids {
		deliveryIDs[i] = v.String()
	}
	s.audit.Emit(ctx, audit.ActionConsolidate, string(workflow.EntityInvoice), inv.ID.String(), map[string]any{
		"number":       inv.Number,
		"delivery_ids": deliveryIDs,
		"total":        inv.PayableAmount.StringFixed(2),
		"warnings":     len(draft.Warnings),
	})

	logger.Info(ctx, "deliveries consolidated",
		"invoice", inv.Number,
		"deliveries", len(ids),
		"lines", len(inv.Items),
		"payable", inv.PayableAmount.StringFixed(2))

	return &ConsolidateResult{Invoice: inv, Warnings: draft.Warnings}, nil
}

// StampLockKey is the lock key of one invoice stamping call.
func StampLockKey(invoiceID id.ID) string {
	return "stamp:" + invoiceID.String()
}

// ConsolidationLockKey is the lock key of a delivery set, independent of order.
func ConsolidationLockKey(ids []id.ID) string {
	return "consolidation:" + strings.Join(id.SortedStrings(ids), ",")
}

// StampInvoice submits a DRAFT invoice to the tax authority and, only on success,
// issues it with the returned reference. A failed or timed out call leaves the
// invoice in DRAFT and is never retried here.
func (s *Service) StampInvoice(ctx context.Context, invoiceID id.ID) (_ *invoice.Invoice, err error) {
	ctx, span := startSpan(ctx, "StampInvoice", attribute.String("invoice.id", invoiceID.String()))
	defer func() { endSpan(span, err) }()

	// Held from the state check until the reference is stored.
	release, err := s.claim(ctx, StampLockKey(invoiceID))
	if err != nil {
		return nil, err
	}
	defer release()

	inv, err := s.repos.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, notFoundAs(err, workflow.EntityInvoice, invoiceID)
	}

	if err := s.machine.Check(workflow.EntityInvoice, inv.State, workflow.StateIssued, workflow.TriggerSystem); err != nil {
		return nil, withDocument(err, inv.Number)
	}
	if err := s.ensurePartiesActive(ctx, inv); err != nil {
		return nil, withDocument(err, inv.Number)
	}

	result, err := s.stamp(ctx, inv)
	if err != nil {
		s.audit.Emit(ctx, audit.ActionStampFailed, string(workflow.EntityInvoice), inv.ID.String(), map[string]any{
			"number": inv.Number,
			"error":  err.Error(),
		})
		logger.Warn(ctx, "invoice stamping failed", "invoice", inv.Number, "error", err)
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repos.Invoices.MarkStamped(ctx, inv.ID, result.Reference, result.StampedAt)
	})
	if err != nil {
		// The authority accepted the invoice; keep the reference visible for manual repair.
		logger.Error(ctx, "stamped invoice could not be stored",
			"invoice", inv.Number,
			"reference", result.Reference,
			"error", err)
		return nil, withDocument(err, inv.Number)
	}

	from := inv.State
	inv.State = workflow.StateIssued
	inv.StampingReference = &result.Reference
	inv.StampedAt = &result.StampedAt

	s.audit.Emit(ctx, audit.ActionStamp, string(workflow.EntityInvoice), inv.ID.String(), map[string]any{
		"number":    inv.Number,
		"from":      string(from),
		"to":        string(inv.State),
		"reference": result.Reference,
	})
	logger.Info(ctx, "invoice stamped", "invoice", inv.Number, "reference", result.Reference)
	return inv, nil
}

// stamp calls the stamper under the configured timeout.
func (s *Service) stamp(ctx context.Context, inv *invoice.Invoice) (invoice.StampResult, error) {
	if s.stamper == nil {
		return invoice.StampResult{}, apperror.NewExternalService(StamperService, errors.New("no stamper configured")).
			WithDocument(inv.Number)
	}

	stampCtx, cancel := context.WithTimeout(ctx, s.stampingTimeout)
	defer cancel()

	result, err := s.stamper.Stamp(stampCtx, inv)
	if err == nil && strings.TrimSpace(result.Reference) == "" {
		err = errors.New("empty stamping reference")
	}
	if err != nil {
		appErr := apperror.NewExternalService(StamperService, err).WithDocument(inv.Number)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(stampCtx.Err(), context.DeadlineExceeded) {
			appErr = appErr.WithDetail("timeout", s.stampingTimeout.String())
		}
		return invoice.StampResult{}, appErr
	}

	if result.StampedAt.IsZero() {
		result.StampedAt = s.now().UTC()
	}
	return result, nil
}

// ensurePartiesActive re-reads the invoice parties; none may be inactive when issuing.
func (s *Service) ensurePartiesActive(ctx context.Context, inv *invoice.Invoice) error {
	client, err := s.resolver.ResolveParty(ctx, party.KindClient, inv.ClientID, resolver.Hints{})
	if err != nil {
		return err
	}
	if err := client.EnsureActive(); err != nil {
		return err
	}

	if inv.VendorID == "" {
		return nil
	}
	vendor, err := s.resolver.ResolveParty(ctx, party.KindVendor, inv.VendorID, resolver.Hints{})
	if err != nil {
		return err
	}
	return vendor.EnsureActive()
}
