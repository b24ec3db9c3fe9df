package sales

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"salescycle/internal/core/id"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/workflow"
	"salescycle/pkg/logger"
)

// TransitionResult reports an applied state change.
type TransitionResult struct {
	EntityType workflow.EntityType `json:"entityType"`
	ID         id.ID               `json:"id"`
	Number     string              `json:"number"`
	From       workflow.State      `json:"from"`
	To         workflow.State      `json:"to"`
}

// stateful is the part of a stored document a transition needs.
type stateful struct {
	number string
	state  workflow.State
	update func(ctx context.Context, from, to workflow.State) error
}

// Transition applies a user-requested state change. The current state is read
// from storage, checked against the graph, and written with compare-and-set.
// Voiding an invoice releases its deliveries for a new consolidation.
func (s *Service) Transition(ctx context.Context, entityType workflow.EntityType, docID id.ID, target workflow.State) (_ *TransitionResult, err error) {
	ctx, span := startSpan(ctx, "Transition",
		attribute.String("entity.type", string(entityType)),
		attribute.String("entity.id", docID.String()),
		attribute.String("target", string(target)))
	defer func() { endSpan(span, err) }()

	if _, err := workflow.ParseEntityType(string(entityType)); err != nil {
		return nil, err
	}

	doc, err := s.load(ctx, entityType, docID)
	if err != nil {
		return nil, notFoundAs(err, entityType, docID)
	}

	if err := s.machine.Check(entityType, doc.state, target, workflow.TriggerUser); err != nil {
		return nil, withDocument(err, doc.number)
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := doc.update(ctx, doc.state, target); err != nil {
			return withDocument(err, doc.number)
		}
		if entityType == workflow.EntityInvoice && target == workflow.StateVoid {
			return s.repos.Deliveries.ReleaseInvoice(ctx, docID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := audit.ActionTransition
	if target == workflow.StateVoid {
		action = audit.ActionVoid
	}
	s.audit.Emit(ctx, action, string(entityType), docID.String(), map[string]any{
		"number":  doc.number,
		"from":    string(doc.state),
		"to":      string(target),
		"trigger": workflow.TriggerUser.String(),
	})
	logger.Info(ctx, "document transitioned",
		"entity_type", string(entityType),
		"number", doc.number,
		"from", string(doc.state),
		"to", string(target))

	return &TransitionResult{
		EntityType: entityType,
		ID:         docID,
		Number:     doc.number,
		From:       doc.state,
		To:         target,
	}, nil
}

// load reads the authoritative state of a document.
func (s *Service) load(ctx context.Context, entityType workflow.EntityType, docID id.ID) (*stateful, error) {
	switch entityType {
	case workflow.EntityQuotation:
		q, err := s.repos.Quotations.GetByID(ctx, docID)
		if err != nil {
			return nil, err
		}
		return &stateful{number: q.Number, state: q.State, update: func(ctx context.Context, from, to workflow.State) error {
			return s.repos.Quotations.UpdateState(ctx, docID, from, to)
		}}, nil

	case workflow.EntityOrder:
		o, err := s.repos.Orders.GetByID(ctx, docID)
		if err != nil {
			return nil, err
		}
		return &stateful{number: o.Number, state: o.State, update: func(ctx context.Context, from, to workflow.State) error {
			return s.repos.Orders.UpdateState(ctx, docID, from, to)
		}}, nil

	case workflow.EntityDelivery:
		d, err := s.repos.Deliveries.GetByID(ctx, docID)
		if err != nil {
			return nil, err
		}
		return &stateful{number: d.Number, state: d.State, update: func(ctx context.Context, from, to workflow.State) error {
			return s.repos.Deliveries.UpdateState(ctx, docID, from, to)
		}}, nil

	case workflow.EntityInvoice:
		inv, err := s.repos.Invoices.GetByID(ctx, docID)
		if err != nil {
			return nil, err
		}
		return &stateful{number: inv.Number, state: inv.State, update: func(ctx context.Context, from, to workflow.State) error {
			return s.repos.Invoices.UpdateState(ctx, docID, from, to)
		}}, nil

	default:
		// credit notes are recorded once and have no edges
		cn, err := s.repos.CreditNotes.GetByID(ctx, docID)
		if err != nil {
			return nil, err
		}
		return &stateful{number: cn.Number, state: cn.State}, nil
	}
}
