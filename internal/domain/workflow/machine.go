// Package workflow holds the transition graphs of the sales documents.
//
// Only whitelisted edges succeed. Each edge also records who may take it:
// system edges (for example DRAFT -> ISSUED on an invoice, which happens only
// after a successful stamping) are refused when requested by a user.
package workflow

import (
	"sort"

	"salescycle/internal/core/apperror"
)

// EntityType names a document type with its own graph.
type EntityType string

const (
	EntityQuotation  EntityType = "quotation"
	EntityOrder      EntityType = "order"
	EntityDelivery   EntityType = "delivery"
	EntityInvoice    EntityType = "invoice"
	EntityCreditNote EntityType = "credit_note"
)

// State is a document state. Values match the legacy status columns.
type State string

const (
	StateDraft     State = "DRAFT"
	StateSent      State = "SENT"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateConfirmed State = "CONFIRMED"
	StateInProcess State = "IN_PROCESS"
	StateCompleted State = "COMPLETED"
	StateCancelled State = "CANCELLED"
	StateInTransit State = "IN_TRANSIT"
	StateDelivered State = "DELIVERED"
	StateIssued    State = "ISSUED"
	StateVoid      State = "VOID"
	StateRecorded  State = "RECORDED"
)

// Trigger identifies who requests a transition.
type Trigger int

const (
	// TriggerUser is an explicit user action (the generic transition operation).
	TriggerUser Trigger = iota
	// TriggerSystem is a transition taken by the orchestrator as part of a flow.
	TriggerSystem
)

func (t Trigger) String() string {
	if t == TriggerSystem {
		return "system"
	}
	return "user"
}

type edge struct {
	from State
	to   State
}

// Graph is the transition table of one entity type.
type Graph struct {
	entity  EntityType
	initial State
	// edges maps an edge to whether a user may take it; system may take every edge
	edges map[edge]bool
}

func newGraph(entity EntityType, initial State) *Graph {
	return &Graph{entity: entity, initial: initial, edges: make(map[edge]bool)}
}

func (g *Graph) user(from State, to ...State) *Graph {
	for _, t := range to {
		g.edges[edge{from, t}] = true
	}
	return g
}

func (g *Graph) system(from State, to ...State) *Graph {
	for _, t := range to {
		g.edges[edge{from, t}] = false
	}
	return g
}

// Machine validates transitions for every entity type.
type Machine struct {
	graphs map[EntityType]*Graph
}

// Default returns the sales-cycle graphs.
func Default() *Machine {
	quotation := newGraph(EntityQuotation, StateDraft).
		user(StateDraft, StateSent).
		user(StateSent, StateApproved, StateRejected).
		user(StateRejected, StateDraft)

	order := newGraph(EntityOrder, StateDraft).
		user(StateDraft, StateSent, StateConfirmed, StateCancelled).
		user(StateSent, StateConfirmed, StateCancelled).
		user(StateConfirmed, StateInProcess, StateCancelled).
		user(StateInProcess, StateCompleted)

	delivery := newGraph(EntityDelivery, StateDraft).
		user(StateDraft, StateInTransit, StateDelivered).
		user(StateInTransit, StateDelivered)

	invoice := newGraph(EntityInvoice, StateDraft).
		system(StateDraft, StateIssued).
		user(StateDraft, StateVoid).
		user(StateIssued, StateVoid)

	creditNote := newGraph(EntityCreditNote, StateRecorded)

	return &Machine{graphs: map[EntityType]*Graph{
		EntityQuotation:  quotation,
		EntityOrder:      order,
		EntityDelivery:   delivery,
		EntityInvoice:    invoice,
		EntityCreditNote: creditNote,
	}}
}

// Check validates a transition. Self transitions are never edges.
func (m *Machine) Check(entity EntityType, from, to State, trigger Trigger) error {
	g, ok := m.graphs[entity]
	if !ok {
		return apperror.NewValidation("unknown entity type").
			WithDetail("entity_type", string(entity))
	}

	userAllowed, ok := g.edges[edge{from, to}]
	if !ok || (trigger == TriggerUser && !userAllowed) {
		err := apperror.NewIllegalTransition(string(entity), string(from), string(to))
		if ok {
			err = err.WithDetail("trigger", trigger.String())
		}
		return err
	}
	return nil
}

// Targets lists the states reachable from `from` for the given trigger, sorted.
func (m *Machine) Targets(entity EntityType, from State, trigger Trigger) []State {
	g, ok := m.graphs[entity]
	if !ok {
		return nil
	}

	var out []State
	for e, userAllowed := range g.edges {
		if e.from != from {
			continue
		}
		if trigger == TriggerUser && !userAllowed {
			continue
		}
		out = append(out, e.to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Initial returns the state new documents of the entity type start in.
func (m *Machine) Initial(entity EntityType) State {
	if g, ok := m.graphs[entity]; ok {
		return g.initial
	}
	return ""
}

// ParseEntityType validates an entity type coming from a caller.
func ParseEntityType(s string) (EntityType, error) {
	et := EntityType(s)
	switch et {
	case EntityQuotation, EntityOrder, EntityDelivery, EntityInvoice, EntityCreditNote:
		return et, nil
	}
	return "", apperror.NewValidation("unknown entity type").
		WithDetail("entity_type", s)
}
