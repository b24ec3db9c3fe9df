// Package resolver maps legacy identifiers (surrogate ids, zero-padded codes,
// display names) onto catalog rows through an ordered chain of strategies.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"salescycle/internal/core/apperror"
	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/domain/catalogs/site"
	"salescycle/pkg/logger"
)

// EntitySite is the entity name reported by site NotFound errors.
const EntitySite = "site"

// Resolver resolves clients, vendors and sites. Every call reads the catalogs fresh.
type Resolver struct {
	parties party.Repository
	sites   site.Repository
	chain   Chain
}

// New creates a Resolver using DefaultChain.
func New(parties party.Repository, sites site.Repository) *Resolver {
	return &Resolver{
		parties: parties,
		sites:   sites,
		chain:   DefaultChain(),
	}
}

// WithChain returns a copy of the resolver using a custom chain.
func (r *Resolver) WithChain(chain Chain) *Resolver {
	cp := *r
	cp.chain = chain
	return &cp
}

// PartyIndex is one snapshot of a party catalog, used to resolve several
// identifiers within a single operation.
type PartyIndex struct {
	kind    party.Kind
	items   []*party.Party
	records []Record
	chain   Chain
}

// LoadParties snapshots the catalog of the given kind.
func (r *Resolver) LoadParties(ctx context.Context, kind party.Kind) (*PartyIndex, error) {
	items, err := r.parties.ListByKind(ctx, kind)
	if err != nil {
		return nil, apperror.NewExternalService("party catalog", fmt.Errorf("load %s list: %w", kind, err))
	}

	records := make([]Record, len(items))
	for i, p := range items {
		records[i] = Record{ID: p.ID, Code: p.Code, Name: p.Name}
	}

	return &PartyIndex{kind: kind, items: items, records: records, chain: r.chain}, nil
}

// Resolve finds the party matching candidate. Returns NotFound when no strategy matches.
func (x *PartyIndex) Resolve(ctx context.Context, candidate string, hints Hints) (*party.Party, error) {
	idx, kind, ok := x.chain.Find(candidate, hints, x.records)
	if !ok {
		return nil, notFound(string(x.kind), candidate, hints)
	}

	logMatch(ctx, string(x.kind), candidate, kind)
	return x.items[idx], nil
}

// ResolveParty loads the catalog of the given kind and resolves candidate in it.
func (r *Resolver) ResolveParty(ctx context.Context, kind party.Kind, candidate string, hints Hints) (*party.Party, error) {
	idx, err := r.LoadParties(ctx, kind)
	if err != nil {
		return nil, err
	}
	return idx.Resolve(ctx, candidate, hints)
}

// ResolveSite resolves a warehouse by id, code or name.
func (r *Resolver) ResolveSite(ctx context.Context, candidate string, hints Hints) (*site.Site, error) {
	items, err := r.sites.List(ctx)
	if err != nil {
		return nil, apperror.NewExternalService("site catalog", fmt.Errorf("load sites: %w", err))
	}

	records := make([]Record, len(items))
	for i, s := range items {
		records[i] = Record{ID: s.ID, Code: s.Code, Name: s.Name}
	}

	idx, kind, ok := r.chain.Find(candidate, hints, records)
	if !ok {
		return nil, notFound(EntitySite, candidate, hints)
	}

	logMatch(ctx, EntitySite, candidate, kind)
	return items[idx], nil
}

func notFound(entity, candidate string, hints Hints) error {
	err := apperror.NewNotFound(entity, strings.TrimSpace(candidate))
	if hints.CanonicalCode != "" {
		err = err.WithDetail("hint", hints.CanonicalCode)
	}
	return err
}

func logMatch(ctx context.Context, entity, candidate string, kind StrategyKind) {
	if kind == StrategyDisplayName {
		logger.Warn(ctx, "identifier resolved by display name",
			"entity", entity,
			"candidate", candidate)
		return
	}
	logger.Debug(ctx, "identifier resolved",
		"entity", entity,
		"candidate", candidate,
		"strategy", string(kind))
}
