package catalog_repo

import (
	"context"
	"fmt"

	"salescycle/internal/core/entity"
	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/infrastructure/storage/postgres"
	"salescycle/internal/infrastructure/storage/postgres/legacy"
)

var _ party.Repository = (*PartyRepo)(nil)

// TableNames overrides the legacy table names; empty fields keep the defaults.
type TableNames struct {
	Clients  string
	Vendors  string
	Sites    string
	Products string
}

// PartyRepo implements party.Repository over the client and vendor tables.
type PartyRepo struct {
	readers map[party.Kind]legacyReader
}

// NewPartyRepo creates a party repository.
func NewPartyRepo(txManager *postgres.TxManager, names TableNames) *PartyRepo {
	return &PartyRepo{readers: map[party.Kind]legacyReader{
		party.KindClient: newLegacyReader(txManager, legacy.Clients, names.Clients),
		party.KindVendor: newLegacyReader(txManager, legacy.Vendors, names.Vendors),
	}}
}

// ListByKind implements party.Repository. Every call hits the database.
func (r *PartyRepo) ListByKind(ctx context.Context, kind party.Kind) ([]*party.Party, error) {
	reader, ok := r.readers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown party kind %q", kind)
	}

	rows, err := reader.all(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*party.Party, 0, len(rows))
	for _, row := range rows {
		out = append(out, partyFromRow(kind, row))
	}
	return out, nil
}

func partyFromRow(kind party.Kind, row map[string]any) *party.Party {
	p := &party.Party{
		Catalog: entity.Catalog{
			ID:   legacy.String(row, legacy.FieldID),
			Code: legacy.String(row, legacy.FieldCode),
			Name: legacy.String(row, legacy.FieldName),
		},
		Kind:   kind,
		Active: legacy.Bool(row, legacy.FieldActive),
	}
	if kind == party.KindClient {
		p.CreditTermDays = legacy.IntPtr(row, legacy.FieldCreditTerm)
	}
	return p
}
