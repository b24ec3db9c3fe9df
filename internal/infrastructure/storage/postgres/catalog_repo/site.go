package catalog_repo

import (
	"context"

	"salescycle/internal/core/entity"
	"salescycle/internal/domain/catalogs/site"
	"salescycle/internal/infrastructure/storage/postgres"
	"salescycle/internal/infrastructure/storage/postgres/legacy"
)

var _ site.Repository = (*SiteRepo)(nil)

// SiteRepo implements site.Repository over the warehouse table.
type SiteRepo struct {
	legacyReader
}

// NewSiteRepo creates a site repository.
func NewSiteRepo(txManager *postgres.TxManager, names TableNames) *SiteRepo {
	return &SiteRepo{legacyReader: newLegacyReader(txManager, legacy.Sites, names.Sites)}
}

// List implements site.Repository.
func (r *SiteRepo) List(ctx context.Context) ([]*site.Site, error) {
	rows, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*site.Site, 0, len(rows))
	for _, row := range rows {
		out = append(out, &site.Site{Catalog: entity.Catalog{
			ID:   legacy.String(row, legacy.FieldID),
			Code: legacy.String(row, legacy.FieldCode),
			Name: legacy.String(row, legacy.FieldName),
		}})
	}
	return out, nil
}
