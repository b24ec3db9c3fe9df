package catalog_repo

import (
	"context"
	"strings"

	"salescycle/internal/domain/catalogs/product"
	"salescycle/internal/infrastructure/storage/postgres"
	"salescycle/internal/infrastructure/storage/postgres/legacy"
)

var _ product.Catalog = (*ProductRepo)(nil)

// ProductRepo implements product.Catalog.
type ProductRepo struct {
	legacyReader
}

// NewProductRepo creates a product catalog.
func NewProductRepo(txManager *postgres.TxManager, names TableNames) *ProductRepo {
	return &ProductRepo{legacyReader: newLegacyReader(txManager, legacy.Products, names.Products)}
}

// FindIDByCode implements product.Catalog. The code column differs between
// layouts, so rows are matched after canonicalization; codes compare trimmed
// and case-insensitively.
func (r *ProductRepo) FindIDByCode(ctx context.Context, code string) (string, bool, error) {
	want := strings.TrimSpace(code)
	if want == "" {
		return "", false, nil
	}

	rows, err := r.all(ctx)
	if err != nil {
		return "", false, err
	}

	for _, row := range rows {
		if strings.EqualFold(legacy.String(row, legacy.FieldCode), want) {
			return legacy.String(row, legacy.FieldID), true, nil
		}
	}
	return "", false, nil
}
