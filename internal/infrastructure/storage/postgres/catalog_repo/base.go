// Package catalog_repo reads the legacy client, vendor, site and product tables.
// Rows are fetched as maps and canonicalized through the legacy alias tables,
// so the repositories work against any of the historical column layouts.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"salescycle/internal/infrastructure/storage/postgres"
	"salescycle/internal/infrastructure/storage/postgres/legacy"
)

// legacyReader selects whole rows from one legacy table.
type legacyReader struct {
	txManager *postgres.TxManager
	table     legacy.Table
}

func newLegacyReader(txManager *postgres.TxManager, table legacy.Table, name string) legacyReader {
	if name != "" {
		table.Name = name
	}
	return legacyReader{txManager: txManager, table: table}
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func (r legacyReader) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// rows runs q and returns every row canonicalized.
func (r legacyReader) rows(ctx context.Context, q squirrel.SelectBuilder) ([]map[string]any, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table.Name, err)
	}

	raw, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", r.table.Name, err)
	}

	out := make([]map[string]any, len(raw))
	for i, row := range raw {
		out[i] = r.table.Canonicalize(row)
	}
	return out, nil
}

// all selects every row in table order.
func (r legacyReader) all(ctx context.Context) ([]map[string]any, error) {
	return r.rows(ctx, r.Builder().Select("*").From(r.table.Name))
}
