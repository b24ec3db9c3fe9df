// Package document_repo provides PostgreSQL implementations of the sales document repositories.
// Each document is a header row plus ordered line rows keyed by document_id.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"salescycle/internal/core/apperror"
	appctx "salescycle/internal/core/context"
	"salescycle/internal/core/entity"
	"salescycle/internal/core/id"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/workflow"
	"salescycle/internal/infrastructure/storage/postgres"
)

// documentRepo holds the header/line plumbing shared by every document type.
// T is the header pointer type, L the line type.
type documentRepo[T any, L any] struct {
	txManager  *postgres.TxManager
	entity     string
	table      string
	linesTable string
	cols       []string
	lineCols   []string

	newFn    func() T
	header   func(T) *entity.Document
	lines    func(T) []L
	setLines func(T, []L)
}

func newDocumentRepo[T any, L any](
	txManager *postgres.TxManager,
	entityName, table, linesTable string,
	cols []string,
	newFn func() T,
	header func(T) *entity.Document,
	lines func(T) []L,
	setLines func(T, []L),
) *documentRepo[T, L] {
	return &documentRepo[T, L]{
		txManager:  txManager,
		entity:     entityName,
		table:      table,
		linesTable: linesTable,
		cols:       cols,
		lineCols:   postgres.ExtractDBColumns[L](),
		newFn:      newFn,
		header:     header,
		lines:      lines,
		setLines:   setLines,
	}
}

// Builder returns a new squirrel builder.
func (r *documentRepo[T, L]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *documentRepo[T, L]) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts the header and all lines in one round trip.
func (r *documentRepo[T, L]) Create(ctx context.Context, doc T) error {
	h := r.header(doc)
	audit.EnrichAuthor(ctx, &h.BaseDocument)

	data := postgres.StructToMap(doc)
	values := make(map[string]any, len(r.cols))
	for _, col := range r.cols {
		if v, ok := data[col]; ok {
			values[col] = v
		}
	}

	var batch postgres.Batch
	if err := batch.QueueBuilder("insert "+r.table, r.Builder().Insert(r.table).SetMap(values)); err != nil {
		return err
	}

	if lines := r.lines(doc); len(lines) > 0 {
		q := r.Builder().
			Insert(r.linesTable).
			Columns(append([]string{"document_id"}, r.lineCols...)...)
		for _, line := range lines {
			q = q.Values(append([]any{h.ID}, postgres.ValuesFor(line, r.lineCols)...)...)
		}
		if err := batch.QueueBuilder("insert "+r.linesTable, q); err != nil {
			return err
		}
	}

	if _, err := batch.Exec(ctx, r.querier(ctx)); err != nil {
		return fmt.Errorf("create %s: %w", r.entity, err)
	}
	return nil
}

func (r *documentRepo[T, L]) selectHeaders() squirrel.SelectBuilder {
	return r.Builder().Select(r.cols...).From(r.table)
}

// GetByID reads a document with its lines.
func (r *documentRepo[T, L]) GetByID(ctx context.Context, docID id.ID) (T, error) {
	return r.getOne(ctx, r.selectHeaders().Where(squirrel.Eq{"id": docID}), docID)
}

func (r *documentRepo[T, L]) getOne(ctx context.Context, q squirrel.SelectBuilder, docID id.ID) (T, error) {
	doc := r.newFn()

	sql, args, err := q.ToSql()
	if err != nil {
		return doc, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return doc, apperror.NewNotFound(r.entity, docID.String())
		}
		return doc, fmt.Errorf("get %s: %w", r.entity, err)
	}

	if err := r.attachLines(ctx, []T{doc}); err != nil {
		return doc, err
	}
	return doc, nil
}

// selectMany reads the headers matched by q and attaches their lines.
func (r *documentRepo[T, L]) selectMany(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var docs []T
	if err := pgxscan.Select(ctx, r.querier(ctx), &docs, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.entity, err)
	}

	if err := r.attachLines(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// lineRow is a line with its owning document id. Line columns are selected
// as "line.<column>" so scany fills the nested struct.
type lineRow[L any] struct {
	DocumentID id.ID `db:"document_id"`
	Line       L     `db:"line"`
}

// attachLines loads the lines of docs with a single query.
func (r *documentRepo[T, L]) attachLines(ctx context.Context, docs []T) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]id.ID, len(docs))
	for i, d := range docs {
		ids[i] = r.header(d).ID
	}

	cols := make([]string, 0, len(r.lineCols)+1)
	cols = append(cols, "document_id")
	for _, c := range r.lineCols {
		cols = append(cols, fmt.Sprintf(`%s AS "line.%s"`, c, c))
	}

	sql, args, err := r.Builder().
		Select(cols...).
		From(r.linesTable).
		Where(squirrel.Eq{"document_id": ids}).
		OrderBy("document_id", "line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lines query: %w", err)
	}

	rows, err := r.querier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", r.linesTable, err)
	}
	defer rows.Close()

	byDoc := make(map[id.ID][]L, len(docs))
	scanner := pgxscan.NewRowScanner(rows)
	for rows.Next() {
		var row lineRow[L]
		if err := scanner.Scan(&row); err != nil {
			return fmt.Errorf("scan %s: %w", r.linesTable, err)
		}
		byDoc[row.DocumentID] = append(byDoc[row.DocumentID], row.Line)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s: %w", r.linesTable, err)
	}

	for _, d := range docs {
		r.setLines(d, byDoc[r.header(d).ID])
	}
	return nil
}

// UpdateState moves a document from `from` to `to` with compare-and-set on the stored state.
func (r *documentRepo[T, L]) UpdateState(ctx context.Context, docID id.ID, from, to workflow.State) error {
	return r.updateWhereState(ctx, docID, from, squirrel.Eq{"state": to})
}

// updateWhereState applies set only while the stored state is still `from`.
func (r *documentRepo[T, L]) updateWhereState(ctx context.Context, docID id.ID, from workflow.State, set map[string]any) error {
	q := r.Builder().
		Update(r.table).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("updated_by", appctx.Actor(ctx)).
		Where(squirrel.Eq{"id": docID, "state": from})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s state: %w", r.entity, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.entity, docID.String()).
			WithDetail("expected_state", string(from))
	}
	return nil
}
