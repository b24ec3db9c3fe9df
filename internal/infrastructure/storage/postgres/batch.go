package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// Batch collects statements that are sent to the server in one round trip.
// Used where a document write touches its header and every line.
type Batch struct {
	batch pgx.Batch
	names []string
}

// Queue adds a raw statement.
func (b *Batch) Queue(name, sql string, args ...any) {
	b.batch.Queue(sql, args...)
	b.names = append(b.names, name)
}

// QueueBuilder renders a squirrel statement and queues it.
func (b *Batch) QueueBuilder(name string, stmt squirrel.Sqlizer) error {
	sql, args, err := stmt.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}
	b.Queue(name, sql, args...)
	return nil
}

// Len returns the number of queued statements.
func (b *Batch) Len() int {
	return len(b.names)
}

// Exec sends the batch and returns the rows affected by each statement in queue order.
func (b *Batch) Exec(ctx context.Context, q Querier) ([]int64, error) {
	if b.Len() == 0 {
		return nil, nil
	}

	results := q.SendBatch(ctx, &b.batch)
	defer results.Close()

	affected := make([]int64, 0, b.Len())
	for _, name := range b.names {
		tag, err := results.Exec()
		if err != nil {
			return affected, fmt.Errorf("%s: %w", name, err)
		}
		affected = append(affected, tag.RowsAffected())
	}
	return affected, nil
}
