package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	"salescycle/internal/core/id"
	"salescycle/internal/domain/audit"
)

const auditTable = "sys_activity_log"

// CompressionAlgo records how the details payload is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the details size above which payloads are zstd-compressed.
const DefaultCompressThreshold = 4 * 1024

var _ audit.Sink = (*AuditSink)(nil)

// AuditSink appends activity entries to sys_activity_log. It writes through the
// transaction in ctx when there is one, so entries commit with the document.
type AuditSink struct {
	txManager *TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewAuditSink creates the sink. threshold <= 0 uses DefaultCompressThreshold.
func NewAuditSink(txManager *TxManager, threshold int) (*AuditSink, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditSink{txManager: txManager, encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Record implements audit.Sink.
func (s *AuditSink) Record(ctx context.Context, entry audit.Entry) error {
	details, compressed, algo, err := s.encodeDetails(entry.Details)
	if err != nil {
		return err
	}

	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert(auditTable).
		Columns("id", "occurred_at", "actor", "action", "entity_type", "entity_id",
			"details", "details_compressed", "compression_algo").
		Values(id.New(), entry.Timestamp, entry.Actor, string(entry.Action), entry.TargetEntityType,
			entry.TargetEntityID, details, compressed, string(algo)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build activity insert: %w", err)
	}

	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

func (s *AuditSink) encodeDetails(details map[string]any) ([]byte, []byte, CompressionAlgo, error) {
	if len(details) == 0 {
		return nil, nil, CompressionNone, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, nil, "", fmt.Errorf("marshal activity details: %w", err)
	}
	if len(raw) <= s.threshold {
		return raw, nil, CompressionNone, nil
	}
	return nil, s.encoder.EncodeAll(raw, nil), CompressionZstd, nil
}

// History returns the entries of one entity, newest first.
func (s *AuditSink) History(ctx context.Context, entityType, entityID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("occurred_at", "actor", "action", "entity_type", "entity_id",
			"details", "details_compressed", "compression_algo").
		From(auditTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("occurred_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			action     string
			at         time.Time
			details    []byte
			compressed []byte
			algo       string
		)
		if err := rows.Scan(&at, &e.Actor, &action, &e.TargetEntityType, &e.TargetEntityID,
			&details, &compressed, &algo); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		e.Timestamp = at.UTC()
		e.Action = audit.Action(action)

		e.Details, err = s.decodeDetails(details, compressed, CompressionAlgo(algo))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *AuditSink) decodeDetails(details, compressed []byte, algo CompressionAlgo) (map[string]any, error) {
	if algo == CompressionZstd && len(compressed) > 0 {
		raw, err := s.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress activity details: %w", err)
		}
		details = raw
	}
	if len(details) == 0 {
		return nil, nil
	}

	var out map[string]any
	if err := json.Unmarshal(details, &out); err != nil {
		return nil, fmt.Errorf("unmarshal activity details: %w", err)
	}
	return out, nil
}
