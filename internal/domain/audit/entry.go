// Package audit records an append-only activity log of every mutating sales operation.
//
// Recording is a side effect: a failing sink is logged and never changes the
// outcome of the operation that emitted the entry.
package audit

import (
	"context"
	"time"

	appctx "salescycle/internal/core/context"
	"salescycle/pkg/logger"
)

// Action is the kind of audited operation.
type Action string

const (
	ActionCreate      Action = "create"
	ActionApprove     Action = "approve"
	ActionTransition  Action = "transition"
	ActionConsolidate Action = "consolidate"
	ActionStamp       Action = "stamp"
	ActionStampFailed Action = "stamp_failed"
	ActionVoid        Action = "void"
)

// Entry is one immutable activity log record.
type Entry struct {
	Timestamp        time.Time      `json:"timestamp"`
	Actor            string         `json:"actor"`
	Action           Action         `json:"action"`
	TargetEntityType string         `json:"targetEntityType"`
	TargetEntityID   string         `json:"targetEntityId"`
	Details          map[string]any `json:"details,omitempty"`
}

// Sink receives activity entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Emitter stamps entries with time and actor and forwards them to a sink.
type Emitter struct {
	sink Sink
	now  func() time.Time
}

// NewEmitter creates an Emitter. A nil sink discards everything.
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink, now: time.Now}
}

// Emit records one entry. Errors are logged, not returned.
func (e *Emitter) Emit(ctx context.Context, action Action, entityType, entityID string, details map[string]any) {
	if e == nil || e.sink == nil {
		return
	}

	entry := Entry{
		Timestamp:        e.now().UTC(),
		Actor:            appctx.Actor(ctx),
		Action:           action,
		TargetEntityType: entityType,
		TargetEntityID:   entityID,
		Details:          cloneDetails(details),
	}

	if err := e.sink.Record(ctx, entry); err != nil {
		logger.Warn(ctx, "activity log write failed",
			"action", string(action),
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err)
	}
}

func cloneDetails(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
