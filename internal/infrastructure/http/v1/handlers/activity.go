package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"salescycle/internal/core/apperror"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/workflow"
)

// HistoryReader reads persisted activity of one document.
type HistoryReader interface {
	History(ctx context.Context, entityType, entityID string, limit int) ([]audit.Entry, error)
}

// ActivityHandler serves the in-memory activity log and, when persistence is
// enabled, the stored history of a single document.
type ActivityHandler struct {
	*BaseHandler
	log     *audit.BoundedLog
	history HistoryReader
}

// NewActivityHandler creates an activity handler. history may be nil.
func NewActivityHandler(base *BaseHandler, log *audit.BoundedLog, history HistoryReader) *ActivityHandler {
	return &ActivityHandler{BaseHandler: base, log: log, history: history}
}

// List handles GET /activity?limit=N and returns the newest entries first.
func (h *ActivityHandler) List(c *gin.Context) {
	entries := h.log.Entries()
	limit := h.ParseIntQuery(c, "limit", len(entries))
	if limit < 0 || limit > len(entries) {
		limit = len(entries)
	}

	out := make([]audit.Entry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	h.OK(c, gin.H{"items": out, "capacity": h.log.Capacity(), "total": h.log.Len()})
}

// History handles GET /activity/:entityType/:id?limit=N.
func (h *ActivityHandler) History(c *gin.Context) {
	if h.history == nil {
		h.Error(c, apperror.NewNotFound("activity history", c.Param("entityType")))
		return
	}

	entityType, err := workflow.ParseEntityType(c.Param("entityType"))
	if err != nil {
		h.Error(c, err)
		return
	}
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}

	entries, err := h.history.History(c.Request.Context(), string(entityType), docID.String(),
		h.ParseIntQuery(c, "limit", 100))
	if err != nil {
		h.Error(c, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	h.OK(c, gin.H{"items": entries})
}
