package audit

import (
	"context"

	appctx "salescycle/internal/core/context"
	"salescycle/internal/core/entity"
)

// EnrichAuthor fills CreatedBy and UpdatedBy of a document about to be stored.
// Values already set are kept; without a user in ctx the system actor is used.
func EnrichAuthor(ctx context.Context, doc *entity.BaseDocument) {
	if doc == nil {
		return
	}
	actor := appctx.Actor(ctx)
	if doc.CreatedBy == "" {
		doc.CreatedBy = actor
	}
	if doc.UpdatedBy == "" {
		doc.UpdatedBy = actor
	}
}
