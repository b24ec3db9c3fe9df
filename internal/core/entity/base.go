// Package entity holds the fields shared by sales documents and legacy catalog rows.
package entity

import (
	"context"
	"time"

	"salescycle/internal/core/id"
)

// Validatable is implemented by entities that check their own invariants
// without touching storage.
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseDocument is the identity and bookkeeping part of a document row.
// Version increases with every stored update; state changes are guarded by
// the stored state itself, not by Version.
type BaseDocument struct {
	ID      id.ID `db:"id" json:"id"`
	Version int   `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseDocument returns version 1 of a new document with a fresh id.
func NewBaseDocument() BaseDocument {
	now := time.Now().UTC()
	return BaseDocument{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
