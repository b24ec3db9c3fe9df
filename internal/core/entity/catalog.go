package entity

import (
	"context"
	"strings"

	"salescycle/internal/core/apperror"
)

// Catalog is the base type for reference data inherited from the legacy schema.
// Examples: clients, vendors, warehouses.
//
// Legacy rows keep their surrogate keys, which are usually (not always) numeric,
// so ID is a string rather than an application UUID.
type Catalog struct {
	// ID is the surrogate key assigned by the application
	ID string `db:"id" json:"id"`

	// Code is the legacy code (tax code, employee code, warehouse code)
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.ID) == "" {
		return apperror.NewValidation("id is required").
			WithDetail("field", "id")
	}
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}
