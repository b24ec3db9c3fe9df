// Package party provides the client and vendor catalogs.
// Clients are identified by their tax code, vendors (salespeople) by their employee code.
package party

import (
	"context"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/entity"
)

// Kind tells clients apart from vendors. Both live in the same catalog shape.
type Kind string

const (
	KindClient Kind = "client"
	KindVendor Kind = "vendor"
)

// DefaultCreditTermDays applies when a client has no credit term configured.
const DefaultCreditTermDays = 30

// Party represents a client or a vendor.
type Party struct {
	entity.Catalog

	Kind Kind `db:"kind" json:"kind"`

	// Active parties may be referenced by billable documents
	Active bool `db:"active" json:"active"`

	// CreditTermDays is nil when the legacy row has no term
	CreditTermDays *int `db:"credit_term_days" json:"creditTermDays,omitempty"`
}

// Validate implements entity.Validatable interface.
func (p *Party) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	if p.Kind != KindClient && p.Kind != KindVendor {
		return apperror.NewValidation("invalid party kind").
			WithDetail("field", "kind").
			WithDetail("value", string(p.Kind))
	}

	if p.CreditTermDays != nil && *p.CreditTermDays < 0 {
		return apperror.NewValidation("credit term cannot be negative").
			WithDetail("field", "creditTermDays")
	}

	return nil
}

// CreditTerm returns the configured credit term or DefaultCreditTermDays.
func (p *Party) CreditTerm() int {
	if p.CreditTermDays == nil {
		return DefaultCreditTermDays
	}
	return *p.CreditTermDays
}

// EnsureActive returns InactiveParty when the party cannot be billed.
func (p *Party) EnsureActive() error {
	if p.Active {
		return nil
	}
	return apperror.NewInactiveParty(string(p.Kind), p.ID, p.Name)
}
