// Package stamping provides tax-authority stampers.
package stamping

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"time"

	"salescycle/internal/core/apperror"
	"salescycle/internal/domain/documents/invoice"
	"salescycle/pkg/logger"
)

// TestEnvironment is the authority's environment code for non-production submissions.
const TestEnvironment = "2"

// Sandbox computes a CUFE-style reference locally instead of calling the
// authority. The reference is the hex SHA-384 of the invoice number, issue
// timestamp, amounts, issuer and client ids, technical key and environment.
// The same invoice always yields the same reference.
type Sandbox struct {
	issuerID     string
	technicalKey string
	latency      time.Duration
	now          func() time.Time
}

var _ invoice.Stamper = (*Sandbox)(nil)

// SandboxConfig configures the sandbox stamper.
type SandboxConfig struct {
	IssuerID     string
	TechnicalKey string
	// Latency simulates the round trip; zero answers immediately
	Latency time.Duration
}

// NewSandbox creates a sandbox stamper.
func NewSandbox(cfg SandboxConfig) *Sandbox {
	return &Sandbox{
		issuerID:     cfg.IssuerID,
		technicalKey: cfg.TechnicalKey,
		latency:      cfg.Latency,
		now:          time.Now,
	}
}

// Stamp implements invoice.Stamper.
func (s *Sandbox) Stamp(ctx context.Context, inv *invoice.Invoice) (invoice.StampResult, error) {
	if strings.TrimSpace(inv.Number) == "" {
		return invoice.StampResult{}, apperror.NewValidation("invoice has no number").
			WithDetail("invoice_id", inv.ID.String())
	}

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return invoice.StampResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	ref := Reference(inv, s.issuerID, s.technicalKey)
	logger.Info(ctx, "invoice stamped in sandbox", "number", inv.Number, "reference", ref)

	return invoice.StampResult{Reference: ref, StampedAt: s.now().UTC()}, nil
}

// Reference builds the CUFE-style hash of inv.
func Reference(inv *invoice.Invoice, issuerID, technicalKey string) string {
	issued := inv.IssueDate.UTC()
	parts := []string{
		inv.Number,
		issued.Format("2006-01-02"),
		issued.Format("15:04:05") + "-00:00",
		inv.TaxBase.StringFixed(2),
		"01", inv.TaxAmount.StringFixed(2),
		inv.PayableAmount.StringFixed(2),
		issuerID,
		inv.ClientID,
		technicalKey,
		TestEnvironment,
	}

	sum := sha512.Sum384([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}
