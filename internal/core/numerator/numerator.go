// Package numerator declares how sales documents are numbered.
//
// A number looks like PREFIX-YEAR-00001. Each document type picks a strategy:
// fiscal documents (invoices, credit notes) need gapless numbers, the rest
// trade gaps for fewer round trips.
package numerator

import (
	"context"
	"fmt"
	"time"
)

// Strategy selects how numbers are reserved.
type Strategy int

const (
	// StrategyStrict bumps the stored counter once per number. Drawn inside the
	// document's transaction, a rollback returns the number.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges and serves them from memory. A restart
	// loses the rest of the range.
	StrategyCached
)

func (s Strategy) String() string {
	if s == StrategyCached {
		return "cached"
	}
	return "strict"
}

// Reset is how often a sequence starts over at 1.
type Reset string

const (
	ResetYearly  Reset = "year"
	ResetMonthly Reset = "month"
	ResetNever   Reset = "never"
)

// DefaultPadWidth is the minimum width of the counter part.
const DefaultPadWidth = 5

// Options tunes a single draw.
type Options struct {
	Strategy Strategy
	// RangeSize applies to StrategyCached; zero uses the generator default
	RangeSize int64
}

// Config describes one document type's numbering.
type Config struct {
	Prefix      string
	IncludeYear bool
	PadWidth    int
	Reset       Reset
}

// DefaultConfig numbers as PREFIX-YEAR-00001 and restarts every year.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    DefaultPadWidth,
		Reset:       ResetYearly,
	}
}

// Key names the stored counter a number for period is drawn from.
func (c Config) Key(period time.Time) string {
	switch c.Reset {
	case ResetMonthly:
		return c.Prefix + "_" + period.Format("2006_01")
	case ResetYearly:
		return c.Prefix + "_" + period.Format("2006")
	default:
		return c.Prefix
	}
}

// Format renders counter value n as a document number.
func (c Config) Format(period time.Time, n int64) string {
	width := c.PadWidth
	if width <= 0 {
		width = DefaultPadWidth
	}
	if c.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), width, n)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, width, n)
}

// Generator hands out document numbers.
type Generator interface {
	// GetNextNumber returns the next number of cfg for period. A nil opts means strict.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber moves the counter, e.g. to continue a legacy sequence.
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
