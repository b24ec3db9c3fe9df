package resolver

import (
	"strconv"
	"strings"
)

// Record is the view of a catalog row the strategies match against.
type Record struct {
	ID   string
	Code string
	Name string
}

// Hints carries collaborator-provided identifiers that outrank the candidate itself.
type Hints struct {
	// CanonicalCode is matched exactly against Record.Code
	CanonicalCode string
}

// StrategyKind tags each matching strategy; it is reported with every match.
type StrategyKind string

const (
	StrategyCanonicalHint  StrategyKind = "canonical_hint"
	StrategySurrogateID    StrategyKind = "surrogate_id"
	StrategyNormalizedCode StrategyKind = "normalized_code"
	StrategyDisplayName    StrategyKind = "display_name"
	StrategyPositional     StrategyKind = "positional"
)

// MatchFunc returns the index of the first matching record, or -1.
type MatchFunc func(candidate string, hints Hints, records []Record) int

// Strategy is one step of the resolution chain.
type Strategy struct {
	Kind  StrategyKind
	Match MatchFunc
}

// Chain is an ordered list of strategies; the first match wins.
type Chain []Strategy

// DefaultChain returns the strategies in priority order.
func DefaultChain() Chain {
	return Chain{
		{Kind: StrategyCanonicalHint, Match: MatchCanonicalHint},
		{Kind: StrategySurrogateID, Match: MatchSurrogateID},
		{Kind: StrategyNormalizedCode, Match: MatchNormalizedCode},
		{Kind: StrategyDisplayName, Match: MatchDisplayName},
		{Kind: StrategyPositional, Match: MatchPositional},
	}
}

// Find runs the chain and returns the matched index and the strategy that found it.
func (c Chain) Find(candidate string, hints Hints, records []Record) (int, StrategyKind, bool) {
	for _, s := range c {
		if idx := s.Match(candidate, hints, records); idx >= 0 {
			return idx, s.Kind, true
		}
	}
	return -1, "", false
}

// MatchCanonicalHint matches the hint code exactly.
func MatchCanonicalHint(_ string, hints Hints, records []Record) int {
	if hints.CanonicalCode == "" {
		return -1
	}
	for i, r := range records {
		if r.Code == hints.CanonicalCode {
			return i
		}
	}
	return -1
}

// MatchSurrogateID matches the candidate against surrogate ids.
func MatchSurrogateID(candidate string, _ Hints, records []Record) int {
	for i, r := range records {
		if SameID(r.ID, candidate) {
			return i
		}
	}
	return -1
}

// MatchNormalizedCode matches zero-padding-insensitive numeric codes
// and case-insensitive textual codes.
func MatchNormalizedCode(candidate string, _ Hints, records []Record) int {
	want := NormalizeCode(candidate)
	if want == "" {
		return -1
	}
	for i, r := range records {
		if NormalizeCode(r.Code) == want {
			return i
		}
	}
	for i, r := range records {
		if strings.EqualFold(strings.TrimSpace(r.Code), strings.TrimSpace(candidate)) {
			return i
		}
	}
	return -1
}

// MatchDisplayName matches trimmed names case-insensitively. Lowest confidence.
func MatchDisplayName(candidate string, _ Hints, records []Record) int {
	want := strings.TrimSpace(candidate)
	if want == "" {
		return -1
	}
	for i, r := range records {
		if strings.EqualFold(strings.TrimSpace(r.Name), want) {
			return i
		}
	}
	return -1
}

// MatchPositional treats a numeric candidate as a 1-based position, accepting the
// element only when its code (or surrogate id) re-derives to that position.
func MatchPositional(candidate string, _ Hints, records []Record) int {
	n, err := strconv.Atoi(strings.TrimSpace(candidate))
	if err != nil || n < 1 || n > len(records) {
		return -1
	}

	r := records[n-1]
	if NormalizeCode(r.Code) == PadCode(n) || SameID(r.ID, strconv.Itoa(n)) {
		return n - 1
	}
	return -1
}
