// Package id provides document identifiers.
//
// Sales documents are keyed by UUIDv7, so ids sort by creation time. Legacy
// catalog rows keep their own string keys and never use this package.
package id

import (
	"sort"

	"github.com/google/uuid"
)

// ID identifies a sales document.
type ID = uuid.UUID

// New returns a fresh UUIDv7, or a random UUID if the clock read fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse reads an ID in any of the textual forms uuid accepts.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse is Parse for fixtures; it panics on bad input.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns the zero ID.
func Nil() ID {
	return uuid.Nil
}

// IsNil reports whether v is the zero ID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// SortedStrings renders ids in ascending textual order. The result does not
// depend on the order of the input.
func SortedStrings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	sort.Strings(out)
	return out
}
