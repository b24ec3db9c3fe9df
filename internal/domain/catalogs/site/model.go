// Package site provides the warehouse/branch catalog.
package site

import (
	"salescycle/internal/core/entity"
)

// Site is a physical stock location. Code is kept exactly as stored ("002", "B-01").
type Site struct {
	entity.Catalog
}
