// Package product exposes the product lookups the sales engine needs.
// Product maintenance lives outside this module.
package product

import (
	"context"
)

// Catalog resolves legacy product codes to product ids.
type Catalog interface {
	// FindIDByCode returns the product id for a legacy code; ok is false when nothing matches.
	FindIDByCode(ctx context.Context, code string) (productID string, ok bool, err error)
}
