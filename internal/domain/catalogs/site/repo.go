package site

import (
	"context"
)

// Repository loads sites from the legacy warehouse table.
type Repository interface {
	List(ctx context.Context) ([]*Site, error)
}
