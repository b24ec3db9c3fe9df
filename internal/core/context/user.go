// Package context carries the acting user and trace ids through a request.
package context

import "context"

// SystemActor is recorded when no user is attached to the context.
const SystemActor = "system"

// UserContext is the acting user as forwarded by the gateway or the CLI.
// Authentication happens upstream; the ids are trusted as given.
type UserContext struct {
	UserID string
	Email  string
	Roles  []string
}

type userContextKey struct{}

// WithUser attaches user to ctx.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns the user of ctx, or nil.
func GetUser(ctx context.Context) *UserContext {
	u, _ := ctx.Value(userContextKey{}).(*UserContext)
	return u
}

// Actor is the user id written to activity entries and updated_by columns.
func Actor(ctx context.Context) string {
	if u := GetUser(ctx); u != nil && u.UserID != "" {
		return u.UserID
	}
	return SystemActor
}
