package auth

import (
	"context"

	"github.com/vellumhq/vellum/internal/model"
)

// userIDKey is unexported so only this package can attach an identity.
type userIDKey struct{}

// WithUserID returns a context carrying the authenticated user.
func WithUserID(ctx context.Context, id model.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID returns the authenticated user attached to the context, if any.
func UserID(ctx context.Context) (model.UserID, bool) {
	id, ok := ctx.Value(userIDKey{}).(model.UserID)
	return id, ok
}
