// Package auth provides pluggable authentication for the editor API.
package auth

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vellumhq/vellum/internal/model"
)

var authLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

// Provider authenticates editor requests. Middleware resolves credentials
// into the request context; the other methods read the result back out.
type Provider interface {
	// Middleware wraps a handler so authenticated requests carry their
	// user in context. Unauthenticated requests pass through untouched;
	// enforcement happens per route.
	Middleware() func(http.Handler) http.Handler

	// SessionUserID returns the authenticated user for the request.
	SessionUserID(r *http.Request) (model.UserID, error)

	// RequireUser is SessionUserID plus the 401 response when no user
	// is present.
	RequireUser(w http.ResponseWriter, r *http.Request) (model.UserID, error)

	// HandleUserWebhook ingests user lifecycle events from the identity
	// provider. Providers without a webhook respond 200 and do nothing.
	HandleUserWebhook(w http.ResponseWriter, r *http.Request)
}
