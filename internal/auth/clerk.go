package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"

	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/user"
)

// ClerkProvider authenticates editors against a hosted Clerk instance and
// mirrors its user lifecycle into the local store via webhook.
type ClerkProvider struct {
	users *user.Store

	sessionExtractor clerkhttp.AuthorizationOption
}

func NewClerkProvider(clerkKey string, users *user.Store) *ClerkProvider {
	clerk.SetKey(clerkKey)

	return &ClerkProvider{
		users: users,
		sessionExtractor: clerkhttp.AuthorizationJWTExtractor(func(r *http.Request) string {
			cookie, err := r.Cookie("__session")
			if err != nil || cookie == nil {
				authLogger.Debug().Err(err).Msg("Session cookie not found")
				return ""
			}
			return cookie.Value
		}),
	}
}

func (c *ClerkProvider) Middleware() func(http.Handler) http.Handler {
	return clerkhttp.WithHeaderAuthorization(c.sessionExtractor)
}

func (c *ClerkProvider) SessionUserID(r *http.Request) (model.UserID, error) {
	claims, ok := clerk.SessionClaimsFromContext(r.Context())
	if !ok {
		return "", errors.New("no session claims in context")
	}

	usr, err := clerkuser.Get(r.Context(), claims.Subject)
	if err != nil {
		return "", err
	}

	return model.UserID(usr.ID), nil
}

func (c *ClerkProvider) RequireUser(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	id, err := c.SessionUserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", err
	}
	return id, nil
}

// clerkEvent is the envelope Clerk posts to the user webhook.
type clerkEvent struct {
	Data clerk.User `json:"data"`
	Type string     `json:"type"`
}

// HandleUserWebhook keeps the local user store in sync with Clerk.
func (c *ClerkProvider) HandleUserWebhook(w http.ResponseWriter, r *http.Request) {
	var event clerkEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		authLogger.Error().Err(err).Msg("Error decoding webhook payload")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	authLogger.Info().Str("type", event.Type).Msg("User webhook received")

	switch event.Type {
	case "user.created":
		c.webhookUserCreated(w, event.Data)
	case "user.updated":
		w.WriteHeader(http.StatusNoContent)
	case "user.deleted":
		c.webhookUserDeleted(w, event.Data)
	default:
		http.Error(w, "Invalid event type", http.StatusBadRequest)
	}
}

func (c *ClerkProvider) webhookUserCreated(w http.ResponseWriter, usr clerk.User) {
	// The editor identity is the linked forge account, so an account
	// without one cannot be provisioned.
	if len(usr.ExternalAccounts) == 0 {
		authLogger.Warn().Str("user", usr.ID).Msg("No external accounts for user")
		http.Error(w, "No external accounts found", http.StatusBadRequest)
		return
	}

	account := usr.ExternalAccounts[0]
	if !strings.EqualFold(account.Provider, "oauth_github") {
		authLogger.Warn().Str("user", usr.ID).Str("provider", account.Provider).Msg("Unsupported account provider")
		http.Error(w, "Unsupported provider", http.StatusBadRequest)
		return
	}

	username := ""
	if account.Username != nil {
		username = *account.Username
	}
	err := c.users.Save(user.User{
		ID:       model.UserID(usr.ID),
		Username: username,
	})
	if err != nil {
		authLogger.Error().Err(err).Str("user", usr.ID).Msg("Error saving user")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	authLogger.Info().Str("user", usr.ID).Msg("User created")
	w.WriteHeader(http.StatusCreated)
}

func (c *ClerkProvider) webhookUserDeleted(w http.ResponseWriter, usr clerk.User) {
	if err := c.users.Delete(model.UserID(usr.ID)); err != nil {
		authLogger.Error().Err(err).Str("user", usr.ID).Msg("Error deleting user")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	authLogger.Info().Str("user", usr.ID).Msg("User deleted")
	w.WriteHeader(http.StatusNoContent)
}
