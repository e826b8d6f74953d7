// Package api serves the editor's HTTP surface. Every content endpoint
// funnels edits through the session's mode selector, so a request either
// commits immediately or lands in the draft queue depending on the deferred
// publishing setting and the X-Queue-Only header.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/vellumhq/vellum/internal/auth"
	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/draft"
	"github.com/vellumhq/vellum/internal/gitremote"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/publish"
	"github.com/vellumhq/vellum/internal/routes"
	"github.com/vellumhq/vellum/internal/session"
	"github.com/vellumhq/vellum/internal/sse"
)

var apiLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	apiLogger = l
}

// Handler bundles what the editor endpoints need: the session manager, the
// repository this server edits, the auth provider, and the SSE hub.
type Handler struct {
	manager *session.Manager
	repo    model.RepoID
	auth    auth.Provider
	events  *sse.SSEClients
}

func NewHandler(manager *session.Manager, repo model.RepoID, provider auth.Provider, events *sse.SSEClients) *Handler {
	return &Handler{
		manager: manager,
		repo:    repo,
		auth:    provider,
		events:  events,
	}
}

// RegisterRoutes attaches every editor endpoint to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(routes.Health, h.serveHealth)
	mux.HandleFunc(routes.Workspace, h.serveWorkspace)

	mux.HandleFunc(routes.Posts, h.servePosts)
	mux.HandleFunc(routes.Post, h.servePost)
	mux.HandleFunc(routes.Media, h.serveMedia)
	mux.HandleFunc(routes.Settings, h.serveSettings)
	mux.HandleFunc(routes.Files, h.serveFiles)
	mux.HandleFunc(routes.Content, h.serveContent)

	mux.HandleFunc(routes.Queue, h.serveQueue)
	mux.HandleFunc(routes.QueueChange, h.serveQueueChange)
	mux.HandleFunc(routes.Publish, h.servePublish)
	mux.HandleFunc(routes.Branch, h.serveBranch)

	mux.HandleFunc(routes.Preview, h.servePreview)
	mux.HandleFunc(routes.ThemeToggle, h.serveThemeToggle)
	mux.HandleFunc(routes.SyntaxThemeSet, h.serveSyntaxThemeSet)
	mux.HandleFunc(routes.SyntaxThemeGet, h.serveSyntaxThemeGet)

	mux.HandleFunc(routes.SSEPath, h.serveEvents)
}

// session returns the live session, or writes a 503 when the repository has
// not been connected yet.
func (h *Handler) session(w http.ResponseWriter) (*session.Session, bool) {
	s, err := h.manager.Get(h.repo)
	if err != nil {
		http.Error(w, config.ErrRemoteUnavailable, http.StatusServiceUnavailable)
		return nil, false
	}
	return s, true
}

// enforce rejects the request when authentication is enabled and the request
// carries no valid identity.
func (h *Handler) enforce(w http.ResponseWriter, r *http.Request) (model.UserID, bool) {
	if !config.AppConfig.Features.Authentication.Enabled {
		return "", true
	}

	userID, err := h.auth.RequireUser(w, r)
	if err != nil {
		return "", false
	}
	return userID, true
}

// queueOnly reports whether the request forces this edit into the draft
// queue regardless of the global deferred-publish setting.
func queueOnly(r *http.Request) bool {
	return r.Header.Get(config.HQueueOnly) != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		apiLogger.Error().Err(err).Msg("Failed to encode response")
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps the error taxonomy onto HTTP statuses. Validation never
// reaches the queue, conflicts are retryable, and remote failures during a
// publish surface as bad gateway since the branch itself was left untouched.
func writeError(w http.ResponseWriter, err error) {
	var stageErr *publish.StageError

	switch {
	case errors.Is(err, draft.ErrInvalidOperation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, publish.ErrNothingToPublish):
		http.Error(w, config.ErrNothingToPublish, http.StatusBadRequest)
	case errors.Is(err, session.ErrChangeNotFound):
		http.Error(w, config.ErrChangeNotFound, http.StatusNotFound)
	case errors.Is(err, gitremote.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, gitremote.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &stageErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "ok",
		"repo":   h.repo,
	}
	if s, err := h.manager.Get(h.repo); err == nil {
		status["branch"] = s.Branch()
		status["head"] = s.Mirror().Head().Commit
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) serveWorkspace(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}

	state := model.NewWorkspaceState(r)
	state.Repo = h.repo
	state.Branch = s.Branch()
	state.DeferredPublish = s.Deferred()
	state.QueueSize = s.QueueSize()

	writeJSON(w, http.StatusOK, state)
}
