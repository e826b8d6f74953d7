package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/draft"
	"github.com/vellumhq/vellum/internal/model"
)

// queueItem is the queue line shown to the editor. Operation contents stay
// server side; the UI only needs the shape of each staged change.
type queueItem struct {
	ID          model.ChangeID `json:"id"`
	Kind        draft.Kind     `json:"kind"`
	Summary     string         `json:"summary"`
	PrimaryPath string         `json:"primaryPath"`
	Files       int            `json:"files"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func (h *Handler) serveQueue(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		changes := s.Changes()
		items := make([]queueItem, 0, len(changes))
		for _, c := range changes {
			items = append(items, queueItem{
				ID:          c.ID,
				Kind:        c.Kind,
				Summary:     c.Summary(),
				PrimaryPath: c.PrimaryPath,
				Files:       len(c.Operations),
				CreatedAt:   c.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, struct {
			Size    int         `json:"size"`
			Changes []queueItem `json:"changes"`
		}{len(items), items})

	case http.MethodDelete:
		if _, ok := h.enforce(w, r); !ok {
			return
		}
		s.Clear()
		writeJSON(w, http.StatusOK, map[string]int{"size": 0})

	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

func (h *Handler) serveQueueChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.enforce(w, r); !ok {
		return
	}

	s, ok := h.session(w)
	if !ok {
		return
	}

	if err := s.Remove(model.ChangeID(r.PathValue("id"))); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"size": s.QueueSize()})
}

func (h *Handler) servePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.enforce(w, r); !ok {
		return
	}

	s, ok := h.session(w)
	if !ok {
		return
	}

	// The body is optional; an empty one means the commit message is
	// derived from the queued changes.
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.Publish(r.Context(), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) serveBranch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.enforce(w, r); !ok {
		return
	}

	s, ok := h.session(w)
	if !ok {
		return
	}

	var req struct {
		Branch string `json:"branch"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Branch == "" {
		http.Error(w, "Missing branch", http.StatusBadRequest)
		return
	}

	if err := s.SwitchBranch(r.Context(), req.Branch); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"branch": s.Branch(),
		"head":   s.Mirror().Head().Commit,
	})
}
