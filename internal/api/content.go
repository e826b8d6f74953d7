package api

import (
	"encoding/base64"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/draft"
	"github.com/vellumhq/vellum/internal/gitremote"
	"github.com/vellumhq/vellum/internal/mirror"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/render"
	"github.com/vellumhq/vellum/internal/session"
	"github.com/vellumhq/vellum/internal/siteconfig"
	"github.com/vellumhq/vellum/internal/theme"
	"github.com/vellumhq/vellum/internal/util"
)

// postSummary is the list view of a post. The markdown body stays out of the
// listing; clients fetch it per slug.
type postSummary struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Path        string    `json:"path"`
	ContentHash string    `json:"contentHash"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

type postDetail struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Path        string    `json:"path"`
	Markdown    string    `json:"markdown"`
	HTML        string    `json:"html"`
	ContentHash string    `json:"contentHash"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

func postSlug(layout mirror.Layout, path string) string {
	return strings.TrimSuffix(strings.TrimPrefix(path, layout.PostsDir+"/"), config.MarkdownExt)
}

func postFilePath(layout mirror.Layout, slug string) string {
	return layout.PostsDir + "/" + slug + config.MarkdownExt
}

func (h *Handler) servePosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	s, ok := h.session(w)
	if !ok {
		return
	}

	layout := s.Mirror().Layout()
	posts := s.Mirror().Posts()
	summaries := make([]postSummary, 0, len(posts))
	for _, p := range posts {
		summaries = append(summaries, postSummary{
			Slug:        postSlug(layout, p.Path),
			Title:       p.GetTitle(),
			Path:        p.Path,
			ContentHash: p.MDContentHash,
			Created:     p.CreatedDate,
			Modified:    p.ModifiedDate,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) servePost(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}

	slug := r.PathValue("slug")
	id := model.PostID(util.ContentHashString(slug))
	layout := s.Mirror().Layout()

	switch r.Method {
	case http.MethodGet:
		post, err := s.Mirror().Post(id)
		if err != nil {
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}

		html := render.MarkdownCached(post.Markdown, post.MDContentHash, theme.SyntaxFromRequest(r))
		writeJSON(w, http.StatusOK, postDetail{
			Slug:        slug,
			Title:       post.GetTitle(),
			Path:        post.Path,
			Markdown:    string(post.Markdown),
			HTML:        string(html),
			ContentHash: post.MDContentHash,
			Created:     post.CreatedDate,
			Modified:    post.ModifiedDate,
		})

	case http.MethodPut, http.MethodPost:
		if _, ok := h.enforce(w, r); !ok {
			return
		}

		raw := []byte(r.FormValue("content"))
		path := postFilePath(layout, slug)

		title := ""
		if fm, err := util.ParseFrontMatter(raw); err == nil && fm.Title != "" {
			title = fm.Title
		}
		if title == "" {
			if post, err := s.Mirror().Post(id); err == nil {
				title = post.Title
			}
		}
		if title == "" {
			title = "Untitled - " + time.Now().UTC().Format("2006-01-02")
		}

		op, err := draft.NewWrite(path, raw, draft.EncodingUTF8)
		if err != nil {
			writeError(w, err)
			return
		}
		change, err := draft.NewChange(draft.KindPost, title, path, []draft.Operation{op})
		if err != nil {
			writeError(w, err)
			return
		}

		res, err := s.Apply(r.Context(), change, queueOnly(r))
		if err != nil {
			writeError(w, err)
			return
		}

		render.Warm(raw, util.ContentHash(raw), theme.SyntaxFromRequest(r))
		writeJSON(w, http.StatusOK, res)

	case http.MethodDelete:
		if _, ok := h.enforce(w, r); !ok {
			return
		}

		if _, err := s.Mirror().Post(id); err != nil {
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}

		path := postFilePath(layout, slug)
		op, err := draft.NewDelete(path)
		if err != nil {
			writeError(w, err)
			return
		}
		change, err := draft.NewChange(draft.KindPost, "", path, []draft.Operation{op})
		if err != nil {
			writeError(w, err)
			return
		}

		res, err := s.Apply(r.Context(), change, queueOnly(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

func (h *Handler) serveMedia(w http.ResponseWriter, r *http.Request) {
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
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Filename == "" {
		http.Error(w, "Missing filename", http.StatusBadRequest)
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		http.Error(w, "Invalid base64 content: "+err.Error(), http.StatusBadRequest)
		return
	}

	layout := s.Mirror().Layout()
	path := layout.MediaDir + "/" + req.Filename

	op, err := draft.NewWrite(path, raw, draft.EncodingBase64)
	if err != nil {
		writeError(w, err)
		return
	}
	change, err := draft.NewChange(draft.KindMedia, "Upload "+req.Filename, path, []draft.Operation{op})
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.Apply(r.Context(), change, queueOnly(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Path string `json:"path"`
		*session.ApplyResult
	}{path, res})
}

func (h *Handler) serveSettings(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.Mirror().Settings())

	case http.MethodPatch:
		if _, ok := h.enforce(w, r); !ok {
			return
		}

		var updates map[string]any
		if !readJSON(w, r, &updates) {
			return
		}
		if len(updates) == 0 {
			http.Error(w, "No settings fields provided", http.StatusBadRequest)
			return
		}

		layout := s.Mirror().Layout()
		raw, err := s.Mirror().Content(r.Context(), layout.SettingsPath)
		if errors.Is(err, gitremote.ErrNotFound) {
			raw = []byte("{}")
		} else if err != nil {
			writeError(w, err)
			return
		}

		// A null value clears the field, everything else sets it.
		sets := make(map[string]any)
		var unsets []string
		for field, value := range updates {
			if value == nil {
				unsets = append(unsets, field)
			} else {
				sets[field] = value
			}
		}

		patched := raw
		if len(sets) > 0 {
			if patched, err = siteconfig.Patch(patched, sets); err != nil {
				writeError(w, err)
				return
			}
		}
		if len(unsets) > 0 {
			if patched, err = siteconfig.Delete(patched, unsets...); err != nil {
				writeError(w, err)
				return
			}
		}

		op, err := draft.NewWrite(layout.SettingsPath, patched, draft.EncodingUTF8)
		if err != nil {
			writeError(w, err)
			return
		}
		change, err := draft.NewChange(draft.KindSettings, "", layout.SettingsPath, []draft.Operation{op})
		if err != nil {
			writeError(w, err)
			return
		}

		res, err := s.Apply(r.Context(), change, queueOnly(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

func (h *Handler) serveFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	s, ok := h.session(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Mirror().Files())
}

func (h *Handler) serveContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	s, ok := h.session(w)
	if !ok {
		return
	}

	path := r.PathValue("path")
	content, err := s.Mirror().Content(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}

	ctype := mime.TypeByExtension(filepath.Ext(path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set(config.HCType, ctype)
	w.Header().Set(config.HETag, util.ContentHash(content))
	w.Write(content)
}
