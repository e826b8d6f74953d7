package api

import (
	"fmt"
	"net/http"

	"github.com/vellumhq/vellum/internal/cache"
	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/render"
	"github.com/vellumhq/vellum/internal/theme"
	"github.com/vellumhq/vellum/internal/util"
)

func (h *Handler) servePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	content := r.FormValue("content")
	if content == "" {
		content = "Start typing in the editor to see a preview here."
	}

	syntaxTheme := theme.SyntaxFromRequest(r)

	// mode=source returns the highlighted markdown source for the editor
	// pane instead of the rendered document.
	if r.FormValue("mode") == "source" {
		highlighted, err := render.HighlightSource(content, syntaxTheme)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set(config.HCType, config.CTypeHTML)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(highlighted))
		return
	}

	htmlContent, _ := render.Markdown([]byte(content), syntaxTheme)

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write(htmlContent)
}

func (h *Handler) serveThemeToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	currentTheme := theme.FromRequest(r)

	newTheme := config.DefaultTheme
	if currentTheme == config.DarkTheme {
		newTheme = config.LightTheme
	}

	http.SetCookie(w, &http.Cookie{
		Name:  config.CookieTheme,
		Value: newTheme,
		Path:  "/",
	})

	syntaxTheme := theme.DefaultSyntax(newTheme)
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil {
		syntaxTheme = cookie.Value
	}

	w.Header().Set("Hx-Trigger", fmt.Sprintf(`{"themeChanged":{"value":"%s","syntaxTheme":"%s"}}`, newTheme, syntaxTheme))
	writeJSON(w, http.StatusOK, map[string]string{
		"theme":       newTheme,
		"syntaxTheme": syntaxTheme,
	})
}

func (h *Handler) serveSyntaxThemeSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	currTheme := r.FormValue("syntax-theme-select")
	if currTheme == "" {
		http.Error(w, "theme required", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieSyntaxTheme,
		Value:    currTheme,
		Path:     "/",
		HttpOnly: true,
	})

	themeStyle := []byte(theme.SyntaxCSS(currTheme))
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, syntaxThemeETag(currTheme, themeStyle))
	w.WriteHeader(http.StatusOK)
	w.Write(themeStyle)
}

func (h *Handler) serveSyntaxThemeGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	currTheme := r.PathValue("theme")

	themeStyle := []byte(theme.SyntaxCSS(currTheme))
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, syntaxThemeETag(currTheme, themeStyle))
	w.WriteHeader(http.StatusOK)
	w.Write(themeStyle)
}

// syntaxThemeETag returns a stable ETag for a theme stylesheet. Theme CSS
// never changes within a process, so the hash is computed once per theme.
func syntaxThemeETag(name string, css []byte) string {
	if tag, ok := cache.GetETag("syntax-theme:" + name); ok {
		return tag
	}
	tag := util.ContentHash(css)
	cache.SetETag("syntax-theme:"+name, tag)
	return tag
}
