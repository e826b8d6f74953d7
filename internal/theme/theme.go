// Package theme resolves display and syntax themes for a request and
// generates the matching chroma stylesheets.
package theme

import (
	"html/template"
	"net/http"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vellumhq/vellum/internal/config"
)

// formatter is shared by code block highlighting and stylesheet generation;
// both sides must agree on class names or the CSS won't match the markup.
var formatter = html.New(
	html.WithClasses(true),
	html.TabWidth(4),
	html.WithLineNumbers(true),
	html.WrapLongLines(true),
)

func Formatter() *html.Formatter { return formatter }

// cssCache holds one generated stylesheet per syntax theme. The capacity
// comfortably exceeds the chroma style count, so in practice nothing is
// ever evicted.
var cssCache, _ = lru.New[string, template.CSS](128)

// FromRequest returns the requester's display theme, falling back to the
// configured default when no cookie is set.
func FromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieTheme); err == nil {
		return cookie.Value
	}
	return config.AppConfig.Theme.Default
}

// DefaultSyntax maps a display theme to its configured syntax theme.
func DefaultSyntax(displayTheme string) string {
	if displayTheme == config.LightTheme {
		return config.AppConfig.Theme.SyntaxHighlighting.DefaultLight
	}
	return config.AppConfig.Theme.SyntaxHighlighting.DefaultDark
}

// SyntaxFromRequest returns the requester's syntax theme, falling back to
// the default for their display theme.
func SyntaxFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil {
		return cookie.Value
	}
	return DefaultSyntax(FromRequest(r))
}

// SyntaxThemes lists every available chroma style, sorted for stable
// dropdowns.
func SyntaxThemes() []string {
	names := styles.Names()
	slices.Sort(names)
	return names
}

// SyntaxCSS generates the stylesheet for a syntax theme. Stylesheets never
// change within a process, so each theme is generated once.
func SyntaxCSS(name string) template.CSS {
	if css, ok := cssCache.Get(name); ok {
		return css
	}

	style := styles.Get(name)

	var buf strings.Builder
	if bg := style.Get(chroma.Background); !bg.Colour.IsSet() {
		// Styles without an explicit foreground get one picked against the
		// background luminance so text stays readable.
		luminance := (0.299*float64(bg.Background.Red()) +
			0.587*float64(bg.Background.Green()) +
			0.114*float64(bg.Background.Blue())) / 255
		if luminance > 0.5 {
			buf.WriteString(".chroma { color: #181818; }\n")
		}
	}
	formatter.WriteCSS(&buf, style)

	css := template.CSS(buf.String())
	cssCache.Add(name, css)
	return css
}
