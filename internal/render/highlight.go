package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/theme"
)

// highlightBlock renders one fenced code block. Callout markers arrive
// HTML-escaped in chroma's output and are rewritten into styled spans.
func highlightBlock(code, language, syntaxTheme string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := theme.Formatter().Format(&buf, styles.Get(syntaxTheme), iterator); err != nil {
		return code
	}
	return config.RegexCallout.ReplaceAllString(buf.String(), `<span class="callout">$1</span>`)
}

// sourceFormatter styles the editor's source pane: no line numbers and no
// wrapping pre element, just classed spans the pane lays out itself.
var sourceFormatter = chromahtml.New(
	chromahtml.WithClasses(true),
	chromahtml.WithLineNumbers(false),
	chromahtml.PreventSurroundingPre(true),
)

// HighlightSource renders raw markdown source as highlighted HTML for the
// editor's source pane.
func HighlightSource(src, syntaxTheme string) (string, error) {
	lexer := lexers.Get("markdown")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, src)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := sourceFormatter.Format(&buf, styles.Get(syntaxTheme), iterator); err != nil {
		return "", err
	}

	// Line breaks are significant in the source pane.
	html := strings.ReplaceAll(buf.String(), "\n", "<br>\n")
	return `<div class="source-pane">` + html + `</div>`, nil
}
