// Package render turns markdown into preview HTML through the mmark
// pipeline, with chroma-highlighted code blocks.
package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rs/zerolog"

	"github.com/mmarkdown/mmark/v2/lang"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/mmarkdown/mmark/v2/mparser"
	"github.com/mmarkdown/mmark/v2/render/mhtml"

	"github.com/vellumhq/vellum/internal/cache"
)

var renderLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

// Markdown renders a document and returns the HTML plus its parsed title
// block. Documents without a title block get an untitled placeholder.
func Markdown(md []byte, syntaxTheme string) ([]byte, *mast.TitleData) {
	md = markdown.NormalizeNewlines(md)

	p := parser.NewWithExtensions(mparser.Extensions | parser.NoIntraEmphasis)

	var title *mast.TitleData
	init := mparser.NewInitial("")
	p.Opts = parser.Options{
		ParserHook: func(data []byte) (ast.Node, []byte, int) {
			node, rest, consumed := mparser.Hook(data)
			if t, ok := node.(*mast.Title); ok {
				title = t.TitleData
			}
			return node, rest, consumed
		},
		ReadIncludeFn: init.ReadInclude,
		Flags:         parser.FlagsNone,
	}

	doc := markdown.Parse(md, p)
	mparser.AddIndex(doc)

	if title == nil {
		title = &mast.TitleData{Title: "Untitled", Language: "en"}
	}
	if title.Language == "" {
		title.Language = "en"
	}

	mhtmlOpts := mhtml.RendererOptions{Language: lang.New(title.Language)}
	opts := mdhtml.RendererOptions{
		Comments: [][]byte{[]byte("//"), []byte("#")},
		Flags:    mdhtml.CommonFlags | mdhtml.FootnoteNoHRTag | mdhtml.FootnoteReturnLinks,
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if code, ok := node.(*ast.CodeBlock); ok && entering {
				language := ""
				if code.Info != nil {
					language = string(code.Info)
				}
				fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", highlightBlock(string(code.Literal), language, syntaxTheme))
				return ast.GoToNext, true
			}
			return mhtmlOpts.RenderHook(w, node, entering)
		},
	}

	return markdown.Render(doc, mdhtml.NewRenderer(opts)), title
}

// renderMu serializes cache fills so a burst of requests for the same
// document renders it once.
var renderMu sync.Mutex

// MarkdownCached is Markdown behind the hash+theme keyed render cache.
func MarkdownCached(md []byte, contentHash, syntaxTheme string) []byte {
	if contentHash == "" {
		renderLogger.Warn().Msg("Empty content hash, rendering uncached")
		html, _ := Markdown(md, syntaxTheme)
		return html
	}

	if html, ok := cache.GetRenderedHTML(contentHash, syntaxTheme); ok {
		return html
	}

	renderMu.Lock()
	defer renderMu.Unlock()
	if html, ok := cache.GetRenderedHTML(contentHash, syntaxTheme); ok {
		return html
	}

	renderLogger.Debug().
		Str("contentHash", contentHash).
		Str("syntaxTheme", syntaxTheme).
		Msg("Render cache miss")

	html, _ := Markdown(md, syntaxTheme)
	cache.SetRenderedHTML(contentHash, syntaxTheme, html)
	return html
}

// Warm pre-renders content in the background so the first read after an
// edit hits the cache.
func Warm(md []byte, contentHash, syntaxTheme string) {
	go MarkdownCached(md, contentHash, syntaxTheme)
}
