package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/vellumhq/vellum/internal/cache"
)

func TestMarkdownBasics(t *testing.T) {
	t.Run("heading and paragraph", func(t *testing.T) {
		html, title := Markdown([]byte("# Heading\n\nSome body text."), "github")

		out := string(html)
		if !strings.Contains(out, "<h1") || !strings.Contains(out, "Heading") {
			t.Errorf("Expected an h1 heading, got %s", out)
		}
		if !strings.Contains(out, "Some body text.") {
			t.Errorf("Expected body text in output, got %s", out)
		}
		if title.Title != "Untitled" {
			t.Errorf("Expected placeholder title for untitled document, got %q", title.Title)
		}
		if title.Language != "en" {
			t.Errorf("Expected default language en, got %q", title.Language)
		}
	})

	t.Run("title block is parsed", func(t *testing.T) {
		md := "%%%\ntitle = \"Draft Workflow\"\n%%%\n\nBody paragraph."
		html, title := Markdown([]byte(md), "github")

		if title.Title != "Draft Workflow" {
			t.Errorf("Expected title from title block, got %q", title.Title)
		}
		if !strings.Contains(string(html), "Body paragraph.") {
			t.Errorf("Expected body to render, got %s", html)
		}
	})

	t.Run("windows newlines are normalized", func(t *testing.T) {
		html, _ := Markdown([]byte("# A\r\n\r\ntext\r\n"), "github")
		if !strings.Contains(string(html), "text") {
			t.Errorf("Expected CRLF document to render, got %s", html)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		html, title := Markdown(nil, "github")
		if title.Title != "Untitled" {
			t.Errorf("Expected placeholder title, got %q", title.Title)
		}
		if html == nil {
			t.Error("Expected non-nil output for empty document")
		}
	})
}

func TestMarkdownCodeBlocks(t *testing.T) {
	md := "```go\nfmt.Println(\"hi\") // <<1>>\n```\n"
	html, _ := Markdown([]byte(md), "github")
	out := string(html)

	if !strings.Contains(out, `<div class="highlight">`) {
		t.Errorf("Expected highlight wrapper around code block, got %s", out)
	}
	if !strings.Contains(out, "chroma") {
		t.Errorf("Expected chroma classes in highlighted code, got %s", out)
	}
	if !strings.Contains(out, `<span class="callout">1</span>`) {
		t.Errorf("Expected callout marker rewritten into a span, got %s", out)
	}
	if strings.Contains(out, "&lt;&lt;1&gt;&gt;") {
		t.Errorf("Expected raw callout marker to be consumed, got %s", out)
	}
}

func TestHighlightBlockUnknownLanguage(t *testing.T) {
	out := highlightBlock("plain text payload", "no-such-language", "github")
	if !strings.Contains(out, "plain text payload") {
		t.Errorf("Expected fallback lexer to keep the text, got %s", out)
	}
}

func TestMarkdownCached(t *testing.T) {
	cache.ClearRenderedHTML()
	t.Cleanup(cache.ClearRenderedHTML)

	md := []byte("# Cached\n\ncontent")

	t.Run("fills the cache", func(t *testing.T) {
		html := MarkdownCached(md, "hash-fill", "github")

		cached, ok := cache.GetRenderedHTML("hash-fill", "github")
		if !ok {
			t.Fatal("Expected render to be cached")
		}
		if !bytes.Equal(cached, html) {
			t.Error("Cached bytes should match the returned render")
		}
	})

	t.Run("serves from the cache", func(t *testing.T) {
		sentinel := []byte("<p>sentinel</p>")
		cache.SetRenderedHTML("hash-hit", "github", sentinel)

		if got := MarkdownCached(md, "hash-hit", "github"); !bytes.Equal(got, sentinel) {
			t.Errorf("Expected the cached entry back, got %s", got)
		}
	})

	t.Run("keys by theme as well as hash", func(t *testing.T) {
		MarkdownCached(md, "hash-theme", "github")
		MarkdownCached(md, "hash-theme", "monokai")

		if _, ok := cache.GetRenderedHTML("hash-theme", "github"); !ok {
			t.Error("Expected a github-keyed entry")
		}
		if _, ok := cache.GetRenderedHTML("hash-theme", "monokai"); !ok {
			t.Error("Expected a monokai-keyed entry")
		}
	})

	t.Run("empty hash bypasses the cache", func(t *testing.T) {
		html := MarkdownCached(md, "", "github")
		if !strings.Contains(string(html), "Cached") {
			t.Errorf("Expected a direct render, got %s", html)
		}
		if _, ok := cache.GetRenderedHTML("", "github"); ok {
			t.Error("Expected nothing cached under an empty hash")
		}
	})
}

func TestWarm(t *testing.T) {
	cache.ClearRenderedHTML()
	t.Cleanup(cache.ClearRenderedHTML)

	Warm([]byte("# Warmed"), "hash-warm", "github")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := cache.GetRenderedHTML("hash-warm", "github"); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Expected Warm to populate the cache")
}

func TestHighlightSource(t *testing.T) {
	t.Run("wraps and preserves line breaks", func(t *testing.T) {
		out, err := HighlightSource("# Title\n\nSome **bold** text", "github")
		if err != nil {
			t.Fatalf("HighlightSource failed: %v", err)
		}
		if !strings.Contains(out, `<div class="source-pane">`) {
			t.Errorf("Expected source-pane wrapper, got %s", out)
		}
		if !strings.Contains(out, "<br>") {
			t.Errorf("Expected line breaks to be preserved, got %s", out)
		}
		if !strings.Contains(out, "<span") {
			t.Errorf("Expected highlighted spans, got %s", out)
		}
	})

	t.Run("empty source", func(t *testing.T) {
		out, err := HighlightSource("", "github")
		if err != nil {
			t.Fatalf("HighlightSource failed: %v", err)
		}
		if !strings.Contains(out, "source-pane") {
			t.Errorf("Expected wrapper even for empty source, got %s", out)
		}
	})
}

func BenchmarkMarkdownCached(b *testing.B) {
	cache.ClearRenderedHTML()
	md := bytes.Repeat([]byte("# Section\n\nBody with `code` and **bold** text.\n\n"), 20)

	b.Run("Hit", func(b *testing.B) {
		MarkdownCached(md, "bench-hit", "github")
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			MarkdownCached(md, "bench-hit", "github")
		}
	})

	b.Run("Miss", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			html, _ := Markdown(md, "github")
			_ = html
		}
	})
}
