// Package util holds the helpers shared across the content pipeline:
// content addressing and front matter extraction.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"

	"github.com/mmarkdown/mmark/v2/mast"
)

// fmFence delimits the TOML title block, following the mmark convention.
var fmFence = []byte("%%%")

// ContentHash returns the hex sha256 digest of content. Post ids, render
// cache keys and ETags all derive from it.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// ParseFrontMatter decodes the `%%%`-fenced TOML block at the top of md.
// The fence must be the first non-whitespace content in the document.
func ParseFrontMatter(md []byte) (*mast.TitleData, error) {
	md = markdown.NormalizeNewlines(md)
	md = bytes.TrimLeft(md, "\n \t\r")

	if !bytes.HasPrefix(md, fmFence) {
		return nil, errors.New("front matter: missing opening fence")
	}
	rest := md[len(fmFence):]
	end := bytes.Index(rest, fmFence)
	if end == -1 {
		return nil, errors.New("front matter: missing closing fence")
	}

	meta := new(mast.TitleData)
	if _, err := toml.Decode(string(rest[:end]), meta); err != nil {
		return nil, fmt.Errorf("front matter: %w", err)
	}
	if meta.Language == "" {
		meta.Language = "en"
	}
	return meta, nil
}
