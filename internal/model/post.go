// Package model defines core data structures and types for the writing platform.
package model

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/mmarkdown/mmark/v2/mast"
)

type PostID string

type UserID string

// RepoID identifies a connected content repository as "owner/name".
type RepoID string

// ChangeID identifies a staged change record in the draft queue.
type ChangeID string

// Owner returns the "owner" half of an "owner/name" repository ID.
func (r RepoID) Owner() string {
	if i := strings.Index(string(r), "/"); i >= 0 {
		return string(r)[:i]
	}
	return string(r)
}

// Name returns the "name" half of an "owner/name" repository ID.
func (r RepoID) Name() string {
	if i := strings.Index(string(r), "/"); i >= 0 {
		return string(r)[i+1:]
	}
	return ""
}

// Post is a markdown document materialized from the content repository.
type Post struct {
	ID PostID

	Title   string
	Content template.HTML

	// Path of the markdown file inside the content repository.
	Path string

	// Hash of the markdown source. Together with the syntax theme it keys
	// the rendered-content cache.
	MDContentHash string

	Markdown     []byte
	CreatedDate  time.Time
	ModifiedDate time.Time

	// Parsed front matter, when the document carries any.
	Info *mast.TitleData

	// The signed-in user who created the post, when known.
	Owner UserID
}

// GetTitle prefers the front matter title over the one derived from the
// file name, prefixed with series info when the front matter carries both
// a series name and value.
func (p *Post) GetTitle() string {
	if p.Info == nil || p.Info.Title == "" {
		return p.Title
	}
	if s := p.Info.SeriesInfo; s.Name != "" && s.Value != "" {
		return fmt.Sprintf("[%s-%s] %s", s.Name, s.Value, p.Info.Title)
	}
	return p.Info.Title
}
