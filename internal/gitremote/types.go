package gitremote

import (
	"encoding/json"
	"time"
)

// Head is a resolved branch tip.
type Head struct {
	Branch string
	Commit string
	Tree   string
}

// TreeEntry is one entry in a tree creation request. Writes carry either a
// precomputed blob sha or inline utf-8 content; deletions carry an explicit
// null sha so the provider drops the path from the base tree.
type TreeEntry struct {
	Path    string
	Mode    string
	Type    string
	SHA     string
	Content string
	Deleted bool
}

func (e TreeEntry) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"path": e.Path,
		"mode": e.Mode,
		"type": e.Type,
	}
	switch {
	case e.Deleted:
		m["sha"] = nil
	case e.SHA != "":
		m["sha"] = e.SHA
	default:
		m["content"] = e.Content
	}
	return json.Marshal(m)
}

// TreeFile is one file in a recursive tree listing.
type TreeFile struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// Signature identifies a commit author or committer.
type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date,omitempty"`
}

// NewCommit is a commit creation request.
type NewCommit struct {
	Message string     `json:"message"`
	Tree    string     `json:"tree"`
	Parents []string   `json:"parents"`
	Author  *Signature `json:"author,omitempty"`
}

type refResponse struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA  string `json:"sha"`
		Type string `json:"type"`
	} `json:"object"`
}

type commitResponse struct {
	SHA  string `json:"sha"`
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
	Message string `json:"message"`
}

type blobRequest struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type treeRequest struct {
	BaseTree string      `json:"base_tree,omitempty"`
	Tree     []TreeEntry `json:"tree"`
}

type treeResponse struct {
	SHA       string     `json:"sha"`
	Tree      []TreeFile `json:"tree"`
	Truncated bool       `json:"truncated"`
}

type updateRefRequest struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

type shaResponse struct {
	SHA string `json:"sha"`
}

type blobResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
}
