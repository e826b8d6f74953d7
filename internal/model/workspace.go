package model

import (
	"net/http"

	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/theme"
)

// WorkspaceState is the editor's view of a connected repository: which
// branch is active, whether edits are being deferred into the queue, and
// the display settings the editor chrome needs.
type WorkspaceState struct {
	SiteName string `json:"siteName"`

	Repo   RepoID `json:"repo"`
	Branch string `json:"branch"`

	DeferredPublish bool `json:"deferredPublish"`
	QueueSize       int  `json:"queueSize"`

	Theme        string   `json:"theme"`
	SyntaxTheme  string   `json:"syntaxTheme"`
	SyntaxThemes []string `json:"syntaxThemes"`
}

// NewWorkspaceState fills the display half of the state from the request
// cookies and app config. The session half (repo, branch, queue size) is
// filled by the caller.
func NewWorkspaceState(r *http.Request) *WorkspaceState {
	return &WorkspaceState{
		SiteName:     config.AppConfig.Site.Name,
		Theme:        theme.FromRequest(r),
		SyntaxTheme:  theme.SyntaxFromRequest(r),
		SyntaxThemes: theme.SyntaxThemes(),
	}
}
