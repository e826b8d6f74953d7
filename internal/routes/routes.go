// Package routes defines HTTP route constants for the application.
package routes

// API Routes
const (
	// Root and health
	RootPath = "/"
	Health   = "/health"

	// Workspace state for the editor chrome
	Workspace = "/api/workspace"

	// Content
	Posts    = "/api/posts"
	Post     = "/api/posts/{slug}"
	Media    = "/api/media"
	Settings = "/api/settings"
	Files    = "/api/files"
	Content  = "/api/content/{path...}"

	// Draft queue and publishing
	Queue       = "/api/queue"
	QueueChange = "/api/queue/{id}"
	Publish     = "/api/publish"
	Branch      = "/api/branch"

	// Editor preview and theming
	Preview        = "/api/preview"
	ThemeToggle    = "/theme/toggle"
	SyntaxThemeSet = "/syntax-theme/set"
	SyntaxThemeGet = "/syntax-theme/{theme}"

	// SSE
	SSEPath = "/sse"

	// Auth routes
	AuthChallenge = "/auth/challenge"
	AuthVerify    = "/auth/verify"
	UserWebhook   = "/webhook/user"
)
