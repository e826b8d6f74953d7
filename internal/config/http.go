package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"
	HHxRedirect   = "Hx-Redirect"

	// HQueueOnly forces an edit into the draft queue even when deferred
	// publishing is disabled globally.
	HQueueOnly = "X-Queue-Only"

	CTypeCSS  = "text/css"
	CTypeHTML = "text/html"
	CTypeJSON = "application/json"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

const (
	CookieTheme       = "theme"
	CookieSyntaxTheme = "syntax-theme"
	CookieAuthToken   = "auth_token"
)
