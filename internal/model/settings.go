package model

// SiteSettings is the parsed form of the repository's site settings file.
// Unknown fields in the file are preserved on write by the settings
// patcher; this struct only carries what the editor displays.
type SiteSettings struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tagline     string `json:"tagline"`
	Author      string `json:"author,omitempty"`
	BaseURL     string `json:"baseUrl,omitempty"`
}
