package config

const (
	//? These paths must match the layout of the content repository

	PostsLocalDir = "posts"
	PostsURLPath  = "/" + PostsLocalDir + "/"

	MediaLocalDir = "media"
	MediaURLPath  = "/" + MediaLocalDir + "/"

	SettingsFilePath = "site.json"

	MarkdownExt = ".md"
)
