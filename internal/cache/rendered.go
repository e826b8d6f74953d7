package cache

// Rendered output depends on both the source and the highlight theme, so
// entries are keyed by the pair. The capacity matches the config default;
// main resizes it after the config loads.
var renderedCache = mustLRU[string, []byte](256)

func renderedKey(contentHash, syntaxTheme string) string {
	return contentHash + ":" + syntaxTheme
}

func GetRenderedHTML(contentHash, syntaxTheme string) ([]byte, bool) {
	return renderedCache.Get(renderedKey(contentHash, syntaxTheme))
}

func SetRenderedHTML(contentHash, syntaxTheme string, html []byte) {
	renderedCache.Add(renderedKey(contentHash, syntaxTheme), html)
}

func ClearRenderedHTML() {
	renderedCache.Purge()
}
