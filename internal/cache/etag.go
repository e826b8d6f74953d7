package cache

// One entry per cacheable response path.
var etagCache = mustLRU[string, string](1024)

// GetETag returns the cached ETag for a response path, if one was computed.
func GetETag(path string) (string, bool) {
	return etagCache.Get(path)
}

func SetETag(path, hash string) {
	etagCache.Add(path, hash)
}
