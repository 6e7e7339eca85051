// Package mediaurl maps stored photo keys to the public URLs kept on
// accounts and back.
package mediaurl

import (
	"net/url"
	"strings"
)

const PathPrefix = "/media/"

func Photo(baseURL, key string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return PathPrefix + key
	}
	return baseURL + PathPrefix + key
}

// ParseKey extracts the storage key from a URL built by Photo. It accepts
// both absolute URLs and bare paths.
func ParseKey(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	path := u.Path
	if path == "" {
		path = raw
	}

	if !strings.HasPrefix(path, PathPrefix) {
		return "", false
	}

	key := strings.TrimPrefix(path, PathPrefix)
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", false
	}

	return key, true
}
