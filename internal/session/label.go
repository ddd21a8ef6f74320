package session

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// SourceLabel returns the display label for a source identifier: the last
// path segment of a URL or file path.
func SourceLabel(id string) string {
	if id == "" {
		return ""
	}
	if u, err := url.Parse(id); err == nil && u.Scheme != "" && u.Host != "" {
		p := strings.TrimSuffix(u.Path, "/")
		if p == "" {
			return u.Host
		}
		return path.Base(p)
	}
	return filepath.Base(id)
}
