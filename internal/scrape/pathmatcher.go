package scrape

import (
	"net/url"
	"path"
	"strings"
)

// PathMatcher excludes URLs whose path matches a glob such as "/video/*" or
// "/*.pdf". A trailing "/*" also covers deeper paths.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher lower-cases the patterns. No patterns excludes nothing.
func NewPathMatcher(patterns []string) *PathMatcher {
	m := &PathMatcher{}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			m.patterns = append(m.patterns, strings.ToLower(p))
		}
	}
	return m
}

// IsExcluded reports whether rawURL matches a pattern. Unparseable URLs are
// excluded. A nil matcher excludes nothing.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	if m == nil {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchPath(pattern, p) {
			return true
		}
	}
	return false
}

func matchPath(pattern, p string) bool {
	if ok, _ := path.Match(pattern, p); ok {
		return true
	}
	if dir, ok := strings.CutSuffix(pattern, "/*"); ok {
		return p == dir || strings.HasPrefix(p, dir+"/")
	}
	return false
}
