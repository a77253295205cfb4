package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathMatcher(t *testing.T) {
	m := NewPathMatcher([]string{"/video/*", "/*.PDF", " ", "/tag/*"})

	tests := []struct {
		url  string
		want bool
	}{
		{"https://x.com/video/clip", true},
		{"https://x.com/video/a/b/c", true},
		{"https://x.com/video", true},
		{"https://x.com/videos/clip", false},
		{"https://x.com/report.pdf", true},
		{"https://x.com/Tag/openings", true},
		{"https://x.com/news/2026/opening", false},
		{"://bad", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.IsExcluded(tt.url), tt.url)
	}
}

func TestPathMatcher_EmptyAndNil(t *testing.T) {
	assert.False(t, NewPathMatcher(nil).IsExcluded("https://x.com/news/a"))

	var m *PathMatcher
	assert.False(t, m.IsExcluded("https://x.com/anything"))
}
