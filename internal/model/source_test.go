package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceValidate_RSS(t *testing.T) {
	s := Source{Name: "nrn", Kind: SourceRSS, RSS: &RSSConfig{FeedURL: "https://www.nrn.com/rss.xml"}}
	assert.NoError(t, s.Validate())
}

func TestSourceValidate_HTTP(t *testing.T) {
	s := Source{Name: "bizjournal", Kind: SourceHTTPScrape, HTTP: &HTTPScrapeConfig{
		ListingURL:  "https://example.com/news",
		LinkPattern: `/news/\d{4}/`,
	}}
	assert.NoError(t, s.Validate())
}

func TestSourceValidate_Browser(t *testing.T) {
	s := Source{Name: "spa", Kind: SourceBrowserScrape, Browser: &BrowserScrapeConfig{ListingURL: "https://example.com"}}
	assert.NoError(t, s.Validate())
}

func TestSourceValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		msg  string
	}{
		{"no name", Source{Kind: SourceRSS, RSS: &RSSConfig{FeedURL: "https://a.com"}}, "name is required"},
		{"no payload", Source{Name: "x", Kind: SourceRSS}, "exactly one"},
		{"two payloads", Source{Name: "x", Kind: SourceRSS,
			RSS:  &RSSConfig{FeedURL: "https://a.com"},
			HTTP: &HTTPScrapeConfig{ListingURL: "https://a.com"}}, "exactly one"},
		{"kind mismatch", Source{Name: "x", Kind: SourceRSS, HTTP: &HTTPScrapeConfig{ListingURL: "https://a.com"}}, "requires an rss block"},
		{"unknown kind", Source{Name: "x", Kind: "ftp", RSS: &RSSConfig{FeedURL: "https://a.com"}}, "unknown kind"},
		{"bad url", Source{Name: "x", Kind: SourceRSS, RSS: &RSSConfig{FeedURL: "not a url"}}, "invalid url"},
		{"bad pattern", Source{Name: "x", Kind: SourceHTTPScrape, HTTP: &HTTPScrapeConfig{
			ListingURL: "https://a.com", LinkPattern: "("}}, "invalid link_pattern"},
		{"negative max", Source{Name: "x", Kind: SourceRSS, MaxArticles: -1, RSS: &RSSConfig{FeedURL: "https://a.com"}}, "max_articles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
