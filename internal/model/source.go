package model

import (
	"net/url"
	"regexp"

	"github.com/rotisserie/eris"
)

// SourceKind tags which payload a Source carries.
type SourceKind string

const (
	SourceRSS           SourceKind = "rss"
	SourceHTTPScrape    SourceKind = "http_scrape"
	SourceBrowserScrape SourceKind = "browser_scrape"
)

// Source is one configured article source. Exactly one payload, the one
// matching Kind, is set.
type Source struct {
	Name        string               `yaml:"name" json:"name"`
	Kind        SourceKind           `yaml:"kind" json:"kind"`
	MaxArticles int                  `yaml:"max_articles" json:"max_articles,omitempty"`
	RSS         *RSSConfig           `yaml:"rss,omitempty" json:"rss,omitempty"`
	HTTP        *HTTPScrapeConfig    `yaml:"http,omitempty" json:"http,omitempty"`
	Browser     *BrowserScrapeConfig `yaml:"browser,omitempty" json:"browser,omitempty"`
}

// RSSConfig configures an RSS or Atom feed source.
type RSSConfig struct {
	FeedURL       string `yaml:"feed_url" json:"feed_url"`
	FetchFullText bool   `yaml:"fetch_full_text" json:"fetch_full_text"`
}

// HTTPScrapeConfig configures a listing page scraped over plain HTTP.
type HTTPScrapeConfig struct {
	ListingURL   string   `yaml:"listing_url" json:"listing_url"`
	LinkPattern  string   `yaml:"link_pattern" json:"link_pattern"`
	ExcludePaths []string `yaml:"exclude_paths" json:"exclude_paths,omitempty"`
}

// BrowserScrapeConfig configures a listing page that needs a rendering
// browser.
type BrowserScrapeConfig struct {
	ListingURL  string `yaml:"listing_url" json:"listing_url"`
	LinkPattern string `yaml:"link_pattern" json:"link_pattern"`
}

// Validate checks that the payload matches Kind and its URLs parse.
func (s Source) Validate() error {
	if s.Name == "" {
		return eris.New("source: name is required")
	}
	if s.MaxArticles < 0 {
		return eris.Errorf("source %s: max_articles must be >= 0", s.Name)
	}

	payloads := 0
	for _, set := range []bool{s.RSS != nil, s.HTTP != nil, s.Browser != nil} {
		if set {
			payloads++
		}
	}
	if payloads != 1 {
		return eris.Errorf("source %s: exactly one of rss, http, browser must be set (got %d)", s.Name, payloads)
	}

	switch s.Kind {
	case SourceRSS:
		if s.RSS == nil {
			return eris.Errorf("source %s: kind %s requires an rss block", s.Name, s.Kind)
		}
		return validURL(s.Name, s.RSS.FeedURL)
	case SourceHTTPScrape:
		if s.HTTP == nil {
			return eris.Errorf("source %s: kind %s requires an http block", s.Name, s.Kind)
		}
		if err := validURL(s.Name, s.HTTP.ListingURL); err != nil {
			return err
		}
		return validPattern(s.Name, s.HTTP.LinkPattern)
	case SourceBrowserScrape:
		if s.Browser == nil {
			return eris.Errorf("source %s: kind %s requires a browser block", s.Name, s.Kind)
		}
		if err := validURL(s.Name, s.Browser.ListingURL); err != nil {
			return err
		}
		return validPattern(s.Name, s.Browser.LinkPattern)
	default:
		return eris.Errorf("source %s: unknown kind %q", s.Name, s.Kind)
	}
}

func validURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return eris.Errorf("source %s: invalid url %q", name, raw)
	}
	return nil
}

func validPattern(name, pattern string) error {
	if pattern == "" {
		return nil
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return eris.Wrapf(err, "source %s: invalid link_pattern", name)
	}
	return nil
}
