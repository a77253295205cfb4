// Package source fetches candidate articles from configured feeds and
// listing pages.
package source

import (
	"context"
	"net/url"
	"regexp"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hunter/internal/fetcher"
	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/scrape"
	"github.com/sells-group/hunter/pkg/jina"
)

// Adapter produces a bounded batch of articles from one source, in source
// order. An error means the whole source was unreachable; items that fail
// individually are skipped.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]model.FetchedArticle, error)
}

// Defaults applied when Options leaves a field zero.
const (
	DefaultMaxArticles      = 25
	DefaultMinContentLength = 100
	DefaultFetchTimeout     = 10 * time.Second
)

// Options are the limits every adapter shares.
type Options struct {
	// MaxArticles is used when the source sets no max_articles.
	MaxArticles      int
	MinContentLength int
	FetchTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxArticles <= 0 {
		o.MaxArticles = DefaultMaxArticles
	}
	if o.MinContentLength <= 0 {
		o.MinContentLength = DefaultMinContentLength
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	return o
}

// Deps are the shared clients adapters are built from. Robots and Throttle
// may be nil.
type Deps struct {
	Fetcher  fetcher.Fetcher
	Scrapers []scrape.Scraper
	Jina     jina.Client
	Robots   *Robots
	Throttle *Throttle
	Options  Options
}

// New builds the adapter for src's kind.
func New(src model.Source, deps Deps) (Adapter, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	opts := deps.Options.withDefaults()
	if src.MaxArticles > 0 {
		opts.MaxArticles = src.MaxArticles
	}
	b := base{name: src.Name, opts: opts, robots: deps.Robots, throttle: deps.Throttle}

	switch src.Kind {
	case model.SourceRSS:
		if deps.Fetcher == nil {
			return nil, eris.Errorf("source %s: rss needs a fetcher", src.Name)
		}
		return &RSSAdapter{
			base:    b,
			cfg:     *src.RSS,
			fetcher: deps.Fetcher,
			chain:   scrape.NewChain(nil, deps.Scrapers...),
		}, nil
	case model.SourceHTTPScrape:
		if deps.Fetcher == nil || len(deps.Scrapers) == 0 {
			return nil, eris.Errorf("source %s: http_scrape needs a fetcher and scrapers", src.Name)
		}
		matcher := scrape.NewPathMatcher(src.HTTP.ExcludePaths)
		links, err := newLinkFilter(src.HTTP.ListingURL, src.HTTP.LinkPattern, matcher)
		if err != nil {
			return nil, eris.Wrapf(err, "source %s", src.Name)
		}
		return &HTTPAdapter{
			base:    b,
			cfg:     *src.HTTP,
			fetcher: deps.Fetcher,
			chain:   scrape.NewChain(matcher, deps.Scrapers...),
			links:   links,
		}, nil
	case model.SourceBrowserScrape:
		if deps.Jina == nil {
			return nil, eris.Errorf("source %s: browser_scrape needs a jina client", src.Name)
		}
		links, err := newLinkFilter(src.Browser.ListingURL, src.Browser.LinkPattern, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "source %s", src.Name)
		}
		return &BrowserAdapter{
			base:   b,
			cfg:    *src.Browser,
			client: deps.Jina,
			links:  links,
		}, nil
	default:
		return nil, eris.Errorf("source %s: unknown kind %q", src.Name, src.Kind)
	}
}

// base holds what every adapter shares.
type base struct {
	name     string
	opts     Options
	robots   *Robots
	throttle *Throttle
}

func (b *base) Name() string { return b.name }

// allowed consults robots.txt when a checker is configured.
func (b *base) allowed(ctx context.Context, rawURL string) bool {
	if b.robots == nil {
		return true
	}
	return b.robots.Allowed(ctx, rawURL)
}

// pause waits the politeness delay before every fetch but the first.
func (b *base) pause(ctx context.Context, n int, rawURL string) error {
	if n == 0 {
		return ctx.Err()
	}
	var floor time.Duration
	if b.robots != nil {
		floor = b.robots.CrawlDelay(rawURL)
	}
	return b.throttle.Wait(ctx, floor)
}

// linkFilter picks article links off a listing page.
type linkFilter struct {
	listing *url.URL
	pattern *regexp.Regexp
	matcher *scrape.PathMatcher
}

func newLinkFilter(listing, pattern string, matcher *scrape.PathMatcher) (*linkFilter, error) {
	u, err := url.Parse(listing)
	if err != nil {
		return nil, eris.Wrap(err, "parse listing url")
	}
	f := &linkFilter{listing: u, matcher: matcher}
	if pattern != "" {
		if f.pattern, err = regexp.Compile(pattern); err != nil {
			return nil, eris.Wrap(err, "compile link_pattern")
		}
	}
	return f, nil
}

// pick keeps links on the listing's host that match the pattern, are not
// excluded and are not the listing itself, deduplicated, up to limit.
func (f *linkFilter) pick(links []string, limit int) []string {
	seen := map[string]bool{f.listing.String(): true}
	var out []string
	for _, raw := range links {
		if len(out) >= limit {
			break
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if !u.IsAbs() {
			u = f.listing.ResolveReference(u)
		}
		u.Fragment = ""
		link := u.String()
		if seen[link] || u.Host != f.listing.Host {
			continue
		}
		seen[link] = true
		if f.pattern != nil && !f.pattern.MatchString(link) {
			continue
		}
		if f.matcher.IsExcluded(link) {
			continue
		}
		out = append(out, link)
	}
	return out
}
