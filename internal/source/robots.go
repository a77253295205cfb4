package source

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const (
	robotsTTL      = 24 * time.Hour
	robotsMaxBytes = 512 << 10
	// maxCrawlDelay caps what a robots.txt may ask for.
	maxCrawlDelay = 30 * time.Second
)

// Robots answers robots.txt questions, caching each host's file for a day.
// Hosts whose robots.txt cannot be fetched are treated as allowing all.
type Robots struct {
	client    *http.Client
	userAgent string
	agent     string
	cache     *gocache.Cache
}

// NewRobots matches rules against the product token of userAgent.
func NewRobots(userAgent string, timeout time.Duration) *Robots {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Robots{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		agent:     productToken(userAgent),
		cache:     gocache.New(robotsTTL, time.Hour),
	}
}

// Allowed reports whether rawURL may be fetched.
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	data := r.load(ctx, u)
	if data == nil {
		return true
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return data.TestAgent(p, r.agent)
}

// CrawlDelay is the Crawl-delay the host asks of us, if its robots.txt is
// already cached.
func (r *Robots) CrawlDelay(rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	v, ok := r.cache.Get(cacheKey(u))
	if !ok || v == nil {
		return 0
	}
	data, _ := v.(*robotstxt.RobotsData)
	if data == nil {
		return 0
	}
	if g := data.FindGroup(r.agent); g != nil {
		return min(g.CrawlDelay, maxCrawlDelay)
	}
	return 0
}

func cacheKey(u *url.URL) string { return u.Scheme + "://" + u.Host }

func (r *Robots) load(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := cacheKey(u)
	if v, ok := r.cache.Get(key); ok {
		data, _ := v.(*robotstxt.RobotsData)
		return data
	}

	data, err := r.fetch(ctx, key+"/robots.txt")
	if err != nil {
		zap.L().Debug("source: robots.txt unavailable, allowing",
			zap.String("host", u.Host),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return nil
		}
	}
	r.cache.SetDefault(key, data)
	return data
}

func (r *Robots) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		return nil, err
	}
	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}

// productToken turns "Mozilla/5.0 (compatible; hunter/1.0)" into "hunter"
// and "hunter/1.0" into "hunter".
func productToken(ua string) string {
	if i := strings.LastIndex(ua, ";"); i >= 0 {
		ua = ua[i+1:]
	}
	f := strings.FieldsFunc(ua, func(r rune) bool {
		return r == '/' || r == ' ' || r == '(' || r == ')'
	})
	if len(f) == 0 {
		return "*"
	}
	return f[0]
}
