package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/resilience"
)

const maxPageBytes = 2 << 20

// LocalScraper fetches pages directly and converts them to text. Hosts that
// keep failing are skipped for a while so the chain goes straight to the
// next scraper.
type LocalScraper struct {
	client    *http.Client
	userAgent string
	hosts     *resilience.Breakers
}

// NewLocalScraper returns a scraper that sends userAgent and gives up on a
// page after timeout.
func NewLocalScraper(userAgent string, timeout time.Duration) *LocalScraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if userAgent == "" {
		userAgent = "hunter/1.0"
	}
	return &LocalScraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
		userAgent: userAgent,
		hosts:     resilience.NewBreakers(resilience.BreakerConfig{Threshold: 3, Cooldown: 5 * time.Minute}),
	}
}

func (l *LocalScraper) Name() string { return "local_http" }

// Supports is false once the URL's host has tripped its breaker.
func (l *LocalScraper) Supports(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return l.hosts.For(u.Host).State() != resilience.Open
}

// Scrape downloads rawURL and returns its text. Interstitials, error
// statuses and near-empty pages are errors.
func (l *LocalScraper) Scrape(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "local_http: parse %s", rawURL)
	}
	return resilience.Call(ctx, l.hosts.For(u.Host), func(ctx context.Context) (*Result, error) {
		return l.fetch(ctx, u)
	})
}

func (l *LocalScraper) fetch(ctx context.Context, u *url.URL) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if bt := DetectBlock(resp, body); bt != BlockNone {
		return nil, eris.Errorf("local_http: blocked (%s) %s", bt, u)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d %s", resp.StatusCode, u)
	}

	doc, err := ParseHTML(body, resp.Request.URL)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse html")
	}
	if len(doc.Text) < 100 {
		return nil, eris.Errorf("local_http: empty page %s", u)
	}

	return &Result{
		Page: model.CrawledPage{
			URL:        resp.Request.URL.String(),
			Title:      doc.Title,
			Markdown:   doc.Text,
			StatusCode: resp.StatusCode,
		},
		Source: l.Name(),
	}, nil
}
