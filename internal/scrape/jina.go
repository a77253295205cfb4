package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/resilience"
	"github.com/sells-group/hunter/pkg/jina"
)

// JinaScraper reads pages through the Jina remote reader. Three failures in
// a row stop it for a minute.
type JinaScraper struct {
	client  jina.Client
	breaker *resilience.Breaker
}

// NewJinaScraper wraps client.
func NewJinaScraper(client jina.Client) *JinaScraper {
	return &JinaScraper{
		client:  client,
		breaker: resilience.NewBreaker("jina", resilience.BreakerConfig{Threshold: 3, Cooldown: time.Minute}),
	}
}

func (j *JinaScraper) Name() string { return "jina" }

// Supports is false while the breaker is open.
func (j *JinaScraper) Supports(string) bool {
	return j.breaker.State() != resilience.Open
}

// Scrape reads targetURL and rejects empty or challenge responses.
func (j *JinaScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	return resilience.Call(ctx, j.breaker, func(ctx context.Context) (*Result, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.Errorf("jina: unusable response for %s", targetURL)
		}
		pageURL := resp.Data.URL
		if pageURL == "" {
			pageURL = targetURL
		}
		return &Result{
			Page: model.CrawledPage{
				URL:        pageURL,
				Title:      resp.Data.Title,
				Markdown:   resp.Data.Content,
				StatusCode: resp.Code,
			},
			Source: j.Name(),
		}, nil
	})
}

var challengeText = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
}

// needsFallback reports whether a Jina response is too short or is a
// challenge page instead of content.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}
	if len(content) >= 1000 {
		return false
	}
	lower := strings.ToLower(content)
	for _, sig := range challengeText {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
