package source

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/pkg/jina"
)

// BrowserAdapter renders the listing and each article remotely through the
// Jina reader, for sites that only build their pages in the browser.
type BrowserAdapter struct {
	base
	cfg    model.BrowserScrapeConfig
	client jina.Client
	links  *linkFilter
}

var markdownLink = regexp.MustCompile(`\]\((https?://[^)\s]+)`)

// Fetch reads up to MaxArticles linked articles.
func (a *BrowserAdapter) Fetch(ctx context.Context) ([]model.FetchedArticle, error) {
	if !a.allowed(ctx, a.cfg.ListingURL) {
		return nil, eris.Errorf("source %s: robots.txt disallows %s", a.name, a.cfg.ListingURL)
	}

	listCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	resp, err := a.client.Read(listCtx, a.cfg.ListingURL, jina.WithLinksSummary(), jina.WithTimeout(a.opts.FetchTimeout))
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, eris.Wrapf(err, "source %s: render listing", a.name)
	}

	links := a.links.pick(renderedLinks(resp.Data), a.opts.MaxArticles)
	zap.L().Debug("source: rendered listing links",
		zap.String("source", a.name),
		zap.Int("kept", len(links)),
	)

	var out []model.FetchedArticle
	for i, link := range links {
		if !a.allowed(ctx, link) {
			zap.L().Debug("source: robots.txt disallows", zap.String("url", link))
			continue
		}
		if err := a.pause(ctx, i, link); err != nil {
			return nil, err
		}

		art, ok := a.article(ctx, link)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ok {
			out = append(out, art)
		}
	}
	return out, nil
}

func (a *BrowserAdapter) article(ctx context.Context, link string) (model.FetchedArticle, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	resp, err := a.client.Read(fetchCtx, link, jina.WithTimeout(a.opts.FetchTimeout))
	if err != nil {
		zap.L().Warn("source: article render failed",
			zap.String("source", a.name),
			zap.String("url", link),
			zap.Error(err),
		)
		return model.FetchedArticle{}, false
	}
	content := strings.TrimSpace(resp.Data.Content)
	if !longEnough(content, a.opts.MinContentLength) {
		zap.L().Debug("source: article below content floor",
			zap.String("source", a.name),
			zap.String("url", link),
		)
		return model.FetchedArticle{}, false
	}

	art := model.FetchedArticle{
		Title:   strings.TrimSpace(resp.Data.Title),
		Content: content,
		URL:     link,
	}
	if t, err := time.Parse(time.RFC3339, resp.Data.PublishedTime); err == nil {
		t = t.UTC()
		art.PublishedAt = &t
	}
	return art, true
}

// renderedLinks lists markdown links in page order, then any summary links
// the markdown did not contain, sorted for a stable order.
func renderedLinks(d jina.ReadData) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range markdownLink.FindAllStringSubmatch(d.Content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}

	var extra []string
	for _, u := range d.Links {
		if !seen[u] {
			seen[u] = true
			extra = append(extra, u)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
