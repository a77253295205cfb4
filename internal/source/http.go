package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/fetcher"
	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/scrape"
)

// HTTPAdapter reads a listing page over plain HTTP and scrapes the article
// links it finds, falling back to the remote reader when a page blocks us.
type HTTPAdapter struct {
	base
	cfg     model.HTTPScrapeConfig
	fetcher fetcher.Fetcher
	chain   *scrape.Chain
	links   *linkFilter
}

// Fetch scrapes up to MaxArticles linked articles.
func (a *HTTPAdapter) Fetch(ctx context.Context) ([]model.FetchedArticle, error) {
	if !a.allowed(ctx, a.cfg.ListingURL) {
		return nil, eris.Errorf("source %s: robots.txt disallows %s", a.name, a.cfg.ListingURL)
	}

	listCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	body, err := fetcher.ReadAll(listCtx, a.fetcher, a.cfg.ListingURL)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, eris.Wrapf(err, "source %s: fetch listing", a.name)
	}

	doc, err := scrape.ParseHTML(body, a.links.listing)
	if err != nil {
		return nil, eris.Wrapf(err, "source %s: parse listing", a.name)
	}
	links := a.links.pick(doc.Links, a.opts.MaxArticles)
	zap.L().Debug("source: listing links",
		zap.String("source", a.name),
		zap.Int("found", len(doc.Links)),
		zap.Int("kept", len(links)),
	)

	var out []model.FetchedArticle
	fetched := 0
	for _, link := range links {
		if !a.allowed(ctx, link) {
			zap.L().Debug("source: robots.txt disallows", zap.String("url", link))
			continue
		}
		if err := a.pause(ctx, fetched, link); err != nil {
			return nil, err
		}
		fetched++

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

func (a *HTTPAdapter) article(ctx context.Context, link string) (model.FetchedArticle, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	res, err := a.chain.Scrape(fetchCtx, link)
	if err != nil {
		zap.L().Warn("source: article scrape failed",
			zap.String("source", a.name),
			zap.String("url", link),
			zap.Error(err),
		)
		return model.FetchedArticle{}, false
	}
	if !longEnough(res.Page.Markdown, a.opts.MinContentLength) {
		zap.L().Debug("source: article below content floor",
			zap.String("source", a.name),
			zap.String("url", link),
		)
		return model.FetchedArticle{}, false
	}

	return model.FetchedArticle{
		Title:   res.Page.Title,
		Content: res.Page.Markdown,
		URL:     link,
	}, true
}
