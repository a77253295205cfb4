package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries scrapers in order and returns the first success.
type Chain struct {
	matcher  *PathMatcher
	scrapers []Scraper
}

// NewChain builds a chain. A nil matcher excludes nothing.
func NewChain(matcher *PathMatcher, scrapers ...Scraper) *Chain {
	return &Chain{matcher: matcher, scrapers: scrapers}
}

// Scrape returns the first scraper's result that succeeds for targetURL.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if c.matcher.IsExcluded(targetURL) {
		return nil, eris.Errorf("scrape: excluded url %s", targetURL)
	}

	var lastErr error
	for _, s := range c.scrapers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.Supports(targetURL) {
			continue
		}
		res, err := s.Scrape(ctx, targetURL)
		if err == nil && res != nil {
			return res, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrapf(lastErr, "scrape: all scrapers failed for %s", targetURL)
	}
	return nil, eris.Errorf("scrape: no scraper supports %s", targetURL)
}
