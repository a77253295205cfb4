// Package scrape turns article pages into plain text, trying a direct HTTP
// fetch first and falling back to the Jina remote reader.
package scrape

import (
	"context"

	"github.com/sells-group/hunter/internal/model"
)

// Result is a scraped page and the scraper that produced it.
type Result struct {
	Page   model.CrawledPage
	Source string
}

// Scraper fetches a single URL and returns its text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
