package source

import (
	"strings"
	"time"

	"github.com/sells-group/hunter/internal/fetcher"
	"github.com/sells-group/hunter/internal/scrape"
)

var articleBody = strings.Repeat("Bluebird Tacos signed a lease for a second Austin location and plans three more in Texas. ", 3)

func articlePage(title string) string {
	return `<html><head><title>` + title + `</title></head><body><nav>Menu</nav><article><p>` + articleBody + `</p></article></body></html>`
}

func testDeps() Deps {
	return Deps{
		Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:   "hunter-test",
			Timeout:     2 * time.Second,
			MaxRetries:  1,
			HostRate:    1000,
			BackoffBase: time.Millisecond,
		}),
		Scrapers: []scrape.Scraper{scrape.NewLocalScraper("hunter-test", 2*time.Second)},
		Options:  Options{MaxArticles: 10, MinContentLength: 100, FetchTimeout: 2 * time.Second},
	}
}
