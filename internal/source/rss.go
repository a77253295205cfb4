package source

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/fetcher"
	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/scrape"
)

// RSSAdapter reads RSS 2.0 items and Atom entries from a feed. The feed is
// requested conditionally, so an unchanged feed yields no articles.
type RSSAdapter struct {
	base
	cfg     model.RSSConfig
	fetcher fetcher.Fetcher
	chain   *scrape.Chain

	mu   sync.Mutex
	etag string
}

// feedItem covers both <item> and <entry>.
type feedItem struct {
	Title       string        `xml:"title"`
	Links       []feedLink    `xml:"link"`
	GUID        string        `xml:"guid"`
	ID          string        `xml:"id"`
	Encoded     string        `xml:"encoded"`
	Contents    []feedContent `xml:"content"`
	Description string        `xml:"description"`
	Summary     string        `xml:"summary"`
	PubDate     string        `xml:"pubDate"`
	Published   string        `xml:"published"`
	Updated     string        `xml:"updated"`
	Date        string        `xml:"date"`
}

type feedLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Text string `xml:",chardata"`
}

// feedContent is Atom <content>; media:content shares the name but carries
// a url attribute and no body.
type feedContent struct {
	URL  string `xml:"url,attr"`
	Body string `xml:",chardata"`
}

func (it feedItem) link() string {
	for _, l := range it.Links {
		if l.Href != "" && (l.Rel == "" || l.Rel == "alternate") {
			return strings.TrimSpace(l.Href)
		}
	}
	for _, l := range it.Links {
		if t := strings.TrimSpace(l.Text); t != "" {
			return t
		}
	}
	for _, id := range []string{it.GUID, it.ID} {
		if id = strings.TrimSpace(id); strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
			return id
		}
	}
	return ""
}

func (it feedItem) body() string {
	if strings.TrimSpace(it.Encoded) != "" {
		return it.Encoded
	}
	for _, c := range it.Contents {
		if c.URL == "" && strings.TrimSpace(c.Body) != "" {
			return c.Body
		}
	}
	if strings.TrimSpace(it.Description) != "" {
		return it.Description
	}
	return it.Summary
}

var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (it feedItem) published() *time.Time {
	for _, raw := range []string{it.PubDate, it.Published, it.Date, it.Updated} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, layout := range feedDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}

// Fetch reads up to MaxArticles items that meet the content floor.
func (a *RSSAdapter) Fetch(ctx context.Context) ([]model.FetchedArticle, error) {
	a.mu.Lock()
	prev := a.etag
	a.mu.Unlock()

	body, etag, changed, err := a.fetcher.DownloadIfChanged(ctx, a.cfg.FeedURL, prev)
	if err != nil {
		return nil, eris.Wrapf(err, "source %s: fetch feed", a.name)
	}
	if !changed {
		zap.L().Debug("source: feed unchanged", zap.String("source", a.name))
		return nil, nil
	}
	defer body.Close() //nolint:errcheck

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	items, errs := fetcher.StreamXML[feedItem](streamCtx, body, "item", "entry")

	var (
		out      []model.FetchedArticle
		scrapes  int
		complete = true
	)
	for it := range items {
		if len(out) >= a.opts.MaxArticles {
			complete = false
			break
		}
		if art, ok := a.article(ctx, it, &scrapes); ok {
			out = append(out, art)
		}
	}
	cancel()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if complete {
		if err := <-errs; err != nil {
			if len(out) == 0 {
				return nil, eris.Wrapf(err, "source %s: parse feed", a.name)
			}
			zap.L().Warn("source: feed truncated", zap.String("source", a.name), zap.Error(err))
		}
	}

	a.mu.Lock()
	a.etag = etag
	a.mu.Unlock()

	zap.L().Debug("source: feed read",
		zap.String("source", a.name),
		zap.Int("articles", len(out)),
	)
	return out, nil
}

func (a *RSSAdapter) article(ctx context.Context, it feedItem, scrapes *int) (model.FetchedArticle, bool) {
	link := it.link()
	text := scrape.HTMLToText(it.body())

	if !longEnough(text, a.opts.MinContentLength) && a.cfg.FetchFullText && link != "" {
		if full := a.supplement(ctx, link, *scrapes); utf8.RuneCountInString(full) > utf8.RuneCountInString(text) {
			text = full
		}
		*scrapes++
	}
	if !longEnough(text, a.opts.MinContentLength) {
		zap.L().Debug("source: item below content floor",
			zap.String("source", a.name),
			zap.String("url", link),
		)
		return model.FetchedArticle{}, false
	}

	return model.FetchedArticle{
		Title:       strings.Join(strings.Fields(scrape.HTMLToText(it.Title)), " "),
		Content:     text,
		URL:         link,
		PublishedAt: it.published(),
	}, true
}

// supplement scrapes the item link once. Any failure leaves the feed text.
func (a *RSSAdapter) supplement(ctx context.Context, link string, n int) string {
	if !a.allowed(ctx, link) {
		zap.L().Debug("source: robots.txt disallows", zap.String("url", link))
		return ""
	}
	if err := a.pause(ctx, n, link); err != nil {
		return ""
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()
	res, err := a.chain.Scrape(fetchCtx, link)
	if err != nil {
		zap.L().Debug("source: full text scrape failed",
			zap.String("source", a.name),
			zap.String("url", link),
			zap.Error(err),
		)
		return ""
	}
	return res.Page.Markdown
}

func longEnough(text string, floor int) bool {
	return utf8.RuneCountInString(text) >= floor
}
