package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hunter/internal/model"
)

type fakeScraper struct {
	name     string
	supports bool
	result   *Result
	err      error
	calls    int
}

func (f *fakeScraper) Name() string           { return f.name }
func (f *fakeScraper) Supports(_ string) bool { return f.supports }
func (f *fakeScraper) Scrape(_ context.Context, _ string) (*Result, error) {
	f.calls++
	return f.result, f.err
}

func page(src string) *Result {
	return &Result{Page: model.CrawledPage{URL: "https://x.com/a", Markdown: "text"}, Source: src}
}

func TestChain_FirstSuccessWins(t *testing.T) {
	a := &fakeScraper{name: "a", supports: true, result: page("a")}
	b := &fakeScraper{name: "b", supports: true, result: page("b")}

	res, err := NewChain(nil, a, b).Scrape(context.Background(), "https://x.com/a")
	require.NoError(t, err)
	assert.Equal(t, "a", res.Source)
	assert.Equal(t, 0, b.calls)
}

func TestChain_FallsBack(t *testing.T) {
	a := &fakeScraper{name: "a", supports: true, err: errors.New("blocked")}
	skip := &fakeScraper{name: "skip", supports: false, result: page("skip")}
	b := &fakeScraper{name: "b", supports: true, result: page("b")}

	res, err := NewChain(nil, a, skip, b).Scrape(context.Background(), "https://x.com/a")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Source)
	assert.Equal(t, 0, skip.calls)
}

func TestChain_AllFail(t *testing.T) {
	a := &fakeScraper{name: "a", supports: true, err: errors.New("first")}
	b := &fakeScraper{name: "b", supports: true, err: errors.New("second")}

	_, err := NewChain(nil, a, b).Scrape(context.Background(), "https://x.com/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second")
	assert.Contains(t, err.Error(), "all scrapers failed")
}

func TestChain_NoneSupport(t *testing.T) {
	_, err := NewChain(nil, &fakeScraper{name: "a"}).Scrape(context.Background(), "https://x.com/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scraper supports")
}

func TestChain_Excluded(t *testing.T) {
	a := &fakeScraper{name: "a", supports: true, result: page("a")}

	_, err := NewChain(NewPathMatcher([]string{"/video/*"}), a).Scrape(context.Background(), "https://x.com/video/1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excluded")
	assert.Equal(t, 0, a.calls)
}

func TestChain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := &fakeScraper{name: "a", supports: true, result: page("a")}

	_, err := NewChain(nil, a).Scrape(ctx, "https://x.com/a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.calls)
}
