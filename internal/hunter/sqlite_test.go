package hunter

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hunter/internal/extract"
	"github.com/sells-group/hunter/internal/ingest"
	"github.com/sells-group/hunter/internal/lead"
	"github.com/sells-group/hunter/internal/lock"
	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/store"
)

func TestSQLite_EndToEnd(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "hunter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	feed := &fakeAdapter{name: "austin-biz", articles: []model.FetchedArticle{
		{
			Title:   "Bluebird Tacos to open in Austin",
			URL:     "https://news.example.com/bluebird-austin",
			Content: "Bluebird Tacos plans to open a store in Austin, TX this fall.",
		},
		{
			Title:   "Weekend weather",
			URL:     "https://news.example.com/weather",
			Content: "Rain is expected across the region this weekend.",
		},
		{
			Title:   "Bluebird Tacos signs lease in Miami",
			URL:     "https://news.example.com/bluebird-miami",
			Content: "Bluebird Tacos has signed a lease in Miami, FL. Founder Maria Lopez said permits are filed.",
		},
	}}

	var builds atomic.Int32
	r := New(st,
		ingest.New(st, time.Minute),
		lead.NewManager(st, nil, lock.NewLocal()),
		extract.NewRuleExtractor([]string{"TX"}),
		adapters(&builds, map[string]*fakeAdapter{"austin-biz": feed}),
		Options{},
	)
	src := model.Source{Name: "austin-biz", Kind: model.SourceHTTPScrape}

	res, err := r.RunSource(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ArticlesFetched)
	assert.Equal(t, 3, res.SignalsCreated)
	assert.Equal(t, 3, res.SignalsProcessed)
	assert.Equal(t, 1, res.LeadsCreated)
	assert.Equal(t, 1, res.LeadsMerged)
	assert.Zero(t, res.Errors)

	leads, err := st.ListLeads(ctx, model.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	l := leads[0]
	assert.Equal(t, "Bluebird Tacos", l.ConceptName)
	assert.Equal(t, model.StrengthHot, l.SignalStrength)
	assert.Equal(t, []string{"TX", "FL"}, l.TargetGeography)
	require.NotNil(t, l.KeyPersonName)
	assert.Equal(t, "Maria Lopez", *l.KeyPersonName)
	assert.Equal(t, model.LeadStatusNew, l.Status)

	links, err := st.ListLeadSignals(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	// Same articles again: nothing new to ingest or process.
	res, err = r.RunSource(ctx, src)
	require.NoError(t, err)
	assert.Zero(t, res.SignalsCreated)
	assert.Zero(t, res.SignalsProcessed)

	runs, err := st.ListRuns(ctx, model.RunFilter{Source: "austin-biz"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, model.RunStatusComplete, run.Status)
	}

	unprocessed, err := st.ListUnprocessedSignals(ctx, "austin-biz", 10)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}

// brokenTitles fails extraction for signals whose title starts with
// "Broken" and delegates the rest.
type brokenTitles struct{ extract.Extractor }

func (b brokenTitles) Extract(ctx context.Context, sig model.Signal) (*model.LeadExtraction, *model.ScoringResult, error) {
	if strings.HasPrefix(sig.Title, "Broken") {
		return nil, nil, errors.New("unparseable reply")
	}
	return b.Extractor.Extract(ctx, sig)
}

func TestSQLite_FailingSignalsAreRetiredFromBacklog(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "hunter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	feed := &fakeAdapter{name: "austin-biz", articles: []model.FetchedArticle{
		{Title: "Broken one", URL: "https://news.example.com/broken-1", Content: "Garbled feed entry number one."},
		{Title: "Broken two", URL: "https://news.example.com/broken-2", Content: "Garbled feed entry number two."},
	}}
	var builds atomic.Int32
	r := New(st,
		ingest.New(st, time.Minute),
		lead.NewManager(st, nil, lock.NewLocal()),
		brokenTitles{extract.NewRuleExtractor([]string{"TX"})},
		adapters(&builds, map[string]*fakeAdapter{"austin-biz": feed}),
		Options{BatchSize: 2},
	)
	src := model.Source{Name: "austin-biz", Kind: model.SourceHTTPScrape}

	res, err := r.RunSource(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Errors)

	names := []string{"Redwood Tacos", "Juniper Tacos", "Maple Tacos", "Cedar Tacos", "Aspen Tacos"}
	for _, name := range names {
		slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		feed.articles = []model.FetchedArticle{{
			Title:   name + " to open in Austin",
			URL:     "https://news.example.com/" + slug,
			Content: name + " plans to open a store in Austin, TX this fall.",
		}}
		res, err := r.RunSource(ctx, src)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.SignalsProcessed, 1, name)
	}

	leads, err := st.ListLeads(ctx, model.LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, leads, len(names))

	pending, err := st.ListUnprocessedSignals(ctx, "austin-biz", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
