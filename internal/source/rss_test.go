package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hunter/internal/model"
)

func rssFeed(base string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel><title>Biz Journal</title>
<item>
  <title>Bluebird Tacos signs lease</title>
  <link>%[1]s/news/bluebird</link>
  <pubDate>Tue, 03 Mar 2026 10:00:00 +0000</pubDate>
  <description>teaser</description>
  <content:encoded><![CDATA[<p>%[2]s</p>]]></content:encoded>
</item>
<item><title>Dead link</title><link>%[1]s/news/missing</link><description>Too short.</description></item>
<item><title>Teaser only</title><link>%[1]s/news/full</link><description>Brief teaser.</description></item>
</channel></rss>`, base, articleBody)
}

func newFeedServer(t *testing.T, feed func(base string) string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var feedHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed":
			feedHits.Add(1)
			if r.Header.Get("If-None-Match") == `"v1"` {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("ETag", `"v1"`)
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(feed("http://" + r.Host)))
		case "/news/full":
			_, _ = w.Write([]byte(articlePage("Full story")))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &feedHits
}

func newRSS(t *testing.T, feedURL string, fullText bool, maxArticles int) Adapter {
	t.Helper()
	a, err := New(model.Source{
		Name:        "biz-journal",
		Kind:        model.SourceRSS,
		MaxArticles: maxArticles,
		RSS:         &model.RSSConfig{FeedURL: feedURL, FetchFullText: fullText},
	}, testDeps())
	require.NoError(t, err)
	return a
}

func TestRSSAdapter_Fetch(t *testing.T) {
	srv, _ := newFeedServer(t, rssFeed)

	arts, err := newRSS(t, srv.URL+"/feed", true, 0).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, arts, 2)

	assert.Equal(t, "Bluebird Tacos signs lease", arts[0].Title)
	assert.Equal(t, srv.URL+"/news/bluebird", arts[0].URL)
	assert.Contains(t, arts[0].Content, "second Austin location")
	require.NotNil(t, arts[0].PublishedAt)
	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), *arts[0].PublishedAt)

	assert.Equal(t, "Teaser only", arts[1].Title)
	assert.Equal(t, srv.URL+"/news/full", arts[1].URL)
	assert.Contains(t, arts[1].Content, "three more in Texas")
	assert.NotContains(t, arts[1].Content, "Menu")
	assert.Nil(t, arts[1].PublishedAt)
}

func TestRSSAdapter_NoFullText(t *testing.T) {
	srv, _ := newFeedServer(t, rssFeed)

	arts, err := newRSS(t, srv.URL+"/feed", false, 0).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "Bluebird Tacos signs lease", arts[0].Title)
}

func TestRSSAdapter_MaxArticles(t *testing.T) {
	srv, _ := newFeedServer(t, rssFeed)

	arts, err := newRSS(t, srv.URL+"/feed", true, 1).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, srv.URL+"/news/bluebird", arts[0].URL)
}

func TestRSSAdapter_UnchangedFeed(t *testing.T) {
	srv, hits := newFeedServer(t, rssFeed)
	a := newRSS(t, srv.URL+"/feed", false, 0)

	first, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRSSAdapter_Atom(t *testing.T) {
	srv, _ := newFeedServer(t, func(base string) string {
		return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:media="http://search.yahoo.com/mrss/">
<title>Openings</title>
<entry>
  <title>Harbor Grill opens in Tampa</title>
  <link rel="alternate" href="%[1]s/news/harbor"/>
  <link rel="enclosure" href="%[1]s/img.jpg"/>
  <id>tag:example.com,2026:1</id>
  <published>2026-02-01T08:30:00-05:00</published>
  <media:content url="%[1]s/img.jpg"/>
  <content type="html">&lt;p&gt;%[2]s&lt;/p&gt;</content>
</entry>
</feed>`, base, articleBody)
	})

	arts, err := newRSS(t, srv.URL+"/feed", false, 0).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "Harbor Grill opens in Tampa", arts[0].Title)
	assert.Equal(t, srv.URL+"/news/harbor", arts[0].URL)
	assert.Contains(t, arts[0].Content, "Bluebird Tacos signed a lease")
	assert.NotContains(t, arts[0].Content, "<p>")
	require.NotNil(t, arts[0].PublishedAt)
	assert.Equal(t, time.Date(2026, 2, 1, 13, 30, 0, 0, time.UTC), *arts[0].PublishedAt)
}

func TestRSSAdapter_Latin1Feed(t *testing.T) {
	body := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><rss><channel><item><title>Caf\xe9 Ol\xe9 expands</title><link>http://x.example.com/a</link><description>" + articleBody + "</description></item></channel></rss>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	arts, err := newRSS(t, srv.URL, false, 0).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "Café Olé expands", arts[0].Title)
}

func TestRSSAdapter_FeedErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"status", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }, "fetch feed"},
		{"malformed", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<rss><channel><item><title>broken`))
		}, "parse feed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newRSS(t, srv.URL, false, 0).Fetch(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFeedItem_Link(t *testing.T) {
	assert.Equal(t, "https://a.example.com/x", feedItem{Links: []feedLink{{Text: " https://a.example.com/x "}}}.link())
	assert.Equal(t, "https://a.example.com/g", feedItem{GUID: "https://a.example.com/g"}.link())
	assert.Equal(t, "", feedItem{GUID: "1234"}.link())
}
