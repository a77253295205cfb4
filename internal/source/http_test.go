package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/scrape"
	"github.com/sells-group/hunter/pkg/jina"
	jinamocks "github.com/sells-group/hunter/pkg/jina/mocks"
)

const listingPage = `<html><body>
<nav><a href="/news/">News</a></nav>
<ul>
<li><a href="/news/2026/bluebird-lease">Bluebird</a></li>
<li><a href="/news/2026/bluebird-lease#comments">comments</a></li>
<li><a href="/news/2026/harbor-grill">Harbor</a></li>
<li><a href="/news/2026/stub">Stub</a></li>
<li><a href="/news/2026/blocked">Blocked</a></li>
<li><a href="/video/2026/tour">Video</a></li>
<li><a href="https://elsewhere.example.com/news/2026/x">Elsewhere</a></li>
<li><a href="/about">About</a></li>
</ul></body></html>`

func newListingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
		case "/news", "/private/news":
			_, _ = w.Write([]byte(listingPage))
		case "/news/2026/bluebird-lease":
			_, _ = w.Write([]byte(articlePage("Bluebird lease")))
		case "/news/2026/harbor-grill":
			_, _ = w.Write([]byte(articlePage("Harbor Grill")))
		case "/news/2026/stub":
			_, _ = w.Write([]byte(`<html><body><p>Coming soon.</p></body></html>`))
		case "/news/2026/blocked":
			w.Header().Set("Cf-Ray", "1")
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newHTTPSource(t *testing.T, listing string, deps Deps) Adapter {
	t.Helper()
	a, err := New(model.Source{
		Name: "city-news",
		Kind: model.SourceHTTPScrape,
		HTTP: &model.HTTPScrapeConfig{
			ListingURL:   listing,
			LinkPattern:  `/news/\d{4}/`,
			ExcludePaths: []string{"/video/*"},
		},
	}, deps)
	require.NoError(t, err)
	return a
}

func TestHTTPAdapter_Fetch(t *testing.T) {
	srv := newListingServer(t)

	arts, err := newHTTPSource(t, srv.URL+"/news", testDeps()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, arts, 2)

	assert.Equal(t, srv.URL+"/news/2026/bluebird-lease", arts[0].URL)
	assert.Equal(t, "Bluebird lease", arts[0].Title)
	assert.Contains(t, arts[0].Content, "second Austin location")
	assert.NotContains(t, arts[0].Content, "Menu")
	assert.Equal(t, srv.URL+"/news/2026/harbor-grill", arts[1].URL)
}

func TestHTTPAdapter_JinaFallback(t *testing.T) {
	srv := newListingServer(t)
	blocked := srv.URL + "/news/2026/blocked"

	client := jinamocks.NewMockClient(t)
	client.On("Read", mock.Anything, blocked).Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Title: "Blocked story", URL: blocked, Content: articleBody},
	}, nil).Once()
	client.On("Read", mock.Anything, mock.Anything).Return(nil, errors.New("jina: status 422"))

	deps := testDeps()
	deps.Scrapers = append(deps.Scrapers, scrape.NewJinaScraper(client))

	arts, err := newHTTPSource(t, srv.URL+"/news", deps).Fetch(context.Background())
	require.NoError(t, err)

	var urls []string
	for _, a := range arts {
		urls = append(urls, a.URL)
	}
	assert.Equal(t, []string{
		srv.URL + "/news/2026/bluebird-lease",
		srv.URL + "/news/2026/harbor-grill",
		blocked,
	}, urls)
	assert.Equal(t, "Blocked story", arts[2].Title)
}

func TestHTTPAdapter_MaxArticles(t *testing.T) {
	srv := newListingServer(t)
	deps := testDeps()
	deps.Options.MaxArticles = 1

	arts, err := newHTTPSource(t, srv.URL+"/news", deps).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, srv.URL+"/news/2026/bluebird-lease", arts[0].URL)
}

func TestHTTPAdapter_ListingUnreachable(t *testing.T) {
	srv := newListingServer(t)

	_, err := newHTTPSource(t, srv.URL+"/nope", testDeps()).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch listing")
}

func TestHTTPAdapter_RobotsDisallowsListing(t *testing.T) {
	srv := newListingServer(t)
	deps := testDeps()
	deps.Robots = NewRobots("hunter-test", time.Second)

	_, err := newHTTPSource(t, srv.URL+"/private/news", deps).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "robots.txt disallows")

	arts, err := newHTTPSource(t, srv.URL+"/news", deps).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, arts, 2)
}

func TestHTTPAdapter_Cancelled(t *testing.T) {
	srv := newListingServer(t)
	deps := testDeps()
	deps.Throttle = NewThrottle(time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	_, err := newHTTPSource(t, srv.URL+"/news", deps).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
