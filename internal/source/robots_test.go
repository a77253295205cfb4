package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRobots_Rules(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write([]byte("User-agent: hunter\nDisallow: /members\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"))
	}))
	defer srv.Close()

	r := NewRobots("Mozilla/5.0 (compatible; hunter/1.0)", time.Second)
	ctx := context.Background()

	assert.True(t, r.Allowed(ctx, srv.URL+"/news/a"))
	assert.False(t, r.Allowed(ctx, srv.URL+"/members/list"))
	assert.Equal(t, 2*time.Second, r.CrawlDelay(srv.URL+"/news/a"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestRobots_MissingFileAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r := NewRobots("hunter/1.0", time.Second)
	assert.True(t, r.Allowed(context.Background(), srv.URL+"/anything"))
	assert.Equal(t, time.Duration(0), r.CrawlDelay(srv.URL+"/anything"))
}

func TestRobots_UnreachableAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	r := NewRobots("hunter/1.0", 200*time.Millisecond)
	assert.True(t, r.Allowed(context.Background(), srv.URL+"/a"))
	assert.False(t, r.Allowed(context.Background(), "not a url"))
}

func TestProductToken(t *testing.T) {
	tests := map[string]string{
		"Mozilla/5.0 (compatible; hunter/1.0)": "hunter",
		"hunter/1.0":                           "hunter",
		"hunter":                               "hunter",
		"":                                     "*",
	}
	for in, want := range tests {
		assert.Equal(t, want, productToken(in), in)
	}
}
