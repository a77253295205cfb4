package scrape

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!doctype html>
<html><head><title> Bluebird  Tacos expands </title>
<style>.x{color:red}</style><script>var tracking = 1;</script></head>
<body>
<header><a href="/">Home</a></header>
<nav><a href="/news/">News</a> Menu</nav>
<article>
<h1>Bluebird Tacos to open in Austin</h1>
<p>The chain signed a lease &amp; plans to open   this fall.</p>
<p>See <a href="/news/2026/bluebird-2#comments">more</a> and
<a href="https://other.example.org/x">elsewhere</a>.</p>
<a href="mailto:tips@example.com">tips</a>
<a href="javascript:void(0)">share</a>
</article>
<footer>Copyright 2026</footer>
</body></html>`

func TestParseHTML(t *testing.T) {
	base, _ := url.Parse("https://news.example.com/news/2026/bluebird")

	doc, err := ParseHTML([]byte(articleHTML), base)
	require.NoError(t, err)

	assert.Equal(t, "Bluebird Tacos expands", doc.Title)
	assert.Equal(t, "Bluebird Tacos to open in Austin\nThe chain signed a lease & plans to open this fall.\nSee more and elsewhere.\ntips share", doc.Text)
	assert.NotContains(t, doc.Text, "tracking")
	assert.NotContains(t, doc.Text, "Menu")
	assert.NotContains(t, doc.Text, "Copyright")

	assert.Equal(t, []string{
		"https://news.example.com/",
		"https://news.example.com/news/",
		"https://news.example.com/news/2026/bluebird-2",
		"https://other.example.org/x",
	}, doc.Links)
}

func TestParseHTML_NilBaseKeepsAbsolute(t *testing.T) {
	doc, err := ParseHTML([]byte(`<a href="/rel">a</a><a href="https://x.example.com/a">b</a><a href="https://x.example.com/a#top">c</a>`), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.example.com/a"}, doc.Links)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Just   text  ", "Just text"},
		{"fragment", "<p>One</p><p>Two &lt;three&gt;</p>", "One\nTwo <three>"},
		{"nested blocks", "<div><p>One</p></div><div>Two</div>", "One\n\nTwo"},
		{"break", "line<br>next", "line\nnext"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}
