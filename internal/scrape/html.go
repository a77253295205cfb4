package scrape

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is the text view of an HTML page.
type Document struct {
	Title string
	Text  string
	// Links are absolute http(s) hrefs in document order, fragments dropped.
	Links []string
}

// skipped elements never contribute text, though their links are kept.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Aside:    true,
	atom.Form:     true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Template: true,
}

// block elements end the current line.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Article: true, atom.Section: true, atom.Main: true, atom.Blockquote: true,
	atom.Tr: true, atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Pre: true,
	atom.Figcaption: true, atom.Dd: true, atom.Dt: true, atom.Hr: true,
}

// ParseHTML parses body and collects its title, readable text and links.
// base resolves relative links; a nil base keeps only absolute ones.
func ParseHTML(body []byte, base *url.URL) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	var text strings.Builder
	seen := make(map[string]bool)

	var walk func(n *html.Node, visible bool)
	walk = func(n *html.Node, visible bool) {
		switch n.Type {
		case html.TextNode:
			if visible {
				text.WriteString(lineBreaks.Replace(n.Data))
			}
			return
		case html.ElementNode:
			if n.DataAtom == atom.Title {
				if doc.Title == "" {
					doc.Title = collapse(nodeText(n))
				}
				return
			}
			if n.DataAtom == atom.A {
				if link := resolve(base, attr(n, "href")); link != "" && !seen[link] {
					seen[link] = true
					doc.Links = append(doc.Links, link)
				}
			}
			if skipped[n.DataAtom] {
				visible = false
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, visible)
		}
		if visible && n.Type == html.ElementNode && block[n.DataAtom] {
			text.WriteByte('\n')
		}
	}
	walk(root, true)

	doc.Text = tidy(text.String())
	return doc, nil
}

// HTMLToText returns the readable text of an HTML fragment, such as an RSS
// description. Plain text passes through with whitespace tidied.
func HTMLToText(s string) string {
	doc, err := ParseHTML([]byte(s), nil)
	if err != nil {
		return tidy(s)
	}
	return doc.Text
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// tidy collapses runs of spaces within lines and keeps at most one blank
// line between paragraphs.
func tidy(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = collapse(line)
		if line == "" {
			if len(out) > 0 && !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
