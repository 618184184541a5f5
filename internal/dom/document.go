package dom

import (
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parse reads an HTML snapshot of the host page.
func Parse(r io.Reader, pageURL string) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing page snapshot: %w", err)
	}
	return FromNode(root, pageURL), nil
}

// FromNode wraps an already parsed tree. A malformed pageURL leaves the
// document without a URL, which disables permalink and link resolution.
func FromNode(root *html.Node, pageURL string) *goquery.Document {
	doc := goquery.NewDocumentFromNode(root)
	if u, err := url.Parse(pageURL); err == nil && pageURL != "" {
		doc.Url = u
	}
	return doc
}
