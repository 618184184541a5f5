// Package dom reads the host webmail page and rebuilds the conversation
// it displays. Every lookup is a cascade of independent probes tried in
// order; the first non-empty answer wins.
package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Probe inspects a subtree and reports a value when it finds one.
type Probe func(scope *goquery.Selection) (string, bool)

// Cascade is an ordered list of probes.
type Cascade []Probe

// First returns the first non-empty probe result, or "".
func (c Cascade) First(scope *goquery.Selection) string {
	for _, p := range c {
		if v, ok := p(scope); ok && v != "" {
			return v
		}
	}
	return ""
}

// FirstRef is First for reference fields: nil when nothing matched.
func (c Cascade) FirstRef(scope *goquery.Selection) *string {
	if v := c.First(scope); v != "" {
		return &v
	}
	return nil
}

// Text matches the first element under selector with non-empty text.
func Text(selector string) Probe {
	return func(scope *goquery.Selection) (string, bool) {
		var out string
		scope.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = collapseSpace(s.Text())
			return out == ""
		})
		return out, out != ""
	}
}

// BlockText is Text but keeps line structure, for message bodies.
func BlockText(selector string) Probe {
	return func(scope *goquery.Selection) (string, bool) {
		var out string
		scope.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = NodeText(s.Nodes[0])
			return out == ""
		})
		return out, out != ""
	}
}

// Attr matches the first element under selector carrying a non-empty attr.
func Attr(selector, attr string) Probe {
	return func(scope *goquery.Selection) (string, bool) {
		var out string
		scope.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr(attr)
			out = strings.TrimSpace(v)
			return out == ""
		})
		return out, out != ""
	}
}

// SelfAttr reads attr from the scope element itself.
func SelfAttr(attr string) Probe {
	return func(scope *goquery.Selection) (string, bool) {
		v, ok := scope.Attr(attr)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

// Map post-processes the value of p; an empty result counts as a miss.
func Map(p Probe, fn func(string) string) Probe {
	return func(scope *goquery.Selection) (string, bool) {
		v, ok := p(scope)
		if !ok {
			return "", false
		}
		v = fn(v)
		return v, v != ""
	}
}

// Present reports whether any selector matches under scope.
func Present(scope *goquery.Selection, selectors ...string) bool {
	for _, sel := range selectors {
		if scope.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
