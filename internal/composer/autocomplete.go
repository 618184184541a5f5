package composer

import (
	"strings"
	"unicode/utf8"
)

// Filter keeps the items whose label contains query, case-insensitively,
// preserving order. An empty query keeps everything.
func Filter[T any](items []T, label func(T) string, query string) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]T(nil), items...)
	}
	var out []T
	for _, it := range items {
		if strings.Contains(strings.ToLower(label(it)), q) {
			out = append(out, it)
		}
	}
	return out
}

// Span is a run of a label, marked when it matched the query.
type Span struct {
	Text  string
	Match bool
}

// Highlight splits label around every case-insensitive occurrence of query.
func Highlight(label, query string) []Span {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Span{{Text: label}}
	}
	lower := strings.ToLower(label)
	// Lowercasing can change byte lengths for some scripts; fall back to
	// no highlight rather than slicing at a wrong offset.
	if len(lower) != len(label) {
		return []Span{{Text: label}}
	}

	var spans []Span
	rest := 0
	for {
		i := strings.Index(lower[rest:], q)
		if i < 0 {
			break
		}
		start := rest + i
		end := start + len(q)
		if start > rest {
			spans = append(spans, Span{Text: label[rest:start]})
		}
		spans = append(spans, Span{Text: label[start:end], Match: true})
		rest = end
	}
	if rest < len(label) {
		spans = append(spans, Span{Text: label[rest:]})
	}
	if len(spans) == 0 {
		return []Span{{Text: label}}
	}
	return spans
}

// Cursor tracks the highlighted row of a suggestion list.
type Cursor struct {
	pos int
	n   int
}

// Reset points the cursor at the first of n rows.
func (c *Cursor) Reset(n int) {
	c.n = n
	c.pos = 0
}

// Up moves one row up, wrapping to the bottom.
func (c *Cursor) Up() {
	if c.n == 0 {
		return
	}
	c.pos = (c.pos - 1 + c.n) % c.n
}

// Down moves one row down, wrapping to the top.
func (c *Cursor) Down() {
	if c.n == 0 {
		return
	}
	c.pos = (c.pos + 1) % c.n
}

// Index returns the highlighted row, or -1 when the list is empty.
func (c *Cursor) Index() int {
	if c.n == 0 {
		return -1
	}
	return c.pos
}

// MinSearchLength is the shortest task-search query sent to the API.
const MinSearchLength = 3

// searchable reports whether q is long enough to search for.
func searchable(q string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(q)) >= MinSearchLength
}
