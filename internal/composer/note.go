package composer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/nhle/mailtask/internal/model"
)

// notePolicy admits only the tracker's rich-text subset: no paragraph,
// line-break, div or span tags.
var notePolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("strong", "em", "u", "s", "code", "ol", "ul", "li", "blockquote", "a")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	return p
}()

// BuildNote assembles the rich-text note from the enabled sections, in
// order: sender, date, back-link, quoted body. A section appears only when
// its toggle is on and it has data. Sender and date belong to the quoted
// message, so they follow the body toggle.
func BuildNote(email model.EmailContext, d model.TaskDraft) string {
	var sections []string

	if d.IncludeBody {
		if email.Sender != "" {
			sections = append(sections, "<strong>From:</strong> "+html.EscapeString(email.Sender))
		}
		if email.Date != "" {
			sections = append(sections, "<strong>Date:</strong> "+html.EscapeString(email.Date))
		}
	}
	if d.IncludeLink && email.EmailURL != "" {
		sections = append(sections, `<a href="`+html.EscapeString(email.EmailURL)+`">View in mail</a>`)
	}
	if d.IncludeBody && strings.TrimSpace(email.Body) != "" {
		sections = append(sections, "<blockquote>"+html.EscapeString(email.Body)+"</blockquote>")
	}

	return "<body>" + notePolicy.Sanitize(strings.Join(sections, "\n")) + "</body>"
}
