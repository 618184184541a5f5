package dom

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/model"
)

// ScanThread walks the current document and returns the messages it
// renders, in page order. It keeps no state between calls.
func ScanThread(doc *goquery.Document) []model.ThreadMessage {
	var msgs []model.ThreadMessage
	outermost(doc.Find(SelMessage)).Each(func(_ int, s *goquery.Selection) {
		m, ok := scanMessage(doc, s)
		if !ok {
			return
		}
		m.Index = len(msgs)
		msgs = append(msgs, m)
	})
	return msgs
}

// ExtractActiveContext builds the composer input. A trigger inside a
// message scopes every lookup to that message; otherwise the whole
// thread is used with the latest rendered body.
func ExtractActiveContext(doc *goquery.Document, trigger *html.Node) model.EmailContext {
	ctx := model.EmailContext{
		Subject:  subjectCascade.First(doc.Selection),
		EmailURL: permalink(doc),
	}

	if scope := messageScope(doc, trigger); scope != nil {
		if m, ok := scanMessage(doc, scope); ok {
			fillFromMessage(&ctx, m)
			ctx.OriginalURL = originalURL(doc, scope, m.MessageID)
			return ctx
		}
	}

	msgs := ScanThread(doc)
	for _, m := range msgs {
		ctx.Attachments = append(ctx.Attachments, m.Attachments...)
	}
	if latest, ok := latestRendered(msgs); ok {
		ctx.Sender = latest.Sender
		ctx.Date = latest.Date
		ctx.Body = latest.Body
		ctx.MessageID = latest.MessageID
		scope := findMessage(doc, latest.MessageID)
		ctx.OriginalURL = originalURL(doc, scope, latest.MessageID)
	}
	return ctx
}

func fillFromMessage(ctx *model.EmailContext, m model.ThreadMessage) {
	ctx.Sender = m.Sender
	ctx.Date = m.Date
	ctx.Body = m.Body
	ctx.Attachments = m.Attachments
	ctx.MessageID = m.MessageID
}

// scanMessage classifies one container. Containers with neither a body
// nor header markers are not messages.
func scanMessage(doc *goquery.Document, s *goquery.Selection) (model.ThreadMessage, bool) {
	hasBody := Present(s, bodySelectors...)
	if !hasBody && !Present(s, headerSelectors...) {
		return model.ThreadMessage{}, false
	}

	m := model.ThreadMessage{
		Sender:    senderOf(s),
		Date:      dateCascade.First(s),
		Expanded:  hasBody,
		MessageID: messageIDCascade.FirstRef(s),
	}
	if hasBody {
		m.Body = bodyCascade.First(s)
		m.Attachments = attachmentsOf(doc, s)
	} else if hint := attachmentHintCascade.First(s); hint != "" {
		m.Attachments = []model.Attachment{{Name: hint, IsPlaceholder: true}}
	}
	return m, true
}

// senderOf formats "Name <addr>" when both parts are known.
func senderOf(s *goquery.Selection) string {
	addr := senderEmailCascade.First(s)
	name := senderNameCascade.First(s)
	switch {
	case name != "" && addr != "" && !strings.EqualFold(name, addr):
		return name + " <" + addr + ">"
	case addr != "":
		return addr
	default:
		return name
	}
}

// attachmentsOf collects real attachment tiles, first name wins.
func attachmentsOf(doc *goquery.Document, s *goquery.Selection) []model.Attachment {
	var out []model.Attachment
	seen := make(map[string]bool)
	s.Find(selAttachment).Each(func(_ int, tile *goquery.Selection) {
		name := attachmentNameCascade.First(tile)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, model.Attachment{
			Name: name,
			URL:  resolve(doc, attachmentURLCascade.FirstRef(tile)),
			Size: attachmentSizeCascade.First(tile),
		})
	})
	return out
}

func latestRendered(msgs []model.ThreadMessage) (model.ThreadMessage, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Expanded {
			return msgs[i], true
		}
	}
	return model.ThreadMessage{}, false
}

// messageScope finds the message container holding trigger.
func messageScope(doc *goquery.Document, trigger *html.Node) *goquery.Selection {
	if trigger == nil {
		return nil
	}
	sel := doc.FindNodes(trigger)
	if sel.Length() == 0 {
		return nil
	}
	return ContainerOf(sel)
}

// ContainerOf returns the outermost message container holding s, or nil.
func ContainerOf(s *goquery.Selection) *goquery.Selection {
	var scope *goquery.Selection
	if s.Is(SelMessage) {
		scope = s
	} else {
		scope = s.Closest(SelMessage)
	}
	if scope.Length() == 0 {
		return nil
	}
	// Nested markers: widen to the outermost container.
	if outer := scope.ParentsFiltered(SelMessage).Last(); outer.Length() > 0 {
		scope = outer
	}
	return scope
}

func findMessage(doc *goquery.Document, id *string) *goquery.Selection {
	if id == nil {
		return nil
	}
	var found *goquery.Selection
	outermost(doc.Find(SelMessage)).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v := messageIDCascade.First(s); v == *id {
			found = s
			return false
		}
		return true
	})
	return found
}

// originalURL prefers an explicit "show original" link and otherwise
// derives one from the message id.
func originalURL(doc *goquery.Document, scope *goquery.Selection, id *string) *string {
	if scope != nil {
		if ref := resolve(doc, originalLinkCascade.FirstRef(scope)); ref != nil {
			return ref
		}
	}
	if id == nil || doc.Url == nil {
		return nil
	}
	u := *doc.Url
	u.Fragment = ""
	u.RawQuery = url.Values{"view": {"om"}, "permmsgid": {*id}}.Encode()
	s := u.String()
	return &s
}

// permalink returns the page URL, adding the thread id as the fragment
// when the page URL lacks one.
func permalink(doc *goquery.Document) string {
	if doc.Url == nil {
		return ""
	}
	u := *doc.Url
	if u.Fragment == "" {
		if id := threadIDCascade.First(doc.Selection); id != "" {
			u.Fragment = "inbox/" + strings.TrimPrefix(id, "#")
		}
	}
	return u.String()
}

func resolve(doc *goquery.Document, ref *string) *string {
	if ref == nil || doc.Url == nil {
		return ref
	}
	u, err := url.Parse(*ref)
	if err != nil {
		return ref
	}
	s := doc.Url.ResolveReference(u).String()
	return &s
}
