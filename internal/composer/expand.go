package composer

import (
	"context"
	"log/slog"
	"slices"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/dom"
	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/model"
)

// expandStrategy finds the nodes to click for one way of expanding.
type expandStrategy struct {
	name string
	find func(doc *goquery.Document) []*html.Node
}

var expandStrategies = []expandStrategy{
	{name: "menu", find: func(doc *goquery.Document) []*html.Node {
		return doc.Find(dom.SelExpandAll).First().Nodes
	}},
	{name: "group", find: func(doc *goquery.Document) []*html.Node {
		return doc.Find(dom.SelCollapsedGroup).Nodes
	}},
	{name: "rows", find: func(doc *goquery.Document) []*html.Node {
		// Rows that already hold a body are rendered messages.
		return doc.Find(dom.SelCollapsedRow).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("div.a3s, div.ii.gt").Length() == 0
		}).Nodes
	}},
}

// ExpandAllAndRescan tries each expand strategy, waiting the settle delay
// after every one that clicked something, then rescans the thread and
// refreshes the attachment list. Nothing expanding is not an error.
func (s *Session) ExpandAllAndRescan(ctx context.Context) error {
	logger := logging.WithOperation(s.logger, "composer.expand")
	page := s.deps.Page

	for _, st := range expandStrategies {
		var nodes []*html.Node
		page.Read(func(doc *goquery.Document) {
			nodes = st.find(doc)
		})
		if len(nodes) == 0 {
			continue
		}
		// Clicks go outside Read: a click may mutate the page.
		for _, n := range nodes {
			if err := page.Click(n); err != nil {
				logger.Debug("expand click failed", slog.String("strategy", st.name), logging.Err(err))
			}
		}
		logger.Debug("expand strategy tried", slog.String("strategy", st.name), slog.Int("clicks", len(nodes)))
		if err := s.sleep(ctx, s.deps.Timing.ExpandSettle()); err != nil {
			return err
		}
	}

	s.Rescan()
	return nil
}

// Rescan re-reads the thread from the page. Attachment selections that no
// longer exist are dropped; new attachments start unselected.
func (s *Session) Rescan() {
	s.mu.Lock()
	scope := s.scope
	s.mu.Unlock()

	var fresh struct {
		thread []model.ThreadMessage
		email  model.EmailContext
	}
	s.deps.Page.Read(func(doc *goquery.Document) {
		fresh.thread = dom.ScanThread(doc)
		fresh.email = dom.ExtractActiveContext(doc, scope)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.thread = fresh.thread
	s.draft.Attachments = remapSelection(s.email.Attachments, fresh.email.Attachments, s.draft.Attachments)
	s.email.Attachments = fresh.email.Attachments
	s.status = Status{Kind: StatusInfo, Text: s.tr.Plural("status_rescanned", len(s.thread))}
}

// remapSelection carries selected indices from prev over to next. An
// attachment keeps its selection when next holds one with the same name and
// download URL; each entry of next matches at most once.
func remapSelection(prev, next []model.Attachment, selected []int) []int {
	used := make(map[int]bool, len(selected))
	var out []int
	for _, i := range selected {
		old, ok := attachmentAt(prev, i)
		if !ok {
			continue
		}
		for j, a := range next {
			if used[j] || !a.Downloadable() || a.Name != old.Name || *a.URL != *old.URL {
				continue
			}
			used[j] = true
			out = append(out, j)
			break
		}
	}
	slices.Sort(out)
	return out
}
