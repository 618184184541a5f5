// Package observer keeps action triggers present in the host page: it
// watches for structural changes, debounces them, and re-runs an
// idempotent injection pass.
package observer

import (
	"fmt"
	gosync "sync"
	"weak"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nhle/mailtask/internal/dom"
)

// TriggerAttr marks injected trigger elements. Its value is the kind.
const TriggerAttr = "data-mailtask-trigger"

// Kind distinguishes the toolbar trigger from per-message triggers.
type Kind string

const (
	KindToolbar Kind = "toolbar"
	KindMessage Kind = "message"
)

// target is a container a strategy wants a trigger in.
type target struct {
	kind      Kind
	container *html.Node
	anchor    *html.Node // where the trigger element is appended
}

// strategy discovers containers. Strategies may overlap.
type strategy func(doc *goquery.Document) []target

// Injector appends exactly one trigger per container. Containers are
// remembered through weak pointers so removed nodes can be collected.
type Injector struct {
	mu         gosync.Mutex
	marked     map[weak.Pointer[html.Node]]struct{}
	strategies []strategy
}

// NewInjector returns an injector with the default discovery strategies:
// toolbar class match, message container by identifier, sender row.
func NewInjector() *Injector {
	return &Injector{
		marked:     make(map[weak.Pointer[html.Node]]struct{}),
		strategies: []strategy{toolbarTargets, messageIDTargets, senderRowTargets},
	}
}

// Inject runs every strategy against doc and returns the number of
// triggers added. The caller must hold write access to doc.
func (in *Injector) Inject(doc *goquery.Document) int {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.prune()
	added := 0
	for _, s := range in.strategies {
		for _, t := range s(doc) {
			key := weak.Make(t.container)
			if _, ok := in.marked[key]; ok {
				continue
			}
			in.marked[key] = struct{}{}
			if hasTrigger(t) {
				// Already rendered by an earlier snapshot of the shim.
				continue
			}
			t.anchor.AppendChild(newTrigger(t.kind))
			added++
		}
	}
	return added
}

// prune drops entries whose container has been collected.
func (in *Injector) prune() {
	for k := range in.marked {
		if k.Value() == nil {
			delete(in.marked, k)
		}
	}
}

// Trigger is an injected element together with the scope its click
// should extract from; Scope is nil for the toolbar trigger.
type Trigger struct {
	Kind  Kind
	Node  *html.Node
	Scope *html.Node
}

// Triggers lists the trigger elements currently in doc, in page order.
func Triggers(doc *goquery.Document) []Trigger {
	var out []Trigger
	doc.Find("[" + TriggerAttr + "]").Each(func(_ int, s *goquery.Selection) {
		kind, _ := s.Attr(TriggerAttr)
		t := Trigger{Kind: Kind(kind), Node: s.Nodes[0]}
		if t.Kind == KindMessage {
			if c := dom.ContainerOf(s); c != nil {
				t.Scope = c.Nodes[0]
			}
		}
		out = append(out, t)
	})
	return out
}

func toolbarTargets(doc *goquery.Document) []target {
	tb := doc.Find(dom.SelToolbar).First()
	if tb.Length() == 0 {
		return nil
	}
	n := tb.Nodes[0]
	return []target{{kind: KindToolbar, container: n, anchor: n}}
}

func messageIDTargets(doc *goquery.Document) []target {
	var out []target
	doc.Find("div[data-message-id], div[data-legacy-message-id]").Each(func(_ int, s *goquery.Selection) {
		if c := dom.ContainerOf(s); c != nil {
			out = append(out, messageTarget(c))
		}
	})
	return out
}

func senderRowTargets(doc *goquery.Document) []target {
	var out []target
	doc.Find(dom.SelSenderRow).Each(func(_ int, row *goquery.Selection) {
		if c := dom.ContainerOf(row); c != nil {
			out = append(out, messageTarget(c))
		}
	})
	return out
}

// messageTarget anchors the trigger in the sender row when there is one.
func messageTarget(c *goquery.Selection) target {
	anchor := c.Nodes[0]
	if row := c.Find(dom.SelSenderRow).First(); row.Length() > 0 {
		anchor = row.Nodes[0]
		// Table rows need a cell to stay valid markup.
		if anchor.DataAtom == atom.Table {
			if cell := row.Find("td").First(); cell.Length() > 0 {
				anchor = cell.Nodes[0]
			}
		}
	}
	return target{kind: KindMessage, container: c.Nodes[0], anchor: anchor}
}

// hasTrigger reports whether container already holds a trigger of kind,
// for instance one carried over in a fresh snapshot from the shim.
func hasTrigger(t target) bool {
	sel := fmt.Sprintf("[%s=%q]", TriggerAttr, string(t.kind))
	return goquery.NewDocumentFromNode(t.container).Find(sel).Length() > 0
}

func newTrigger(kind Kind) *html.Node {
	label := "Add to task"
	class := "mailtask-trigger"
	if kind == KindMessage {
		label = "+"
		class += " mailtask-trigger-compact"
	}
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: TriggerAttr, Val: string(kind)},
			{Key: "class", Val: class},
			{Key: "role", Val: "button"},
		},
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: label})
	return n
}
