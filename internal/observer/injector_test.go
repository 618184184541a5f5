package observer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailtask/internal/dom"
)

func loadThread(t *testing.T) *goquery.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "dom", "testdata", "thread.html"))
	require.NoError(t, err)
	defer f.Close()

	doc, err := dom.Parse(f, "https://mail.example/mail/u/0/")
	require.NoError(t, err)
	return doc
}

func TestInjectAddsOneTriggerPerContainer(t *testing.T) {
	doc := loadThread(t)
	in := NewInjector()

	// toolbar + collapsed row + two rendered messages
	assert.Equal(t, 4, in.Inject(doc))

	triggers := Triggers(doc)
	require.Len(t, triggers, 4)
	assert.Equal(t, KindToolbar, triggers[0].Kind)
	assert.Nil(t, triggers[0].Scope)
	for _, tr := range triggers[1:] {
		assert.Equal(t, KindMessage, tr.Kind)
		assert.NotNil(t, tr.Scope)
	}
}

func TestInjectIsIdempotent(t *testing.T) {
	doc := loadThread(t)
	in := NewInjector()

	in.Inject(doc)
	assert.Equal(t, 0, in.Inject(doc))
	assert.Len(t, Triggers(doc), 4)
}

func TestInjectSkipsContainersCarryingTriggers(t *testing.T) {
	doc := loadThread(t)
	NewInjector().Inject(doc)

	// A fresh injector sees a snapshot that already holds the triggers.
	assert.Equal(t, 0, NewInjector().Inject(doc))
	assert.Len(t, Triggers(doc), 4)
}

func TestInjectPicksUpNewMessages(t *testing.T) {
	doc := loadThread(t)
	in := NewInjector()
	in.Inject(doc)

	doc.Find("div[role=main]").AppendHtml(
		`<div class="adn ads" data-message-id="#msg-f:18a4">` +
			`<table class="cf gJ"><tr><td class="gF"><span class="gD" email="c@z.com">Cy</span></td></tr></table>` +
			`<div class="a3s aiL">Late reply</div></div>`)

	assert.Equal(t, 1, in.Inject(doc))
	assert.Len(t, Triggers(doc), 5)
}

func TestMessageTriggerSitsInSenderCell(t *testing.T) {
	doc := loadThread(t)
	NewInjector().Inject(doc)

	sel := doc.Find(`div[data-message-id="#msg-f:18a3"] td.gF [` + TriggerAttr + `]`)
	assert.Equal(t, 1, sel.Length())
}

func TestTriggerScopeExtractsThatMessage(t *testing.T) {
	doc := loadThread(t)
	NewInjector().Inject(doc)

	triggers := Triggers(doc)
	ctx := dom.ExtractActiveContext(doc, triggers[2].Node)
	assert.Equal(t, "Alice <a@x.com>", ctx.Sender)
}
