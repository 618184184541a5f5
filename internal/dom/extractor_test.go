package dom

import (
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageURL = "https://mail.example/mail/u/0/"

func loadThread(t *testing.T) *goquery.Document {
	t.Helper()
	f, err := os.Open("testdata/thread.html")
	require.NoError(t, err)
	defer f.Close()

	doc, err := Parse(f, pageURL)
	require.NoError(t, err)
	return doc
}

func TestScanThread(t *testing.T) {
	msgs := ScanThread(loadThread(t))
	require.Len(t, msgs, 3)

	collapsed := msgs[0]
	assert.False(t, collapsed.Expanded)
	assert.Equal(t, "Billing <billing@vendor.com>", collapsed.Sender)
	assert.Equal(t, "Mon, Oct 5, 2026, 9:12 AM", collapsed.Date)
	assert.Empty(t, collapsed.Body)
	require.Len(t, collapsed.Attachments, 1)
	assert.True(t, collapsed.Attachments[0].IsPlaceholder)
	assert.Nil(t, collapsed.Attachments[0].URL)
	assert.Equal(t, "2 attachments", collapsed.Attachments[0].Name)

	second := msgs[1]
	assert.True(t, second.Expanded)
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, "Alice <a@x.com>", second.Sender)
	assert.Equal(t, "Hello,\nsee attached.", second.Body)
	require.NotNil(t, second.MessageID)
	assert.Equal(t, "#msg-f:18a2", *second.MessageID)

	names := []string{}
	for _, a := range second.Attachments {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"invoice.pdf", "receipt.png"}, names, "duplicate name keeps the first tile")
	require.NotNil(t, second.Attachments[0].URL)
	assert.Equal(t, "https://mail.example/mail/u/0/?view=att&th=1&attid=0.1", *second.Attachments[0].URL)
	assert.Equal(t, "120 KB", second.Attachments[0].Size)
	assert.Equal(t, "https://mail.example/mail/u/0/?view=att&attid=0.2", *second.Attachments[1].URL)

	assert.Equal(t, "Please pay\nby Friday.", msgs[2].Body)
}

func TestScanThreadIsRestartable(t *testing.T) {
	doc := loadThread(t)
	assert.Equal(t, ScanThread(doc), ScanThread(doc))
}

func TestCollapsedMessagesHoldOnlyPlaceholders(t *testing.T) {
	for _, m := range ScanThread(loadThread(t)) {
		for _, a := range m.Attachments {
			if a.IsPlaceholder {
				assert.Nil(t, a.URL)
			}
			if !m.Expanded {
				assert.True(t, a.IsPlaceholder)
			}
		}
	}
}

func TestExtractActiveContextWholeThread(t *testing.T) {
	ctx := ExtractActiveContext(loadThread(t), nil)

	assert.Equal(t, "Invoice #42", ctx.Subject)
	assert.Equal(t, "Bob <b@y.com>", ctx.Sender)
	assert.Equal(t, "Please pay\nby Friday.", ctx.Body)
	assert.Equal(t, pageURL+"#inbox/thread-f:1790", ctx.EmailURL)
	assert.Len(t, ctx.Attachments, 3, "placeholder plus two real attachments")
	require.NotNil(t, ctx.OriginalURL)
	assert.Equal(t, "https://mail.example/mail/u/0/?view=om&permmsgid=msg-f:18a3", *ctx.OriginalURL)
}

func TestExtractActiveContextScopedToMessage(t *testing.T) {
	doc := loadThread(t)
	trigger := doc.Find("span.gD[email='a@x.com']").Nodes[0]

	ctx := ExtractActiveContext(doc, trigger)

	assert.Equal(t, "Alice <a@x.com>", ctx.Sender)
	assert.Equal(t, "Hello,\nsee attached.", ctx.Body)
	assert.Len(t, ctx.Attachments, 2)
	require.NotNil(t, ctx.OriginalURL)
	assert.True(t, strings.Contains(*ctx.OriginalURL, "view=om"))
	assert.Contains(t, *ctx.OriginalURL, "permmsgid=%23msg-f%3A18a2")
}

func TestExtractionMissesYieldEmptyValues(t *testing.T) {
	doc, err := Parse(strings.NewReader("<html><body><p>nothing here</p></body></html>"), "")
	require.NoError(t, err)

	ctx := ExtractActiveContext(doc, nil)
	assert.Equal(t, "", ctx.Subject)
	assert.Equal(t, "", ctx.Sender)
	assert.Equal(t, "", ctx.Body)
	assert.Equal(t, "", ctx.EmailURL)
	assert.Nil(t, ctx.OriginalURL)
	assert.Nil(t, ctx.MessageID)
	assert.Empty(t, ScanThread(doc))
}

func TestCascadeFirstWins(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<div><span class="b">second</span><span class="a">first</span></div>`), "")
	require.NoError(t, err)

	c := Cascade{Text("span.missing"), Text("span.a"), Text("span.b")}
	assert.Equal(t, "first", c.First(doc.Selection))
	assert.Nil(t, Cascade{Text("span.missing")}.FirstRef(doc.Selection))
}

func TestDownloadURLPart(t *testing.T) {
	v := "image/png:a.png:https://host/x?y=1"
	assert.Equal(t, "a.png", downloadURLPart(v, 1))
	assert.Equal(t, "https://host/x?y=1", downloadURLPart(v, 2))
	assert.Equal(t, "", downloadURLPart("bogus", 1))
}

func TestNodeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"br breaks", "<div>a<br>b</div>", "a\nb"},
		{"adjacent blocks", "<div><p>a</p><p>b</p></div>", "a\nb"},
		{"double br keeps one blank", "<div>a<br><br><br>b</div>", "a\n\nb"},
		{"source whitespace", "<div>  a \n  b  </div>", "a b"},
		{"script dropped", "<div>a<script>x()</script></div>", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(strings.NewReader(tt.in), "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, NodeText(doc.Find("div").Nodes[0]))
		})
	}
}
