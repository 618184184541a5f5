package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors against the host webmail markup. The class names are
// obfuscated and change with host releases; keep every list ordered from
// most to least specific.
const (
	// SelMessage matches a message container, rendered or collapsed.
	SelMessage = "div.adn, div.kv, div.kQ, div[data-message-id], div[data-legacy-message-id]"

	// SelCollapsedRow matches summary rows the host shows instead of a body.
	SelCollapsedRow = "div.kv, div.kQ, div.adf.ads"

	// SelCollapsedGroup matches the "N older messages" bar.
	SelCollapsedGroup = "span.adx, div.kx, div.adv"

	// SelExpandAll matches the host's own "expand all" control.
	SelExpandAll = "[aria-label='Expand all'], [data-tooltip='Expand all'], div.bjy"

	// SelToolbar matches the conversation toolbar.
	SelToolbar = "div.G-tF, div[gh='mtb'], div.iH > div"

	// SelSenderRow matches the header row carrying the sender chip.
	SelSenderRow = "table.cf.gJ, div.gE.iv.gt, div.gs > div.gE"
)

var bodySelectors = []string{"div.a3s.aiL", "div.a3s", "div.ii.gt"}

var headerSelectors = []string{"span.gD", "span.zF", "span[email]", "div.gE", "span.g3", "span.xW"}

var subjectCascade = Cascade{
	Text("h2.hP"),
	Text("h2[data-thread-perm-id]"),
	Text("[role='main'] h2"),
	Map(Text("title"), titleSubject),
}

var threadIDCascade = Cascade{
	Attr("h2[data-thread-perm-id]", "data-thread-perm-id"),
	Attr("[data-thread-perm-id]", "data-thread-perm-id"),
	Attr("[data-legacy-thread-id]", "data-legacy-thread-id"),
}

var messageIDCascade = Cascade{
	SelfAttr("data-message-id"),
	SelfAttr("data-legacy-message-id"),
	Attr("[data-message-id]", "data-message-id"),
	Attr("[data-legacy-message-id]", "data-legacy-message-id"),
}

var senderEmailCascade = Cascade{
	Attr("span.gD[email]", "email"),
	Attr("span.zF[email]", "email"),
	Attr("span[email]", "email"),
	Map(Attr("[data-hovercard-id]", "data-hovercard-id"), onlyAddress),
	Map(Text("span.go"), onlyAddress),
}

var senderNameCascade = Cascade{
	Attr("span.gD[name]", "name"),
	Text("span.gD"),
	Attr("span.zF[name]", "name"),
	Text("span.zF"),
	Attr("span[email][name]", "name"),
}

var dateCascade = Cascade{
	Attr("span.g3[title]", "title"),
	Text("span.g3"),
	Attr("span.xW span[title]", "title"),
	Text("span.xW"),
	Attr("td.gH span[title]", "title"),
}

var bodyCascade = Cascade{
	BlockText(bodySelectors[0]),
	BlockText(bodySelectors[1]),
	BlockText(bodySelectors[2]),
}

var attachmentHintCascade = Cascade{
	Text("span.aZi"),
	Text("span.bzB"),
	Attr("[aria-label*='ttachment']", "aria-label"),
	Attr("img.yf[alt]", "alt"),
	Map(Attr("img[src*='attachment']", "src"), func(string) string { return "attachment" }),
}

var originalLinkCascade = Cascade{
	Attr("a[href*='view=om']", "href"),
	Attr("[data-original-url]", "data-original-url"),
}

// Attachment tiles.
const selAttachment = "div.aQH span.aZo, span[download_url], div[data-attachment-name]"

var attachmentNameCascade = Cascade{
	Text("span.aV3"),
	SelfAttr("data-attachment-name"),
	Map(SelfAttr("download_url"), func(v string) string { return downloadURLPart(v, 1) }),
	Map(SelfAttr("aria-label"), stripAttachmentLabel),
	Text("a"),
}

var attachmentURLCascade = Cascade{
	Map(SelfAttr("download_url"), func(v string) string { return downloadURLPart(v, 2) }),
	Attr("a.aQy[href]", "href"),
	Attr("a[href*='view=att']", "href"),
	Attr("a[href*='disp=safe']", "href"),
	SelfAttr("data-url"),
}

var attachmentSizeCascade = Cascade{
	Text("div.SaH2Ve"),
	Text("span.SaH2Ve"),
	SelfAttr("data-size"),
}

// titleSubject turns "Subject - me@x.com - Mail" into "Subject".
func titleSubject(title string) string {
	parts := strings.Split(title, " - ")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[0])
}

// onlyAddress pulls the address out of "<a@x.com>" or "a@x.com".
func onlyAddress(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "<>")
	if !strings.Contains(s, "@") || strings.ContainsAny(s, " \t") {
		return ""
	}
	return s
}

// downloadURLPart splits the host's "mime:name:url" attribute. The URL
// itself contains colons, so only the first two are separators.
func downloadURLPart(v string, idx int) string {
	parts := strings.SplitN(v, ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return strings.TrimSpace(parts[idx])
}

func stripAttachmentLabel(v string) string {
	v = strings.TrimSpace(v)
	for _, prefix := range []string{"Attachment:", "Download attachment"} {
		v = strings.TrimSpace(strings.TrimPrefix(v, prefix))
	}
	return v
}

// outermost keeps only nodes that have no matching ancestor in sel, so
// nested markers on the same message do not count twice.
func outermost(sel *goquery.Selection) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsFiltered(SelMessage).Length() == 0
	})
}
