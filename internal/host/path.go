package host

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// CSSPath returns a selector that locates n from the document root by
// element position, e.g. "html > body:nth-child(2) > div:nth-child(1)".
func CSSPath(n *html.Node) string {
	var parts []string
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		idx := 1
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode {
				idx++
			}
		}
		if n.Parent == nil || n.Parent.Type == html.DocumentNode {
			parts = append(parts, n.Data)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", n.Data, idx))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
