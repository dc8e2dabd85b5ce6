package dom

import (
	"strings"

	"github.com/Wuchinator/storefront-activity/internal/tracking"
	"golang.org/x/net/html"
)

// Element is an HTML element seen through tracking.Node.
type Element struct {
	node *html.Node
}

// TagName is upper-cased like the DOM reports it for HTML documents.
func (e *Element) TagName() string {
	return strings.ToUpper(e.node.Data)
}

func (e *Element) Attr(name string) (string, bool) {
	return attr(e.node, strings.ToLower(name))
}

// Parent returns nil above the <html> element.
func (e *Element) Parent() tracking.Node {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return &Element{node: p}
}

// Text concatenates the element's text content.
func (e *Element) Text() string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(e.node)
	return strings.Join(strings.Fields(b.String()), " ")
}
