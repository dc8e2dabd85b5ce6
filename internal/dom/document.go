// Package dom is a headless document for driving the click tracker: it
// parses storefront HTML and dispatches synthetic clicks to root-level
// listeners.
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Wuchinator/storefront-activity/internal/tracking"
	"golang.org/x/net/html"
)

type Document struct {
	root *html.Node

	mu        sync.Mutex
	listeners map[int]tracking.ClickHandler
	nextID    int
}

func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{
		root:      root,
		listeners: make(map[int]tracking.ClickHandler),
	}, nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) GetElementByID(id string) (*Element, bool) {
	var found *Element
	d.walk(func(n *html.Node) bool {
		if v, ok := attr(n, "id"); ok && v == id {
			found = &Element{node: n}
			return false
		}
		return true
	})
	return found, found != nil
}

// ElementsWithAttr returns the elements carrying name, in document order.
func (d *Document) ElementsWithAttr(name string) []*Element {
	var out []*Element
	d.walk(func(n *html.Node) bool {
		if _, ok := attr(n, name); ok {
			out = append(out, &Element{node: n})
		}
		return true
	})
	return out
}

// Links returns the href of every anchor, in document order.
func (d *Document) Links() []string {
	var out []string
	d.walk(func(n *html.Node) bool {
		if n.Data == "a" {
			if href, ok := attr(n, "href"); ok && href != "" {
				out = append(out, href)
			}
		}
		return true
	})
	return out
}

// AddClickListener installs a capturing listener at the document root.
func (d *Document) AddClickListener(h tracking.ClickHandler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.listeners, id)
		})
	}
}

// Click dispatches a click on target to every root listener.
func (d *Document) Click(target *Element) {
	if target == nil {
		return
	}
	d.mu.Lock()
	handlers := make([]tracking.ClickHandler, 0, len(d.listeners))
	for _, h := range d.listeners {
		handlers = append(handlers, h)
	}
	d.mu.Unlock()

	for _, h := range handlers {
		h(target)
	}
}

func (d *Document) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// walk visits element nodes depth first until visit returns false.
func (d *Document) walk(visit func(*html.Node) bool) {
	var rec func(*html.Node) bool
	rec = func(n *html.Node) bool {
		if n.Type == html.ElementNode && !visit(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !rec(c) {
				return false
			}
		}
		return true
	}
	rec(d.root)
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}
