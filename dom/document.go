// Package dom is a thin adapter over golang.org/x/net/html trees: a tolerant parser that keeps
// custom elements where they are written, selector queries, content manipulation helpers and
// serialization.
package dom

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed markup tree. The root is always an html.DocumentNode.
//
// A Document is not safe for concurrent use. Use Clone to get an independent version of the tree.
type Document struct {
	root *html.Node
}

// New wraps an existing tree. If root is not a DocumentNode it is wrapped into one.
func New(root *html.Node) *Document {
	if root.Type != html.DocumentNode {
		doc := &html.Node{Type: html.DocumentNode}
		Detach(root)
		doc.AppendChild(root)
		root = doc
	}
	return &Document{root: root}
}

// Parse reads markup from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := ParseNodes(r)
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// ParseString is a shortcut for Parse(strings.NewReader(s)).
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the DocumentNode of the tree.
func (d *Document) Root() *html.Node {
	return d.root
}

// Find returns all descendants of the root matching the CSS selector, in document order.
func (d *Document) Find(selector string) *goquery.Selection {
	return goquery.NewDocumentFromNode(d.root).Find(selector)
}

// Nodes is like Find but returns the matched nodes directly.
func (d *Document) Nodes(selector string) []*html.Node {
	return d.Find(selector).Nodes
}

// First returns the first element matching the selector or nil.
func (d *Document) First(selector string) *html.Node {
	if nodes := d.Find(selector).First().Nodes; len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// Section returns the first element with the given tag. When there is none, an empty element
// is created and prepended to the root.
func (d *Document) Section(tag string) *html.Node {
	if n := d.First(tag); n != nil {
		return n
	}
	n := NewElement(tag)
	d.root.InsertBefore(n, d.root.FirstChild)
	return n
}

// Clone returns a deep copy of the document. Changes to the copy are not visible in d.
func (d *Document) Clone() *Document {
	return &Document{root: CloneTree(d.root)}
}

// Render writes the markup of the whole document to w.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// Markup returns the serialized document.
func (d *Document) Markup() (string, error) {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// String implements fmt.Stringer. Serialization errors are rendered as an HTML comment.
func (d *Document) String() string {
	s, err := d.Markup()
	if err != nil {
		return "<!-- " + err.Error() + " -->"
	}
	return s
}
