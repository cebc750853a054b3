package dom

import (
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// NodeError is an error tied to an element of a document. Besides the wrapped error it keeps a
// small copy of the markup around the element, so diagnostics can show where things went wrong
// even after the tree has been modified.
type NodeError struct {
	Path string
	err  error
	doc  *etree.Element
}

// NewNodeError wraps err with the location of n.
func NewNodeError(n *html.Node, err error) *NodeError {
	return &NodeError{
		Path: Path(n),
		err:  err,
		doc:  buildErrorContext(n),
	}
}

func (e *NodeError) Error() string {
	return e.Path + ": " + e.err.Error()
}

func (e *NodeError) Unwrap() error {
	return e.err
}

// HTMLContext renders the element, up to two siblings on each side and its parent tag.
func (e *NodeError) HTMLContext() string {
	return renderErrorContext(e.doc)
}

// errorContextBuilder is a type to organize helper functions for building error context trees.
type errorContextBuilder struct{}

func isBlankText(n *html.Node) bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

func (b errorContextBuilder) addPrevSiblings(doc *etree.Element, n *html.Node) {
	var prev []*html.Node
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if isBlankText(s) {
			continue
		}
		if len(prev) == 2 {
			doc.AddChild(etree.NewText("..."))
			break
		}
		prev = append(prev, s)
	}
	for i := len(prev) - 1; i >= 0; i-- {
		b.addNode(doc, prev[i])
	}
}

func (b errorContextBuilder) addNextSiblings(doc *etree.Element, n *html.Node) {
	c := 0
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if isBlankText(s) {
			continue
		}
		if c == 2 {
			doc.AddChild(etree.NewText("..."))
			break
		}
		b.addNode(doc, s)
		c++
	}
}

func (b errorContextBuilder) addNode(doc *etree.Element, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		clone := etree.NewElement(n.Data)
		for _, at := range n.Attr {
			clone.CreateAttr(at.Key, at.Val)
		}
		if hasElementChild(n) {
			clone.AddChild(etree.NewText("..."))
		} else if text := textContent(n); text != "" {
			clone.SetText(text)
		}
		doc.AddChild(clone)
	case html.TextNode:
		if !isBlankText(n) {
			doc.AddChild(etree.NewText(n.Data))
		}
	case html.CommentNode:
		doc.AddChild(etree.NewComment(n.Data))
	}
}

func (b errorContextBuilder) wrapParent(doc *etree.Element, n *html.Node) *etree.Element {
	parent := n.Parent
	if parent == nil || parent.Type != html.ElementNode {
		return doc // do not wrap the root node
	}

	doc.Tag = parent.Data
	for _, at := range parent.Attr {
		doc.CreateAttr(at.Key, at.Val)
	}

	wrapper := &etree.Element{}
	wrapper.AddChild(doc)

	return wrapper
}

// buildErrorContext creates an XML tree around the node n to provide context for an error.
func buildErrorContext(n *html.Node) *etree.Element {
	doc := &etree.Element{}
	if n == nil {
		return doc
	}
	b := errorContextBuilder{}
	b.addPrevSiblings(doc, n)
	b.addNode(doc, n)
	b.addNextSiblings(doc, n)
	return b.wrapParent(doc, n)
}

func renderErrorContext(doc *etree.Element) string {
	dst := &html.Node{Type: html.DocumentNode}

	// traverse the etree.Element and build the html.Node
	var render func(*html.Node, *etree.Element)
	render = func(dst *html.Node, src *etree.Element) {
		for _, c := range src.Child {
			switch t := c.(type) {
			case *etree.Element:
				n := NewElement(t.FullTag())
				for _, at := range t.Attr {
					n.Attr = append(n.Attr, html.Attribute{Key: at.Key, Val: at.Value})
				}
				dst.AppendChild(n)
				render(n, t)
			case *etree.CharData:
				dst.AppendChild(&html.Node{Type: html.TextNode, Data: t.Data})
			case *etree.Comment:
				dst.AppendChild(&html.Node{Type: html.CommentNode, Data: t.Data})
			}
		}
	}

	render(dst, doc)

	var buf strings.Builder
	_ = html.Render(&buf, dst)

	return buf.String()
}

func hasElementChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
