package dom

import (
	"strings"

	"golang.org/x/net/html"
	a "golang.org/x/net/html/atom"
)

// isSpecialElement reports whether n is in the "special" category of the HTML parsing algorithm.
func isSpecialElement(n *html.Node) bool {
	if n.Namespace != "" {
		return false
	}
	switch n.DataAtom {
	case a.Address, a.Applet, a.Area, a.Article, a.Aside, a.Base, a.Basefont, a.Bgsound,
		a.Blockquote, a.Body, a.Br, a.Button, a.Caption, a.Center, a.Col, a.Colgroup, a.Dd,
		a.Details, a.Dir, a.Div, a.Dl, a.Dt, a.Embed, a.Fieldset, a.Figcaption, a.Figure,
		a.Footer, a.Form, a.Frame, a.Frameset, a.H1, a.H2, a.H3, a.H4, a.H5, a.H6, a.Head,
		a.Header, a.Hgroup, a.Hr, a.Html, a.Iframe, a.Img, a.Input, a.Keygen, a.Li, a.Link,
		a.Listing, a.Main, a.Marquee, a.Menu, a.Meta, a.Nav, a.Noembed, a.Noframes, a.Noscript,
		a.Object, a.Ol, a.P, a.Param, a.Plaintext, a.Pre, a.Script, a.Section, a.Select,
		a.Source, a.Style, a.Summary, a.Table, a.Tbody, a.Td, a.Template, a.Textarea, a.Tfoot,
		a.Th, a.Thead, a.Title, a.Tr, a.Track, a.Ul, a.Wbr, a.Xmp:
		return true
	}
	return false
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// isRawText reports whether html.Render writes the text children of n without escaping.
func isRawText(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "iframe", "noembed", "noframes", "noscript", "plaintext", "script", "style", "xmp":
		return true
	}
	return false
}

// Attr returns the value of the attribute key of n. The second result reports whether the
// attribute is present.
func Attr(n *html.Node, key string) (string, bool) {
	for _, at := range n.Attr {
		if at.Namespace == "" && at.Key == key {
			return at.Val, true
		}
	}
	return "", false
}

// SetAttr sets the attribute key of n to val, adding it if it does not exist yet.
func SetAttr(n *html.Node, key, val string) {
	for i, at := range n.Attr {
		if at.Namespace == "" && at.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes the attribute key from n.
func RemoveAttr(n *html.Node, key string) {
	for i, at := range n.Attr {
		if at.Namespace == "" && at.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Rename changes the tag name of the element n.
func Rename(n *html.Node, tag string) {
	n.Data = tag
	n.DataAtom = a.Lookup([]byte(tag))
}

// InnerHTML serializes the children of n. Text inside raw text elements (script, style) is
// written as is, exactly like html.Render does for the whole element.
func InnerHTML(n *html.Node) (string, error) {
	var sb strings.Builder
	raw := isRawText(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if raw && c.Type == html.TextNode {
			sb.WriteString(c.Data)
			continue
		}
		if err := html.Render(&sb, c); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// SetText replaces all children of n with a single text node.
func SetText(n *html.Node, text string) {
	RemoveChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// RemoveChildren detaches all children of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

// MoveChildren detaches all children of src and appends them to dst, preserving their order.
func MoveChildren(dst, src *html.Node) {
	for c := src.FirstChild; c != nil; c = src.FirstChild {
		src.RemoveChild(c)
		dst.AppendChild(c)
	}
}

// ReplaceWithChildren puts the children of frag in place of n and detaches n.
// frag is typically the DocumentNode returned by ParseNodes.
func ReplaceWithChildren(n, frag *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for c := frag.FirstChild; c != nil; c = frag.FirstChild {
		frag.RemoveChild(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// CloneTree returns a deep copy of n. The copy has no parent and no siblings.
func CloneTree(n *html.Node) *html.Node {
	m := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      make([]html.Attribute, len(n.Attr)),
	}
	copy(m.Attr, n.Attr)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		m.AppendChild(CloneTree(c))
	}
	return m
}

// NewElement creates a detached element node.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: a.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// Path returns a slash separated list of element names from the document root down to n,
// e.g. "/html/body/snippet".
func Path(n *html.Node) string {
	var parts []string
	for ; n != nil; n = n.Parent {
		switch n.Type {
		case html.ElementNode:
			parts = append(parts, n.Data)
		case html.TextNode:
			parts = append(parts, "#text")
		case html.CommentNode:
			parts = append(parts, "#comment")
		}
	}
	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(parts[i])
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}
