package dom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	a "golang.org/x/net/html/atom"
)

// A treeBuilder turns the tokens of golang.org/x/net/html into a node tree. Unlike html.Parse it
// does not try to build a browser DOM: no html, head or body elements are implied and no element
// is moved, so custom elements and repeated sections stay exactly where they are written. Only
// the end-tag omission rules templates commonly rely on are applied (p, li, dd/dt, headings,
// options and table cells).
type treeBuilder struct {
	z    *html.Tokenizer
	root *html.Node
	open []*html.Node // stack of open elements
}

type atomSet map[a.Atom]bool

func newAtomSet(atoms ...a.Atom) atomSet {
	s := make(atomSet, len(atoms))
	for _, t := range atoms {
		s[t] = true
	}
	return s
}

var (
	// voidElements never have content and are never pushed to the stack of open elements.
	voidElements = newAtomSet(a.Area, a.Base, a.Basefont, a.Bgsound, a.Br, a.Col, a.Embed, a.Hr,
		a.Img, a.Input, a.Keygen, a.Link, a.Meta, a.Param, a.Source, a.Track, a.Wbr)

	// closesP lists start tags that end an open p element.
	closesP = newAtomSet(a.Address, a.Article, a.Aside, a.Blockquote, a.Center, a.Details,
		a.Dialog, a.Dir, a.Div, a.Dl, a.Fieldset, a.Figcaption, a.Figure, a.Footer, a.Form,
		a.H1, a.H2, a.H3, a.H4, a.H5, a.H6, a.Header, a.Hgroup, a.Hr, a.Listing, a.Main, a.Menu,
		a.Nav, a.Ol, a.P, a.Plaintext, a.Pre, a.Section, a.Summary, a.Table, a.Ul, a.Xmp)

	// rawTextElements switch the tokenizer to raw text or RCDATA mode. Noscript content is raw
	// text too, matching how html.Render writes it back.
	rawTextElements = newAtomSet(a.Iframe, a.Noembed, a.Noframes, a.Noscript, a.Plaintext,
		a.Script, a.Style, a.Textarea, a.Title, a.Xmp)

	// pScope elements hide an outer p from closesP tags.
	pScope = newAtomSet(a.Applet, a.Button, a.Caption, a.Html, a.Marquee, a.Object, a.Table,
		a.Td, a.Th, a.Template)

	headings  = newAtomSet(a.H1, a.H2, a.H3, a.H4, a.H5, a.H6)
	listItems = newAtomSet(a.Li)
	defItems  = newAtomSet(a.Dd, a.Dt)

	// closesCurrent maps a start tag to the elements it ends while they are the current node.
	closesCurrent = map[a.Atom]atomSet{
		a.H1:       headings,
		a.H2:       headings,
		a.H3:       headings,
		a.H4:       headings,
		a.H5:       headings,
		a.H6:       headings,
		a.Option:   newAtomSet(a.Option),
		a.Optgroup: newAtomSet(a.Option, a.Optgroup),
		a.Td:       newAtomSet(a.Td, a.Th),
		a.Th:       newAtomSet(a.Td, a.Th),
		a.Tr:       newAtomSet(a.Td, a.Th, a.Tr),
		a.Tbody:    newAtomSet(a.Td, a.Th, a.Tr, a.Tbody, a.Thead, a.Tfoot),
		a.Thead:    newAtomSet(a.Td, a.Th, a.Tr, a.Tbody, a.Thead, a.Tfoot),
		a.Tfoot:    newAtomSet(a.Td, a.Th, a.Tr, a.Tbody, a.Thead, a.Tfoot),
	}
)

func (tb *treeBuilder) current() *html.Node {
	if i := len(tb.open); i > 0 {
		return tb.open[i-1]
	}
	return tb.root
}

func (tb *treeBuilder) pop() {
	tb.open = tb.open[:len(tb.open)-1]
}

// closeP ends the innermost open p element unless a pScope element is opened inside it.
// It reports whether a p element was closed.
func (tb *treeBuilder) closeP() bool {
	for i := len(tb.open) - 1; i >= 0; i-- {
		n := tb.open[i]
		if n.DataAtom == a.P && n.Namespace == "" {
			tb.open = tb.open[:i]
			return true
		}
		if pScope[n.DataAtom] {
			return false
		}
	}
	return false
}

// closeListItem ends an open list item before a new one starts. The search stops at special
// elements other than address, div and p, so nested lists keep their items.
func (tb *treeBuilder) closeListItem(items atomSet) {
	for i := len(tb.open) - 1; i >= 0; i-- {
		n := tb.open[i]
		if items[n.DataAtom] {
			tb.open = tb.open[:i]
			return
		}
		if n.DataAtom != a.Address && n.DataAtom != a.Div && n.DataAtom != a.P && isSpecialElement(n) {
			return
		}
	}
}

// closeNamed ends the innermost open element accepted by match together with everything opened
// inside it. It reports whether there was such an element.
func (tb *treeBuilder) closeNamed(match func(*html.Node) bool) bool {
	for i := len(tb.open) - 1; i >= 0; i-- {
		if match(tb.open[i]) {
			tb.open = tb.open[:i]
			return true
		}
	}
	return false
}

func (tb *treeBuilder) addText(text string) {
	cur := tb.current()
	switch cur.DataAtom {
	case a.Pre, a.Listing, a.Textarea:
		if cur.FirstChild == nil {
			// a newline right after the start tag is not content
			text = strings.TrimPrefix(strings.TrimPrefix(text, "\r"), "\n")
		}
	}
	text = strings.ReplaceAll(text, "\x00", "")
	if text == "" {
		return
	}
	if last := cur.LastChild; last != nil && last.Type == html.TextNode {
		last.Data += text
		return
	}
	cur.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func (tb *treeBuilder) startTag(tok html.Token, selfClosing bool) {
	if tok.DataAtom == a.Image {
		tok.DataAtom, tok.Data = a.Img, a.Img.String()
	}

	if closesP[tok.DataAtom] {
		tb.closeP()
	}
	switch tok.DataAtom {
	case a.Li:
		tb.closeListItem(listItems)
	case a.Dd, a.Dt:
		tb.closeListItem(defItems)
	}
	if set, ok := closesCurrent[tok.DataAtom]; ok {
		for len(tb.open) > 0 && set[tb.current().DataAtom] {
			tb.pop()
		}
	}

	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: tok.DataAtom,
		Data:     tok.Data,
		Attr:     make([]html.Attribute, 0, len(tok.Attr)),
	}
	for _, at := range tok.Attr {
		// the first of duplicated attributes wins
		if !hasAttr(n, at.Key) {
			n.Attr = append(n.Attr, at)
		}
	}
	switch {
	case tok.DataAtom == a.Svg || tok.DataAtom == a.Math:
		n.Namespace = tok.Data
	default:
		n.Namespace = tb.current().Namespace
	}

	tb.current().AppendChild(n)

	// The tokenizer switches to raw text after <script/> and friends, so their self-closing
	// flag cannot be honored. Any other element, custom ones included, may be self-closed.
	if voidElements[tok.DataAtom] || (selfClosing && !rawTextElements[tok.DataAtom]) {
		return
	}
	tb.open = append(tb.open, n)
}

func (tb *treeBuilder) endTag(tok html.Token) {
	switch {
	case tok.DataAtom == a.Br:
		tb.startTag(html.Token{Type: html.StartTagToken, DataAtom: a.Br, Data: "br"}, false)
	case tok.DataAtom == a.P:
		tb.closeP()
	case headings[tok.DataAtom]:
		tb.closeNamed(func(n *html.Node) bool { return headings[n.DataAtom] })
	default:
		// An end tag without a matching open element is ignored.
		tb.closeNamed(func(n *html.Node) bool { return n.Data == tok.Data })
	}
}

func (tb *treeBuilder) build() error {
	for {
		tb.z.AllowCDATA(tb.current().Namespace != "")
		tt := tb.z.Next()
		switch tt {
		case html.ErrorToken:
			if err := tb.z.Err(); err != io.EOF {
				return err
			}
			return nil
		case html.TextToken:
			tb.addText(string(tb.z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			tb.startTag(tb.z.Token(), tt == html.SelfClosingTagToken)
		case html.EndTagToken:
			tb.endTag(tb.z.Token())
		case html.CommentToken:
			tb.current().AppendChild(&html.Node{Type: html.CommentNode, Data: tb.z.Token().Data})
		case html.DoctypeToken:
			// html.Render writes Data back after "<!DOCTYPE "
			tb.current().AppendChild(&html.Node{Type: html.DoctypeNode, Data: tb.z.Token().Data})
		}
	}
}

// ParseNodes returns the parsed *html.Node tree for the markup from the given Reader. The result
// is always a DocumentNode whose children are the top-level nodes of the input.
// The input is assumed to be UTF-8 encoded.
func ParseNodes(r io.Reader) (*html.Node, error) {
	tb := &treeBuilder{
		z:    html.NewTokenizer(r),
		root: &html.Node{Type: html.DocumentNode},
	}
	if err := tb.build(); err != nil {
		return nil, err
	}
	return tb.root, nil
}
