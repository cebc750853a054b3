package stitch

import (
	"fmt"
	"strings"

	"github.com/dpotapov/go-stitch/binding"
	"github.com/dpotapov/go-stitch/dom"
	"golang.org/x/net/html"
)

// templateType is set on escaped templates that have no type of their own.
const templateType = "application/template"

// escapeTemplates turns template elements into inert script blocks. Inner templates are escaped
// before the templates that contain them, so every level of nesting is encoded once more.
func escapeTemplates(b *build, doc *dom.Document) (*dom.Document, error) {
	var count int
	var walk func(n *html.Node) error
	walk = func(n *html.Node) error {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		if n.Type != html.ElementNode || n.Data != "template" {
			return nil
		}
		count++
		return escapeTemplate(n)
	}
	if err := walk(doc.Root()); err != nil {
		return nil, err
	}
	if count > 0 {
		b.logger.Debug("Escape templates", "count", count)
	}
	return doc, nil
}

func escapeTemplate(n *html.Node) error {
	if t, _ := dom.Attr(n, "type"); strings.TrimSpace(t) == "" {
		dom.SetAttr(n, "type", templateType)
	}
	inner, err := dom.InnerHTML(n)
	if err != nil {
		return dom.NewNodeError(n, err)
	}
	dom.SetText(n, escapeTemplateText(binding.Unescape(inner)))
	dom.Rename(n, "script")
	return nil
}

// escapeTemplateText encodes s with numeric character references only: the HTML special
// characters, the backtick, every non-ASCII character and the curly braces.
// html.UnescapeString restores the original text.
func escapeTemplateText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '{':
			sb.WriteString("&#123;")
		case r == '}':
			sb.WriteString("&#125;")
		case r == '"' || r == '&' || r == '\'' || r == '<' || r == '>' || r == '`' || r > 0x7f:
			fmt.Fprintf(&sb, "&#x%X;", r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
