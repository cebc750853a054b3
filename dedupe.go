package stitch

import (
	"slices"
	"strconv"
	"strings"

	"github.com/dpotapov/go-stitch/dom"
	"golang.org/x/net/html"
)

// dedupeTags returns a pass that removes every tag element identical to an earlier one: same tag
// name, same attributes, same trimmed content.
func dedupeTags(tag string) func(*build, *dom.Document) (*dom.Document, error) {
	return func(b *build, doc *dom.Document) (*dom.Document, error) {
		seen := make(map[string]struct{})
		var removed int
		for _, n := range doc.Nodes(tag) {
			key, err := identity(n)
			if err != nil {
				return nil, dom.NewNodeError(n, err)
			}
			if _, ok := seen[key]; ok {
				dom.Detach(n)
				removed++
				continue
			}
			seen[key] = struct{}{}
		}
		if removed > 0 {
			b.logger.Debug("Remove duplicate tags", "tag", tag, "removed", removed)
		}
		return doc, nil
	}
}

// identity returns the structural key of an element. Attribute order does not matter.
func identity(n *html.Node) (string, error) {
	inner, err := dom.InnerHTML(n)
	if err != nil {
		return "", err
	}

	attrs := make([]string, 0, len(n.Attr))
	for _, a := range n.Attr {
		k := a.Key
		if a.Namespace != "" {
			k = a.Namespace + ":" + k
		}
		attrs = append(attrs, strconv.Quote(k)+"="+strconv.Quote(a.Val))
	}
	slices.Sort(attrs)

	var sb strings.Builder
	sb.WriteString(strconv.Quote(n.Data))
	for _, a := range attrs {
		sb.WriteByte(' ')
		sb.WriteString(a)
	}
	sb.WriteByte(' ')
	sb.WriteString(strconv.Quote(strings.TrimSpace(inner)))
	return sb.String(), nil
}
