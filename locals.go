package stitch

import (
	"fmt"
	"strings"

	"github.com/dpotapov/go-stitch/binding"
	"github.com/dpotapov/go-stitch/dom"
	"golang.org/x/net/html"
)

// bindLocals collects local and when elements into the bindings, removes the local elements and
// substitutes every placeholder of the document. The substituted markup is parsed again, so
// variables may produce markup.
//
// When elements stay in the document; extractConditions consumes them at the end of the
// compilation.
func bindLocals(b *build, doc *dom.Document) (*dom.Document, error) {
	locals := binding.Bindings{}

	for _, n := range doc.Nodes("local, when") {
		switch n.Data {
		case "local":
			name, err := requiredAttr(n, "name")
			if err != nil {
				return nil, err
			}
			val, err := requiredAttr(n, "val")
			if err != nil {
				return nil, err
			}
			if err := locals.Set(name, val); err != nil {
				return nil, dom.NewNodeError(n, err)
			}
			dom.Detach(n)
		case "when":
			conds, err := conditionsOf(n)
			if err != nil {
				return nil, err
			}
			for k, v := range conds {
				if err := locals.Set(k, v); err != nil {
					return nil, dom.NewNodeError(n, err)
				}
			}
		}
	}

	b.vars.Merge(locals)
	b.logger.Debug("Bind locals", "locals", len(locals), "vars", len(b.vars))

	markup, err := doc.Markup()
	if err != nil {
		return nil, err
	}
	out, err := binding.Interpolate(markup, b.vars)
	if err != nil {
		return nil, err
	}
	return dom.ParseString(out)
}

// conditionsOf returns the conditions declared by the children of a when element. The name of
// a condition is the tag name of the child, its value is the first non-blank of the val
// attribute, the value attribute and the inner markup.
func conditionsOf(when *html.Node) (map[string]string, error) {
	conds := make(map[string]string)
	for c := when.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		v, err := conditionValue(c)
		if err != nil {
			return nil, err
		}
		conds[c.Data] = v
	}
	return conds, nil
}

func conditionValue(n *html.Node) (string, error) {
	for _, key := range []string{"val", "value"} {
		if v, ok := dom.Attr(n, key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	inner, err := dom.InnerHTML(n)
	if err != nil {
		return "", dom.NewNodeError(n, err)
	}
	if v := strings.TrimSpace(inner); v != "" {
		return v, nil
	}
	return "", dom.NewNodeError(n, fmt.Errorf("%w: %s", ErrBlankCondition, n.Data))
}

// requiredAttr returns the trimmed value of the attribute key of n. An absent or blank attribute
// is an error.
func requiredAttr(n *html.Node, key string) (string, error) {
	v, _ := dom.Attr(n, key)
	v = strings.TrimSpace(v)
	if v == "" {
		return "", dom.NewNodeError(n, fmt.Errorf("%w: %s[%s]", ErrMissingAttribute, n.Data, key))
	}
	return v, nil
}
