package stitch

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dpotapov/go-stitch/dom"
	"github.com/spf13/afero"
	"golang.org/x/net/html"
)

// chainAttr is set on snippet elements that come from an included file. It holds the JSON list of
// files that led to the element, starting with the entry template.
const chainAttr = "data-snippet-chain"

// expandSnippets replaces snippet elements with the content of the referenced files until no
// snippet is left. Locals are bound again after every round, so an included file can declare
// variables for the snippets it includes.
func expandSnippets(b *build, doc *dom.Document) (*dom.Document, error) {
	for round := 1; ; round++ {
		snippets := doc.Nodes("snippet")
		if len(snippets) == 0 {
			return doc, nil
		}
		b.logger.Debug("Expand snippets", "round", round, "count", len(snippets))

		for _, n := range snippets {
			if !attached(doc.Root(), n) {
				// nested in a snippet replaced earlier in this round
				continue
			}
			if err := b.includeSnippet(n); err != nil {
				return nil, err
			}
		}

		var err error
		if doc, err = bindLocals(b, doc); err != nil {
			return nil, err
		}
	}
}

// includeSnippet replaces n with the parsed content of the file named by its src attribute.
func (b *build) includeSnippet(n *html.Node) error {
	src, err := requiredAttr(n, "src")
	if err != nil {
		return err
	}

	chain, err := b.snippetChain(n)
	if err != nil {
		return dom.NewNodeError(n, err)
	}

	path, err := b.resolveSnippet(src)
	if err != nil {
		return dom.NewNodeError(n, err)
	}
	canonical := b.canonicalPath(path)
	if slices.Contains(chain, canonical) {
		return dom.NewNodeError(n, fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(append(chain, canonical), " -> ")))
	}

	content, err := afero.ReadFile(b.fs, path)
	if err != nil {
		return dom.NewNodeError(n, fmt.Errorf("read snippet: %w", err))
	}
	b.markLoaded(canonical, loadedAsSnippet)
	b.logger.Debug("Include snippet", "src", src, "path", path)

	frag, err := dom.ParseString(string(content))
	if err != nil {
		return dom.NewNodeError(n, fmt.Errorf("parse snippet %s: %w", path, err))
	}

	nested := frag.Nodes("snippet")
	if len(nested) > 0 {
		data, err := json.Marshal(append(chain, canonical))
		if err != nil {
			return err
		}
		for _, s := range nested {
			dom.SetAttr(s, chainAttr, string(data))
		}
	}

	dom.ReplaceWithChildren(n, frag.Root())
	return nil
}

// snippetChain returns the files that led to the snippet element n.
func (b *build) snippetChain(n *html.Node) ([]string, error) {
	v, ok := dom.Attr(n, chainAttr)
	if !ok {
		return []string{b.canonical}, nil
	}
	var chain []string
	if err := json.Unmarshal([]byte(v), &chain); err != nil {
		return nil, fmt.Errorf("invalid %s attribute: %w", chainAttr, err)
	}
	return chain, nil
}

// attached reports whether n is a descendant of root.
func attached(root, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}
