package stitch

import (
	"context"
	"fmt"

	"github.com/dpotapov/go-stitch/dom"
)

// pass is one step of the compilation. A pass gets its own copy of the document and returns the
// document the next pass continues with.
type pass struct {
	name string
	run  func(*build, *dom.Document) (*dom.Document, error)
}

// pipeline returns the passes of a compilation in the order they run.
func pipeline() []pass {
	return []pass{
		{"copy-assets", copyAssets},
		{"bind-locals", bindLocals},
		{"expand-snippets", expandSnippets},
		{"extract-scripts", extractScripts},
		{"extract-styles", extractStyles},
		{"escape-templates", escapeTemplates},
		{"merge-head", mergeSections("head")},
		{"merge-tail", mergeSections("tail")},
		{"merge-top", mergeSections("top")},
		{"merge-bottom", mergeSections("bottom")},
		{"dedupe-link", dedupeTags("link")},
		{"dedupe-script", dedupeTags("script")},
		{"dedupe-meta", dedupeTags("meta")},
		{"extract-conditions", extractConditions},
		{"render", render},
	}
}

// run threads doc through passes. Every pass works on a fresh clone, so a document value is
// never changed once another pass has returned it.
func (b *build) run(ctx context.Context, doc *dom.Document, passes []pass) (*dom.Document, error) {
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.logger.Debug("Run pass", "pass", p.name, "template", b.name)

		next, err := p.run(b, doc.Clone())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		doc = next
	}
	return doc, nil
}
