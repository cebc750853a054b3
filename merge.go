package stitch

import (
	"github.com/dpotapov/go-stitch/dom"
	"golang.org/x/net/html"
)

// mergeSections returns a pass that moves the content of every repeated tag section into the
// merge target and removes the emptied sections. The target is the first head section, or the
// first section of the same tag with MergeIntoFirst.
func mergeSections(tag string) func(*build, *dom.Document) (*dom.Document, error) {
	return func(b *build, doc *dom.Document) (*dom.Document, error) {
		nodes := doc.Nodes(tag)
		if len(nodes) < 2 {
			return doc, nil
		}

		target := nodes[0]
		if b.opts.SectionMerge == MergeIntoHead {
			target = doc.Section("head")
		}

		for _, n := range nodes[1:] {
			if n == target {
				continue
			}
			if contains(n, target) {
				// the target is inside the section, keep the content where it is
				dom.ReplaceWithChildren(n, n)
				continue
			}
			dom.MoveChildren(target, n)
			dom.Detach(n)
		}

		b.logger.Debug("Merge sections", "tag", tag, "count", len(nodes), "into", target.Data)
		return doc, nil
	}
}

// contains reports whether n is an ancestor of other.
func contains(n, other *html.Node) bool {
	for p := other.Parent; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}
