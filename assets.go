package stitch

import (
	"strings"

	"github.com/dpotapov/go-stitch/dom"
	"golang.org/x/net/html"
)

// bundle collects inline asset chunks into one file.
type bundle struct {
	suffix  string // output file suffix, e.g. "style.css"
	section string // section the reference tag is appended to
	chunks  []string
}

// add appends a chunk. Empty chunks are dropped.
func (bd *bundle) add(chunk string) {
	if chunk != "" {
		bd.chunks = append(bd.chunks, chunk)
	}
}

func (bd *bundle) content() string {
	return strings.Join(bd.chunks, "\n")
}

// extractStyles moves the content of style elements to <name>.style.css and links the file
// from the head section.
func extractStyles(b *build, doc *dom.Document) (*dom.Document, error) {
	bd := &bundle{suffix: "style.css", section: "head"}
	return b.extractInline(doc, doc.Nodes("style"), bd, func(url string) *html.Node {
		return dom.NewElement("link",
			html.Attribute{Key: "rel", Val: "stylesheet"},
			html.Attribute{Key: "type", Val: "text/css"},
			html.Attribute{Key: "href", Val: url},
		)
	})
}

// extractScripts moves the content of inline script elements to <name>.script.js and references
// the file from the bottom section. Scripts with a src attribute are left alone.
func extractScripts(b *build, doc *dom.Document) (*dom.Document, error) {
	var inline []*html.Node
	for _, n := range doc.Nodes("script") {
		if src, _ := dom.Attr(n, "src"); strings.TrimSpace(src) == "" {
			inline = append(inline, n)
		}
	}

	bd := &bundle{suffix: "script.js", section: "bottom"}
	return b.extractInline(doc, inline, bd, func(url string) *html.Node {
		return dom.NewElement("script",
			html.Attribute{Key: "type", Val: "application/javascript"},
			html.Attribute{Key: "src", Val: url},
		)
	})
}

// extractInline removes nodes from the document and writes their content as one file. When the
// content is blank, nothing is written and the document is returned unchanged.
func (b *build) extractInline(doc *dom.Document, nodes []*html.Node, bd *bundle,
	ref func(url string) *html.Node,
) (*dom.Document, error) {
	for _, n := range nodes {
		s, err := dom.InnerHTML(n)
		if err != nil {
			return nil, dom.NewNodeError(n, err)
		}
		bd.add(s)
	}

	content := bd.content()
	if strings.TrimSpace(content) == "" {
		return doc, nil
	}

	for _, n := range nodes {
		dom.Detach(n)
	}

	path := b.outputPath(bd.suffix)
	b.emit(path, []byte(content))
	b.logger.Debug("Extract inline assets", "file", path, "chunks", len(bd.chunks))

	doc.Section(bd.section).AppendChild(ref(b.publicURL(path)))
	return doc, nil
}
