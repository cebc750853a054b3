package dom

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s)
	require.NoError(t, err)
	return doc
}

func TestDocument_Find(t *testing.T) {
	doc := mustParse(t, `<local name="a" val="1"/><div><when><x>1</x></when><local name="b" val="2"/></div>`)

	nodes := doc.Nodes("local, when")
	require.Len(t, nodes, 3)
	require.Equal(t, "local", nodes[0].Data)
	require.Equal(t, "when", nodes[1].Data)
	require.Equal(t, "local", nodes[2].Data)

	require.Nil(t, doc.First("snippet"))
	require.NotNil(t, doc.First("when"))
}

func TestDocument_Clone(t *testing.T) {
	doc := mustParse(t, `<head><meta name="a"/></head><p class="x">text</p>`)
	clone := doc.Clone()

	p := clone.First("p")
	SetAttr(p, "class", "y")
	SetText(p, "changed")
	clone.First("meta").Parent.RemoveChild(clone.First("meta"))

	require.Equal(t, `<head><meta name="a"/></head><p class="x">text</p>`, doc.String())
	require.Equal(t, `<head></head><p class="y">changed</p>`, clone.String())
}

func TestDocument_Section(t *testing.T) {
	doc := mustParse(t, `<p>x</p>`)

	head := doc.Section("head")
	head.AppendChild(NewElement("link", html.Attribute{Key: "href", Val: "/a.css"}))
	require.Equal(t, `<head><link href="/a.css"/></head><p>x</p>`, doc.String())

	// existing section is reused
	require.Same(t, head, doc.Section("head"))
}

func TestInnerHTML(t *testing.T) {
	doc := mustParse(t, `<script>if (a < b) {}</script><div>a &amp; <b>b</b></div>`)

	s, err := InnerHTML(doc.First("script"))
	require.NoError(t, err)
	require.Equal(t, "if (a < b) {}", s)

	s, err = InnerHTML(doc.First("div"))
	require.NoError(t, err)
	require.Equal(t, "a &amp; <b>b</b>", s)
}

func TestReplaceWithChildren(t *testing.T) {
	doc := mustParse(t, `<p>before</p><snippet src="x"></snippet><p>after</p>`)
	frag, err := ParseString(`<i>1</i>two<b>3</b>`)
	require.NoError(t, err)

	ReplaceWithChildren(doc.First("snippet"), frag.Root())

	require.Equal(t, `<p>before</p><i>1</i>two<b>3</b><p>after</p>`, doc.String())
	require.Nil(t, frag.Root().FirstChild)
}

func TestAttrHelpers(t *testing.T) {
	n := NewElement("template")
	_, ok := Attr(n, "type")
	require.False(t, ok)

	SetAttr(n, "type", "")
	SetAttr(n, "type", "text/x")
	SetAttr(n, "id", "a")
	require.Equal(t, []html.Attribute{{Key: "type", Val: "text/x"}, {Key: "id", Val: "a"}}, n.Attr)

	RemoveAttr(n, "type")
	require.Equal(t, []html.Attribute{{Key: "id", Val: "a"}}, n.Attr)

	Rename(n, "script")
	require.Equal(t, "script", n.Data)
	require.NotZero(t, n.DataAtom)
}

func TestNodeError(t *testing.T) {
	doc := mustParse(t, `<body class="c"><h1>Title</h1><p>one</p><p>two</p><snippet src=" "></snippet><i>after</i></body>`)

	sentinel := errors.New("boom")
	err := NewNodeError(doc.First("snippet"), sentinel)

	require.Equal(t, "/body/snippet: boom", err.Error())
	require.ErrorIs(t, err, sentinel)

	want := `<body class="c">...<p>one</p><p>two</p><snippet src=" "></snippet><i>after</i></body>`
	if diff := cmp.Diff(want, err.HTMLContext()); diff != "" {
		t.Errorf("HTMLContext() diff (-want +got):\n%s", diff)
	}
}
