package stitch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dpotapov/go-stitch/binding"
	"github.com/dpotapov/go-stitch/dom"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// setupFs creates a memory file system with the given files and an empty /out directory.
func setupFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out", 0o755))
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}
	return fsys
}

func newTestCompiler(t *testing.T, fsys afero.Fs, opts Options) *Compiler {
	t.Helper()
	opts.Fs = fsys
	if opts.OutDir == "" {
		opts.OutDir = "/out"
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "/work"
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func readFile(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}

func requireNoFile(t *testing.T, fsys afero.Fs, path string) {
	t.Helper()
	ok, err := afero.Exists(fsys, path)
	require.NoError(t, err)
	require.False(t, ok, "%s should not exist", path)
}

func TestCompile_InlineAssets(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/page.html": `<style>.a{color:red}</style><script>var x=1;</script><local name="title" val="Hi"/><h1>{{title}}</h1>`,
	})
	c := newTestCompiler(t, fsys, Options{PublicDir: "/out"})

	res, err := c.Compile(context.Background(), "/src/page.html")
	require.NoError(t, err)

	require.Equal(t, "page", res.Name)
	require.Equal(t, "/out/page.html", res.HTML)
	require.Equal(t, []string{"/out/page.script.js", "/out/page.style.css", "/out/page.html"}, res.Files)

	want := `<head><link rel="stylesheet" type="text/css" href="/page.style.css"/></head>` +
		`<bottom><script type="application/javascript" src="/page.script.js"></script></bottom>` +
		`<h1>Hi</h1>`
	if diff := cmp.Diff(want, readFile(t, fsys, "/out/page.html")); diff != "" {
		t.Errorf("page.html diff (-want +got):\n%s", diff)
	}
	require.Equal(t, ".a{color:red}", readFile(t, fsys, "/out/page.style.css"))
	require.Equal(t, "var x=1;", readFile(t, fsys, "/out/page.script.js"))
	requireNoFile(t, fsys, "/out/"+ConditionsFile)
}

func TestCompile_DuplicateHeads(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/index.html": `<head><meta name="viewport" content="width=device-width"/></head>` +
			`<p>body</p>` +
			`<head><meta content="width=device-width" name="viewport"/></head>`,
	})
	c := newTestCompiler(t, fsys, Options{})

	_, err := c.Compile(context.Background(), "/src/index.html")
	require.NoError(t, err)

	got := readFile(t, fsys, "/out/index.html")
	require.Equal(t, `<head><meta name="viewport" content="width=device-width"/></head><p>body</p>`, got)
}

func TestCompile_Snippets(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/page.html":        `<local name="who" val="World"/><snippet src="_greet.html"/>`,
		"/src/_greet.html":      `<local name="greeting" val="Hello"/><p>{{greeting}}, {{who}}!</p><snippet src="parts/_sign.html"/>`,
		"/src/parts/_sign.html": `<i>{{greeting}}</i>`,
	})
	c := newTestCompiler(t, fsys, Options{})

	res, err := c.Compile(context.Background(), "/src/page.html")
	require.NoError(t, err)

	require.Equal(t, `<p>Hello, World!</p><i>Hello</i>`, readFile(t, fsys, "/out/page.html"))
	require.Equal(t, "Hello", res.Vars["greeting"])
}

func TestCompile_SnippetSearchOrder(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/page.html": `<snippet src="_a.html"/><snippet src="_b.html"/><snippet src="_c.html"/>`,
		"/work/_a.html":  `work`,
		"/src/_a.html":   `src`,
		"/src/_b.html":   `src`,
		"/out/_b.html":   `out`,
		"/out/_c.html":   `out`,
	})
	c := newTestCompiler(t, fsys, Options{})

	_, err := c.Compile(context.Background(), "/src/page.html")
	require.NoError(t, err)
	require.Equal(t, `worksrcout`, readFile(t, fsys, "/out/page.html"))
}

func TestCompile_ExternalVarsAndCopiedAssets(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/site/src/page.html": `<script src="{{app_js}}"></script><link rel="stylesheet" href="{{theme_css}}"/><h1>{{site.title}}</h1>`,
		"/site/src/app.js":    `console.log(1)`,
		"/site/src/theme.css": `body{}`,
		"/site/src/notes.txt": `ignored`,
	})
	require.NoError(t, fsys.MkdirAll("/site/public/pages", 0o755))

	c := newTestCompiler(t, fsys, Options{
		OutDir:    "/site/public/pages",
		PublicDir: "/site/public",
		Vars:      map[string]any{"site": map[string]any{"title": "Example"}},
	})

	res, err := c.Compile(context.Background(), "/site/src/page.html")
	require.NoError(t, err)

	require.Equal(t, "console.log(1)", readFile(t, fsys, "/site/public/pages/page.app.js"))
	require.Equal(t, "body{}", readFile(t, fsys, "/site/public/pages/page.theme.css"))
	requireNoFile(t, fsys, "/site/public/pages/page.notes.txt")

	require.Equal(t, "/pages/page.app.js", res.Vars["app_js"])
	want := `<script src="/pages/page.app.js"></script><link rel="stylesheet" href="/pages/page.theme.css"/><h1>Example</h1>`
	require.Equal(t, want, readFile(t, fsys, "/site/public/pages/page.html"))
}

func TestCompile_PlaceholderNames(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/page.html": `<local name="page-title" val="Hi"/><local name="in" val="inside"/>` +
			`<script src="{{main-app_js}}"></script><link href="{{jquery-3_7_1_min_js}}"/>` +
			`<h1>{{page-title}}</h1><p>{{in}}</p>`,
		"/src/main-app.js":         `main()`,
		"/src/jquery-3.7.1.min.js": `jq()`,
	})
	c := newTestCompiler(t, fsys, Options{})

	res, err := c.Compile(context.Background(), "/src/page.html")
	require.NoError(t, err)

	require.Equal(t, "/page.main-app.js", res.Vars["main-app_js"])
	want := `<script src="/page.main-app.js"></script><link href="/page.jquery-3.7.1.min.js"/>` +
		`<h1>Hi</h1><p>inside</p>`
	require.Equal(t, want, readFile(t, fsys, "/out/page.html"))
	require.Equal(t, "main()", readFile(t, fsys, "/out/page.main-app.js"))
}

func TestCompile_NoscriptText(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/page.html": `<local name="a" val="1"/><snippet src="_n.html"/><p>{{a}}</p>`,
		"/src/_n.html":   `<noscript>a &lt;b&gt; c</noscript>`,
	})
	c := newTestCompiler(t, fsys, Options{})

	_, err := c.Compile(context.Background(), "/src/page.html")
	require.NoError(t, err)
	require.Equal(t, `<noscript>a &lt;b&gt; c</noscript><p>1</p>`, readFile(t, fsys, "/out/page.html"))
}

func TestCompile_Conditions(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/en.html":           `<when><lang val="en"/><region value=" us "/></when><p>{{lang}}-{{region}}</p>`,
		"/src/de.html":           `<when><lang>de</lang></when><when><lang val="de-AT"/></when><p>{{lang}}</p>`,
		"/out/" + ConditionsFile: `{"old":{"x":"1"}}`,
	})
	c := newTestCompiler(t, fsys, Options{})

	res, err := c.Compile(context.Background(), "/src/en.html")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"lang": "en", "region": "us"}, res.Conditions)
	require.Equal(t, `<p>en-us</p>`, readFile(t, fsys, "/out/en.html"))

	_, err = c.Compile(context.Background(), "/src/de.html")
	require.NoError(t, err)
	require.Equal(t, `<p>de-AT</p>`, readFile(t, fsys, "/out/de.html"))

	var got map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(readFile(t, fsys, "/out/"+ConditionsFile)), &got))
	want := map[string]map[string]string{
		"old": {"x": "1"},
		"en":  {"lang": "en", "region": "us"},
		"de":  {"lang": "de-AT"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("conditions diff (-want +got):\n%s", diff)
	}
}

func TestCompile_EscapedPlaceholders(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/page.html": `<snippet src="_row.html"/><p>\{{literal}}</p>`,
		"/src/_row.html": `<template id="row"><td>\{{name}}</td></template>`,
	})
	c := newTestCompiler(t, fsys, Options{})

	_, err := c.Compile(context.Background(), "/src/page.html")
	require.NoError(t, err)

	want := `<script id="row" type="application/template">&#x3C;td&#x3E;&#123;&#123;name&#125;&#125;&#x3C;/td&#x3E;</script>` +
		`<p>{{literal}}</p>`
	require.Equal(t, want, readFile(t, fsys, "/out/page.html"))
}

func TestCompile_MergeIntoFirst(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/page.html": `<head><title>t</title></head><top>1</top><p>x</p><top>2</top>`,
	})

	c := newTestCompiler(t, fsys, Options{})
	_, err := c.Compile(context.Background(), "/src/page.html")
	require.NoError(t, err)
	require.Equal(t, `<head><title>t</title>2</head><top>1</top><p>x</p>`, readFile(t, fsys, "/out/page.html"))

	c = newTestCompiler(t, fsys, Options{SectionMerge: MergeIntoFirst})
	_, err = c.Compile(context.Background(), "/src/page.html")
	require.NoError(t, err)
	require.Equal(t, `<head><title>t</title></head><top>12</top><p>x</p>`, readFile(t, fsys, "/out/page.html"))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		template string
		wantErr  error
		nodeErr  bool
	}{
		{
			name:     "partial template",
			files:    map[string]string{"/src/__.html": `x`},
			template: "/src/__.html",
			wantErr:  ErrPartialTemplate,
		},
		{
			name:     "template is a directory",
			files:    map[string]string{"/src/dir/x.html": `x`},
			template: "/src/dir",
			wantErr:  ErrNotFile,
		},
		{
			name:     "unbound placeholder",
			files:    map[string]string{"/src/page.html": `<h1>{{missing}}</h1>`},
			template: "/src/page.html",
			wantErr:  binding.ErrUnboundVariable,
		},
		{
			name:     "local without val",
			files:    map[string]string{"/src/page.html": `<local name="a"/>`},
			template: "/src/page.html",
			wantErr:  ErrMissingAttribute,
			nodeErr:  true,
		},
		{
			name:     "snippet without src",
			files:    map[string]string{"/src/page.html": `<p><snippet src="  "/></p>`},
			template: "/src/page.html",
			wantErr:  ErrMissingAttribute,
			nodeErr:  true,
		},
		{
			name:     "snippet not found",
			files:    map[string]string{"/src/page.html": `<snippet src="_nope.html"/>`},
			template: "/src/page.html",
			wantErr:  ErrSnippetNotFound,
			nodeErr:  true,
		},
		{
			name:     "blank condition",
			files:    map[string]string{"/src/page.html": `<when><lang val=" ">  </lang></when>`},
			template: "/src/page.html",
			wantErr:  ErrBlankCondition,
			nodeErr:  true,
		},
		{
			name: "include cycle",
			files: map[string]string{
				"/src/page.html": `<snippet src="a.html"/>`,
				"/src/a.html":    `<snippet src="b.html"/>`,
				"/src/b.html":    `<snippet src="a.html"/>`,
			},
			template: "/src/page.html",
			wantErr:  ErrIncludeCycle,
			nodeErr:  true,
		},
		{
			name:     "self include",
			files:    map[string]string{"/src/page.html": `<snippet src="page.html"/>`},
			template: "/src/page.html",
			wantErr:  ErrIncludeCycle,
			nodeErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := setupFs(t, tt.files)
			c := newTestCompiler(t, fsys, Options{})

			_, err := c.Compile(context.Background(), tt.template)
			require.ErrorIs(t, err, tt.wantErr)

			if tt.nodeErr {
				var ne *dom.NodeError
				require.ErrorAs(t, err, &ne)
				require.NotEmpty(t, ne.HTMLContext())
			}

			// nothing is written on failure
			files, err := afero.ReadDir(fsys, "/out")
			require.NoError(t, err)
			require.Empty(t, files)
		})
	}
}

func TestCompile_OutDirNotDirectory(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/page.html": `x`,
		"/file":          `x`,
	})
	c := newTestCompiler(t, fsys, Options{OutDir: "/file"})

	_, err := c.Compile(context.Background(), "/src/page.html")
	require.ErrorIs(t, err, ErrNotDirectory)
}

func TestCompile_AlreadyIncluded(t *testing.T) {
	fsys := setupFs(t, map[string]string{
		"/src/page.html":   `<snippet src="footer.html"/>`,
		"/src/footer.html": `<footer>f</footer>`,
	})
	c := newTestCompiler(t, fsys, Options{})

	_, err := c.Compile(context.Background(), "/src/page.html")
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), "/src/footer.html")
	require.ErrorIs(t, err, ErrAlreadyIncluded)

	// the entry template can be compiled again
	_, err = c.Compile(context.Background(), "/src/page.html")
	require.NoError(t, err)

	// a fresh compiler has no history
	_, err = newTestCompiler(t, fsys, Options{}).Compile(context.Background(), "/src/footer.html")
	require.NoError(t, err)
}

func TestCompile_Canceled(t *testing.T) {
	fsys := setupFs(t, map[string]string{"/src/page.html": `x`})
	c := newTestCompiler(t, fsys, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Compile(ctx, "/src/page.html")
	require.True(t, errors.Is(err, context.Canceled))
	requireNoFile(t, fsys, "/out/page.html")
}

func TestNew(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{OutDir: "/out", Vars: map[string]any{" ": "x"}})
	require.ErrorIs(t, err, binding.ErrInvalidName)

	c, err := New(Options{OutDir: "/out", Vars: map[string]any{"site.name": "x"}})
	require.NoError(t, err)
	require.Equal(t, "/out", c.opts.PublicDir)
	require.NotEmpty(t, c.opts.WorkDir)
	require.Equal(t, binding.Bindings{"site_name": "x"}, c.extern)
}
