// Package stitch compiles a single HTML template into a static page.
//
// A template is plain markup extended with a handful of custom elements:
//
//	<snippet src="_header.html"/>        include another file in place
//	<local name="title" val="Home"/>     bind a variable for {{title}} placeholders
//	<when><lang val="en"/></when>        declare conditions, persisted to conditions.json
//	<template>...</template>             inert runtime template, emitted as a script block
//	<head> <tail> <top> <bottom>         sections, merged into one occurrence
//
// Inline styles and scripts are extracted into <name>.style.css and <name>.script.js next to the
// rendered <name>.html, and CSS/JS files found beside the template are copied to the output
// directory with their public URL bound as a variable.
package stitch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dpotapov/go-stitch/binding"
	"github.com/dpotapov/go-stitch/dom"
	"github.com/spf13/afero"
)

// SectionMerge selects where the content of repeated sections goes.
type SectionMerge int

const (
	// MergeIntoHead moves the content of every repeated head, tail, top and bottom section into
	// the first head section.
	MergeIntoHead SectionMerge = iota

	// MergeIntoFirst moves the content of a repeated section into the first section with the
	// same tag.
	MergeIntoFirst
)

func (m SectionMerge) String() string {
	switch m {
	case MergeIntoHead:
		return "head"
	case MergeIntoFirst:
		return "first"
	default:
		return fmt.Sprintf("SectionMerge(%d)", int(m))
	}
}

// Options configures a Compiler.
type Options struct {
	// OutDir is the directory the rendered page and its assets are written to.
	// It must exist.
	OutDir string

	// PublicDir is the web root. URLs of emitted assets are made relative to it.
	// If not set, OutDir is used.
	PublicDir string

	// WorkDir is the first directory searched for snippets. Defaults to the process working
	// directory. The directory of the template and OutDir are searched next.
	WorkDir string

	// Vars are bindings available to every template. Names are normalized the same way
	// local names are.
	Vars map[string]any

	// SectionMerge controls the merge target of repeated sections.
	SectionMerge SectionMerge

	// Fs is the file system to read templates from and write results to.
	// Defaults to the OS file system.
	Fs afero.Fs

	// Logger configures logging for internal events.
	Logger *slog.Logger
}

// Compiler compiles templates. It remembers every file it loaded, so a file that was included
// as a snippet cannot later be compiled as an entry template by the same Compiler.
//
// A Compiler is safe for concurrent use, although concurrent compilations into the same
// output directory race on conditions.json.
type Compiler struct {
	opts   Options
	fs     afero.Fs
	logger *slog.Logger
	extern binding.Bindings

	mu     sync.Mutex
	loaded map[string]loadKind
}

// loadKind tells how a file was consumed.
type loadKind int

const (
	loadedAsTemplate loadKind = iota + 1
	loadedAsSnippet
)

// New creates a Compiler.
func New(opts Options) (*Compiler, error) {
	if opts.OutDir == "" {
		return nil, errors.New("output directory is not set")
	}
	if opts.PublicDir == "" {
		opts.PublicDir = opts.OutDir
	}
	if opts.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		opts.WorkDir = wd
	}

	vars, err := binding.FromMap(opts.Vars)
	if err != nil {
		return nil, fmt.Errorf("external variables: %w", err)
	}

	c := &Compiler{
		opts:   opts,
		fs:     opts.Fs,
		logger: opts.Logger,
		extern: vars,
		loaded: make(map[string]loadKind),
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c, nil
}

// Result describes a finished compilation.
type Result struct {
	// Name is the template name: the base name of the template file without ".html".
	Name string

	// HTML is the path of the rendered page.
	HTML string

	// Files lists every file written, in the order they were written.
	Files []string

	// Conditions holds the conditions persisted for the template, if any.
	Conditions map[string]string

	// Vars are the bindings the page was rendered with.
	Vars binding.Bindings
}

// Compile renders the template at path into the output directory.
//
// The first error stops the compilation and nothing is written. Errors tied to an element of
// the template are *dom.NodeError values.
func (c *Compiler) Compile(ctx context.Context, path string) (*Result, error) {
	b, err := c.newBuild(path)
	if err != nil {
		return nil, err
	}

	src, err := afero.ReadFile(c.fs, b.template)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	c.markLoaded(b.canonical, loadedAsTemplate)

	doc, err := dom.ParseString(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", b.template, err)
	}

	c.logger.Info("Compile template", "template", b.template, "out", b.outDir)

	if _, err := b.run(ctx, doc, pipeline()); err != nil {
		return nil, fmt.Errorf("compile %s: %w", b.template, err)
	}
	if err := b.flush(); err != nil {
		return nil, err
	}

	c.logger.Info("Template compiled", "template", b.template, "files", len(b.written))

	return &Result{
		Name:       b.name,
		HTML:       b.outputPath("html"),
		Files:      b.written,
		Conditions: b.conditions,
		Vars:       b.vars,
	}, nil
}

func (c *Compiler) markLoaded(path string, kind loadKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded[path] != loadedAsSnippet {
		c.loaded[path] = kind
	}
}

func (c *Compiler) loadedAs(path string) loadKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded[path]
}
