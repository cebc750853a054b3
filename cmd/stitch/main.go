// Command stitch compiles one HTML template into a static page:
//
//	stitch [options] TEMPLATE OUT_DIR PUBLIC_DIR
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dpotapov/go-stitch"
	"github.com/dpotapov/go-stitch/binding"
	"github.com/dpotapov/go-stitch/dom"
	"github.com/spf13/afero"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := run(ctx, os.Args[1:], os.Stderr, afero.NewOsFs())
	stop()
	if err != nil {
		os.Exit(report(os.Stderr, err))
	}
}

// run parses args and compiles the template. Logs and usage go to stderr.
func run(ctx context.Context, args []string, stderr io.Writer, fsys afero.Fs) error {
	cfg, shouldExit, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := newLogger(cfg.logLevel, cfg.logFormat, stderr)

	vars := binding.Bindings{}
	for _, path := range cfg.varFiles {
		b, err := binding.LoadFile(fsys, path)
		if err != nil {
			return err
		}
		vars.Merge(b)
	}
	for _, s := range cfg.vars {
		name, val, err := binding.ParseAssignment(s)
		if err != nil {
			return &ExitError{Code: 1, Message: err.Error()}
		}
		vars[name] = val
	}

	merge := stitch.MergeIntoHead
	if cfg.mergeIntoFirst {
		merge = stitch.MergeIntoFirst
	}

	c, err := stitch.New(stitch.Options{
		OutDir:       cfg.outDir,
		PublicDir:    cfg.publicDir,
		Vars:         vars,
		SectionMerge: merge,
		Fs:           fsys,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	res, err := c.Compile(ctx, cfg.template)
	if err != nil {
		return err
	}
	logger.Info("Done", "html", res.HTML, "files", len(res.Files))
	return nil
}

// report prints err to w and returns the exit code. Errors are prefixed with "!!! " so they
// stand out from log records.
func report(w io.Writer, err error) int {
	code := 1
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}

	fmt.Fprintln(w, "!!! "+err.Error())

	var nodeErr *dom.NodeError
	if errors.As(err, &nodeErr) {
		fmt.Fprintln(w, nodeErr.HTMLContext())
	}
	return code
}
