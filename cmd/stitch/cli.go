package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// arityMessage is printed when the positional arguments are wrong.
const arityMessage = "arguments.length incorrect. Try: template_file  output_dir  public_path"

// ExitError is an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// config is the parsed command line.
type config struct {
	template       string
	outDir         string
	publicDir      string
	vars           []string
	varFiles       []string
	mergeIntoFirst bool
	logLevel       string
	logFormat      string
}

// listFlag collects the values of a repeatable flag.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ", ")
}

func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// parseArgs processes command line arguments. It returns the config, a boolean reporting that
// the program should exit cleanly (help was requested), or an *ExitError.
func parseArgs(args []string, output io.Writer) (*config, bool, error) {
	flagSet := flag.NewFlagSet("stitch", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
stitch - compile an HTML template into a static page.

Usage:
  stitch [options] TEMPLATE OUT_DIR PUBLIC_DIR

Arguments:
  TEMPLATE    template file, e.g. src/index.html
  OUT_DIR     existing directory for index.html and its assets
  PUBLIC_DIR  web root; asset URLs are made relative to it

Options:
`)
		flagSet.PrintDefaults()
	}

	cfg := &config{}
	var vars, varFiles listFlag
	flagSet.Var(&vars, "var", "Set a variable, `name=value`. May be repeated.")
	flagSet.Var(&varFiles, "var-file", "Load variables from an HCL `file`. May be repeated.")
	flagSet.BoolVar(&cfg.mergeIntoFirst, "merge-into-first", false, "Merge repeated sections into their first occurrence instead of head.")
	flagSet.StringVar(&cfg.logLevel, "log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.StringVar(&cfg.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 1, Message: err.Error()}
	}

	if flagSet.NArg() != 3 {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 1, Message: arityMessage}
	}
	cfg.template = flagSet.Arg(0)
	cfg.outDir = flagSet.Arg(1)
	cfg.publicDir = flagSet.Arg(2)
	cfg.vars = vars
	cfg.varFiles = varFiles

	cfg.logFormat = strings.ToLower(cfg.logFormat)
	if cfg.logFormat != "text" && cfg.logFormat != "json" {
		return nil, false, &ExitError{Code: 1, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	cfg.logLevel = strings.ToLower(cfg.logLevel)
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 1, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	return cfg, false, nil
}

// newLogger creates a slog.Logger writing to w.
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
