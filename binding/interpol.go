package binding

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

const (
	eof           rune = -1
	leftDelim          = "{{"
	rightDelim         = "}}"
	rawLeftDelim       = "{{{"
	rawRightDelim      = "}}}"
	escapeChar         = '\\'
)

var (
	// ErrUnboundVariable is wrapped by UnboundVariableError.
	ErrUnboundVariable = errors.New("unbound variable")

	// ErrSyntax is returned for malformed placeholders.
	ErrSyntax = errors.New("placeholder syntax error")
)

// UnboundVariableError reports a placeholder that references a name with no binding.
type UnboundVariableError struct {
	Name string
	// Placeholder is the source text between the delimiters.
	Placeholder string
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("%q not defined in {{%s}}", e.Name, e.Placeholder)
}

func (e *UnboundVariableError) Unwrap() error {
	return ErrUnboundVariable
}

// Interpolate substitutes every {{expr}} and {{{expr}}} placeholder in s using vars.
// The output of {{expr}} is HTML-escaped, {{{expr}}} is inserted as is, \{{ is not a placeholder.
// A placeholder holding a name or a dotted path ({{page-title}}, {{site.name}}) is looked up in
// vars directly; anything else is evaluated as an expr-lang expression. Referencing a name that
// has no binding fails with an *UnboundVariableError, so no placeholder can silently render empty.
func Interpolate(s string, vars Bindings) (string, error) {
	l := &lexer{
		input: s,
		items: make([]item, 0),
	}

	for state := lexText; state != nil; {
		state = state(l)
	}

	env := map[string]any(vars)
	if env == nil {
		env = map[string]any{}
	}

	var sb strings.Builder
	sb.Grow(len(s))

loop:
	for _, it := range l.items {
		switch it.typ {
		case itemError:
			return "", fmt.Errorf("%w: %s", ErrSyntax, it.val)
		case itemEOF:
			break loop
		case itemText:
			sb.WriteString(it.val)
		case itemExpr, itemRawExpr:
			v, err := eval(it.val, env)
			if err != nil {
				return "", err
			}
			if it.typ == itemExpr {
				v = html.EscapeString(v)
			}
			sb.WriteString(v)
		}
	}

	return sb.String(), nil
}

// Unescape turns escaped \{{ delimiters into literal {{. Interpolate leaves escaped delimiters
// untouched, so a document can go through any number of binding passes before the escapes are
// finally removed.
func Unescape(s string) string {
	return strings.ReplaceAll(s, string(escapeChar)+leftDelim, leftDelim)
}

// Placeholders returns the source text of every placeholder in s, in order.
func Placeholders(s string) []string {
	l := &lexer{input: s}
	for state := lexText; state != nil; {
		state = state(l)
	}
	var out []string
	for _, it := range l.items {
		if it.typ == itemExpr || it.typ == itemRawExpr {
			out = append(out, it.val)
		}
	}
	return out
}

// pathRe matches a plain name or a dotted path of names. Names may contain any character that
// is not whitespace or punctuation, hyphens included, so "main-app_js" is one name.
var pathRe = regexp.MustCompile("^[^\\s!\"#%-,./;->@\\[-^`{-~]+(\\.[^\\s!\"#%-,./;->@\\[-^`{-~]+)*$")

func eval(code string, env map[string]any) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty placeholder", ErrSyntax)
	}
	if pathRe.MatchString(trimmed) && !isLiteral(trimmed) {
		v, err := lookup(trimmed, env, code)
		if err != nil {
			return "", err
		}
		return format(v), nil
	}

	prog, err := expr.Compile(code, expr.Env(env))
	if err != nil {
		if name := firstUnknownName(code, env); name != "" {
			return "", &UnboundVariableError{Name: name, Placeholder: code}
		}
		return "", fmt.Errorf("%w: {{%s}}: %v", ErrSyntax, code, err)
	}

	res, err := expr.Run(prog, env)
	if err != nil {
		return "", fmt.Errorf("eval {{%s}}: %w", code, err)
	}
	return format(res), nil
}

// isLiteral reports whether path is a number or a constant rather than a name.
func isLiteral(path string) bool {
	switch path {
	case "true", "false", "nil":
		return true
	}
	if path[0] < '0' || path[0] > '9' {
		return false
	}
	_, err := strconv.ParseFloat(path, 64)
	return err == nil
}

// lookup resolves a dotted path against env, descending into nested maps.
func lookup(path string, env map[string]any, code string) (any, error) {
	names := strings.Split(path, ".")
	v, ok := env[names[0]]
	if !ok {
		return nil, &UnboundVariableError{Name: names[0], Placeholder: code}
	}
	for i, name := range names[1:] {
		var m map[string]any
		switch t := v.(type) {
		case map[string]any:
			m = t
		case Bindings:
			m = t
		}
		if v, ok = m[name]; !ok {
			return nil, &UnboundVariableError{Name: strings.Join(names[:i+2], "."), Placeholder: code}
		}
	}
	return v, nil
}

func format(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// firstUnknownName returns the first identifier of the expression that has no value in env.
func firstUnknownName(code string, env map[string]any) string {
	tree, err := parser.Parse(code)
	if err != nil {
		return ""
	}
	v := &identCollector{env: env}
	ast.Walk(&tree.Node, v)
	return v.missing
}

type identCollector struct {
	env     map[string]any
	missing string
}

func (v *identCollector) Visit(node *ast.Node) {
	if v.missing != "" {
		return
	}
	if id, ok := (*node).(*ast.IdentifierNode); ok {
		if _, ok := v.env[id.Value]; !ok {
			v.missing = id.Value
		}
	}
}

// Implementation of the lexer based on https://go.dev/talks/2011/lex.slide

// lexer holds the state of the scanner.
type lexer struct {
	input string // the string being scanned
	start int    // start position of this item.
	pos   int    // current position in the input.
	width int    // width of last rune read from input.
	right string // right delimiter of the placeholder being scanned
	items []item
}

// emit passes an item back to the client.
func (l *lexer) emit(t itemType) stateFn {
	l.items = append(l.items, item{t, l.input[l.start:l.pos]})
	l.start = l.pos
	return nil
}

// errorf returns an error token and terminates the scan
// by passing back a nil pointer that will be the next
// state, terminating l.run.
func (l *lexer) errorf(format string, args ...interface{}) stateFn {
	l.items = append(l.items, item{
		itemError,
		fmt.Sprintf(format, args...),
	})
	return nil
}

func (l *lexer) scanString(quote rune) bool {
	for ch := l.next(); ch != quote; ch = l.next() {
		if ch == '\n' || ch == eof {
			return false
		}
		if ch == '\\' {
			l.next()
		}
	}
	return true
}

// next returns the next rune in the input.
func (l *lexer) next() (r rune) {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, l.width = utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += l.width
	return r
}

// ignore skips over the pending input before this point.
func (l *lexer) ignore() {
	l.start = l.pos
}

func lexText(l *lexer) stateFn {
	for {
		x := strings.Index(l.input[l.pos:], leftDelim)
		if x < 0 {
			break
		}
		if x > 0 && l.input[l.pos+x-1] == escapeChar {
			// \{{ is kept verbatim as text
			l.pos += x + len(leftDelim)
			continue
		}
		l.pos += x
		if l.pos > l.start {
			l.emit(itemText)
		}
		return lexLeftDelim
	}
	l.pos = len(l.input)
	// Correctly reached EOF.
	if l.pos > l.start {
		l.emit(itemText)
	}
	return l.emit(itemEOF)
}

func lexLeftDelim(l *lexer) stateFn {
	if strings.HasPrefix(l.input[l.pos:], rawLeftDelim) {
		l.pos += len(rawLeftDelim)
		l.right = rawRightDelim
	} else {
		l.pos += len(leftDelim)
		l.right = rightDelim
	}
	l.ignore()
	return lexExpr // Now inside {{ }}.
}

func lexRightDelim(l *lexer) stateFn {
	l.pos += len(l.right)
	l.ignore()
	return lexText
}

func lexExpr(l *lexer) stateFn {
	if strings.HasPrefix(l.input[l.pos:], l.right) {
		if l.right == rawRightDelim {
			l.emit(itemRawExpr)
		} else {
			l.emit(itemExpr)
		}
		return lexRightDelim
	}
	switch r := l.next(); {
	case r == eof:
		return l.errorf("unclosed placeholder")
	case r == '\'' || r == '"':
		if !l.scanString(r) {
			return l.errorf("unterminated string")
		}
	}
	return lexExpr
}

type itemType int

const (
	itemError itemType = iota
	itemEOF
	itemText
	itemExpr
	itemRawExpr
)

type item struct {
	typ itemType
	val string
}

// stateFn represents the state of the scanner
// as a function that returns the next state.
type stateFn func(*lexer) stateFn
