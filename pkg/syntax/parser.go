package syntax

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrUnsupportedLanguage is returned when a file's extension has no grammar.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language represents a supported source language.
type Language string

const (
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
	LangUnknown    Language = "unknown"
)

// DetectLanguage determines the language from a file path.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return LangTypeScript
	case ".tsx", ".jsx":
		return LangTSX
	case ".js", ".mjs", ".cjs":
		return LangJavaScript
	default:
		return LangUnknown
	}
}

func grammar(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
}

// ParseError reports source that does not parse under its grammar.
type ParseError struct {
	Path   string
	Line   uint32
	Column uint32
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: parse error: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// fields lists the grammar fields the tree keeps, by parent type.
var fields = map[string][]string{
	"import_statement":      {"source"},
	"import_require_clause": {"source"},
	"call_expression":       {"function", "arguments"},
}

// Parser wraps a tree-sitter parser. A Parser is not safe for concurrent
// use; create one per worker.
type Parser struct {
	parser *sitter.Parser
}

// New creates a new parser instance.
func New() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// Parse converts source into a Tree. Source containing syntax errors
// yields a *ParseError.
func (p *Parser) Parse(source []byte, lang Language, path string) (*Tree, error) {
	tsLang, err := grammar(lang)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	p.parser.SetLanguage(tsLang)
	raw, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	root := raw.RootNode()
	if root == nil {
		return nil, &ParseError{Path: path, Err: errors.New("empty syntax tree")}
	}
	if root.HasError() {
		line, col := firstError(root)
		return nil, &ParseError{Path: path, Line: line, Column: col}
	}

	b := NewBuilder(path)
	convert(b, NoNode, "", root, source)
	return b.Tree(), nil
}

// convert copies the named nodes under n into the builder.
func convert(b *Builder, parent NodeID, field string, n *sitter.Node, source []byte) {
	nodeType := n.Type()
	node := Node{
		Kind:  kindOf(nodeType),
		Type:  nodeType,
		Field: field,
		Line:  n.StartPoint().Row + 1,
	}
	switch node.Kind {
	case KindStringLiteral:
		node.Text = unescape(trimQuotes(nodeText(n, source)))
	case KindIdentifier:
		node.Text = nodeText(n, source)
	}
	id := b.Add(parent, node)

	if node.Kind == KindStringLiteral || node.Kind == KindTemplateString {
		return
	}

	named := fields[nodeType]
	for i := range int(n.NamedChildCount()) {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		convert(b, id, fieldOf(n, child, named), child, source)
	}
}

// fieldOf reports which of the candidate fields of parent holds child.
func fieldOf(parent, child *sitter.Node, candidates []string) string {
	for _, name := range candidates {
		fc := parent.ChildByFieldName(name)
		if fc == nil {
			continue
		}
		if fc.StartByte() == child.StartByte() && fc.EndByte() == child.EndByte() && fc.Type() == child.Type() {
			return name
		}
	}
	return ""
}

// firstError locates the first ERROR or missing node, 1-based.
func firstError(root *sitter.Node) (uint32, uint32) {
	var line, col uint32
	found := false
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if found || n == nil {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			pt := n.StartPoint()
			line, col = pt.Row+1, pt.Column+1
			found = true
			return
		}
		if !n.HasError() {
			return
		}
		for i := range int(n.ChildCount()) {
			visit(n.Child(i))
		}
	}
	visit(root)
	if !found {
		pt := root.StartPoint()
		return pt.Row + 1, pt.Column + 1
	}
	return line, col
}

// nodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func nodeText(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	start := n.StartByte()
	end := n.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// trimQuotes removes surrounding quotes from a string.
func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') ||
			(s[0] == '\'' && s[len(s)-1] == '\'') ||
			(s[0] == '`' && s[len(s)-1] == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// unescape decodes the escape sequences of a string literal body. Malformed
// sequences are kept as written.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case 'x':
			if r, ok := hexRune(s, i+1, i+3); ok {
				b.WriteRune(r)
				i += 2
			} else {
				b.WriteString(`\x`)
			}
		case 'u':
			r, next, ok := unicodeEscape(s, i+1)
			if !ok {
				b.WriteString(`\u`)
				continue
			}
			i = next - 1
			if utf16.IsSurrogate(r) && strings.HasPrefix(s[next:], `\u`) {
				if low, after, ok := unicodeEscape(s, next+2); ok {
					if pair := utf16.DecodeRune(r, low); pair != utf8.RuneError {
						r = pair
						i = after - 1
					}
				}
			}
			b.WriteRune(r)
		default:
			_, size := utf8.DecodeRuneInString(s[i:])
			b.WriteString(s[i : i+size])
			i += size - 1
		}
	}
	return b.String()
}

// unicodeEscape decodes the body of a \u escape starting at s[start]:
// either four hex digits or a braced code point. It returns the rune and
// the index just past the escape.
func unicodeEscape(s string, start int) (rune, int, bool) {
	if start < len(s) && s[start] == '{' {
		end := strings.IndexByte(s[start:], '}')
		if end < 2 {
			return 0, 0, false
		}
		r, ok := hexRune(s, start+1, start+end)
		if !ok || r > unicode.MaxRune {
			return 0, 0, false
		}
		return r, start + end + 1, true
	}
	r, ok := hexRune(s, start, start+4)
	return r, start + 4, ok
}

func hexRune(s string, from, to int) (rune, bool) {
	if to > len(s) || from >= to {
		return 0, false
	}
	v, err := strconv.ParseUint(s[from:to], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}
