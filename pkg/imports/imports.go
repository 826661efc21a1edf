// Package imports recovers the module specifiers referenced by import-like
// constructs in a syntax tree.
package imports

import (
	"sort"

	"github.com/akak/unused-dep/pkg/syntax"
)

// Options controls which constructs count as references.
type Options struct {
	// CallExpressions also records require("x") and import("x") calls
	// whose only argument is a string literal.
	CallExpressions bool
}

// BindingsKind is the variant of an import clause's bindings.
type BindingsKind int

const (
	BindingsNone BindingsKind = iota
	BindingsNamed
	BindingsNamespace
)

// Bindings holds the single bindings variant of an import clause and the
// node carrying it.
type Bindings struct {
	Kind BindingsKind
	Node syntax.NodeID
}

// ClauseBindings classifies the bindings of an import clause. A clause holds
// at most one of a named list or a namespace alias.
func ClauseBindings(t *syntax.Tree, clause syntax.NodeID) Bindings {
	n := t.Node(clause)
	if n == nil {
		return Bindings{Kind: BindingsNone, Node: syntax.NoNode}
	}
	for _, c := range n.Children {
		switch t.Node(c).Kind {
		case syntax.KindNamedImports:
			return Bindings{Kind: BindingsNamed, Node: c}
		case syntax.KindNamespaceImport:
			return Bindings{Kind: BindingsNamespace, Node: c}
		}
	}
	return Bindings{Kind: BindingsNone, Node: syntax.NoNode}
}

// Extract returns the distinct module references in t, sorted.
func Extract(t *syntax.Tree, opts Options) []string {
	seen := make(map[string]struct{})
	Collect(t, opts, func(ref string) {
		seen[ref] = struct{}{}
	})
	out := make([]string, 0, len(seen))
	for ref := range seen {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

// Collect walks t and calls sink for every module reference found. A
// reference may be reported more than once.
func Collect(t *syntax.Tree, opts Options, sink func(string)) {
	emit := func(ref string) {
		if ref != "" {
			sink(ref)
		}
	}

	syntax.Walk(t, func(id syntax.NodeID, n *syntax.Node) bool {
		switch n.Kind {
		case syntax.KindImportStatement:
			// import "pkg"
			if t.ChildOfKind(id, syntax.KindImportClause) == syntax.NoNode &&
				t.ChildOfKind(id, syntax.KindImportRequireClause) == syntax.NoNode {
				emit(literal(t, statementSource(t, id)))
			}
		case syntax.KindImportClause:
			emit(clauseModule(t, id))
		case syntax.KindImportRequireClause:
			// import x = require("pkg")
			src := t.ChildByField(id, "source")
			if src == syntax.NoNode {
				src = t.ChildOfKind(id, syntax.KindStringLiteral)
			}
			emit(literal(t, src))
		case syntax.KindCallExpression:
			if opts.CallExpressions {
				emit(callModule(t, id))
			}
		}
		return true
	})
}

// clauseModule resolves the module an import clause binds from.
func clauseModule(t *syntax.Tree, clause syntax.NodeID) string {
	b := ClauseBindings(t, clause)
	switch b.Kind {
	case BindingsNamed, BindingsNamespace:
		return enclosingModule(t, b.Node)
	case BindingsNone:
		// import def from "pkg"
		if t.ChildOfKind(clause, syntax.KindIdentifier) == syntax.NoNode {
			return ""
		}
		return enclosingModule(t, clause)
	}
	return ""
}

// enclosingModule walks from a bindings node up to its import statement and
// returns the statement's literal specifier.
func enclosingModule(t *syntax.Tree, id syntax.NodeID) string {
	stmt := t.Ancestor(id, syntax.KindImportStatement)
	if stmt == syntax.NoNode {
		return ""
	}
	return literal(t, statementSource(t, stmt))
}

func statementSource(t *syntax.Tree, stmt syntax.NodeID) syntax.NodeID {
	if src := t.ChildByField(stmt, "source"); src != syntax.NoNode {
		return src
	}
	return t.ChildOfKind(stmt, syntax.KindStringLiteral)
}

// literal returns the text of a string literal node, or "" for anything else.
func literal(t *syntax.Tree, id syntax.NodeID) string {
	n := t.Node(id)
	if n == nil || n.Kind != syntax.KindStringLiteral {
		return ""
	}
	return n.Text
}

// callModule handles require("pkg") and import("pkg").
func callModule(t *syntax.Tree, call syntax.NodeID) string {
	fn := t.Node(t.ChildByField(call, "function"))
	if fn == nil {
		return ""
	}
	isRequire := fn.Kind == syntax.KindIdentifier && fn.Text == "require"
	if !isRequire && fn.Kind != syntax.KindImport {
		return ""
	}

	args := t.Node(t.ChildByField(call, "arguments"))
	if args == nil || len(args.Children) != 1 {
		return ""
	}
	return literal(t, args.Children[0])
}
