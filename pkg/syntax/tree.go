// Package syntax turns JavaScript and TypeScript source into a compact,
// tagged syntax tree.
//
// The tree is an arena: every node lives in one slice and refers to its
// children and its enclosing node by index. Parent links are plain indices,
// so walking upward never shares ownership with the tree itself.
package syntax

// Kind tags the syntactic role of a node.
type Kind uint8

const (
	KindOther Kind = iota
	KindProgram
	KindImportStatement
	KindImportClause
	KindNamedImports
	KindNamespaceImport
	KindImportRequireClause
	KindStringLiteral
	KindTemplateString
	KindIdentifier
	KindCallExpression
	KindArguments
	KindImport
	KindError
)

var kindNames = [...]string{
	KindOther:               "other",
	KindProgram:             "program",
	KindImportStatement:     "import_statement",
	KindImportClause:        "import_clause",
	KindNamedImports:        "named_imports",
	KindNamespaceImport:     "namespace_import",
	KindImportRequireClause: "import_require_clause",
	KindStringLiteral:       "string",
	KindTemplateString:      "template_string",
	KindIdentifier:          "identifier",
	KindCallExpression:      "call_expression",
	KindArguments:           "arguments",
	KindImport:              "import",
	KindError:               "ERROR",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// kindOf maps a tree-sitter grammar type onto a Kind.
func kindOf(nodeType string) Kind {
	for k, name := range kindNames {
		if k != int(KindOther) && name == nodeType {
			return Kind(k)
		}
	}
	return KindOther
}

// NodeID indexes a node within its Tree.
type NodeID int32

// NoNode is returned by lookups that find nothing.
const NoNode NodeID = -1

// Node is a single tagged tree node.
type Node struct {
	Kind Kind
	// Type is the grammar type the node was converted from.
	Type string
	// Field is the field name this node occupies in its parent, if any.
	Field string
	// Text is set for string literals (unquoted body) and identifiers.
	Text     string
	Line     uint32
	Parent   NodeID
	Children []NodeID
}

// Tree is an immutable syntax tree for one file.
type Tree struct {
	Path  string
	nodes []Node
}

// Root returns the root node, or NoNode for an empty tree.
func (t *Tree) Root() NodeID {
	if t == nil || len(t.nodes) == 0 {
		return NoNode
	}
	return 0
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Node returns the node for id, or nil when id is out of range.
func (t *Tree) Node(id NodeID) *Node {
	if t == nil || id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Parent returns the enclosing node of id.
func (t *Tree) Parent(id NodeID) NodeID {
	n := t.Node(id)
	if n == nil {
		return NoNode
	}
	return n.Parent
}

// ChildByField returns the first child of id occupying the named field.
func (t *Tree) ChildByField(id NodeID, field string) NodeID {
	n := t.Node(id)
	if n == nil {
		return NoNode
	}
	for _, c := range n.Children {
		if t.nodes[c].Field == field {
			return c
		}
	}
	return NoNode
}

// ChildOfKind returns the first direct child of id with the given kind.
func (t *Tree) ChildOfKind(id NodeID, kind Kind) NodeID {
	n := t.Node(id)
	if n == nil {
		return NoNode
	}
	for _, c := range n.Children {
		if t.nodes[c].Kind == kind {
			return c
		}
	}
	return NoNode
}

// Ancestor follows parent links from id and returns the nearest enclosing
// node of the given kind. The node itself is not considered.
func (t *Tree) Ancestor(id NodeID, kind Kind) NodeID {
	for p := t.Parent(id); p != NoNode; p = t.Parent(p) {
		if t.nodes[p].Kind == kind {
			return p
		}
	}
	return NoNode
}

// Visitor is called for each node during Walk. Returning false skips the
// node's children.
type Visitor func(id NodeID, n *Node) bool

// Walk visits every node of the tree depth-first, starting at the root.
func Walk(t *Tree, visit Visitor) {
	root := t.Root()
	if root == NoNode {
		return
	}
	stack := []NodeID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[id]
		if !visit(id, n) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Builder assembles a Tree node by node. The first node added becomes the
// root and must use NoNode as its parent.
type Builder struct {
	tree *Tree
}

// NewBuilder starts an empty tree for path.
func NewBuilder(path string) *Builder {
	return &Builder{tree: &Tree{Path: path}}
}

// Add appends n under parent and returns its id.
func (b *Builder) Add(parent NodeID, n Node) NodeID {
	id := NodeID(len(b.tree.nodes))
	n.Parent = parent
	n.Children = nil
	b.tree.nodes = append(b.tree.nodes, n)
	if parent != NoNode && int(parent) < len(b.tree.nodes)-1 {
		p := &b.tree.nodes[parent]
		p.Children = append(p.Children, id)
	}
	return id
}

// Tree returns the assembled tree. The builder must not be used afterwards.
func (b *Builder) Tree() *Tree {
	t := b.tree
	b.tree = nil
	return t
}
