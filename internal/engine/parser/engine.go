package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

// StatementHandler converts one statement node into zero or more statements.
type StatementHandler func(ctx *ExtractionContext, node *sitter.Node) []ast.Statement

type scope struct {
	name  types.Reference
	class bool
}

// ExtractionContext carries the source and the enclosing declaration scopes while
// a module is converted.
type ExtractionContext struct {
	Source []byte
	Module *ast.Module
	scopes []scope
}

func newExtractionContext(source []byte, module *ast.Module) *ExtractionContext {
	return &ExtractionContext{
		Source: source,
		Module: module,
		scopes: []scope{{name: module.Qualifier}},
	}
}

// ExtractorEngine dispatches the statements of a block to handlers by node kind.
// Kinds without a handler are dropped.
type ExtractorEngine struct {
	handlers map[string]StatementHandler
}

func NewExtractorEngine(handlers map[string]StatementHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Block(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	var out []ast.Statement
	for _, child := range namedChildren(node) {
		if handler, ok := e.handlers[child.Kind()]; ok {
			out = append(out, handler(ctx, child)...)
		}
	}
	return out
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

func (c *ExtractionContext) Location(node *sitter.Node) ast.Location {
	return ast.Location{
		Path:   c.Module.Path,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

// Qualify prefixes name with the innermost enclosing scope.
func (c *ExtractionContext) Qualify(name string) types.Reference {
	return c.scopes[len(c.scopes)-1].name.Append(name)
}

// EnclosingClass is the class whose body is being converted, if the innermost
// scope is one.
func (c *ExtractionContext) EnclosingClass() (types.Reference, bool) {
	top := c.scopes[len(c.scopes)-1]
	return top.name, top.class
}

func (c *ExtractionContext) enter(name types.Reference, class bool) {
	c.scopes = append(c.scopes, scope{name: name, class: class})
}

func (c *ExtractionContext) leave() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// namedChildren lists the named children of node without comments.
func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// childrenAfter lists the named children that follow the anonymous token keyword.
func childrenAfter(node *sitter.Node, keyword string) []*sitter.Node {
	var out []*sitter.Node
	found := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !found {
			found = !child.IsNamed() && child.Kind() == keyword
			continue
		}
		if child.IsNamed() && child.Kind() != "comment" {
			out = append(out, child)
		}
	}
	return out
}
