package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

// PythonExtractor converts a tree-sitter Python tree into declaration-level
// statements. Bodies of loops, `with` and `try` are kept so declarations inside
// them stay visible.
type PythonExtractor struct {
	engine *ExtractorEngine
}

func NewPythonExtractor() *PythonExtractor {
	x := &PythonExtractor{}
	x.engine = NewExtractorEngine(map[string]StatementHandler{
		"import_statement":      x.importStatement,
		"import_from_statement": x.importFromStatement,
		"class_definition":      x.classDefinition,
		"function_definition":   x.functionDefinition,
		"decorated_definition":  x.decoratedDefinition,
		"expression_statement":  x.expressionStatement,
		"if_statement":          x.ifStatement,
		"return_statement":      x.returnStatement,
		"pass_statement":        x.passStatement,
		"for_statement":         x.conditionalBlocks,
		"while_statement":       x.conditionalBlocks,
		"try_statement":         x.conditionalBlocks,
		"with_statement":        x.withStatement,
	})
	return x
}

// Extract converts root into the statements of module.
func (x *PythonExtractor) Extract(root *sitter.Node, source []byte, module *ast.Module) *ast.Module {
	ctx := newExtractionContext(source, module)
	module.Statements = x.engine.Block(ctx, root)
	return module
}

func (x *PythonExtractor) importStatement(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	imp := &ast.Import{}
	for _, child := range namedChildren(node) {
		if item, ok := x.importItem(ctx, child); ok {
			imp.Imports = append(imp.Imports, item)
		}
	}
	return []ast.Statement{imp}
}

func (x *PythonExtractor) importItem(ctx *ExtractionContext, node *sitter.Node) (ast.ImportItem, bool) {
	switch node.Kind() {
	case "dotted_name", "identifier":
		return ast.ImportItem{Name: types.Reference(ctx.Text(node))}, true
	case "aliased_import":
		return ast.ImportItem{
			Name:  types.Reference(ctx.Text(node.ChildByFieldName("name"))),
			Alias: ctx.Text(node.ChildByFieldName("alias")),
		}, true
	default:
		return ast.ImportItem{}, false
	}
}

func (x *PythonExtractor) importFromStatement(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	imp := &ast.Import{From: x.importSource(ctx, node.ChildByFieldName("module_name"))}
	for _, child := range childrenAfter(node, "import") {
		if item, ok := x.importItem(ctx, child); ok {
			imp.Imports = append(imp.Imports, item)
		}
	}
	if len(imp.Imports) == 0 {
		return nil
	}
	return []ast.Statement{imp}
}

// importSource resolves `from .. import` prefixes against the current module. A
// package's `__init__` counts as the package itself.
func (x *PythonExtractor) importSource(ctx *ExtractionContext, node *sitter.Node) types.Reference {
	text := ctx.Text(node)
	dots := len(text) - len(strings.TrimLeft(text, "."))
	if dots == 0 {
		return types.Reference(text)
	}
	base := ctx.Module.Qualifier
	if !isPackageInit(ctx.Module.Path) {
		base = base.Prefix()
	}
	for i := 1; i < dots; i++ {
		base = base.Prefix()
	}
	return types.Combine(base, types.Reference(text[dots:]))
}

func (x *PythonExtractor) classDefinition(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	return []ast.Statement{x.class(ctx, node, nil)}
}

func (x *PythonExtractor) class(ctx *ExtractionContext, node *sitter.Node, decorators []ast.Expression) *ast.Class {
	class := &ast.Class{
		Name:       ctx.Qualify(ctx.Text(node.ChildByFieldName("name"))),
		Decorators: decorators,
		Location:   ctx.Location(node),
	}
	if superclasses := node.ChildByFieldName("superclasses"); superclasses != nil {
		class.Bases = x.arguments(ctx, superclasses)
	}
	ctx.enter(class.Name, true)
	class.Body = x.engine.Block(ctx, node.ChildByFieldName("body"))
	ctx.leave()
	return class
}

func (x *PythonExtractor) functionDefinition(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	return []ast.Statement{x.function(ctx, node, nil)}
}

func (x *PythonExtractor) function(ctx *ExtractionContext, node *sitter.Node, decorators []ast.Expression) *ast.Define {
	define := &ast.Define{
		Name:       ctx.Qualify(ctx.Text(node.ChildByFieldName("name"))),
		Decorators: decorators,
		Location:   ctx.Location(node),
	}
	if parent, ok := ctx.EnclosingClass(); ok {
		define.Parent = parent
	}
	if first := node.Child(0); first != nil && first.Kind() == "async" {
		define.Async = true
	}
	define.Parameters = x.parameters(ctx, node.ChildByFieldName("parameters"))
	if returns := node.ChildByFieldName("return_type"); returns != nil {
		define.ReturnAnnotation = x.expression(ctx, returns)
	}
	ctx.enter(define.Name, false)
	define.Body = x.engine.Block(ctx, node.ChildByFieldName("body"))
	ctx.leave()
	return define
}

func (x *PythonExtractor) decoratedDefinition(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	var decorators []ast.Expression
	for _, child := range namedChildren(node) {
		if child.Kind() != "decorator" {
			continue
		}
		if inner := namedChildren(child); len(inner) > 0 {
			decorators = append(decorators, x.expression(ctx, inner[0]))
		}
	}
	definition := node.ChildByFieldName("definition")
	if definition == nil {
		return nil
	}
	switch definition.Kind() {
	case "class_definition":
		return []ast.Statement{x.class(ctx, definition, decorators)}
	case "function_definition":
		return []ast.Statement{x.function(ctx, definition, decorators)}
	}
	return nil
}

func (x *PythonExtractor) parameters(ctx *ExtractionContext, node *sitter.Node) []ast.Parameter {
	var out []ast.Parameter
	kind := types.PositionalParameter
	add := func(p ast.Parameter) {
		if p.Kind == types.VariableParameter {
			kind = types.KeywordOnlyParameter
		}
		out = append(out, p)
	}
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "identifier":
			add(ast.Parameter{Name: ctx.Text(child), Kind: kind})
		case "list_splat_pattern", "dictionary_splat_pattern":
			add(x.splatParameter(ctx, child))
		case "typed_parameter":
			var p ast.Parameter
			if inner := namedChildren(child); len(inner) > 0 && inner[0].Kind() != "identifier" {
				p = x.splatParameter(ctx, inner[0])
			} else if len(inner) > 0 {
				p = ast.Parameter{Name: ctx.Text(inner[0]), Kind: kind}
			}
			p.Annotation = x.expression(ctx, child.ChildByFieldName("type"))
			add(p)
		case "default_parameter", "typed_default_parameter":
			p := ast.Parameter{
				Name:  ctx.Text(child.ChildByFieldName("name")),
				Value: x.expression(ctx, child.ChildByFieldName("value")),
				Kind:  kind,
			}
			if annotation := child.ChildByFieldName("type"); annotation != nil {
				p.Annotation = x.expression(ctx, annotation)
			}
			add(p)
		case "keyword_separator":
			kind = types.KeywordOnlyParameter
		case "positional_separator":
			for i := range out {
				if out[i].Kind == types.PositionalParameter {
					out[i].Kind = types.PositionalOnlyParameter
				}
			}
		}
	}
	return out
}

func (x *PythonExtractor) splatParameter(ctx *ExtractionContext, node *sitter.Node) ast.Parameter {
	p := ast.Parameter{Kind: types.VariableParameter}
	if node.Kind() == "dictionary_splat_pattern" {
		p.Kind = types.KeywordsParameter
	}
	if inner := namedChildren(node); len(inner) > 0 {
		p.Name = ctx.Text(inner[0])
	}
	return p
}

func (x *PythonExtractor) expressionStatement(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	children := namedChildren(node)
	if len(children) == 0 {
		return nil
	}
	first := children[0]
	switch first.Kind() {
	case "assignment":
		return x.assignment(ctx, first)
	case "augmented_assignment":
		return nil
	}
	return []ast.Statement{&ast.ExpressionStatement{Expression: x.expression(ctx, first)}}
}

// assignment flattens chained assignments: `a = b = 1` yields one Assign per target.
func (x *PythonExtractor) assignment(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	var targets []*sitter.Node
	current := node
	var annotation *sitter.Node
	for current != nil && current.Kind() == "assignment" {
		targets = append(targets, current.ChildByFieldName("left"))
		if annotation == nil {
			annotation = current.ChildByFieldName("type")
		}
		current = current.ChildByFieldName("right")
	}
	var value ast.Expression
	if current != nil {
		value = x.expression(ctx, current)
	}
	out := make([]ast.Statement, 0, len(targets))
	for _, target := range targets {
		assign := &ast.Assign{Target: x.expression(ctx, target), Value: value, Location: ctx.Location(node)}
		if annotation != nil {
			assign.Annotation = x.expression(ctx, annotation)
		}
		out = append(out, assign)
	}
	return out
}

func (x *PythonExtractor) ifStatement(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	root := &ast.If{
		Test: x.expression(ctx, node.ChildByFieldName("condition")),
		Body: x.engine.Block(ctx, node.ChildByFieldName("consequence")),
	}
	tail := root
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "elif_clause":
			next := &ast.If{
				Test: x.expression(ctx, child.ChildByFieldName("condition")),
				Body: x.engine.Block(ctx, child.ChildByFieldName("consequence")),
			}
			tail.OrElse = []ast.Statement{next}
			tail = next
		case "else_clause":
			tail.OrElse = x.engine.Block(ctx, child.ChildByFieldName("body"))
		}
	}
	return []ast.Statement{root}
}

// conditionalBlocks models loops and `try` as an If whose first block may run and
// whose remaining blocks (else, except, finally) are the alternative.
func (x *PythonExtractor) conditionalBlocks(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	blocks := clauseBlocks(node)
	if len(blocks) == 0 {
		return nil
	}
	conditional := &ast.If{Body: x.engine.Block(ctx, blocks[0])}
	for _, block := range blocks[1:] {
		conditional.OrElse = append(conditional.OrElse, x.engine.Block(ctx, block)...)
	}
	return []ast.Statement{conditional}
}

func (x *PythonExtractor) withStatement(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	return x.engine.Block(ctx, node.ChildByFieldName("body"))
}

// clauseBlocks lists the blocks of a compound statement in source order,
// including those nested one level inside its clauses.
func clauseBlocks(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, child := range namedChildren(node) {
		switch {
		case child.Kind() == "block":
			out = append(out, child)
		case strings.HasSuffix(child.Kind(), "_clause"):
			for _, inner := range namedChildren(child) {
				if inner.Kind() == "block" {
					out = append(out, inner)
				}
			}
		}
	}
	return out
}

func (x *PythonExtractor) returnStatement(ctx *ExtractionContext, node *sitter.Node) []ast.Statement {
	ret := &ast.Return{}
	if children := namedChildren(node); len(children) > 0 {
		ret.Value = x.expression(ctx, children[0])
	}
	return []ast.Statement{ret}
}

func (x *PythonExtractor) passStatement(*ExtractionContext, *sitter.Node) []ast.Statement {
	return []ast.Statement{&ast.Pass{}}
}

func (x *PythonExtractor) arguments(ctx *ExtractionContext, node *sitter.Node) []ast.Argument {
	var out []ast.Argument
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "keyword_argument":
			out = append(out, ast.Argument{
				Keyword: ctx.Text(child.ChildByFieldName("name")),
				Value:   x.expression(ctx, child.ChildByFieldName("value")),
			})
		default:
			out = append(out, ast.Argument{Value: x.expression(ctx, child)})
		}
	}
	return out
}

func (x *PythonExtractor) expressions(ctx *ExtractionContext, nodes []*sitter.Node) []ast.Expression {
	out := make([]ast.Expression, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, x.expression(ctx, node))
	}
	return out
}

func (x *PythonExtractor) expression(ctx *ExtractionContext, node *sitter.Node) ast.Expression {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "identifier":
		return &ast.Name{Identifier: ctx.Text(node)}
	case "attribute":
		return &ast.Attribute{
			Base:      x.expression(ctx, node.ChildByFieldName("object")),
			Attribute: ctx.Text(node.ChildByFieldName("attribute")),
		}
	case "subscript":
		children := namedChildren(node)
		if len(children) == 0 {
			break
		}
		return &ast.Subscript{Base: x.expression(ctx, children[0]), Indices: x.expressions(ctx, children[1:])}
	case "call":
		call := &ast.Call{Callee: x.expression(ctx, node.ChildByFieldName("function"))}
		if arguments := node.ChildByFieldName("arguments"); arguments != nil && arguments.Kind() == "argument_list" {
			call.Arguments = x.arguments(ctx, arguments)
		}
		return call
	case "binary_operator":
		if ctx.Text(node.ChildByFieldName("operator")) == "|" {
			return &ast.BinaryOr{
				Left:  x.expression(ctx, node.ChildByFieldName("left")),
				Right: x.expression(ctx, node.ChildByFieldName("right")),
			}
		}
	case "string", "concatenated_string":
		return &ast.Constant{Kind: ast.StringConstant, Value: stringValue(ctx.Text(node))}
	case "integer":
		return &ast.Constant{Kind: ast.IntegerConstant, Value: ctx.Text(node)}
	case "float":
		return &ast.Constant{Kind: ast.FloatConstant, Value: ctx.Text(node)}
	case "true":
		return &ast.Constant{Kind: ast.TrueConstant}
	case "false":
		return &ast.Constant{Kind: ast.FalseConstant}
	case "none":
		return &ast.Constant{Kind: ast.NoneConstant}
	case "ellipsis":
		return &ast.Constant{Kind: ast.EllipsisConstant}
	case "unary_operator":
		operand := node.ChildByFieldName("argument")
		if operand != nil && (operand.Kind() == "integer" || operand.Kind() == "float") {
			constant := x.expression(ctx, operand).(*ast.Constant)
			return &ast.Constant{Kind: constant.Kind, Value: ctx.Text(node)}
		}
	case "list", "list_pattern":
		return &ast.List{Elements: x.expressions(ctx, namedChildren(node))}
	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return &ast.Tuple{Elements: x.expressions(ctx, namedChildren(node))}
	case "parenthesized_expression", "type":
		if children := namedChildren(node); len(children) == 1 {
			return x.expression(ctx, children[0])
		}
	}
	return &ast.Unknown{Text: ctx.Text(node)}
}

// stringValue strips prefixes and quotes from a literal. Concatenated literals
// keep only their first part.
func stringValue(text string) string {
	text = strings.TrimLeft(text, "rRbBuUfF")
	for _, quote := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, quote) {
			text = text[len(quote):]
			if end := strings.Index(text, quote); end >= 0 {
				return text[:end]
			}
			return text
		}
	}
	return text
}
