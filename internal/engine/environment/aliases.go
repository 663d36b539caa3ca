package environment

import (
	"regexp"
	"strconv"

	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

const maxImportHops = 16

var dottedIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Qualifiers are the typing wrappers that change how a declaration is stored
// rather than its type.
type Qualifiers struct {
	ClassVar bool
	Final    bool
}

type AliasReader interface {
	UnannotatedGlobalReader
	Alias(q Query, ref types.Reference) (types.Type, bool)
	ResolveName(q Query, module types.Reference, ref types.Reference) types.Reference
	ParseAnnotation(q Query, module types.Reference, e ast.Expression) types.Type
	UnwrapQualifiers(q Query, module types.Reference, e ast.Expression) (ast.Expression, Qualifiers)
	Signature(q Query, module types.Reference, define *ast.Define) *types.Callable
}

// AliasEnvironment resolves names through imports and owns annotation parsing.
// Aliases are `X = <type expression>` globals and TypeVar declarations.
type AliasEnvironment struct {
	UnannotatedGlobalReader
	aliases    map[types.Reference]types.Type
	inProgress map[types.Reference]bool
	deps       *DependencyTracker
}

func NewAliasEnvironment(lower UnannotatedGlobalReader) *AliasEnvironment {
	env := &AliasEnvironment{
		UnannotatedGlobalReader: lower,
		aliases:                 make(map[types.Reference]types.Type),
		inProgress:              make(map[types.Reference]bool),
		deps:                    NewDependencyTracker("aliases"),
	}
	for _, qualifier := range lower.Qualifiers() {
		module, ok := lower.Module(Untracked, qualifier)
		if !ok {
			continue
		}
		env.collectAliases(module.Qualifier, module.Statements)
	}
	env.inProgress = nil
	return env
}

func (e *AliasEnvironment) collectAliases(qualifier types.Reference, statements []ast.Statement) {
	for _, stmt := range statements {
		switch s := stmt.(type) {
		case *ast.Assign:
			if name, ok := s.Target.(*ast.Name); ok {
				e.computeAlias(types.Combine(qualifier, types.Reference(name.Identifier)))
			}
		case *ast.If:
			e.collectAliases(qualifier, s.Body)
			e.collectAliases(qualifier, s.OrElse)
		}
	}
}

func (e *AliasEnvironment) computeAlias(ref types.Reference) (types.Type, bool) {
	if t, ok := e.aliases[ref]; ok {
		return t, true
	}
	if e.inProgress == nil || e.inProgress[ref] {
		return nil, false
	}
	global, ok := e.UnannotatedGlobal(Untracked, ref)
	if !ok || global.Kind != SimpleAssignGlobal || global.Value == nil {
		return nil, false
	}
	if global.Annotation != nil && !e.isTypeAliasAnnotation(global.Module, global.Annotation) {
		return nil, false
	}

	e.inProgress[ref] = true
	defer delete(e.inProgress, ref)

	var alias types.Type
	switch value := global.Value.(type) {
	case *ast.Call:
		callee, ok := ast.NameToReference(value.Callee)
		if !ok || e.ResolveName(Untracked, global.Module, callee) != "typing.TypeVar" {
			return nil, false
		}
		alias = e.parseTypeVariable(global.Module, ref, value)
	case *ast.Name, *ast.Attribute, *ast.Subscript, *ast.BinaryOr:
		alias = e.ParseAnnotation(Untracked, global.Module, value)
	default:
		return nil, false
	}
	if types.IsUntyped(alias) {
		return nil, false
	}
	e.aliases[ref] = alias
	return alias, true
}

func (e *AliasEnvironment) isTypeAliasAnnotation(module types.Reference, annotation ast.Expression) bool {
	ref, ok := ast.NameToReference(annotation)
	return ok && e.ResolveName(Untracked, module, ref) == "typing.TypeAlias"
}

func (e *AliasEnvironment) parseTypeVariable(module types.Reference, ref types.Reference, call *ast.Call) types.Type {
	variable := &types.Variable{Name: string(ref)}
	for i, arg := range call.Arguments {
		switch {
		case arg.Keyword == "bound":
			variable.Bound = e.ParseAnnotation(Untracked, module, arg.Value)
		case arg.Keyword == "covariant" && isTrue(arg.Value):
			variable.Variance = types.Covariant
		case arg.Keyword == "contravariant" && isTrue(arg.Value):
			variable.Variance = types.Contravariant
		case arg.Keyword == "" && i > 0:
			variable.Constraints = append(variable.Constraints, e.ParseAnnotation(Untracked, module, arg.Value))
		}
	}
	return variable
}

func isTrue(e ast.Expression) bool {
	c, ok := e.(*ast.Constant)
	return ok && c.Kind == ast.TrueConstant
}

func (e *AliasEnvironment) Alias(q Query, ref types.Reference) (types.Type, bool) {
	e.deps.Record(q, string(ref))
	if e.inProgress != nil {
		return e.computeAlias(ref)
	}
	t, ok := e.aliases[ref]
	return t, ok
}

// ResolveName qualifies ref as seen from module and follows import chains.
func (e *AliasEnvironment) ResolveName(q Query, module types.Reference, ref types.Reference) types.Reference {
	head := ref.Take(1)
	current := ref
	if _, ok := e.UnannotatedGlobal(q, types.Combine(module, head)); ok {
		current = types.Combine(module, ref)
	}
	for hop := 0; hop < maxImportHops; hop++ {
		next, changed := e.followImport(q, current)
		if !changed {
			break
		}
		current = next
	}
	return current
}

func (e *AliasEnvironment) followImport(q Query, ref types.Reference) (types.Reference, bool) {
	for n := ref.Length(); n >= 1; n-- {
		prefix := ref.Take(n)
		global, ok := e.UnannotatedGlobal(q, prefix)
		if ok && global.Kind == ImportedGlobal && global.Original != prefix {
			return types.Combine(global.Original, ref.Drop(n)), true
		}
	}
	return ref, false
}

// ParseAnnotation converts an annotation expression written in module into a Type.
// Unresolvable annotations become Top.
func (e *AliasEnvironment) ParseAnnotation(q Query, module types.Reference, expr ast.Expression) types.Type {
	switch x := expr.(type) {
	case nil:
		return types.Top
	case *ast.Constant:
		switch x.Kind {
		case ast.NoneConstant:
			return types.NoneType
		case ast.StringConstant:
			if dottedIdentifier.MatchString(x.Value) {
				return e.ParseAnnotation(q, module, ast.Ref(x.Value))
			}
		}
		return types.Top
	case *ast.Name, *ast.Attribute:
		ref, _ := ast.NameToReference(x)
		return e.parseReference(q, module, ref)
	case *ast.Subscript:
		return e.parseSubscript(q, module, x)
	case *ast.BinaryOr:
		return types.NewUnion(e.ParseAnnotation(q, module, x.Left), e.ParseAnnotation(q, module, x.Right))
	default:
		return types.Top
	}
}

func (e *AliasEnvironment) parseReference(q Query, module types.Reference, ref types.Reference) types.Type {
	resolved := e.ResolveName(q, module, ref)
	switch resolved {
	case "typing.Any":
		return types.Any
	case "None", "NoneType":
		return types.NoneType
	case "typing.Callable", "collections.abc.Callable":
		return &types.Callable{Implementation: types.Signature{Undefined: true, Annotation: types.Any}}
	}
	if name, ok := typingBuiltinAliases[resolved]; ok {
		return types.NewPrimitive(name)
	}
	if alias, ok := e.Alias(q, resolved); ok {
		return alias
	}
	if _, ok := e.ClassDefinition(q, string(resolved)); ok {
		return types.NewPrimitive(string(resolved))
	}
	return types.Top
}

var typingBuiltinAliases = map[types.Reference]string{
	"typing.List":      "list",
	"typing.Dict":      "dict",
	"typing.Set":       "set",
	"typing.FrozenSet": "frozenset",
	"typing.Tuple":     "tuple",
	"typing.Type":      "type",
}

func (e *AliasEnvironment) parseSubscript(q Query, module types.Reference, s *ast.Subscript) types.Type {
	baseRef, ok := ast.NameToReference(s.Base)
	if !ok {
		return types.Top
	}
	base := e.ResolveName(q, module, baseRef)
	parseAll := func(list []ast.Expression) []types.Type {
		out := make([]types.Type, 0, len(list))
		for _, item := range list {
			out = append(out, e.ParseAnnotation(q, module, item))
		}
		return out
	}

	switch base {
	case "typing.Optional":
		if len(s.Indices) != 1 {
			return types.Top
		}
		return types.NewOptional(e.ParseAnnotation(q, module, s.Indices[0]))
	case "typing.Union":
		return types.NewUnion(parseAll(s.Indices)...)
	case "typing.ClassVar", "typing.Final", "typing.Annotated":
		if len(s.Indices) == 0 {
			return types.Top
		}
		return e.ParseAnnotation(q, module, s.Indices[0])
	case "typing.Callable", "collections.abc.Callable":
		return e.parseCallable(q, module, s.Indices)
	case "typing.Tuple", "tuple":
		return e.parseTuple(q, module, s.Indices)
	case "typing.Type", "type":
		if len(s.Indices) != 1 {
			return types.Top
		}
		return types.NewMeta(e.ParseAnnotation(q, module, s.Indices[0]))
	}

	arguments := parseAll(s.Indices)
	if name, ok := typingBuiltinAliases[base]; ok {
		return types.NewParametric(name, arguments...)
	}
	if alias, ok := e.Alias(q, base); ok {
		switch a := alias.(type) {
		case *types.Primitive:
			return types.NewParametric(a.Name, arguments...)
		default:
			free := types.FreeVariables(alias)
			if len(free) != len(arguments) {
				return alias
			}
			replacements := make(map[string]types.Type, len(free))
			for i, v := range free {
				replacements[v.Name] = arguments[i]
			}
			return types.Substitute(alias, replacements)
		}
	}
	if _, ok := e.ClassDefinition(q, string(base)); ok {
		return types.NewParametric(string(base), arguments...)
	}
	return types.Top
}

func (e *AliasEnvironment) parseCallable(q Query, module types.Reference, indices []ast.Expression) types.Type {
	if len(indices) != 2 {
		return &types.Callable{Implementation: types.Signature{Undefined: true, Annotation: types.Any}}
	}
	signature := types.Signature{Annotation: e.ParseAnnotation(q, module, indices[1])}
	switch params := indices[0].(type) {
	case *ast.List:
		for i, param := range params.Elements {
			signature.Parameters = append(signature.Parameters, types.Parameter{
				Name:       positionalName(i),
				Annotation: e.ParseAnnotation(q, module, param),
				Kind:       types.PositionalOnlyParameter,
			})
		}
		if signature.Parameters == nil {
			signature.Parameters = []types.Parameter{}
		}
	default:
		signature.Undefined = true
	}
	return &types.Callable{Implementation: signature}
}

func positionalName(i int) string {
	return "__" + strconv.Itoa(i)
}

func (e *AliasEnvironment) parseTuple(q Query, module types.Reference, indices []ast.Expression) types.Type {
	if len(indices) == 2 {
		if c, ok := indices[1].(*ast.Constant); ok && c.Kind == ast.EllipsisConstant {
			return types.NewUnboundedTuple(e.ParseAnnotation(q, module, indices[0]))
		}
	}
	if len(indices) == 1 {
		if t, ok := indices[0].(*ast.Tuple); ok && len(t.Elements) == 0 {
			return types.NewTuple()
		}
	}
	elements := make([]types.Type, 0, len(indices))
	for _, index := range indices {
		elements = append(elements, e.ParseAnnotation(q, module, index))
	}
	return types.NewTuple(elements...)
}

// UnwrapQualifiers strips ClassVar/Final wrappers. A bare `Final` returns a nil expression.
func (e *AliasEnvironment) UnwrapQualifiers(q Query, module types.Reference, expr ast.Expression) (ast.Expression, Qualifiers) {
	var qualifiers Qualifiers
	for expr != nil {
		var ref types.Reference
		var inner ast.Expression
		switch x := expr.(type) {
		case *ast.Subscript:
			base, ok := ast.NameToReference(x.Base)
			if !ok || len(x.Indices) == 0 {
				return expr, qualifiers
			}
			ref = e.ResolveName(q, module, base)
			inner = x.Indices[0]
		case *ast.Name, *ast.Attribute:
			base, _ := ast.NameToReference(x)
			ref = e.ResolveName(q, module, base)
		default:
			return expr, qualifiers
		}
		switch ref {
		case "typing.ClassVar":
			qualifiers.ClassVar = true
		case "typing.Final":
			qualifiers.Final = true
		default:
			return expr, qualifiers
		}
		expr = inner
	}
	return nil, qualifiers
}

// Signature builds the undecorated callable type of define.
func (e *AliasEnvironment) Signature(q Query, module types.Reference, define *ast.Define) *types.Callable {
	parameters := make([]types.Parameter, 0, len(define.Parameters))
	for _, p := range define.Parameters {
		annotation := types.Top
		if p.Annotation != nil {
			annotation = e.ParseAnnotation(q, module, p.Annotation)
		}
		parameters = append(parameters, types.Parameter{
			Name:       p.Name,
			Annotation: annotation,
			Default:    p.Value != nil,
			Kind:       p.Kind,
		})
	}
	returns := types.Top
	if define.ReturnAnnotation != nil {
		returns = e.ParseAnnotation(q, module, define.ReturnAnnotation)
	}
	if define.Async {
		returns = types.NewParametric("typing.Awaitable", returns)
	}
	return types.NewCallable(define.Name, parameters, returns)
}

func (e *AliasEnvironment) tracker() *DependencyTracker { return e.deps }
