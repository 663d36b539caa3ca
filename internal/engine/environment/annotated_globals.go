package environment

import (
	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

// GlobalInfo is a resolved module-level binding.
type GlobalInfo struct {
	Annotation types.Annotation
	Location   ast.Location
}

type AnnotatedGlobalReader interface {
	ClassMetadataReader
	Global(q Query, ref types.Reference) (GlobalInfo, bool)
	UndecoratedSignature(q Query, ref types.Reference) (*types.Callable, bool)
}

type AnnotatedGlobalEnvironment struct {
	ClassMetadataReader
	deps *DependencyTracker
}

func NewAnnotatedGlobalEnvironment(lower ClassMetadataReader) *AnnotatedGlobalEnvironment {
	return &AnnotatedGlobalEnvironment{
		ClassMetadataReader: lower,
		deps:                NewDependencyTracker("annotated_globals"),
	}
}

// Global resolves ref in the global symbol table. Every global is an immutable,
// global-scope annotation.
func (e *AnnotatedGlobalEnvironment) Global(q Query, ref types.Reference) (GlobalInfo, bool) {
	e.deps.Record(q, string(ref))
	for hop := 0; hop < maxImportHops; hop++ {
		global, ok := e.UnannotatedGlobal(q, ref)
		if !ok {
			return GlobalInfo{}, false
		}
		switch global.Kind {
		case ImportedGlobal:
			ref = global.Original
			continue
		case ClassGlobal:
			meta := types.NewMeta(types.NewPrimitive(string(global.Class.Name)))
			return GlobalInfo{Annotation: types.NewImmutableAnnotation(meta, types.GlobalScope, false), Location: global.Location}, true
		case DefineGlobal:
			callable := e.overloadedSignature(q, global)
			return GlobalInfo{Annotation: types.NewImmutableAnnotation(callable, types.GlobalScope, false), Location: global.Location}, true
		default:
			annotation := e.assignmentAnnotation(q, ref, global)
			return GlobalInfo{Annotation: annotation, Location: global.Location}, true
		}
	}
	return GlobalInfo{}, false
}

func (e *AnnotatedGlobalEnvironment) assignmentAnnotation(q Query, ref types.Reference, global UnannotatedGlobal) types.Annotation {
	if global.Annotation != nil {
		inner, qualifiers := e.UnwrapQualifiers(q, global.Module, global.Annotation)
		declared := InferLiteral(global.Value)
		if inner != nil {
			declared = e.ParseAnnotation(q, global.Module, inner)
		}
		return types.NewImmutableAnnotation(declared, types.GlobalScope, qualifiers.Final)
	}
	if alias, ok := e.Alias(q, ref); ok {
		if _, isVariable := alias.(*types.Variable); !isVariable {
			return types.NewImmutableAnnotation(types.NewMeta(alias), types.GlobalScope, false)
		}
	}
	return types.NewImmutableAnnotation(InferLiteral(global.Value), types.GlobalScope, false)
}

func (e *AnnotatedGlobalEnvironment) overloadedSignature(q Query, global UnannotatedGlobal) *types.Callable {
	var implementation *types.Callable
	var overloads []types.Signature
	for _, define := range global.Defines {
		signature := e.Signature(q, global.Module, define)
		if define.HasDecorator("typing.overload", "overload") {
			overloads = append(overloads, signature.Implementation)
			continue
		}
		implementation = signature
	}
	if implementation == nil {
		implementation = e.Signature(q, global.Module, global.Defines[len(global.Defines)-1])
	}
	implementation.Overloads = overloads
	return implementation
}

// UndecoratedSignature is the signature of a module-level function ignoring decorators.
func (e *AnnotatedGlobalEnvironment) UndecoratedSignature(q Query, ref types.Reference) (*types.Callable, bool) {
	e.deps.Record(q, string(ref))
	global, ok := e.UnannotatedGlobal(q, ref)
	if !ok || global.Kind != DefineGlobal {
		return nil, false
	}
	return e.overloadedSignature(q, global), true
}

// InferLiteral types a literal expression; anything else is Top.
func InferLiteral(expr ast.Expression) types.Type {
	c, ok := expr.(*ast.Constant)
	if !ok {
		return types.Top
	}
	switch c.Kind {
	case ast.IntegerConstant:
		return types.NewPrimitive("int")
	case ast.FloatConstant:
		return types.NewPrimitive("float")
	case ast.StringConstant:
		return types.NewPrimitive("str")
	case ast.TrueConstant, ast.FalseConstant:
		return types.NewPrimitive("bool")
	case ast.NoneConstant:
		return types.NoneType
	case ast.EllipsisConstant:
		return types.NewPrimitive("ellipsis")
	default:
		return types.Top
	}
}

func (e *AnnotatedGlobalEnvironment) tracker() *DependencyTracker { return e.deps }
