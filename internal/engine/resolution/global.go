// Package resolution is the query surface of the type-resolution core: the
// GlobalResolution facade over the environment stack and the per-program-point
// local Resolution.
package resolution

import (
	"typecore/internal/engine/ast"
	"typecore/internal/engine/attributes"
	"typecore/internal/engine/environment"
	"typecore/internal/engine/order"
	"typecore/internal/engine/types"
)

// DefaultWideningThreshold is the number of fixpoint iterations Widen joins
// before giving up at Top.
const DefaultWideningThreshold = 3

// GlobalResolution combines the environment stack with the definition cache and the
// attribute resolver. Every read is recorded under the facade's query, so a facade
// obtained from WithDependency records edges at every layer it crosses.
type GlobalResolution struct {
	stack             *environment.Stack
	definitions       *environment.DefinitionCache
	attributes        *attributes.Resolver
	query             environment.Query
	wideningThreshold int
}

type Option func(*GlobalResolution)

func WithWideningThreshold(threshold int) Option {
	return func(g *GlobalResolution) {
		if threshold > 0 {
			g.wideningThreshold = threshold
		}
	}
}

func NewGlobalResolution(stack *environment.Stack, definitions *environment.DefinitionCache, resolver *attributes.Resolver, opts ...Option) *GlobalResolution {
	g := &GlobalResolution{
		stack:             stack,
		definitions:       definitions,
		attributes:        resolver,
		query:             environment.Untracked,
		wideningThreshold: DefaultWideningThreshold,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithDependency returns a facade whose reads are recorded against dependency.
func (g *GlobalResolution) WithDependency(dependency environment.Dependency) *GlobalResolution {
	copied := *g
	copied.query = environment.Track(dependency)
	return &copied
}

func (g *GlobalResolution) Query() environment.Query { return g.query }

func (g *GlobalResolution) Stack() *environment.Stack { return g.stack }

func (g *GlobalResolution) Definitions() *environment.DefinitionCache { return g.definitions }

// Order is a lattice snapshot over the current class hierarchy.
func (g *GlobalResolution) Order() *order.Order {
	return order.FromEnvironment(g.stack, g.query)
}

// Invalidate forwards keys to every layer, evicts memoized attribute tables and
// returns the dependencies to recompute. The definition cache is only cleared
// explicitly.
func (g *GlobalResolution) Invalidate(keys ...string) []environment.Dependency {
	g.attributes.Invalidate(keys...)
	return g.stack.Invalidate(keys...)
}

func (g *GlobalResolution) ModuleExists(qualifier types.Reference) bool {
	return g.stack.ModuleExists(g.query, qualifier)
}

// ContainingSource finds the module that declares ref: the lead is extended one
// segment at a time while at least one more segment follows and a module exists at
// the longer path. A dotted ref whose head is neither a module nor a builtin is
// absent.
func (g *GlobalResolution) ContainingSource(ref types.Reference) (*ast.Module, bool) {
	lead := types.Reference("")
	parts := ref.Parts()
	for i := 0; i+1 < len(parts); i++ {
		next := lead.Append(parts[i])
		if !g.stack.ModuleExists(g.query, next) {
			break
		}
		lead = next
	}
	if lead == environment.BuiltinsQualifier && len(parts) > 1 {
		if _, ok := g.stack.UnannotatedGlobal(g.query, types.Reference(parts[0])); !ok {
			return nil, false
		}
	}
	return g.stack.Module(g.query, lead)
}

// FunctionDefinitions returns every declaration, nested ones included, whose
// qualified name is ref, in declaration order.
func (g *GlobalResolution) FunctionDefinitions(ref types.Reference) ([]*ast.Define, bool) {
	return g.definitions.Functions(ref, func() ([]*ast.Define, bool) {
		source, ok := g.ContainingSource(ref)
		if !ok {
			return nil, false
		}
		var defines []*ast.Define
		ast.Walk(source.Statements, func(stmt ast.Statement) {
			if define, ok := stmt.(*ast.Define); ok && define.Name == ref {
				defines = append(defines, define)
			}
		})
		return defines, len(defines) > 0
	})
}

// ClassDefinitions returns the classes named ref in reverse declaration order, so
// the earliest declaration is last.
func (g *GlobalResolution) ClassDefinitions(ref types.Reference) ([]*ast.Class, bool) {
	return g.definitions.Classes(ref, func() ([]*ast.Class, bool) {
		source, ok := g.ContainingSource(ref)
		if !ok {
			return nil, false
		}
		var classes []*ast.Class
		ast.Walk(source.Statements, func(stmt ast.Statement) {
			if class, ok := stmt.(*ast.Class); ok && class.Name == ref {
				classes = append([]*ast.Class{class}, classes...)
			}
		})
		return classes, len(classes) > 0
	})
}

func (g *GlobalResolution) ClassDefinition(name string) (*ast.Class, bool) {
	record, ok := g.stack.ClassDefinition(g.query, name)
	if !ok {
		return nil, false
	}
	return record.Definition, true
}

func (g *GlobalResolution) ClassMetadata(name string) (environment.ClassMetadata, bool) {
	return g.stack.Metadata(g.query, name)
}

func (g *GlobalResolution) IsTracked(name string) bool {
	return g.stack.IsTracked(g.query, name)
}

// IsProtocol reports whether t's class is a protocol.
func (g *GlobalResolution) IsProtocol(t types.Type) bool {
	name, _ := types.Split(t)
	return name != "" && g.stack.IsProtocol(g.query, name)
}

// Global looks ref up in the global symbol table.
func (g *GlobalResolution) Global(ref types.Reference) (environment.GlobalInfo, bool) {
	return g.stack.Global(g.query, ref)
}

func (g *GlobalResolution) Alias(ref types.Reference) (types.Type, bool) {
	return g.stack.Alias(g.query, ref)
}

func (g *GlobalResolution) ResolveName(module, ref types.Reference) types.Reference {
	return g.stack.ResolveName(g.query, module, ref)
}

// ParseAnnotation converts an annotation expression written in module.
func (g *GlobalResolution) ParseAnnotation(module types.Reference, expr ast.Expression) types.Type {
	return g.stack.ParseAnnotation(g.query, module, expr)
}

func (g *GlobalResolution) UnwrapQualifiers(module types.Reference, expr ast.Expression) (ast.Expression, environment.Qualifiers) {
	return g.stack.UnwrapQualifiers(g.query, module, expr)
}

func (g *GlobalResolution) UndecoratedSignature(ref types.Reference) (*types.Callable, bool) {
	return g.stack.UndecoratedSignature(g.query, ref)
}

func (g *GlobalResolution) LessOrEqual(left, right types.Type) bool {
	return g.Order().LessOrEqual(left, right)
}

func (g *GlobalResolution) IsCompatibleWith(left, right types.Type) bool {
	return g.Order().IsCompatibleWith(left, right)
}

func (g *GlobalResolution) Join(left, right types.Type) types.Type {
	return g.Order().Join(left, right)
}

func (g *GlobalResolution) Meet(left, right types.Type) types.Type {
	return g.Order().Meet(left, right)
}

// Widen joins until iteration passes the configured threshold.
func (g *GlobalResolution) Widen(previous, next types.Type, iteration int) types.Type {
	return g.Order().Widen(g.wideningThreshold, previous, next, iteration)
}

func (g *GlobalResolution) SolveLessOrEqual(constraints order.TypeConstraints, left, right types.Type) []order.TypeConstraints {
	return g.Order().SolveLessOrEqual(constraints, left, right)
}

func (g *GlobalResolution) SolveConstraints(constraints order.TypeConstraints) (order.Solution, bool) {
	return g.Order().SolveConstraints(constraints)
}

func (g *GlobalResolution) PartialSolveConstraints(constraints order.TypeConstraints, variables []string) (order.TypeConstraints, order.Solution, bool) {
	return g.Order().PartialSolveConstraints(constraints, variables)
}

func (g *GlobalResolution) SolveOrderedTypesLessOrEqual(constraints order.TypeConstraints, left, right []types.Type) []order.TypeConstraints {
	return g.Order().SolveOrderedTypesLessOrEqual(constraints, left, right)
}

func (g *GlobalResolution) ConstraintsSolutionExists(left, right types.Type) bool {
	return g.Order().ConstraintsSolutionExists(left, right)
}

func (g *GlobalResolution) IsInvarianceMismatch(left, right types.Type) bool {
	return g.Order().IsInvarianceMismatch(left, right)
}

func (g *GlobalResolution) Attribute(t types.Type, name string) (attributes.Instantiated, bool) {
	return g.attributes.Attribute(g.query, t, name)
}

func (g *GlobalResolution) AttributeTable(t types.Type) (*attributes.Table[types.Annotation], bool) {
	return g.attributes.AttributeTable(g.query, t)
}

func (g *GlobalResolution) Attributes(t types.Type) ([]attributes.Instantiated, bool) {
	return g.attributes.Attributes(g.query, t)
}

func (g *GlobalResolution) PropertyCallable(t types.Type, name string) (*types.Callable, bool) {
	return g.attributes.PropertyCallable(g.query, t, name)
}

func (g *GlobalResolution) Constructor(t types.Type) (*types.Callable, bool) {
	return g.attributes.Constructor(g.query, t)
}

func (g *GlobalResolution) Metaclass(t types.Type) (types.Type, bool) {
	return g.attributes.Metaclass(g.query, t)
}

func (g *GlobalResolution) Generics(t types.Type) ([]types.Type, bool) {
	return g.attributes.Generics(g.query, t)
}

func (g *GlobalResolution) Successors(t types.Type) ([]string, bool) {
	return g.attributes.Successors(g.query, t)
}

func (g *GlobalResolution) Superclasses(t types.Type) ([]types.Type, bool) {
	return g.attributes.Superclasses(g.query, t)
}
