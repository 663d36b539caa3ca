package environment

import (
	"sort"

	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

// ASTReader is the module-metadata layer: parsed sources keyed by qualifier.
type ASTReader interface {
	Module(q Query, qualifier types.Reference) (*ast.Module, bool)
	ModuleExists(q Query, qualifier types.Reference) bool
	Qualifiers() []types.Reference
}

type ASTEnvironment struct {
	modules map[types.Reference]*ast.Module
	deps    *DependencyTracker
}

// NewASTEnvironment indexes modules by qualifier. Later modules with the same
// qualifier replace earlier ones, except that stubs win over sources. The builtins
// and typing stubs are added when absent.
func NewASTEnvironment(modules []*ast.Module) *ASTEnvironment {
	env := &ASTEnvironment{
		modules: make(map[types.Reference]*ast.Module, len(modules)+2),
		deps:    NewDependencyTracker("ast"),
	}
	for _, m := range modules {
		if m == nil {
			continue
		}
		if existing, ok := env.modules[m.Qualifier]; ok && existing.IsStub && !m.IsStub {
			continue
		}
		env.modules[m.Qualifier] = m
	}
	if _, ok := env.modules[BuiltinsQualifier]; !ok {
		env.modules[BuiltinsQualifier] = BuiltinsModule()
	}
	if _, ok := env.modules[TypingQualifier]; !ok {
		env.modules[TypingQualifier] = TypingModule()
	}
	return env
}

func (e *ASTEnvironment) Module(q Query, qualifier types.Reference) (*ast.Module, bool) {
	e.deps.Record(q, string(qualifier))
	m, ok := e.modules[qualifier]
	return m, ok
}

func (e *ASTEnvironment) ModuleExists(q Query, qualifier types.Reference) bool {
	e.deps.Record(q, string(qualifier))
	_, ok := e.modules[qualifier]
	return ok
}

// Qualifiers lists every module, builtins first.
func (e *ASTEnvironment) Qualifiers() []types.Reference {
	out := make([]types.Reference, 0, len(e.modules))
	for qualifier := range e.modules {
		out = append(out, qualifier)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (e *ASTEnvironment) tracker() *DependencyTracker { return e.deps }
