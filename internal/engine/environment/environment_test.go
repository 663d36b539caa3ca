package environment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

func fixtureModule() *ast.Module {
	return &ast.Module{
		Qualifier: "pkg",
		Path:      "pkg.py",
		Statements: []ast.Statement{
			&ast.Import{From: "typing", Imports: []ast.ImportItem{
				{Name: "TypeVar"}, {Name: "Generic"}, {Name: "List"}, {Name: "Optional"}, {Name: "Final"},
			}},
			&ast.Assign{Target: ast.Ref("T"), Value: &ast.Call{
				Callee:    ast.Ref("TypeVar"),
				Arguments: []ast.Argument{{Value: ast.StringLiteral("T")}},
			}},
			&ast.Assign{Target: ast.Ref("IntList"), Value: ast.Index("List", ast.Ref("int"))},
			ast.NewClass("pkg.Base", ast.Index("Generic", ast.Ref("T"))).With(
				ast.Method("pkg.Base", "get", nil, ast.Ref("T")),
			),
			ast.NewClass("pkg.Child", ast.Index("Base", ast.Ref("int"))),
			ast.NewClass("pkg.Mixin"),
			ast.NewClass("pkg.Diamond", ast.Ref("Child"), ast.Ref("Mixin")),
			ast.Field("LIMIT", ast.Ref("Final"), ast.IntLiteral("3")),
			&ast.Assign{Target: ast.Ref("count"), Value: ast.IntLiteral("0")},
			ast.NewDefine("pkg.f", []ast.Parameter{ast.Param("x", ast.Ref("int"))}, ast.Ref("str")),
			&ast.If{
				Test: ast.Ref("flag"),
				Body: []ast.Statement{ast.NewClass("pkg.Conditional")},
			},
		},
	}
}

func buildFixture(t *testing.T) *Stack {
	t.Helper()
	return BuildStack(context.Background(), []*ast.Module{fixtureModule()})
}

func TestASTEnvironment_AddsBuiltinsAndPrefersStubs(t *testing.T) {
	source := &ast.Module{Qualifier: "m", Path: "m.py"}
	stub := &ast.Module{Qualifier: "m", Path: "m.pyi", IsStub: true}
	env := NewASTEnvironment([]*ast.Module{stub, source})

	m, ok := env.Module(Untracked, "m")
	require.True(t, ok)
	assert.True(t, m.IsStub)
	assert.True(t, env.ModuleExists(Untracked, BuiltinsQualifier))
	assert.True(t, env.ModuleExists(Untracked, TypingQualifier))
	assert.False(t, env.ModuleExists(Untracked, "missing"))
}

func TestUnannotatedGlobals(t *testing.T) {
	stack := buildFixture(t)

	tests := []struct {
		ref  types.Reference
		kind GlobalKind
	}{
		{"pkg.TypeVar", ImportedGlobal},
		{"pkg.T", SimpleAssignGlobal},
		{"pkg.Base", ClassGlobal},
		{"pkg.f", DefineGlobal},
		{"pkg.Conditional", ClassGlobal},
		{"int", ClassGlobal},
	}
	for _, tt := range tests {
		global, ok := stack.UnannotatedGlobal(Untracked, tt.ref)
		if !ok {
			t.Fatalf("expected global %s", tt.ref)
		}
		if global.Kind != tt.kind {
			t.Errorf("%s: expected kind %d, got %d", tt.ref, tt.kind, global.Kind)
		}
	}
	if _, ok := stack.UnannotatedGlobal(Untracked, "pkg.missing"); ok {
		t.Error("expected missing global to be absent")
	}
}

func TestAliases_ResolveTypeVariableAndGenericAlias(t *testing.T) {
	stack := buildFixture(t)

	alias, ok := stack.Alias(Untracked, "pkg.T")
	require.True(t, ok)
	variable, ok := alias.(*types.Variable)
	require.True(t, ok)
	assert.Equal(t, "pkg.T", variable.Name)

	alias, ok = stack.Alias(Untracked, "pkg.IntList")
	require.True(t, ok)
	assert.Equal(t, "list[int]", alias.String())

	_, ok = stack.Alias(Untracked, "pkg.count")
	assert.False(t, ok)
}

func TestAliases_ParseAnnotation(t *testing.T) {
	stack := buildFixture(t)

	tests := []struct {
		expr ast.Expression
		want string
	}{
		{ast.Index("Optional", ast.Ref("int")), "typing.Optional[int]"},
		{&ast.BinaryOr{Left: ast.Ref("int"), Right: ast.Ref("str")}, "typing.Union[int, str]"},
		{ast.Index("IntList"), "list[int]"},
		{ast.StringLiteral("Child"), "pkg.Child"},
		{ast.Ref("Undeclared"), "unknown"},
		{ast.Index("typing.Tuple", ast.Ref("int"), ast.EllipsisLiteral()), "typing.Tuple[int, ...]"},
		{ast.Index("typing.Callable", &ast.List{Elements: []ast.Expression{ast.Ref("int")}}, ast.Ref("str")),
			"typing.Callable[[Named(__0, int)], str]"},
		{ast.Index("typing.Type", ast.Ref("Child")), "type[pkg.Child]"},
	}
	for _, tt := range tests {
		got := stack.ParseAnnotation(Untracked, "pkg", tt.expr)
		if got.String() != tt.want {
			t.Errorf("ParseAnnotation(%s) = %s, want %s", tt.expr, got, tt.want)
		}
	}
}

func TestClassHierarchy_Successors(t *testing.T) {
	stack := buildFixture(t)

	assert.Equal(t, []string{"pkg.Child", "pkg.Base", "pkg.Mixin", "object"}, stack.Successors(Untracked, "pkg.Diamond"))
	assert.Equal(t, []string{"int", "object"}, stack.Successors(Untracked, "bool"))
	assert.Empty(t, stack.Successors(Untracked, "object"))

	variables, ok := stack.Variables(Untracked, "pkg.Base")
	require.True(t, ok)
	require.Len(t, variables, 1)
	assert.Equal(t, "pkg.T", variables[0].Name)

	variables, ok = stack.Variables(Untracked, "pkg.Child")
	require.True(t, ok)
	assert.Empty(t, variables)
}

func TestClassHierarchy_InstantiateSuccessorParameters(t *testing.T) {
	stack := buildFixture(t)

	args, ok := stack.InstantiateSuccessorParameters(Untracked, "pkg.Diamond", nil, "pkg.Base")
	require.True(t, ok)
	require.Len(t, args, 1)
	assert.Equal(t, "int", args[0].String())

	args, ok = stack.InstantiateSuccessorParameters(Untracked, "pkg.Base", nil, "pkg.Base")
	require.True(t, ok)
	assert.Equal(t, []types.Type{types.Any}, args)

	_, ok = stack.InstantiateSuccessorParameters(Untracked, "pkg.Mixin", nil, "pkg.Base")
	assert.False(t, ok)
}

func TestClassMetadata(t *testing.T) {
	stack := buildFixture(t)

	metadata, ok := stack.Metadata(Untracked, "pkg.Child")
	require.True(t, ok)
	assert.Equal(t, types.Reference("pkg"), metadata.Module)
	assert.Equal(t, []string{"pkg.Base", "object"}, metadata.Successors)
	assert.False(t, metadata.IsProtocol)

	metadata, ok = stack.Metadata(Untracked, "typing.Iterable")
	require.True(t, ok)
	assert.True(t, metadata.IsProtocol)

	_, ok = stack.Metadata(Untracked, "pkg.Nope")
	assert.False(t, ok)
}

func TestAnnotatedGlobals(t *testing.T) {
	stack := buildFixture(t)

	tests := []struct {
		ref   types.Reference
		want  string
		final bool
	}{
		{"pkg.Base", "type[pkg.Base]", false},
		{"pkg.LIMIT", "int", true},
		{"pkg.count", "int", false},
		{"pkg.f", "typing.Callable(pkg.f)[[Named(x, int)], str]", false},
		{"pkg.IntList", "type[list[int]]", false},
	}
	for _, tt := range tests {
		info, ok := stack.Global(Untracked, tt.ref)
		if !ok {
			t.Fatalf("expected global %s", tt.ref)
		}
		if info.Annotation.Type.String() != tt.want {
			t.Errorf("%s: got %s, want %s", tt.ref, info.Annotation.Type, tt.want)
		}
		if !info.Annotation.IsGlobal() {
			t.Errorf("%s: expected global-scope annotation", tt.ref)
		}
		if info.Annotation.IsFinal() != tt.final {
			t.Errorf("%s: final = %v, want %v", tt.ref, info.Annotation.IsFinal(), tt.final)
		}
	}

	info, ok := stack.Global(Untracked, "pkg.Optional")
	require.False(t, ok, "typing.Optional is special-cased, not a global: %v", info)
}

func TestStack_InvalidateForwardsToEveryLayer(t *testing.T) {
	stack := buildFixture(t)
	dep := Dependency{Kind: "check", Name: "pkg.g"}

	_, ok := stack.Global(Track(dep), "pkg.count")
	require.True(t, ok)

	assert.Equal(t, []Dependency{dep}, stack.Dependents("pkg.count"))
	assert.Equal(t, []Dependency{dep}, stack.Invalidate("pkg.count", "pkg.unrelated"))
	assert.Empty(t, stack.Invalidate("pkg.count"))

	_, ok = stack.Global(Untracked, "pkg.count")
	require.True(t, ok)
	assert.Empty(t, stack.Dependents("pkg.count"))

	assert.Equal(t, []string{"ast", "unannotated_globals", "aliases", "class_hierarchy", "class_metadata", "annotated_globals"}, stack.LayerNames())
}

func TestDefinitionCache(t *testing.T) {
	cache := NewDefinitionCache()
	calls := 0
	compute := func() ([]*ast.Class, bool) {
		calls++
		return []*ast.Class{ast.NewClass("pkg.A")}, true
	}

	cache.Classes("pkg.A", compute)
	cache.Classes("pkg.A", compute)
	assert.Equal(t, 2, calls, "disabled cache must recompute")

	cache.Enable()
	cache.Classes("pkg.A", compute)
	classes, ok := cache.Classes("pkg.A", compute)
	assert.Equal(t, 3, calls)
	assert.True(t, ok)
	assert.Len(t, classes, 1)

	cache.Clear()
	cache.Classes("pkg.A", compute)
	assert.Equal(t, 4, calls)
	assert.True(t, cache.Enabled())
}
