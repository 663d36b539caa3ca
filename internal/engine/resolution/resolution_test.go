package resolution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typecore/internal/engine/ast"
	"typecore/internal/engine/attributes"
	"typecore/internal/engine/environment"
	"typecore/internal/engine/types"
)

func typeVarAssign(name string, keywords ...ast.Argument) *ast.Assign {
	return &ast.Assign{Target: ast.Ref(name), Value: &ast.Call{
		Callee:    ast.Ref("TypeVar"),
		Arguments: append([]ast.Argument{{Value: ast.StringLiteral(name)}}, keywords...),
	}}
}

func fixture() *ast.Module {
	return &ast.Module{
		Qualifier: "pkg",
		Path:      "pkg.py",
		Statements: []ast.Statement{
			&ast.Import{From: "typing", Imports: []ast.ImportItem{{Name: "TypeVar"}, {Name: "Generic"}, {Name: "Final"}}},
			typeVarAssign("T"),
			typeVarAssign("N", ast.Argument{Keyword: "bound", Value: ast.Ref("int")}),
			ast.NewClass("pkg.Base").With(
				ast.Method("pkg.Base", "name", nil, ast.Ref("str")).Decorated(ast.Ref("property")),
				ast.Method("pkg.Base", "method", nil, ast.Ref("int")),
				ast.Field("field", ast.Ref("int"), ast.IntLiteral("0")),
				ast.Method("pkg.Base", "__init__", []ast.Parameter{ast.Param("x", ast.Ref("int"))}, ast.NoneLiteral()),
			),
			ast.NewClass("pkg.Derived", ast.Ref("Base")),
			ast.NewClass("pkg.Other").With(
				ast.Method("pkg.Other", "name", nil, ast.Ref("int")).Decorated(ast.Ref("property")),
			),
			ast.NewClass("pkg.Box", ast.Index("Generic", ast.Ref("T"))).With(
				ast.Method("pkg.Box", "__init__", []ast.Parameter{ast.Param("item", ast.Ref("T"))}, ast.NoneLiteral()),
				ast.Method("pkg.Box", "get", nil, ast.Ref("T")),
			),
			ast.NewClass("pkg.Numeric", ast.Index("Generic", ast.Ref("N"))),
			ast.NewDefine("pkg.identity", []ast.Parameter{ast.Param("x", ast.Ref("T"))}, ast.Ref("T")),
			ast.Field("count", ast.Ref("int"), ast.IntLiteral("0")),
			ast.Field("base_instance", ast.Ref("Base"), nil),
			&ast.If{
				Test:   ast.Ref("flag"),
				Body:   []ast.Statement{ast.NewDefine("pkg.helper", nil, ast.Ref("int")), ast.NewClass("pkg.Conditional")},
				OrElse: []ast.Statement{ast.NewDefine("pkg.helper", nil, ast.Ref("str")), ast.NewClass("pkg.Conditional", ast.Ref("Base"))},
			},
		},
	}
}

func newGlobal(t *testing.T, opts ...Option) *GlobalResolution {
	t.Helper()
	stack := environment.BuildStack(context.Background(), []*ast.Module{fixture()})
	return NewGlobalResolution(stack, environment.NewDefinitionCache(), attributes.NewResolver(stack, 32), opts...)
}

func newResolution(t *testing.T) Resolution {
	t.Helper()
	return NewResolution(newGlobal(t), "pkg")
}

func instance(name string) types.Type { return types.NewPrimitive(name) }

func local(t types.Type) types.Annotation { return types.NewAnnotation(t) }

func TestLocal_SetThenGet(t *testing.T) {
	r := newResolution(t)
	refs := []types.Reference{"x", "a.b", types.Localize("pkg.f", "y")}
	for _, ref := range refs {
		annotation := local(instance("int"))
		got, ok := r.SetLocal(ref, annotation).GetLocal(ref, false)
		require.True(t, ok, ref)
		assert.True(t, got.Equal(annotation), ref)
	}
}

func TestLocal_UnsetThenGetIsAbsent(t *testing.T) {
	r := newResolution(t).SetLocal("x", local(instance("int")))
	r = r.UnsetLocal("x")
	_, ok := r.GetLocal("x", false)
	assert.False(t, ok)
	assert.False(t, r.HasLocal("x"))
}

func TestLocal_UpdatesArePersistent(t *testing.T) {
	parent := newResolution(t).SetLocal("x", local(instance("int")))
	left := parent.SetLocal("x", local(instance("str")))
	right := parent.UnsetLocal("x")

	got, ok := parent.GetLocal("x", false)
	require.True(t, ok)
	assert.Equal(t, "int", got.Type.String())
	got, _ = left.GetLocal("x", false)
	assert.Equal(t, "str", got.Type.String())
	_, ok = right.GetLocal("x", false)
	assert.False(t, ok)
}

func TestLocal_GlobalFallback(t *testing.T) {
	r := newResolution(t)

	_, ok := r.GetLocal("pkg.count", false)
	assert.False(t, ok)
	got, ok := r.GetLocal("pkg.count", true)
	require.True(t, ok)
	assert.Equal(t, "int", got.Type.String())
	assert.True(t, got.IsGlobal())

	got, ok = r.GetLocal(types.Localize("pkg", "count"), true)
	require.True(t, ok, "local markers are stripped before the global lookup")
	assert.Equal(t, "int", got.Type.String())

	global := types.NewImmutableAnnotation(instance("str"), types.GlobalScope, false)
	r = r.SetLocal("g", global)
	_, ok = r.GetLocal("g", false)
	assert.False(t, ok, "global-origin refinements need fallback")
	_, ok = r.GetLocal("g", true)
	assert.True(t, ok)
}

func TestPartitionName(t *testing.T) {
	r := newResolution(t)

	root, path, base := r.PartitionName("a.b.c")
	assert.Equal(t, types.Reference("a.b.c"), root)
	assert.Equal(t, types.Reference(""), path)
	assert.Nil(t, base)

	r = r.SetLocal("a", local(instance("pkg.Base")))
	root, path, base = r.PartitionName("a.b.c")
	assert.Equal(t, types.Reference("a"), root)
	assert.Equal(t, types.Reference("b.c"), path)
	require.NotNil(t, base)
	assert.Equal(t, "pkg.Base", base.Type.String())

	root, path, base = r.PartitionName("pkg.base_instance.field")
	assert.Equal(t, types.Reference("pkg.base_instance"), root)
	assert.Equal(t, types.Reference("field"), path)
	require.NotNil(t, base)
	assert.True(t, base.IsGlobal())
}

func TestLocal_SetWithAttributes(t *testing.T) {
	r := newResolution(t).SetLocal("a", local(instance("pkg.Base")))
	r = r.SetLocalWithAttributes("a.field", local(instance("bool")))
	r = r.SetLocalWithAttributes("a.field", local(instance("int")))

	got, ok := r.GetLocalWithAttributes("a.field", false)
	require.True(t, ok)
	assert.Equal(t, "int", got.Type.String(), "attribute refinements overwrite")
	base, ok := r.GetLocal("a", false)
	require.True(t, ok)
	assert.Equal(t, "pkg.Base", base.Type.String(), "existing base is kept")

	r = r.SetLocal("a", local(instance("pkg.Derived")))
	_, ok = r.GetLocalWithAttributes("a.field", false)
	assert.False(t, ok, "set_local discards nested refinements")
}

func TestLocal_SetWithAttributesSeedsBaseFromPartition(t *testing.T) {
	r := newResolution(t).SetLocalWithAttributes("pkg.base_instance.field", local(instance("bool")))

	got, ok := r.GetLocalWithAttributes("pkg.base_instance.field", false)
	require.True(t, ok)
	assert.Equal(t, "bool", got.Type.String())

	_, ok = r.GetLocal("pkg.base_instance", false)
	assert.False(t, ok, "seeded base is global-origin")
	base, ok := r.GetLocal("pkg.base_instance", true)
	require.True(t, ok)
	assert.Equal(t, "pkg.Base", base.Type.String())
}

func TestTypeVariables(t *testing.T) {
	r := newResolution(t)
	assert.False(t, r.TypeVariableExists("pkg.T"))
	scoped := r.AddTypeVariable(types.NewVariable("pkg.T")).AddTypeVariable(types.NewVariable("pkg.A"))
	assert.True(t, scoped.TypeVariableExists("pkg.T"))
	assert.False(t, r.TypeVariableExists("pkg.T"))

	names := []string{}
	for _, v := range scoped.AllTypeVariablesInScope() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"pkg.A", "pkg.T"}, names)
}

func call(callee ast.Expression, arguments ...ast.Expression) *ast.Call {
	c := &ast.Call{Callee: callee}
	for _, argument := range arguments {
		c.Arguments = append(c.Arguments, ast.Argument{Value: argument})
	}
	return c
}

func TestResolve_Expressions(t *testing.T) {
	r := newResolution(t).
		SetLocal("b", local(instance("pkg.Base"))).
		SetLocal("numbers", local(types.NewParametric("list", instance("int"))))

	tests := []struct {
		expr ast.Expression
		want string
	}{
		{ast.IntLiteral("1"), "int"},
		{ast.StringLiteral("s"), "str"},
		{ast.NoneLiteral(), "None"},
		{ast.Ref("Base"), "type[pkg.Base]"},
		{ast.Ref("count"), "int"},
		{ast.Ref("missing"), "unknown"},
		{call(ast.Ref("Base"), ast.IntLiteral("1")), "pkg.Base"},
		{call(ast.Ref("Box"), ast.StringLiteral("s")), "pkg.Box[str]"},
		{call(ast.Ref("identity"), ast.IntLiteral("1")), "int"},
		{&ast.List{Elements: []ast.Expression{ast.IntLiteral("1"), ast.IntLiteral("2")}}, "list[int]"},
		{&ast.Tuple{Elements: []ast.Expression{ast.IntLiteral("1"), ast.StringLiteral("s")}}, "typing.Tuple[int, str]"},
		{ast.Ref("b.name"), "str"},
		{ast.Ref("b.field"), "int"},
		{call(ast.Ref("b.method")), "int"},
		{&ast.Subscript{Base: ast.Ref("numbers"), Indices: []ast.Expression{ast.IntLiteral("0")}}, "int"},
		{call(&ast.Attribute{Base: call(ast.Ref("Box"), ast.IntLiteral("1")), Attribute: "get"}), "int"},
	}
	for _, tt := range tests {
		if got := r.Resolve(tt.expr).String(); got != tt.want {
			t.Errorf("Resolve(%s) = %s, want %s", tt.expr, got, tt.want)
		}
	}
}

func TestResolve_AttributeRefinementWins(t *testing.T) {
	r := newResolution(t).SetLocal("b", local(instance("pkg.Base")))
	r = r.SetLocalWithAttributes("b.field", local(instance("bool")))
	assert.Equal(t, "bool", r.Resolve(ast.Ref("b.field")).String())
}

func TestResolve_UnionReceiverAttributeIsAbsent(t *testing.T) {
	r := newResolution(t).SetLocal("u", local(types.NewUnion(instance("pkg.Base"), instance("pkg.Other"))))
	assert.Equal(t, types.Top, r.Resolve(ast.Ref("u.name")))
	_, ok := r.GetPropertyCallable(ast.Ref("u"), "name")
	assert.False(t, ok)
}

func TestGetPropertyCallable(t *testing.T) {
	r := newResolution(t).SetLocal("d", local(instance("pkg.Derived")))

	callable, ok := r.GetPropertyCallable(ast.Ref("d"), "name")
	require.True(t, ok)
	assert.Equal(t, types.Reference("pkg.Base.name"), callable.Name)
	assert.Equal(t, "str", callable.ReturnAnnotation().String())

	callable, ok = r.GetPropertyCallable(call(ast.Ref("Other")), "name")
	require.True(t, ok)
	assert.Equal(t, types.Reference("pkg.Other.name"), callable.Name)

	_, ok = r.GetPropertyCallable(ast.Ref("d"), "method")
	assert.False(t, ok)
}

func TestResolveAssignment(t *testing.T) {
	r := newResolution(t)
	r = r.ResolveAssignment(&ast.Assign{Target: ast.Ref("x"), Value: ast.IntLiteral("1")})
	x, ok := r.GetLocal("x", false)
	require.True(t, ok)
	assert.Equal(t, "int (mutable)", x.String())

	r = r.ResolveAssignment(&ast.Assign{Target: ast.Ref("y"), Annotation: ast.Ref("float"), Value: ast.IntLiteral("1")})
	y, _ := r.GetLocal("y", false)
	assert.Equal(t, "float (local, declared float)", y.String())

	r = r.ResolveAssignment(&ast.Assign{Target: ast.Ref("y"), Value: ast.IntLiteral("2")})
	y, _ = r.GetLocal("y", false)
	assert.Equal(t, "int (local, declared float)", y.String())

	r = r.ResolveAssignment(&ast.Assign{Target: ast.Ref("y"), Value: ast.StringLiteral("s")})
	y, _ = r.GetLocal("y", false)
	assert.Equal(t, "float (local, declared float)", y.String())

	r = r.ResolveAssignment(&ast.Assign{
		Target: &ast.Tuple{Elements: []ast.Expression{ast.Ref("p"), ast.Ref("q")}},
		Value:  &ast.Tuple{Elements: []ast.Expression{ast.IntLiteral("1"), ast.StringLiteral("s")}},
	})
	p, _ := r.GetLocal("p", false)
	q, _ := r.GetLocal("q", false)
	assert.Equal(t, "int", p.Type.String())
	assert.Equal(t, "str", q.Type.String())

	r = r.SetLocal("obj", local(instance("pkg.Base")))
	r = r.ResolveAssignment(&ast.Assign{Target: ast.Ref("obj.field"), Value: &ast.Constant{Kind: ast.TrueConstant}})
	field, ok := r.GetLocalWithAttributes("obj.field", false)
	require.True(t, ok)
	assert.Equal(t, "bool", field.Type.String())
	assert.Equal(t, "int", field.Original().String())
}

func TestGlobal_Definitions(t *testing.T) {
	g := newGlobal(t)

	source, ok := g.ContainingSource("pkg.Base.method")
	require.True(t, ok)
	assert.Equal(t, types.Reference("pkg"), source.Qualifier)
	source, ok = g.ContainingSource("int")
	require.True(t, ok)
	assert.Equal(t, environment.BuiltinsQualifier, source.Qualifier)
	source, ok = g.ContainingSource("int.__add__")
	require.True(t, ok)
	assert.Equal(t, environment.BuiltinsQualifier, source.Qualifier)
	_, ok = g.ContainingSource("nowhere.thing")
	assert.False(t, ok, "missing module is absent")
	_, ok = g.FunctionDefinitions("nowhere.thing")
	assert.False(t, ok)

	defines, ok := g.FunctionDefinitions("pkg.Base.method")
	require.True(t, ok)
	require.Len(t, defines, 1)

	defines, ok = g.FunctionDefinitions("pkg.helper")
	require.True(t, ok)
	require.Len(t, defines, 2)
	assert.Equal(t, "int", defines[0].ReturnAnnotation.String())
	assert.Equal(t, "str", defines[1].ReturnAnnotation.String())

	_, ok = g.FunctionDefinitions("pkg.missing")
	assert.False(t, ok)

	classes, ok := g.ClassDefinitions("pkg.Conditional")
	require.True(t, ok)
	require.Len(t, classes, 2)
	assert.Len(t, classes[0].Bases, 1, "latest declaration first")
	assert.Empty(t, classes[1].Bases)
}

func TestGlobal_DefinitionCacheToggle(t *testing.T) {
	g := newGlobal(t)
	g.Definitions().Enable()

	first, ok := g.FunctionDefinitions("pkg.helper")
	require.True(t, ok)
	second, _ := g.FunctionDefinitions("pkg.helper")
	assert.Same(t, first[0], second[0])

	g.Definitions().Clear()
	g.Definitions().Disable()
	_, ok = g.FunctionDefinitions("pkg.helper")
	assert.True(t, ok)
}

func TestGlobal_Lattice(t *testing.T) {
	g := newGlobal(t, WithWideningThreshold(1))

	assert.True(t, g.LessOrEqual(instance("bool"), instance("float")))
	assert.False(t, g.LessOrEqual(instance("pkg.Base"), instance("pkg.Derived")))
	assert.Equal(t, "pkg.Base", g.Join(instance("pkg.Derived"), instance("pkg.Base")).String())
	assert.Equal(t, "pkg.Derived", g.Meet(instance("pkg.Derived"), instance("pkg.Base")).String())
	assert.Equal(t, types.Top, g.Widen(instance("int"), instance("str"), 5))

	boxOf := func(name string) types.Type { return types.NewParametric("pkg.Box", instance(name)) }
	assert.True(t, g.IsInvarianceMismatch(boxOf("bool"), boxOf("int")))
	assert.False(t, g.IsInvarianceMismatch(boxOf("int"), boxOf("int")))
	assert.False(t, g.IsInvarianceMismatch(boxOf("int"), types.NewParametric("pkg.Box", instance("int"), instance("str"))))
	assert.True(t, g.ConstraintsSolutionExists(instance("int"), types.NewVariable("pkg.T")))
}

func TestGlobal_CheckInvalidTypeParameters(t *testing.T) {
	g := newGlobal(t)

	problems, repaired := g.CheckInvalidTypeParameters(types.NewParametric("pkg.Box", instance("int"), instance("str")))
	require.Len(t, problems, 1)
	assert.Equal(t, IncorrectParameterCount, problems[0].Kind)
	assert.Equal(t, 1, problems[0].Expected)
	assert.Equal(t, 2, problems[0].Given)
	assert.Equal(t, "pkg.Box[typing.Any]", repaired.String())

	problems, repaired = g.CheckInvalidTypeParameters(types.NewParametric("pkg.Base", instance("int")))
	require.Len(t, problems, 1)
	assert.Equal(t, "pkg.Base", repaired.String())

	problems, repaired = g.CheckInvalidTypeParameters(instance("pkg.Box"))
	assert.Empty(t, problems)
	assert.Equal(t, "pkg.Box[typing.Any]", repaired.String())

	problems, repaired = g.CheckInvalidTypeParameters(types.NewParametric("pkg.Numeric", instance("str")))
	require.Len(t, problems, 1)
	assert.Equal(t, ViolatesConstraints, problems[0].Kind)
	assert.Equal(t, "pkg.Numeric[typing.Any]", repaired.String())

	problems, repaired = g.CheckInvalidTypeParameters(types.NewParametric("list", types.NewParametric("pkg.Numeric", instance("bool"))))
	assert.Empty(t, problems)
	assert.Equal(t, "list[pkg.Numeric[bool]]", repaired.String())
}

func TestGlobal_WithDependencyRecordsReads(t *testing.T) {
	g := newGlobal(t)
	dependency := environment.Dependency{Kind: "check", Name: "pkg.f"}

	_, ok := g.WithDependency(dependency).Global("pkg.count")
	require.True(t, ok)
	assert.Contains(t, g.Stack().Dependents("pkg.count"), dependency)
	assert.Equal(t, []environment.Dependency{dependency}, g.Invalidate("pkg.count"))
	assert.Empty(t, g.Stack().Dependents("pkg.count"))
}
