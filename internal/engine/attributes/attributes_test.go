package attributes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typecore/internal/engine/ast"
	"typecore/internal/engine/environment"
	"typecore/internal/engine/types"
)

func selfAssign(name string, value ast.Expression) *ast.Assign {
	return &ast.Assign{Target: &ast.Attribute{Base: &ast.Name{Identifier: "self"}, Attribute: name}, Value: value}
}

func staticDefine(class types.Reference, name string, returns ast.Expression, decorator string) *ast.Define {
	d := ast.NewDefine(class.Append(name), nil, returns).Decorated(ast.Ref(decorator))
	d.Parent = class
	return d
}

func fixture() *ast.Module {
	return &ast.Module{
		Qualifier: "pkg",
		Path:      "pkg.py",
		Statements: []ast.Statement{
			&ast.Import{From: "typing", Imports: []ast.ImportItem{{Name: "Final"}, {Name: "TypeVar"}, {Name: "Generic"}}},
			&ast.Assign{Target: ast.Ref("T"), Value: &ast.Call{Callee: ast.Ref("TypeVar"), Arguments: []ast.Argument{{Value: ast.StringLiteral("T")}}}},
			ast.NewClass("pkg.Base").With(
				ast.Method("pkg.Base", "name", nil, ast.Ref("str")).Decorated(ast.Ref("property")),
				ast.Method("pkg.Base", "method", nil, ast.Ref("int")),
				ast.Field("field", ast.Ref("int"), ast.IntLiteral("0")),
				ast.Field("CONST", ast.Index("Final", ast.Ref("int")), ast.IntLiteral("3")),
				staticDefine("pkg.Base", "make", ast.StringLiteral("Base"), "staticmethod"),
				&ast.Define{
					Name: "pkg.Base.create", Parent: "pkg.Base",
					Parameters:       []ast.Parameter{{Name: "cls"}},
					ReturnAnnotation: ast.Ref("int"),
					Decorators:       []ast.Expression{ast.Ref("classmethod")},
					Body:             ast.EllipsisBody(),
				},
				ast.Method("pkg.Base", "size", nil, ast.Ref("int")).Decorated(ast.Ref("property")),
				ast.Method("pkg.Base", "size", []ast.Parameter{ast.Param("value", ast.Ref("int"))}, ast.NoneLiteral()).
					Decorated(ast.Ref("size.setter")),
				ast.Method("pkg.Base", "__init__", []ast.Parameter{ast.Param("x", ast.Ref("int"))}, ast.NoneLiteral()).
					WithBody(selfAssign("x", ast.Ref("x")), selfAssign("y", ast.StringLiteral("s"))),
			),
			ast.NewClass("pkg.Derived", ast.Ref("Base")),
			ast.NewClass("pkg.Other").With(
				ast.Method("pkg.Other", "name", nil, ast.Ref("int")).Decorated(ast.Ref("property")),
			),
			ast.NewClass("pkg.Box", ast.Index("Generic", ast.Ref("T"))).With(
				ast.Field("item", ast.Ref("T"), nil),
				ast.Method("pkg.Box", "get", nil, ast.Ref("T")),
			),
			ast.NewClass("pkg.IntBox", ast.Index("Box", ast.Ref("int"))),
			ast.NewClass("pkg.Meta", ast.Ref("type")).With(
				ast.Method("pkg.Meta", "registry", nil, ast.Ref("int")),
			),
			ast.NewClass("pkg.WithMeta").WithKeyword("metaclass", ast.Ref("Meta")),
			ast.NewClass("pkg.Slotted").With(
				&ast.Assign{Target: ast.Ref("__slots__"), Value: &ast.List{Elements: []ast.Expression{ast.StringLiteral("a")}}},
			),
		},
	}
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	stack := environment.BuildStack(context.Background(), []*ast.Module{fixture()})
	return NewResolver(stack, 64)
}

var q = environment.Untracked

func instance(name string) types.Type { return types.NewPrimitive(name) }

func TestPropertyCallable_AttributedToDeclaringClass(t *testing.T) {
	r := newResolver(t)

	receivers := []types.Type{
		instance("pkg.Base"),
		instance("pkg.Derived"),
		types.NewMeta(instance("pkg.Derived")),
	}
	for _, receiver := range receivers {
		callable, ok := r.PropertyCallable(q, receiver, "name")
		require.True(t, ok, "receiver %s", receiver)
		assert.Equal(t, types.Reference("pkg.Base.name"), callable.Name)
		assert.Empty(t, callable.Implementation.Parameters)
		assert.False(t, callable.Implementation.Undefined)
		assert.Equal(t, "str", callable.ReturnAnnotation().String())
	}
}

func TestPropertyCallable_AbsentForNonProperties(t *testing.T) {
	r := newResolver(t)
	for _, name := range []string{"method", "field", "missing"} {
		_, ok := r.PropertyCallable(q, instance("pkg.Base"), name)
		assert.False(t, ok, name)
	}
}

func TestAttribute_AmbiguousReceiverIsAbsent(t *testing.T) {
	r := newResolver(t)
	receivers := []types.Type{
		types.NewUnion(instance("pkg.Base"), instance("pkg.Other")),
		types.NewUnion(instance("pkg.Base"), instance("pkg.Derived")),
		types.Top,
		types.Any,
		&types.Variable{Name: "S", Constraints: []types.Type{instance("pkg.Base"), instance("pkg.Other")}},
	}
	for _, receiver := range receivers {
		_, ok := r.Attribute(q, receiver, "name")
		assert.False(t, ok, "receiver %s", receiver)
	}
}

func TestAttribute_MethodBinding(t *testing.T) {
	r := newResolver(t)
	tests := []struct {
		receiver types.Type
		name     string
		want     string
	}{
		{instance("pkg.Base"), "method", "typing.Callable(pkg.Base.method)[[], int]"},
		{types.NewMeta(instance("pkg.Base")), "method", "typing.Callable(pkg.Base.method)[[Named(self, unknown)], int]"},
		{instance("pkg.Derived"), "make", "typing.Callable(pkg.Base.make)[[], pkg.Base]"},
		{types.NewMeta(instance("pkg.Base")), "create", "typing.Callable(pkg.Base.create)[[], int]"},
		{instance("pkg.Base"), "x", "int"},
		{instance("pkg.Base"), "y", "str"},
		{types.NewParametric("pkg.Box", instance("str")), "get", "typing.Callable(pkg.Box.get)[[], str]"},
		{instance("pkg.IntBox"), "item", "int"},
		{instance("pkg.Box"), "item", "typing.Any"},
		{&types.Variable{Name: "B", Bound: instance("pkg.Derived")}, "field", "int"},
		{types.NewMeta(instance("pkg.WithMeta")), "registry", "typing.Callable(pkg.Meta.registry)[[], int]"},
	}
	for _, tt := range tests {
		entry, ok := r.Attribute(q, tt.receiver, tt.name)
		if !ok {
			t.Errorf("%s.%s: expected attribute", tt.receiver, tt.name)
			continue
		}
		if got := entry.Annotation.Type.String(); got != tt.want {
			t.Errorf("%s.%s = %s, want %s", tt.receiver, tt.name, got, tt.want)
		}
	}
}

func TestAttribute_Flags(t *testing.T) {
	r := newResolver(t)

	constant, ok := r.Attribute(q, instance("pkg.Base"), "CONST")
	require.True(t, ok)
	assert.Equal(t, ReadOnly(false), constant.Visibility)
	assert.True(t, constant.Annotation.IsFinal())

	name, ok := r.Attribute(q, instance("pkg.Base"), "name")
	require.True(t, ok)
	assert.True(t, name.Property)
	assert.Equal(t, ReadOnly(true), name.Visibility)

	size, ok := r.Attribute(q, instance("pkg.Derived"), "size")
	require.True(t, ok)
	assert.Equal(t, ReadWrite, size.Visibility)
	assert.Equal(t, "pkg.Base", size.Parent)

	method, ok := r.Attribute(q, instance("pkg.Base"), "method")
	require.True(t, ok)
	assert.True(t, method.HasEllipsisBody)
	assert.True(t, method.Class)

	x, ok := r.Attribute(q, instance("pkg.Base"), "x")
	require.True(t, ok)
	assert.False(t, x.Class)
	assert.False(t, x.Annotation.IsImmutable())

	_, ok = r.Attribute(q, instance("pkg.Slotted"), "a")
	assert.False(t, ok, "slot without assignment is declared but undefined")
	table, ok := r.AttributeTable(q, instance("pkg.Slotted"))
	require.True(t, ok)
	slot, ok := table.Lookup("a")
	require.True(t, ok)
	assert.False(t, slot.Defined)
}

func TestConstructorAndMetaclass(t *testing.T) {
	r := newResolver(t)

	constructor, ok := r.Constructor(q, types.NewMeta(instance("pkg.Base")))
	require.True(t, ok)
	assert.Equal(t, "typing.Callable(pkg.Base.__init__)[[Named(x, int)], pkg.Base]", constructor.String())

	constructor, ok = r.Constructor(q, instance("pkg.Box"))
	require.True(t, ok)
	assert.Equal(t, "pkg.Box[pkg.T]", constructor.ReturnAnnotation().String())

	metaclass, ok := r.Metaclass(q, instance("pkg.WithMeta"))
	require.True(t, ok)
	assert.Equal(t, "pkg.Meta", metaclass.String())
	metaclass, _ = r.Metaclass(q, instance("pkg.Base"))
	assert.Equal(t, "type", metaclass.String())

	generics, ok := r.Generics(q, instance("pkg.Box"))
	require.True(t, ok)
	require.Len(t, generics, 1)
	assert.Equal(t, "pkg.T", generics[0].String())

	superclasses, ok := r.Superclasses(q, instance("pkg.IntBox"))
	require.True(t, ok)
	require.Len(t, superclasses, 2)
	assert.Equal(t, "pkg.Box[int]", superclasses[0].String())
	assert.Equal(t, "object", superclasses[1].String())

	successors, ok := r.Successors(q, instance("pkg.Derived"))
	require.True(t, ok)
	assert.Equal(t, []string{"pkg.Base", "object"}, successors)
}

func TestAttributes_ListsDefinedEntries(t *testing.T) {
	r := newResolver(t)
	entries, ok := r.Attributes(q, instance("pkg.Derived"))
	require.True(t, ok)
	names := make(map[string]string, len(entries))
	for _, entry := range entries {
		names[entry.Name] = entry.Parent
	}
	assert.Equal(t, "pkg.Base", names["method"])
	assert.Equal(t, "object", names["__str__"])
}

func TestInvalidate_EvictsSubclassTables(t *testing.T) {
	r := newResolver(t)
	for _, class := range []string{"pkg.Base", "pkg.Derived", "pkg.Other"} {
		_, ok := r.UninstantiatedTable(q, class)
		require.True(t, ok)
	}
	assert.Equal(t, 2, r.Invalidate("pkg.Base"))
	assert.Equal(t, 0, r.Invalidate("pkg.Base"))
	assert.Equal(t, 1, r.Invalidate("object"))
}

func TestAttribute_CachedTableRecordsReadsForEveryDependency(t *testing.T) {
	module := &ast.Module{
		Qualifier: "pkg",
		Path:      "pkg.py",
		Statements: []ast.Statement{
			&ast.Assign{Target: ast.Ref("Alias"), Value: ast.Ref("int")},
			ast.NewClass("pkg.C").With(ast.Field("x", ast.Ref("Alias"), nil)),
		},
	}
	stack := environment.BuildStack(context.Background(), []*ast.Module{module})
	r := NewResolver(stack, 8)

	first := environment.Dependency{Kind: "check", Name: "pkg.f1"}
	second := environment.Dependency{Kind: "check", Name: "pkg.f2"}
	for _, dep := range []environment.Dependency{first, second} {
		entry, ok := r.Attribute(environment.Track(dep), instance("pkg.C"), "x")
		require.True(t, ok)
		assert.Equal(t, "int", entry.Annotation.Type.String())
	}

	assert.Equal(t, []environment.Dependency{first, second}, stack.Dependents("pkg.Alias"))
	assert.Equal(t, 1, r.Invalidate("pkg.Alias"), "table built from the alias must be evicted")
	assert.Equal(t, []environment.Dependency{first, second}, stack.Invalidate("pkg.Alias"))
}

func TestRecordingQueryLogsReads(t *testing.T) {
	stack := environment.BuildStack(context.Background(), []*ast.Module{fixture()})
	recording, reads := environment.Recording()
	_, ok := stack.ClassDefinition(recording, "pkg.Base")
	require.True(t, ok)
	assert.Contains(t, reads.Keys(), "pkg.Base")
	assert.True(t, reads.Touches(map[string]bool{"pkg.Base": true}))
	assert.False(t, reads.Touches(map[string]bool{"pkg.Other": true}))

	dep := environment.Dependency{Kind: "check", Name: "pkg.f"}
	reads.Replay(environment.Track(dep))
	assert.Equal(t, []environment.Dependency{dep}, stack.Dependents("pkg.Base"))
}

func TestAttribute_RedefinedMethodBindsLastDefinition(t *testing.T) {
	module := &ast.Module{
		Qualifier: "pkg",
		Path:      "pkg.py",
		Statements: []ast.Statement{
			ast.NewClass("pkg.K").With(
				&ast.If{
					Test:   ast.Ref("FLAG"),
					Body:   []ast.Statement{ast.Method("pkg.K", "run", nil, ast.Ref("int"))},
					OrElse: []ast.Statement{ast.Method("pkg.K", "run", nil, ast.Ref("str"))},
				},
			),
		},
	}
	r := NewResolver(environment.BuildStack(context.Background(), []*ast.Module{module}), 8)

	run, ok := r.Attribute(q, instance("pkg.K"), "run")
	require.True(t, ok)
	callable, ok := run.Annotation.Type.(*types.Callable)
	require.True(t, ok)
	assert.Equal(t, "str", callable.Implementation.Annotation.String())
	assert.Empty(t, callable.Overloads)
}
