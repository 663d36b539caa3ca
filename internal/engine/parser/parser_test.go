package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typecore/internal/core/errors"
	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

func parse(t *testing.T, path string, qualifier types.Reference, code string) *ast.Module {
	t.Helper()
	p := NewParser(NewGrammarLoader())
	module, err := p.ParseFile(path, qualifier, []byte(code))
	require.NoError(t, err)
	return module
}

func TestParseFile_Imports(t *testing.T) {
	module := parse(t, "pkg/sub/mod.py", "pkg.sub.mod", `
import os
import sys as system
from auth.utils import login as auth_login, logout
from . import sibling
from ..top import thing
from star import *
`)
	require.Len(t, module.Statements, 5)

	first := module.Statements[0].(*ast.Import)
	assert.Equal(t, types.Reference(""), first.From)
	assert.Equal(t, []ast.ImportItem{{Name: "os"}}, first.Imports)

	second := module.Statements[1].(*ast.Import)
	assert.Equal(t, []ast.ImportItem{{Name: "sys", Alias: "system"}}, second.Imports)

	third := module.Statements[2].(*ast.Import)
	assert.Equal(t, types.Reference("auth.utils"), third.From)
	assert.Equal(t, []ast.ImportItem{{Name: "login", Alias: "auth_login"}, {Name: "logout"}}, third.Imports)

	assert.Equal(t, types.Reference("pkg.sub"), module.Statements[3].(*ast.Import).From)
	assert.Equal(t, types.Reference("pkg.top"), module.Statements[4].(*ast.Import).From)
}

func TestParseFile_RelativeImportFromPackageInit(t *testing.T) {
	module := parse(t, "pkg/__init__.py", "pkg", "from .mod import A\n")
	require.Len(t, module.Statements, 1)
	assert.Equal(t, types.Reference("pkg.mod"), module.Statements[0].(*ast.Import).From)
}

func TestParseFile_ClassesAndMethods(t *testing.T) {
	module := parse(t, "pkg.py", "pkg", `
class Box(Generic[T], metaclass=Meta):
    """A box."""
    item: T
    limit: int = 3

    def __init__(self, item: T) -> None:
        self.item = item

    @property
    def size(self) -> int: ...

    async def fetch(self, *args, key: str = "", **kwargs) -> T:
        return self.item
`)
	require.Len(t, module.Statements, 1)
	class := module.Statements[0].(*ast.Class)
	assert.Equal(t, types.Reference("pkg.Box"), class.Name)
	assert.Equal(t, 2, class.Location.Line)
	require.Len(t, class.Bases, 2)
	assert.Equal(t, "Generic[T]", class.Bases[0].Value.String())
	assert.Equal(t, "metaclass", class.Bases[1].Keyword)
	assert.Equal(t, "Meta", class.Bases[1].Value.String())

	var fields []*ast.Assign
	var methods []*ast.Define
	for _, stmt := range class.Body {
		switch s := stmt.(type) {
		case *ast.Assign:
			fields = append(fields, s)
		case *ast.Define:
			methods = append(methods, s)
		}
	}
	require.Len(t, fields, 2)
	assert.Equal(t, "item", fields[0].Target.String())
	assert.Equal(t, "T", fields[0].Annotation.String())
	assert.Nil(t, fields[0].Value)
	assert.Equal(t, "3", fields[1].Value.String())

	require.Len(t, methods, 3)
	init := methods[0]
	assert.Equal(t, types.Reference("pkg.Box.__init__"), init.Name)
	assert.Equal(t, types.Reference("pkg.Box"), init.Parent)
	require.Len(t, init.Parameters, 2)
	assert.Equal(t, "self", init.Parameters[0].Name)
	assert.Nil(t, init.Parameters[0].Annotation)
	assert.Equal(t, "T", init.Parameters[1].Annotation.String())
	assert.Equal(t, "None", init.ReturnAnnotation.String())

	size := methods[1]
	assert.True(t, size.HasDecorator("property"))
	assert.True(t, ast.HasEllipsisBody(size.Body))

	fetch := methods[2]
	assert.True(t, fetch.Async)
	require.Len(t, fetch.Parameters, 4)
	assert.Equal(t, types.VariableParameter, fetch.Parameters[1].Kind)
	assert.Equal(t, "args", fetch.Parameters[1].Name)
	assert.Equal(t, types.KeywordOnlyParameter, fetch.Parameters[2].Kind)
	assert.Equal(t, "str", fetch.Parameters[2].Annotation.String())
	assert.NotNil(t, fetch.Parameters[2].Value)
	assert.Equal(t, types.KeywordsParameter, fetch.Parameters[3].Kind)
}

func TestParseFile_ParameterSeparators(t *testing.T) {
	module := parse(t, "pkg.py", "pkg", "def f(a, /, b, *, c): ...\n")
	define := module.Statements[0].(*ast.Define)
	require.Len(t, define.Parameters, 3)
	assert.Equal(t, types.PositionalOnlyParameter, define.Parameters[0].Kind)
	assert.Equal(t, types.PositionalParameter, define.Parameters[1].Kind)
	assert.Equal(t, types.KeywordOnlyParameter, define.Parameters[2].Kind)
}

func TestParseFile_Assignments(t *testing.T) {
	module := parse(t, "pkg.py", "pkg", `
a = b = 1
x: int | None = None
name: Final = "n"
pair = (1, [2.5, -3])
counter += 1
`)
	require.Len(t, module.Statements, 5)

	a := module.Statements[0].(*ast.Assign)
	b := module.Statements[1].(*ast.Assign)
	assert.Equal(t, "a", a.Target.String())
	assert.Equal(t, "b", b.Target.String())
	assert.Equal(t, &ast.Constant{Kind: ast.IntegerConstant, Value: "1"}, a.Value)

	x := module.Statements[2].(*ast.Assign)
	require.IsType(t, &ast.BinaryOr{}, x.Annotation)
	assert.Equal(t, "int | None", x.Annotation.String())

	name := module.Statements[3].(*ast.Assign)
	assert.Equal(t, &ast.Constant{Kind: ast.StringConstant, Value: "n"}, name.Value)

	pair := module.Statements[4].(*ast.Assign)
	tuple := pair.Value.(*ast.Tuple)
	require.Len(t, tuple.Elements, 2)
	list := tuple.Elements[1].(*ast.List)
	assert.Equal(t, ast.FloatConstant, list.Elements[0].(*ast.Constant).Kind)
	assert.Equal(t, &ast.Constant{Kind: ast.IntegerConstant, Value: "-3"}, list.Elements[1])
}

func TestParseFile_ConditionalBlocks(t *testing.T) {
	module := parse(t, "pkg.py", "pkg", `
if flag:
    def helper() -> int: ...
elif other:
    def helper() -> str: ...
else:
    class C: ...
try:
    import fast
except ImportError:
    fast = None
for item in items:
    loop_var = item
with open(p) as fh:
    inner = 1
`)
	var defines, classes, imports, assigns int
	ast.Walk(module.Statements, func(stmt ast.Statement) {
		switch stmt.(type) {
		case *ast.Define:
			defines++
		case *ast.Class:
			classes++
		case *ast.Import:
			imports++
		case *ast.Assign:
			assigns++
		}
	})
	assert.Equal(t, 2, defines)
	assert.Equal(t, 1, classes)
	assert.Equal(t, 1, imports)
	assert.Equal(t, 3, assigns)

	root := module.Statements[0].(*ast.If)
	assert.Equal(t, "flag", root.Test.String())
	require.Len(t, root.OrElse, 1)
	elif := root.OrElse[0].(*ast.If)
	assert.Equal(t, "other", elif.Test.String())
	require.Len(t, elif.OrElse, 1)
	assert.IsType(t, &ast.Class{}, elif.OrElse[0])
}

func TestParseFile_UnsupportedExtension(t *testing.T) {
	p := NewParser(NewGrammarLoader())
	_, err := p.ParseFile("main.go", "main", []byte("package main"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
	assert.False(t, p.Supports("main.go"))
	assert.True(t, p.Supports("stub.pyi"))
}

func TestParseFile_Stub(t *testing.T) {
	module := parse(t, "pkg/typing.pyi", "pkg.typing", "def f() -> int: ...\n")
	assert.True(t, module.IsStub)
}

func TestParseExpression(t *testing.T) {
	p := NewParser(NewGrammarLoader())

	expr, err := p.ParseExpression("typing.Dict[str, int]")
	require.NoError(t, err)
	subscript := expr.(*ast.Subscript)
	assert.Equal(t, "typing.Dict", subscript.Base.String())
	assert.Len(t, subscript.Indices, 2)

	expr, err = p.ParseExpression("Box(1).get()")
	require.NoError(t, err)
	assert.IsType(t, &ast.Call{}, expr)

	expr, err = p.ParseExpression("lambda: 1")
	require.NoError(t, err)
	assert.IsType(t, &ast.Unknown{}, expr)

	_, err = p.ParseExpression("x = 1")
	assert.True(t, errors.IsCode(err, errors.CodeParseError))
}

func TestQualifierFromPath(t *testing.T) {
	cases := []struct {
		path      string
		qualifier types.Reference
		stub      bool
	}{
		{"/src/pkg/mod.py", "pkg.mod", false},
		{"/src/pkg/__init__.py", "pkg", false},
		{"/src/pkg/sub/__init__.pyi", "pkg.sub", true},
		{"/src/builtins.pyi", "", true},
		{"/src/top.py", "top", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			qualifier, stub := QualifierFromPath("/src", tc.path)
			assert.Equal(t, tc.qualifier, qualifier)
			assert.Equal(t, tc.stub, stub)
		})
	}
}
