package environment

import (
	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

const (
	BuiltinsQualifier types.Reference = ""
	TypingQualifier   types.Reference = "typing"
)

func typeVar(name string, keywords ...ast.Argument) *ast.Assign {
	call := &ast.Call{Callee: ast.Ref("TypeVar"), Arguments: append([]ast.Argument{{Value: ast.StringLiteral(name)}}, keywords...)}
	return &ast.Assign{Target: ast.Ref(name), Value: call}
}

func covariant() ast.Argument {
	return ast.Argument{Keyword: "covariant", Value: &ast.Constant{Kind: ast.TrueConstant}}
}

func generic(vars ...string) ast.Expression {
	indices := make([]ast.Expression, 0, len(vars))
	for _, v := range vars {
		indices = append(indices, ast.Ref(v))
	}
	return ast.Index("Generic", indices...)
}

// BuiltinsModule is the synthetic stub loaded when no `builtins` source is provided.
func BuiltinsModule() *ast.Module {
	self := ast.Ref
	method := func(class types.Reference, name string, returns ast.Expression, params ...ast.Parameter) *ast.Define {
		return ast.Method(class, name, params, returns)
	}
	statements := []ast.Statement{
		&ast.Import{From: TypingQualifier, Imports: []ast.ImportItem{{Name: "TypeVar"}, {Name: "Generic"}}},
		typeVar("_T"),
		typeVar("_K"),
		typeVar("_V"),
		typeVar("_T_co", covariant()),
		ast.NewClass("object").With(
			method("object", "__init__", ast.NoneLiteral()),
			method("object", "__str__", self("str")),
			method("object", "__eq__", self("bool"), ast.Param("other", self("object"))),
		),
		ast.NewClass("type").With(
			method("type", "__call__", self("object")),
		),
		ast.NewClass("NoneType"),
		ast.NewClass("int").With(
			method("int", "__add__", self("int"), ast.Param("other", self("int"))),
		),
		ast.NewClass("float"),
		ast.NewClass("complex"),
		ast.NewClass("bool", self("int")),
		ast.NewClass("str").With(
			method("str", "upper", self("str")),
			method("str", "__add__", self("str"), ast.Param("other", self("str"))),
		),
		ast.NewClass("bytes"),
		ast.NewClass("ellipsis"),
		ast.NewClass("function"),
		ast.NewClass("property"),
		ast.NewClass("staticmethod"),
		ast.NewClass("classmethod"),
		ast.NewClass("BaseException"),
		ast.NewClass("Exception", self("BaseException")),
		ast.NewClass("list", generic("_T")).With(
			method("list", "append", ast.NoneLiteral(), ast.Param("item", self("_T"))),
			method("list", "__getitem__", self("_T"), ast.Param("index", self("int"))),
		),
		ast.NewClass("set", generic("_T")).With(
			method("set", "add", ast.NoneLiteral(), ast.Param("item", self("_T"))),
		),
		ast.NewClass("frozenset", generic("_T_co")),
		ast.NewClass("dict", generic("_K", "_V")).With(
			method("dict", "__getitem__", self("_V"), ast.Param("key", self("_K"))),
			method("dict", "get", ast.Index("typing.Optional", self("_V")), ast.Param("key", self("_K"))),
		),
		ast.NewClass("tuple", generic("_T_co")).With(
			method("tuple", "__getitem__", self("_T_co"), ast.Param("index", self("int"))),
		),
	}
	return &ast.Module{Qualifier: BuiltinsQualifier, Path: "builtins.pyi", IsStub: true, Statements: statements}
}

// TypingModule declares the typing names that are not special-cased by annotation parsing.
func TypingModule() *ast.Module {
	statements := []ast.Statement{
		typeVar("_T_co", covariant()),
		ast.NewClass("typing.TypeVar"),
		ast.NewClass("typing.Generic"),
		ast.NewClass("typing.Protocol"),
		ast.NewClass("typing.Iterable", ast.Index("typing.Protocol", ast.Ref("typing._T_co"))),
		ast.NewClass("typing.Sequence", ast.Index("typing.Iterable", ast.Ref("typing._T_co"))),
		ast.NewClass("typing.Mapping", ast.Index("typing.Generic", ast.Ref("typing._T_co"))),
		ast.NewClass("typing.Awaitable", ast.Index("typing.Generic", ast.Ref("typing._T_co"))),
		ast.NewClass("typing.Callable"),
		ast.NewClass("typing.NamedTuple", ast.Ref("tuple")),
	}
	return &ast.Module{Qualifier: TypingQualifier, Path: "typing.pyi", IsStub: true, Statements: statements}
}
