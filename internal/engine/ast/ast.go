// Package ast holds the declaration-level syntax the environment stack consumes.
// Nodes are produced by the tree-sitter extractor in internal/engine/parser or built
// directly in tests.
package ast

import (
	"fmt"
	"strings"

	"typecore/internal/engine/types"
)

type Location struct {
	Path   string
	Line   int
	Column int
}

// Module is one parsed source file. The builtins module has an empty qualifier.
type Module struct {
	Qualifier  types.Reference
	Path       string
	IsStub     bool
	Statements []Statement
}

type Statement interface {
	isStatement()
}

type Expression interface {
	String() string
	isExpression()
}

// Argument is a call or class-base argument; Keyword is empty for positional ones.
type Argument struct {
	Keyword string
	Value   Expression
}

// Class is a class declaration. Name is fully qualified.
type Class struct {
	Name       types.Reference
	Bases      []Argument
	Decorators []Expression
	Body       []Statement
	Location   Location
}

type Parameter struct {
	Name       string
	Annotation Expression
	Value      Expression
	Kind       types.ParameterKind
}

// Define is a function or method declaration. Name is fully qualified and Parent is
// the enclosing class for methods.
type Define struct {
	Name             types.Reference
	Parent           types.Reference
	Parameters       []Parameter
	ReturnAnnotation Expression
	Decorators       []Expression
	Async            bool
	Body             []Statement
	Location         Location
}

// Assign covers plain, annotated and annotation-only (`x: int`) assignments.
type Assign struct {
	Target     Expression
	Annotation Expression
	Value      Expression
	Location   Location
}

type ImportItem struct {
	Name  types.Reference
	Alias string
}

// Import is `import a.b as c` (From empty) or `from a import b as c`.
type Import struct {
	From    types.Reference
	Imports []ImportItem
}

// If keeps both branches so conditional redefinitions stay visible.
type If struct {
	Test   Expression
	Body   []Statement
	OrElse []Statement
}

// ExpressionStatement is a bare expression, including `...` bodies.
type ExpressionStatement struct {
	Expression Expression
}

type Pass struct{}

type Return struct {
	Value Expression
}

func (*Class) isStatement()               {}
func (*Define) isStatement()              {}
func (*Assign) isStatement()              {}
func (*Import) isStatement()              {}
func (*If) isStatement()                  {}
func (*ExpressionStatement) isStatement() {}
func (*Pass) isStatement()                {}
func (*Return) isStatement()              {}

type Name struct {
	Identifier string
}

type Attribute struct {
	Base      Expression
	Attribute string
}

type Subscript struct {
	Base    Expression
	Indices []Expression
}

type Call struct {
	Callee    Expression
	Arguments []Argument
}

// BinaryOr is the `X | Y` union spelling.
type BinaryOr struct {
	Left  Expression
	Right Expression
}

type ConstantKind int

const (
	NoneConstant ConstantKind = iota
	EllipsisConstant
	IntegerConstant
	FloatConstant
	StringConstant
	TrueConstant
	FalseConstant
)

type Constant struct {
	Kind  ConstantKind
	Value string
}

type List struct {
	Elements []Expression
}

type Tuple struct {
	Elements []Expression
}

// Unknown keeps the source text of an expression form the core does not model.
type Unknown struct {
	Text string
}

func (*Name) isExpression()      {}
func (*Attribute) isExpression() {}
func (*Subscript) isExpression() {}
func (*Call) isExpression()      {}
func (*BinaryOr) isExpression()  {}
func (*Constant) isExpression()  {}
func (*List) isExpression()      {}
func (*Tuple) isExpression()     {}
func (*Unknown) isExpression()   {}

func (n *Name) String() string      { return n.Identifier }
func (a *Attribute) String() string { return a.Base.String() + "." + a.Attribute }
func (s *Subscript) String() string {
	return fmt.Sprintf("%s[%s]", s.Base.String(), joinExpressions(s.Indices))
}
func (c *Call) String() string {
	args := make([]string, 0, len(c.Arguments))
	for _, arg := range c.Arguments {
		if arg.Keyword != "" {
			args = append(args, arg.Keyword+"="+arg.Value.String())
			continue
		}
		args = append(args, arg.Value.String())
	}
	return fmt.Sprintf("%s(%s)", c.Callee.String(), strings.Join(args, ", "))
}
func (b *BinaryOr) String() string { return b.Left.String() + " | " + b.Right.String() }
func (c *Constant) String() string {
	switch c.Kind {
	case NoneConstant:
		return "None"
	case EllipsisConstant:
		return "..."
	case TrueConstant:
		return "True"
	case FalseConstant:
		return "False"
	case StringConstant:
		return fmt.Sprintf("%q", c.Value)
	default:
		return c.Value
	}
}
func (l *List) String() string  { return "[" + joinExpressions(l.Elements) + "]" }
func (t *Tuple) String() string { return "(" + joinExpressions(t.Elements) + ")" }
func (u *Unknown) String() string { return u.Text }

func joinExpressions(list []Expression) string {
	parts := make([]string, 0, len(list))
	for _, e := range list {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, ", ")
}

// NameToReference converts a Name/Attribute chain into a dotted reference.
func NameToReference(e Expression) (types.Reference, bool) {
	switch e := e.(type) {
	case *Name:
		return types.Reference(e.Identifier), true
	case *Attribute:
		base, ok := NameToReference(e.Base)
		if !ok {
			return "", false
		}
		return base.Append(e.Attribute), true
	default:
		return "", false
	}
}

// FromReference builds the Name/Attribute chain for a dotted reference.
func FromReference(ref types.Reference) Expression {
	parts := ref.Parts()
	if len(parts) == 0 {
		return nil
	}
	var e Expression = &Name{Identifier: parts[0]}
	for _, part := range parts[1:] {
		e = &Attribute{Base: e, Attribute: part}
	}
	return e
}

// HasEllipsisBody reports whether a body consists only of `...` (or a docstring and `...`).
func HasEllipsisBody(body []Statement) bool {
	if len(body) == 0 {
		return false
	}
	last, ok := body[len(body)-1].(*ExpressionStatement)
	if !ok {
		return false
	}
	c, ok := last.Expression.(*Constant)
	if !ok || c.Kind != EllipsisConstant {
		return false
	}
	for _, stmt := range body[:len(body)-1] {
		doc, ok := stmt.(*ExpressionStatement)
		if !ok {
			return false
		}
		if c, ok := doc.Expression.(*Constant); !ok || c.Kind != StringConstant {
			return false
		}
	}
	return true
}

// HasDecorator matches decorators by full dotted name or by final segment.
func (d *Define) HasDecorator(names ...string) bool {
	return hasDecorator(d.Decorators, names...)
}

func (c *Class) HasDecorator(names ...string) bool {
	return hasDecorator(c.Decorators, names...)
}

func hasDecorator(decorators []Expression, names ...string) bool {
	for _, decorator := range decorators {
		target := decorator
		if call, ok := decorator.(*Call); ok {
			target = call.Callee
		}
		ref, ok := NameToReference(target)
		if !ok {
			continue
		}
		for _, name := range names {
			if ref == types.Reference(name) || (!strings.Contains(name, ".") && ref.Last() == name) {
				return true
			}
		}
	}
	return false
}

// SetterTarget returns `prop` for a `@prop.setter` decorator.
func (d *Define) SetterTarget() (string, bool) {
	for _, decorator := range d.Decorators {
		attr, ok := decorator.(*Attribute)
		if !ok || attr.Attribute != "setter" {
			continue
		}
		if ref, ok := NameToReference(attr.Base); ok {
			return ref.Last(), true
		}
	}
	return "", false
}

// Walk visits statements depth-first in declaration order, descending into class,
// function and conditional bodies.
func Walk(statements []Statement, visit func(Statement)) {
	for _, stmt := range statements {
		visit(stmt)
		switch s := stmt.(type) {
		case *Class:
			Walk(s.Body, visit)
		case *Define:
			Walk(s.Body, visit)
		case *If:
			Walk(s.Body, visit)
			Walk(s.OrElse, visit)
		}
	}
}
