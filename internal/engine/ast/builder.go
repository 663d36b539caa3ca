package ast

import "typecore/internal/engine/types"

// Ref builds a Name/Attribute chain from dotted text.
func Ref(dotted string) Expression {
	return FromReference(types.Reference(dotted))
}

// Index builds `base[indices...]`.
func Index(base string, indices ...Expression) Expression {
	return &Subscript{Base: Ref(base), Indices: indices}
}

func NoneLiteral() Expression     { return &Constant{Kind: NoneConstant} }
func EllipsisLiteral() Expression { return &Constant{Kind: EllipsisConstant} }
func IntLiteral(v string) Expression {
	return &Constant{Kind: IntegerConstant, Value: v}
}
func StringLiteral(v string) Expression {
	return &Constant{Kind: StringConstant, Value: v}
}

// NewClass declares a class with positional bases.
func NewClass(name types.Reference, bases ...Expression) *Class {
	c := &Class{Name: name}
	for _, base := range bases {
		c.Bases = append(c.Bases, Argument{Value: base})
	}
	return c
}

func (c *Class) WithKeyword(keyword string, value Expression) *Class {
	c.Bases = append(c.Bases, Argument{Keyword: keyword, Value: value})
	return c
}

func (c *Class) With(body ...Statement) *Class {
	c.Body = append(c.Body, body...)
	return c
}

// NewDefine declares a function; Parent is derived by the caller through Method.
func NewDefine(name types.Reference, parameters []Parameter, returns Expression) *Define {
	return &Define{Name: name, Parameters: parameters, ReturnAnnotation: returns, Body: EllipsisBody()}
}

// Method declares a method on class, prepending `self`.
func Method(class types.Reference, name string, parameters []Parameter, returns Expression) *Define {
	params := append([]Parameter{{Name: "self"}}, parameters...)
	d := NewDefine(class.Append(name), params, returns)
	d.Parent = class
	return d
}

func (d *Define) Decorated(decorators ...Expression) *Define {
	d.Decorators = append(d.Decorators, decorators...)
	return d
}

func (d *Define) WithBody(body ...Statement) *Define {
	d.Body = body
	return d
}

func Param(name string, annotation Expression) Parameter {
	return Parameter{Name: name, Annotation: annotation}
}

// Field is an annotated class-body or module-level assignment.
func Field(name string, annotation, value Expression) *Assign {
	return &Assign{Target: Ref(name), Annotation: annotation, Value: value}
}

func EllipsisBody() []Statement {
	return []Statement{&ExpressionStatement{Expression: EllipsisLiteral()}}
}
