// Package order implements the subtyping lattice over types.Type: less-or-equal,
// compatibility, join, meet, widening and type-variable constraint solving.
package order

import (
	"typecore/internal/engine/environment"
	"typecore/internal/engine/types"
)

// Handler is the slice of the class hierarchy the lattice needs.
type Handler interface {
	IsTracked(name string) bool
	Successors(name string) []string
	Variables(name string) ([]*types.Variable, bool)
	InstantiateSuccessorParameters(source string, arguments []types.Type, target string) ([]types.Type, bool)
}

// Order is a snapshot of the lattice over one class hierarchy. It holds no
// mutable state.
type Order struct {
	handler Handler
}

func New(handler Handler) *Order {
	return &Order{handler: handler}
}

type environmentHandler struct {
	reader environment.ClassHierarchyReader
	query  environment.Query
}

// FromEnvironment builds an Order whose hierarchy reads are recorded under q.
func FromEnvironment(reader environment.ClassHierarchyReader, q environment.Query) *Order {
	return New(environmentHandler{reader: reader, query: q})
}

func (h environmentHandler) IsTracked(name string) bool {
	return h.reader.IsTracked(h.query, name)
}

func (h environmentHandler) Successors(name string) []string {
	return h.reader.Successors(h.query, name)
}

func (h environmentHandler) Variables(name string) ([]*types.Variable, bool) {
	return h.reader.Variables(h.query, name)
}

func (h environmentHandler) InstantiateSuccessorParameters(source string, arguments []types.Type, target string) ([]types.Type, bool) {
	return h.reader.InstantiateSuccessorParameters(h.query, source, arguments, target)
}

const objectClass = "object"

// numeric promotions accepted in place of nominal inheritance.
var promotions = map[string][]string{
	"int":   {"float", "complex"},
	"float": {"complex"},
}

func isObject(t types.Type) bool {
	p, ok := t.(*types.Primitive)
	return ok && p.Name == objectClass
}

// LessOrEqual reports whether left is a subtype of right.
func (o *Order) LessOrEqual(left, right types.Type) bool {
	return o.lessOrEqual(left, right, false)
}

// IsCompatibleWith is LessOrEqual with every type argument treated covariantly.
func (o *Order) IsCompatibleWith(left, right types.Type) bool {
	return o.lessOrEqual(left, right, true)
}

func (o *Order) lessOrEqual(left, right types.Type, compatible bool) bool {
	if types.Equal(left, right) {
		return true
	}
	switch {
	case right == types.Top:
		return true
	case left == types.Top:
		return false
	case left == types.Bottom:
		return true
	case right == types.Bottom:
		return false
	case left == types.Any || right == types.Any:
		return true
	}

	if union, ok := left.(*types.Union); ok {
		for _, member := range union.Members {
			if !o.lessOrEqual(member, right, compatible) {
				return false
			}
		}
		return true
	}
	if v, ok := left.(*types.Variable); ok {
		if rv, ok := right.(*types.Variable); ok && rv.Name == v.Name {
			return true
		}
		if union, ok := right.(*types.Union); ok {
			for _, member := range union.Members {
				if o.lessOrEqual(v, member, compatible) {
					return true
				}
			}
		}
		if len(v.Constraints) > 0 {
			for _, constraint := range v.Constraints {
				if !o.lessOrEqual(constraint, right, compatible) {
					return false
				}
			}
			return true
		}
		return o.lessOrEqual(v.UpperBound(), right, compatible)
	}
	if union, ok := right.(*types.Union); ok {
		for _, member := range union.Members {
			if o.lessOrEqual(left, member, compatible) {
				return true
			}
		}
		return false
	}
	if _, ok := right.(*types.Variable); ok {
		return false
	}
	if isObject(right) {
		return true
	}
	if left == types.NoneType || right == types.NoneType {
		return false
	}

	switch l := left.(type) {
	case *types.Callable:
		switch r := right.(type) {
		case *types.Callable:
			return o.callableLessOrEqual(l, r, compatible)
		default:
			return o.lessOrEqual(types.NewPrimitive("function"), right, compatible)
		}
	case *types.Tuple:
		if r, ok := right.(*types.Tuple); ok {
			return o.tupleLessOrEqual(l, r, compatible)
		}
	}
	if _, ok := right.(*types.Tuple); ok {
		return false
	}
	if _, ok := right.(*types.Callable); ok {
		return false
	}

	leftMeta, leftIsMeta := types.MetaArgument(left)
	rightMeta, rightIsMeta := types.MetaArgument(right)
	if leftIsMeta && rightIsMeta {
		return o.lessOrEqual(leftMeta, rightMeta, compatible)
	}

	return o.nominalLessOrEqual(left, right, compatible)
}

func (o *Order) nominalLessOrEqual(left, right types.Type, compatible bool) bool {
	leftName, leftArguments := types.Split(left)
	rightName, rightArguments := types.Split(right)
	if leftName == "" || rightName == "" {
		return false
	}
	if leftName == rightName {
		return o.argumentsLessOrEqual(rightName, leftArguments, rightArguments, compatible)
	}
	successors := o.handler.Successors(leftName)
	for _, name := range append([]string{leftName}, successors...) {
		if contains(promotions[name], rightName) {
			return true
		}
	}
	if !contains(successors, rightName) {
		return false
	}
	instantiated, ok := o.handler.InstantiateSuccessorParameters(leftName, leftArguments, rightName)
	if !ok {
		return false
	}
	return o.argumentsLessOrEqual(rightName, instantiated, rightArguments, compatible)
}

// argumentsLessOrEqual compares type arguments of the same class by declared
// variance. Missing argument lists are treated as Any.
func (o *Order) argumentsLessOrEqual(name string, left, right []types.Type, compatible bool) bool {
	if len(left) == 0 || len(right) == 0 {
		return true
	}
	if len(left) != len(right) {
		return false
	}
	variables, _ := o.handler.Variables(name)
	for i := range left {
		variance := types.Invariant
		if i < len(variables) {
			if variables[i].Variadic {
				return true
			}
			variance = variables[i].Variance
		}
		if compatible {
			variance = types.Covariant
		}
		switch variance {
		case types.Covariant:
			if !o.lessOrEqual(left[i], right[i], compatible) {
				return false
			}
		case types.Contravariant:
			if !o.lessOrEqual(right[i], left[i], compatible) {
				return false
			}
		default:
			if !o.lessOrEqual(left[i], right[i], compatible) || !o.lessOrEqual(right[i], left[i], compatible) {
				return false
			}
		}
	}
	return true
}

func (o *Order) callableLessOrEqual(left, right *types.Callable, compatible bool) bool {
	if !o.lessOrEqual(left.ReturnAnnotation(), right.ReturnAnnotation(), compatible) {
		return false
	}
	if left.Implementation.Undefined || right.Implementation.Undefined {
		return true
	}
	lp, rp := left.Implementation.Parameters, right.Implementation.Parameters
	if len(lp) < len(rp) {
		return false
	}
	for i := range lp {
		if i >= len(rp) {
			if !lp[i].Default && lp[i].Kind != types.VariableParameter && lp[i].Kind != types.KeywordsParameter {
				return false
			}
			continue
		}
		if !o.lessOrEqual(parameterType(rp[i]), parameterType(lp[i]), compatible) {
			return false
		}
	}
	return true
}

func parameterType(p types.Parameter) types.Type {
	if p.Annotation == nil {
		return types.Top
	}
	return p.Annotation
}

func (o *Order) tupleLessOrEqual(left, right *types.Tuple, compatible bool) bool {
	switch {
	case left.Unbounded != nil && right.Unbounded != nil:
		return o.lessOrEqual(left.Unbounded, right.Unbounded, compatible)
	case left.Unbounded != nil:
		return false
	case right.Unbounded != nil:
		for _, element := range left.Elements {
			if !o.lessOrEqual(element, right.Unbounded, compatible) {
				return false
			}
		}
		return true
	}
	if len(left.Elements) != len(right.Elements) {
		return false
	}
	for i := range left.Elements {
		if !o.lessOrEqual(left.Elements[i], right.Elements[i], compatible) {
			return false
		}
	}
	return true
}

func contains(list []string, name string) bool {
	for _, entry := range list {
		if entry == name {
			return true
		}
	}
	return false
}
