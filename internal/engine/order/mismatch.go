package order

import "typecore/internal/engine/types"

// IsInvarianceMismatch flags an assignment between two instantiations of the same
// generic class where an invariant argument of left is a strict subtype of the
// corresponding argument of right, e.g. list[int] into list[float]. Variadic
// classes and argument lists of different lengths are never flagged.
func (o *Order) IsInvarianceMismatch(left, right types.Type) bool {
	l, ok := left.(*types.Parametric)
	if !ok {
		return false
	}
	r, ok := right.(*types.Parametric)
	if !ok || l.Name != r.Name || len(l.Arguments) != len(r.Arguments) {
		return false
	}
	variables, ok := o.handler.Variables(l.Name)
	if !ok {
		return false
	}
	for _, v := range variables {
		if v.Variadic {
			return false
		}
	}
	for i := range l.Arguments {
		if i >= len(variables) || variables[i].Variance != types.Invariant {
			continue
		}
		if o.LessOrEqual(l.Arguments[i], r.Arguments[i]) && !o.LessOrEqual(r.Arguments[i], l.Arguments[i]) {
			return true
		}
	}
	return false
}
