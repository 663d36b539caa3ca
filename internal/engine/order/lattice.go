package order

import "typecore/internal/engine/types"

// Join is the least upper bound of left and right. Unrelated types, and classes
// whose only common successor is object, join to a union.
func (o *Order) Join(left, right types.Type) types.Type {
	switch {
	case left == types.Top || right == types.Top:
		return types.Top
	case left == types.Any || right == types.Any:
		return types.Any
	case left == types.Bottom:
		return right
	case right == types.Bottom:
		return left
	}
	if o.LessOrEqual(left, right) {
		return right
	}
	if o.LessOrEqual(right, left) {
		return left
	}

	_, leftIsUnion := left.(*types.Union)
	_, rightIsUnion := right.(*types.Union)
	if leftIsUnion || rightIsUnion {
		return types.NewUnion(left, right)
	}

	switch l := left.(type) {
	case *types.Callable:
		if r, ok := right.(*types.Callable); ok {
			if joined, ok := o.joinCallables(l, r); ok {
				return joined
			}
		}
	case *types.Tuple:
		if r, ok := right.(*types.Tuple); ok {
			return o.joinTuples(l, r)
		}
	}

	if joined, ok := o.joinNominal(left, right); ok {
		return joined
	}
	return types.NewUnion(left, right)
}

func (o *Order) joinNominal(left, right types.Type) (types.Type, bool) {
	leftName, leftArguments := types.Split(left)
	rightName, rightArguments := types.Split(right)
	if leftName == "" || rightName == "" || !o.handler.IsTracked(leftName) || !o.handler.IsTracked(rightName) {
		return nil, false
	}
	rightMRO := append([]string{rightName}, o.handler.Successors(rightName)...)
	for _, candidate := range append([]string{leftName}, o.handler.Successors(leftName)...) {
		if candidate == objectClass || !contains(rightMRO, candidate) {
			continue
		}
		leftInstantiated, ok := o.instantiate(leftName, leftArguments, candidate)
		if !ok {
			return nil, false
		}
		rightInstantiated, ok := o.instantiate(rightName, rightArguments, candidate)
		if !ok {
			return nil, false
		}
		if len(leftInstantiated) == 0 {
			return types.NewPrimitive(candidate), true
		}
		arguments, ok := o.joinArguments(candidate, leftInstantiated, rightInstantiated)
		if !ok {
			return nil, false
		}
		return types.NewParametric(candidate, arguments...), true
	}
	return nil, false
}

func (o *Order) instantiate(source string, arguments []types.Type, target string) ([]types.Type, bool) {
	if source == target {
		return arguments, true
	}
	return o.handler.InstantiateSuccessorParameters(source, arguments, target)
}

func (o *Order) joinArguments(name string, left, right []types.Type) ([]types.Type, bool) {
	if len(left) != len(right) {
		return nil, false
	}
	variables, _ := o.handler.Variables(name)
	out := make([]types.Type, len(left))
	for i := range left {
		variance := types.Invariant
		if i < len(variables) {
			variance = variables[i].Variance
		}
		switch variance {
		case types.Covariant:
			out[i] = o.Join(left[i], right[i])
		case types.Contravariant:
			out[i] = o.Meet(left[i], right[i])
		default:
			if !o.LessOrEqual(left[i], right[i]) || !o.LessOrEqual(right[i], left[i]) {
				return nil, false
			}
			out[i] = left[i]
		}
	}
	return out, true
}

func (o *Order) joinCallables(left, right *types.Callable) (types.Type, bool) {
	returns := o.Join(left.ReturnAnnotation(), right.ReturnAnnotation())
	if left.Implementation.Undefined || right.Implementation.Undefined {
		return &types.Callable{Implementation: types.Signature{Undefined: true, Annotation: returns}}, true
	}
	lp, rp := left.Implementation.Parameters, right.Implementation.Parameters
	if len(lp) != len(rp) {
		return nil, false
	}
	parameters := make([]types.Parameter, len(lp))
	for i := range lp {
		if lp[i].Kind != rp[i].Kind {
			return nil, false
		}
		parameters[i] = lp[i]
		parameters[i].Annotation = o.Meet(parameterType(lp[i]), parameterType(rp[i]))
	}
	return types.NewCallable("", parameters, returns), true
}

func (o *Order) joinTuples(left, right *types.Tuple) types.Type {
	if left.Unbounded == nil && right.Unbounded == nil && len(left.Elements) == len(right.Elements) {
		elements := make([]types.Type, len(left.Elements))
		for i := range left.Elements {
			elements[i] = o.Join(left.Elements[i], right.Elements[i])
		}
		return types.NewTuple(elements...)
	}
	return types.NewUnboundedTuple(o.Join(tupleElement(left), tupleElement(right)))
}

func tupleElement(t *types.Tuple) types.Type {
	if t.Unbounded != nil {
		return t.Unbounded
	}
	return types.NewUnion(t.Elements...)
}

// Meet is the greatest lower bound of left and right; unrelated types meet at Bottom.
func (o *Order) Meet(left, right types.Type) types.Type {
	switch {
	case left == types.Top || left == types.Any:
		return right
	case right == types.Top || right == types.Any:
		return left
	case left == types.Bottom || right == types.Bottom:
		return types.Bottom
	}
	if o.LessOrEqual(left, right) {
		return left
	}
	if o.LessOrEqual(right, left) {
		return right
	}
	if union, ok := left.(*types.Union); ok {
		return o.meetMembers(union, right)
	}
	if union, ok := right.(*types.Union); ok {
		return o.meetMembers(union, left)
	}
	return types.Bottom
}

func (o *Order) meetMembers(union *types.Union, other types.Type) types.Type {
	members := make([]types.Type, 0, len(union.Members))
	for _, member := range union.Members {
		members = append(members, o.Meet(member, other))
	}
	return types.NewUnion(members...)
}

// Widen joins next into previous until iteration exceeds threshold, after which it
// gives up at Top so fixpoint iteration terminates.
func (o *Order) Widen(threshold int, previous, next types.Type, iteration int) types.Type {
	if iteration > threshold {
		return types.Top
	}
	return o.Join(previous, next)
}
