package order

import (
	"strings"

	"github.com/benbjohnson/immutable"

	"typecore/internal/engine/types"
)

type stringComparer struct{}

func (stringComparer) Compare(a, b string) int { return strings.Compare(a, b) }

// interval bounds the solutions of one type variable. Nil bounds are open.
type interval struct {
	variable *types.Variable
	lower    types.Type
	upper    types.Type
}

// TypeConstraints is a persistent set of per-variable intervals. Adding a bound
// returns a new value, so alternative solutions share structure.
type TypeConstraints struct {
	intervals *immutable.SortedMap[string, interval]
}

// EmptyConstraints has no bounds on any variable.
func EmptyConstraints() TypeConstraints {
	return TypeConstraints{intervals: immutable.NewSortedMap[string, interval](stringComparer{})}
}

func (c TypeConstraints) table() *immutable.SortedMap[string, interval] {
	if c.intervals == nil {
		return EmptyConstraints().intervals
	}
	return c.intervals
}

func (c TypeConstraints) IsEmpty() bool {
	return c.table().Len() == 0
}

func (c TypeConstraints) has(name string) bool {
	_, ok := c.table().Get(name)
	return ok
}

// Solution maps type variable names to their solved types.
type Solution map[string]types.Type

// Instantiate substitutes solved variables in t.
func (s Solution) Instantiate(t types.Type) types.Type {
	return types.Substitute(t, s)
}

// SolveLessOrEqual finds every way of extending constraints so that left <= right,
// treating type variables in right as unknowns. An empty result means no solution.
func (o *Order) SolveLessOrEqual(constraints TypeConstraints, left, right types.Type) []TypeConstraints {
	return o.solve(constraints, left, right)
}

func (o *Order) solve(c TypeConstraints, left, right types.Type) []TypeConstraints {
	if v, ok := right.(*types.Variable); ok {
		if left == types.Bottom {
			return []TypeConstraints{c}
		}
		return o.addLowerBound(c, v, left)
	}
	if v, ok := left.(*types.Variable); ok && c.has(v.Name) {
		return o.addUpperBound(c, v, right)
	}
	if !types.ContainsVariable(right) {
		if o.LessOrEqual(left, right) {
			return []TypeConstraints{c}
		}
		return nil
	}
	if left == types.Any || left == types.Top || left == types.Bottom {
		return []TypeConstraints{c}
	}

	if union, ok := left.(*types.Union); ok {
		results := []TypeConstraints{c}
		for _, member := range union.Members {
			var next []TypeConstraints
			for _, partial := range results {
				next = append(next, o.solve(partial, member, right)...)
			}
			results = next
		}
		return results
	}
	if union, ok := right.(*types.Union); ok {
		for _, member := range union.Members {
			if !types.ContainsVariable(member) && o.LessOrEqual(left, member) {
				return []TypeConstraints{c}
			}
		}
		var results []TypeConstraints
		for _, member := range union.Members {
			if types.ContainsVariable(member) {
				results = append(results, o.solve(c, left, member)...)
			}
		}
		return results
	}

	switch r := right.(type) {
	case *types.Callable:
		l, ok := left.(*types.Callable)
		if !ok {
			return nil
		}
		return o.solveCallables(c, l, r)
	case *types.Tuple:
		l, ok := left.(*types.Tuple)
		if !ok {
			return nil
		}
		return o.solveTuples(c, l, r)
	}

	if leftMeta, ok := types.MetaArgument(left); ok {
		if rightMeta, ok := types.MetaArgument(right); ok {
			return o.solve(c, leftMeta, rightMeta)
		}
	}
	return o.solveNominal(c, left, right)
}

func (o *Order) solveNominal(c TypeConstraints, left, right types.Type) []TypeConstraints {
	leftName, leftArguments := types.Split(left)
	rightName, rightArguments := types.Split(right)
	if leftName == "" || rightName == "" {
		return nil
	}
	if leftName != rightName {
		if !contains(o.handler.Successors(leftName), rightName) {
			return nil
		}
		instantiated, ok := o.handler.InstantiateSuccessorParameters(leftName, leftArguments, rightName)
		if !ok {
			return nil
		}
		leftArguments = instantiated
	}
	if len(leftArguments) == 0 || len(rightArguments) == 0 {
		return []TypeConstraints{c}
	}
	if len(leftArguments) != len(rightArguments) {
		return nil
	}
	variables, _ := o.handler.Variables(rightName)
	results := []TypeConstraints{c}
	for i := range leftArguments {
		variance := types.Invariant
		if i < len(variables) {
			variance = variables[i].Variance
		}
		var next []TypeConstraints
		for _, partial := range results {
			switch variance {
			case types.Covariant:
				next = append(next, o.solve(partial, leftArguments[i], rightArguments[i])...)
			case types.Contravariant:
				next = append(next, o.solve(partial, rightArguments[i], leftArguments[i])...)
			default:
				for _, lower := range o.solve(partial, leftArguments[i], rightArguments[i]) {
					next = append(next, o.solve(lower, rightArguments[i], leftArguments[i])...)
				}
			}
		}
		results = next
	}
	return results
}

func (o *Order) solveCallables(c TypeConstraints, left, right *types.Callable) []TypeConstraints {
	results := o.solve(c, left.ReturnAnnotation(), right.ReturnAnnotation())
	if left.Implementation.Undefined || right.Implementation.Undefined {
		return results
	}
	lp, rp := left.Implementation.Parameters, right.Implementation.Parameters
	if len(lp) != len(rp) {
		return nil
	}
	for i := range rp {
		var next []TypeConstraints
		for _, partial := range results {
			next = append(next, o.solve(partial, parameterType(rp[i]), parameterType(lp[i]))...)
		}
		results = next
	}
	return results
}

func (o *Order) solveTuples(c TypeConstraints, left, right *types.Tuple) []TypeConstraints {
	if right.Unbounded != nil {
		return o.solve(c, tupleElement(left), right.Unbounded)
	}
	if left.Unbounded != nil {
		return nil
	}
	return o.SolveOrderedTypesLessOrEqual(c, left.Elements, right.Elements)
}

// SolveOrderedTypesLessOrEqual solves element-wise over two equal-length lists.
func (o *Order) SolveOrderedTypesLessOrEqual(c TypeConstraints, left, right []types.Type) []TypeConstraints {
	if len(left) != len(right) {
		return nil
	}
	results := []TypeConstraints{c}
	for i := range left {
		var next []TypeConstraints
		for _, partial := range results {
			next = append(next, o.solve(partial, left[i], right[i])...)
		}
		results = next
	}
	return results
}

func (o *Order) addLowerBound(c TypeConstraints, v *types.Variable, t types.Type) []TypeConstraints {
	current, _ := c.table().Get(v.Name)
	current.variable = v
	lower := t
	if current.lower != nil {
		lower = o.Join(current.lower, t)
	}
	if current.upper != nil && !o.LessOrEqual(lower, current.upper) {
		return nil
	}
	if len(v.Constraints) > 0 {
		chosen := types.Type(nil)
		for _, constraint := range v.Constraints {
			if o.LessOrEqual(lower, constraint) {
				chosen = constraint
				break
			}
		}
		if chosen == nil {
			return nil
		}
		lower = chosen
	} else if !o.LessOrEqual(lower, v.UpperBound()) {
		return nil
	}
	current.lower = lower
	return []TypeConstraints{{intervals: c.table().Set(v.Name, current)}}
}

func (o *Order) addUpperBound(c TypeConstraints, v *types.Variable, t types.Type) []TypeConstraints {
	current, _ := c.table().Get(v.Name)
	current.variable = v
	upper := t
	if current.upper != nil {
		upper = o.Meet(current.upper, t)
	}
	if upper == types.Bottom {
		return nil
	}
	if current.lower != nil && !o.LessOrEqual(current.lower, upper) {
		return nil
	}
	current.upper = upper
	return []TypeConstraints{{intervals: c.table().Set(v.Name, current)}}
}

// SolveConstraints picks a solution for every bounded variable: the lower bound
// when present, else the upper bound.
func (o *Order) SolveConstraints(c TypeConstraints) (Solution, bool) {
	solution := make(Solution, c.table().Len())
	itr := c.table().Iterator()
	for !itr.Done() {
		name, bounds, _ := itr.Next()
		chosen, ok := o.choose(bounds)
		if !ok {
			return nil, false
		}
		solution[name] = chosen
	}
	return solution, true
}

func (o *Order) choose(bounds interval) (types.Type, bool) {
	chosen := bounds.lower
	if chosen == nil {
		chosen = bounds.upper
	}
	if chosen == nil {
		return types.Bottom, true
	}
	v := bounds.variable
	if len(v.Constraints) > 0 {
		for _, constraint := range v.Constraints {
			if o.LessOrEqual(chosen, constraint) {
				return constraint, true
			}
		}
		return nil, false
	}
	if !o.LessOrEqual(chosen, v.UpperBound()) {
		return nil, false
	}
	return chosen, true
}

// PartialSolveConstraints solves only the named variables and returns the
// constraints on the rest.
func (o *Order) PartialSolveConstraints(c TypeConstraints, variables []string) (TypeConstraints, Solution, bool) {
	remaining := c.table()
	solution := make(Solution, len(variables))
	for _, name := range variables {
		bounds, ok := remaining.Get(name)
		if !ok {
			continue
		}
		chosen, ok := o.choose(bounds)
		if !ok {
			return c, nil, false
		}
		solution[name] = chosen
		remaining = remaining.Delete(name)
	}
	return TypeConstraints{intervals: remaining}, solution, true
}

// ConstraintsSolutionExists reports whether left <= right has any solution.
func (o *Order) ConstraintsSolutionExists(left, right types.Type) bool {
	for _, candidate := range o.SolveLessOrEqual(EmptyConstraints(), left, right) {
		if _, ok := o.SolveConstraints(candidate); ok {
			return true
		}
	}
	return false
}
