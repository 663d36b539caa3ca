package resolution

import (
	"fmt"

	"typecore/internal/engine/types"
)

type InvalidTypeParametersKind int

const (
	IncorrectParameterCount InvalidTypeParametersKind = iota
	ViolatesConstraints
)

// InvalidTypeParameters describes one generic instantiation that does not fit the
// class's declared type parameters.
type InvalidTypeParameters struct {
	Name     string
	Kind     InvalidTypeParametersKind
	Expected int
	Given    int
	Argument types.Type
	Variable *types.Variable
}

func (p InvalidTypeParameters) String() string {
	if p.Kind == ViolatesConstraints {
		return fmt.Sprintf("%s: %s violates the bound of %s", p.Name, p.Argument, p.Variable)
	}
	return fmt.Sprintf("%s: expected %d type parameters, got %d", p.Name, p.Expected, p.Given)
}

// CheckInvalidTypeParameters validates every generic instantiation inside t and
// returns the problems found together with a repaired type: wrong arity becomes Any
// for each declared parameter, an argument outside its variable's bound or
// constraints becomes Any, and bare generic classes get Any arguments.
func (g *GlobalResolution) CheckInvalidTypeParameters(t types.Type) ([]InvalidTypeParameters, types.Type) {
	var problems []InvalidTypeParameters
	var check func(types.Type) types.Type
	check = func(t types.Type) types.Type {
		return types.Map(t, func(node types.Type) (types.Type, bool) {
			switch x := node.(type) {
			case *types.Primitive:
				return g.fillBareGeneric(x)
			case *types.Parametric:
				arguments := make([]types.Type, len(x.Arguments))
				for i, argument := range x.Arguments {
					arguments[i] = check(argument)
				}
				repaired, found := g.checkArguments(x.Name, arguments)
				problems = append(problems, found...)
				return repaired, true
			}
			return nil, false
		})
	}
	repaired := check(t)
	return problems, repaired
}

func anyArguments(n int) []types.Type {
	out := make([]types.Type, n)
	for i := range out {
		out[i] = types.Any
	}
	return out
}

func variadic(variables []*types.Variable) bool {
	for _, v := range variables {
		if v.Variadic {
			return true
		}
	}
	return false
}

func (g *GlobalResolution) fillBareGeneric(p *types.Primitive) (types.Type, bool) {
	variables, ok := g.stack.Variables(g.query, p.Name)
	if !ok || len(variables) == 0 || variadic(variables) {
		return nil, false
	}
	return types.NewParametric(p.Name, anyArguments(len(variables))...), true
}

func (g *GlobalResolution) checkArguments(name string, arguments []types.Type) (types.Type, []InvalidTypeParameters) {
	variables, ok := g.stack.Variables(g.query, name)
	if name == "type" || !ok || variadic(variables) {
		return types.NewParametric(name, arguments...), nil
	}
	if len(arguments) != len(variables) {
		problem := InvalidTypeParameters{Name: name, Kind: IncorrectParameterCount, Expected: len(variables), Given: len(arguments)}
		if len(variables) == 0 {
			return types.NewPrimitive(name), []InvalidTypeParameters{problem}
		}
		return types.NewParametric(name, anyArguments(len(variables))...), []InvalidTypeParameters{problem}
	}

	var problems []InvalidTypeParameters
	order := g.Order()
	for i, v := range variables {
		argument := arguments[i]
		if _, isVariable := argument.(*types.Variable); isVariable || types.IsUntyped(argument) {
			continue
		}
		valid := true
		switch {
		case len(v.Constraints) > 0:
			valid = false
			for _, constraint := range v.Constraints {
				if order.LessOrEqual(argument, constraint) {
					valid = true
					break
				}
			}
		case v.Bound != nil:
			valid = order.LessOrEqual(argument, v.Bound)
		}
		if !valid {
			problems = append(problems, InvalidTypeParameters{
				Name: name, Kind: ViolatesConstraints,
				Expected: len(variables), Given: len(arguments),
				Argument: argument, Variable: v,
			})
			arguments[i] = types.Any
		}
	}
	return types.NewParametric(name, arguments...), problems
}
