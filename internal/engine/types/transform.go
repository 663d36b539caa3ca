package types

import "sort"

// Map rebuilds t bottom-up, replacing every node for which visit returns true.
func Map(t Type, visit func(Type) (Type, bool)) Type {
	if t == nil {
		return nil
	}
	if replacement, ok := visit(t); ok {
		return replacement
	}
	switch t := t.(type) {
	case *Parametric:
		return &Parametric{Name: t.Name, Arguments: mapList(t.Arguments, visit)}
	case *Tuple:
		if t.Unbounded != nil {
			return &Tuple{Unbounded: Map(t.Unbounded, visit)}
		}
		return &Tuple{Elements: mapList(t.Elements, visit)}
	case *Union:
		return NewUnion(mapList(t.Members, visit)...)
	case *Callable:
		out := &Callable{Name: t.Name, Implementation: mapSignature(t.Implementation, visit)}
		for _, overload := range t.Overloads {
			out.Overloads = append(out.Overloads, mapSignature(overload, visit))
		}
		return out
	case *Variable:
		if t.Bound == nil && len(t.Constraints) == 0 {
			return t
		}
		copied := *t
		copied.Bound = Map(t.Bound, visit)
		copied.Constraints = mapList(t.Constraints, visit)
		return &copied
	default:
		return t
	}
}

func mapList(list []Type, visit func(Type) (Type, bool)) []Type {
	if list == nil {
		return nil
	}
	out := make([]Type, len(list))
	for i, t := range list {
		out[i] = Map(t, visit)
	}
	return out
}

func mapSignature(s Signature, visit func(Type) (Type, bool)) Signature {
	out := Signature{Annotation: Map(s.Annotation, visit), Undefined: s.Undefined}
	if s.Parameters != nil {
		out.Parameters = make([]Parameter, len(s.Parameters))
		for i, p := range s.Parameters {
			p.Annotation = Map(p.Annotation, visit)
			out.Parameters[i] = p
		}
	}
	return out
}

// Substitute replaces type variables by name.
func Substitute(t Type, replacements map[string]Type) Type {
	if len(replacements) == 0 {
		return t
	}
	return Map(t, func(node Type) (Type, bool) {
		if v, ok := node.(*Variable); ok {
			if replacement, found := replacements[v.Name]; found {
				return replacement, true
			}
		}
		return nil, false
	})
}

// FreeVariables lists the distinct type variables occurring in t, sorted by name.
func FreeVariables(t Type) []*Variable {
	seen := make(map[string]*Variable)
	Map(t, func(node Type) (Type, bool) {
		if v, ok := node.(*Variable); ok {
			if _, exists := seen[v.Name]; !exists {
				seen[v.Name] = v
			}
			return v, true
		}
		return nil, false
	})
	out := make([]*Variable, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func ContainsVariable(t Type) bool {
	return len(FreeVariables(t)) > 0
}

// Members returns the union members of t, or t itself.
func Members(t Type) []Type {
	if u, ok := t.(*Union); ok {
		return u.Members
	}
	return []Type{t}
}
