package types

import (
	"fmt"
	"sort"
	"strings"
)

// Type is an element of the subtyping lattice.
//
// Types are immutable after construction. Structural equality is provided by Equal;
// String output is stable and used as the canonical sort key for unions.
type Type interface {
	String() string
	isType()
}

type topType struct{}
type bottomType struct{}
type anyType struct{}
type noneType struct{}

func (topType) String() string    { return "unknown" }
func (bottomType) String() string { return "undefined" }
func (anyType) String() string    { return "typing.Any" }
func (noneType) String() string   { return "None" }
func (topType) isType()           {}
func (bottomType) isType()        {}
func (anyType) isType()           {}
func (noneType) isType()          {}

var (
	// Top is the unknown type every other type is less than.
	Top Type = topType{}
	// Bottom is the uninhabited type.
	Bottom Type = bottomType{}
	// Any is the gradual type, compatible in both directions.
	Any Type = anyType{}
	// NoneType is the type of the None singleton.
	NoneType Type = noneType{}
)

// Primitive is a non-generic nominal type, e.g. `int` or `pkg.Class`.
type Primitive struct {
	Name string
}

func NewPrimitive(name string) *Primitive { return &Primitive{Name: name} }

func (p *Primitive) String() string { return p.Name }
func (p *Primitive) isType()        {}

// Parametric is a generic class instantiated with type arguments.
type Parametric struct {
	Name      string
	Arguments []Type
}

func NewParametric(name string, arguments ...Type) *Parametric {
	return &Parametric{Name: name, Arguments: arguments}
}

func (p *Parametric) String() string {
	return fmt.Sprintf("%s[%s]", p.Name, joinTypes(p.Arguments))
}
func (p *Parametric) isType() {}

// Tuple is either a fixed-length tuple or, when Unbounded is set, `Tuple[T, ...]`.
type Tuple struct {
	Elements  []Type
	Unbounded Type
}

func NewTuple(elements ...Type) *Tuple { return &Tuple{Elements: elements} }

func NewUnboundedTuple(element Type) *Tuple { return &Tuple{Unbounded: element} }

func (t *Tuple) String() string {
	if t.Unbounded != nil {
		return fmt.Sprintf("typing.Tuple[%s, ...]", t.Unbounded.String())
	}
	if len(t.Elements) == 0 {
		return "typing.Tuple[()]"
	}
	return fmt.Sprintf("typing.Tuple[%s]", joinTypes(t.Elements))
}
func (t *Tuple) isType() {}

// Union holds at least two normalized members. Construct with NewUnion.
type Union struct {
	Members []Type
}

func (u *Union) String() string {
	if len(u.Members) == 2 {
		for i, member := range u.Members {
			if member == NoneType {
				return fmt.Sprintf("typing.Optional[%s]", u.Members[1-i].String())
			}
		}
	}
	return fmt.Sprintf("typing.Union[%s]", joinTypes(u.Members))
}
func (u *Union) isType() {}

type ParameterKind int

const (
	PositionalParameter ParameterKind = iota
	PositionalOnlyParameter
	KeywordOnlyParameter
	VariableParameter
	KeywordsParameter
)

type Parameter struct {
	Name       string
	Annotation Type
	Default    bool
	Kind       ParameterKind
}

func (p Parameter) String() string {
	prefix := ""
	switch p.Kind {
	case VariableParameter:
		prefix = "*"
	case KeywordsParameter:
		prefix = "**"
	}
	annotation := "unknown"
	if p.Annotation != nil {
		annotation = p.Annotation.String()
	}
	suffix := ""
	if p.Default {
		suffix = ", default"
	}
	return fmt.Sprintf("%sNamed(%s, %s%s)", prefix, p.Name, annotation, suffix)
}

// Signature is one overload of a callable. Undefined marks `Callable[..., R]`.
type Signature struct {
	Parameters []Parameter
	Annotation Type
	Undefined  bool
}

func (s Signature) String() string {
	annotation := Top
	if s.Annotation != nil {
		annotation = s.Annotation
	}
	if s.Undefined {
		return fmt.Sprintf("[..., %s]", annotation.String())
	}
	params := make([]string, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		params = append(params, p.String())
	}
	return fmt.Sprintf("[[%s], %s]", strings.Join(params, ", "), annotation.String())
}

// Callable is a function type. Name is the defining reference, empty for anonymous callables.
type Callable struct {
	Name           Reference
	Implementation Signature
	Overloads      []Signature
}

func NewCallable(name Reference, parameters []Parameter, annotation Type) *Callable {
	return &Callable{
		Name:           name,
		Implementation: Signature{Parameters: parameters, Annotation: annotation},
	}
}

func (c *Callable) String() string {
	name := ""
	if c.Name != "" {
		name = "(" + c.Name.String() + ")"
	}
	return fmt.Sprintf("typing.Callable%s%s", name, c.Implementation.String())
}
func (c *Callable) isType() {}

// ReturnAnnotation is the implementation's return type, Top when unannotated.
func (c *Callable) ReturnAnnotation() Type {
	if c.Implementation.Annotation == nil {
		return Top
	}
	return c.Implementation.Annotation
}

type Variance int

const (
	Invariant Variance = iota
	Covariant
	Contravariant
)

func (v Variance) String() string {
	switch v {
	case Covariant:
		return "covariant"
	case Contravariant:
		return "contravariant"
	default:
		return "invariant"
	}
}

// Variable is a type variable. Variadic marks a TypeVarTuple-style parameter list.
type Variable struct {
	Name        string
	Bound       Type
	Constraints []Type
	Variance    Variance
	Variadic    bool
}

func NewVariable(name string) *Variable { return &Variable{Name: name} }

func (v *Variable) String() string { return v.Name }
func (v *Variable) isType()        {}

// UpperBound is the type every solution for v must be less than.
func (v *Variable) UpperBound() Type {
	if v.Bound != nil {
		return v.Bound
	}
	return NewPrimitive("object")
}

// NewUnion flattens, deduplicates and sorts members. Top and Any absorb the union,
// Bottom members are dropped, and a single survivor is returned unwrapped.
func NewUnion(members ...Type) Type {
	flat := make([]Type, 0, len(members))
	var collect func(Type)
	collect = func(t Type) {
		switch t := t.(type) {
		case *Union:
			for _, member := range t.Members {
				collect(member)
			}
		default:
			flat = append(flat, t)
		}
	}
	for _, member := range members {
		if member != nil {
			collect(member)
		}
	}

	seen := make(map[string]bool, len(flat))
	unique := make([]Type, 0, len(flat))
	for _, member := range flat {
		switch member {
		case Top:
			return Top
		case Any:
			return Any
		case Bottom:
			continue
		}
		key := member.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, member)
	}

	switch len(unique) {
	case 0:
		return Bottom
	case 1:
		return unique[0]
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].String() < unique[j].String() })
	return &Union{Members: unique}
}

func NewOptional(t Type) Type { return NewUnion(t, NoneType) }

// NewMeta is the type of a class object, `type[C]`.
func NewMeta(t Type) Type { return NewParametric("type", t) }

// MetaArgument returns C for `type[C]`.
func MetaArgument(t Type) (Type, bool) {
	p, ok := t.(*Parametric)
	if !ok || p.Name != "type" || len(p.Arguments) != 1 {
		return nil, false
	}
	return p.Arguments[0], true
}

// IsUntyped reports whether nothing concrete is known about t.
func IsUntyped(t Type) bool {
	return t == nil || t == Top || t == Any
}

// Split decomposes t into its primitive class name and type arguments.
func Split(t Type) (string, []Type) {
	switch t := t.(type) {
	case *Primitive:
		return t.Name, nil
	case *Parametric:
		return t.Name, t.Arguments
	case *Tuple:
		if t.Unbounded != nil {
			return "tuple", []Type{t.Unbounded}
		}
		return "tuple", []Type{NewUnion(t.Elements...)}
	case *Callable:
		return "typing.Callable", nil
	default:
		if t == NoneType {
			return "NoneType", nil
		}
		return "", nil
	}
}

// Equal is structural equality.
func Equal(left, right Type) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	switch l := left.(type) {
	case *Primitive:
		r, ok := right.(*Primitive)
		return ok && l.Name == r.Name
	case *Parametric:
		r, ok := right.(*Parametric)
		return ok && l.Name == r.Name && equalLists(l.Arguments, r.Arguments)
	case *Tuple:
		r, ok := right.(*Tuple)
		if !ok {
			return false
		}
		if (l.Unbounded == nil) != (r.Unbounded == nil) {
			return false
		}
		if l.Unbounded != nil {
			return Equal(l.Unbounded, r.Unbounded)
		}
		return equalLists(l.Elements, r.Elements)
	case *Union:
		r, ok := right.(*Union)
		return ok && equalLists(l.Members, r.Members)
	case *Callable:
		r, ok := right.(*Callable)
		if !ok || l.Name != r.Name || !equalSignatures(l.Implementation, r.Implementation) {
			return false
		}
		if len(l.Overloads) != len(r.Overloads) {
			return false
		}
		for i := range l.Overloads {
			if !equalSignatures(l.Overloads[i], r.Overloads[i]) {
				return false
			}
		}
		return true
	case *Variable:
		r, ok := right.(*Variable)
		return ok && l.Name == r.Name && l.Variance == r.Variance && l.Variadic == r.Variadic &&
			Equal(l.Bound, r.Bound) && equalLists(l.Constraints, r.Constraints)
	default:
		return left == right
	}
}

func equalLists(left, right []Type) bool {
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if !Equal(left[i], right[i]) {
			return false
		}
	}
	return true
}

func equalSignatures(left, right Signature) bool {
	if left.Undefined != right.Undefined || !Equal(left.Annotation, right.Annotation) {
		return false
	}
	if len(left.Parameters) != len(right.Parameters) {
		return false
	}
	for i := range left.Parameters {
		l, r := left.Parameters[i], right.Parameters[i]
		if l.Name != r.Name || l.Default != r.Default || l.Kind != r.Kind || !Equal(l.Annotation, r.Annotation) {
			return false
		}
	}
	return true
}

func joinTypes(list []Type) string {
	parts := make([]string, 0, len(list))
	for _, t := range list {
		if t == nil {
			parts = append(parts, Top.String())
			continue
		}
		parts = append(parts, t.String())
	}
	return strings.Join(parts, ", ")
}
