package resolution

import (
	"typecore/internal/engine/ast"
	"typecore/internal/engine/environment"
	"typecore/internal/engine/order"
	"typecore/internal/engine/types"
)

// Resolve types an expression at this program point.
func (r Resolution) Resolve(expr ast.Expression) types.Type {
	return r.ResolveToAnnotation(expr).Type
}

// ResolveToAnnotation types an expression, keeping the mutability of the binding
// it reads when it reads one.
func (r Resolution) ResolveToAnnotation(expr ast.Expression) types.Annotation {
	switch x := expr.(type) {
	case nil:
		return types.NewAnnotation(types.Top)
	case *ast.Name:
		return r.resolveName(types.Reference(x.Identifier))
	case *ast.Attribute:
		return r.resolveAttribute(x)
	case *ast.Constant:
		return types.NewAnnotation(environment.InferLiteral(x))
	case *ast.List:
		element := types.Type(types.Bottom)
		for _, e := range x.Elements {
			element = r.global.Join(element, r.Resolve(e))
		}
		return types.NewAnnotation(types.NewParametric("list", element))
	case *ast.Tuple:
		elements := make([]types.Type, len(x.Elements))
		for i, e := range x.Elements {
			elements[i] = r.Resolve(e)
		}
		return types.NewAnnotation(types.NewTuple(elements...))
	case *ast.Call:
		return types.NewAnnotation(r.resolveCall(x))
	case *ast.Subscript:
		return types.NewAnnotation(r.resolveSubscript(x))
	case *ast.BinaryOr:
		left, lok := types.MetaArgument(r.Resolve(x.Left))
		right, rok := types.MetaArgument(r.Resolve(x.Right))
		if lok && rok {
			return types.NewAnnotation(types.NewMeta(types.NewUnion(left, right)))
		}
		return types.NewAnnotation(types.Top)
	default:
		return types.NewAnnotation(types.Top)
	}
}

func (r Resolution) resolveName(ref types.Reference) types.Annotation {
	if annotation, ok := r.GetLocalWithAttributes(ref, false); ok {
		return annotation
	}
	if info, ok := r.global.Global(r.global.ResolveName(r.module, ref)); ok {
		return info.Annotation
	}
	return types.NewAnnotation(types.Top)
}

func (r Resolution) resolveAttribute(attr *ast.Attribute) types.Annotation {
	ref, dotted := ast.NameToReference(attr)
	if dotted {
		if annotation, ok := r.GetLocalWithAttributes(ref, false); ok {
			return annotation
		}
	}
	base := r.Resolve(attr.Base)
	if !types.IsUntyped(base) {
		if entry, ok := r.global.Attribute(base, attr.Attribute); ok {
			return entry.Annotation
		}
		return types.NewAnnotation(types.Top)
	}
	if dotted {
		return r.resolveName(ref)
	}
	return types.NewAnnotation(types.Top)
}

// GetPropertyCallable resolves base and returns the getter of its property name,
// attributed to the class that declares the property.
func (r Resolution) GetPropertyCallable(base ast.Expression, name string) (*types.Callable, bool) {
	return r.global.PropertyCallable(r.Resolve(base), name)
}

type argument struct {
	keyword string
	t       types.Type
}

func (r Resolution) resolveCall(call *ast.Call) types.Type {
	arguments := make([]argument, len(call.Arguments))
	for i, arg := range call.Arguments {
		arguments[i] = argument{keyword: arg.Keyword, t: r.Resolve(arg.Value)}
	}
	callable, ok := r.calleeSignature(r.Resolve(call.Callee))
	if !ok {
		return types.Top
	}
	return r.apply(callable, arguments)
}

// calleeSignature finds what calling a value of type callee invokes: the
// constructor of a class object, the callable itself, or a bound `__call__`.
func (r Resolution) calleeSignature(callee types.Type) (*types.Callable, bool) {
	if _, ok := types.MetaArgument(callee); ok {
		return r.global.Constructor(callee)
	}
	if callable, ok := callee.(*types.Callable); ok {
		return callable, true
	}
	if types.IsUntyped(callee) {
		return nil, false
	}
	entry, ok := r.global.Attribute(callee, "__call__")
	if !ok {
		return nil, false
	}
	callable, ok := entry.Annotation.Type.(*types.Callable)
	return callable, ok
}

func (r Resolution) resolveSubscript(s *ast.Subscript) types.Type {
	base := r.Resolve(s.Base)
	if _, ok := types.MetaArgument(base); ok {
		return types.NewMeta(r.global.ParseAnnotation(r.module, s))
	}
	if types.IsUntyped(base) {
		return types.Top
	}
	entry, ok := r.global.Attribute(base, "__getitem__")
	if !ok {
		return types.Top
	}
	callable, ok := entry.Annotation.Type.(*types.Callable)
	if !ok {
		return types.Top
	}
	var index types.Type
	if len(s.Indices) == 1 {
		index = r.Resolve(s.Indices[0])
	} else {
		elements := make([]types.Type, len(s.Indices))
		for i, e := range s.Indices {
			elements[i] = r.Resolve(e)
		}
		index = types.NewTuple(elements...)
	}
	return r.apply(callable, []argument{{t: index}})
}

// apply selects the first overload whose parameters accept the arguments, then the
// implementation, and returns its return type with solved variables substituted.
func (r Resolution) apply(callable *types.Callable, arguments []argument) types.Type {
	candidates := append(append([]types.Signature{}, callable.Overloads...), callable.Implementation)
	for _, signature := range candidates {
		if signature.Undefined {
			return r.escapeFreeVariables(signature.Annotation)
		}
		left, right, ok := matchArguments(signature.Parameters, arguments)
		if !ok {
			continue
		}
		for _, constraints := range r.global.SolveOrderedTypesLessOrEqual(order.EmptyConstraints(), left, right) {
			if solution, ok := r.global.SolveConstraints(constraints); ok {
				return r.escapeFreeVariables(solution.Instantiate(returnType(signature)))
			}
		}
	}
	return r.escapeFreeVariables(callable.ReturnAnnotation())
}

func returnType(signature types.Signature) types.Type {
	if signature.Annotation == nil {
		return types.Top
	}
	return signature.Annotation
}

// escapeFreeVariables replaces variables that were not solved and are not in
// scope with Bottom.
func (r Resolution) escapeFreeVariables(t types.Type) types.Type {
	if t == nil {
		return types.Top
	}
	replacements := make(map[string]types.Type)
	for _, v := range types.FreeVariables(t) {
		if !r.TypeVariableExists(v.Name) {
			replacements[v.Name] = types.Bottom
		}
	}
	return types.Substitute(t, replacements)
}

// matchArguments pairs argument types with the parameter types they flow into.
// Positional arguments fill positional parameters in order and spill into `*args`;
// keyword arguments match by name or spill into `**kwargs`. Required parameters
// left unfilled reject the signature.
func matchArguments(parameters []types.Parameter, arguments []argument) ([]types.Type, []types.Type, bool) {
	used := make([]bool, len(parameters))
	var left, right []types.Type
	next := 0
	for _, arg := range arguments {
		index := -1
		if arg.keyword == "" {
			for next < len(parameters) {
				kind := parameters[next].Kind
				if kind == types.VariableParameter {
					index = next
					break
				}
				if (kind == types.PositionalParameter || kind == types.PositionalOnlyParameter) && !used[next] {
					index = next
					next++
					break
				}
				next++
			}
		} else {
			for i, p := range parameters {
				if p.Name == arg.keyword && !used[i] && (p.Kind == types.PositionalParameter || p.Kind == types.KeywordOnlyParameter) {
					index = i
					break
				}
			}
			if index < 0 {
				for i, p := range parameters {
					if p.Kind == types.KeywordsParameter {
						index = i
						break
					}
				}
			}
		}
		if index < 0 {
			return nil, nil, false
		}
		used[index] = true
		left = append(left, arg.t)
		right = append(right, parameterAnnotation(parameters[index]))
	}
	for i, p := range parameters {
		if used[i] || p.Default || p.Kind == types.VariableParameter || p.Kind == types.KeywordsParameter {
			continue
		}
		return nil, nil, false
	}
	return left, right, true
}

func parameterAnnotation(p types.Parameter) types.Type {
	if p.Annotation == nil {
		return types.Top
	}
	return p.Annotation
}

// ResolveAssignment returns the resolution after assign. Annotated targets become
// immutable local bindings of the declared type. Unannotated targets narrow to the
// value's type, but a previously declared binding keeps its declared type when the
// value is not compatible with it.
func (r Resolution) ResolveAssignment(assign *ast.Assign) Resolution {
	value := types.Type(types.Top)
	if assign.Value != nil {
		value = r.Resolve(assign.Value)
	}
	if assign.Annotation != nil {
		expr, qualifiers := r.global.UnwrapQualifiers(r.module, assign.Annotation)
		declared := value
		if expr != nil {
			declared = r.global.ParseAnnotation(r.module, expr)
		}
		return r.store(assign.Target, types.NewImmutableAnnotation(declared, types.LocalScope, qualifiers.Final))
	}
	return r.assign(assign.Target, value)
}

func (r Resolution) assign(target ast.Expression, value types.Type) Resolution {
	var elements []ast.Expression
	switch x := target.(type) {
	case *ast.Tuple:
		elements = x.Elements
	case *ast.List:
		elements = x.Elements
	default:
		existing, ok := r.declared(target)
		if !ok || !existing.IsImmutable() {
			return r.store(target, types.NewAnnotation(value))
		}
		if r.global.LessOrEqual(value, existing.Original()) {
			return r.store(target, existing.WithType(value))
		}
		return r.store(target, existing.WithType(existing.Original()))
	}
	for i, element := range elements {
		r = r.assign(element, tupleElement(value, i, len(elements)))
	}
	return r
}

func tupleElement(t types.Type, index, length int) types.Type {
	tuple, ok := t.(*types.Tuple)
	switch {
	case !ok:
		return types.Top
	case tuple.Unbounded != nil:
		return tuple.Unbounded
	case len(tuple.Elements) == length:
		return tuple.Elements[index]
	default:
		return types.Top
	}
}

// declared finds the binding an assignment to target narrows: a local refinement,
// or for attributes the declared class attribute.
func (r Resolution) declared(target ast.Expression) (types.Annotation, bool) {
	ref, ok := ast.NameToReference(target)
	if !ok {
		return types.Annotation{}, false
	}
	if annotation, ok := r.GetLocalWithAttributes(ref, false); ok {
		return annotation, true
	}
	attr, ok := target.(*ast.Attribute)
	if !ok {
		return types.Annotation{}, false
	}
	base := r.Resolve(attr.Base)
	if types.IsUntyped(base) {
		return types.Annotation{}, false
	}
	entry, ok := r.global.Attribute(base, attr.Attribute)
	if !ok {
		return types.Annotation{}, false
	}
	return entry.Annotation, true
}

func (r Resolution) store(target ast.Expression, annotation types.Annotation) Resolution {
	switch target.(type) {
	case *ast.Name:
		ref, _ := ast.NameToReference(target)
		return r.SetLocal(ref, annotation)
	case *ast.Attribute:
		ref, ok := ast.NameToReference(target)
		if !ok {
			return r
		}
		return r.SetLocalWithAttributes(ref, annotation)
	default:
		return r
	}
}
