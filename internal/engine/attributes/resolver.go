package attributes

import (
	"typecore/internal/engine/environment"
	"typecore/internal/engine/types"
	"typecore/internal/shared/observability"
)

const defaultMetaclass = "type"

// Resolver answers attribute queries over the class metadata layer. Transitive
// uninstantiated tables are memoized per class; instantiation for a receiver is
// recomputed on every query.
type Resolver struct {
	reader environment.ClassMetadataReader
	tables *environment.LRUCache[string, cachedTable]
}

// cachedTable keeps the environment reads made while building table so later
// queries record the same dependency edges.
type cachedTable struct {
	table *Table[types.Type]
	reads *environment.ReadLog
}

func NewResolver(reader environment.ClassMetadataReader, cacheSize int) *Resolver {
	return &Resolver{
		reader: reader,
		tables: environment.NewLRUCache[string, cachedTable](cacheSize),
	}
}

// receiver is a type resolved to exactly one class.
type receiver struct {
	class      string
	arguments  []types.Type
	classLevel bool
}

// resolveReceiver maps t onto one class. Unions, constrained variables and
// untyped values resolve to nothing.
func (r *Resolver) resolveReceiver(q environment.Query, t types.Type) (receiver, bool) {
	switch x := t.(type) {
	case *types.Union:
		return receiver{}, false
	case *types.Variable:
		if len(x.Constraints) > 0 {
			return receiver{}, false
		}
		return r.resolveReceiver(q, x.UpperBound())
	case *types.Parametric:
		if inner, ok := types.MetaArgument(x); ok {
			resolved, ok := r.resolveReceiver(q, inner)
			if !ok || resolved.classLevel {
				return receiver{}, false
			}
			resolved.classLevel = true
			return resolved, true
		}
	}
	if types.IsUntyped(t) || t == types.Bottom {
		return receiver{}, false
	}
	name, arguments := types.Split(t)
	if name == "" || !r.reader.IsTracked(q, name) {
		return receiver{}, false
	}
	return receiver{class: name, arguments: arguments}, true
}

// UninstantiatedTable is the inheritance-flattened table of class: the first
// declaration of each name along the method resolution order wins.
func (r *Resolver) UninstantiatedTable(q environment.Query, class string) (*Table[types.Type], bool) {
	if !r.reader.IsTracked(q, class) {
		return nil, false
	}
	mro := append([]string{class}, r.reader.Successors(q, class)...)
	if cached, ok := r.tables.Get(class); ok {
		observability.AttributeTableCacheTotal.WithLabelValues("hit").Inc()
		cached.reads.Replay(q)
		return cached.table, true
	}
	observability.AttributeTableCacheTotal.WithLabelValues("miss").Inc()

	recording, reads := environment.Recording()
	table := newTable[types.Type](class)
	for _, name := range mro {
		own, ok := classTable(r.reader, recording, name)
		if !ok {
			continue
		}
		for _, entry := range own.Entries() {
			table.add(entry)
		}
	}
	r.tables.Put(class, cachedTable{table: table, reads: reads})
	reads.Replay(q)
	return table, true
}

func (r *Resolver) instantiate(q environment.Query, entry Uninstantiated, target receiver) Instantiated {
	t := entry.Annotation
	if variables, ok := r.reader.Variables(q, entry.Parent); ok && len(variables) > 0 {
		arguments, ok := r.reader.InstantiateSuccessorParameters(q, target.class, target.arguments, entry.Parent)
		if ok {
			replacements := make(map[string]types.Type, len(variables))
			for i, v := range variables {
				if i < len(arguments) {
					replacements[v.Name] = arguments[i]
				}
			}
			t = types.Substitute(t, replacements)
		}
	}
	if callable, ok := t.(*types.Callable); ok && !entry.Property {
		if entry.ClassMethod || (!target.classLevel && !entry.Static) {
			t = bindFirstParameter(callable)
		}
	}
	if !entry.Declared {
		return withAnnotation(entry, types.NewAnnotation(t))
	}
	final := entry.Visibility.ReadOnly && !entry.Visibility.Overridable
	return withAnnotation(entry, types.NewImmutableAnnotation(t, types.LocalScope, final))
}

func bindFirstParameter(callable *types.Callable) *types.Callable {
	bound := &types.Callable{Name: callable.Name, Implementation: dropFirst(callable.Implementation)}
	for _, overload := range callable.Overloads {
		bound.Overloads = append(bound.Overloads, dropFirst(overload))
	}
	return bound
}

func dropFirst(signature types.Signature) types.Signature {
	if signature.Undefined || len(signature.Parameters) == 0 {
		return signature
	}
	first := signature.Parameters[0]
	if first.Kind == types.VariableParameter || first.Kind == types.KeywordsParameter || first.Kind == types.KeywordOnlyParameter {
		return signature
	}
	signature.Parameters = append([]types.Parameter{}, signature.Parameters[1:]...)
	return signature
}

// Attribute resolves name on receiver. Only defined attributes are returned;
// class-object access falls back to the metaclass.
func (r *Resolver) Attribute(q environment.Query, t types.Type, name string) (Instantiated, bool) {
	target, ok := r.resolveReceiver(q, t)
	if !ok {
		return Instantiated{}, false
	}
	table, ok := r.UninstantiatedTable(q, target.class)
	if !ok {
		return Instantiated{}, false
	}
	if entry, found := table.Lookup(name); found {
		if !entry.Defined {
			return Instantiated{}, false
		}
		return r.instantiate(q, entry, target), true
	}
	if !target.classLevel {
		return Instantiated{}, false
	}
	metaclass := r.metaclassName(q, target.class)
	metaTable, ok := r.UninstantiatedTable(q, metaclass)
	if !ok {
		return Instantiated{}, false
	}
	entry, found := metaTable.Lookup(name)
	if !found || !entry.Defined {
		return Instantiated{}, false
	}
	return r.instantiate(q, entry, receiver{class: metaclass}), true
}

// PropertyCallable synthesizes the zero-argument getter of a property, named after
// the class that declares it rather than the class it was reached through.
func (r *Resolver) PropertyCallable(q environment.Query, t types.Type, name string) (*types.Callable, bool) {
	entry, ok := r.Attribute(q, t, name)
	if !ok || !entry.Property {
		return nil, false
	}
	return types.NewCallable(entry.QualifiedName(), []types.Parameter{}, entry.Annotation.Type), true
}

// AttributeTable instantiates the full table of receiver.
func (r *Resolver) AttributeTable(q environment.Query, t types.Type) (*Table[types.Annotation], bool) {
	target, ok := r.resolveReceiver(q, t)
	if !ok {
		return nil, false
	}
	uninstantiated, ok := r.UninstantiatedTable(q, target.class)
	if !ok {
		return nil, false
	}
	table := newTable[types.Annotation](target.class)
	for _, entry := range uninstantiated.Entries() {
		table.add(r.instantiate(q, entry, target))
	}
	return table, true
}

// Attributes lists the defined attributes of receiver in table order.
func (r *Resolver) Attributes(q environment.Query, t types.Type) ([]Instantiated, bool) {
	table, ok := r.AttributeTable(q, t)
	if !ok {
		return nil, false
	}
	out := make([]Instantiated, 0, table.Len())
	for _, entry := range table.Entries() {
		if entry.Defined {
			out = append(out, entry)
		}
	}
	return out, true
}

// Constructor is the bound __init__ of the receiver's class returning an instance.
// Generic classes without arguments return the class over its own variables so
// callers can solve them.
func (r *Resolver) Constructor(q environment.Query, t types.Type) (*types.Callable, bool) {
	target, ok := r.resolveReceiver(q, t)
	if !ok {
		return nil, false
	}
	target.classLevel = false
	instance := types.Type(types.NewPrimitive(target.class))
	if len(target.arguments) > 0 {
		instance = types.NewParametric(target.class, target.arguments...)
	} else if variables, ok := r.reader.Variables(q, target.class); ok && len(variables) > 0 {
		target.arguments = make([]types.Type, len(variables))
		for i, v := range variables {
			target.arguments[i] = v
		}
		instance = types.NewParametric(target.class, target.arguments...)
	}

	table, ok := r.UninstantiatedTable(q, target.class)
	if !ok {
		return nil, false
	}
	init, ok := table.Lookup("__init__")
	if !ok {
		return types.NewCallable(types.Reference(target.class).Append("__init__"), []types.Parameter{}, instance), true
	}
	bound, ok := r.instantiate(q, init, target).Annotation.Type.(*types.Callable)
	if !ok {
		return nil, false
	}
	constructor := &types.Callable{Name: bound.Name, Implementation: bound.Implementation}
	constructor.Implementation.Annotation = instance
	for _, overload := range bound.Overloads {
		overload.Annotation = instance
		constructor.Overloads = append(constructor.Overloads, overload)
	}
	return constructor, true
}

func (r *Resolver) metaclassName(q environment.Query, class string) string {
	for _, name := range append([]string{class}, r.reader.Successors(q, class)...) {
		if metadata, ok := r.reader.Metadata(q, name); ok && metadata.Metaclass != "" {
			return metadata.Metaclass
		}
	}
	return defaultMetaclass
}

// Metaclass is the explicit metaclass found along the MRO, else `type`.
func (r *Resolver) Metaclass(q environment.Query, t types.Type) (types.Type, bool) {
	target, ok := r.resolveReceiver(q, t)
	if !ok {
		return nil, false
	}
	return types.NewPrimitive(r.metaclassName(q, target.class)), true
}

// Generics lists the declared type parameters of the receiver's class.
func (r *Resolver) Generics(q environment.Query, t types.Type) ([]types.Type, bool) {
	target, ok := r.resolveReceiver(q, t)
	if !ok {
		return nil, false
	}
	variables, ok := r.reader.Variables(q, target.class)
	if !ok {
		return nil, false
	}
	out := make([]types.Type, len(variables))
	for i, v := range variables {
		out[i] = v
	}
	return out, true
}

func (r *Resolver) Successors(q environment.Query, t types.Type) ([]string, bool) {
	target, ok := r.resolveReceiver(q, t)
	if !ok {
		return nil, false
	}
	return r.reader.Successors(q, target.class), true
}

// Superclasses are the successors instantiated with the receiver's arguments.
func (r *Resolver) Superclasses(q environment.Query, t types.Type) ([]types.Type, bool) {
	target, ok := r.resolveReceiver(q, t)
	if !ok {
		return nil, false
	}
	successors := r.reader.Successors(q, target.class)
	out := make([]types.Type, 0, len(successors))
	for _, successor := range successors {
		arguments, _ := r.reader.InstantiateSuccessorParameters(q, target.class, target.arguments, successor)
		if len(arguments) == 0 {
			out = append(out, types.NewPrimitive(successor))
			continue
		}
		out = append(out, types.NewParametric(successor, arguments...))
	}
	return out, true
}

// Invalidate evicts memoized tables of the named classes, of every class that
// inherits from one of them, and of every table built from a read of one of keys.
func (r *Resolver) Invalidate(keys ...string) int {
	invalid := make(map[string]bool, len(keys))
	for _, key := range keys {
		invalid[key] = true
	}
	return r.tables.EvictWhere(func(class string, cached cachedTable) bool {
		if invalid[class] || cached.reads.Touches(invalid) {
			return true
		}
		for _, successor := range r.reader.Successors(environment.Untracked, class) {
			if invalid[successor] {
				return true
			}
		}
		return false
	})
}
