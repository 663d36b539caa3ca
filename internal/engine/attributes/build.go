package attributes

import (
	"typecore/internal/engine/ast"
	"typecore/internal/engine/environment"
	"typecore/internal/engine/types"
)

// builder collects the attributes a single class declares in its own body.
type builder struct {
	reader environment.ClassMetadataReader
	query  environment.Query
	module types.Reference
	class  string
	table  *Table[types.Type]
	// names declared only through @overload so far
	overloadOnly map[string]bool
	slots        []string
}

func classTable(reader environment.ClassMetadataReader, q environment.Query, class string) (*Table[types.Type], bool) {
	record, ok := reader.ClassDefinition(q, class)
	if !ok {
		return nil, false
	}
	b := &builder{
		reader:       reader,
		query:        q,
		module:       record.Module,
		class:        class,
		table:        newTable[types.Type](class),
		overloadOnly: make(map[string]bool),
	}
	b.collect(record.Definition.Body)
	for _, stmt := range record.Definition.Body {
		if define, ok := stmt.(*ast.Define); ok && define.Name.Last() == "__init__" {
			b.collectSelfAssignments(define)
		}
	}
	for _, slot := range b.slots {
		b.table.add(Uninstantiated{Name: slot, Parent: class, Annotation: types.Top})
	}
	return b.table, true
}

func (b *builder) collect(body []ast.Statement) {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.Define:
			b.collectDefine(s)
		case *ast.Assign:
			b.collectAssign(s)
		case *ast.If:
			b.collect(s.Body)
			b.collect(s.OrElse)
		}
	}
}

func (b *builder) collectDefine(define *ast.Define) {
	name := define.Name.Last()
	if target, ok := define.SetterTarget(); ok {
		if existing, found := b.table.Lookup(target); found && existing.Property {
			existing.Visibility = ReadWrite
			b.table.replace(existing)
		}
		return
	}

	signature := b.reader.Signature(b.query, b.module, define)
	entry := Uninstantiated{
		Name:            name,
		Parent:          b.class,
		Visibility:      ReadWrite,
		Abstract:        define.HasDecorator("abc.abstractmethod", "abstractmethod", "abc.abstractproperty"),
		Async:           define.Async,
		Defined:         true,
		Initialized:     true,
		HasEllipsisBody: ast.HasEllipsisBody(define.Body),
		Declared:        true,
	}

	if define.HasDecorator("property", "abc.abstractproperty", "functools.cached_property") {
		entry.Property = true
		entry.Visibility = ReadOnly(true)
		entry.Annotation = signature.ReturnAnnotation()
		b.table.add(entry)
		return
	}

	entry.Static = define.HasDecorator("staticmethod")
	entry.ClassMethod = define.HasDecorator("classmethod")
	entry.Class = true
	entry.Annotation = signature

	existing, exists := b.table.Lookup(name)
	callable, isCallable := existing.Annotation.(*types.Callable)
	overload := define.HasDecorator("typing.overload", "overload")
	switch {
	case !exists:
		if overload {
			signature.Overloads = []types.Signature{signature.Implementation}
			b.overloadOnly[name] = true
		}
		b.table.add(entry)
	case isCallable && overload:
		merged := *callable
		merged.Overloads = append(append([]types.Signature(nil), callable.Overloads...), signature.Implementation)
		existing.Annotation = &merged
		b.table.replace(existing)
	case isCallable && b.overloadOnly[name]:
		signature.Overloads = callable.Overloads
		b.overloadOnly[name] = false
		b.table.replace(entry)
	case !overload:
		// a plain redefinition rebinds the name
		b.table.replace(entry)
	}
}

func (b *builder) collectAssign(assign *ast.Assign) {
	target, ok := assign.Target.(*ast.Name)
	if !ok {
		return
	}
	name := target.Identifier
	if name == "__slots__" {
		b.slots = slotNames(assign.Value)
	}
	entry := Uninstantiated{
		Name:        name,
		Parent:      b.class,
		Visibility:  ReadWrite,
		Defined:     true,
		Initialized: assign.Value != nil,
	}
	if assign.Annotation != nil {
		inner, qualifiers := b.reader.UnwrapQualifiers(b.query, b.module, assign.Annotation)
		entry.Annotation = environment.InferLiteral(assign.Value)
		if inner != nil {
			entry.Annotation = b.reader.ParseAnnotation(b.query, b.module, inner)
		}
		entry.Declared = true
		entry.Class = qualifiers.ClassVar
		if qualifiers.Final {
			entry.Visibility = ReadOnly(false)
		}
	} else {
		entry.Annotation = environment.InferLiteral(assign.Value)
		entry.Class = true
	}

	existing, exists := b.table.Lookup(name)
	if exists && !existing.Declared && entry.Declared {
		b.table.replace(entry)
		return
	}
	b.table.add(entry)
}

// collectSelfAssignments adds instance attributes assigned through `self.x` in
// __init__. A value that is an annotated parameter takes the parameter's type.
func (b *builder) collectSelfAssignments(define *ast.Define) {
	if len(define.Parameters) == 0 {
		return
	}
	self := define.Parameters[0].Name
	parameters := make(map[string]ast.Expression, len(define.Parameters))
	for _, p := range define.Parameters[1:] {
		if p.Annotation != nil {
			parameters[p.Name] = p.Annotation
		}
	}
	ast.Walk(define.Body, func(stmt ast.Statement) {
		assign, ok := stmt.(*ast.Assign)
		if !ok {
			return
		}
		attribute, ok := assign.Target.(*ast.Attribute)
		if !ok {
			return
		}
		if base, ok := attribute.Base.(*ast.Name); !ok || base.Identifier != self {
			return
		}
		entry := Uninstantiated{
			Name:        attribute.Attribute,
			Parent:      b.class,
			Visibility:  ReadWrite,
			Defined:     true,
			Initialized: true,
			Annotation:  environment.InferLiteral(assign.Value),
		}
		switch {
		case assign.Annotation != nil:
			entry.Annotation = b.reader.ParseAnnotation(b.query, b.module, assign.Annotation)
			entry.Declared = true
		default:
			if name, ok := assign.Value.(*ast.Name); ok {
				if annotation, found := parameters[name.Identifier]; found {
					entry.Annotation = b.reader.ParseAnnotation(b.query, b.module, annotation)
				}
			}
		}
		b.table.add(entry)
	})
}

func slotNames(value ast.Expression) []string {
	var elements []ast.Expression
	switch v := value.(type) {
	case *ast.List:
		elements = v.Elements
	case *ast.Tuple:
		elements = v.Elements
	case *ast.Constant:
		elements = []ast.Expression{v}
	}
	var names []string
	for _, element := range elements {
		if c, ok := element.(*ast.Constant); ok && c.Kind == ast.StringConstant {
			names = append(names, c.Value)
		}
	}
	return names
}
