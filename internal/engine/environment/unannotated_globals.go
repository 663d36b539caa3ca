package environment

import (
	"sort"

	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

type GlobalKind int

const (
	SimpleAssignGlobal GlobalKind = iota
	ImportedGlobal
	DefineGlobal
	ClassGlobal
)

// UnannotatedGlobal is a module-level binding before any annotation is resolved.
type UnannotatedGlobal struct {
	Kind       GlobalKind
	Module     types.Reference
	Annotation ast.Expression
	Value      ast.Expression
	Original   types.Reference
	Defines    []*ast.Define
	Class      *ast.Class
	Location   ast.Location
}

// ClassRecord pairs a class declaration with the module that declares it.
type ClassRecord struct {
	Definition *ast.Class
	Module     types.Reference
}

type UnannotatedGlobalReader interface {
	ASTReader
	UnannotatedGlobal(q Query, ref types.Reference) (UnannotatedGlobal, bool)
	ClassDefinition(q Query, name string) (ClassRecord, bool)
	ClassNames() []string
}

type UnannotatedGlobalEnvironment struct {
	ASTReader
	globals map[types.Reference]UnannotatedGlobal
	classes map[string]ClassRecord
	deps    *DependencyTracker
}

func NewUnannotatedGlobalEnvironment(lower ASTReader) *UnannotatedGlobalEnvironment {
	env := &UnannotatedGlobalEnvironment{
		ASTReader: lower,
		globals:   make(map[types.Reference]UnannotatedGlobal),
		classes:   make(map[string]ClassRecord),
		deps:      NewDependencyTracker("unannotated_globals"),
	}
	for _, qualifier := range lower.Qualifiers() {
		module, ok := lower.Module(Untracked, qualifier)
		if !ok {
			continue
		}
		env.collect(module, module.Statements)
		ast.Walk(module.Statements, func(stmt ast.Statement) {
			if class, ok := stmt.(*ast.Class); ok {
				if _, exists := env.classes[string(class.Name)]; !exists {
					env.classes[string(class.Name)] = ClassRecord{Definition: class, Module: module.Qualifier}
				}
			}
		})
	}
	return env
}

func (e *UnannotatedGlobalEnvironment) collect(module *ast.Module, statements []ast.Statement) {
	qualifier := module.Qualifier
	for _, stmt := range statements {
		switch s := stmt.(type) {
		case *ast.Class:
			ref := s.Name
			if _, exists := e.globals[ref]; !exists {
				e.globals[ref] = UnannotatedGlobal{Kind: ClassGlobal, Module: qualifier, Class: s, Location: s.Location}
			}
		case *ast.Define:
			existing, exists := e.globals[s.Name]
			if exists && existing.Kind == DefineGlobal {
				existing.Defines = append(existing.Defines, s)
				e.globals[s.Name] = existing
				continue
			}
			if !exists {
				e.globals[s.Name] = UnannotatedGlobal{Kind: DefineGlobal, Module: qualifier, Defines: []*ast.Define{s}, Location: s.Location}
			}
		case *ast.Assign:
			e.collectAssign(qualifier, s)
		case *ast.Import:
			e.collectImport(qualifier, s)
		case *ast.If:
			e.collect(module, s.Body)
			e.collect(module, s.OrElse)
		}
	}
}

func (e *UnannotatedGlobalEnvironment) collectAssign(qualifier types.Reference, assign *ast.Assign) {
	switch target := assign.Target.(type) {
	case *ast.Name:
		ref := types.Combine(qualifier, types.Reference(target.Identifier))
		existing, exists := e.globals[ref]
		if exists && (existing.Kind != SimpleAssignGlobal || existing.Annotation != nil || assign.Annotation == nil) {
			return
		}
		e.globals[ref] = UnannotatedGlobal{
			Kind:       SimpleAssignGlobal,
			Module:     qualifier,
			Annotation: assign.Annotation,
			Value:      assign.Value,
			Location:   assign.Location,
		}
	case *ast.Tuple:
		for _, element := range target.Elements {
			e.collectAssign(qualifier, &ast.Assign{Target: element, Location: assign.Location})
		}
	}
}

func (e *UnannotatedGlobalEnvironment) collectImport(qualifier types.Reference, imp *ast.Import) {
	for _, item := range imp.Imports {
		var local types.Reference
		var original types.Reference
		switch {
		case imp.From != "":
			original = types.Combine(imp.From, item.Name)
			local = types.Reference(item.Alias)
			if local == "" {
				local = types.Reference(item.Name.Last())
			}
		case item.Alias != "":
			original = item.Name
			local = types.Reference(item.Alias)
		default:
			original = item.Name.Take(1)
			local = original
		}
		ref := types.Combine(qualifier, local)
		if _, exists := e.globals[ref]; exists {
			continue
		}
		e.globals[ref] = UnannotatedGlobal{Kind: ImportedGlobal, Module: qualifier, Original: original}
	}
}

func (e *UnannotatedGlobalEnvironment) UnannotatedGlobal(q Query, ref types.Reference) (UnannotatedGlobal, bool) {
	e.deps.Record(q, string(ref))
	g, ok := e.globals[ref]
	return g, ok
}

func (e *UnannotatedGlobalEnvironment) ClassDefinition(q Query, name string) (ClassRecord, bool) {
	e.deps.Record(q, name)
	record, ok := e.classes[name]
	return record, ok
}

func (e *UnannotatedGlobalEnvironment) ClassNames() []string {
	names := make([]string, 0, len(e.classes))
	for name := range e.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *UnannotatedGlobalEnvironment) tracker() *DependencyTracker { return e.deps }
