package environment

import (
	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

// ClassMetadata is the per-class summary the attribute and order machinery read.
type ClassMetadata struct {
	Name       string
	Module     types.Reference
	Successors []string
	IsFinal    bool
	IsProtocol bool
	IsAbstract bool
	// Metaclass is the explicit `metaclass=` keyword, empty when absent.
	Metaclass  string
	Definition *ast.Class
}

type ClassMetadataReader interface {
	ClassHierarchyReader
	Metadata(q Query, name string) (ClassMetadata, bool)
}

type ClassMetadataEnvironment struct {
	ClassHierarchyReader
	metadata map[string]ClassMetadata
	deps     *DependencyTracker
}

func NewClassMetadataEnvironment(lower ClassHierarchyReader) *ClassMetadataEnvironment {
	env := &ClassMetadataEnvironment{
		ClassHierarchyReader: lower,
		metadata:             make(map[string]ClassMetadata),
		deps:                 NewDependencyTracker("class_metadata"),
	}
	for _, name := range lower.ClassNames() {
		module, definition, ok := classModule(lower, Untracked, name)
		if !ok {
			continue
		}
		metadata := ClassMetadata{
			Name:       name,
			Module:     module,
			Successors: lower.Successors(Untracked, name),
			IsFinal:    definition.HasDecorator("typing.final", "final"),
			IsProtocol: lower.IsProtocol(Untracked, name),
			Definition: definition,
		}
		for _, base := range definition.Bases {
			if base.Keyword != "metaclass" {
				continue
			}
			if p, ok := lower.ParseAnnotation(Untracked, module, base.Value).(*types.Primitive); ok {
				metadata.Metaclass = p.Name
			}
		}
		for _, successor := range metadata.Successors {
			if successor == "abc.ABC" {
				metadata.IsAbstract = true
			}
		}
		if metadata.Metaclass == "abc.ABCMeta" {
			metadata.IsAbstract = true
		}
		env.metadata[name] = metadata
	}
	return env
}

func (e *ClassMetadataEnvironment) Metadata(q Query, name string) (ClassMetadata, bool) {
	e.deps.Record(q, name)
	metadata, ok := e.metadata[name]
	return metadata, ok
}

func (e *ClassMetadataEnvironment) tracker() *DependencyTracker { return e.deps }
