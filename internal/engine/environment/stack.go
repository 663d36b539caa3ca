package environment

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"typecore/internal/engine/ast"
	"typecore/internal/shared/observability"
)

type layer interface {
	tracker() *DependencyTracker
}

// Stack is the six environment layers assembled bottom-up. The embedded reader is
// the top layer, so every lower read is reachable through it.
type Stack struct {
	AnnotatedGlobalReader
	layers []layer
}

// BuildStack constructs every layer in dependency order from parsed modules.
func BuildStack(ctx context.Context, modules []*ast.Module) *Stack {
	ctx, span := observability.Tracer.Start(ctx, "environment.BuildStack")
	defer span.End()
	span.SetAttributes(attribute.Int("modules", len(modules)))

	astEnv := timedBuild(ctx, "ast", func() *ASTEnvironment { return NewASTEnvironment(modules) })
	unannotated := timedBuild(ctx, "unannotated_globals", func() *UnannotatedGlobalEnvironment {
		return NewUnannotatedGlobalEnvironment(astEnv)
	})
	aliases := timedBuild(ctx, "aliases", func() *AliasEnvironment { return NewAliasEnvironment(unannotated) })
	hierarchy := timedBuild(ctx, "class_hierarchy", func() *ClassHierarchyEnvironment {
		return NewClassHierarchyEnvironment(aliases)
	})
	metadata := timedBuild(ctx, "class_metadata", func() *ClassMetadataEnvironment {
		return NewClassMetadataEnvironment(hierarchy)
	})
	annotated := timedBuild(ctx, "annotated_globals", func() *AnnotatedGlobalEnvironment {
		return NewAnnotatedGlobalEnvironment(metadata)
	})

	return &Stack{
		AnnotatedGlobalReader: annotated,
		layers:                []layer{astEnv, unannotated, aliases, hierarchy, metadata, annotated},
	}
}

func timedBuild[T any](ctx context.Context, name string, build func() T) T {
	_, span := observability.Tracer.Start(ctx, "environment.build."+name)
	defer span.End()
	start := time.Now()
	out := build()
	observability.EnvironmentBuildDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return out
}

// Invalidate forwards keys to every layer and returns the union of triggered
// dependencies.
func (s *Stack) Invalidate(keys ...string) []Dependency {
	results := make([][]Dependency, 0, len(s.layers))
	for _, l := range s.layers {
		results = append(results, l.tracker().Invalidate(keys...))
	}
	return mergeDependencies(results...)
}

// Dependents lists, across all layers, the dependencies recorded against key.
func (s *Stack) Dependents(key string) []Dependency {
	results := make([][]Dependency, 0, len(s.layers))
	for _, l := range s.layers {
		results = append(results, l.tracker().Dependents(key))
	}
	return mergeDependencies(results...)
}

// LayerNames lists the layers bottom-up.
func (s *Stack) LayerNames() []string {
	names := make([]string, 0, len(s.layers))
	for _, l := range s.layers {
		names = append(names, l.tracker().Layer())
	}
	return names
}
