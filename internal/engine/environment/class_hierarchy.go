package environment

import (
	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
)

const objectClass = "object"

// Target is a parent edge: the parent's name and the type arguments the child
// passes to it, expressed in the child's type variables.
type Target struct {
	Name      string
	Arguments []types.Type
}

type ClassHierarchyReader interface {
	AliasReader
	IsTracked(q Query, name string) bool
	Parents(q Query, name string) ([]Target, bool)
	Variables(q Query, name string) ([]*types.Variable, bool)
	IsProtocol(q Query, name string) bool
	Successors(q Query, name string) []string
	InstantiateSuccessorParameters(q Query, source string, arguments []types.Type, target string) ([]types.Type, bool)
}

type hierarchyNode struct {
	parents    []Target
	variables  []*types.Variable
	protocol   bool
	successors []string
}

// ClassHierarchyEnvironment is the inheritance graph. The graph is assumed acyclic;
// inconsistent orders fall back to depth-first linearization.
type ClassHierarchyEnvironment struct {
	AliasReader
	nodes map[string]*hierarchyNode
	deps  *DependencyTracker
}

func NewClassHierarchyEnvironment(lower AliasReader) *ClassHierarchyEnvironment {
	env := &ClassHierarchyEnvironment{
		AliasReader: lower,
		nodes:       make(map[string]*hierarchyNode),
		deps:        NewDependencyTracker("class_hierarchy"),
	}
	for _, name := range lower.ClassNames() {
		record, _ := lower.ClassDefinition(Untracked, name)
		env.nodes[name] = env.buildNode(name, record)
	}
	for _, name := range lower.ClassNames() {
		env.nodes[name].successors = env.linearize(name, map[string]bool{})[1:]
	}
	return env
}

func (e *ClassHierarchyEnvironment) buildNode(name string, record ClassRecord) *hierarchyNode {
	node := &hierarchyNode{}
	var declared []*types.Variable
	explicit := false
	for _, base := range record.Definition.Bases {
		if base.Keyword != "" {
			continue
		}
		parsed := e.ParseAnnotation(Untracked, record.Module, base.Value)
		switch t := parsed.(type) {
		case *types.Primitive:
			if t.Name == "typing.Protocol" {
				node.protocol = true
				continue
			}
			if t.Name == "typing.Generic" || t.Name == name {
				continue
			}
			node.parents = append(node.parents, Target{Name: t.Name})
		case *types.Parametric:
			if t.Name == "typing.Generic" || t.Name == "typing.Protocol" {
				node.protocol = node.protocol || t.Name == "typing.Protocol"
				explicit = true
				declared = appendVariables(declared, t.Arguments)
				continue
			}
			node.parents = append(node.parents, Target{Name: t.Name, Arguments: t.Arguments})
		case *types.Tuple:
			name, args := types.Split(t)
			node.parents = append(node.parents, Target{Name: name, Arguments: args})
		}
	}
	if !explicit {
		for _, parent := range node.parents {
			declared = appendVariables(declared, parent.Arguments)
		}
	}
	node.variables = declared
	if len(node.parents) == 0 && name != objectClass {
		node.parents = []Target{{Name: objectClass}}
	}
	return node
}

func appendVariables(into []*types.Variable, arguments []types.Type) []*types.Variable {
	for _, argument := range arguments {
		types.Map(argument, func(node types.Type) (types.Type, bool) {
			v, ok := node.(*types.Variable)
			if !ok {
				return nil, false
			}
			for _, existing := range into {
				if existing.Name == v.Name {
					return v, true
				}
			}
			into = append(into, v)
			return v, true
		})
	}
	return into
}

// linearize computes the C3 method resolution order, self first.
func (e *ClassHierarchyEnvironment) linearize(name string, visiting map[string]bool) []string {
	node, ok := e.nodes[name]
	if !ok || visiting[name] {
		return []string{name}
	}
	if node.successors != nil {
		return append([]string{name}, node.successors...)
	}
	visiting[name] = true
	defer delete(visiting, name)

	sequences := make([][]string, 0, len(node.parents)+1)
	parentNames := make([]string, 0, len(node.parents))
	for _, parent := range node.parents {
		sequences = append(sequences, e.linearize(parent.Name, visiting))
		parentNames = append(parentNames, parent.Name)
	}
	sequences = append(sequences, parentNames)

	merged, ok := mergeC3(sequences)
	if !ok {
		merged = depthFirst(sequences)
	}
	return append([]string{name}, merged...)
}

func mergeC3(sequences [][]string) ([]string, bool) {
	var result []string
	for {
		nonEmpty := sequences[:0]
		for _, seq := range sequences {
			if len(seq) > 0 {
				nonEmpty = append(nonEmpty, seq)
			}
		}
		sequences = nonEmpty
		if len(sequences) == 0 {
			return result, true
		}
		var candidate string
		found := false
		for _, seq := range sequences {
			head := seq[0]
			if !inAnyTail(sequences, head) {
				candidate = head
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
		result = append(result, candidate)
		next := make([][]string, 0, len(sequences))
		for _, seq := range sequences {
			if seq[0] == candidate {
				seq = seq[1:]
			}
			next = append(next, seq)
		}
		sequences = next
	}
}

func inAnyTail(sequences [][]string, name string) bool {
	for _, seq := range sequences {
		for _, entry := range seq[1:] {
			if entry == name {
				return true
			}
		}
	}
	return false
}

func depthFirst(sequences [][]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, seq := range sequences {
		for _, name := range seq {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func (e *ClassHierarchyEnvironment) IsTracked(q Query, name string) bool {
	e.deps.Record(q, name)
	_, ok := e.nodes[name]
	return ok
}

func (e *ClassHierarchyEnvironment) Parents(q Query, name string) ([]Target, bool) {
	e.deps.Record(q, name)
	node, ok := e.nodes[name]
	if !ok {
		return nil, false
	}
	return node.parents, true
}

// Variables returns the declared type parameters of name in declaration order.
func (e *ClassHierarchyEnvironment) Variables(q Query, name string) ([]*types.Variable, bool) {
	e.deps.Record(q, name)
	node, ok := e.nodes[name]
	if !ok {
		return nil, false
	}
	return node.variables, true
}

func (e *ClassHierarchyEnvironment) IsProtocol(q Query, name string) bool {
	e.deps.Record(q, name)
	node, ok := e.nodes[name]
	return ok && node.protocol
}

// Successors is the method resolution order of name, excluding name itself.
func (e *ClassHierarchyEnvironment) Successors(q Query, name string) []string {
	e.deps.Record(q, name)
	node, ok := e.nodes[name]
	if !ok {
		return nil
	}
	return node.successors
}

// InstantiateSuccessorParameters expresses target's type arguments as seen from
// source instantiated with arguments. Missing arguments are treated as Any.
func (e *ClassHierarchyEnvironment) InstantiateSuccessorParameters(q Query, source string, arguments []types.Type, target string) ([]types.Type, bool) {
	e.deps.Record(q, source)
	type item struct {
		name      string
		arguments []types.Type
	}
	queue := []item{{name: source, arguments: e.normalizeArguments(source, arguments)}}
	visited := make(map[string]bool)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.name == target {
			return current.arguments, true
		}
		if visited[current.name] {
			continue
		}
		visited[current.name] = true
		node, ok := e.nodes[current.name]
		if !ok {
			continue
		}
		replacements := make(map[string]types.Type, len(node.variables))
		for i, v := range node.variables {
			if i < len(current.arguments) {
				replacements[v.Name] = current.arguments[i]
			}
		}
		for _, parent := range node.parents {
			parentArguments := make([]types.Type, len(parent.Arguments))
			for i, argument := range parent.Arguments {
				parentArguments[i] = types.Substitute(argument, replacements)
			}
			queue = append(queue, item{name: parent.Name, arguments: e.normalizeArguments(parent.Name, parentArguments)})
		}
	}
	return nil, false
}

func (e *ClassHierarchyEnvironment) normalizeArguments(name string, arguments []types.Type) []types.Type {
	node, ok := e.nodes[name]
	if !ok || len(arguments) == len(node.variables) {
		return arguments
	}
	out := make([]types.Type, len(node.variables))
	for i := range out {
		if i < len(arguments) {
			out[i] = arguments[i]
		} else {
			out[i] = types.Any
		}
	}
	return out
}

// classModule is a convenience for layers above that need the declaring module.
func classModule(reader UnannotatedGlobalReader, q Query, name string) (types.Reference, *ast.Class, bool) {
	record, ok := reader.ClassDefinition(q, name)
	if !ok {
		return "", nil, false
	}
	return record.Module, record.Definition, true
}

func (e *ClassHierarchyEnvironment) tracker() *DependencyTracker { return e.deps }
