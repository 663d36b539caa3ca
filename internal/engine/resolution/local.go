package resolution

import (
	"strings"

	"github.com/benbjohnson/immutable"

	"typecore/internal/engine/refinement"
	"typecore/internal/engine/types"
)

type variableComparer struct{}

func (variableComparer) Compare(a, b string) int { return strings.Compare(a, b) }

// Resolution is the persistent local state at one program point: refinement units
// keyed by root reference, the type variables in scope and the enclosing function.
// Every update returns a new Resolution; earlier values are never affected.
type Resolution struct {
	global        *GlobalResolution
	module        types.Reference
	parent        types.Reference
	refinements   *immutable.SortedMap[types.Reference, refinement.Unit]
	typeVariables *immutable.SortedMap[string, *types.Variable]
}

// NewResolution starts an empty local state for code in module.
func NewResolution(global *GlobalResolution, module types.Reference) Resolution {
	return Resolution{
		global:        global,
		module:        module,
		refinements:   immutable.NewSortedMap[types.Reference, refinement.Unit](types.ReferenceComparer{}),
		typeVariables: immutable.NewSortedMap[string, *types.Variable](variableComparer{}),
	}
}

func (r Resolution) Global() *GlobalResolution { return r.global }

func (r Resolution) Module() types.Reference { return r.module }

// WithParent scopes the resolution to the body of the function parent.
func (r Resolution) WithParent(parent types.Reference) Resolution {
	r.parent = parent
	return r
}

func (r Resolution) Parent() (types.Reference, bool) {
	return r.parent, !r.parent.IsEmpty()
}

// WithGlobal swaps the global snapshot, e.g. for one recording dependencies.
func (r Resolution) WithGlobal(global *GlobalResolution) Resolution {
	r.global = global
	return r
}

// globalAnnotation looks ref up in the global symbol table after stripping
// local markers.
func (r Resolution) globalAnnotation(ref types.Reference) (types.Annotation, bool) {
	info, ok := r.global.Global(ref.Delocalize())
	if !ok {
		return types.Annotation{}, false
	}
	return info.Annotation, true
}

// SetLocal replaces the refinement unit of ref with a fresh one whose base is
// annotation. Attribute refinements previously stored under ref are discarded.
func (r Resolution) SetLocal(ref types.Reference, annotation types.Annotation) Resolution {
	r.refinements = r.refinements.Set(ref, refinement.New(annotation))
	return r
}

// GetLocal returns the local base annotation of ref. Annotations that came from the
// global table are skipped unless fallback is set, in which case the global symbol
// table is also consulted.
func (r Resolution) GetLocal(ref types.Reference, fallback bool) (types.Annotation, bool) {
	if unit, ok := r.refinements.Get(ref); ok {
		if base, ok := unit.Base(); ok && (fallback || !base.IsGlobal()) {
			return base, true
		}
	}
	if !fallback {
		return types.Annotation{}, false
	}
	return r.globalAnnotation(ref)
}

// UnsetLocal removes the whole refinement unit of ref.
func (r Resolution) UnsetLocal(ref types.Reference) Resolution {
	r.refinements = r.refinements.Delete(ref)
	return r
}

// HasLocal reports whether any refinement is stored for ref.
func (r Resolution) HasLocal(ref types.Reference) bool {
	_, ok := r.refinements.Get(ref)
	return ok
}

// prefixAnnotation resolves a name prefix without descending into attribute
// refinements: the local base first, then the global table.
func (r Resolution) prefixAnnotation(prefix types.Reference) (types.Annotation, bool) {
	if annotation, ok := r.GetLocal(prefix, false); ok {
		return annotation, true
	}
	return r.globalAnnotation(prefix)
}

// PartitionName splits a dotted name into a root reference and an attribute path.
// Prefixes are tried left to right: the first prefix with a concrete type becomes
// the root and its annotation is returned. When no prefix is typed the whole name
// is the root and the path is empty.
func (r Resolution) PartitionName(name types.Reference) (types.Reference, types.Reference, *types.Annotation) {
	for n := 1; n <= name.Length(); n++ {
		prefix := name.Take(n)
		annotation, ok := r.prefixAnnotation(prefix)
		if !ok || types.IsUntyped(annotation.Type) {
			continue
		}
		return prefix, name.Drop(n), &annotation
	}
	return name, "", nil
}

// SetLocalWithAttributes stores annotation at the attribute path of name. The
// annotation at the path is overwritten, while the root's base is only filled in
// when it has none.
func (r Resolution) SetLocalWithAttributes(name types.Reference, annotation types.Annotation) Resolution {
	root, path, base := r.PartitionName(name)
	unit, ok := r.refinements.Get(root)
	if !ok {
		unit = refinement.Empty()
	}
	unit = unit.AddAttributeRefinement(path.Parts(), annotation).SetBaseIfNone(base)
	r.refinements = r.refinements.Set(root, unit)
	return r
}

// GetLocalWithAttributes reads the refinement stored at name's attribute path. With
// fallback set, a missing refinement falls back to the global symbol table.
func (r Resolution) GetLocalWithAttributes(name types.Reference, fallback bool) (types.Annotation, bool) {
	root, path, _ := r.PartitionName(name)
	if unit, ok := r.refinements.Get(root); ok {
		if annotation, ok := unit.AnnotationAt(path.Parts()); ok && (fallback || !annotation.IsGlobal()) {
			return annotation, true
		}
	}
	if !fallback {
		return types.Annotation{}, false
	}
	return r.globalAnnotation(name)
}

// Refinement returns the whole unit stored under ref.
func (r Resolution) Refinement(ref types.Reference) (refinement.Unit, bool) {
	return r.refinements.Get(ref)
}

// LocalReferences lists refined roots in sorted order.
func (r Resolution) LocalReferences() []types.Reference {
	out := make([]types.Reference, 0, r.refinements.Len())
	itr := r.refinements.Iterator()
	for !itr.Done() {
		ref, _, _ := itr.Next()
		out = append(out, ref)
	}
	return out
}

func (r Resolution) AddTypeVariable(v *types.Variable) Resolution {
	r.typeVariables = r.typeVariables.Set(v.Name, v)
	return r
}

func (r Resolution) TypeVariableExists(name string) bool {
	_, ok := r.typeVariables.Get(name)
	return ok
}

// AllTypeVariablesInScope lists scoped variables sorted by name.
func (r Resolution) AllTypeVariablesInScope() []*types.Variable {
	out := make([]*types.Variable, 0, r.typeVariables.Len())
	itr := r.typeVariables.Iterator()
	for !itr.Done() {
		_, v, _ := itr.Next()
		out = append(out, v)
	}
	return out
}
