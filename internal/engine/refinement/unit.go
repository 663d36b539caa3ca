// Package refinement holds the persistent tree of narrowed types for one root
// variable and the attribute paths accessed through it.
package refinement

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/immutable"

	"typecore/internal/engine/types"
)

type nameComparer struct{}

func (nameComparer) Compare(a, b string) int { return strings.Compare(a, b) }

// Unit is an immutable node: an optional base annotation plus child units keyed by
// attribute name. Every update returns a new Unit sharing unchanged subtrees.
type Unit struct {
	base       *types.Annotation
	attributes *immutable.SortedMap[string, Unit]
}

// Empty has no base and no attributes.
func Empty() Unit {
	return Unit{}
}

func New(base types.Annotation) Unit {
	return Unit{base: &base}
}

func (u Unit) children() *immutable.SortedMap[string, Unit] {
	if u.attributes == nil {
		return immutable.NewSortedMap[string, Unit](nameComparer{})
	}
	return u.attributes
}

func (u Unit) Base() (types.Annotation, bool) {
	if u.base == nil {
		return types.Annotation{}, false
	}
	return *u.base, true
}

func (u Unit) SetBase(base types.Annotation) Unit {
	u.base = &base
	return u
}

// SetBaseIfNone fills an empty base slot and otherwise leaves u unchanged.
func (u Unit) SetBaseIfNone(base *types.Annotation) Unit {
	if u.base != nil || base == nil {
		return u
	}
	copied := *base
	u.base = &copied
	return u
}

func (u Unit) Child(name string) (Unit, bool) {
	if u.attributes == nil {
		return Unit{}, false
	}
	return u.attributes.Get(name)
}

// AddAttributeRefinement stores annotation as the base of the node at path,
// creating intermediate nodes and overwriting any previous value there. An empty
// path targets u itself.
func (u Unit) AddAttributeRefinement(path []string, annotation types.Annotation) Unit {
	if len(path) == 0 {
		return u.SetBase(annotation)
	}
	child, _ := u.Child(path[0])
	u.attributes = u.children().Set(path[0], child.AddAttributeRefinement(path[1:], annotation))
	return u
}

// AnnotationAt returns the base of the node at path.
func (u Unit) AnnotationAt(path []string) (types.Annotation, bool) {
	node := u
	for _, segment := range path {
		child, ok := node.Child(segment)
		if !ok {
			return types.Annotation{}, false
		}
		node = child
	}
	return node.Base()
}

// AttributeNames lists direct children in sorted order.
func (u Unit) AttributeNames() []string {
	if u.attributes == nil {
		return nil
	}
	names := make([]string, 0, u.attributes.Len())
	itr := u.attributes.Iterator()
	for !itr.Done() {
		name, _, _ := itr.Next()
		names = append(names, name)
	}
	return names
}

func (u Unit) String() string {
	var b strings.Builder
	if u.base != nil {
		b.WriteString(u.base.String())
	} else {
		b.WriteString("<none>")
	}
	names := u.AttributeNames()
	if len(names) == 0 {
		return b.String()
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		child, _ := u.Child(name)
		parts = append(parts, fmt.Sprintf("%s: %s", name, child.String()))
	}
	fmt.Fprintf(&b, " {%s}", strings.Join(parts, ", "))
	return b.String()
}
