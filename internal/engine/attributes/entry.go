// Package attributes builds per-class attribute tables and answers attribute,
// property, constructor and metaclass queries against receiver types.
package attributes

import (
	"fmt"

	"typecore/internal/engine/types"
)

// Visibility is fixed when the class is defined; instantiation never changes it.
type Visibility struct {
	ReadOnly    bool
	Overridable bool
}

var ReadWrite = Visibility{}

func ReadOnly(overridable bool) Visibility {
	return Visibility{ReadOnly: true, Overridable: overridable}
}

func (v Visibility) String() string {
	if !v.ReadOnly {
		return "ReadWrite"
	}
	return fmt.Sprintf("ReadOnly(overridable=%v)", v.Overridable)
}

// Entry is one attribute of a class. A is types.Type before the entry is
// instantiated for a receiver and types.Annotation after.
type Entry[A any] struct {
	Name            string
	Parent          string
	Visibility      Visibility
	Abstract        bool
	Async           bool
	Static          bool
	ClassMethod     bool
	Property        bool
	Class           bool
	Defined         bool
	Initialized     bool
	HasEllipsisBody bool
	// Declared marks an explicit annotation, method or property, as opposed to a
	// type inferred from an assigned value.
	Declared   bool
	Annotation A
}

type (
	Uninstantiated = Entry[types.Type]
	Instantiated   = Entry[types.Annotation]
)

// QualifiedName is the defining class joined with the attribute name.
func (e Entry[A]) QualifiedName() types.Reference {
	return types.Reference(e.Parent).Append(e.Name)
}

// withAnnotation copies every flag of e onto an entry carrying annotation.
func withAnnotation[A, B any](e Entry[A], annotation B) Entry[B] {
	return Entry[B]{
		Name:            e.Name,
		Parent:          e.Parent,
		Visibility:      e.Visibility,
		Abstract:        e.Abstract,
		Async:           e.Async,
		Static:          e.Static,
		ClassMethod:     e.ClassMethod,
		Property:        e.Property,
		Class:           e.Class,
		Defined:         e.Defined,
		Initialized:     e.Initialized,
		HasEllipsisBody: e.HasEllipsisBody,
		Declared:        e.Declared,
		Annotation:      annotation,
	}
}

// Table is an ordered attribute table. The zero value is empty.
type Table[A any] struct {
	Class   string
	names   []string
	entries map[string]Entry[A]
}

func newTable[A any](class string) *Table[A] {
	return &Table[A]{Class: class, entries: make(map[string]Entry[A])}
}

// add keeps the first entry for a name.
func (t *Table[A]) add(entry Entry[A]) bool {
	if _, exists := t.entries[entry.Name]; exists {
		return false
	}
	t.names = append(t.names, entry.Name)
	t.entries[entry.Name] = entry
	return true
}

func (t *Table[A]) replace(entry Entry[A]) {
	if _, exists := t.entries[entry.Name]; !exists {
		t.names = append(t.names, entry.Name)
	}
	t.entries[entry.Name] = entry
}

func (t *Table[A]) Lookup(name string) (Entry[A], bool) {
	entry, ok := t.entries[name]
	return entry, ok
}

// Names lists attribute names in declaration order, own attributes first.
func (t *Table[A]) Names() []string {
	return append([]string(nil), t.names...)
}

func (t *Table[A]) Entries() []Entry[A] {
	out := make([]Entry[A], 0, len(t.names))
	for _, name := range t.names {
		out = append(out, t.entries[name])
	}
	return out
}

func (t *Table[A]) Len() int { return len(t.names) }
