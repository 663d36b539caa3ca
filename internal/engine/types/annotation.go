package types

import "fmt"

type Scope int

const (
	LocalScope Scope = iota
	GlobalScope
)

// Immutability records a declared type that later narrowing may not widen past.
type Immutability struct {
	Scope    Scope
	Original Type
	Final    bool
}

// Annotation is a resolved variable or attribute type together with its
// mutability. A nil Immutable means the binding is freely reassignable.
type Annotation struct {
	Type      Type
	Immutable *Immutability
}

func NewAnnotation(t Type) Annotation {
	return Annotation{Type: t}
}

func NewImmutableAnnotation(t Type, scope Scope, final bool) Annotation {
	return Annotation{Type: t, Immutable: &Immutability{Scope: scope, Original: t, Final: final}}
}

// IsGlobal reports whether the annotation originated from the global symbol table.
func (a Annotation) IsGlobal() bool {
	return a.Immutable != nil && a.Immutable.Scope == GlobalScope
}

func (a Annotation) IsFinal() bool {
	return a.Immutable != nil && a.Immutable.Final
}

func (a Annotation) IsImmutable() bool {
	return a.Immutable != nil
}

// Original is the declared type, or the current type for mutable bindings.
func (a Annotation) Original() Type {
	if a.Immutable != nil && a.Immutable.Original != nil {
		return a.Immutable.Original
	}
	return a.Type
}

// WithType narrows the annotation while keeping its declared original.
func (a Annotation) WithType(t Type) Annotation {
	a.Type = t
	return a
}

func (a Annotation) Equal(other Annotation) bool {
	if !Equal(a.Type, other.Type) {
		return false
	}
	if (a.Immutable == nil) != (other.Immutable == nil) {
		return false
	}
	if a.Immutable == nil {
		return true
	}
	return a.Immutable.Scope == other.Immutable.Scope &&
		a.Immutable.Final == other.Immutable.Final &&
		Equal(a.Immutable.Original, other.Immutable.Original)
}

func (a Annotation) String() string {
	if a.Immutable == nil {
		return fmt.Sprintf("%s (mutable)", typeString(a.Type))
	}
	scope := "local"
	if a.Immutable.Scope == GlobalScope {
		scope = "global"
	}
	final := ""
	if a.Immutable.Final {
		final = ", final"
	}
	return fmt.Sprintf("%s (%s, declared %s%s)", typeString(a.Type), scope, typeString(a.Immutable.Original), final)
}

func typeString(t Type) string {
	if t == nil {
		return Top.String()
	}
	return t.String()
}
