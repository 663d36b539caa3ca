package refinement

import (
	"testing"

	"typecore/internal/engine/types"
)

var (
	intAnnotation = types.NewAnnotation(types.NewPrimitive("int"))
	strAnnotation = types.NewAnnotation(types.NewPrimitive("str"))
)

func TestUnit_AttributeRefinementsOverwrite(t *testing.T) {
	u := Empty().AddAttributeRefinement([]string{"a", "b"}, intAnnotation)
	u = u.AddAttributeRefinement([]string{"a", "b"}, strAnnotation)

	got, ok := u.AnnotationAt([]string{"a", "b"})
	if !ok || !got.Equal(strAnnotation) {
		t.Fatalf("expected str at a.b, got %v (%v)", got, ok)
	}
	if _, ok := u.AnnotationAt([]string{"a"}); ok {
		t.Fatal("intermediate node must not carry a base")
	}
	if _, ok := u.Base(); ok {
		t.Fatal("root base must stay empty")
	}
}

func TestUnit_SetBaseIfNoneKeepsFirstWrite(t *testing.T) {
	u := Empty().SetBaseIfNone(&intAnnotation)
	u = u.SetBaseIfNone(&strAnnotation)
	got, _ := u.Base()
	if !got.Equal(intAnnotation) {
		t.Fatalf("expected first base to win, got %s", got)
	}
	u = u.SetBaseIfNone(nil)
	if got, ok := u.Base(); !ok || !got.Equal(intAnnotation) {
		t.Fatal("nil base must not clear the slot")
	}
}

func TestUnit_UpdatesArePersistent(t *testing.T) {
	original := New(intAnnotation).AddAttributeRefinement([]string{"x"}, intAnnotation)
	updated := original.AddAttributeRefinement([]string{"x"}, strAnnotation).AddAttributeRefinement([]string{"y"}, strAnnotation)

	got, _ := original.AnnotationAt([]string{"x"})
	if !got.Equal(intAnnotation) {
		t.Fatalf("original was mutated: %s", original)
	}
	if names := original.AttributeNames(); len(names) != 1 {
		t.Fatalf("expected original to keep one attribute, got %v", names)
	}
	if names := updated.AttributeNames(); len(names) != 2 || names[0] != "x" || names[1] != "y" {
		t.Fatalf("unexpected attribute names %v", names)
	}
	if want := "int (mutable) {x: str (mutable), y: str (mutable)}"; updated.String() != want {
		t.Fatalf("String() = %q, want %q", updated.String(), want)
	}
}
