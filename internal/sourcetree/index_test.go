package sourcetree

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIndexLookupAbsent(t *testing.T) {
	idx := NewIndex(nil)
	tree, ok := idx.Lookup("missing")
	if ok || tree != nil {
		t.Fatalf("expected absent result, got %v %v", tree, ok)
	}
}

func TestIndexNoCrossContamination(t *testing.T) {
	idx := NewIndex(nil)
	alpha := &Tree{Files: []string{"a.src"}}
	if err := idx.InsertUnit("alpha", alpha); err != nil {
		t.Fatal(err)
	}
	if err := idx.InsertUnit("beta", &Tree{Files: []string{"b.src"}}); err != nil {
		t.Fatal(err)
	}

	got, ok := idx.Lookup("alpha")
	if !ok {
		t.Fatal("alpha not found")
	}
	want := &Tree{Name: "alpha", Files: []string{"a.src"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("alpha tree changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"alpha", "beta"}, idx.Units()); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexFirstWriteWins(t *testing.T) {
	idx := NewIndex(nil)
	if err := idx.InsertUnit("alpha", &Tree{Files: []string{"first.rs"}}); err != nil {
		t.Fatal(err)
	}
	err := idx.InsertUnit("alpha", &Tree{Files: []string{"second.rs"}})
	if !errors.Is(err, ErrDuplicateUnit) {
		t.Fatalf("expected ErrDuplicateUnit, got %v", err)
	}
	got, _ := idx.Lookup("alpha")
	if diff := cmp.Diff([]string{"first.rs"}, got.Files); diff != "" {
		t.Errorf("first tree was clobbered (-want +got):\n%s", diff)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 unit, got %d", idx.Len())
	}
}

func TestIndexRejectsMalformed(t *testing.T) {
	idx := NewIndex(nil)
	err := idx.InsertUnit("alpha", &Tree{Children: []Dir{{Name: "x"}}})
	if !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("expected ErrMalformedTree, got %v", err)
	}
	if _, ok := idx.Lookup("alpha"); ok {
		t.Fatal("malformed tree must not be indexed")
	}
	if err := idx.InsertUnit("", &Tree{}); !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("expected ErrMalformedTree for empty name, got %v", err)
	}
}

func TestIndexIsolatedFromCallerMutation(t *testing.T) {
	idx := NewIndex(nil)
	tree := &Tree{Files: []string{"a.rs"}}
	if err := idx.InsertUnit("alpha", tree); err != nil {
		t.Fatal(err)
	}
	tree.Files[0] = "mutated.rs"

	got, _ := idx.Lookup("alpha")
	got.Files = append(got.Files, "extra.rs")

	again, _ := idx.Lookup("alpha")
	if diff := cmp.Diff([]string{"a.rs"}, again.Files); diff != "" {
		t.Errorf("stored tree mutated (-want +got):\n%s", diff)
	}
}
