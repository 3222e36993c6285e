package implementors

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func entry(unit, typ string) Entry {
	return Entry{DisplayText: "impl Factory for " + typ, TargetUnit: unit, TypePath: unit + "::" + typ}
}

func TestRegisterAppendsAcrossUnits(t *testing.T) {
	r := NewRegistry(nil)
	widget := entry("alpha", "Widget")
	gadget := entry("beta", "Gadget")

	r.Register("Factory", []Entry{widget})
	r.Register("Factory", []Entry{gadget})

	if diff := cmp.Diff([]Entry{widget, gadget}, r.Lookup("Factory")); diff != "" {
		t.Errorf("lookup mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterKeepsInputOrder(t *testing.T) {
	r := NewRegistry(nil)
	batch := []Entry{entry("orca", "RunOpt"), entry("orca", "CommonOpt"), entry("orca", "SetupOpt")}
	res := r.Register("CommandFactory", batch)

	if diff := cmp.Diff(batch, res.Added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(batch, r.Lookup("CommandFactory")); diff != "" {
		t.Errorf("entries were reordered (-want +got):\n%s", diff)
	}
}

func TestRegisterDeduplicates(t *testing.T) {
	r := NewRegistry(nil)
	first := entry("alpha", "Widget")
	again := first
	again.DisplayText = "impl Factory for Widget (reloaded)"

	r.Register("Factory", []Entry{first})
	res := r.Register("Factory", []Entry{again, entry("beta", "Gadget")})

	if res.Duplicates != 1 || len(res.Added) != 1 {
		t.Fatalf("unexpected merge result: %+v", res)
	}
	got := r.Lookup("Factory")
	if len(got) != 2 || got[0].DisplayText != first.DisplayText {
		t.Fatalf("first registration should win, got %+v", got)
	}
}

func TestRegisterSameTypeDifferentUnits(t *testing.T) {
	r := NewRegistry(nil)
	a := Entry{DisplayText: "impl", TargetUnit: "alpha", TypePath: "shared::Opt"}
	b := Entry{DisplayText: "impl", TargetUnit: "beta", TypePath: "shared::Opt"}
	res := r.Register("Factory", []Entry{a, b})
	if len(res.Added) != 2 {
		t.Fatalf("entries with distinct units must both be kept, got %+v", res)
	}
}

func TestRegisterDropsMalformedAndContinues(t *testing.T) {
	r := NewRegistry(nil)
	good := entry("alpha", "Widget")
	res := r.Register("Factory", []Entry{
		{TargetUnit: "alpha", TypePath: "alpha::NoText"},
		good,
		{DisplayText: "impl", TypePath: "x::NoUnit"},
	})
	if res.Malformed != 2 {
		t.Fatalf("expected 2 malformed entries, got %d", res.Malformed)
	}
	if diff := cmp.Diff([]Entry{good}, r.Lookup("Factory")); diff != "" {
		t.Errorf("lookup mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterWithoutTraitName(t *testing.T) {
	r := NewRegistry(nil)
	res := r.Register("", []Entry{entry("alpha", "Widget")})
	if res.Malformed != 1 || len(r.AllTraitNames()) != 0 {
		t.Fatalf("expected batch to be dropped, got %+v", res)
	}
}

func TestLookupUnknownTraitIsEmpty(t *testing.T) {
	r := NewRegistry(nil)
	got := r.Lookup("Missing")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("Factory", []Entry{entry("alpha", "Widget")})
	got := r.Lookup("Factory")
	got[0].TypePath = "mutated"
	if r.Lookup("Factory")[0].TypePath != "alpha::Widget" {
		t.Fatal("lookup exposed internal storage")
	}
}

func TestAllTraitNames(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("Zeta", []Entry{entry("a", "A")})
	r.Register("Alpha", []Entry{entry("a", "A")})
	r.Register("Empty", []Entry{{}})

	if diff := cmp.Diff([]string{"Alpha", "Zeta"}, r.AllTraitNames()); diff != "" {
		t.Errorf("trait names mismatch (-want +got):\n%s", diff)
	}
}

func TestEntryValidate(t *testing.T) {
	if err := entry("a", "A").Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Entry{}).Validate(); !errors.Is(err, ErrMalformedEntry) {
		t.Fatalf("expected ErrMalformedEntry, got %v", err)
	}
}
