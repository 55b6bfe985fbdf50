package agent

import (
	"errors"
	"strings"
	"testing"
)

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	wren := &Agent{ID: "agent-1", Name: "Wren"}
	dax := &Agent{ID: "agent-2", Name: "Dax"}
	if err := r.Register(wren); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(dax); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("exact id", func(t *testing.T) {
		t.Parallel()
		got, err := r.Resolve("agent-1")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got != wren {
			t.Errorf("Resolve() = %v, want wren", got)
		}
	})

	t.Run("case-insensitive name", func(t *testing.T) {
		t.Parallel()
		got, err := r.Resolve("wReN")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got != wren {
			t.Errorf("Resolve() = %v, want wren", got)
		}
	})

	t.Run("id match wins over name match", func(t *testing.T) {
		t.Parallel()
		rr := NewRegistry()
		byID := &Agent{ID: "Dax", Name: "Someone"}
		byName := &Agent{ID: "other", Name: "Dax"}
		_ = rr.Register(byID)
		_ = rr.Register(byName)
		got, err := rr.Resolve("Dax")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got != byID {
			t.Error("exact ID match did not take precedence over name match")
		}
	})

	t.Run("unknown identifier", func(t *testing.T) {
		t.Parallel()
		_, err := r.Resolve("nobody-here")
		if !errors.Is(err, ErrAgentNotFound) {
			t.Fatalf("Resolve() error = %v, want ErrAgentNotFound", err)
		}
	})

	t.Run("close miss includes suggestion", func(t *testing.T) {
		t.Parallel()
		_, err := r.Resolve("wrenn")
		if !errors.Is(err, ErrAgentNotFound) {
			t.Fatalf("Resolve() error = %v, want ErrAgentNotFound", err)
		}
		if !strings.Contains(err.Error(), "did you mean") {
			t.Errorf("error %q missing suggestion hint", err)
		}
	})
}

func TestRegistryReplaceSemantics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_ = r.Register(&Agent{ID: "agent-1", Name: "Old"})
	_ = r.Register(&Agent{ID: "agent-1", Name: "New"})

	if r.Len() != 1 {
		t.Fatalf("Len() = %d after re-register, want 1", r.Len())
	}
	got, err := r.Resolve("agent-1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Name != "New" {
		t.Errorf("Name = %q, want replacement to win", got.Name)
	}
}

func TestRegistryUnregisterAndIDs(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_ = r.Register(&Agent{ID: "b", Name: "B"})
	_ = r.Register(&Agent{ID: "a", Name: "A"})

	if got := r.IDs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("IDs() = %v, want sorted [a b]", got)
	}

	r.Unregister("a")
	r.Unregister("missing") // no-op
	if got := r.IDs(); len(got) != 1 || got[0] != "b" {
		t.Errorf("IDs() = %v after unregister, want [b]", got)
	}
}

func TestRegistryRejectsEmptyID(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(&Agent{Name: "no id"}); err == nil {
		t.Error("Register() accepted an agent without ID")
	}
	if err := r.Register(nil); err == nil {
		t.Error("Register() accepted nil")
	}
}
