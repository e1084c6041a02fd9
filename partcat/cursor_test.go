package partcat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func drain(t *testing.T, c *Connector, cur *Cursor) []Reference {
	t.Helper()
	var refs []Reference
	for {
		spec, err := c.Next(cur)
		if errors.Is(err, ErrExhausted) {
			return refs
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		refs = append(refs, spec.Reference)
	}
}

func TestCursor_Iterate(t *testing.T) {
	c := newRefreshed(t, implicitConfig(), "A-1.csv", "A-2.csv", "B-1.csv")

	cur := NewCursor(BatchRequest{AssetName: "A"})
	if cur.AssetName() != "A" {
		t.Errorf("AssetName() = %q", cur.AssetName())
	}
	got := drain(t, c, cur)
	if diff := cmp.Diff([]Reference{"A-1.csv", "A-2.csv"}, got); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
	if !cur.Exhausted() {
		t.Error("cursor not exhausted after draining")
	}
	if _, err := c.Next(cur); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted again, got: %v", err)
	}

	cur.Reset()
	if cur.Exhausted() {
		t.Error("Reset did not clear exhaustion")
	}
	if diff := cmp.Diff(got, drain(t, c, cur)); diff != "" {
		t.Errorf("reset iteration mismatch (-want +got):\n%s", diff)
	}
}

func TestCursor_StaleAfterRefresh(t *testing.T) {
	c := newRefreshed(t, implicitConfig(), "A-1.csv", "A-2.csv")

	cur := NewCursor(BatchRequest{})
	if _, err := c.Next(cur); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Next(cur); !errors.Is(err, ErrStaleCursor) {
		t.Fatalf("expected ErrStaleCursor, got: %v", err)
	}

	cur.Reset()
	if got := drain(t, c, cur); len(got) != 2 {
		t.Errorf("expected 2 references after reset, got %v", got)
	}
}

func TestCursor_IndependentCursors(t *testing.T) {
	c := newRefreshed(t, implicitConfig(), "A-1.csv", "B-1.csv")

	a := NewCursor(BatchRequest{AssetName: "A"})
	b := NewCursor(BatchRequest{AssetName: "B"})
	specA, err := c.Next(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	specB, err := c.Next(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if specA.AssetName != "A" || specB.AssetName != "B" {
		t.Errorf("cursors interfered: %+v %+v", specA, specB)
	}
}

func TestCursor_ScopeMismatch(t *testing.T) {
	c := newRefreshed(t, implicitConfig(), "A-1.csv")

	if _, err := c.Next(NewCursor(BatchRequest{AssetName: "nope"})); !errors.Is(err, ErrScopeMismatch) {
		t.Errorf("expected ErrScopeMismatch, got: %v", err)
	}
}
