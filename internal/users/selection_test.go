package users

import (
	"slices"
	"testing"
)

func TestSelectAllReplacesSelection(t *testing.T) {
	s := NewSelection()
	s.Toggle(99, true)

	visible := []int64{1, 2, 3}
	s.SelectAll(visible, true)
	if !s.IsAllSelected(visible) {
		t.Fatal("expected all visible selected")
	}
	if s.Has(99) {
		t.Fatal("select all should not union with the previous selection")
	}
	if s.IsIndeterminate(visible) {
		t.Fatal("full selection is not indeterminate")
	}

	s.SelectAll(visible, false)
	if s.Len() != 0 {
		t.Fatalf("expected empty selection, got %v", s.IDs())
	}
}

func TestToggleTwiceRestoresMembership(t *testing.T) {
	s := NewSelection()
	s.Toggle(5, true)
	s.Toggle(5, false)
	if s.Has(5) {
		t.Fatal("expected 5 unselected")
	}
	s.Toggle(5, true)
	if !s.Has(5) {
		t.Fatal("expected 5 selected")
	}
}

func TestSelectionFlags(t *testing.T) {
	s := NewSelection()
	visible := []int64{1, 2}

	if s.IsAllSelected(nil) {
		t.Fatal("empty visible page is never all selected")
	}
	if s.IsIndeterminate(visible) {
		t.Fatal("empty selection is not indeterminate")
	}

	s.Toggle(2, true)
	if !s.IsIndeterminate(visible) {
		t.Fatal("partial selection should be indeterminate")
	}

	s.Toggle(1, true)
	s.Toggle(7, true)
	state := s.State(visible)
	if !state.AllSelected || state.Indeterminate {
		t.Fatalf("unexpected state: %+v", state)
	}
	if !slices.Equal(state.IDs, []int64{1, 2, 7}) {
		t.Fatalf("expected sorted ids, got %v", state.IDs)
	}

	s.Remove(7)
	s.Clear()
	if s.Len() != 0 {
		t.Fatal("expected cleared selection")
	}
}
