package livestore_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/livestore/livestore"
	"github.com/arthur-debert/livestore/types"
)

func newListDoc(t *testing.T) (*livestore.Document, *livestore.List, *opRecorder) {
	t.Helper()
	doc, rec := newRecordingDoc(t, livestore.NewObject(nil), 1)
	obj := rootObject(t, doc)
	list := livestore.NewList(nil)
	if err := obj.Set("items", list); err != nil {
		t.Fatalf("attaching list: %v", err)
	}
	return doc, list, rec
}

func TestListPushInsertGet(t *testing.T) {
	_, list, _ := newListDoc(t)

	if err := list.Push("b"); err != nil {
		t.Fatal(err)
	}
	if err := list.Insert("a", 0); err != nil {
		t.Fatal(err)
	}
	if err := list.Insert("c", 2); err != nil {
		t.Fatal(err)
	}
	if list.Length() != 3 {
		t.Fatalf("length = %d, want 3", list.Length())
	}
	if diff := cmp.Diff([]any{"a", "b", "c"}, list.ToArray()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if got := list.Get(1); got != "b" {
		t.Errorf("Get(1) = %v, want b", got)
	}
	if list.Get(9) != nil {
		t.Errorf("out-of-range Get should be nil")
	}
	if got := list.IndexOf("c"); got != 2 {
		t.Errorf("IndexOf(c) = %d, want 2", got)
	}
	if got := list.IndexOf("zzz"); got != -1 {
		t.Errorf("IndexOf(zzz) = %d, want -1", got)
	}
}

func TestListIndexBounds(t *testing.T) {
	_, list, _ := newListDoc(t)
	if err := list.Push("x"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"insert negative", func() error { return list.Insert("y", -1) }},
		{"insert past end", func() error { return list.Insert("y", 2) }},
		{"delete negative", func() error { return list.Delete(-1) }},
		{"delete at length", func() error { return list.Delete(1) }},
		{"move from out of range", func() error { return list.Move(1, 0) }},
		{"move to out of range", func() error { return list.Move(0, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, livestore.ErrIndexOutOfRange) {
				t.Errorf("error = %v, want ErrIndexOutOfRange", err)
			}
		})
	}

	// Failed calls must not have mutated the list.
	if diff := cmp.Diff([]any{"x"}, list.ToArray()); diff != "" {
		t.Errorf("list changed by failed calls (-want +got):\n%s", diff)
	}
}

// Scenario: push x, push y, move(0,1) → [y,x]; undo → [x,y]; redo → [y,x].
func TestListMoveUndoRedo(t *testing.T) {
	doc, list, rec := newListDoc(t)

	if err := list.Push("x"); err != nil {
		t.Fatal(err)
	}
	if err := list.Push("y"); err != nil {
		t.Fatal(err)
	}
	if err := list.Move(0, 1); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"y", "x"}, list.ToArray()); diff != "" {
		t.Fatalf("after move (-want +got):\n%s", diff)
	}
	last := rec.batches[len(rec.batches)-1]
	if len(last) != 1 || last[0].Type != types.OpSetParentKey {
		t.Errorf("move broadcast = %v, want one SetParentKey", last)
	}

	if err := doc.Undo(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"x", "y"}, list.ToArray()); diff != "" {
		t.Errorf("after undo (-want +got):\n%s", diff)
	}
	if err := doc.Redo(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"y", "x"}, list.ToArray()); diff != "" {
		t.Errorf("after redo (-want +got):\n%s", diff)
	}
}

func TestListDeleteUndoKeepsPosition(t *testing.T) {
	doc, list, rec := newListDoc(t)
	for _, v := range []string{"a", "b", "c"} {
		if err := list.Push(v); err != nil {
			t.Fatal(err)
		}
	}

	if err := list.Delete(1); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"a", "c"}, list.ToArray()); diff != "" {
		t.Fatalf("after delete (-want +got):\n%s", diff)
	}
	last := rec.batches[len(rec.batches)-1]
	if len(last) != 1 || last[0].Type != types.OpDeleteCrdt {
		t.Errorf("delete broadcast = %v, want one DeleteCrdt", last)
	}

	if err := doc.Undo(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"a", "b", "c"}, list.ToArray()); diff != "" {
		t.Errorf("undo must restore the item at its old position (-want +got):\n%s", diff)
	}
}

func TestListForEach(t *testing.T) {
	_, list, _ := newListDoc(t)
	for _, v := range []string{"a", "b", "c"} {
		if err := list.Push(v); err != nil {
			t.Fatal(err)
		}
	}

	var seen []any
	list.ForEach(func(i int, v any) bool {
		seen = append(seen, v)
		return i < 1 // stop after the second item
	})
	if diff := cmp.Diff([]any{"a", "b"}, seen); diff != "" {
		t.Errorf("ForEach visit order (-want +got):\n%s", diff)
	}
}

func TestListNestedNodes(t *testing.T) {
	_, list, _ := newListDoc(t)

	inner := livestore.NewObject(map[string]types.Value{"n": float64(1)})
	if err := list.Push(inner); err != nil {
		t.Fatal(err)
	}
	got, ok := list.Get(0).(*livestore.Object)
	if !ok {
		t.Fatalf("Get(0) = %T, want *livestore.Object", list.Get(0))
	}
	if got.Get("n") != float64(1) {
		t.Errorf("nested n = %v, want 1", got.Get("n"))
	}
	want := []any{map[string]any{"n": float64(1)}}
	if diff := cmp.Diff(want, list.ToArray()); diff != "" {
		t.Errorf("ToArray mismatch (-want +got):\n%s", diff)
	}
}
