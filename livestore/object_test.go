package livestore_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/livestore/livestore"
	"github.com/arthur-debert/livestore/types"
)

func TestObjectSetGet(t *testing.T) {
	doc, _ := newRecordingDoc(t, livestore.NewObject(nil), 1)
	obj := rootObject(t, doc)

	if err := obj.Set("name", "carol"); err != nil {
		t.Fatal(err)
	}
	if got := obj.Get("name"); got != "carol" {
		t.Errorf("Get(name) = %v, want carol", got)
	}
	if obj.Get("missing") != nil {
		t.Errorf("Get(missing) should be nil")
	}
	if !obj.Has("name") || obj.Has("missing") {
		t.Errorf("Has is inconsistent")
	}

	nested := livestore.NewObject(map[string]types.Value{"x": float64(7)})
	if err := obj.Set("child", nested); err != nil {
		t.Fatal(err)
	}
	got, ok := obj.Get("child").(*livestore.Object)
	if !ok {
		t.Fatalf("Get(child) = %T, want *livestore.Object", obj.Get("child"))
	}
	if got.Get("x") != float64(7) {
		t.Errorf("nested x = %v, want 7", got.Get("x"))
	}

	want := map[string]any{"name": "carol", "child": map[string]any{"x": float64(7)}}
	if diff := cmp.Diff(want, obj.ToObject()); diff != "" {
		t.Errorf("ToObject mismatch (-want +got):\n%s", diff)
	}
}

func TestObjectUpdateCoalescesScalars(t *testing.T) {
	doc, rec := newRecordingDoc(t, livestore.NewObject(nil), 1)
	obj := rootObject(t, doc)

	before := len(rec.batches)
	if err := obj.Update(map[string]types.Value{"a": float64(1), "b": float64(2)}); err != nil {
		t.Fatal(err)
	}
	if got := len(rec.batches) - before; got != 1 {
		t.Fatalf("update produced %d broadcasts, want 1", got)
	}
	ops := rec.batches[len(rec.batches)-1]
	if len(ops) != 1 {
		t.Fatalf("update produced %d ops, want 1 coalesced UpdateObject", len(ops))
	}
	op := ops[0]
	if op.Type != types.OpUpdateObject {
		t.Fatalf("op type = %s, want UpdateObject", op.Type)
	}
	if op.OpID == "" {
		t.Errorf("scalar update must carry an opId")
	}
	want := map[string]types.Value{"a": float64(1), "b": float64(2)}
	if diff := cmp.Diff(want, op.DataMap()); diff != "" {
		t.Errorf("op data mismatch (-want +got):\n%s", diff)
	}
}

func TestObjectUpdateMixedScalarAndNode(t *testing.T) {
	doc, rec := newRecordingDoc(t, livestore.NewObject(nil), 1)
	obj := rootObject(t, doc)

	before := len(rec.batches)
	err := obj.Update(map[string]types.Value{
		"count": float64(3),
		"tags":  livestore.NewList([]types.Value{"a"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(rec.batches) - before; got != 1 {
		t.Fatalf("update produced %d broadcasts, want 1", got)
	}
	ops := rec.batches[len(rec.batches)-1]
	// UpdateObject{count} + CreateList + CreateRegister.
	if len(ops) != 3 {
		t.Fatalf("got %d ops, want 3: %v", len(ops), ops)
	}
	if ops[0].Type != types.OpUpdateObject || ops[1].Type != types.OpCreateList || ops[2].Type != types.OpCreateRegister {
		t.Errorf("op sequence = %s,%s,%s", ops[0].Type, ops[1].Type, ops[2].Type)
	}
	if ops[1].ParentID != obj.ID() || ops[1].ParentKey != "tags" {
		t.Errorf("list parent coords = (%s,%s)", ops[1].ParentID, ops[1].ParentKey)
	}
	if ops[2].ParentID != ops[1].ID {
		t.Errorf("register parent = %s, want the list %s", ops[2].ParentID, ops[1].ID)
	}
}

func TestObjectReplaceNodeWithScalarUndo(t *testing.T) {
	doc, _ := newRecordingDoc(t, livestore.NewObject(nil), 1)
	obj := rootObject(t, doc)

	if err := obj.Set("v", livestore.NewMap(map[string]types.Value{"k": "deep"})); err != nil {
		t.Fatal(err)
	}
	if err := obj.Set("v", "flat"); err != nil {
		t.Fatal(err)
	}
	if got := obj.Get("v"); got != "flat" {
		t.Fatalf("v = %v, want flat", got)
	}
	if err := doc.Undo(); err != nil {
		t.Fatal(err)
	}
	m, ok := obj.Get("v").(*livestore.Map)
	if !ok {
		t.Fatalf("after undo v = %T, want *livestore.Map", obj.Get("v"))
	}
	if m.Get("k") != "deep" {
		t.Errorf("restored map k = %v, want deep", m.Get("k"))
	}
}

func TestObjectDeleteUndo(t *testing.T) {
	doc, rec := newRecordingDoc(t, livestore.NewObject(map[string]types.Value{"a": float64(1)}), 1)
	obj := rootObject(t, doc)

	if err := obj.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if obj.Has("a") {
		t.Fatalf("a still present after delete")
	}
	last := rec.batches[len(rec.batches)-1]
	if len(last) != 1 || last[0].Type != types.OpDeleteObjectKey || last[0].Key != "a" {
		t.Errorf("delete broadcast = %v, want one DeleteObjectKey(a)", last)
	}

	if err := doc.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := obj.Get("a"); got != float64(1) {
		t.Errorf("after undo a = %v, want 1", got)
	}

	// Deleting an absent key is a no-op and does not broadcast.
	before := len(rec.batches)
	if err := obj.Delete("nope"); err != nil {
		t.Fatal(err)
	}
	if len(rec.batches) != before {
		t.Errorf("deleting an absent key broadcast ops")
	}
}

// A remote update for a key with no pending local update wins; a remote
// update conflicting with a pending local one is dropped; the echo of
// our own op clears the pending entry without reapplying.
func TestObjectLWWAcknowledgement(t *testing.T) {
	doc, rec := newRecordingDoc(t, livestore.NewObject(map[string]types.Value{"count": float64(0)}), 1)
	obj := rootObject(t, doc)

	if err := obj.Set("count", float64(1)); err != nil {
		t.Fatal(err)
	}
	own := rec.batches[len(rec.batches)-1][0]
	if own.OpID == "" {
		t.Fatal("local update must carry an opId")
	}

	t.Run("conflicting remote is dropped while pending", func(t *testing.T) {
		doc.ApplyRemoteOperations([]types.Op{{
			Type: types.OpUpdateObject,
			ID:   obj.ID(),
			Data: map[string]types.Value{"count": float64(99)},
			OpID: "9:0",
		}})
		if got := obj.Get("count"); got != float64(1) {
			t.Errorf("count = %v, want local 1 to survive", got)
		}
	})

	t.Run("own echo clears pending without change", func(t *testing.T) {
		doc.ApplyRemoteOperations([]types.Op{own})
		if got := obj.Get("count"); got != float64(1) {
			t.Errorf("count = %v, want 1", got)
		}
	})

	t.Run("remote wins once nothing is pending", func(t *testing.T) {
		doc.ApplyRemoteOperations([]types.Op{{
			Type: types.OpUpdateObject,
			ID:   obj.ID(),
			Data: map[string]types.Value{"count": float64(2)},
			OpID: "9:1",
		}})
		if got := obj.Get("count"); got != float64(2) {
			t.Errorf("count = %v, want remote 2 to apply", got)
		}
	})
}

func TestObjectConcurrentDistinctKeysBothSurvive(t *testing.T) {
	doc, _ := newRecordingDoc(t, livestore.NewObject(nil), 1)
	obj := rootObject(t, doc)

	if err := obj.Set("mine", "local"); err != nil {
		t.Fatal(err)
	}
	doc.ApplyRemoteOperations([]types.Op{{
		Type: types.OpUpdateObject,
		ID:   obj.ID(),
		Data: map[string]types.Value{"theirs": "remote"},
		OpID: "2:0",
	}})

	if obj.Get("mine") != "local" || obj.Get("theirs") != "remote" {
		t.Errorf("both keys must survive: %v", obj.ToObject())
	}
}

func TestObjectRejectsReparenting(t *testing.T) {
	doc, _ := newRecordingDoc(t, livestore.NewObject(nil), 1)
	obj := rootObject(t, doc)

	child := livestore.NewMap(nil)
	if err := obj.Set("a", child); err != nil {
		t.Fatal(err)
	}
	if err := obj.Set("b", child); err == nil {
		t.Errorf("setting an attached node under a second key must fail")
	}
}
