package livestore_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/livestore/livestore"
	"github.com/arthur-debert/livestore/types"
)

// Scenario: build a tree, serialize, load into a second document, and
// compare the plain-data snapshots.
func TestSerializeLoadRoundTrip(t *testing.T) {
	doc, _ := newRecordingDoc(t, livestore.NewObject(nil), 1)
	obj := rootObject(t, doc)

	if err := obj.Set("a", float64(1)); err != nil {
		t.Fatal(err)
	}
	if err := obj.Set("tags", livestore.NewList([]types.Value{"x", "y"})); err != nil {
		t.Fatal(err)
	}
	m := livestore.NewMap(nil)
	if err := obj.Set("meta", m); err != nil {
		t.Fatal(err)
	}
	if err := m.Set("owner", "carol"); err != nil {
		t.Fatal(err)
	}

	records := doc.Serialize()
	if records[0].ParentID != "" || records[0].Type != types.KindObject {
		t.Fatalf("first record must be the parentless root, got %+v", records[0])
	}
	// Root + list + 2 registers + map + 1 register.
	if len(records) != 6 {
		t.Fatalf("got %d records, want 6", len(records))
	}

	loaded, err := livestore.Load(records, 2, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string]any{
		"a":    float64(1),
		"tags": []any{"x", "y"},
		"meta": map[string]any{"owner": "carol"},
	}
	got := loaded.Root().(*livestore.Object).ToObject()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if loaded.NodeCount() != doc.NodeCount() {
		t.Errorf("node count %d, want %d", loaded.NodeCount(), doc.NodeCount())
	}
}

// A replica that reloads its own serialization must not reuse ids it
// already minted.
func TestLoadAdvancesClock(t *testing.T) {
	doc, _ := newRecordingDoc(t, livestore.NewObject(nil), 1)
	obj := rootObject(t, doc)
	if err := obj.Set("m", livestore.NewMap(nil)); err != nil {
		t.Fatal(err)
	}

	loaded, err := livestore.Load(doc.Serialize(), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	lobj := loaded.Root().(*livestore.Object)
	if err := lobj.Set("m2", livestore.NewMap(nil)); err != nil {
		t.Fatal(err)
	}
	m2 := lobj.Get("m2").(*livestore.Map)
	if loaded.Node(m2.ID()) != livestore.Node(m2) {
		t.Fatalf("fresh node not indexed")
	}
	if m2.ID() == lobj.Get("m").(*livestore.Map).ID() {
		t.Errorf("reissued an already-minted id %s", m2.ID())
	}
}

func TestLoadRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		records []types.SerializedNode
		wantErr error
	}{
		{
			name:    "empty list",
			records: nil,
			wantErr: livestore.ErrNoRoot,
		},
		{
			name: "no root",
			records: []types.SerializedNode{
				{ID: "1:0", Type: types.KindMap, ParentID: "1:9", ParentKey: "k"},
			},
			wantErr: livestore.ErrNoRoot,
		},
		{
			name: "multiple roots",
			records: []types.SerializedNode{
				{ID: "1:0", Type: types.KindObject},
				{ID: "1:1", Type: types.KindObject},
			},
			wantErr: livestore.ErrMultipleRoots,
		},
		{
			name: "unknown type",
			records: []types.SerializedNode{
				{ID: "1:0", Type: "Blob"},
			},
			wantErr: livestore.ErrUnknownNodeType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := livestore.Load(tt.records, 1, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsMissingParentKey(t *testing.T) {
	records := []types.SerializedNode{
		{ID: "1:0", Type: types.KindObject},
		{ID: "1:1", Type: types.KindMap, ParentID: "1:0"},
	}
	_, err := livestore.Load(records, 1, nil)
	if err == nil {
		t.Fatal("load should reject a non-root record without a parent key")
	}
}

func TestSerializedNodeValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     types.SerializedNode
		wantErr bool
	}{
		{"valid root", types.SerializedNode{ID: "1:0", Type: types.KindObject}, false},
		{"valid child", types.SerializedNode{ID: "1:1", Type: types.KindRegister, ParentID: "1:0", ParentKey: "k", Data: "v"}, false},
		{"empty id", types.SerializedNode{Type: types.KindMap}, true},
		{"bad kind", types.SerializedNode{ID: "1:0", Type: "Nope"}, true},
		{"parent without key", types.SerializedNode{ID: "1:1", Type: types.KindMap, ParentID: "1:0"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
