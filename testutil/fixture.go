package testutil

import (
	"testing"

	"github.com/arthur-debert/livestore/livestore"
	"github.com/arthur-debert/livestore/types"
)

// Fixture bundles a document with handles to its interesting nodes and
// the op stream it has broadcast.
type Fixture struct {
	Doc     *livestore.Document
	Root    *livestore.Object
	Profile *livestore.Map
	Tags    *livestore.List
	Sent    [][]types.Op
}

// NewFixture builds the standard test document:
//
//	{
//	  title: "untitled",
//	  profile: Map{name: "ada", score: 10},
//	  tags: List["alpha", "beta"],
//	}
//
// The fixture's broadcast callback records every committed batch into
// Sent (the batches produced while building the fixture are dropped).
func NewFixture(t *testing.T, actor int) *Fixture {
	t.Helper()

	f := &Fixture{}
	doc, err := livestore.New(livestore.NewObject(map[string]types.Value{"title": "untitled"}), actor,
		func(ops []types.Op) { f.Sent = append(f.Sent, ops) })
	if err != nil {
		t.Fatalf("fixture document: %v", err)
	}
	f.Doc = doc
	f.Root = doc.Root().(*livestore.Object)

	f.Profile = livestore.NewMap(map[string]types.Value{
		"name":  "ada",
		"score": float64(10),
	})
	if err := f.Root.Set("profile", f.Profile); err != nil {
		t.Fatalf("fixture profile: %v", err)
	}
	f.Tags = livestore.NewList([]types.Value{"alpha", "beta"})
	if err := f.Root.Set("tags", f.Tags); err != nil {
		t.Fatalf("fixture tags: %v", err)
	}

	f.Sent = nil
	return f
}

// Drain returns the recorded batches and clears the buffer.
func (f *Fixture) Drain() [][]types.Op {
	batches := f.Sent
	f.Sent = nil
	return batches
}

// ApplyTo replays every drained batch onto the given documents, in
// order.
func (f *Fixture) ApplyTo(docs ...*livestore.Document) {
	for _, batch := range f.Drain() {
		for _, doc := range docs {
			doc.ApplyRemoteOperations(batch)
		}
	}
}
