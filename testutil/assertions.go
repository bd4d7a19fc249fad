// Package testutil provides assertion helpers and a standard fixture
// document for tests across the repository.
package testutil

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/livestore/livestore"
)

// AssertTreeEqual compares two documents by their plain-data snapshots.
// Positions and identities are allowed to differ; only the externally
// visible structure counts.
func AssertTreeEqual(t *testing.T, want, got *livestore.Document, context ...string) {
	t.Helper()
	ctx := ""
	if len(context) > 0 {
		ctx = " " + context[0]
	}
	w, g := snapshotRoot(t, want), snapshotRoot(t, got)
	if diff := cmp.Diff(w, g); diff != "" {
		t.Errorf("documents differ%s (-want +got):\n%s", ctx, diff)
	}
}

// AssertNodeCount checks the number of attached nodes.
func AssertNodeCount(t *testing.T, doc *livestore.Document, expected int) {
	t.Helper()
	if got := doc.NodeCount(); got != expected {
		t.Errorf("expected %d attached nodes, got %d", expected, got)
	}
}

// AssertAttached verifies the node is reachable through the document's
// id index and that its parent holds it under its parent key.
func AssertAttached(t *testing.T, doc *livestore.Document, node livestore.Node) {
	t.Helper()
	if node.ID() == "" {
		t.Errorf("node has no identity")
		return
	}
	if doc.Node(node.ID()) != node {
		t.Errorf("node %s not reachable through the id index", node.ID())
	}
	parent := node.Parent()
	if parent == nil {
		if doc.Root() != node {
			t.Errorf("parentless node %s is not the root", node.ID())
		}
		return
	}
	if !parentHolds(parent, node) {
		t.Errorf("parent %s does not hold node %s under key %q", parent.ID(), node.ID(), node.ParentKey())
	}
}

// AssertDetached verifies the node is gone from the index.
func AssertDetached(t *testing.T, doc *livestore.Document, node livestore.Node) {
	t.Helper()
	if id := node.ID(); id != "" && doc.Node(id) == node {
		t.Errorf("node %s still in the id index", id)
	}
}

func parentHolds(parent, child livestore.Node) bool {
	key := child.ParentKey()
	switch p := parent.(type) {
	case *livestore.Object:
		return sameEntry(p.Get(key), child)
	case *livestore.Map:
		return sameEntry(p.Get(key), child)
	case *livestore.List:
		held := false
		p.ForEach(func(_ int, v any) bool {
			if sameEntry(v, child) {
				held = true
				return false
			}
			return true
		})
		return held
	}
	return false
}

// sameEntry matches a read-surface value against a child node: container
// children compare by identity, registers by their unwrapped scalar.
func sameEntry(v any, child livestore.Node) bool {
	if r, ok := child.(*livestore.Register); ok {
		return reflect.DeepEqual(v, r.Value())
	}
	n, ok := v.(livestore.Node)
	return ok && n == child
}

func snapshotRoot(t *testing.T, doc *livestore.Document) any {
	t.Helper()
	switch root := doc.Root().(type) {
	case *livestore.Object:
		return root.ToObject()
	case *livestore.Map:
		return root.ToMap()
	case *livestore.List:
		return root.ToArray()
	case *livestore.Register:
		return root.Value()
	}
	t.Fatalf("unknown root type %T", doc.Root())
	return nil
}
