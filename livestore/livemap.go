package livestore

import (
	"fmt"

	"github.com/arthur-debert/livestore/internal/validation"
	"github.com/arthur-debert/livestore/types"
)

// Map is an unordered key→node container. Scalar values are wrapped in a
// Register on the way in and unwrapped on the way out, so callers only
// ever see scalars and container nodes.
type Map struct {
	nodeCore
	entries map[string]Node
}

// NewMap creates a detached Map. Values in initial may be scalars or
// freshly constructed nodes; a node that already has a parent panics,
// as in NewObject.
func NewMap(initial map[string]types.Value) *Map {
	m := &Map{entries: map[string]Node{}}
	for _, key := range sortedKeys(initial) {
		child := wrapValue(initial[key])
		if err := child.core().setParentLink(m, key); err != nil {
			panic("livestore: NewMap: " + err.Error())
		}
		m.entries[key] = child
	}
	return m
}

func (m *Map) Kind() types.NodeKind { return types.KindMap }

func (m *Map) core() *nodeCore { return &m.nodeCore }

func (m *Map) eachChild(fn func(key string, child Node) bool) {
	for _, key := range sortedKeys(m.entries) {
		if !fn(key, m.entries[key]) {
			return
		}
	}
}

func (m *Map) creationOp(parentID, parentKey string) types.Op {
	return types.Op{
		Type:      types.OpCreateMap,
		ID:        m.id,
		ParentID:  parentID,
		ParentKey: parentKey,
	}
}

// Get returns the value at key with Registers unwrapped, or nil when the
// key is absent.
func (m *Map) Get(key string) any {
	child, ok := m.entries[key]
	if !ok {
		return nil
	}
	return unwrapNode(child)
}

// Has reports whether the key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

// Size returns the number of entries.
func (m *Map) Size() int { return len(m.entries) }

// Keys returns the entry keys in sorted order.
func (m *Map) Keys() []string {
	return sortedKeys(m.entries)
}

// ForEach visits entries in sorted key order with Registers unwrapped.
// The walk stops when fn returns false.
func (m *Map) ForEach(fn func(key string, value any) bool) {
	for _, key := range sortedKeys(m.entries) {
		if !fn(key, unwrapNode(m.entries[key])) {
			return
		}
	}
}

// ToMap returns the entries as plain Go data.
func (m *Map) ToMap() map[string]any {
	out := make(map[string]any, len(m.entries))
	for key, child := range m.entries {
		out[key] = child.snapshotValue()
	}
	return out
}

func (m *Map) snapshotValue() any { return m.ToMap() }

// Set stores a value at key, replacing any existing entry. The forward
// stream is the new child's creation ops; the reverse restores the
// replaced child (or deletes the new one when the key was empty).
func (m *Map) Set(key string, value types.Value) error {
	if _, ok := value.(Node); !ok {
		if err := validation.Scalar(value); err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
	}
	child := wrapValue(value)
	if child.core().attached() {
		return ErrAlreadyAttached
	}
	if child.core().parent != nil {
		return ErrReparent
	}
	prev := m.entries[key]

	if !m.attached() {
		if prev != nil {
			m.detachChild(prev)
		}
		_ = child.core().setParentLink(m, key)
		m.entries[key] = child
		return nil
	}

	var reverse []types.Op
	if prev != nil {
		reverse = serializeNode(prev, m.id, key)
		detachNode(prev)
		prev.core().clearParentLink()
	}
	_ = child.core().setParentLink(m, key)
	if err := attachNode(child, m.doc.mintID(), m.doc); err != nil {
		return err
	}
	m.entries[key] = child
	if reverse == nil {
		reverse = []types.Op{{Type: types.OpDeleteCrdt, ID: child.ID()}}
	}
	m.doc.dispatch(serializeNode(child, m.id, key), reverse, []Node{m})
	return nil
}

// Delete removes the entry at key. Deleting an absent key is a no-op.
func (m *Map) Delete(key string) error {
	child, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !m.attached() {
		m.detachChild(child)
		return nil
	}
	reverse := serializeNode(child, m.id, key)
	id := child.ID()
	detachNode(child)
	m.detachChild(child)
	m.doc.dispatch(
		[]types.Op{{Type: types.OpDeleteCrdt, ID: id}},
		reverse,
		[]Node{m},
	)
	return nil
}

// attachChild places a child built from a remote creation op, replacing
// any resident entry at that key.
func (m *Map) attachChild(op types.Op, child Node) ([]Node, []types.Op) {
	key := op.ParentKey
	var reverse []types.Op
	if prev, ok := m.entries[key]; ok {
		reverse = serializeNode(prev, m.id, key)
		detachNode(prev)
		m.detachChild(prev)
	} else {
		reverse = []types.Op{{Type: types.OpDeleteCrdt, ID: child.ID()}}
	}
	_ = child.core().setParentLink(m, key)
	m.entries[key] = child
	return []Node{m}, reverse
}

func (m *Map) detachChild(child Node) {
	key := child.ParentKey()
	if m.entries[key] == child {
		delete(m.entries, key)
	}
	child.core().clearParentLink()
}
