package livestore

import (
	"fmt"

	"github.com/arthur-debert/livestore/internal/validation"
	"github.com/arthur-debert/livestore/types"
)

// Object is a keyed record whose entries are either scalars (stored
// inline) or child nodes. Concurrent updates to the same entry resolve
// per-key last-writer-wins, with an acknowledgement table that stops a
// replica's own echoed updates from clobbering newer local state.
type Object struct {
	nodeCore
	scalars  map[string]types.Value
	children map[string]Node

	// propToLastUpdate maps an entry key to the opId of the last local
	// update that touched it. A remote UpdateObject carrying that opId
	// is our own update coming back and is skipped; a remote update for
	// a key with a different pending opId loses to the local value.
	propToLastUpdate map[string]string
}

// NewObject creates a detached Object. Values in initial may be scalars
// or freshly constructed nodes; passing a node that already has a parent
// panics, since a constructor has nowhere to report the invariant
// violation.
func NewObject(initial map[string]types.Value) *Object {
	o := &Object{
		scalars:          map[string]types.Value{},
		children:         map[string]Node{},
		propToLastUpdate: map[string]string{},
	}
	for _, key := range sortedKeys(initial) {
		if err := o.putEntry(key, initial[key]); err != nil {
			panic("livestore: NewObject: " + err.Error())
		}
	}
	return o
}

func (o *Object) Kind() types.NodeKind { return types.KindObject }

func (o *Object) core() *nodeCore { return &o.nodeCore }

func (o *Object) eachChild(fn func(key string, child Node) bool) {
	for _, key := range sortedKeys(o.children) {
		if !fn(key, o.children[key]) {
			return
		}
	}
}

func (o *Object) creationOp(parentID, parentKey string) types.Op {
	data := make(map[string]types.Value, len(o.scalars))
	for k, v := range o.scalars {
		data[k] = v
	}
	return types.Op{
		Type:      types.OpCreateObject,
		ID:        o.id,
		ParentID:  parentID,
		ParentKey: parentKey,
		Data:      data,
	}
}

// Get returns the entry at key: the scalar, the child node, or nil when
// the key is absent.
func (o *Object) Get(key string) any {
	if v, ok := o.scalars[key]; ok {
		return v
	}
	if c, ok := o.children[key]; ok {
		return c
	}
	return nil
}

// Has reports whether the key is present.
func (o *Object) Has(key string) bool {
	_, s := o.scalars[key]
	_, c := o.children[key]
	return s || c
}

// Keys returns the entry keys in sorted order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, len(o.scalars)+len(o.children))
	for k := range o.scalars {
		keys = append(keys, k)
	}
	for k := range o.children {
		keys = append(keys, k)
	}
	return sortStrings(keys)
}

// ToObject returns the record as plain Go data, with child nodes
// rendered recursively and Registers unwrapped.
func (o *Object) ToObject() map[string]any {
	out := make(map[string]any, len(o.scalars)+len(o.children))
	for k, v := range o.scalars {
		out[k] = v
	}
	for k, c := range o.children {
		out[k] = c.snapshotValue()
	}
	return out
}

func (o *Object) snapshotValue() any { return o.ToObject() }

// Set sets a single entry. Equivalent to Update with one key.
func (o *Object) Set(key string, value types.Value) error {
	return o.Update(map[string]types.Value{key: value})
}

// Update applies a partial record. Scalar entries coalesce into a single
// UpdateObject op sharing one freshly minted opId; node entries produce
// their creation op sequences. The reverse list restores every replaced
// entry (scalar restore, child re-serialization, or key deletion).
func (o *Object) Update(partial map[string]types.Value) error {
	if len(partial) == 0 {
		return nil
	}
	if !o.attached() {
		for _, key := range sortedKeys(partial) {
			if err := o.putEntry(key, partial[key]); err != nil {
				return err
			}
		}
		return nil
	}

	keys := sortedKeys(partial)
	// Validate everything up front so a failure leaves no partial state.
	for _, key := range keys {
		if n, ok := partial[key].(Node); ok {
			if n.core().attached() {
				return ErrAlreadyAttached
			}
			if n.core().parent != nil {
				return ErrReparent
			}
		} else if err := validation.Scalar(partial[key]); err != nil {
			return fmt.Errorf("update %q: %w", key, err)
		}
	}

	d := o.doc
	opID := d.mintOpID()
	fwd := map[string]types.Value{}
	var createOps []types.Op
	revScalars := map[string]types.Value{}
	var revRest []types.Op

	for _, key := range keys {
		value := partial[key]
		switch {
		case hasKey(o.scalars, key):
			revScalars[key] = o.scalars[key]
		case hasKey(o.children, key):
			prev := o.children[key]
			revRest = append(revRest, serializeNode(prev, o.id, key)...)
			o.removeChild(prev)
		default:
			revRest = append(revRest, types.Op{Type: types.OpDeleteObjectKey, ID: o.id, Key: key})
		}

		if n, ok := value.(Node); ok {
			_ = n.core().setParentLink(o, key)
			if err := attachNode(n, d.mintID(), d); err != nil {
				return err
			}
			delete(o.scalars, key)
			o.children[key] = n
			createOps = append(createOps, serializeNode(n, o.id, key)...)
		} else {
			o.scalars[key] = value
			fwd[key] = value
			o.propToLastUpdate[key] = opID
		}
	}

	var ops []types.Op
	if len(fwd) > 0 {
		ops = append(ops, types.Op{Type: types.OpUpdateObject, ID: o.id, Data: fwd, OpID: opID})
	}
	ops = append(ops, createOps...)

	var reverse []types.Op
	if len(revScalars) > 0 {
		reverse = append(reverse, types.Op{Type: types.OpUpdateObject, ID: o.id, Data: revScalars})
	}
	reverse = append(reverse, revRest...)

	d.dispatch(ops, reverse, []Node{o})
	return nil
}

// Delete removes an entry. Deleting an absent key is a no-op.
func (o *Object) Delete(key string) error {
	if !o.attached() {
		o.removeEntry(key)
		return nil
	}
	if !o.Has(key) {
		return nil
	}
	reverse := o.entryRestoreOps(key)
	o.removeEntry(key)
	o.doc.dispatch(
		[]types.Op{{Type: types.OpDeleteObjectKey, ID: o.id, Key: key}},
		reverse,
		[]Node{o},
	)
	return nil
}

// putEntry sets an entry on a detached object (constructor and pre-attach
// population path).
func (o *Object) putEntry(key string, value types.Value) error {
	if n, ok := value.(Node); ok {
		if err := n.core().setParentLink(o, key); err != nil {
			return err
		}
		delete(o.scalars, key)
		o.children[key] = n
		return nil
	}
	if prev, ok := o.children[key]; ok {
		o.removeChild(prev)
	}
	o.scalars[key] = value
	return nil
}

// entryRestoreOps builds the reverse ops that restore the current entry
// at key: an UpdateObject for a scalar, a subtree serialization for a
// child node, nothing for an absent key.
func (o *Object) entryRestoreOps(key string) []types.Op {
	if v, ok := o.scalars[key]; ok {
		return []types.Op{{
			Type: types.OpUpdateObject,
			ID:   o.id,
			Data: map[string]types.Value{key: v},
		}}
	}
	if c, ok := o.children[key]; ok {
		return serializeNode(c, o.id, key)
	}
	return nil
}

func (o *Object) removeEntry(key string) {
	if c, ok := o.children[key]; ok {
		o.removeChild(c)
	}
	delete(o.scalars, key)
}

func (o *Object) removeChild(child Node) {
	detachNode(child)
	delete(o.children, child.ParentKey())
	child.core().clearParentLink()
}

// applyUpdate handles an UpdateObject op addressed at this object.
// local marks application on behalf of this replica (undo/redo); an op
// with no opId is the legacy path and is also treated as local, minting
// an opId so the acknowledgement table never holds untracked entries.
func (o *Object) applyUpdate(op types.Op, local bool) ([]Node, []types.Op) {
	data := op.DataMap()
	if len(data) == 0 {
		return nil, nil
	}
	opID := op.OpID
	if opID == "" {
		opID = o.doc.mintOpID()
		local = true
	}

	changed := false
	revScalars := map[string]types.Value{}
	var revRest []types.Op

	applyKey := func(key string, value types.Value) {
		switch {
		case hasKey(o.scalars, key):
			revScalars[key] = o.scalars[key]
		case hasKey(o.children, key):
			prev := o.children[key]
			revRest = append(revRest, serializeNode(prev, o.id, key)...)
			o.removeChild(prev)
		default:
			revRest = append(revRest, types.Op{Type: types.OpDeleteObjectKey, ID: o.id, Key: key})
		}
		o.scalars[key] = value
		changed = true
	}

	for _, key := range sortedKeys(data) {
		value := data[key]
		if local {
			o.propToLastUpdate[key] = opID
			applyKey(key, value)
			continue
		}
		pending, ok := o.propToLastUpdate[key]
		switch {
		case !ok:
			// No optimistic local update in flight: remote wins.
			applyKey(key, value)
		case pending == op.OpID:
			// Acknowledgement of our own update: clear, no state change.
			delete(o.propToLastUpdate, key)
		default:
			// A newer local update is pending; drop the remote value.
		}
	}

	if !changed {
		return nil, nil
	}
	var reverse []types.Op
	if len(revScalars) > 0 {
		reverse = append(reverse, types.Op{Type: types.OpUpdateObject, ID: o.id, Data: revScalars})
	}
	reverse = append(reverse, revRest...)
	return []Node{o}, reverse
}

// applyDeleteKey handles a DeleteObjectKey op addressed at this object.
func (o *Object) applyDeleteKey(op types.Op) ([]Node, []types.Op) {
	if !o.Has(op.Key) {
		return nil, nil
	}
	reverse := o.entryRestoreOps(op.Key)
	o.removeEntry(op.Key)
	return []Node{o}, reverse
}

// attachChild places a child built from a remote creation op. An entry
// already at that key is replaced; its restoration is the reverse.
func (o *Object) attachChild(op types.Op, child Node) ([]Node, []types.Op) {
	key := op.ParentKey
	reverse := o.entryRestoreOps(key)
	if reverse == nil {
		reverse = []types.Op{{Type: types.OpDeleteCrdt, ID: child.ID()}}
	}
	o.removeEntry(key)
	_ = child.core().setParentLink(o, key)
	o.children[key] = child
	return []Node{o}, reverse
}

func (o *Object) detachChild(child Node) {
	key := child.ParentKey()
	if o.children[key] == child {
		delete(o.children, key)
	}
	child.core().clearParentLink()
}

func hasKey[V any](m map[string]V, key string) bool {
	_, ok := m[key]
	return ok
}
