package livestore

import (
	"fmt"

	"github.com/arthur-debert/livestore/types"
)

// Serialize flattens the tree into one record per node, root first, in
// deterministic (depth-first, sorted-key) order. The output round-trips
// through Load.
func (d *Document) Serialize() []types.SerializedNode {
	var records []types.SerializedNode
	var walk func(n Node, parentID, parentKey string)
	walk = func(n Node, parentID, parentKey string) {
		records = append(records, serializedRecord(n, parentID, parentKey))
		n.eachChild(func(key string, child Node) bool {
			walk(child, n.ID(), key)
			return true
		})
	}
	if d.root != nil {
		walk(d.root, "", "")
	}
	return records
}

func serializedRecord(n Node, parentID, parentKey string) types.SerializedNode {
	rec := types.SerializedNode{
		ID:        n.ID(),
		Type:      n.Kind(),
		ParentID:  parentID,
		ParentKey: parentKey,
	}
	switch v := n.(type) {
	case *Object:
		data := make(map[string]types.Value, len(v.scalars))
		for k, val := range v.scalars {
			data[k] = val
		}
		rec.Data = data
	case *Register:
		rec.Data = v.value
	}
	return rec
}

// Load reconstructs a document from a flat record list. Exactly one
// record must be parentless (the root); every other record needs a
// parent key, and every type tag must be known. The load itself does not
// dispatch: the state being loaded is already shared.
func Load(records []types.SerializedNode, actor int, broadcast BroadcastFunc) (*Document, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("load: empty record list: %w", ErrNoRoot)
	}

	var root *types.SerializedNode
	byParent := map[string][]types.SerializedNode{}
	for i := range records {
		rec := records[i]
		if !rec.Type.Valid() {
			return nil, fmt.Errorf("load: record %s: %w (%q)", rec.ID, ErrUnknownNodeType, rec.Type)
		}
		if rec.ParentID != "" && rec.ParentKey == "" {
			return nil, fmt.Errorf("load: record %s: %w", rec.ID, ErrMissingParentKey)
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		if rec.ParentID == "" {
			if root != nil {
				return nil, fmt.Errorf("load: records %s and %s: %w", root.ID, rec.ID, ErrMultipleRoots)
			}
			root = &records[i]
			continue
		}
		byParent[rec.ParentID] = append(byParent[rec.ParentID], rec)
	}
	if root == nil {
		return nil, fmt.Errorf("load: %w", ErrNoRoot)
	}

	d := newDocument(actor, broadcast)
	rootNode, err := d.buildSubtree(*root, byParent)
	if err != nil {
		return nil, err
	}
	d.root = rootNode
	d.advanceClock(records)
	return d, nil
}

// buildSubtree deserializes one record and, recursively, everything
// under it.
func (d *Document) buildSubtree(rec types.SerializedNode, byParent map[string][]types.SerializedNode) (Node, error) {
	node := nodeFromSerialized(rec)
	if node == nil {
		return nil, fmt.Errorf("load: record %s: %w (%q)", rec.ID, ErrUnknownNodeType, rec.Type)
	}
	adoptNode(node, rec.ID, d)

	for _, childRec := range byParent[rec.ID] {
		if childRec.ParentKey == "" {
			return nil, fmt.Errorf("load: record %s: %w", childRec.ID, ErrMissingParentKey)
		}
		child, err := d.buildSubtree(childRec, byParent)
		if err != nil {
			return nil, err
		}
		if err := placeChild(node, childRec.ParentKey, child); err != nil {
			return nil, fmt.Errorf("load: record %s: %w", childRec.ID, err)
		}
	}
	return node, nil
}

func nodeFromSerialized(rec types.SerializedNode) Node {
	switch rec.Type {
	case types.KindObject:
		return NewObject(rec.DataMap())
	case types.KindMap:
		return NewMap(nil)
	case types.KindList:
		return NewList(nil)
	case types.KindRegister:
		return newRegister(rec.Data)
	}
	return nil
}

// placeChild links a deserialized child under its parent at key.
func placeChild(parent Node, key string, child Node) error {
	if err := child.core().setParentLink(parent, key); err != nil {
		return err
	}
	switch p := parent.(type) {
	case *Object:
		delete(p.scalars, key)
		p.children[key] = child
	case *Map:
		p.entries[key] = child
	case *List:
		p.items.Set(listItem{pos: key, node: child})
	default:
		return fmt.Errorf("%s node cannot have children", parent.Kind())
	}
	return nil
}

// advanceClock moves the node clock past any loaded identity minted by
// this actor, so a reloaded replica never reissues an id.
func (d *Document) advanceClock(records []types.SerializedNode) {
	for _, rec := range records {
		actor, clock, ok := parseIdentity(rec.ID)
		if ok && actor == d.actor && clock >= d.clock {
			d.clock = clock + 1
		}
	}
}
