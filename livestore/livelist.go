package livestore

import (
	"fmt"
	"reflect"

	"github.com/tidwall/btree"

	"github.com/arthur-debert/livestore/internal/validation"
	"github.com/arthur-debert/livestore/livestore/positions"
	"github.com/arthur-debert/livestore/types"
)

// List is an ordered sequence of nodes keyed by dense-order position
// strings. The external index order is the sorted order of the position
// keys; inserting never renumbers neighbours because a fresh key can
// always be minted between two existing ones.
type List struct {
	nodeCore
	items *btree.BTreeG[listItem]
}

type listItem struct {
	pos  string
	node Node
}

func newItemTree() *btree.BTreeG[listItem] {
	return btree.NewBTreeGOptions(
		func(a, b listItem) bool {
			return positions.Compare(a.pos, b.pos) < 0
		},
		btree.Options{NoLocks: true, Degree: 8},
	)
}

// NewList creates a detached List. Items may be scalars or freshly
// constructed nodes; a node that already has a parent panics, as in
// NewObject.
func NewList(initial []types.Value) *List {
	l := &List{items: newItemTree()}
	pos := ""
	for _, value := range initial {
		next, err := positions.Between(pos, "")
		if err != nil {
			panic("livestore: NewList: " + err.Error())
		}
		pos = next
		child := wrapValue(value)
		if err := child.core().setParentLink(l, pos); err != nil {
			panic("livestore: NewList: " + err.Error())
		}
		l.items.Set(listItem{pos: pos, node: child})
	}
	return l
}

func (l *List) Kind() types.NodeKind { return types.KindList }

func (l *List) core() *nodeCore { return &l.nodeCore }

func (l *List) eachChild(fn func(key string, child Node) bool) {
	l.items.Scan(func(item listItem) bool {
		return fn(item.pos, item.node)
	})
}

func (l *List) creationOp(parentID, parentKey string) types.Op {
	return types.Op{
		Type:      types.OpCreateList,
		ID:        l.id,
		ParentID:  parentID,
		ParentKey: parentKey,
	}
}

// Length returns the number of items.
func (l *List) Length() int { return l.items.Len() }

// Get returns the item at index with Registers unwrapped, or nil when
// the index is out of range.
func (l *List) Get(index int) any {
	item, ok := l.items.GetAt(index)
	if !ok {
		return nil
	}
	return unwrapNode(item.node)
}

// ToArray returns the items as plain Go data, in order.
func (l *List) ToArray() []any {
	out := make([]any, 0, l.items.Len())
	l.items.Scan(func(item listItem) bool {
		out = append(out, item.node.snapshotValue())
		return true
	})
	return out
}

func (l *List) snapshotValue() any { return l.ToArray() }

// ForEach visits items in order with Registers unwrapped. The walk stops
// when fn returns false.
func (l *List) ForEach(fn func(index int, value any) bool) {
	i := 0
	l.items.Scan(func(item listItem) bool {
		ok := fn(i, unwrapNode(item.node))
		i++
		return ok
	})
}

// IndexOf returns the index of the first item whose unwrapped value is
// deeply equal to value, or -1.
func (l *List) IndexOf(value any) int {
	found := -1
	i := 0
	l.items.Scan(func(item listItem) bool {
		if reflect.DeepEqual(unwrapNode(item.node), value) {
			found = i
			return false
		}
		i++
		return true
	})
	return found
}

// Push appends a value.
func (l *List) Push(value types.Value) error {
	return l.Insert(value, l.Length())
}

// Insert places a value at index, shifting later items. index may equal
// Length (append).
func (l *List) Insert(value types.Value, index int) error {
	if index < 0 || index > l.Length() {
		return fmt.Errorf("insert at %d with length %d: %w", index, l.Length(), ErrIndexOutOfRange)
	}
	if _, ok := value.(Node); !ok {
		if err := validation.Scalar(value); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	child := wrapValue(value)
	if child.core().attached() {
		return ErrAlreadyAttached
	}
	if child.core().parent != nil {
		return ErrReparent
	}

	var before, after string
	if index > 0 {
		item, _ := l.items.GetAt(index - 1)
		before = item.pos
	}
	if index < l.Length() {
		item, _ := l.items.GetAt(index)
		after = item.pos
	}
	pos, err := positions.Between(before, after)
	if err != nil {
		return fmt.Errorf("minting position: %w", err)
	}
	_ = child.core().setParentLink(l, pos)

	if !l.attached() {
		l.items.Set(listItem{pos: pos, node: child})
		return nil
	}
	if err := attachNode(child, l.doc.mintID(), l.doc); err != nil {
		return err
	}
	l.items.Set(listItem{pos: pos, node: child})
	l.doc.dispatch(
		serializeNode(child, l.id, pos),
		[]types.Op{{Type: types.OpDeleteCrdt, ID: child.ID()}},
		[]Node{l},
	)
	return nil
}

// Delete removes the item at index. index must be below Length.
func (l *List) Delete(index int) error {
	if index < 0 || index >= l.Length() {
		return fmt.Errorf("delete at %d with length %d: %w", index, l.Length(), ErrIndexOutOfRange)
	}
	item, _ := l.items.GetAt(index)

	if !l.attached() {
		l.items.Delete(item)
		item.node.core().clearParentLink()
		return nil
	}
	reverse := serializeNode(item.node, l.id, item.pos)
	id := item.node.ID()
	l.items.Delete(item)
	detachNode(item.node)
	item.node.core().clearParentLink()
	l.doc.dispatch(
		[]types.Op{{Type: types.OpDeleteCrdt, ID: id}},
		reverse,
		[]Node{l},
	)
	return nil
}

// Move relocates the item at from so it ends up at index to. Both
// indices must be below Length.
func (l *List) Move(from, to int) error {
	if from < 0 || from >= l.Length() {
		return fmt.Errorf("move from %d with length %d: %w", from, l.Length(), ErrIndexOutOfRange)
	}
	if to < 0 || to >= l.Length() {
		return fmt.Errorf("move to %d with length %d: %w", to, l.Length(), ErrIndexOutOfRange)
	}
	if from == to {
		return nil
	}
	item, _ := l.items.GetAt(from)

	// Neighbours of the target slot in the list as it looks after the
	// moved item is lifted out.
	var before, after string
	if to > from {
		next, _ := l.items.GetAt(to)
		before = next.pos
		if to+1 < l.Length() {
			next, _ = l.items.GetAt(to + 1)
			after = next.pos
		}
	} else {
		if to > 0 {
			prev, _ := l.items.GetAt(to - 1)
			before = prev.pos
		}
		next, _ := l.items.GetAt(to)
		after = next.pos
	}
	pos, err := positions.Between(before, after)
	if err != nil {
		return fmt.Errorf("minting position: %w", err)
	}

	prevPos := item.pos
	l.items.Delete(item)
	item.node.core().parentKey = pos
	l.items.Set(listItem{pos: pos, node: item.node})

	if !l.attached() {
		return nil
	}
	l.doc.dispatch(
		[]types.Op{{Type: types.OpSetParentKey, ID: item.node.ID(), ParentKey: pos}},
		[]types.Op{{Type: types.OpSetParentKey, ID: item.node.ID(), ParentKey: prevPos}},
		[]Node{l},
	)
	return nil
}

// attachChild places a child built from a remote creation op. When the
// op's position is already occupied (a local insert minted the same
// key), one of the two children is shifted just past it; the
// authoritative position arrives later as a SetParentKey.
func (l *List) attachChild(op types.Op, child Node) ([]Node, []types.Op) {
	pos := op.ParentKey
	if resident, ok := l.items.Get(listItem{pos: pos}); ok {
		// Identity tie-break so both replicas resolve the collision the
		// same way: the larger id takes the shifted key, whichever side
		// it arrives on.
		if compareIdentity(child.ID(), resident.node.ID()) > 0 {
			next := l.posAfter(pos)
			if shifted, err := positions.Between(pos, next); err == nil {
				pos = shifted
			}
		} else {
			l.displace(pos)
		}
	}
	_ = child.core().setParentLink(l, pos)
	l.items.Set(listItem{pos: pos, node: child})
	return []Node{l}, []types.Op{{Type: types.OpDeleteCrdt, ID: child.ID()}}
}

// displace shifts the resident item at pos (if any) to a fresh key
// between pos and its successor.
func (l *List) displace(pos string) {
	resident, ok := l.items.Get(listItem{pos: pos})
	if !ok {
		return
	}
	next := l.posAfter(pos)
	shifted, err := positions.Between(pos, next)
	if err != nil {
		// Corrupt ordering; keep the resident where it is rather than
		// lose it.
		if l.doc != nil {
			l.doc.logger.Warn("cannot shift conflicting list item",
				"list", l.id, "position", pos, "error", err)
		}
		return
	}
	if l.doc != nil {
		l.doc.logger.Debug("list position conflict, shifting resident item",
			"list", l.id, "position", pos, "shifted", shifted)
	}
	l.items.Delete(resident)
	resident.node.core().parentKey = shifted
	l.items.Set(listItem{pos: shifted, node: resident.node})
}

// posAfter returns the position of the item immediately after pos, or
// "" when pos is last.
func (l *List) posAfter(pos string) string {
	next := ""
	seen := 0
	l.items.Ascend(listItem{pos: pos}, func(item listItem) bool {
		if seen == 0 && item.pos == pos {
			seen++
			return true
		}
		next = item.pos
		return false
	})
	return next
}

// applySetParentKey handles a remote position rewrite for child, which
// must be one of this list's items.
func (l *List) applySetParentKey(child Node, pos string) ([]Node, []types.Op) {
	prev := child.ParentKey()
	if prev == pos {
		return nil, nil
	}
	current, ok := l.items.Get(listItem{pos: prev})
	if !ok || current.node != child {
		return nil, nil
	}
	l.items.Delete(current)
	l.displace(pos)
	child.core().parentKey = pos
	l.items.Set(listItem{pos: pos, node: child})
	return []Node{l}, []types.Op{{Type: types.OpSetParentKey, ID: child.ID(), ParentKey: prev}}
}

func (l *List) detachChild(child Node) {
	item, ok := l.items.Get(listItem{pos: child.ParentKey()})
	if ok && item.node == child {
		l.items.Delete(item)
	}
	child.core().clearParentLink()
}
