package livestore

import (
	"sort"

	"github.com/arthur-debert/livestore/types"
)

// Node is the contract shared by the four variants (Object, Map, List,
// Register). The exported surface is read-only identity and tree
// navigation; mutation goes through the variant's own methods so that
// every change produces its operation stream.
type Node interface {
	// ID returns the node's identity ("<actor>:<clock>"), or "" for a
	// node that has never been attached to a document. A detached node
	// keeps its last identity.
	ID() string

	// Kind returns the node's variant tag.
	Kind() types.NodeKind

	// Parent returns the parent node, or nil for the root and for nodes
	// not placed under a parent. Children of a detached or not yet
	// attached container keep their link to it.
	Parent() Node

	// ParentKey returns the key under which this node lives in its
	// parent: a string key for Object/Map parents, a position key for
	// List parents.
	ParentKey() string

	// core exposes the shared identity/parent record. Package-private:
	// the document and the variants cooperate through it.
	core() *nodeCore

	// eachChild visits the node's child nodes in deterministic order
	// (sorted keys for Object/Map, position order for List). The walk
	// stops when fn returns false.
	eachChild(fn func(key string, child Node) bool)

	// creationOp builds the op that recreates this single node under
	// the given parent coordinates. Subtree serialization is layered on
	// top by serializeNode.
	creationOp(parentID, parentKey string) types.Op

	// attachChild applies a remote creation op addressed at this node:
	// it places the already-adopted child under op.ParentKey and
	// returns the nodes it modified plus the reverse ops.
	attachChild(op types.Op, child Node) ([]Node, []types.Op)

	// detachChild removes the child's entry from this node. It does not
	// detach the child's subtree; callers do that via detachNode.
	detachChild(child Node)

	// snapshotValue returns the node's current state as plain Go data
	// (maps, slices, scalars), with Registers unwrapped.
	snapshotValue() any
}

// nodeCore is the record embedded in every variant: identity, document
// back pointer, and the parent link.
type nodeCore struct {
	id        string
	doc       *Document
	parent    Node
	parentKey string
}

func (c *nodeCore) ID() string        { return c.id }
func (c *nodeCore) Parent() Node      { return c.parent }
func (c *nodeCore) ParentKey() string { return c.parentKey }

func (c *nodeCore) attached() bool { return c.doc != nil }

// setParentLink points the node at its parent. Re-parenting to a
// different parent is an invariant violation; updating the key under the
// same parent (list moves) is fine.
func (c *nodeCore) setParentLink(parent Node, key string) error {
	if c.parent != nil && parent != nil && c.parent != parent {
		return ErrReparent
	}
	c.parent = parent
	c.parentKey = key
	return nil
}

func (c *nodeCore) clearParentLink() {
	c.parent = nil
	c.parentKey = ""
}

// attachNode registers n under the given id and recursively attaches its
// children with freshly minted ids.
func attachNode(n Node, id string, d *Document) error {
	c := n.core()
	if c.attached() {
		return ErrAlreadyAttached
	}
	c.id = id
	c.doc = d
	d.nodes[id] = n
	var err error
	n.eachChild(func(_ string, child Node) bool {
		err = attachNode(child, d.mintID(), d)
		return err == nil
	})
	return err
}

// adoptNode registers a node built from a remote creation op. Unlike
// attachNode it never recurses: remote subtrees arrive one creation op
// per node.
func adoptNode(n Node, id string, d *Document) {
	c := n.core()
	c.id = id
	c.doc = d
	d.nodes[id] = n
}

// detachNode unregisters n and its descendants from the document index.
// The subtree keeps its structure and ids so that a serialization taken
// as a reverse op remains valid.
func detachNode(n Node) {
	n.eachChild(func(_ string, child Node) bool {
		detachNode(child)
		return true
	})
	c := n.core()
	if c.doc != nil {
		delete(c.doc.nodes, c.id)
		c.doc = nil
	}
}

// serializeNode produces the creation op for n followed by the
// serialized subtree, in deterministic child order.
func serializeNode(n Node, parentID, parentKey string) []types.Op {
	ops := []types.Op{n.creationOp(parentID, parentKey)}
	n.eachChild(func(key string, child Node) bool {
		ops = append(ops, serializeNode(child, n.ID(), key)...)
		return true
	})
	return ops
}

// wrapValue turns a mutator argument into a child node: nodes pass
// through, scalars get a Register so they participate uniformly in the
// node graph.
func wrapValue(v any) Node {
	if n, ok := v.(Node); ok {
		return n
	}
	return newRegister(v)
}

// unwrapNode is the read-side inverse: Registers yield their scalar,
// container nodes are returned as-is.
func unwrapNode(n Node) any {
	if n == nil {
		return nil
	}
	if r, ok := n.(*Register); ok {
		return r.value
	}
	return n
}

// nodeFromOp constructs the (not yet adopted) node a creation op
// describes. Unknown tags return nil.
func nodeFromOp(op types.Op) Node {
	switch op.Type {
	case types.OpCreateObject:
		return NewObject(op.DataMap())
	case types.OpCreateMap:
		return NewMap(nil)
	case types.OpCreateList:
		return NewList(nil)
	case types.OpCreateRegister:
		return newRegister(op.Data)
	}
	return nil
}

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
