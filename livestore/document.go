package livestore

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/arthur-debert/livestore/types"
)

// BroadcastFunc receives each committed outbound op list. The transport
// behind it is the host's business; the engine only guarantees that ops
// from one mutator call (or one batch) arrive in a single invocation.
type BroadcastFunc func(ops []types.Op)

// maxHistoryDepth caps the undo stack; the oldest entry is evicted when
// a new commit would exceed it.
const maxHistoryDepth = 50

// Document is one replica of the shared tree. It owns every node (the
// id→node index), mints node and op identities, keeps the undo/redo
// stacks and the batch buffer, and fans committed changes out to the
// broadcast callback and subscribers.
//
// A Document is single-owner: all methods must be called from one
// goroutine. The broadcast callback and subscribers run synchronously
// inside the mutating call.
type Document struct {
	sessionID uuid.UUID
	actor     int
	clock     int
	opClock   int

	nodes map[string]Node
	root  Node

	undoStack [][]types.Op
	redoStack [][]types.Op
	batch     *batchBuffer

	subscribers []subscriber
	nextSubID   int

	broadcast BroadcastFunc
	logger    *slog.Logger
}

type batchBuffer struct {
	ops      []types.Op
	reverse  []types.Op
	modified []Node
}

// New builds a document around a freshly constructed root node, attaches
// the root (recursively minting ids), and dispatches the root's
// serialization as the initial op stream so late-joining peers can
// reconstruct it.
func New(root Node, actor int, broadcast BroadcastFunc) (*Document, error) {
	if root == nil {
		return nil, fmt.Errorf("new document: root must not be nil")
	}
	if root.core().attached() {
		return nil, fmt.Errorf("new document: %w", ErrAlreadyAttached)
	}
	d := newDocument(actor, broadcast)
	if err := attachNode(root, d.mintID(), d); err != nil {
		return nil, fmt.Errorf("attaching root: %w", err)
	}
	d.root = root
	d.dispatch(serializeNode(root, "", ""), nil, nil)
	return d, nil
}

func newDocument(actor int, broadcast BroadcastFunc) *Document {
	return &Document{
		sessionID: uuid.New(),
		actor:     actor,
		nodes:     map[string]Node{},
		broadcast: broadcast,
		logger:    slog.Default(),
	}
}

// SetLogger replaces the document's logger (default slog.Default()).
func (d *Document) SetLogger(logger *slog.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Root returns the document's root node.
func (d *Document) Root() Node { return d.root }

// Actor returns the replica's actor number.
func (d *Document) Actor() int { return d.actor }

// SessionID identifies this replica instance (not part of the CRDT
// state; used for logging, not written to snapshots).
func (d *Document) SessionID() uuid.UUID { return d.sessionID }

// Node returns the attached node with the given id, or nil.
func (d *Document) Node(id string) Node { return d.nodes[id] }

// NodeCount returns the number of attached nodes.
func (d *Document) NodeCount() int { return len(d.nodes) }

// CanUndo reports whether the undo stack is non-empty.
func (d *Document) CanUndo() bool { return len(d.undoStack) > 0 }

// CanRedo reports whether the redo stack is non-empty.
func (d *Document) CanRedo() bool { return len(d.redoStack) > 0 }

// mintID returns a fresh node identity "<actor>:<clock>".
func (d *Document) mintID() string {
	id := strconv.Itoa(d.actor) + ":" + strconv.Itoa(d.clock)
	d.clock++
	return id
}

// mintOpID returns a fresh operation identity from the separate opClock.
func (d *Document) mintOpID() string {
	id := strconv.Itoa(d.actor) + ":" + strconv.Itoa(d.opClock)
	d.opClock++
	return id
}

// dispatch is the single funnel for locally produced changes: inside a
// batch it accumulates; otherwise it commits immediately.
func (d *Document) dispatch(ops, reverse []types.Op, modified []Node) {
	if d.batch != nil {
		d.batch.ops = append(d.batch.ops, ops...)
		d.batch.reverse = append(d.batch.reverse, reverse...)
		d.batch.modified = append(d.batch.modified, modified...)
		return
	}
	d.commit(ops, reverse, modified)
}

// commit pushes the reverse list onto the undo stack (evicting the
// oldest entry over the cap), clears the redo stack, broadcasts the
// forward ops, and notifies subscribers.
func (d *Document) commit(ops, reverse []types.Op, modified []Node) {
	if len(reverse) > 0 {
		d.pushUndo(reverse)
		d.redoStack = nil
	}
	if len(ops) > 0 && d.broadcast != nil {
		d.broadcast(ops)
	}
	d.notify(dedupNodes(modified))
}

func (d *Document) pushUndo(reverse []types.Op) {
	d.undoStack = append(d.undoStack, reverse)
	if len(d.undoStack) > maxHistoryDepth {
		d.undoStack = d.undoStack[1:]
	}
}

// Batch runs fn accumulating every dispatch it causes, then commits the
// lot as one unit: one undo entry, one broadcast, one subscriber
// notification. Nested batches are an error. The accumulated ops are
// committed even when fn returns an error or panics; the batch state is
// always reset, so later mutations never piggyback on an aborted batch.
func (d *Document) Batch(fn func() error) error {
	if d.batch != nil {
		return ErrNestedBatch
	}
	d.batch = &batchBuffer{}
	defer func() {
		b := d.batch
		d.batch = nil
		d.commit(b.ops, b.reverse, b.modified)
	}()
	return fn()
}

// Undo pops the newest reverse list, applies it locally, pushes the
// resulting inverse onto the redo stack, broadcasts the applied ops, and
// notifies subscribers. Undoing with an empty stack is a no-op.
func (d *Document) Undo() error {
	if d.batch != nil {
		return ErrUndoDuringBatch
	}
	if len(d.undoStack) == 0 {
		return nil
	}
	ops := d.stampOpIDs(d.undoStack[len(d.undoStack)-1])
	d.undoStack = d.undoStack[:len(d.undoStack)-1]

	modified, reverse := d.applyOps(ops, true)
	d.redoStack = append(d.redoStack, reverse)
	if len(ops) > 0 && d.broadcast != nil {
		d.broadcast(ops)
	}
	d.notify(dedupNodes(modified))
	return nil
}

// Redo is the mirror of Undo. It does not clear the redo stack it pops
// from, and its resulting inverse goes back onto the undo stack.
func (d *Document) Redo() error {
	if d.batch != nil {
		return ErrUndoDuringBatch
	}
	if len(d.redoStack) == 0 {
		return nil
	}
	ops := d.stampOpIDs(d.redoStack[len(d.redoStack)-1])
	d.redoStack = d.redoStack[:len(d.redoStack)-1]

	modified, reverse := d.applyOps(ops, true)
	d.pushUndo(reverse)
	if len(ops) > 0 && d.broadcast != nil {
		d.broadcast(ops)
	}
	d.notify(dedupNodes(modified))
	return nil
}

// ApplyRemoteOperations applies an incoming op list in order, then
// notifies subscribers once with the union of modified nodes. Ops
// addressed at unknown ids (the target was concurrently deleted) and
// creations whose id already exists are ignored. The undo stack is not
// touched: remote changes are not undoable locally.
func (d *Document) ApplyRemoteOperations(ops []types.Op) {
	var modified []Node
	for _, op := range ops {
		mods, _ := d.applyOp(op, false)
		modified = append(modified, mods...)
	}
	d.notify(dedupNodes(modified))
}

// stampOpIDs fills missing opIds on UpdateObject ops before a local
// replay (undo/redo). The acknowledgement table is written for every
// local update, so the broadcast op must carry the opId or the echo
// would never clear the entry.
func (d *Document) stampOpIDs(ops []types.Op) []types.Op {
	out := slices.Clone(ops)
	for i := range out {
		if out[i].Type == types.OpUpdateObject && out[i].OpID == "" {
			out[i].OpID = d.mintOpID()
		}
	}
	return out
}

// applyOps applies a local op list (undo/redo), concatenating each op's
// reverse in the same forward order.
func (d *Document) applyOps(ops []types.Op, local bool) ([]Node, []types.Op) {
	var modified []Node
	var reverse []types.Op
	for _, op := range ops {
		mods, rev := d.applyOp(op, local)
		modified = append(modified, mods...)
		reverse = append(reverse, rev...)
	}
	return modified, reverse
}

// applyOp routes one op: creations to the parent node, everything else
// to the addressed node.
func (d *Document) applyOp(op types.Op, local bool) ([]Node, []types.Op) {
	if op.IsCreate() {
		parent, ok := d.nodes[op.ParentID]
		if !ok {
			d.logger.Debug("dropping creation for unknown parent",
				"op", op.Type, "id", op.ID, "parent", op.ParentID)
			return nil, nil
		}
		if _, exists := d.nodes[op.ID]; exists {
			d.logger.Debug("dropping creation for existing id", "id", op.ID)
			return nil, nil
		}
		child := nodeFromOp(op)
		if child == nil {
			d.logger.Warn("dropping creation with unknown tag", "op", op.Type)
			return nil, nil
		}
		adoptNode(child, op.ID, d)
		return parent.attachChild(op, child)
	}

	node, ok := d.nodes[op.ID]
	if !ok {
		d.logger.Debug("dropping op for unknown node", "op", op.Type, "id", op.ID)
		return nil, nil
	}
	switch op.Type {
	case types.OpUpdateObject:
		obj, ok := node.(*Object)
		if !ok {
			return nil, nil
		}
		return obj.applyUpdate(op, local)
	case types.OpDeleteObjectKey:
		obj, ok := node.(*Object)
		if !ok {
			return nil, nil
		}
		return obj.applyDeleteKey(op)
	case types.OpDeleteCrdt:
		return d.applyDeleteCrdt(node)
	case types.OpSetParentKey:
		list, ok := node.Parent().(*List)
		if !ok {
			d.logger.Debug("dropping SetParentKey for non-list parent", "id", op.ID)
			return nil, nil
		}
		return list.applySetParentKey(node, op.ParentKey)
	}
	d.logger.Warn("dropping op with unknown tag", "op", op.Type)
	return nil, nil
}

// applyDeleteCrdt detaches the node's subtree. The reverse is the full
// serialization under its current parent coordinates, so undo restores
// the whole subtree in one unit. Deleting the root is ignored.
func (d *Document) applyDeleteCrdt(node Node) ([]Node, []types.Op) {
	parent := node.Parent()
	if parent == nil {
		return nil, nil
	}
	reverse := serializeNode(node, parent.ID(), node.ParentKey())
	detachNode(node)
	parent.detachChild(node)
	return []Node{parent}, reverse
}

// parseIdentity splits "<actor>:<clock>"; ok is false for anything else.
func parseIdentity(id string) (actor, clock int, ok bool) {
	a, c, found := strings.Cut(id, ":")
	if !found {
		return 0, 0, false
	}
	actor, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, false
	}
	clock, err = strconv.Atoi(c)
	if err != nil {
		return 0, 0, false
	}
	return actor, clock, true
}

// compareIdentity orders identities by actor then clock, falling back
// to string order for ids that don't parse.
func compareIdentity(a, b string) int {
	aa, ac, aok := parseIdentity(a)
	ba, bc, bok := parseIdentity(b)
	if aok && bok {
		if aa != ba {
			return aa - ba
		}
		return ac - bc
	}
	return strings.Compare(a, b)
}

func dedupNodes(nodes []Node) []Node {
	if len(nodes) < 2 {
		return nodes
	}
	seen := make(map[Node]struct{}, len(nodes))
	out := nodes[:0]
	for _, n := range nodes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
