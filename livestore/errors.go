package livestore

import "errors"

// Engine errors. All are returned synchronously to the caller; a failed
// call leaves the document unchanged.
var (
	// ErrReparent is returned when a node that already has a parent is
	// given a different one. Nodes are moved by detach + reattach, never
	// by overwriting the parent link.
	ErrReparent = errors.New("node already has a different parent")

	// ErrAlreadyAttached is returned when a node that is already part of
	// a document is attached again.
	ErrAlreadyAttached = errors.New("node is already attached to a document")

	// ErrNotAttached reports that a node is not part of a document. No
	// mutator in this package returns it: mutators on a detached node
	// change it in place without dispatching ops.
	ErrNotAttached = errors.New("node is not attached to a document")

	// ErrIndexOutOfRange is returned by list operations whose index is
	// outside the valid range.
	ErrIndexOutOfRange = errors.New("list index out of range")

	// ErrNestedBatch is returned when Batch is called while another
	// batch is open on the same document.
	ErrNestedBatch = errors.New("nested batch")

	// ErrUndoDuringBatch is returned when Undo or Redo is called inside
	// a batch.
	ErrUndoDuringBatch = errors.New("undo/redo is not allowed during a batch")

	// ErrUnknownNodeType is returned when Load encounters a record with
	// an unknown node type. Remote ops with an unknown tag are logged and
	// dropped instead.
	ErrUnknownNodeType = errors.New("unknown CRDT node type")

	// ErrNoRoot is returned when a load input has no parentless record.
	ErrNoRoot = errors.New("serialized document has no root record")

	// ErrMultipleRoots is returned when a load input has more than one
	// parentless record.
	ErrMultipleRoots = errors.New("serialized document has multiple root records")

	// ErrMissingParentKey is returned when a non-root record carries a
	// parent id but no parent key.
	ErrMissingParentKey = errors.New("serialized node has a parent but no parent key")
)
