package types

// Value is a scalar leaf in the collaborative tree: any JSON-serializable
// value that is not itself a tree node (string, bool, float64, nil, or
// plain []any / map[string]any compositions thereof). Values are stored
// and transmitted opaquely; beyond checking on the way in that they are
// JSON-serializable, the engine never inspects their structure.
type Value = any

// OpType is the tag of the operation wire format. The set is closed.
// JSON decoding accepts any tag string; a document drops ops whose tag
// is not in the set.
type OpType string

const (
	// OpCreateObject creates an Object node. Data carries the scalar
	// entries; node-valued entries arrive as separate creation ops
	// addressed at the new object's id.
	OpCreateObject OpType = "CreateObject"

	// OpCreateMap creates an empty Map node under parentId/parentKey.
	OpCreateMap OpType = "CreateMap"

	// OpCreateList creates an empty List node under parentId/parentKey.
	OpCreateList OpType = "CreateList"

	// OpCreateRegister creates a Register wrapping the scalar in Data.
	OpCreateRegister OpType = "CreateRegister"

	// OpUpdateObject sets one or more scalar entries on an Object.
	// OpID, when present, supports the acknowledgement discipline for
	// optimistic local updates.
	OpUpdateObject OpType = "UpdateObject"

	// OpDeleteObjectKey removes a single entry from an Object.
	OpDeleteObjectKey OpType = "DeleteObjectKey"

	// OpDeleteCrdt detaches the addressed node and its subtree.
	OpDeleteCrdt OpType = "DeleteCrdt"

	// OpSetParentKey moves the addressed node to a new key under its
	// parent. Only meaningful for List children (position rewrites).
	OpSetParentKey OpType = "SetParentKey"
)

// Op is a single operation record, the unit of the replication stream.
// It is a tagged union: which fields are meaningful depends on Type.
//
//	CreateObject    id, parentId?, parentKey?, data (map key→scalar)
//	CreateMap       id, parentId, parentKey
//	CreateList      id, parentId, parentKey
//	CreateRegister  id, parentId, parentKey, data (scalar)
//	UpdateObject    id, data (map key→scalar), opId?
//	DeleteObjectKey id, key
//	DeleteCrdt      id
//	SetParentKey    id, parentKey
//
// Data is typed any because it is a map for object ops and a bare scalar
// for CreateRegister; DataMap performs the map assertion.
type Op struct {
	Type      OpType `json:"type"`
	ID        string `json:"id"`
	ParentID  string `json:"parentId,omitempty"`
	ParentKey string `json:"parentKey,omitempty"`
	Key       string `json:"key,omitempty"`
	Data      any    `json:"data,omitempty"`
	OpID      string `json:"opId,omitempty"`
}

// DataMap returns Data as a key→scalar map. It returns nil when Data is
// absent or not a map (e.g. on a CreateRegister op).
func (o Op) DataMap() map[string]Value {
	switch d := o.Data.(type) {
	case map[string]Value:
		return d
	default:
		return nil
	}
}

// IsCreate reports whether the op is one of the four creation ops, which
// route to the parent node rather than the addressed node.
func (o Op) IsCreate() bool {
	switch o.Type {
	case OpCreateObject, OpCreateMap, OpCreateList, OpCreateRegister:
		return true
	}
	return false
}
