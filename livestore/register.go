package livestore

import "github.com/arthur-debert/livestore/types"

// Register wraps a single scalar so Map and List children are uniformly
// nodes. A Register is immutable once created: replacing the value means
// replacing the Register. The Map/List read surface unwraps it, so user
// code normally never sees one.
type Register struct {
	nodeCore
	value types.Value
}

func newRegister(value types.Value) *Register {
	return &Register{value: value}
}

// Value returns the wrapped scalar.
func (r *Register) Value() types.Value { return r.value }

func (r *Register) Kind() types.NodeKind { return types.KindRegister }

func (r *Register) core() *nodeCore { return &r.nodeCore }

func (r *Register) eachChild(func(string, Node) bool) {}

func (r *Register) creationOp(parentID, parentKey string) types.Op {
	return types.Op{
		Type:      types.OpCreateRegister,
		ID:        r.id,
		ParentID:  parentID,
		ParentKey: parentKey,
		Data:      r.value,
	}
}

// attachChild is unreachable: creation ops always route to container
// parents, never to a Register.
func (r *Register) attachChild(types.Op, Node) ([]Node, []types.Op) {
	return nil, nil
}

func (r *Register) detachChild(Node) {}

func (r *Register) snapshotValue() any { return r.value }
