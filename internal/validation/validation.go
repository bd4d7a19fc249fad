// Package validation checks the values handed to the engine's mutators.
// Leaves of the collaborative tree are opaque to the engine but must be
// JSON-serializable, since every value travels through the op stream and
// the snapshot format.
package validation

import (
	"fmt"
	"reflect"
)

// Scalar verifies that v can live as a leaf value: nil, booleans,
// strings, numbers, and []any / map[string]any compositions thereof.
// Anything carrying behavior or machine state (funcs, channels,
// pointers, arbitrary structs) is rejected before it can poison the op
// stream.
func Scalar(v any) error {
	return scalarAt(v, "value")
}

func scalarAt(v any, path string) error {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil
	case []any:
		for i, item := range val {
			if err := scalarAt(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for key, item := range val {
			if err := scalarAt(item, fmt.Sprintf("%s[%q]", path, key)); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%s: %s is not a JSON-serializable scalar", path, reflect.TypeOf(v))
}
