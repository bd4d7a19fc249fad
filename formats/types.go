// Package formats renders document trees as human-readable text. Each
// format is a value with a render function, so callers (the CLI, tests)
// can treat formats uniformly and look them up by name.
package formats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arthur-debert/livestore/livestore"
)

// DocumentFormat describes one output format.
type DocumentFormat struct {
	Name      string
	Extension string
	Render    func(doc *livestore.Document) string
}

// All lists the available formats.
var All = []*DocumentFormat{Markdown, PlainText}

// ByName returns the format with the given name.
func ByName(name string) (*DocumentFormat, error) {
	for _, f := range All {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("unknown format %q", name)
}

// renderValue flattens a node read-surface value for display.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, renderValue(val[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, renderValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}
