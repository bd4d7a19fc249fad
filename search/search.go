// Package search finds values inside a document tree: by dotted path
// for direct lookups, or by predicate for sweeps over the node graph.
package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arthur-debert/livestore/livestore"
)

// Result pairs a found node with the path that reaches it from the
// root. The root itself has path "".
type Result struct {
	Path string
	Node livestore.Node
}

// Find walks the container graph depth-first and returns every node the
// predicate accepts, in walk order. Registers are not visited: their
// scalars are part of their parent's read surface.
func Find(doc *livestore.Document, pred func(n livestore.Node) bool) []Result {
	var results []Result
	var walk func(path string, node livestore.Node)
	walk = func(path string, node livestore.Node) {
		if pred(node) {
			results = append(results, Result{Path: path, Node: node})
		}
		switch n := node.(type) {
		case *livestore.Object:
			for _, key := range n.Keys() {
				if child, ok := n.Get(key).(livestore.Node); ok {
					walk(joinPath(path, key), child)
				}
			}
		case *livestore.Map:
			for _, key := range n.Keys() {
				if child, ok := n.Get(key).(livestore.Node); ok {
					walk(joinPath(path, key), child)
				}
			}
		case *livestore.List:
			n.ForEach(func(i int, v any) bool {
				if child, ok := v.(livestore.Node); ok {
					walk(fmt.Sprintf("%s[%d]", path, i), child)
				}
				return true
			})
		}
	}
	if doc.Root() != nil {
		walk("", doc.Root())
	}
	return results
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// ByPath resolves a dotted path like "profile.name" or "tags[1]"
// against the document's read surface and returns the value there:
// a scalar for leaf entries, the node itself for containers.
func ByPath(doc *livestore.Document, path string) (any, error) {
	var current any = doc.Root()
	if strings.TrimSpace(path) == "" {
		return current, nil
	}
	for _, segment := range strings.Split(path, ".") {
		key, indices, err := parseSegment(segment)
		if err != nil {
			return nil, err
		}
		if key != "" {
			current, err = lookupKey(current, key)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		for _, idx := range indices {
			list, ok := current.(*livestore.List)
			if !ok {
				return nil, fmt.Errorf("%s: indexing into a %T", path, current)
			}
			if idx < 0 || idx >= list.Length() {
				return nil, fmt.Errorf("%s: index %d out of range", path, idx)
			}
			current = list.Get(idx)
		}
	}
	return current, nil
}

// parseSegment splits "tags[1][2]" into the key and its index chain.
func parseSegment(segment string) (string, []int, error) {
	key := segment
	var indices []int
	for {
		open := strings.IndexByte(key, '[')
		if open < 0 {
			break
		}
		rest := key[open:]
		key = key[:open]
		for rest != "" {
			if rest[0] != '[' {
				return "", nil, fmt.Errorf("malformed path segment %q", segment)
			}
			closing := strings.IndexByte(rest, ']')
			if closing < 0 {
				return "", nil, fmt.Errorf("malformed path segment %q", segment)
			}
			idx, err := strconv.Atoi(rest[1:closing])
			if err != nil {
				return "", nil, fmt.Errorf("malformed index in %q: %w", segment, err)
			}
			indices = append(indices, idx)
			rest = rest[closing+1:]
		}
	}
	return key, indices, nil
}

func lookupKey(current any, key string) (any, error) {
	switch n := current.(type) {
	case *livestore.Object:
		if !n.Has(key) {
			return nil, fmt.Errorf("key %q not found", key)
		}
		return n.Get(key), nil
	case *livestore.Map:
		if !n.Has(key) {
			return nil, fmt.Errorf("key %q not found", key)
		}
		return n.Get(key), nil
	default:
		return nil, fmt.Errorf("cannot key into %T with %q", current, key)
	}
}
