package formats

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/livestore/livestore"
)

// PlainText renders the tree as indented key: value lines.
var PlainText = &DocumentFormat{
	Name:      "text",
	Extension: ".txt",
	Render: func(doc *livestore.Document) string {
		var b strings.Builder
		renderTextNode(&b, doc.Root(), 0)
		return b.String()
	},
}

func renderTextNode(b *strings.Builder, node livestore.Node, depth int) {
	indent := strings.Repeat("    ", depth)
	writeEntry := func(label string, v any) {
		if child, ok := v.(livestore.Node); ok {
			fmt.Fprintf(b, "%s%s:\n", indent, label)
			renderTextNode(b, child, depth+1)
			return
		}
		fmt.Fprintf(b, "%s%s: %s\n", indent, label, renderValue(v))
	}

	switch n := node.(type) {
	case *livestore.Object:
		for _, key := range n.Keys() {
			writeEntry(key, n.Get(key))
		}
	case *livestore.Map:
		for _, key := range n.Keys() {
			writeEntry(key, n.Get(key))
		}
	case *livestore.List:
		n.ForEach(func(i int, v any) bool {
			writeEntry(fmt.Sprintf("[%d]", i), v)
			return true
		})
	case *livestore.Register:
		fmt.Fprintf(b, "%s%s\n", indent, renderValue(n.Value()))
	}
}
