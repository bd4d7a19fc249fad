package formats

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/livestore/livestore"
)

// Markdown renders the tree as nested bullet lists, one bullet per
// entry, with container kinds called out.
var Markdown = &DocumentFormat{
	Name:      "markdown",
	Extension: ".md",
	Render: func(doc *livestore.Document) string {
		var b strings.Builder
		b.WriteString("# Document\n\n")
		renderMarkdownNode(&b, doc.Root(), 0)
		return b.String()
	},
}

func renderMarkdownNode(b *strings.Builder, node livestore.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n := node.(type) {
	case *livestore.Object:
		for _, key := range n.Keys() {
			if child, ok := n.Get(key).(livestore.Node); ok {
				fmt.Fprintf(b, "%s- **%s** (%s)\n", indent, key, child.Kind())
				renderMarkdownNode(b, child, depth+1)
			} else {
				fmt.Fprintf(b, "%s- **%s**: %s\n", indent, key, renderValue(n.Get(key)))
			}
		}
	case *livestore.Map:
		for _, key := range n.Keys() {
			if child, ok := n.Get(key).(livestore.Node); ok {
				fmt.Fprintf(b, "%s- **%s** (%s)\n", indent, key, child.Kind())
				renderMarkdownNode(b, child, depth+1)
			} else {
				fmt.Fprintf(b, "%s- **%s**: %s\n", indent, key, renderValue(n.Get(key)))
			}
		}
	case *livestore.List:
		n.ForEach(func(i int, v any) bool {
			if child, ok := v.(livestore.Node); ok {
				fmt.Fprintf(b, "%s- [%d] (%s)\n", indent, i, child.Kind())
				renderMarkdownNode(b, child, depth+1)
				return true
			}
			fmt.Fprintf(b, "%s- [%d] %s\n", indent, i, renderValue(v))
			return true
		})
	case *livestore.Register:
		fmt.Fprintf(b, "%s- %s\n", indent, renderValue(n.Value()))
	}
}
