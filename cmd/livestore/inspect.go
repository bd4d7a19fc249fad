package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/livestore/formats"
	"github.com/arthur-debert/livestore/livestore"
	"github.com/arthur-debert/livestore/livestore/stores"
	"github.com/arthur-debert/livestore/search"
)

var (
	inspectFormat string
	inspectPath   string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <snapshot>",
	Short: "Print the document tree stored in a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := stores.New(args[0])
		snap, err := store.Read()
		if err != nil {
			return err
		}
		doc, err := livestore.Load(snap.Records, snap.Actor, nil)
		if err != nil {
			return err
		}

		if inspectPath != "" {
			value, err := search.ByPath(doc, inspectPath)
			if err != nil {
				return err
			}
			if node, ok := value.(livestore.Node); ok {
				value = renderNode(node)
			}
			data, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}

		switch inspectFormat {
		case "json", "yaml":
			out := map[string]any{
				"uuid":       snap.UUID,
				"version":    snap.Version,
				"updated_at": snap.UpdatedAt,
				"nodes":      doc.NodeCount(),
				"tree":       renderNode(doc.Root()),
			}
			var data []byte
			var err error
			if inspectFormat == "yaml" {
				data, err = yaml.Marshal(out)
			} else {
				data, err = json.MarshalIndent(out, "", "  ")
			}
			if err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}
			cmd.Println(string(data))
			return nil
		default:
			format, err := formats.ByName(inspectFormat)
			if err != nil {
				return fmt.Errorf("%w (want json, yaml, markdown, or text)", err)
			}
			cmd.Print(format.Render(doc))
			return nil
		}
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "json", "output format: json, yaml, markdown, or text")
	inspectCmd.Flags().StringVarP(&inspectPath, "path", "p", "", "print only the value at a dotted path (e.g. profile.name, tags[0])")
}

// renderNode flattens a node into plain Go data.
func renderNode(node livestore.Node) any {
	switch n := node.(type) {
	case *livestore.Object:
		return n.ToObject()
	case *livestore.Map:
		return n.ToMap()
	case *livestore.List:
		return n.ToArray()
	case *livestore.Register:
		return n.Value()
	}
	return nil
}
