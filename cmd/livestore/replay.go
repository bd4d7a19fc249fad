package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/livestore/livestore/stores"
)

var replayTruncate bool

var replayCmd = &cobra.Command{
	Use:   "replay <snapshot>",
	Short: "Apply a snapshot's op log and save the result",
	Long: "Replay loads the snapshot, applies every batch from the sidecar op\n" +
		"log in append order, and writes the updated snapshot back.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := stores.New(args[0])
		snap, err := store.Read()
		if err != nil {
			return err
		}
		doc, err := store.LoadDocument(snap.Actor, nil)
		if err != nil {
			return err
		}
		batches, err := store.ReadOps()
		if err != nil {
			return err
		}

		applied := 0
		for _, batch := range batches {
			doc.ApplyRemoteOperations(batch)
			applied += len(batch)
		}
		if err := store.Save(doc); err != nil {
			return err
		}
		if replayTruncate && len(batches) > 0 {
			if err := os.Remove(store.OpLogPath()); err != nil {
				return err
			}
		}
		slog.Info("replay complete",
			"snapshot", args[0], "batches", len(batches), "ops", applied)
		cmd.Printf("applied %d ops from %d batches\n", applied, len(batches))
		return nil
	},
}

func init() {
	replayCmd.Flags().BoolVar(&replayTruncate, "truncate", false, "remove the op log after a successful replay")
}
