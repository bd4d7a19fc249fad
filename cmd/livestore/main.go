// The livestore CLI inspects and replays document snapshots, and runs a
// small websocket relay for wiring replicas together.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
