package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/livestore/livestore/stores"
	"github.com/arthur-debert/livestore/types"
)

var (
	syncAddr  string
	syncURL   string
	syncActor int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Relay ops between live replicas over websockets",
}

var syncServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a relay that forwards each op batch to every other peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		relay := newRelay()
		http.HandleFunc("/sync", relay.handle)
		slog.Info("relay listening", "addr", syncAddr)
		return http.ListenAndServe(syncAddr, nil)
	},
}

var syncConnectCmd = &cobra.Command{
	Use:   "connect <snapshot>",
	Short: "Attach a snapshot-backed replica to a relay",
	Long: "Connect loads the snapshot as a live replica, sends its local\n" +
		"commits to the relay, applies incoming batches, and saves the\n" +
		"snapshot on shutdown. The sidecar op log is not read.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnect(args[0])
	},
}

func init() {
	syncServeCmd.Flags().StringVar(&syncAddr, "addr", ":7313", "relay listen address")
	syncConnectCmd.Flags().StringVar(&syncURL, "url", "ws://localhost:7313/sync", "relay websocket URL")
	syncConnectCmd.Flags().IntVar(&syncActor, "actor", 1, "actor number for this replica")
	syncCmd.AddCommand(syncServeCmd)
	syncCmd.AddCommand(syncConnectCmd)
}

// relay fans every received message out to all other connections. It
// never inspects the payload: ordering and conflict handling are the
// engine's job.
type relay struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[*websocket.Conn]struct{}
}

func newRelay() *relay {
	return &relay{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: map[*websocket.Conn]struct{}{},
	}
}

func (r *relay) handle(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		slog.Warn("upgrade failed", "error", err)
		return
	}
	r.mu.Lock()
	r.peers[conn] = struct{}{}
	r.mu.Unlock()
	slog.Info("peer connected", "remote", conn.RemoteAddr())

	defer func() {
		r.mu.Lock()
		delete(r.peers, conn)
		r.mu.Unlock()
		_ = conn.Close()
		slog.Info("peer disconnected", "remote", conn.RemoteAddr())
	}()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		r.mu.Lock()
		for peer := range r.peers {
			if peer == conn {
				continue
			}
			if err := peer.WriteMessage(msgType, payload); err != nil {
				slog.Warn("forward failed", "remote", peer.RemoteAddr(), "error", err)
			}
		}
		r.mu.Unlock()
	}
}

func runConnect(snapshotPath string) error {
	store := stores.New(snapshotPath)

	conn, _, err := websocket.DefaultDialer.Dial(syncURL, nil)
	if err != nil {
		return fmt.Errorf("dialing relay: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// gorilla allows at most one concurrent writer per connection; the
	// mutex serializes the broadcast callback's writes.
	var writeMu sync.Mutex
	broadcast := func(ops []types.Op) {
		payload, err := json.Marshal(ops)
		if err != nil {
			slog.Error("encoding outbound ops", "error", err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Error("sending ops", "error", err)
		}
	}

	doc, err := store.LoadDocument(syncActor, broadcast)
	if err != nil {
		return err
	}
	slog.Info("replica online", "snapshot", snapshotPath, "actor", syncActor, "session", doc.SessionID())

	incoming := make(chan []types.Op)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var ops []types.Op
			if err := json.Unmarshal(payload, &ops); err != nil {
				slog.Warn("dropping malformed batch", "error", err)
				continue
			}
			incoming <- ops
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case ops := <-incoming:
			// The document is single-owner; every mutation happens on
			// this goroutine.
			doc.ApplyRemoteOperations(ops)
		case err := <-readErr:
			slog.Info("relay connection closed", "error", err)
			return store.Save(doc)
		case <-interrupt:
			slog.Info("shutting down")
			return store.Save(doc)
		}
	}
}
