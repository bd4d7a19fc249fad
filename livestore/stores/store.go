// Package stores persists document snapshots and op logs to disk.
//
// A snapshot is the flat serialized-node list plus metadata, written as
// one JSON file guarded by a cross-process flock. Committed op batches
// can additionally be appended to a JSONL sidecar so a document can be
// rebuilt as snapshot + replay.
package stores

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/arthur-debert/livestore/livestore"
	"github.com/arthur-debert/livestore/types"
)

// Snapshot is the on-disk document format.
type Snapshot struct {
	UUID      string                 `json:"uuid"`
	Version   string                 `json:"version"`
	Actor     int                    `json:"actor"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Records   []types.SerializedNode `json:"records"`
}

const snapshotVersion = "1.0"

// Locking parameters, shared by every store instance.
const (
	lockTimeout    = 3 * time.Second
	lockRetryDelay = 100 * time.Millisecond
)

// FileStore reads and writes one snapshot file. It is safe for use from
// multiple processes: writes take an exclusive flock on a sidecar lock
// file and land via temp-file rename.
type FileStore struct {
	path     string
	fileLock *flock.Flock
	// timeFunc is used for metadata timestamps; overridable in tests.
	timeFunc func() time.Time
}

// New creates a store for the snapshot at path. The file need not exist
// yet.
func New(path string) *FileStore {
	return &FileStore{
		path:     path,
		fileLock: flock.New(path + ".lock"),
		timeFunc: time.Now,
	}
}

// SetTimeFunc overrides the metadata clock (testing).
func (s *FileStore) SetTimeFunc(fn func() time.Time) {
	if fn != nil {
		s.timeFunc = fn
	}
}

// Path returns the snapshot path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) acquireLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquiring lock: timed out after %s", lockTimeout)
	}
	return nil
}

func (s *FileStore) releaseLock() {
	_ = s.fileLock.Unlock()
}

// Save writes the document's current serialization. An existing
// snapshot's UUID and creation time are preserved; otherwise fresh
// metadata is minted.
func (s *FileStore) Save(doc *livestore.Document) error {
	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	now := s.timeFunc()
	snap := Snapshot{
		UUID:      uuid.NewString(),
		Version:   snapshotVersion,
		Actor:     doc.Actor(),
		CreatedAt: now,
		UpdatedAt: now,
		Records:   doc.Serialize(),
	}
	if prev, err := s.read(); err == nil {
		snap.UUID = prev.UUID
		snap.CreatedAt = prev.CreatedAt
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Read returns the raw snapshot.
func (s *FileStore) Read() (*Snapshot, error) {
	if err := s.acquireLock(); err != nil {
		return nil, err
	}
	defer s.releaseLock()
	return s.read()
}

func (s *FileStore) read() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

// LoadDocument reads the snapshot and reconstructs a document for the
// given actor.
func (s *FileStore) LoadDocument(actor int, broadcast livestore.BroadcastFunc) (*livestore.Document, error) {
	snap, err := s.Read()
	if err != nil {
		return nil, err
	}
	doc, err := livestore.Load(snap.Records, actor, broadcast)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", snap.UUID, err)
	}
	return doc, nil
}

// OpLogPath returns the sidecar op log path for the snapshot.
func (s *FileStore) OpLogPath() string { return s.path + ".oplog.jsonl" }

// AppendOps appends one committed op batch as a single JSONL line.
// MustAppendOps wraps it for use as a document's broadcast callback:
//
//	doc, _ := store.LoadDocument(actor, store.MustAppendOps)
func (s *FileStore) AppendOps(ops []types.Op) error {
	if len(ops) == 0 {
		return nil
	}
	line, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encoding ops: %w", err)
	}
	f, err := os.OpenFile(s.OpLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening op log: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending ops: %w", err)
	}
	return nil
}

// MustAppendOps is AppendOps with the error dropped, matching the
// BroadcastFunc signature.
func (s *FileStore) MustAppendOps(ops []types.Op) {
	_ = s.AppendOps(ops)
}

// ReadOps returns the logged op batches in append order. A missing log
// is an empty history, not an error.
func (s *FileStore) ReadOps() ([][]types.Op, error) {
	f, err := os.Open(s.OpLogPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening op log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var batches [][]types.Op
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ops []types.Op
		if err := json.Unmarshal(line, &ops); err != nil {
			return nil, fmt.Errorf("decoding op log line %d: %w", len(batches)+1, err)
		}
		batches = append(batches, ops)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading op log: %w", err)
	}
	return batches, nil
}
