// Package storage provides the durable stores backing the registry,
// pattern library, component library, and knowledge graph: a checksummed
// JSON document store with atomic replace semantics, per-target install
// locks, and SQLite-backed catalog stores under storage/sqlite.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"lukechampine.com/blake3"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
)

// envelopeVersion is bumped when the on-disk envelope layout changes.
const envelopeVersion = 1

// envelope is the on-disk format of a document store snapshot. The
// checksum covers the raw payload bytes, so a crash mid-write or a
// truncated file is detected on load rather than silently accepted.
type envelope struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"` // blake3 over payload
	SavedAt  time.Time       `json:"saved_at"`
	Payload  json.RawMessage `json:"payload"`
}

// snapshot is an immutable committed view of the store. Readers bind to
// the last committed snapshot; a write in flight never disturbs them.
type snapshot struct {
	docs map[string]json.RawMessage
}

// DocStore is a durable keyed document store. Writes are serialized by a
// cooperative single-writer lock and committed with atomic replace
// semantics: write to a temporary file, fsync, rename. The prior snapshot
// is rotated to a .bak file, which serves as the last known-good recovery
// point after corruption.
type DocStore struct {
	path string

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]
}

// OpenDocStore opens (or creates) the store at path and loads the
// committed snapshot. A checksum or parse failure returns a corrupt-state
// error; callers recover via RecoverFromBackup or by rebuilding from a
// source re-scan.
func OpenDocStore(path string) (*DocStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	s := &DocStore{path: path}
	if err := s.load(path); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DocStore) load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.snap.Store(&snapshot{docs: map[string]json.RawMessage{}})
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading store file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return atlaserrors.Wrap(
			fmt.Errorf("%w: %v", atlaserrors.ErrCorruptState, err),
			"storage", "load", fmt.Sprintf("parsing %s", path))
	}
	if env.Version != envelopeVersion {
		return atlaserrors.Newf(atlaserrors.ClassCorruptState, "storage", "load",
			"unsupported store version %d in %s", env.Version, path)
	}

	sum := blake3.Sum256(env.Payload)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return atlaserrors.Wrap(atlaserrors.ErrChecksumMismatch,
			"storage", "load", fmt.Sprintf("store %s", path))
	}

	var docs map[string]json.RawMessage
	if err := json.Unmarshal(env.Payload, &docs); err != nil {
		return atlaserrors.Wrap(
			fmt.Errorf("%w: %v", atlaserrors.ErrCorruptState, err),
			"storage", "load", "decoding payload")
	}
	if docs == nil {
		docs = map[string]json.RawMessage{}
	}

	s.snap.Store(&snapshot{docs: docs})
	return nil
}

// Get returns the raw document for id from the last committed snapshot.
func (s *DocStore) Get(id string) (json.RawMessage, bool) {
	doc, ok := s.snap.Load().docs[id]
	return doc, ok
}

// GetInto unmarshals the document for id into dest.
func (s *DocStore) GetInto(id string, dest interface{}) (bool, error) {
	doc, ok := s.Get(id)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(doc, dest); err != nil {
		return true, fmt.Errorf("decoding document %s: %w", id, err)
	}
	return true, nil
}

// Keys returns all document ids in sorted order.
func (s *DocStore) Keys() []string {
	docs := s.snap.Load().docs
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of documents in the committed snapshot.
func (s *DocStore) Len() int {
	return len(s.snap.Load().docs)
}

// Put marshals doc under id and commits a new snapshot.
func (s *DocStore) Put(id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneLocked()
	next.docs[id] = data
	return s.commitLocked(next, true)
}

// PutAll commits several documents in one atomic snapshot replace.
func (s *DocStore) PutAll(docs map[string]interface{}) error {
	encoded := make(map[string]json.RawMessage, len(docs))
	for id, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding document %s: %w", id, err)
		}
		encoded[id] = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneLocked()
	for id, data := range encoded {
		next.docs[id] = data
	}
	return s.commitLocked(next, true)
}

func (s *DocStore) cloneLocked() *snapshot {
	cur := s.snap.Load().docs
	docs := make(map[string]json.RawMessage, len(cur)+1)
	for k, v := range cur {
		docs[k] = v
	}
	return &snapshot{docs: docs}
}

// commitLocked writes the snapshot with atomic replace semantics and
// publishes it for readers. When rotate is set the current committed file
// is copied to .bak first; recovery commits skip rotation so a corrupt
// primary never displaces the known-good backup. Caller must hold s.mu.
func (s *DocStore) commitLocked(next *snapshot, rotate bool) error {
	payload, err := json.Marshal(next.docs)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	sum := blake3.Sum256(payload)
	env := envelope{
		Version:  envelopeVersion,
		Checksum: hex.EncodeToString(sum[:]),
		SavedAt:  time.Now().UTC(),
		Payload:  payload,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	// Rotate the committed file to .bak before replacing it. The backup is
	// the recovery point when a later load reports corruption.
	if _, err := os.Stat(s.path); rotate && err == nil {
		if err := copyFile(s.path, s.path+".bak"); err != nil {
			return fmt.Errorf("rotating backup: %w", err)
		}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("committing store file: %w", err)
	}

	s.snap.Store(next)
	return nil
}

// RecoverFromBackup restores the store from the last known-good .bak file
// after a corrupt load. It returns the number of documents recovered.
func RecoverFromBackup(path string) (*DocStore, int, error) {
	bak := path + ".bak"
	if _, err := os.Stat(bak); err != nil {
		return nil, 0, atlaserrors.Newf(atlaserrors.ClassCorruptState,
			"storage", "RecoverFromBackup", "no backup available at %s", bak)
	}

	s := &DocStore{path: path}
	if err := s.load(bak); err != nil {
		return nil, 0, fmt.Errorf("backup is also corrupt: %w", err)
	}

	// Re-commit the backup contents to the primary path without rotating,
	// so the corrupt primary is replaced rather than copied over the backup.
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snap.Load()
	if err := s.commitLocked(cur, false); err != nil {
		return nil, 0, fmt.Errorf("restoring from backup: %w", err)
	}
	return s, len(cur.docs), nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
