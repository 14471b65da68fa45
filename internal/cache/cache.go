// Package cache persists task results keyed by a content fingerprint, so
// repeating an operation on identical inputs skips the remote work.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Entry is one cached result.
type Entry struct {
	VoiceID    string    `json:"voice_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	TaskID     string    `json:"task_id,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is a directory of result entries, one JSON file per fingerprint.
// Entries survive process restarts; an unreadable or corrupt entry is a
// miss, never a failure. Safe for concurrent use.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store rooted at dir. The directory is created lazily
// on the first Put.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Fingerprint hashes a capability, its canonicalized parameters, and the
// content hashes of the input files into a deterministic cache key.
// Identical inputs always produce the identical fingerprint.
func Fingerprint(capability string, params map[string]string, contentHashes []string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(capability))
	h.Write([]byte{0})

	for _, key := range keys {
		h.Write([]byte(key))
		h.Write([]byte{'='})
		h.Write([]byte(params[key]))
		h.Write([]byte{0})
	}

	for _, contentHash := range contentHashes {
		h.Write([]byte(contentHash))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// HashFile returns the hex SHA-256 of a file's full contents. Hashing the
// bytes rather than metadata keeps fingerprints stable across copies and
// renames.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}

	defer file.Close()

	h := sha256.New()

	_, err = io.Copy(h, file)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached entry for fingerprint, if a readable one exists.
// It never performs network I/O.
func (s *Store) Get(fingerprint string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.entryPath(fingerprint))
	if err != nil {
		return nil, false
	}

	var entry Entry

	err = json.Unmarshal(data, &entry)
	if err != nil {
		return nil, false
	}

	return &entry, true
}

// Put stores entry under fingerprint, replacing any previous entry. The
// write goes through a temp file and a rename so a crash cannot leave a
// corrupt entry at the canonical path.
func (s *Store) Put(fingerprint string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.MkdirAll(s.dir, dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, fingerprint+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	_, writeErr := tmp.Write(data)

	closeErr := tmp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}

	if writeErr == nil {
		writeErr = os.Chmod(tmp.Name(), filePermissions)
	}

	if writeErr != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write cache entry: %w", writeErr)
	}

	renameErr := os.Rename(tmp.Name(), s.entryPath(fingerprint))
	if renameErr != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to commit cache entry: %w", renameErr)
	}

	return nil
}

// Remove deletes the entry for fingerprint, if present.
func (s *Store) Remove(fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = os.Remove(s.entryPath(fingerprint))
}

func (s *Store) entryPath(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".json")
}
