package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
var ErrNotFound = errors.New("snapshot file not found")

// GroupRecord holds the attributes kept for one joined group.
type GroupRecord struct {
	Title    string `json:"title"`
	Username string `json:"username"`
}

// Snapshot maps a group's id, formatted as decimal text, to its record.
// Keys are strings on both the in-memory and on-disk side so that diffing
// never compares an integer id against its stringified form.
type Snapshot map[string]GroupRecord

// Store persists the snapshot as a single flat JSON file. The whole file
// is rewritten on every save; there is no merging and no versioning.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the last saved snapshot. Returns ErrNotFound when the file
// does not exist.
func (s *Store) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot file %s: %w", s.path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file %s: %w", s.path, err)
	}

	return snap, nil
}

// Save overwrites the snapshot. The write goes to a temp file in the same
// directory followed by a rename, so a crash mid-write never leaves a
// truncated snapshot behind.
func (s *Store) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".groups-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp snapshot file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot file %s: %w", s.path, err)
	}

	return nil
}
