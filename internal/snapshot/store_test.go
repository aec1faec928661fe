package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "groups.json"))

	_, err := store.Load()
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "groups.json"))

	snap := Snapshot{
		"1001": {Title: "Gophers", Username: "gophers"},
		"1002": {Title: "Announcements", Username: ""},
	}

	if err := store.Save(snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(loaded))
	}

	if loaded["1001"].Title != "Gophers" || loaded["1001"].Username != "gophers" {
		t.Errorf("Unexpected record for 1001: %+v", loaded["1001"])
	}

	if loaded["1002"].Title != "Announcements" {
		t.Errorf("Unexpected record for 1002: %+v", loaded["1002"])
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "groups.json"))

	if err := store.Save(Snapshot{"1": {Title: "Old"}}); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := store.Save(Snapshot{"2": {Title: "New"}}); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, ok := loaded["1"]; ok {
		t.Error("Expected old record to be gone after overwrite")
	}
	if loaded["2"].Title != "New" {
		t.Errorf("Expected new record, got %+v", loaded)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "groups.json"))

	if err := store.Save(Snapshot{"1": {Title: "A"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("Temp file left behind: %s", entry.Name())
		}
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store := NewStore(path)
	if _, err := store.Load(); err == nil {
		t.Error("Expected error for corrupt snapshot file, got nil")
	}
}
