package infrastructure

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestJSONWhitelistStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "whitelist.json")
	store := NewJSONWhitelistStore(path)
	store.now = func() time.Time { return time.Date(2025, 3, 14, 20, 5, 9, 0, time.Local) }

	users, found, err := store.Load()
	if err != nil || found || users != nil {
		t.Fatalf("expected empty not-found load, got %v %v %v", users, found, err)
	}

	if err := store.Save([]string{"bob", "alice"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	users, found, err = store.Load()
	if err != nil || !found {
		t.Fatalf("expected stored whitelist, got found=%v err=%v", found, err)
	}
	if !slices.Equal(users, []string{"alice", "bob"}) {
		t.Errorf("Load() = %v", users)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	var file map[string]any
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("file is not JSON: %v", err)
	}
	if file["last_updated"] != "2025-03-14 20:05:09" {
		t.Errorf("unexpected last_updated %v", file["last_updated"])
	}
}

func TestJSONWhitelistStore_EmptyListIsFound(t *testing.T) {
	store := NewJSONWhitelistStore(filepath.Join(t.TempDir(), "whitelist.json"))
	if err := store.Save(nil); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	users, found, err := store.Load()
	if err != nil || !found || len(users) != 0 {
		t.Errorf("expected found empty whitelist, got %v %v %v", users, found, err)
	}
}

func TestJSONWhitelistStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	if _, _, err := NewJSONWhitelistStore(path).Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestJSONFuseStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "fused_keys.json")
	store := NewJSONFuseStore(path)

	used, err := store.Contains("99af197f2f")
	if err != nil || used {
		t.Fatalf("expected unused key, got %v %v", used, err)
	}

	for range 2 {
		if err := store.Add("99af197f2f"); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
	}

	// A fresh store must see the key on disk.
	reopened := NewJSONFuseStore(path)
	used, err = reopened.Contains("99af197f2f")
	if err != nil || !used {
		t.Errorf("expected persisted key, got %v %v", used, err)
	}

	raw, _ := os.ReadFile(path)
	var file fuseFile
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("file is not JSON: %v", err)
	}
	if len(file.FusedKeys) != 1 {
		t.Errorf("expected key stored once, got %v", file.FusedKeys)
	}
}
