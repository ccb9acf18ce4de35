package cas

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotAndRestore(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	snt := t.TempDir()
	tfst := filepath.Join(snt, "text.tfst")
	tind := filepath.Join(snt, "text.tind")
	if err := os.WriteFile(tfst, []byte("0000000001\n$1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tind, []byte{0, 0, 0, 0}, 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := store.Snapshot("elag-replace", tfst, tind, filepath.Join(snt, "absent.txt"))
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Files) != 2 {
		t.Fatalf("Files = %+v, missing files should be skipped", snap.Files)
	}
	if f, ok := snap.File("text.tfst"); !ok || f.Size != 14 || f.Hash != Hash([]byte("0000000001\n$1\n")) {
		t.Errorf("File(text.tfst) = %+v, %v", f, ok)
	}

	// overwrite then restore
	if err := os.WriteFile(tfst, []byte("replaced"), 0644); err != nil {
		t.Fatal(err)
	}
	restored, err := store.Restore(snap.ID, snt)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(restored) != 2 {
		t.Errorf("restored %v", restored)
	}
	data, err := os.ReadFile(tfst)
	if err != nil || string(data) != "0000000001\n$1\n" {
		t.Errorf("restored content = %q, %v", data, err)
	}
}

func TestSnapshotErrors(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Snapshot("empty", filepath.Join(t.TempDir(), "none")); err == nil {
		t.Error("expected error when no file exists")
	}
	for _, id := range []string{"", "../x", "unknown"} {
		if _, err := store.LoadSnapshot(id); !errors.Is(err, ErrSnapshotNotFound) {
			t.Errorf("LoadSnapshot(%q) error = %v", id, err)
		}
	}
	if _, err := store.Restore("unknown", t.TempDir()); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Restore() error = %v", err)
	}
}

func TestSnapshotsOrdered(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(t.TempDir(), "text.tfst")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	origNow, origID := now, newSnapID
	defer func() { now, newSnapID = origNow, origID }()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	steps := []struct {
		id     string
		offset time.Duration
	}{{"b", 2 * time.Second}, {"a", time.Second}, {"c", 3 * time.Second}}
	for _, s := range steps {
		s := s
		now = func() time.Time { return base.Add(s.offset) }
		newSnapID = func() string { return s.id }
		if _, err := store.Snapshot(s.id, file); err != nil {
			t.Fatal(err)
		}
	}

	snaps, err := store.Snapshots()
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	var ids []string
	for _, s := range snaps {
		ids = append(ids, s.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("order = %v, want [a b c]", ids)
	}
}
