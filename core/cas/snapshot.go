package cas

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/tfstbench/internal/fileutil"
)

const snapshotTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Injectable functions for testing.
var (
	now       = time.Now
	newSnapID = uuid.NewString
)

// ErrSnapshotNotFound is returned when no manifest exists for an id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotFile is one file captured by a snapshot.
type SnapshotFile struct {
	Name string `json:"name"`
	Hash string `json:"blake3"`
	Size int64  `json:"size"`
}

// Snapshot is a manifest of files captured together.
type Snapshot struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	CreatedAt string         `json:"created_at"`
	Files     []SnapshotFile `json:"files"`
}

// File returns the entry for a base name.
func (s *Snapshot) File(name string) (SnapshotFile, bool) {
	for _, f := range s.Files {
		if f.Name == name {
			return f, true
		}
	}
	return SnapshotFile{}, false
}

// Snapshot stores the given files and writes a manifest. Missing files are
// skipped; at least one file must exist.
func (s *Store) Snapshot(label string, paths ...string) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        newSnapID(),
		Label:     label,
		CreatedAt: now().UTC().Format(snapshotTimeFormat),
	}
	for _, p := range paths {
		hash, size, err := s.StoreFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		snap.Files = append(snap.Files, SnapshotFile{Name: filepath.Base(p), Hash: hash, Size: size})
	}
	if len(snap.Files) == 0 {
		return nil, fmt.Errorf("snapshot %q: none of the files exist", label)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := fileutil.WriteAtomic(s.manifestPath(snap.ID), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	return snap, nil
}

// LoadSnapshot reads the manifest of a snapshot.
func (s *Store) LoadSnapshot(id string) (*Snapshot, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrSnapshotNotFound, id)
	}
	data, err := os.ReadFile(s.manifestPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// Snapshots lists all manifests, oldest first.
func (s *Store) Snapshots() ([]*Snapshot, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "snapshots"))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	var out []*Snapshot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		snap, err := s.LoadSnapshot(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Restore writes the files of a snapshot into dir and returns their paths.
func (s *Store) Restore(id, dir string) ([]string, error) {
	snap, err := s.LoadSnapshot(id)
	if err != nil {
		return nil, err
	}
	restored := make([]string, 0, len(snap.Files))
	for _, f := range snap.Files {
		data, err := s.Retrieve(f.Hash)
		if err != nil {
			return restored, fmt.Errorf("restoring %s: %w", f.Name, err)
		}
		dst := filepath.Join(dir, f.Name)
		if err := fileutil.WriteAtomic(dst, data, 0644); err != nil {
			return restored, fmt.Errorf("restoring %s: %w", f.Name, err)
		}
		restored = append(restored, dst)
	}
	return restored, nil
}

func (s *Store) manifestPath(id string) string {
	return filepath.Join(s.root, "snapshots", id+".json")
}
