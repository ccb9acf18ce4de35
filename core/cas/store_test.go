package cas

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestStoreAndRetrieve tests that storing a blob returns its BLAKE3 hash
// and that retrieving by hash returns the exact same bytes.
func TestStoreAndRetrieve(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	testData := []byte("0000000002\n{le,le.DET+Def:ms}\n")

	hash, err := store.Store(testData)
	if err != nil {
		t.Fatalf("failed to store blob: %v", err)
	}
	if hash != Hash(testData) {
		t.Errorf("hash mismatch: got %s, want %s", hash, Hash(testData))
	}

	retrieved, err := store.Retrieve(hash)
	if err != nil {
		t.Fatalf("failed to retrieve blob: %v", err)
	}
	if !bytes.Equal(retrieved, testData) {
		t.Errorf("retrieved data mismatch: got %q, want %q", retrieved, testData)
	}
}

// TestStoreCompresses tests that blobs are kept xz-compressed on disk.
func TestStoreCompresses(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	data := bytes.Repeat([]byte("{chat,chat.N:ms} "), 4096)
	hash, err := store.Store(data)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(store.pathForHash(hash))
	if err != nil {
		t.Fatalf("blob missing on disk: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}) {
		t.Error("blob should start with the xz magic")
	}
	if len(raw) >= len(data) {
		t.Errorf("compressed size %d should be below %d", len(raw), len(data))
	}
}

// TestStoreDuplicate tests that storing the same content twice is a no-op.
func TestStoreDuplicate(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h1, err := store.Store([]byte("same"))
	if err != nil {
		t.Fatal(err)
	}

	orig := osRename
	osRename = func(string, string) error { return errors.New("should not rename") }
	defer func() { osRename = orig }()

	h2, err := store.Store([]byte("same"))
	if err != nil || h1 != h2 {
		t.Errorf("second store = %s, %v; want %s", h2, err, h1)
	}
}

func TestRetrieveErrors(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Retrieve("nothex"); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("invalid hash error = %v", err)
	}
	missing := Hash([]byte("missing"))
	if _, err := store.Retrieve(missing); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("missing blob error = %v", err)
	}
	if store.Exists(missing) || store.Exists("nothex") {
		t.Error("Exists() should be false")
	}

	// a blob whose content no longer matches its key
	hash, err := store.Store([]byte("original"))
	if err != nil {
		t.Fatal(err)
	}
	other, err := compress([]byte("tampered"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.pathForHash(hash), other, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Retrieve(hash); !errors.Is(err, ErrCorruptBlob) {
		t.Errorf("tampered blob error = %v", err)
	}
	if err := os.WriteFile(store.pathForHash(hash), []byte("not xz"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Retrieve(hash); !errors.Is(err, ErrCorruptBlob) {
		t.Errorf("undecodable blob error = %v", err)
	}
}

// TestStoreInjectedErrors tests Store with injected write, close and rename failures.
func TestStoreInjectedErrors(t *testing.T) {
	tests := []struct {
		name    string
		inject  func() func()
		wantMsg string
	}{
		{
			name: "write",
			inject: func() func() {
				orig := tempFileWrite
				tempFileWrite = func(*os.File, []byte) (int, error) { return 0, errors.New("injected") }
				return func() { tempFileWrite = orig }
			},
			wantMsg: "failed to write blob",
		},
		{
			name: "close",
			inject: func() func() {
				orig := tempFileClose
				tempFileClose = func(c io.Closer) error { c.Close(); return errors.New("injected") }
				return func() { tempFileClose = orig }
			},
			wantMsg: "failed to close temp file",
		},
		{
			name: "rename",
			inject: func() func() {
				orig := osRename
				osRename = func(string, string) error { return errors.New("injected") }
				return func() { osRename = orig }
			},
			wantMsg: "failed to rename blob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			restore := tt.inject()
			_, err = store.Store([]byte(tt.name))
			restore()
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("Store() error = %v, want %q", err, tt.wantMsg)
			}
			matches, _ := filepath.Glob(filepath.Join(store.Root(), "blobs", "blake3", "*", ".blob-*"))
			if len(matches) != 0 {
				t.Errorf("temp files left behind: %v", matches)
			}
		})
	}
}

func TestNewStoreMkdirError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(file); err == nil {
		t.Error("expected error when root is a file")
	}
}
