package cas

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHash(t *testing.T) {
	// BLAKE3 of the empty input
	const empty = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
	if got := Hash(nil); got != empty {
		t.Errorf("Hash(nil) = %s, want %s", got, empty)
	}
	if Hash([]byte("a")) == Hash([]byte("b")) {
		t.Error("different inputs should hash differently")
	}
	if !isValidHash(Hash([]byte("x"))) {
		t.Error("Hash() output should be a valid hash")
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentence1.grf")
	data := []byte("#Unigraph\n#\n2\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if got != Hash(data) {
		t.Errorf("HashFile() = %s, want %s", got, Hash(data))
	}
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
