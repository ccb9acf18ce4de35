package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ulikunitz/xz"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func sentenceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "text.tfst"), "0000000002\n$1\n")
	writeFile(t, filepath.Join(dir, "text.tind"), "index")
	writeFile(t, filepath.Join(dir, "sentence2.grf"), "#Unigraph\n")
	writeFile(t, filepath.Join(dir, "cursentence.grf"), "#Unigraph\n")
	if err := os.Mkdir(filepath.Join(dir, "sentence9.grf"), 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}

var bundlePatterns = []string{"text.tfst", "text.tind", "sentence*.grf", "text.tfst"}

func TestPackExtractRoundTrip(t *testing.T) {
	for _, ext := range []string{".tar.xz", ".tar.gz"} {
		t.Run(ext, func(t *testing.T) {
			src := sentenceDir(t)
			dst := filepath.Join(t.TempDir(), "out", "bundle"+ext)

			names, err := Pack(src, dst, "corpus", bundlePatterns)
			if err != nil {
				t.Fatalf("Pack() error = %v", err)
			}
			want := []string{"sentence2.grf", "text.tfst", "text.tind"}
			if !reflect.DeepEqual(names, want) {
				t.Errorf("Pack() = %v, want %v", names, want)
			}

			listed, err := List(dst)
			if err != nil || !reflect.DeepEqual(listed, want) {
				t.Errorf("List() = %v, %v", listed, err)
			}

			out := t.TempDir()
			written, err := Extract(dst, out)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if !reflect.DeepEqual(written, want) {
				t.Errorf("Extract() = %v", written)
			}
			got, err := os.ReadFile(filepath.Join(out, "text.tfst"))
			if err != nil || string(got) != "0000000002\n$1\n" {
				t.Errorf("extracted text.tfst = %q, %v", got, err)
			}
		})
	}
}

func TestPackIsReproducible(t *testing.T) {
	src := sentenceDir(t)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.tar.gz"), filepath.Join(dir, "b.tar.gz")
	if _, err := Pack(src, a, "corpus", bundlePatterns); err != nil {
		t.Fatal(err)
	}
	if _, err := Pack(src, b, "corpus", bundlePatterns); err != nil {
		t.Fatal(err)
	}
	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	if !bytes.Equal(da, db) {
		t.Error("packing the same files twice gave different archives")
	}
}

func TestPackErrors(t *testing.T) {
	src := sentenceDir(t)
	dir := t.TempDir()
	if _, err := Pack(src, filepath.Join(dir, "b.zip"), "corpus", bundlePatterns); !errors.Is(err, tfsterrors.ErrUnsupported) {
		t.Errorf("zip error = %v", err)
	}
	if _, err := Pack(src, filepath.Join(dir, "b.tar.xz"), "corpus", []string{"*.rul"}); !errors.Is(err, tfsterrors.ErrNotFound) {
		t.Errorf("no match error = %v", err)
	}
	if _, err := Pack(src, filepath.Join(dir, "b.tar.xz"), "corpus", []string{"["}); !errors.Is(err, tfsterrors.ErrInvalidInput) {
		t.Errorf("bad pattern error = %v", err)
	}
}

func TestExtractRefusesEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evil.tar.xz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	xw, err := xz.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(xw)
	content := []byte("x")
	if err := tw.WriteHeader(&tar.Header{Name: "corpus/../../escape.txt", Mode: 0644, Size: 1}); err != nil {
		t.Fatal(err)
	}
	tw.Write(content)
	tw.Close()
	xw.Close()
	f.Close()

	out := filepath.Join(dir, "out")
	if _, err := Extract(path, out); !errors.Is(err, tfsterrors.ErrInvalidInput) {
		t.Fatalf("Extract() error = %v, want invalid input", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Error("entry escaped the target directory")
	}
}

func TestNewReaderErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewReader(filepath.Join(dir, "missing.tar.xz")); !errors.Is(err, tfsterrors.ErrIO) {
		t.Errorf("missing file error = %v", err)
	}
	plain := filepath.Join(dir, "plain.txt")
	writeFile(t, plain, "x")
	if _, err := NewReader(plain); !errors.Is(err, tfsterrors.ErrUnsupported) {
		t.Errorf("unsupported error = %v", err)
	}
}
