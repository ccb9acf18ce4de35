// Package archive packs a sentence directory into a compressed tar bundle
// and reads such bundles back. Both tar.xz and tar.gz are supported.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/internal/fileutil"
)

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader opens a .tar.xz or .tar.gz archive.
func NewReader(p string) (*Reader, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, tfsterrors.NewIO("open", p, err)
	}

	var reader io.Reader
	var decompressor io.Closer

	switch {
	case strings.HasSuffix(p, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	case strings.HasSuffix(p, ".tar.gz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	default:
		f.Close()
		return nil, fmt.Errorf("%w: archive format of %s", tfsterrors.ErrUnsupported, p)
	}

	return &Reader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the archive reader and any underlying decompressors.
func (r *Reader) Close() error {
	var first error
	if r.decompressor != nil {
		first = r.decompressor.Close()
	}
	if err := r.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Visitor is called for each entry. Return true to stop iteration.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks through all entries in the archive, calling the visitor for each.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		stop, err := visitor(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// List returns the file names of a bundle, without the leading directory.
func List(archivePath string) ([]string, error) {
	r, err := NewReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var names []string
	err = r.Iterate(func(h *tar.Header, _ io.Reader) (bool, error) {
		if h.Typeflag == tar.TypeReg {
			names = append(names, entryName(h.Name))
		}
		return false, nil
	})
	return names, err
}

// Extract writes the regular files of a bundle into dir, flattening the
// leading directory. Entries that would land outside dir are refused.
func Extract(archivePath, dir string) ([]string, error) {
	r, err := NewReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var written []string
	err = r.Iterate(func(h *tar.Header, content io.Reader) (bool, error) {
		if h.Typeflag != tar.TypeReg {
			return false, nil
		}
		clean := path.Clean(h.Name)
		name := entryName(h.Name)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") ||
			name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
			return true, fmt.Errorf("%w: archive entry %q", tfsterrors.ErrInvalidInput, h.Name)
		}
		data, err := io.ReadAll(content)
		if err != nil {
			return true, err
		}
		if err := fileutil.WriteAtomic(filepath.Join(dir, name), data, 0644); err != nil {
			return true, err
		}
		written = append(written, name)
		return false, nil
	})
	return written, err
}

// entryName strips the bundle directory from an entry name.
func entryName(name string) string {
	name = path.Clean(strings.TrimPrefix(name, "./"))
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
