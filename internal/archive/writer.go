package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
)

// Pack writes the files of srcDir matching any of patterns into dstPath,
// a .tar.xz or .tar.gz archive, under the directory baseDir. Entries are
// sorted and carry a fixed timestamp so identical inputs give identical
// archives. It returns the archived names.
func Pack(srcDir, dstPath, baseDir string, patterns []string) ([]string, error) {
	names, err := matching(srcDir, patterns)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no file of %s matches %s", tfsterrors.ErrNotFound, srcDir, strings.Join(patterns, " "))
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return nil, tfsterrors.NewIO("mkdir", filepath.Dir(dstPath), err)
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return nil, tfsterrors.NewIO("create", dstPath, err)
	}
	defer out.Close()

	comp, err := compressor(out, dstPath)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(comp)

	for _, name := range names {
		if err := addFile(tw, filepath.Join(srcDir, name), baseDir+"/"+name); err != nil {
			return nil, fmt.Errorf("failed to create archive: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := comp.Close(); err != nil {
		return nil, err
	}
	return names, out.Close()
}

func matching(dir string, patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var names []string
	for _, p := range patterns {
		paths, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q", tfsterrors.ErrInvalidInput, p)
		}
		for _, path := range paths {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			name := filepath.Base(path)
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func compressor(w io.Writer, path string) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		return xz.NewWriter(w)
	case strings.HasSuffix(path, ".tar.gz"):
		return gzip.NewWriter(w), nil
	}
	return nil, fmt.Errorf("%w: archive format of %s", tfsterrors.ErrUnsupported, path)
}

// epoch is the timestamp of every entry.
var epoch = time.Unix(0, 0).UTC()

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	header := &tar.Header{
		Name:     name,
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     info.Size(),
		ModTime:  epoch,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
