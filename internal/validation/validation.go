// Package validation checks user-supplied paths before they reach the
// file system or the argument vector of an external tool.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
)

const (
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// ValidatePath rejects empty or overlong paths and paths holding control
// characters.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path cannot be empty", tfsterrors.ErrInvalidInput)
	}
	if len(path) > MaxPathLength {
		return fmt.Errorf("%w: path too long", tfsterrors.ErrInvalidInput)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character in path %q", tfsterrors.ErrInvalidInput, path)
		}
	}
	return nil
}

// ValidateFilename checks a bare file name: no separators, no reserved
// names, and no leading hyphen that a tool could read as a flag.
func ValidateFilename(name string) error {
	if err := ValidatePath(name); err != nil {
		return err
	}
	switch {
	case len(name) > MaxFilenameLength:
		return fmt.Errorf("%w: file name too long", tfsterrors.ErrInvalidInput)
	case name == "." || name == "..":
		return fmt.Errorf("%w: reserved file name %q", tfsterrors.ErrInvalidInput, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: path separator in file name %q", tfsterrors.ErrInvalidInput, name)
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("%w: file name %q starts with a hyphen", tfsterrors.ErrInvalidInput, name)
	}
	return nil
}

// ValidateOutput checks a path the CLI is about to write: the path itself
// and its base name.
func ValidateOutput(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	return ValidateFilename(filepath.Base(path))
}
