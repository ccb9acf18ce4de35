package grf

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
)

// Encoding is the character encoding of a graph or text file.
type Encoding string

const (
	UTF16LE Encoding = "utf16le"
	UTF16BE Encoding = "utf16be"
	UTF8BOM Encoding = "utf8bom"
	UTF8    Encoding = "utf8"
)

// ParseEncoding maps a configuration string to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case UTF16LE, UTF16BE, UTF8BOM, UTF8:
		return Encoding(s), nil
	case "":
		return UTF16LE, nil
	}
	return "", fmt.Errorf("%w: unknown encoding %q", tfsterrors.ErrUnsupported, s)
}

func (e Encoding) codec() encoding.Encoding {
	switch e {
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case UTF8BOM:
		return unicode.UTF8BOM
	default:
		return unicode.UTF8
	}
}

// DetectEncoding inspects the byte-order mark. Input without a BOM is read as
// UTF-8, invalid sequences becoming U+FFFD.
func DetectEncoding(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return UTF16LE
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return UTF16BE
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return UTF8BOM
	default:
		return UTF8
	}
}

// Decode converts raw file bytes to a string, returning the detected encoding.
func Decode(data []byte) (string, Encoding, error) {
	enc := DetectEncoding(data)
	out, _, err := transform.Bytes(enc.codec().NewDecoder(), data)
	if err != nil {
		return "", enc, err
	}
	return string(bytes.TrimPrefix(out, []byte("\ufeff"))), enc, nil
}

// Encode converts a string to bytes in the given encoding, with a BOM for
// every encoding but plain UTF-8.
func Encode(s string, enc Encoding) ([]byte, error) {
	return enc.codec().NewEncoder().Bytes([]byte(s))
}
