package grf

import (
	"strconv"
	"strings"
)

// Presentation keys written in the header block.
const (
	KeyFont         = "FONT"
	KeyFontSize     = "FONTSIZE"
	KeyAntialiasing = "ANTIALIASING"
	KeyFrame        = "DFRAME"
	KeyFilename     = "DFILE"
	KeyPathname     = "DDIR"
	KeyDate         = "DDATE"
	KeyForeground   = "FCOLOR"
	KeyBackground   = "BCOLOR"
)

// HeaderEntry is one "key value" line of the header block.
type HeaderEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Header is the presentation block of a graph file. Entries keep their file
// order so unknown keys survive a load/save cycle.
type Header struct {
	Version string        `json:"version"`
	Entries []HeaderEntry `json:"entries"`
}

// DefaultHeader is the header of a newly created graph.
func DefaultHeader() Header {
	return Header{
		Version: "Unigraph",
		Entries: []HeaderEntry{
			{KeyFont, "Times New Roman"},
			{KeyFontSize, "10"},
			{KeyAntialiasing, "y"},
			{KeyFrame, "y"},
			{KeyFilename, "y"},
			{KeyPathname, "n"},
			{KeyDate, "n"},
			{KeyForeground, "0"},
			{KeyBackground, "16777215"},
		},
	}
}

// Get returns the value of key.
func (h *Header) Get(key string) (string, bool) {
	for _, e := range h.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Set replaces the value of key, appending it when absent.
func (h *Header) Set(key, value string) {
	for i := range h.Entries {
		if h.Entries[i].Key == key {
			h.Entries[i].Value = value
			return
		}
	}
	h.Entries = append(h.Entries, HeaderEntry{Key: key, Value: value})
}

// Flag reads a y/n entry.
func (h *Header) Flag(key string) bool {
	v, _ := h.Get(key)
	return v == "y" || v == "true"
}

// SetFlag writes a y/n entry.
func (h *Header) SetFlag(key string, on bool) {
	if on {
		h.Set(key, "y")
	} else {
		h.Set(key, "n")
	}
}

// Int reads a numeric entry, returning def when missing or malformed.
func (h *Header) Int(key string, def int) int {
	v, ok := h.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Font returns the font family and size.
func (h *Header) Font() (string, int) {
	name, _ := h.Get(KeyFont)
	return name, h.Int(KeyFontSize, 10)
}

func (h Header) clone() Header {
	return Header{Version: h.Version, Entries: append([]HeaderEntry(nil), h.Entries...)}
}

func (h Header) equal(o Header) bool {
	if h.Version != o.Version || len(h.Entries) != len(o.Entries) {
		return false
	}
	for i := range h.Entries {
		if h.Entries[i] != o.Entries[i] {
			return false
		}
	}
	return true
}
