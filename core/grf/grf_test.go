package grf

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/tfst"
)

const sentenceGraph = `#Unigraph
FONT Times New Roman
FONTSIZE 12
DFRAME y
#
4
"<E>" 0 70 200 2 2 3
"" 1 500 200 0
"{le,le.DET:ms}/0 0 0 1 0" 2 150 150 1 1
"{le,le.PRO:3ms}/0 0 0 1 0" 2 150 250 1 1
`

func mustParse(t *testing.T, text string, strict bool) *Document {
	t.Helper()
	doc, err := Parse([]byte(text), "test.grf", strict)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func TestParseSuffixBounds(t *testing.T) {
	doc := mustParse(t, sentenceGraph, true)

	if doc.Header.Version != "Unigraph" {
		t.Errorf("Version = %q", doc.Header.Version)
	}
	if name, size := doc.Header.Font(); name != "Times New Roman" || size != 12 {
		t.Errorf("Font() = %q, %d", name, size)
	}
	if !doc.Header.Flag(KeyFrame) {
		t.Error("DFRAME should be on")
	}
	if doc.Encoding != UTF8 {
		t.Errorf("Encoding = %q, want utf8", doc.Encoding)
	}
	if len(doc.Boxes) != 4 || doc.Initial() != 0 || doc.Final() != 1 {
		t.Fatalf("boxes=%d initial=%d final=%d", len(doc.Boxes), doc.Initial(), doc.Final())
	}
	b := doc.Boxes[2]
	if b.Content != "{le,le.DET:ms}" || b.Bounds == nil || b.Bounds.EndInChars != 1 {
		t.Errorf("box 2 = %+v bounds %+v", b, b.Bounds)
	}
	if doc.BoundsForm != BoundsSuffix {
		t.Errorf("BoundsForm = %v, want suffix", doc.BoundsForm)
	}
	if got := doc.Boxes[0].Transitions; len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("initial transitions = %v", got)
	}
}

func TestParseParallelBounds(t *testing.T) {
	text := `#Unigraph
#
3
"<E>" 0 0 0 1 2
"" 1 0 0 0
"pomme" 2 0 0 1 1
#BOUNDS
2 1 1 0 4 0
`
	doc := mustParse(t, text, true)
	if doc.BoundsForm != BoundsParallel {
		t.Fatalf("BoundsForm = %v, want parallel", doc.BoundsForm)
	}
	if b := doc.Boxes[2].Bounds; b == nil || b.StartInTokens != 1 || b.EndInChars != 4 {
		t.Errorf("bounds = %+v", b)
	}
	if doc.Boxes[2].Content != "pomme" {
		t.Errorf("content = %q", doc.Boxes[2].Content)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		enc  Encoding
		form BoundsForm
	}{
		{"utf16le suffix", UTF16LE, BoundsSuffix},
		{"utf16be parallel", UTF16BE, BoundsParallel},
		{"utf8 bom suffix", UTF8BOM, BoundsSuffix},
		{"utf8 parallel", UTF8, BoundsParallel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, sentenceGraph, false)
			doc.Encoding = tt.enc
			doc.BoundsForm = tt.form
			doc.Boxes[3].Content = `quote " and \ backslash`
			doc.Header.Set("CUSTOM", "kept as is")

			data, err := Marshal(doc)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if got := DetectEncoding(data); got != tt.enc {
				t.Errorf("written encoding = %q, want %q", got, tt.enc)
			}
			back, err := Parse(data, "rt.grf", false)
			if err != nil {
				t.Fatalf("Parse(Marshal()) error = %v", err)
			}
			if !doc.Equal(back) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back.Boxes, doc.Boxes)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursentence.grf")
	doc := mustParse(t, sentenceGraph, true)
	doc.Encoding = UTF16LE

	if err := Save(doc, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	raw, _ := os.ReadFile(path)
	if !bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) {
		t.Error("saved file should start with a UTF-16LE BOM")
	}
	loaded, err := Load(path, false, true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !doc.Equal(loaded) {
		t.Error("loaded document differs from saved one")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.grf"), false, false)
	if !errors.Is(err, tfsterrors.ErrIO) || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}

	doc, err := Load(filepath.Join(dir, "missing.grf"), true, false)
	if err != nil {
		t.Fatalf("keepEmptyGraphOnError should swallow the error: %v", err)
	}
	if len(doc.Boxes) != 2 || len(doc.Warnings) != 1 {
		t.Errorf("empty graph = %d boxes, %d warnings", len(doc.Boxes), len(doc.Warnings))
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		kind     tfsterrors.GraphErrorKind
		wantLine int
	}{
		{"no version", "Unigraph\n#\n0\n", tfsterrors.KindHeader, 1},
		{"unterminated header", "#Unigraph\nFONT x\n", tfsterrors.KindHeader, 0},
		{"bad count", "#Unigraph\n#\nabc\n", tfsterrors.KindHeader, 3},
		{"unquoted box", "#Unigraph\n#\n2\n<E> 0 0 0 0\n\"\" 1 0 0 0\n", tfsterrors.KindBox, 4},
		{"missing quote", "#Unigraph\n#\n2\n\"<E> 0 0 0 0\n\"\" 1 0 0 0\n", tfsterrors.KindBox, 4},
		{"bad transition count", "#Unigraph\n#\n2\n\"<E>\" 0 0 0 2 1\n\"\" 1 0 0 0\n", tfsterrors.KindBox, 4},
		{"missing boxes", "#Unigraph\n#\n3\n\"<E>\" 0 0 0 1 1\n\"\" 1 0 0 0\n", tfsterrors.KindBox, 0},
		{"out of range", "#Unigraph\n#\n2\n\"<E>\" 0 0 0 1 7\n\"\" 1 0 0 0\n", tfsterrors.KindTransition, 0},
		{"two finals", "#Unigraph\n#\n3\n\"<E>\" 0 0 0 1 1\n\"\" 1 0 0 0\n\"\" 1 0 0 0\n", tfsterrors.KindTerminal, 0},
		{"garbage after boxes", "#Unigraph\n#\n2\n\"<E>\" 0 0 0 1 1\n\"\" 1 0 0 0\nextra\n", tfsterrors.KindBox, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.text), "bad.grf", false)
			var mg *tfsterrors.MalformedGraphError
			if !errors.As(err, &mg) {
				t.Fatalf("Parse() error = %v, want MalformedGraphError", err)
			}
			if mg.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q (%v)", mg.Kind, tt.kind, err)
			}
			if tt.wantLine != 0 && mg.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", mg.Line, tt.wantLine)
			}
		})
	}
}

func TestReachability(t *testing.T) {
	text := `#Unigraph
#
4
"<E>" 0 0 0 1 2
"" 1 0 0 0
"a" 2 0 0 1 1
"orphan" 2 0 0 1 1
`
	doc, err := Parse([]byte(text), "r.grf", false)
	if err != nil {
		t.Fatalf("non-strict Parse() error = %v", err)
	}
	if len(doc.Warnings) != 1 || !strings.Contains(doc.Warnings[0], "box 3") {
		t.Errorf("Warnings = %v", doc.Warnings)
	}

	_, err = Parse([]byte(text), "r.grf", true)
	var mg *tfsterrors.MalformedGraphError
	if !errors.As(err, &mg) || mg.Kind != tfsterrors.KindReach {
		t.Errorf("strict Parse() error = %v, want reachability error", err)
	}
}

func TestDocumentHelpers(t *testing.T) {
	doc := New()
	doc.Boxes = append(doc.Boxes, Box{Content: tfst.EpsilonContent, Type: Normal, Transitions: []int{1}})
	doc.Boxes[0].Transitions = []int{2}

	if got := doc.EmptyBoxes(); len(got) != 1 || got[0] != 2 {
		t.Errorf("EmptyBoxes() = %v", got)
	}
	clone := doc.Clone()
	clone.Boxes[0].Transitions[0] = 1
	if doc.Boxes[0].Transitions[0] != 2 {
		t.Error("Clone should not share transition slices")
	}
	if doc.Equal(clone) {
		t.Error("Equal should see the changed transition")
	}
	if !doc.Boxes[0].HasTransition(2) || doc.Boxes[0].HasTransition(1) {
		t.Error("HasTransition mismatch")
	}
	if Normal.String() != "NORMAL" || BoxType(9).String() != "BoxType(9)" {
		t.Error("BoxType.String mismatch")
	}
}

func TestParseEncoding(t *testing.T) {
	if e, err := ParseEncoding(""); err != nil || e != UTF16LE {
		t.Errorf("ParseEncoding(\"\") = %q, %v", e, err)
	}
	if _, err := ParseEncoding("latin1"); !errors.Is(err, tfsterrors.ErrUnsupported) {
		t.Errorf("ParseEncoding(latin1) error = %v", err)
	}
}
