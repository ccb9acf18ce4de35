// Package interp enumerates the interpretations of a sentence automaton:
// every maximal path of boxes that stays inside one token span.
package interp

import (
	"errors"
	"fmt"
	"strings"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/grf"
	"github.com/FocuswithJustin/tfstbench/core/tfst"
	"github.com/FocuswithJustin/tfstbench/internal/logging"
)

// ErrMalformedSentenceAutomaton is returned when the traversal meets a box
// with no outgoing transition or a cycle inside one token.
var ErrMalformedSentenceAutomaton = errors.New("malformed sentence automaton")

// Interpretation is one reading of a token sequence: the tags of the boxes
// on the path, in path order.
type Interpretation struct {
	Boxes []int      `json:"boxes"`
	Tags  []tfst.Tag `json:"tags"`
}

// Row groups the interpretations of one token sequence.
type Row struct {
	Start           int              `json:"start"`
	End             int              `json:"end"`
	Surface         string           `json:"surface"`
	Interpretations []Interpretation `json:"interpretations"`
}

// StartsToken reports whether b begins a token: a NORMAL box with bounds at
// the first character and letter of its token, not an epsilon tag.
func StartsToken(b *grf.Box) bool {
	return b.Type == grf.Normal &&
		b.Bounds != nil &&
		!strings.HasPrefix(b.Content, "{"+tfst.EpsilonContent+",") &&
		b.Bounds.StartsToken()
}

// SameToken reports whether next refines the token of b.
func SameToken(b, next *grf.Box) bool {
	return b.Bounds != nil && next.Bounds != nil && next.Bounds.StartInTokens == b.Bounds.StartInTokens
}

// Extract walks doc from every token-starting box and returns the rows sorted
// by (start, end). Boxes are visited in id order and transitions in their
// stored order, so the result is deterministic.
func Extract(doc *grf.Document, tokens tfst.TokenSource) ([]Row, error) {
	x := &extractor{doc: doc, tokens: tokens, onPath: make([]bool, len(doc.Boxes))}
	for id := range doc.Boxes {
		if !StartsToken(&doc.Boxes[id]) {
			continue
		}
		if err := x.explore(id); err != nil {
			logging.Error("extract_aborted", "error", err, "start_box", id)
			return nil, err
		}
	}
	return x.rows, nil
}

type extractor struct {
	doc    *grf.Document
	tokens tfst.TokenSource
	path   []int
	onPath []bool
	rows   []Row
}

func (x *extractor) explore(id int) error {
	if x.onPath[id] {
		return x.malformed(fmt.Sprintf("box %d is revisited inside one token", id))
	}
	b := &x.doc.Boxes[id]
	x.path = append(x.path, id)
	x.onPath[id] = true
	defer func() {
		x.path = x.path[:len(x.path)-1]
		x.onPath[id] = false
	}()

	if len(b.Transitions) == 0 {
		return x.malformed(fmt.Sprintf("box %d has no outgoing transition", id))
	}
	if !SameToken(b, &x.doc.Boxes[b.Transitions[0]]) {
		x.emit()
		return nil
	}
	for _, t := range b.Transitions {
		if err := x.explore(t); err != nil {
			return err
		}
	}
	return nil
}

func (x *extractor) malformed(msg string) error {
	return fmt.Errorf("%w: %w", ErrMalformedSentenceAutomaton, tfsterrors.NewInvariant("extract", msg))
}

func (x *extractor) emit() {
	first := &x.doc.Boxes[x.path[0]]
	last := &x.doc.Boxes[x.path[len(x.path)-1]]
	start := first.Bounds.StartInTokens
	end := start
	if last.Bounds != nil {
		end = last.Bounds.EndInTokens
	}
	surface := ""
	if x.tokens != nil {
		surface = x.tokens.TokenSequence(start, end)
	}

	in := Interpretation{
		Boxes: append([]int(nil), x.path...),
		Tags:  make([]tfst.Tag, len(x.path)),
	}
	for i, id := range x.path {
		in.Tags[i] = tfst.ParseTag(x.doc.Boxes[id].Content)
	}
	row := x.row(start, end, surface)
	row.Interpretations = append(row.Interpretations, in)
}

// row returns the row for (start, end, surface), inserting it before the
// first row that sorts after it. An existing row is reused only when all
// three keys match; the first match wins.
func (x *extractor) row(start, end int, surface string) *Row {
	for i := range x.rows {
		r := &x.rows[i]
		if r.Start == start && r.End == end && r.Surface == surface {
			return r
		}
		if start < r.Start || (start == r.Start && end < r.End) {
			x.rows = append(x.rows, Row{})
			copy(x.rows[i+1:], x.rows[i:])
			x.rows[i] = Row{Start: start, End: end, Surface: surface}
			return &x.rows[i]
		}
	}
	x.rows = append(x.rows, Row{Start: start, End: end, Surface: surface})
	return &x.rows[len(x.rows)-1]
}
