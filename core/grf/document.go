// Package grf reads and writes graph documents: the box-and-transition files
// used both for grammars and for the per-sentence views of a text automaton.
package grf

import (
	"fmt"

	"github.com/FocuswithJustin/tfstbench/core/tfst"
)

// BoxType is the role of a box in its graph.
type BoxType int

// On-disk type codes.
const (
	Initial BoxType = 0
	Final   BoxType = 1
	Normal  BoxType = 2
)

func (t BoxType) String() string {
	switch t {
	case Initial:
		return "INITIAL"
	case Final:
		return "FINAL"
	case Normal:
		return "NORMAL"
	default:
		return fmt.Sprintf("BoxType(%d)", int(t))
	}
}

// Box is a vertex of a graph. Its id is its index in Document.Boxes.
type Box struct {
	Content     string       `json:"content"`
	Type        BoxType      `json:"type"`
	X           int          `json:"x"`
	Y           int          `json:"y"`
	Transitions []int        `json:"transitions"`
	Bounds      *tfst.Bounds `json:"bounds,omitempty"`
	Modified    bool         `json:"modified,omitempty"`
	Selected    bool         `json:"-"`
}

// HasTransition reports whether the box has an edge to dst.
func (b *Box) HasTransition(dst int) bool {
	for _, t := range b.Transitions {
		if t == dst {
			return true
		}
	}
	return false
}

// Tag parses the box content.
func (b *Box) Tag() tfst.Tag {
	return tfst.ParseTag(b.Content)
}

// IsEpsilon reports whether a NORMAL box holds the empty marker.
func (b *Box) IsEpsilon() bool {
	return b.Type == Normal && (b.Content == tfst.EpsilonContent || b.Content == "")
}

func (b Box) clone() Box {
	c := b
	c.Transitions = append([]int(nil), b.Transitions...)
	if b.Bounds != nil {
		bb := *b.Bounds
		c.Bounds = &bb
	}
	return c
}

// BoundsForm is the way token bounds are embedded in a file.
type BoundsForm int

const (
	// BoundsSuffix appends "/st et sc ec sl" to the box content.
	BoundsSuffix BoundsForm = iota
	// BoundsParallel writes a #BOUNDS section after the box records.
	BoundsParallel
)

// Document is an ordered box list plus presentation info.
type Document struct {
	Header     Header     `json:"header"`
	Boxes      []Box      `json:"boxes"`
	Encoding   Encoding   `json:"encoding"`
	BoundsForm BoundsForm `json:"bounds_form"`
	// Warnings collects non-fatal problems found while loading.
	Warnings []string `json:"warnings,omitempty"`
}

// New returns an empty graph holding only an INITIAL and a FINAL box.
func New() *Document {
	return &Document{
		Header:   DefaultHeader(),
		Encoding: UTF16LE,
		Boxes: []Box{
			{Content: tfst.EpsilonContent, Type: Initial, X: 70, Y: 200, Transitions: []int{}},
			{Content: "", Type: Final, X: 300, Y: 200, Transitions: []int{}},
		},
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{
		Header:     d.Header.clone(),
		Encoding:   d.Encoding,
		BoundsForm: d.BoundsForm,
		Boxes:      make([]Box, len(d.Boxes)),
		Warnings:   append([]string(nil), d.Warnings...),
	}
	for i, b := range d.Boxes {
		c.Boxes[i] = b.clone()
	}
	return c
}

// Initial returns the id of the INITIAL box, or -1.
func (d *Document) Initial() int {
	return d.find(Initial)
}

// Final returns the id of the FINAL box, or -1.
func (d *Document) Final() int {
	return d.find(Final)
}

func (d *Document) find(t BoxType) int {
	for i := range d.Boxes {
		if d.Boxes[i].Type == t {
			return i
		}
	}
	return -1
}

// HasBounds reports whether any box carries token bounds.
func (d *Document) HasBounds() bool {
	for i := range d.Boxes {
		if d.Boxes[i].Bounds != nil {
			return true
		}
	}
	return false
}

// EmptyBoxes returns the ids of NORMAL boxes holding the empty marker.
func (d *Document) EmptyBoxes() []int {
	var ids []int
	for i := range d.Boxes {
		if d.Boxes[i].IsEpsilon() {
			ids = append(ids, i)
		}
	}
	return ids
}

// Equal reports whether two documents have the same persisted content.
// Transient selection and load warnings are ignored.
func (d *Document) Equal(o *Document) bool {
	if d.Encoding != o.Encoding || d.BoundsForm != o.BoundsForm || !d.Header.equal(o.Header) || len(d.Boxes) != len(o.Boxes) {
		return false
	}
	for i := range d.Boxes {
		a, b := &d.Boxes[i], &o.Boxes[i]
		if a.Content != b.Content || a.Type != b.Type || a.X != b.X || a.Y != b.Y || len(a.Transitions) != len(b.Transitions) {
			return false
		}
		for j := range a.Transitions {
			if a.Transitions[j] != b.Transitions[j] {
				return false
			}
		}
		if (a.Bounds == nil) != (b.Bounds == nil) || (a.Bounds != nil && *a.Bounds != *b.Bounds) {
			return false
		}
	}
	return true
}

// Reachability returns, for every box, whether it is reachable from INITIAL
// and whether FINAL is reachable from it.
func (d *Document) Reachability() (fromInitial, toFinal []bool) {
	n := len(d.Boxes)
	fromInitial = make([]bool, n)
	toFinal = make([]bool, n)
	reverse := make([][]int, n)
	for i := range d.Boxes {
		for _, t := range d.Boxes[i].Transitions {
			if t >= 0 && t < n {
				reverse[t] = append(reverse[t], i)
			}
		}
	}
	walk := func(start int, seen []bool, next func(int) []int) {
		if start < 0 {
			return
		}
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, t := range next(cur) {
				if t >= 0 && t < n && !seen[t] {
					seen[t] = true
					stack = append(stack, t)
				}
			}
		}
	}
	walk(d.Initial(), fromInitial, func(i int) []int { return d.Boxes[i].Transitions })
	walk(d.Final(), toFinal, func(i int) []int { return reverse[i] })
	return fromInitial, toFinal
}
