// Package coverage counts how often each box of each graph took part in a
// match, from the debug trace of a locate run.
package coverage

import (
	"fmt"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
)

// Detail is one box visited by a match. Graph is 1-based, Box is 0-based.
type Detail struct {
	Graph int `json:"graph"`
	Box   int `json:"box"`
}

// DebugInfos is the debug trace of a run.
type DebugInfos interface {
	// GraphCount returns the number of graphs of the grammar.
	GraphCount() int
	// BoxCount returns the number of boxes of graph g (1-based), or 0 when
	// the graph could not be read.
	BoxCount(g int) int
	// MatchCount returns the number of matches.
	MatchCount() int
	// MatchDetails returns the boxes visited by match i.
	MatchDetails(i int) []Detail
}

// Table holds per-graph counters: cell 0 is the total for the graph, cell
// b+1 the hits of box b.
type Table struct {
	counts [][]int
}

// Compute aggregates the trace. It returns a nil table and a nil error when
// a match has no details: coverage is then unavailable for the run. A detail
// naming an unknown graph or box is an error.
func Compute(d DebugInfos) (*Table, error) {
	t := &Table{counts: make([][]int, d.GraphCount())}
	for g := range t.counts {
		n := d.BoxCount(g + 1)
		if n > 0 {
			n++
		}
		t.counts[g] = make([]int, n)
	}
	for i := 0; i < d.MatchCount(); i++ {
		details := d.MatchDetails(i)
		if len(details) == 0 {
			return nil, nil
		}
		for _, det := range details {
			if det.Graph < 1 || det.Graph > len(t.counts) || det.Box < 0 || det.Box+1 >= len(t.counts[det.Graph-1]) {
				return nil, fmt.Errorf("%w: match %d refers to box %d of graph %d", tfsterrors.ErrInvalidInput, i, det.Box, det.Graph)
			}
			t.counts[det.Graph-1][det.Box+1]++
			t.counts[det.Graph-1][0]++
		}
	}
	return t, nil
}

// FromCounts rebuilds a table from stored counters.
func FromCounts(counts [][]int) *Table {
	c := make([][]int, len(counts))
	for i := range counts {
		c[i] = make([]int, len(counts[i]))
		copy(c[i], counts[i])
	}
	return &Table{counts: c}
}

// Counts returns a copy of the raw counters.
func (t *Table) Counts() [][]int {
	return FromCounts(t.counts).counts
}

// Graphs returns the number of graphs.
func (t *Table) Graphs() int {
	return len(t.counts)
}

// Boxes returns the number of boxes of graph g (1-based).
func (t *Table) Boxes(g int) int {
	if g < 1 || g > len(t.counts) || len(t.counts[g-1]) == 0 {
		return 0
	}
	return len(t.counts[g-1]) - 1
}

// GraphCount returns the number of box hits in graph g (1-based).
func (t *Table) GraphCount(g int) int {
	if g < 1 || g > len(t.counts) || len(t.counts[g-1]) == 0 {
		return 0
	}
	return t.counts[g-1][0]
}

// BoxCount returns the hits of box b (0-based) in graph g (1-based).
func (t *Table) BoxCount(g, b int) int {
	if g < 1 || g > len(t.counts) || b < 0 || b+1 >= len(t.counts[g-1]) {
		return 0
	}
	return t.counts[g-1][b+1]
}
