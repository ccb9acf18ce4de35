package table

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/tfstbench/core/graph"
	"github.com/FocuswithJustin/tfstbench/core/grf"
	"github.com/FocuswithJustin/tfstbench/core/interp"
	"github.com/FocuswithJustin/tfstbench/core/tfst"
)

// Row is the displayed form of one token sequence.
type Row struct {
	Start   int      `json:"start"`
	End     int      `json:"end"`
	Surface string   `json:"surface"`
	Cells   []string `json:"cells"`
}

// Model is the table view over the interpretations of a sentence.
type Model struct {
	filter    *TagFilter
	rows      []interp.Row
	rendered  [][]string
	columns   int
	observers []graph.Observer
}

// NewModel creates an empty table bound to filter. Every filter change
// recomputes the cells and fires a structural then a data notification.
func NewModel(filter *TagFilter) *Model {
	m := &Model{filter: filter, columns: 1}
	filter.OnChange(func() {
		m.refresh()
		m.fire()
	})
	return m
}

// Filter returns the bound filter.
func (m *Model) Filter() *TagFilter {
	return m.filter
}

// AddObserver registers o for table refreshes.
func (m *Model) AddObserver(o graph.Observer) {
	m.observers = append(m.observers, o)
}

// Init extracts the interpretations of doc. On error the table keeps its
// previous content.
func (m *Model) Init(doc *grf.Document, tokens tfst.TokenSource) error {
	rows, err := interp.Extract(doc, tokens)
	if err != nil {
		return err
	}
	m.SetRows(rows)
	return nil
}

// SetRows replaces the table content.
func (m *Model) SetRows(rows []interp.Row) {
	m.rows = rows
	m.refresh()
	m.fire()
}

func (m *Model) refresh() {
	m.rendered = make([][]string, len(m.rows))
	m.columns = 1
	for i, r := range m.rows {
		cells := make([]string, 0, len(r.Interpretations))
		seen := make(map[string]bool, len(r.Interpretations))
		for _, in := range r.Interpretations {
			s := m.filter.RenderInterpretation(in)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			cells = append(cells, s)
		}
		m.rendered[i] = cells
		if n := 1 + len(cells); n > m.columns {
			m.columns = n
		}
	}
}

func (m *Model) fire() {
	for _, kind := range []graph.ChangeKind{graph.Structural, graph.Data} {
		for _, o := range m.observers {
			o.ModelChanged(graph.Change{Kind: kind})
		}
	}
}

// RowCount returns the number of token sequences.
func (m *Model) RowCount() int {
	return len(m.rows)
}

// ColumnCount is 1 plus the largest number of displayed interpretations.
func (m *Model) ColumnCount() int {
	return m.columns
}

// ColumnName returns the header of column c.
func (m *Model) ColumnName(c int) string {
	if c == 0 {
		return "Form"
	}
	return fmt.Sprintf("POS sequence #%d", c)
}

// ValueAt returns the surface for column 0 and the (c-1)th displayed
// interpretation otherwise, or "" when the row has fewer.
func (m *Model) ValueAt(r, c int) string {
	if r < 0 || r >= len(m.rows) || c < 0 {
		return ""
	}
	if c == 0 {
		return m.rows[r].Surface
	}
	if c-1 < len(m.rendered[r]) {
		return m.rendered[r][c-1]
	}
	return ""
}

// Rows returns a snapshot of the displayed table.
func (m *Model) Rows() []Row {
	out := make([]Row, len(m.rows))
	for i, r := range m.rows {
		out[i] = Row{
			Start:   r.Start,
			End:     r.End,
			Surface: r.Surface,
			Cells:   append([]string(nil), m.rendered[i]...),
		}
	}
	return out
}

// Matrix returns the table as rows of columnCount cells.
func (m *Model) Matrix() [][]string {
	out := make([][]string, len(m.rows))
	for r := range m.rows {
		line := make([]string, m.columns)
		for c := range line {
			line[c] = m.ValueAt(r, c)
		}
		out[r] = line
	}
	return out
}

// ExportPOSList writes one line per row with the tags of the first displayed
// interpretation. delafStyle writes form,lemma.POS+traits:inflection,
// otherwise form/POS. Raw tokens are written as is.
func (m *Model) ExportPOSList(w io.Writer, delafStyle bool) error {
	bw := bufio.NewWriter(w)
	for _, r := range m.rows {
		in, ok := m.firstDisplayed(r)
		if !ok {
			continue
		}
		parts := make([]string, 0, len(in.Tags))
		for _, t := range in.Tags {
			if !m.filter.Keep(t) {
				continue
			}
			switch {
			case !t.IsLexical():
				parts = append(parts, t.Raw)
			case delafStyle:
				parts = append(parts, t.Delaf())
			default:
				parts = append(parts, t.Surface+"/"+t.POS)
			}
		}
		if _, err := bw.WriteString(strings.Join(parts, " ") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (m *Model) firstDisplayed(r interp.Row) (interp.Interpretation, bool) {
	for _, in := range r.Interpretations {
		if m.filter.RenderInterpretation(in) != "" {
			return in, true
		}
	}
	return interp.Interpretation{}, false
}
