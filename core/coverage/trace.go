package coverage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/grf"
	"github.com/FocuswithJustin/tfstbench/internal/logging"
)

// Trace is a DebugInfos read from a trace file:
//
//	#GRAPHS
//	main.grf
//	sub/det.grf
//	#MATCHES
//	le chat<TAB>1:0 1:2 2:0
//
// Graph paths are relative to the trace file. A match line holds the
// matched text, a tab, then graph:box pairs.
type Trace struct {
	Graphs  []string
	Matches []Match

	boxCounts []int
}

// Match is one line of the match section.
type Match struct {
	Text    string
	Details []Detail
}

// ReadTrace parses a trace. Box counts are resolved with ResolveBoxCounts.
func ReadTrace(r io.Reader) (*Trace, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	tr := &Trace{}
	section := ""
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		switch text {
		case "#GRAPHS", "#MATCHES":
			section = text
			continue
		case "":
			if section != "#MATCHES" {
				continue
			}
		}
		switch section {
		case "#GRAPHS":
			tr.Graphs = append(tr.Graphs, text)
		case "#MATCHES":
			m, err := parseMatch(text)
			if err != nil {
				return nil, fmt.Errorf("%w: trace line %d: %v", tfsterrors.ErrInvalidInput, line, err)
			}
			tr.Matches = append(tr.Matches, m)
		default:
			return nil, fmt.Errorf("%w: trace line %d: content before #GRAPHS", tfsterrors.ErrInvalidInput, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return tr, nil
}

func parseMatch(text string) (Match, error) {
	m := Match{}
	pairs := text
	if i := strings.IndexByte(text, '\t'); i >= 0 {
		m.Text, pairs = text[:i], text[i+1:]
	}
	for _, p := range strings.Fields(pairs) {
		gs, bs, ok := strings.Cut(p, ":")
		if !ok {
			return m, fmt.Errorf("bad detail %q", p)
		}
		g, err1 := strconv.Atoi(gs)
		b, err2 := strconv.Atoi(bs)
		if err1 != nil || err2 != nil {
			return m, fmt.Errorf("bad detail %q", p)
		}
		m.Details = append(m.Details, Detail{Graph: g, Box: b})
	}
	return m, nil
}

// LoadTrace reads a trace file and resolves its graphs relative to it.
func LoadTrace(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tfsterrors.NewIO("open", path, err)
	}
	defer f.Close()
	tr, err := ReadTrace(f)
	if err != nil {
		return nil, tfsterrors.Wrapf(err, "reading %s", path)
	}
	tr.ResolveBoxCounts(filepath.Dir(path))
	return tr, nil
}

// ResolveBoxCounts loads every graph to learn its box count. A graph that
// cannot be loaded counts 0 boxes.
func (t *Trace) ResolveBoxCounts(dir string) {
	t.boxCounts = make([]int, len(t.Graphs))
	for i, name := range t.Graphs {
		p := name
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		doc, err := grf.Load(p, false, false)
		if err != nil {
			logging.Warn("coverage_graph_unreadable", "graph", p, "error", err)
			continue
		}
		t.boxCounts[i] = len(doc.Boxes)
	}
}

// SetBoxCounts supplies box counts without reading graphs.
func (t *Trace) SetBoxCounts(counts []int) {
	t.boxCounts = append([]int(nil), counts...)
}

// GraphCount implements DebugInfos.
func (t *Trace) GraphCount() int { return len(t.Graphs) }

// BoxCount implements DebugInfos.
func (t *Trace) BoxCount(g int) int {
	if g < 1 || g > len(t.boxCounts) {
		return 0
	}
	return t.boxCounts[g-1]
}

// MatchCount implements DebugInfos.
func (t *Trace) MatchCount() int { return len(t.Matches) }

// MatchDetails implements DebugInfos.
func (t *Trace) MatchDetails(i int) []Detail {
	if i < 0 || i >= len(t.Matches) {
		return nil
	}
	return t.Matches[i].Details
}
