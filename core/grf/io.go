package grf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/tfst"
	"github.com/FocuswithJustin/tfstbench/internal/fileutil"
	"github.com/FocuswithJustin/tfstbench/internal/logging"
)

const boundsSection = "#BOUNDS"

// Load reads a graph file. With keepEmptyGraphOnError, any failure yields an
// empty graph and a nil error; the failure is logged and kept in Warnings.
// With strict, an unreachable box is an error instead of a warning.
func Load(path string, keepEmptyGraphOnError, strict bool) (*Document, error) {
	doc, err := load(path, strict)
	if err != nil {
		if !keepEmptyGraphOnError {
			return nil, err
		}
		logging.Warn("graph_load_failed", "path", path, "error", err)
		empty := New()
		empty.Warnings = []string{err.Error()}
		return empty, nil
	}
	logging.GraphLoaded(path, len(doc.Boxes), string(doc.Encoding), "warnings", len(doc.Warnings))
	for _, w := range doc.Warnings {
		logging.Warn("graph_load_warning", "path", path, "warning", w)
	}
	return doc, nil
}

func load(path string, strict bool) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tfsterrors.NewIO("read", path, err)
	}
	return Parse(data, path, strict)
}

// Read parses a graph from r; name is used in error messages.
func Read(r io.Reader, name string, strict bool) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, tfsterrors.NewIO("read", name, err)
	}
	return Parse(data, name, strict)
}

// Parse decodes raw file bytes into a Document.
func Parse(data []byte, name string, strict bool) (*Document, error) {
	text, enc, err := Decode(data)
	if err != nil {
		return nil, tfsterrors.NewMalformed(name, 0, tfsterrors.KindEncoding, err.Error())
	}
	p := &parser{name: name, lines: strings.Split(text, "\n")}
	doc, err := p.parse()
	if err != nil {
		return nil, err
	}
	doc.Encoding = enc
	if err := doc.validate(name, strict); err != nil {
		return nil, err
	}
	return doc, nil
}

type parser struct {
	name  string
	lines []string
	pos   int
}

func (p *parser) next() (string, int, bool) {
	if p.pos >= len(p.lines) {
		return "", p.pos, false
	}
	line := strings.TrimRight(p.lines[p.pos], "\r")
	p.pos++
	return line, p.pos, true
}

func (p *parser) malformed(line int, kind tfsterrors.GraphErrorKind, format string, args ...any) error {
	return tfsterrors.NewMalformed(p.name, line, kind, fmt.Sprintf(format, args...))
}

func (p *parser) parse() (*Document, error) {
	doc := &Document{}

	first, _, ok := p.next()
	if !ok || !strings.HasPrefix(first, "#") {
		return nil, p.malformed(1, tfsterrors.KindHeader, "missing #<version> line")
	}
	doc.Header.Version = strings.TrimPrefix(first, "#")

	for {
		line, n, ok := p.next()
		if !ok {
			return nil, p.malformed(n, tfsterrors.KindHeader, "unterminated header block")
		}
		if line == "#" {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		doc.Header.Entries = append(doc.Header.Entries, HeaderEntry{Key: key, Value: value})
	}

	countLine, n, ok := p.next()
	if !ok {
		return nil, p.malformed(n, tfsterrors.KindHeader, "missing box count")
	}
	count, err := strconv.Atoi(strings.TrimSpace(countLine))
	if err != nil || count < 0 {
		return nil, p.malformed(n, tfsterrors.KindHeader, "bad box count %q", countLine)
	}

	doc.Boxes = make([]Box, 0, count)
	for i := 0; i < count; i++ {
		line, n, ok := p.next()
		if !ok {
			return nil, p.malformed(n, tfsterrors.KindBox, "expected %d boxes, found %d", count, i)
		}
		box, err := parseBoxLine(line)
		if err != nil {
			return nil, p.malformed(n, tfsterrors.KindBox, "%v", err)
		}
		doc.Boxes = append(doc.Boxes, box)
	}

	parallel := false
	for {
		line, n, ok := p.next()
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !parallel {
			if line != boundsSection {
				return nil, p.malformed(n, tfsterrors.KindBox, "unexpected content after box records: %q", line)
			}
			parallel = true
			continue
		}
		if err := doc.parseParallelBounds(line); err != nil {
			return nil, p.malformed(n, tfsterrors.KindBox, "%v", err)
		}
	}

	if parallel {
		doc.BoundsForm = BoundsParallel
	} else {
		doc.BoundsForm = BoundsSuffix
		for i := range doc.Boxes {
			b := &doc.Boxes[i]
			if b.Type != Normal {
				continue
			}
			if content, bounds, ok := tfst.SplitBoundsSuffix(b.Content); ok {
				b.Content = content
				b.Bounds = &bounds
			}
		}
	}
	return doc, nil
}

func (d *Document) parseParallelBounds(line string) error {
	idText, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	id, err := strconv.Atoi(idText)
	if err != nil {
		return fmt.Errorf("bad box id %q in bounds section", idText)
	}
	if id < 0 || id >= len(d.Boxes) {
		return fmt.Errorf("bounds for unknown box %d", id)
	}
	b, err := tfst.ParseBounds(rest)
	if err != nil {
		return fmt.Errorf("box %d: %v", id, err)
	}
	d.Boxes[id].Bounds = &b
	return nil
}

// parseBoxLine parses `"content" type x y n t1 ... tn`.
func parseBoxLine(line string) (Box, error) {
	if !strings.HasPrefix(line, `"`) {
		return Box{}, fmt.Errorf("box record must start with a quoted content")
	}
	var sb strings.Builder
	i := 1
	closed := false
	for i < len(line) {
		c := line[i]
		if c == '\\' && i+1 < len(line) && (line[i+1] == '"' || line[i+1] == '\\') {
			sb.WriteByte(line[i+1])
			i += 2
			continue
		}
		if c == '"' {
			closed = true
			i++
			break
		}
		sb.WriteByte(c)
		i++
	}
	if !closed {
		return Box{}, fmt.Errorf("missing closing quote")
	}

	fields := strings.Fields(line[i:])
	if len(fields) < 4 {
		return Box{}, fmt.Errorf("box record needs type, x, y and transition count")
	}
	nums := make([]int, len(fields))
	for j, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Box{}, fmt.Errorf("field %d: %q is not an integer", j+1, f)
		}
		nums[j] = v
	}
	typ := BoxType(nums[0])
	if typ != Initial && typ != Final && typ != Normal {
		return Box{}, fmt.Errorf("unknown box type %d", nums[0])
	}
	nTrans := nums[3]
	if nTrans < 0 || len(nums) != 4+nTrans {
		return Box{}, fmt.Errorf("transition count %d does not match %d listed targets", nTrans, len(nums)-4)
	}
	return Box{
		Content:     sb.String(),
		Type:        typ,
		X:           nums[1],
		Y:           nums[2],
		Transitions: append([]int{}, nums[4:]...),
	}, nil
}

// validate checks terminal boxes, transition targets and reachability.
func (d *Document) validate(name string, strict bool) error {
	initials, finals := 0, 0
	for i := range d.Boxes {
		switch d.Boxes[i].Type {
		case Initial:
			initials++
		case Final:
			finals++
		}
	}
	if initials != 1 || finals != 1 {
		return tfsterrors.NewMalformed(name, 0, tfsterrors.KindTerminal,
			fmt.Sprintf("need exactly one initial and one final box, found %d and %d", initials, finals))
	}
	for i := range d.Boxes {
		for _, t := range d.Boxes[i].Transitions {
			if t < 0 || t >= len(d.Boxes) {
				return tfsterrors.NewMalformed(name, 0, tfsterrors.KindTransition,
					fmt.Sprintf("transition %d->%d out of range", i, t))
			}
		}
	}

	fromInitial, toFinal := d.Reachability()
	for i := range d.Boxes {
		b := &d.Boxes[i]
		if b.Type != Normal {
			continue
		}
		if b.Content == "" {
			d.Warnings = append(d.Warnings, fmt.Sprintf("box %d has empty content", i))
		}
		var msg string
		switch {
		case !fromInitial[i]:
			msg = fmt.Sprintf("box %d is not reachable from the initial box", i)
		case !toFinal[i]:
			msg = fmt.Sprintf("box %d does not reach the final box", i)
		default:
			continue
		}
		if strict {
			return tfsterrors.NewMalformed(name, 0, tfsterrors.KindReach, msg)
		}
		d.Warnings = append(d.Warnings, msg)
	}
	return nil
}

// Save writes doc to path atomically in the document's encoding.
func Save(doc *Document, path string) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(path, data, 0644); err != nil {
		return tfsterrors.NewIO("write", path, err)
	}
	logging.GraphSaved(path, len(doc.Boxes))
	return nil
}

// Write serializes doc to w.
func Write(w io.Writer, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Marshal renders doc in its recorded encoding.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("#" + doc.Header.Version + "\n")
	for _, e := range doc.Header.Entries {
		if e.Value == "" {
			buf.WriteString(e.Key + "\n")
			continue
		}
		buf.WriteString(e.Key + " " + e.Value + "\n")
	}
	buf.WriteString("#\n")
	buf.WriteString(strconv.Itoa(len(doc.Boxes)) + "\n")

	for i := range doc.Boxes {
		b := &doc.Boxes[i]
		content := b.Content
		if b.Bounds != nil && doc.BoundsForm == BoundsSuffix {
			content = tfst.JoinBoundsSuffix(content, *b.Bounds)
		}
		buf.WriteByte('"')
		buf.WriteString(escapeContent(content))
		buf.WriteByte('"')
		fmt.Fprintf(&buf, " %d %d %d %d", int(b.Type), b.X, b.Y, len(b.Transitions))
		for _, t := range b.Transitions {
			fmt.Fprintf(&buf, " %d", t)
		}
		buf.WriteByte('\n')
	}

	if doc.BoundsForm == BoundsParallel && doc.HasBounds() {
		buf.WriteString(boundsSection + "\n")
		for i := range doc.Boxes {
			if b := doc.Boxes[i].Bounds; b != nil {
				fmt.Fprintf(&buf, "%d %s\n", i, b.String())
			}
		}
	}

	enc := doc.Encoding
	if enc == "" {
		enc = UTF16LE
	}
	out, err := Encode(buf.String(), enc)
	if err != nil {
		return nil, tfsterrors.NewMalformed("", 0, tfsterrors.KindEncoding, err.Error())
	}
	return out, nil
}

func escapeContent(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(s)
}
