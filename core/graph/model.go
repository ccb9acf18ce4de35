// Package graph is the editable in-memory model of a graph document: box and
// transition mutations, selection, an unbounded undo/redo journal and typed
// change notifications.
package graph

import (
	"cmp"
	"fmt"
	"slices"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/grf"
	"github.com/FocuswithJustin/tfstbench/core/tfst"
	"github.com/FocuswithJustin/tfstbench/internal/logging"
)

// Mode is the interaction mode of the editor.
type Mode int

const (
	// ModeNormal is the default editing mode.
	ModeNormal Mode = iota
	// ModeLinkBoxes links the selection to a clicked box. The FINAL box
	// can never be a source in this mode.
	ModeLinkBoxes
)

// Model owns a document and every mutation applied to it.
// It is not safe for concurrent use.
type Model struct {
	doc      *grf.Document
	journal  journal
	mode     Mode
	modified bool

	observers   []Observer
	pending     []Change
	dispatching bool

	// drag accumulates transient single-box moves until CommitTranslate.
	drag map[int][2]int

	sentence int
	states   map[int]map[int]bool
}

// New wraps doc. The model takes ownership of the document.
func New(doc *grf.Document) *Model {
	if doc == nil {
		doc = grf.New()
	}
	return &Model{
		doc:    doc,
		drag:   make(map[int][2]int),
		states: make(map[int]map[int]bool),
	}
}

// Document returns the underlying document. Callers must not mutate it.
func (m *Model) Document() *grf.Document {
	return m.doc
}

// Len returns the number of boxes.
func (m *Model) Len() int {
	return len(m.doc.Boxes)
}

// Box returns a copy of box id.
func (m *Model) Box(id int) (grf.Box, bool) {
	if !m.valid(id) {
		return grf.Box{}, false
	}
	b := m.doc.Boxes[id]
	b.Transitions = append([]int(nil), b.Transitions...)
	return b, true
}

// SetMode switches the interaction mode.
func (m *Model) SetMode(mode Mode) {
	m.mode = mode
}

// Modified reports whether the document changed since load or the last MarkSaved.
func (m *Model) Modified() bool {
	return m.modified
}

// MarkSaved clears the modified flag.
func (m *Model) MarkSaved() {
	if m.modified {
		m.modified = false
		m.emit(Change{Kind: ModifiedFlag, Modified: false})
	}
}

// Reset replaces the document and empties the journal, as done on every load.
func (m *Model) Reset(doc *grf.Document) {
	if doc == nil {
		doc = grf.New()
	}
	m.doc = doc
	m.journal.reset()
	m.drag = make(map[int][2]int)
	m.modified = false
	m.emit(Change{Kind: Structural})
}

func (m *Model) valid(id int) bool {
	return id >= 0 && id < len(m.doc.Boxes)
}

// commit applies e, journals it and notifies observers: data first, then the
// modified flag.
func (m *Model) commit(e edit, boxes int) {
	m.CommitTranslate()
	e.apply(m.doc)
	m.remapPreferred(e, true)
	m.journal.push(e)
	logging.EditApplied(string(e.kind()), boxes, "sentence", m.sentence)
	m.changed(e)
}

func (m *Model) changed(e edit) {
	m.modified = true
	batch := make([]Change, 0, 3)
	if e.structural() {
		batch = append(batch, Change{Kind: Structural, Modified: true})
	}
	batch = append(batch, Change{Kind: Data, Modified: true}, Change{Kind: ModifiedFlag, Modified: true})
	m.emit(batch...)
}

// AddBox adds a box and returns its id. An empty content becomes the epsilon
// marker. A second INITIAL or FINAL box is refused.
func (m *Model) AddBox(x, y int, typ grf.BoxType, content string) (int, error) {
	if (typ == grf.Initial && m.doc.Initial() >= 0) || (typ == grf.Final && m.doc.Final() >= 0) {
		return -1, fmt.Errorf("%w: graph already has a %s box", tfsterrors.ErrInvalidInput, typ)
	}
	if content == "" && typ == grf.Normal {
		content = tfst.EpsilonContent
	}
	id := len(m.doc.Boxes)
	m.commit(&addBoxEdit{box: grf.Box{Content: content, Type: typ, X: x, Y: y, Transitions: []int{}, Modified: true}}, 1)
	return id, nil
}

// RemoveBoxes removes boxes with every incident transition as one undoable
// edit. INITIAL and FINAL boxes are skipped. It returns the number removed.
func (m *Model) RemoveBoxes(ids []int) int {
	var keep []int
	for _, id := range sortedUnique(ids) {
		if m.valid(id) && m.doc.Boxes[id].Type == grf.Normal {
			keep = append(keep, id)
		}
	}
	if len(keep) == 0 {
		return 0
	}
	m.commit(&removeBoxesEdit{ids: keep}, len(keep))
	return len(keep)
}

// RemoveSelected removes the selected boxes.
func (m *Model) RemoveSelected() int {
	return m.RemoveBoxes(m.Selection())
}

// Translate moves boxes as one undoable step.
func (m *Model) Translate(ids []int, dx, dy int) bool {
	var keep []int
	for _, id := range sortedUnique(ids) {
		if m.valid(id) {
			keep = append(keep, id)
		}
	}
	if len(keep) == 0 || (dx == 0 && dy == 0) {
		return false
	}
	m.commit(&translateEdit{ids: keep, dx: dx, dy: dy}, len(keep))
	return true
}

// TranslateSingle moves one box during a drag. The move is not journaled
// until CommitTranslate.
func (m *Model) TranslateSingle(id, dx, dy int) {
	if !m.valid(id) {
		return
	}
	m.doc.Boxes[id].X += dx
	m.doc.Boxes[id].Y += dy
	acc := m.drag[id]
	m.drag[id] = [2]int{acc[0] + dx, acc[1] + dy}
	m.emit(Change{Kind: Data, Modified: m.modified})
}

// CommitTranslate ends a drag: the accumulated moves become one TranslateGroup
// edit. Boxes moved by different amounts are grouped per displacement inside
// a single compound edit. It returns false when nothing moved.
func (m *Model) CommitTranslate() bool {
	if len(m.drag) == 0 {
		return false
	}
	groups := make(map[[2]int][]int)
	for id, d := range m.drag {
		if d != [2]int{} {
			groups[d] = append(groups[d], id)
		}
	}
	m.drag = make(map[int][2]int)
	if len(groups) == 0 {
		return false
	}
	c := &compoundEdit{}
	moved := 0
	for _, d := range sortedDisplacements(groups) {
		ids := sortedUnique(groups[d])
		moved += len(ids)
		c.edits = append(c.edits, &translateEdit{ids: ids, dx: d[0], dy: d[1]})
	}
	// the boxes already sit at their final position
	m.journal.push(c)
	logging.EditApplied(string(c.kind()), moved, "sentence", m.sentence)
	m.changed(c)
	return true
}

// SetContent replaces the content of a box and marks it modified.
func (m *Model) SetContent(id int, text string) bool {
	if !m.valid(id) || m.doc.Boxes[id].Content == text {
		return false
	}
	b := &m.doc.Boxes[id]
	m.commit(&contentEdit{id: id, oldText: b.Content, newText: text, oldModified: b.Modified}, 1)
	return true
}

// AddTransition adds src->dst. Duplicates are a no-op.
func (m *Model) AddTransition(src, dst int) bool {
	if !m.linkable(src, dst) {
		return false
	}
	m.commit(&addTransitionEdit{src: src, dst: dst}, 1)
	return true
}

// RemoveTransition removes src->dst.
func (m *Model) RemoveTransition(src, dst int) bool {
	if !m.valid(src) || !m.valid(dst) {
		return false
	}
	for pos, t := range m.doc.Boxes[src].Transitions {
		if t == dst {
			m.commit(&removeTransitionEdit{src: src, dst: dst, pos: pos}, 1)
			return true
		}
	}
	return false
}

func (m *Model) linkable(src, dst int) bool {
	if !m.valid(src) || !m.valid(dst) {
		return false
	}
	if m.mode == ModeLinkBoxes && m.doc.Boxes[src].Type == grf.Final {
		return false
	}
	return !m.doc.Boxes[src].HasTransition(dst)
}

// LinkFromSelectionTo adds s->target for every selected box s. With
// directed=false, target->s is added as well. It returns the number of
// transitions added.
func (m *Model) LinkFromSelectionTo(target int, directed bool) int {
	return m.linkSelection(target, true, !directed)
}

// ReverseLinkFromSelectionTo adds target->s for every selected box s.
func (m *Model) ReverseLinkFromSelectionTo(target int) int {
	return m.linkSelection(target, false, true)
}

func (m *Model) linkSelection(target int, forward, backward bool) int {
	if !m.valid(target) {
		return 0
	}
	m.CommitTranslate()
	c := &compoundEdit{}
	for _, s := range m.Selection() {
		if forward && m.linkable(s, target) {
			e := &addTransitionEdit{src: s, dst: target}
			e.apply(m.doc)
			c.edits = append(c.edits, e)
		}
		if backward && m.linkable(target, s) {
			e := &addTransitionEdit{src: target, dst: s, reverse: true}
			e.apply(m.doc)
			c.edits = append(c.edits, e)
		}
	}
	if len(c.edits) == 0 {
		return 0
	}
	m.journal.push(c)
	logging.EditApplied(string(c.kind()), len(c.edits), "sentence", m.sentence)
	m.changed(c)
	return len(c.edits)
}

// CanUndo reports whether there is an edit to undo.
func (m *Model) CanUndo() bool { return len(m.journal.undo) > 0 }

// CanRedo reports whether there is an edit to redo.
func (m *Model) CanRedo() bool { return len(m.journal.redo) > 0 }

// UndoTop returns the kind of the edit Undo would revert.
func (m *Model) UndoTop() (EditKind, bool) {
	if len(m.journal.undo) == 0 {
		return "", false
	}
	return m.journal.undo[len(m.journal.undo)-1].kind(), true
}

// RedoTop returns the kind of the edit Redo would reapply.
func (m *Model) RedoTop() (EditKind, bool) {
	if len(m.journal.redo) == 0 {
		return "", false
	}
	return m.journal.redo[len(m.journal.redo)-1].kind(), true
}

// Undo reverts the most recent compound edit.
func (m *Model) Undo() bool {
	m.CommitTranslate()
	e, ok := m.journal.popUndo()
	if !ok {
		return false
	}
	e.revert(m.doc)
	m.remapPreferred(e, false)
	m.changed(e)
	return true
}

// Redo reapplies the most recently undone edit.
func (m *Model) Redo() bool {
	m.CommitTranslate()
	e, ok := m.journal.popRedo()
	if !ok {
		return false
	}
	e.apply(m.doc)
	m.remapPreferred(e, true)
	m.changed(e)
	return true
}

func sortedDisplacements(groups map[[2]int][]int) [][2]int {
	keys := make([][2]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b [2]int) int {
		return cmp.Or(cmp.Compare(a[0], b[0]), cmp.Compare(a[1], b[1]))
	})
	return keys
}
