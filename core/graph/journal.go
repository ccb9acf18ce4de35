package graph

import (
	"sort"

	"github.com/FocuswithJustin/tfstbench/core/grf"
)

// EditKind names a journal entry.
type EditKind string

const (
	EditAddBox            EditKind = "add_box"
	EditRemoveBoxes       EditKind = "remove_boxes"
	EditTranslateGroup    EditKind = "translate_group"
	EditContentChange     EditKind = "content_change"
	EditAddTransition     EditKind = "add_transition"
	EditRemoveTransition  EditKind = "remove_transition"
	EditReverseTransition EditKind = "reverse_transition"
	EditCompound          EditKind = "compound"
)

// edit is a reversible change to a document.
type edit interface {
	apply(d *grf.Document)
	revert(d *grf.Document)
	kind() EditKind
	structural() bool
}

type addBoxEdit struct {
	box grf.Box
}

func (e *addBoxEdit) apply(d *grf.Document) {
	b := e.box
	b.Transitions = append([]int{}, e.box.Transitions...)
	d.Boxes = append(d.Boxes, b)
}

func (e *addBoxEdit) revert(d *grf.Document) { d.Boxes = d.Boxes[:len(d.Boxes)-1] }
func (e *addBoxEdit) kind() EditKind       { return EditAddBox }
func (e *addBoxEdit) structural() bool     { return true }

// cutEdge is a transition of a surviving box that pointed into the removed set.
type cutEdge struct {
	src, pos, dst int
}

type removeBoxesEdit struct {
	ids     []int // sorted, original ids
	removed []grf.Box
	cuts    []cutEdge
}

func (e *removeBoxesEdit) apply(d *grf.Document) {
	gone := make(map[int]bool, len(e.ids))
	for _, id := range e.ids {
		gone[id] = true
	}
	e.removed = e.removed[:0]
	e.cuts = e.cuts[:0]

	newIndex := make([]int, len(d.Boxes))
	next := 0
	for i := range d.Boxes {
		if gone[i] {
			newIndex[i] = -1
			e.removed = append(e.removed, d.Boxes[i])
			continue
		}
		newIndex[i] = next
		next++
	}

	kept := make([]grf.Box, 0, next)
	for i := range d.Boxes {
		if gone[i] {
			continue
		}
		b := d.Boxes[i]
		trans := make([]int, 0, len(b.Transitions))
		for pos, t := range b.Transitions {
			if gone[t] {
				e.cuts = append(e.cuts, cutEdge{src: i, pos: pos, dst: t})
				continue
			}
			trans = append(trans, newIndex[t])
		}
		b.Transitions = trans
		kept = append(kept, b)
	}
	d.Boxes = kept
}

func (e *removeBoxesEdit) revert(d *grf.Document) {
	total := len(d.Boxes) + len(e.removed)
	oldIndex := make([]int, 0, len(d.Boxes))
	restored := make([]grf.Box, total)
	gone := make(map[int]bool, len(e.ids))
	for k, id := range e.ids {
		gone[id] = true
		restored[id] = e.removed[k]
	}
	for i := 0; i < total; i++ {
		if !gone[i] {
			oldIndex = append(oldIndex, i)
		}
	}
	for newID, b := range d.Boxes {
		trans := make([]int, len(b.Transitions))
		for j, t := range b.Transitions {
			trans[j] = oldIndex[t]
		}
		b.Transitions = trans
		restored[oldIndex[newID]] = b
	}
	// cuts are recorded in ascending position order per source
	for _, c := range e.cuts {
		tr := restored[c.src].Transitions
		tr = append(tr, 0)
		copy(tr[c.pos+1:], tr[c.pos:])
		tr[c.pos] = c.dst
		restored[c.src].Transitions = tr
	}
	d.Boxes = restored
}

// renumber maps a box id across the edit: forward from the ids before the
// removal to the ids after it, backward the other way. A removed box has no
// forward id.
func (e *removeBoxesEdit) renumber(id int, forward bool) (int, bool) {
	if forward {
		i := sort.SearchInts(e.ids, id)
		if i < len(e.ids) && e.ids[i] == id {
			return 0, false
		}
		return id - i, true
	}
	for _, r := range e.ids {
		if r > id {
			break
		}
		id++
	}
	return id, true
}

func (e *removeBoxesEdit) kind() EditKind   { return EditRemoveBoxes }
func (e *removeBoxesEdit) structural() bool { return true }

type translateEdit struct {
	ids    []int
	dx, dy int
}

func (e *translateEdit) apply(d *grf.Document) {
	for _, id := range e.ids {
		d.Boxes[id].X += e.dx
		d.Boxes[id].Y += e.dy
	}
}

func (e *translateEdit) revert(d *grf.Document) {
	for _, id := range e.ids {
		d.Boxes[id].X -= e.dx
		d.Boxes[id].Y -= e.dy
	}
}

func (e *translateEdit) kind() EditKind   { return EditTranslateGroup }
func (e *translateEdit) structural() bool { return false }

type contentEdit struct {
	id          int
	oldText     string
	newText     string
	oldModified bool
}

func (e *contentEdit) apply(d *grf.Document) {
	d.Boxes[e.id].Content = e.newText
	d.Boxes[e.id].Modified = true
}

func (e *contentEdit) revert(d *grf.Document) {
	d.Boxes[e.id].Content = e.oldText
	d.Boxes[e.id].Modified = e.oldModified
}

func (e *contentEdit) kind() EditKind   { return EditContentChange }
func (e *contentEdit) structural() bool { return false }

type addTransitionEdit struct {
	src, dst int
	reverse  bool
}

func (e *addTransitionEdit) apply(d *grf.Document) {
	d.Boxes[e.src].Transitions = append(d.Boxes[e.src].Transitions, e.dst)
}

func (e *addTransitionEdit) revert(d *grf.Document) {
	tr := d.Boxes[e.src].Transitions
	d.Boxes[e.src].Transitions = tr[:len(tr)-1]
}

func (e *addTransitionEdit) kind() EditKind {
	if e.reverse {
		return EditReverseTransition
	}
	return EditAddTransition
}

func (e *addTransitionEdit) structural() bool { return true }

type removeTransitionEdit struct {
	src, dst, pos int
}

func (e *removeTransitionEdit) apply(d *grf.Document) {
	tr := d.Boxes[e.src].Transitions
	d.Boxes[e.src].Transitions = append(tr[:e.pos:e.pos], tr[e.pos+1:]...)
}

func (e *removeTransitionEdit) revert(d *grf.Document) {
	tr := d.Boxes[e.src].Transitions
	tr = append(tr, 0)
	copy(tr[e.pos+1:], tr[e.pos:])
	tr[e.pos] = e.dst
	d.Boxes[e.src].Transitions = tr
}

func (e *removeTransitionEdit) kind() EditKind   { return EditRemoveTransition }
func (e *removeTransitionEdit) structural() bool { return true }

// compoundEdit is one undoable step made of several edits.
type compoundEdit struct {
	edits []edit
}

func (c *compoundEdit) apply(d *grf.Document) {
	for _, e := range c.edits {
		e.apply(d)
	}
}

func (c *compoundEdit) revert(d *grf.Document) {
	for i := len(c.edits) - 1; i >= 0; i-- {
		c.edits[i].revert(d)
	}
}

// kind reports the kind shared by every part, or EditCompound for a mix.
func (c *compoundEdit) kind() EditKind {
	if len(c.edits) == 0 {
		return EditCompound
	}
	k := c.edits[0].kind()
	for _, e := range c.edits[1:] {
		if e.kind() != k {
			return EditCompound
		}
	}
	return k
}

func (c *compoundEdit) renumber(id int, forward bool) (int, bool) {
	ok := true
	if forward {
		for _, e := range c.edits {
			if id, ok = renumber(e, id, true); !ok {
				return 0, false
			}
		}
		return id, true
	}
	for i := len(c.edits) - 1; i >= 0; i-- {
		if id, ok = renumber(c.edits[i], id, false); !ok {
			return 0, false
		}
	}
	return id, true
}

func (c *compoundEdit) structural() bool {
	for _, e := range c.edits {
		if e.structural() {
			return true
		}
	}
	return false
}

// renumber maps a box id across e. Only removals shift ids.
func renumber(e edit, id int, forward bool) (int, bool) {
	switch e := e.(type) {
	case *removeBoxesEdit:
		return e.renumber(id, forward)
	case *compoundEdit:
		return e.renumber(id, forward)
	}
	return id, true
}

// journal is an unbounded undo/redo history.
type journal struct {
	undo []edit
	redo []edit
}

func (j *journal) push(e edit) {
	j.undo = append(j.undo, e)
	j.redo = j.redo[:0]
}

func (j *journal) popUndo() (edit, bool) {
	if len(j.undo) == 0 {
		return nil, false
	}
	e := j.undo[len(j.undo)-1]
	j.undo = j.undo[:len(j.undo)-1]
	j.redo = append(j.redo, e)
	return e, true
}

func (j *journal) popRedo() (edit, bool) {
	if len(j.redo) == 0 {
		return nil, false
	}
	e := j.redo[len(j.redo)-1]
	j.redo = j.redo[:len(j.redo)-1]
	j.undo = append(j.undo, e)
	return e, true
}

func (j *journal) reset() {
	j.undo = nil
	j.redo = nil
}

func sortedUnique(ids []int) []int {
	out := append([]int(nil), ids...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i > 0 && v == out[n-1] {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}
