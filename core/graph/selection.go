package graph

import (
	"sort"

	"github.com/FocuswithJustin/tfstbench/core/grf"
)

// Select marks one box as selected.
func (m *Model) Select(id int) {
	if m.valid(id) && !m.doc.Boxes[id].Selected {
		m.doc.Boxes[id].Selected = true
		m.emit(Change{Kind: Data, Modified: m.modified})
	}
}

// Selection returns the ids of the selected boxes in ascending order.
func (m *Model) Selection() []int {
	var ids []int
	for i := range m.doc.Boxes {
		if m.doc.Boxes[i].Selected {
			ids = append(ids, i)
		}
	}
	return ids
}

// SelectAll selects every box.
func (m *Model) SelectAll() {
	m.setSelection(func(int, *grf.Box) bool { return true })
}

// UnselectAll clears the selection.
func (m *Model) UnselectAll() {
	m.setSelection(func(int, *grf.Box) bool { return false })
}

// SelectByRectangle selects the boxes whose anchor point lies in the
// rectangle, adding to the current selection.
func (m *Model) SelectByRectangle(x, y, w, h int) {
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	m.setSelection(func(_ int, b *grf.Box) bool {
		return b.Selected || (b.X >= x && b.X <= x+w && b.Y >= y && b.Y <= y+h)
	})
}

func (m *Model) setSelection(pick func(int, *grf.Box) bool) {
	changed := false
	for i := range m.doc.Boxes {
		b := &m.doc.Boxes[i]
		if sel := pick(i, b); sel != b.Selected {
			b.Selected = sel
			changed = true
		}
	}
	if changed {
		m.emit(Change{Kind: Data, Modified: m.modified})
	}
}

// SetSentence records the sentence the model currently shows. State
// selections are kept per sentence.
func (m *Model) SetSentence(n int) {
	m.sentence = n
}

// Sentence returns the current sentence number, 0 when unset.
func (m *Model) Sentence() int {
	return m.sentence
}

// TogglePreferred adds or removes a box from the preferred set of the
// current sentence.
func (m *Model) TogglePreferred(id int) {
	if !m.valid(id) || m.doc.Boxes[id].Type != grf.Normal {
		return
	}
	set := m.states[m.sentence]
	if set == nil {
		set = make(map[int]bool)
		m.states[m.sentence] = set
	}
	if set[id] {
		delete(set, id)
	} else {
		set[id] = true
	}
	m.emit(Change{Kind: Data, Modified: m.modified})
}

// Preferred returns the preferred boxes of the current sentence.
func (m *Model) Preferred() []int {
	ids := make([]int, 0, len(m.states[m.sentence]))
	for id := range m.states[m.sentence] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ClearStateSelection discards the preferred set of a sentence. It only
// touches transient state.
func (m *Model) ClearStateSelection(sentence int) {
	if len(m.states[sentence]) == 0 {
		return
	}
	delete(m.states, sentence)
	if sentence == m.sentence {
		m.emit(Change{Kind: Data, Modified: m.modified})
	}
}

// NotPreferred returns the greyed boxes: NORMAL boxes that are not preferred
// themselves but whose token span overlaps a preferred box.
func (m *Model) NotPreferred() []int {
	set := m.states[m.sentence]
	if len(set) == 0 {
		return nil
	}
	var grey []int
	for i := range m.doc.Boxes {
		b := &m.doc.Boxes[i]
		if b.Type != grf.Normal || b.Bounds == nil || set[i] {
			continue
		}
		for p := range set {
			pb := m.doc.Boxes[p].Bounds
			if pb != nil && pb.Overlaps(*b.Bounds) {
				grey = append(grey, i)
				break
			}
		}
	}
	return grey
}

// RemoveNotPreferred removes every greyed box as one undoable edit. The
// preferred boxes survive the removal and keep their place in the state
// selection.
func (m *Model) RemoveNotPreferred() int {
	grey := m.NotPreferred()
	if len(grey) == 0 {
		return 0
	}
	return m.RemoveBoxes(grey)
}

// remapPreferred follows the preferred boxes of the current sentence across
// an applied (forward) or reverted edit. Boxes that no longer exist leave
// the set.
func (m *Model) remapPreferred(e edit, forward bool) {
	set := m.states[m.sentence]
	if len(set) == 0 {
		return
	}
	next := make(map[int]bool, len(set))
	for id := range set {
		if n, ok := renumber(e, id, forward); ok && m.valid(n) && m.doc.Boxes[n].Type == grf.Normal {
			next[n] = true
		}
	}
	m.states[m.sentence] = next
}
