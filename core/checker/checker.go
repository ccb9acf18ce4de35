// Package checker reports structural and text-consistency problems of a
// sentence automaton before it is saved.
package checker

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/tfstbench/core/grf"
	"github.com/FocuswithJustin/tfstbench/core/interp"
	"github.com/FocuswithJustin/tfstbench/core/tfst"
)

// Rule identifiers.
const (
	RuleEmptyState       = "E-empty-state"
	RuleNoOutgoing       = "E-no-outgoing"
	RuleFinalHasOutgoing = "E-final-has-outgoing"
	RuleInitialBadTarget = "E-initial-bad-target"
	RuleTokenNotInText   = "W-token-not-in-text"
	RuleAdjacentBounds   = "W-adjacent-bounds"
)

const (
	statusOK       = "ok"
	statusErrors   = "errors"
	statusWarnings = "warnings"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one finding. Target is the destination box of the offending
// transition, or -1.
type Diagnostic struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Box      int      `json:"box"`
	Target   int      `json:"target"`
	Message  string   `json:"message"`
}

// Report is the outcome of a check. ErrorCount excludes warnings.
type Report struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
	ErrorCount  int          `json:"error_count"`
	Status      string       `json:"status"`
}

// Messages returns the diagnostics as display strings, in order.
func (r *Report) Messages() []string {
	out := make([]string, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		out[i] = d.Message
	}
	return out
}

// OK reports whether the check found nothing at all.
func (r *Report) OK() bool {
	return len(r.Diagnostics) == 0
}

// ToJSON serializes the report.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func (r *Report) add(rule string, sev Severity, box, target int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if sev == SeverityError {
		r.ErrorCount++
		msg = "Error: " + msg
	} else {
		msg = "Warning: " + msg
	}
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Rule: rule, Severity: sev, Box: box, Target: target, Message: msg})
}

// Check inspects doc against the sentence text. tokens may be nil, in which
// case the whitespace test of W-adjacent-bounds is skipped. Boxes are visited
// in id order and transitions in stored order.
func Check(doc *grf.Document, text string, tokens *tfst.TokensInfo) *Report {
	r := &Report{Diagnostics: []Diagnostic{}}
	for id := range doc.Boxes {
		b := &doc.Boxes[id]
		label := b.Tag().Form()
		switch b.Type {
		case grf.Normal:
			if b.IsEpsilon() {
				r.add(RuleEmptyState, SeverityError, id, -1, "the box %d is empty", id)
			}
			if len(b.Transitions) == 0 {
				r.add(RuleNoOutgoing, SeverityError, id, -1, "the box %q has no outgoing transition", label)
			}
			if b.Modified && !b.IsEpsilon() && !strings.Contains(text, label) {
				r.add(RuleTokenNotInText, SeverityWarning, id, -1, "the token %q is not in the sentence", label)
			}
			for _, dst := range b.Transitions {
				checkAdjacent(r, doc, id, dst, tokens)
			}
		case grf.Final:
			if len(b.Transitions) > 0 {
				r.add(RuleFinalHasOutgoing, SeverityError, id, -1, "the last box must not have outgoing transition(s)")
			}
		case grf.Initial:
			for _, dst := range b.Transitions {
				if dst < 0 || dst >= len(doc.Boxes) {
					continue
				}
				next := &doc.Boxes[dst]
				if next.Type == grf.Normal && (next.Bounds == nil || next.Bounds.StartInTokens != 0) {
					r.add(RuleInitialBadTarget, SeverityError, id, dst, "the first box has an incorrect outgoing transition to box %d", dst)
				}
			}
		}
	}
	switch {
	case r.ErrorCount > 0:
		r.Status = statusErrors
	case len(r.Diagnostics) > 0:
		r.Status = statusWarnings
	default:
		r.Status = statusOK
	}
	return r
}

func checkAdjacent(r *Report, doc *grf.Document, src, dst int, tokens *tfst.TokensInfo) {
	if dst < 0 || dst >= len(doc.Boxes) {
		return
	}
	a, b := &doc.Boxes[src], &doc.Boxes[dst]
	if b.Type != grf.Normal || a.Bounds == nil || b.Bounds == nil || interp.SameToken(a, b) {
		return
	}
	gap := b.Bounds.StartInTokens - a.Bounds.EndInTokens
	switch gap {
	case 1:
		return
	case 2:
		if tokens == nil {
			return
		}
		between, ok := tokens.Between(a.Bounds.EndInTokens, b.Bounds.StartInTokens)
		if ok && isSingleSpace(between) {
			return
		}
		r.add(RuleAdjacentBounds, SeverityWarning, src, dst,
			"the boxes %q and %q are separated by %q instead of one whitespace",
			a.Tag().Form(), b.Tag().Form(), between)
	default:
		r.add(RuleAdjacentBounds, SeverityWarning, src, dst,
			"the boxes %q and %q have inconsistent token bounds (gap %d)",
			a.Tag().Form(), b.Tag().Form(), gap)
	}
}

func isSingleSpace(s string) bool {
	runes := []rune(s)
	return len(runes) == 1 && unicode.IsSpace(runes[0])
}
