// Package table projects the interpretations of a sentence automaton into a
// filtered, ragged table: one row per token sequence, one column per reading.
package table

import (
	"fmt"
	"regexp"
	"strings"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/interp"
	"github.com/FocuswithJustin/tfstbench/core/tfst"
)

// FilterMode selects which part of each tag is displayed.
type FilterMode int

const (
	// ShowAll keeps every tag as is.
	ShowAll FilterMode = iota
	// OnlyPOS keeps only the POS category of lexical tags.
	OnlyPOS
	// Regex keeps the tags whose serialized form matches a pattern.
	Regex
)

func (m FilterMode) String() string {
	switch m {
	case ShowAll:
		return "all"
	case OnlyPOS:
		return "pos"
	case Regex:
		return "regex"
	default:
		return fmt.Sprintf("FilterMode(%d)", int(m))
	}
}

// ParseFilterMode maps "all", "pos" or "regex" to a FilterMode.
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return ShowAll, nil
	case "pos":
		return OnlyPOS, nil
	case "regex":
		return Regex, nil
	}
	return ShowAll, fmt.Errorf("%w: unknown filter mode %q", tfsterrors.ErrInvalidInput, s)
}

// TagFilter decides how each tag of an interpretation is displayed.
type TagFilter struct {
	mode          FilterMode
	pattern       *regexp.Regexp
	alwaysShowPOS bool
	listeners     []func()
}

// NewTagFilter returns a ShowAll filter.
func NewTagFilter() *TagFilter {
	return &TagFilter{}
}

// Mode returns the current mode.
func (f *TagFilter) Mode() FilterMode {
	return f.mode
}

// OnChange registers a callback run after every configuration change.
func (f *TagFilter) OnChange(fn func()) {
	f.listeners = append(f.listeners, fn)
}

// Set reconfigures the filter and notifies listeners. The pattern is only
// used in Regex mode; alwaysShowPOS re-admits the POS of a rejected tag.
// An invalid pattern leaves the filter unchanged.
func (f *TagFilter) Set(mode FilterMode, pattern string, alwaysShowPOS bool) error {
	var re *regexp.Regexp
	if mode == Regex {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: bad tag pattern: %v", tfsterrors.ErrInvalidInput, err)
		}
	}
	f.mode = mode
	f.pattern = re
	f.alwaysShowPOS = alwaysShowPOS
	for _, fn := range f.listeners {
		fn()
	}
	return nil
}

// Render returns the displayed form of a tag and whether it is kept.
func (f *TagFilter) Render(t tfst.Tag) (string, bool) {
	switch f.mode {
	case OnlyPOS:
		if t.IsLexical() {
			return t.POS, true
		}
		return t.Raw, t.Raw != ""
	case Regex:
		s := t.String()
		if f.pattern.MatchString(s) {
			return s, true
		}
		if f.alwaysShowPOS && t.IsLexical() {
			return t.POS, true
		}
		return "", false
	default:
		return t.String(), true
	}
}

// Keep reports whether a tag survives the filter.
func (f *TagFilter) Keep(t tfst.Tag) bool {
	_, ok := f.Render(t)
	return ok
}

// RenderInterpretation joins the kept tags of in with spaces.
func (f *TagFilter) RenderInterpretation(in interp.Interpretation) string {
	parts := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if s, ok := f.Render(t); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
