// Package session drives one text automaton: it extracts sentences with the
// external tool, keeps the graph model, the table and the elag pane in step,
// and saves every edit as a per-sentence override.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/tfstbench/core/checker"
	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/graph"
	"github.com/FocuswithJustin/tfstbench/core/grf"
	"github.com/FocuswithJustin/tfstbench/core/persist"
	"github.com/FocuswithJustin/tfstbench/core/runner"
	"github.com/FocuswithJustin/tfstbench/core/table"
	"github.com/FocuswithJustin/tfstbench/core/tfst"
	"github.com/FocuswithJustin/tfstbench/internal/fileutil"
	"github.com/FocuswithJustin/tfstbench/internal/logging"
)

// Options configures a session.
type Options struct {
	SntDir   string // directory holding text.tfst
	ElagDir  string // directory holding tagset.def and elag.rul
	Font     string
	FontSize int
	// Strict makes unreachable boxes a load error.
	Strict bool
}

// Session is the state of an open text automaton. It is not safe for
// concurrent use.
type Session struct {
	opts    Options
	run     persist.Runner
	persist *persist.Controller

	model *graph.Model
	table *table.Model

	count      int
	current    int
	text       string
	tokens     *tfst.TokensInfo
	elag       *grf.Document
	overridden bool
}

// Open reads the sentence count of text.tfst. No sentence is loaded yet.
func Open(opts Options, r persist.Runner) (*Session, error) {
	s := &Session{
		opts:    opts,
		run:     r,
		persist: persist.New(opts.SntDir, opts.ElagDir, r),
		model:   graph.New(nil),
		table:   table.NewModel(table.NewTagFilter()),
	}
	if err := s.recount(); err != nil {
		return nil, err
	}
	s.model.AddObserver(graph.ObserverFunc(s.modelChanged))
	logging.Info("session_opened", "dir", opts.SntDir, "sentences", s.count)
	return s, nil
}

func (s *Session) recount() error {
	n, err := ReadSentenceCount(s.persist.Path(persist.TextTfst))
	if err != nil {
		return err
	}
	s.count = n
	return nil
}

// ReadSentenceCount returns the number on the first line of a text automaton.
func ReadSentenceCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, tfsterrors.NewIO("open", path, err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, tfsterrors.NewIO("read", path, err)
	}
	text, _, err := grf.Decode(buf[:n&^1])
	if err != nil {
		return 0, tfsterrors.NewMalformed(path, 1, tfsterrors.KindEncoding, err.Error())
	}
	first, _, _ := strings.Cut(text, "\n")
	count, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || count < 0 {
		return 0, tfsterrors.NewMalformed(path, 1, tfsterrors.KindHeader, fmt.Sprintf("bad sentence count %q", strings.TrimSpace(first)))
	}
	return count, nil
}

// modelChanged saves the sentence after every edit and refreshes the table.
func (s *Session) modelChanged(c graph.Change) {
	if c.Kind != graph.ModifiedFlag || !c.Modified || s.persist.Loading() || s.current == 0 {
		return
	}
	doc := s.model.Document()
	if s.persist.SaveSentence(s.current, doc) {
		s.overridden = true
	} else if err := s.persist.LastError(); err != nil {
		logging.Warn("sentence_not_saved", "sentence", s.current, "error", err)
	}
	if s.tokens != nil {
		if err := s.table.Init(doc, s.tokens); err != nil {
			logging.Warn("table_not_refreshed", "sentence", s.current, "error", err)
		}
	}
}

// SentenceCount returns the number of sentences of the automaton.
func (s *Session) SentenceCount() int { return s.count }

// Current returns the loaded sentence, 0 before the first load.
func (s *Session) Current() int { return s.current }

// Model returns the graph model of the current sentence.
func (s *Session) Model() *graph.Model { return s.model }

// Table returns the table of the current sentence.
func (s *Session) Table() *table.Model { return s.table }

// Persist returns the file controller.
func (s *Session) Persist() *persist.Controller { return s.persist }

// Text returns the surface of the current sentence.
func (s *Session) Text() string { return s.text }

// Tokens returns the tokens of the current sentence.
func (s *Session) Tokens() *tfst.TokensInfo { return s.tokens }

// Elag returns the current sentence of text-elag.tfst, or nil.
func (s *Session) Elag() *grf.Document { return s.elag }

// Overridden reports whether the current sentence differs from text.tfst,
// either loaded from or saved to its override file.
func (s *Session) Overridden() bool { return s.overridden }

// checkNoEmptyBoxes refuses to leave a graph that still holds empty boxes.
func (s *Session) checkNoEmptyBoxes() error {
	if s.current == 0 {
		return nil
	}
	if empty := s.model.Document().EmptyBoxes(); len(empty) > 0 {
		return tfsterrors.NewUser(persist.ErrEmptyBoxes)
	}
	return nil
}

// LoadSentence shows sentence n. It returns false without error when a load
// is already in progress. Switching away from a graph with empty boxes is
// refused.
func (s *Session) LoadSentence(ctx context.Context, n int) (bool, error) {
	if n < 1 || n > s.count {
		return false, fmt.Errorf("%w: sentence %d out of range 1..%d", tfsterrors.ErrInvalidInput, n, s.count)
	}
	if s.persist.Loading() {
		logging.Debug("load_dropped", "sentence", n)
		return false, nil
	}
	if n != s.current {
		if err := s.checkNoEmptyBoxes(); err != nil {
			return false, err
		}
	}
	s.persist.SetLoading(true)
	defer s.persist.SetLoading(false)
	ctx = logging.WithSentence(ctx, n)

	cmd, err := runner.Tfst2Grf(runner.Tfst2GrfOptions{
		Automaton: s.persist.Path(persist.TextTfst),
		Sentence:  n,
		Font:      s.opts.Font,
		FontSize:  s.opts.FontSize,
	})
	if err != nil {
		return false, err
	}
	if _, err := s.run.Run(ctx, cmd, nil); err != nil {
		return false, err
	}
	text, err := ReadSentenceText(s.persist.Path(persist.CurSentence + ".txt"))
	if err != nil {
		return false, err
	}
	tokens, err := tfst.LoadTokensInfo(s.persist.Path(persist.CurSentence+".tok"), text)
	if err != nil {
		return false, err
	}
	path := s.persist.SentencePath(n)
	overridden := fileutil.Exists(path)
	if !overridden {
		path = s.persist.Path(persist.CurSentence + ".grf")
	}
	doc, err := grf.Load(path, false, s.opts.Strict)
	if err != nil {
		return false, err
	}

	s.current, s.text, s.tokens, s.overridden = n, text, tokens, overridden
	s.model.SetSentence(n)
	s.model.Reset(doc)
	var tableErr error
	if err := s.table.Init(doc, tokens); err != nil {
		s.table.SetRows(nil)
		tableErr = fmt.Errorf("sentence %d: %w", n, err)
	}
	s.loadElag(ctx, n)
	logging.InfoContext(ctx, "sentence_loaded", "boxes", len(doc.Boxes), "override", overridden)
	return true, tableErr
}

// loadElag extracts sentence n of text-elag.tfst when it exists.
func (s *Session) loadElag(ctx context.Context, n int) {
	s.elag = nil
	if !fileutil.Exists(s.persist.Path(persist.ElagTfst)) {
		return
	}
	cmd, err := runner.Tfst2Grf(runner.Tfst2GrfOptions{
		Automaton: s.persist.Path(persist.ElagTfst),
		Sentence:  n,
		Output:    persist.CurElagSentence,
		Font:      s.opts.Font,
		FontSize:  s.opts.FontSize,
	})
	if err != nil {
		logging.WarnContext(ctx, "elag_sentence_skipped", "error", err)
		return
	}
	if _, err := s.run.Run(ctx, cmd, nil); err != nil {
		logging.WarnContext(ctx, "elag_sentence_skipped", "error", err)
		return
	}
	doc, err := grf.Load(s.persist.Path(persist.CurElagSentence+".grf"), true, false)
	if err != nil {
		logging.WarnContext(ctx, "elag_sentence_skipped", "error", err)
		return
	}
	s.elag = doc
}

// ReadSentenceText reads a sentence surface file in any supported encoding.
func ReadSentenceText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", tfsterrors.NewIO("read", path, err)
	}
	text, _, err := grf.Decode(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", tfsterrors.ErrInvalidInput, path, err)
	}
	return strings.TrimRight(text, "\r\n"), nil
}

// Next loads the following sentence, wrapping to the first.
func (s *Session) Next(ctx context.Context) (bool, error) {
	if s.count == 0 {
		return false, fmt.Errorf("%w: the automaton has no sentence", tfsterrors.ErrInvalidInput)
	}
	return s.LoadSentence(ctx, s.current%s.count+1)
}

// Prev loads the preceding sentence, wrapping to the last.
func (s *Session) Prev(ctx context.Context) (bool, error) {
	if s.count == 0 {
		return false, fmt.Errorf("%w: the automaton has no sentence", tfsterrors.ErrInvalidInput)
	}
	n := s.current - 1
	if n < 1 {
		n = s.count
	}
	return s.LoadSentence(ctx, n)
}

// Revert drops the override of the current sentence and reloads it from the
// text automaton. The state selection of the sentence is cleared.
func (s *Session) Revert(ctx context.Context) error {
	n := s.current
	if n == 0 {
		return fmt.Errorf("%w: no sentence loaded", tfsterrors.ErrInvalidInput)
	}
	s.model.ClearStateSelection(n)
	if !s.persist.Revert(n) {
		return s.persist.LastError()
	}
	_, err := s.LoadSentence(ctx, n)
	s.model.ClearStateSelection(n)
	return err
}

// reload shows the current sentence again after the automaton changed on
// disk, or the first one if the current sentence no longer exists.
func (s *Session) reload(ctx context.Context) error {
	if err := s.recount(); err != nil {
		return err
	}
	n := s.current
	if n < 1 || n > s.count {
		n = 1
	}
	if s.count == 0 {
		return nil
	}
	_, err := s.LoadSentence(ctx, n)
	return err
}

// then returns a callback reloading the sentence on success. Its error, if
// any, lands in *errp.
func (s *Session) then(ctx context.Context, errp *error) runner.ToDo {
	return runner.ToDoFunc(func(success bool) {
		if success {
			*errp = s.reload(ctx)
		}
	})
}

// SaveAll rebuilds text.tfst from every override and reopens the automaton
// at sentence 1.
func (s *Session) SaveAll(ctx context.Context) error {
	if err := s.checkNoEmptyBoxes(); err != nil {
		return err
	}
	var reloadErr error
	reopen := runner.ToDoFunc(func(bool) {
		s.current = 0
		s.model.ClearStateSelection(s.model.Sentence())
		reloadErr = s.reload(ctx)
	})
	if !s.persist.SaveAll(ctx, reopen) {
		return s.persist.LastError()
	}
	return reloadErr
}

// ApplyElag runs rules on the text automaton and reloads the sentence so
// the elag pane shows the result.
func (s *Session) ApplyElag(ctx context.Context, rules string, implode bool) error {
	var reloadErr error
	if !s.persist.ApplyElag(ctx, rules, implode, s.then(ctx, &reloadErr)) {
		return s.persist.LastError()
	}
	return reloadErr
}

// ReplaceElag makes the elag result the text automaton.
func (s *Session) ReplaceElag(ctx context.Context) error {
	if !s.persist.ReplaceElag() {
		return s.persist.LastError()
	}
	return s.reload(ctx)
}

func (s *Session) target(elag bool) string {
	if elag {
		return s.persist.Path(persist.ElagTfst)
	}
	return s.persist.Path(persist.TextTfst)
}

// Explode normalizes text.tfst, or text-elag.tfst when elag is set, against
// the tagset.
func (s *Session) Explode(ctx context.Context, elag bool) error {
	var reloadErr error
	if !s.persist.Explode(ctx, s.target(elag), s.then(ctx, &reloadErr)) {
		return s.persist.LastError()
	}
	return reloadErr
}

// Implode collapses the tag alternates of text.tfst or text-elag.tfst.
func (s *Session) Implode(ctx context.Context, elag bool) error {
	var reloadErr error
	if !s.persist.Implode(ctx, s.target(elag), s.then(ctx, &reloadErr)) {
		return s.persist.LastError()
	}
	return reloadErr
}

// Normalize explodes text.tfst and optionally implodes the result.
func (s *Session) Normalize(ctx context.Context, implode bool) error {
	var reloadErr error
	if !s.persist.Normalize(ctx, implode, s.then(ctx, &reloadErr)) {
		return s.persist.LastError()
	}
	return reloadErr
}

// Check runs the checker on the current sentence.
func (s *Session) Check() *checker.Report {
	return checker.Check(s.model.Document(), s.text, s.tokens)
}

// ExportPOSList writes the table of the current sentence.
func (s *Session) ExportPOSList(w io.Writer, delafStyle bool) error {
	return s.table.ExportPOSList(w, delafStyle)
}
