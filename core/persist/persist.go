// Package persist keeps the files of a sentence-automaton workspace in sync
// with the editor: per-sentence overrides, rebuilding the text automaton and
// replacing it with the result of an elag run.
//
// Every operation reports success as a bool; the cause of the last failure
// is available from LastError.
package persist

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/FocuswithJustin/tfstbench/core/cas"
	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/grf"
	"github.com/FocuswithJustin/tfstbench/core/runner"
	"github.com/FocuswithJustin/tfstbench/internal/fileutil"
	"github.com/FocuswithJustin/tfstbench/internal/logging"
)

// Workspace file names, relative to the sentence directory.
const (
	TextTfst        = "text.tfst"
	TextTind        = "text.tind"
	ElagTfst        = "text-elag.tfst"
	ElagTind        = "text-elag.tind"
	CurSentence     = "cursentence"
	CurElagSentence = "currelagsentence"
	TagsByFreq      = "tfst_tags_by_freq.txt"
	TagsByAlph      = "tfst_tags_by_alph.txt"
	TagsByFreqNew   = "tfst_tags_by_freq.new.txt"
	TagsByAlphNew   = "tfst_tags_by_alph.new.txt"
	SentencePattern = "sentence*.grf"

	// Files of the elag directory.
	TagsetDef = "tagset.def"
	ElagRules = "elag.rul"
)

// ErrEmptyBoxes is the message of the UserError raised when saving a graph
// that still holds empty boxes.
const ErrEmptyBoxes = "the automaton can't contain empty boxes"

// Runner runs external commands; *runner.Launcher implements it.
type Runner interface {
	Run(ctx context.Context, cmd runner.Command, todo runner.ToDo) (*runner.Result, error)
	RunChain(ctx context.Context, cmds []runner.Command, todo runner.ToDo) ([]*runner.Result, error)
}

// Controller owns the files of one sentence directory.
type Controller struct {
	dir       string
	elagDir   string
	run       Runner
	snapshots *cas.Store
	loading   bool
	lastErr   error
}

// New creates a controller for the sentence directory dir. elagDir holds
// tagset.def and the default rule file.
func New(dir, elagDir string, r Runner) *Controller {
	return &Controller{dir: dir, elagDir: elagDir, run: r}
}

// SetSnapshots enables snapshots of the text automaton before it is replaced.
func (c *Controller) SetSnapshots(s *cas.Store) {
	c.snapshots = s
}

// Dir returns the sentence directory.
func (c *Controller) Dir() string {
	return c.dir
}

// Path returns name inside the sentence directory.
func (c *Controller) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// SentencePath returns the override file of sentence n.
func (c *Controller) SentencePath(n int) string {
	return c.Path("sentence" + strconv.Itoa(n) + ".grf")
}

// SetLoading turns the load guard on or off. No sentence is saved while a
// load is in progress.
func (c *Controller) SetLoading(on bool) {
	c.loading = on
}

// Loading reports whether a load is in progress.
func (c *Controller) Loading() bool {
	return c.loading
}

// LastError returns the cause of the last failed operation.
func (c *Controller) LastError() error {
	return c.lastErr
}

func (c *Controller) fail(err error) bool {
	c.lastErr = err
	logging.Error("persist_failed", "dir", c.dir, "error", err)
	return false
}

// SaveSentence writes doc as the override of sentence n. Nothing is written
// while loading or when the file already holds the same bytes.
func (c *Controller) SaveSentence(n int, doc *grf.Document) bool {
	c.lastErr = nil
	if c.loading || n < 1 {
		return false
	}
	if len(doc.EmptyBoxes()) > 0 {
		return c.fail(tfsterrors.NewUser(ErrEmptyBoxes))
	}
	data, err := grf.Marshal(doc)
	if err != nil {
		return c.fail(fmt.Errorf("encoding sentence %d: %w", n, err))
	}
	path := c.SentencePath(n)
	if old, err := cas.HashFile(path); err == nil && old == cas.Hash(data) {
		logging.Debug("sentence_unchanged", "path", path)
		return true
	}
	if err := fileutil.WriteAtomic(path, data, 0644); err != nil {
		return c.fail(tfsterrors.NewIO("write", path, err))
	}
	logging.GraphSaved(path, len(doc.Boxes), "sentence", n)
	return true
}

// Revert drops the override of sentence n. The caller reloads the sentence.
func (c *Controller) Revert(n int) bool {
	c.lastErr = nil
	path := c.SentencePath(n)
	if err := fileutil.RemoveIfExists(path); err != nil {
		return c.fail(tfsterrors.NewIO("remove", path, err))
	}
	logging.Info("sentence_reverted", "sentence", n)
	return true
}

// cleanSentenceFiles removes the overrides and the elag pane files.
func (c *Controller) cleanSentenceFiles(extra ...string) error {
	removed, err := fileutil.RemoveGlob(c.dir, SentencePattern)
	if err != nil {
		return tfsterrors.NewIO("remove", c.Path(SentencePattern), err)
	}
	names := append([]string{CurElagSentence + ".grf", CurElagSentence + ".txt"}, extra...)
	for _, name := range names {
		if err := fileutil.RemoveIfExists(c.Path(name)); err != nil {
			return tfsterrors.NewIO("remove", c.Path(name), err)
		}
	}
	logging.Debug("sentence_files_removed", "overrides", len(removed))
	return nil
}

// SaveAll rebuilds the text automaton from the overrides. Once the rebuild
// has exited the overrides, the elag pane files and text-elag.tfst are
// removed and then is called with the rebuild outcome.
func (c *Controller) SaveAll(ctx context.Context, then runner.ToDo) bool {
	c.lastErr = nil
	cleanup := runner.ToDoFunc(func(success bool) {
		if err := c.cleanSentenceFiles(ElagTfst); err != nil {
			c.fail(err)
			success = false
		}
		if then != nil {
			then.ToDo(success)
		}
	})
	if _, err := c.run.Run(ctx, runner.RebuildTfst(c.Path(TextTfst)), cleanup); err != nil {
		return c.fail(err)
	}
	return c.lastErr == nil
}

// ApplyElag runs the rule file rules (elag.rul of the elag directory when
// empty) on the text automaton, producing text-elag.tfst. With implode the
// result is imploded as well.
func (c *Controller) ApplyElag(ctx context.Context, rules string, implode bool, then runner.ToDo) bool {
	c.lastErr = nil
	if rules == "" {
		rules = filepath.Join(c.elagDir, ElagRules)
	}
	elag, err := runner.Elag(runner.ElagOptions{
		Automaton: c.Path(TextTfst),
		Tagset:    filepath.Join(c.elagDir, TagsetDef),
		Rules:     rules,
		Output:    c.Path(ElagTfst),
	})
	if err != nil {
		return c.fail(fmt.Errorf("%w: %v", tfsterrors.ErrInvalidInput, err))
	}
	cmds := []runner.Command{elag}
	if implode {
		cmds = append(cmds, runner.ImplodeTfst(c.Path(ElagTfst)))
	}
	if _, err := c.run.RunChain(ctx, cmds, then); err != nil {
		return c.fail(err)
	}
	return true
}

// ReplaceElag makes text-elag.tfst the text automaton. The new tag lists
// replace the old ones and the sentence files are dropped. When a snapshot
// store is set, text.tfst and text.tind are archived first. A failed rename
// is a UserError and
// leaves both automata in place.
func (c *Controller) ReplaceElag() bool {
	c.lastErr = nil
	elag := c.Path(ElagTfst)
	if !fileutil.Exists(elag) {
		return c.fail(tfsterrors.NewUser(fmt.Sprintf("file '%s' doesn't exist", elag)))
	}
	if c.snapshots != nil && fileutil.Exists(c.Path(TextTfst)) {
		snap, err := c.snapshots.Snapshot("before elag replace", c.Path(TextTfst), c.Path(TextTind))
		if err != nil {
			return c.fail(fmt.Errorf("snapshot before elag replace: %w", err))
		}
		logging.Info("automaton_snapshot", "snapshot", snap.ID, "files", len(snap.Files))
	}

	for _, p := range [][2]string{{TagsByFreqNew, TagsByFreq}, {TagsByAlphNew, TagsByAlph}} {
		if !fileutil.Exists(c.Path(p[0])) {
			continue
		}
		if err := fileutil.Rename(c.Path(p[0]), c.Path(p[1])); err != nil {
			return c.fail(tfsterrors.NewIO("rename", c.Path(p[0]), err))
		}
	}
	if err := c.cleanSentenceFiles(); err != nil {
		return c.fail(err)
	}

	text := c.Path(TextTfst)
	if err := fileutil.Rename(elag, text); err != nil {
		return c.fail(tfsterrors.NewUser(fmt.Sprintf("failed to replace %s with %s: %v", text, elag, err)))
	}
	if tind := c.Path(ElagTind); fileutil.Exists(tind) {
		if err := fileutil.Rename(tind, c.Path(TextTind)); err != nil {
			return c.fail(tfsterrors.NewUser(fmt.Sprintf("failed to replace %s with %s: %v", c.Path(TextTind), tind, err)))
		}
	}
	logging.Info("elag_replaced", "automaton", text)
	return true
}

// Explode normalizes automaton against tagset.def.
func (c *Controller) Explode(ctx context.Context, automaton string, then runner.ToDo) bool {
	return c.runOn(ctx, automaton, []runner.Command{
		runner.TagsetNormTfst(filepath.Join(c.elagDir, TagsetDef), automaton),
	}, then)
}

// Implode collapses the tag alternates of automaton.
func (c *Controller) Implode(ctx context.Context, automaton string, then runner.ToDo) bool {
	return c.runOn(ctx, automaton, []runner.Command{runner.ImplodeTfst(automaton)}, then)
}

// Normalize explodes the text automaton, then implodes it when asked.
func (c *Controller) Normalize(ctx context.Context, implode bool, then runner.ToDo) bool {
	text := c.Path(TextTfst)
	cmds := []runner.Command{runner.TagsetNormTfst(filepath.Join(c.elagDir, TagsetDef), text)}
	if implode {
		cmds = append(cmds, runner.ImplodeTfst(text))
	}
	return c.runOn(ctx, text, cmds, then)
}

func (c *Controller) runOn(ctx context.Context, automaton string, cmds []runner.Command, then runner.ToDo) bool {
	c.lastErr = nil
	if !fileutil.Exists(automaton) {
		return c.fail(tfsterrors.NewIO("stat", automaton, fmt.Errorf("%w: no such automaton", tfsterrors.ErrNotFound)))
	}
	if _, err := c.run.RunChain(ctx, cmds, then); err != nil {
		return c.fail(err)
	}
	return true
}
