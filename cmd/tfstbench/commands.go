package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/FocuswithJustin/tfstbench/core/checker"
	"github.com/FocuswithJustin/tfstbench/core/coverage"
	"github.com/FocuswithJustin/tfstbench/core/grf"
	"github.com/FocuswithJustin/tfstbench/core/persist"
	"github.com/FocuswithJustin/tfstbench/core/table"
	"github.com/FocuswithJustin/tfstbench/internal/fileutil"
	"github.com/FocuswithJustin/tfstbench/internal/validation"
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

// errCheckFailed is returned when a check reports errors.
var errCheckFailed = errors.New("check failed")

// CheckCmd checks a graph file or a sentence of the text automaton.
type CheckCmd struct {
	Graph    string `arg:"" optional:"" help:"Graph file to check instead of a sentence" type:"existingfile"`
	Sentence int    `short:"s" default:"1" help:"Sentence number"`
	JSON     bool   `help:"Print the report as JSON"`
}

func (c *CheckCmd) Run() error {
	var report *checker.Report
	if c.Graph != "" {
		doc, err := grf.Load(c.Graph, false, false)
		if err != nil {
			return err
		}
		report = checker.Check(doc, "", nil)
	} else {
		sess, err := openAt(context.Background(), c.Sentence)
		if err != nil {
			return err
		}
		report = sess.Check()
	}

	if c.JSON {
		data, err := report.ToJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		for _, m := range report.Messages() {
			fmt.Fprintln(stdout, m)
		}
		fmt.Fprintf(stdout, "Status: %s\n", report.Status)
	}
	if report.ErrorCount > 0 {
		return fmt.Errorf("%w: %d error(s)", errCheckFailed, report.ErrorCount)
	}
	return nil
}

// TableFlags select the sentence and the tag filter.
type TableFlags struct {
	Sentence int    `short:"s" default:"1" help:"Sentence number"`
	Filter   string `default:"all" enum:"all,pos,regex" help:"Tag filter (all, pos, regex)"`
	Pattern  string `help:"Pattern of the regex filter"`
	KeepPOS  bool   `name:"keep-pos" help:"With the regex filter, always show the POS"`
}

func (f *TableFlags) open() (*table.Model, error) {
	mode, err := table.ParseFilterMode(f.Filter)
	if err != nil {
		return nil, err
	}
	sess, err := openAt(context.Background(), f.Sentence)
	if err != nil {
		return nil, err
	}
	t := sess.Table()
	if err := t.Filter().Set(mode, f.Pattern, f.KeepPOS); err != nil {
		return nil, err
	}
	return t, nil
}

// TableCmd prints the interpretation table.
type TableCmd struct {
	TableFlags
}

func (c *TableCmd) Run() error {
	t, err := c.open()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	names := make([]string, t.ColumnCount())
	for i := range names {
		names[i] = t.ColumnName(i)
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))
	for _, row := range t.Matrix() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// ExportCmd writes the POS list of a sentence.
type ExportCmd struct {
	TableFlags
	Delaf bool   `help:"Write full tags (form,lemma.POS) instead of form/POS"`
	Out   string `short:"o" help:"Output file (stdout when empty)" type:"path"`
}

func (c *ExportCmd) Run() error {
	t, err := c.open()
	if err != nil {
		return err
	}
	if c.Out == "" {
		return t.ExportPOSList(stdout, c.Delaf)
	}
	if err := validation.ValidateOutput(c.Out); err != nil {
		return err
	}
	var b strings.Builder
	if err := t.ExportPOSList(&b, c.Delaf); err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(c.Out, []byte(b.String()), 0644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Exported: %s\n", c.Out)
	return nil
}

// CoverageCmd computes the coverage of a debug trace, archives it, or shows
// an archived run.
type CoverageCmd struct {
	Trace string `arg:"" optional:"" help:"Debug trace file" type:"existingfile"`
	Save  bool   `help:"Archive the computed table"`
	Label string `help:"Label of the archived run (default: trace file name)"`
	Load  string `help:"Show the archived run with this id"`
	List  bool   `help:"List archived runs"`
}

func (c *CoverageCmd) Run() error {
	ctx := context.Background()
	if c.Load == "" && !c.List && c.Trace == "" {
		return fmt.Errorf("a trace file, --load or --list is required")
	}

	if c.Load != "" || c.List {
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if c.List {
			runs, err := st.CoverageRuns(ctx)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(stdout, "%s  %s  %d graph(s)  %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Graphs, r.Label)
			}
			return nil
		}
		t, run, err := st.LoadCoverage(ctx, c.Load)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Run: %s (%s)\n", run.ID, run.Label)
		printCoverage(t)
		return nil
	}

	tr, err := coverage.LoadTrace(c.Trace)
	if err != nil {
		return err
	}
	t, err := coverage.Compute(tr)
	if err != nil {
		return err
	}
	if t == nil {
		fmt.Fprintln(stdout, "Coverage unavailable: the trace has no match details")
		return nil
	}
	printCoverage(t)

	if c.Save {
		label := c.Label
		if label == "" {
			label = filepath.Base(c.Trace)
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		run, err := st.SaveCoverage(ctx, label, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved: %s\n", run.ID)
	}
	return nil
}

func printCoverage(t *coverage.Table) {
	for g := 1; g <= t.Graphs(); g++ {
		fmt.Fprintf(stdout, "graph %d: %d hit(s)\n", g, t.GraphCount(g))
		for b := 0; b < t.Boxes(g); b++ {
			if n := t.BoxCount(g, b); n > 0 {
				fmt.Fprintf(stdout, "  box %d: %d\n", b, n)
			}
		}
	}
}

// ConvertCmd rewrites a graph in another encoding.
type ConvertCmd struct {
	Input    string `arg:"" help:"Graph file" type:"existingfile"`
	Output   string `arg:"" optional:"" help:"Output file (the input when empty)" type:"path"`
	Encoding string `short:"e" help:"Target encoding: utf16le, utf16be, utf8 or utf8bom (default from TFST_ENCODING)"`
}

func (c *ConvertCmd) Run() error {
	name := c.Encoding
	if name == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		name = cfg.Encoding
	}
	enc, err := grf.ParseEncoding(name)
	if err != nil {
		return err
	}
	doc, err := grf.Load(c.Input, false, false)
	if err != nil {
		return err
	}
	out := c.Output
	if out == "" {
		out = c.Input
	}
	if err := validation.ValidateOutput(out); err != nil {
		return err
	}
	from := doc.Encoding
	doc.Encoding = enc
	if err := grf.Save(doc, out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Converted: %s (%s -> %s)\n", out, from, enc)
	return nil
}

// SentenceCmd groups the sentence operations.
type SentenceCmd struct {
	Show   SentenceShowCmd   `cmd:"" help:"Show a sentence"`
	Revert SentenceRevertCmd `cmd:"" help:"Drop the edits of a sentence"`
	Next   SentenceNextCmd   `cmd:"" help:"Show the sentence after another one"`
}

// SentenceShowCmd prints a sentence and its graph summary.
type SentenceShowCmd struct {
	N int `arg:"" optional:"" default:"1" help:"Sentence number"`
}

func (c *SentenceShowCmd) Run() error {
	sess, err := openAt(context.Background(), c.N)
	if err != nil {
		return err
	}
	printSentence(sess.Current(), sess.SentenceCount(), sess.Text(), sess.Model().Len(), sess.Overridden())
	return nil
}

func printSentence(n, count int, text string, boxes int, overridden bool) {
	fmt.Fprintf(stdout, "Sentence %d/%d: %s\n", n, count, text)
	fmt.Fprintf(stdout, "  Boxes: %d\n", boxes)
	if overridden {
		fmt.Fprintln(stdout, "  Edited: yes")
	}
}

// SentenceRevertCmd drops the override of a sentence.
type SentenceRevertCmd struct {
	N int `arg:"" help:"Sentence number"`
}

func (c *SentenceRevertCmd) Run() error {
	ctx := context.Background()
	sess, err := openAt(ctx, c.N)
	if err != nil {
		return err
	}
	if err := sess.Revert(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Reverted: sentence %d\n", c.N)
	return nil
}

// SentenceNextCmd shows the sentence following N, wrapping to 1.
type SentenceNextCmd struct {
	N    int  `arg:"" optional:"" default:"1" help:"Current sentence number"`
	Back bool `help:"Show the previous sentence instead"`
}

func (c *SentenceNextCmd) Run() error {
	ctx := context.Background()
	sess, err := openAt(ctx, c.N)
	if err != nil {
		return err
	}
	if c.Back {
		_, err = sess.Prev(ctx)
	} else {
		_, err = sess.Next(ctx)
	}
	if err != nil {
		return err
	}
	printSentence(sess.Current(), sess.SentenceCount(), sess.Text(), sess.Model().Len(), sess.Overridden())
	return nil
}

// SaveAllCmd rebuilds the text automaton from the edited sentences.
type SaveAllCmd struct{}

func (c *SaveAllCmd) Run() error {
	ctx := context.Background()
	sess, err := openAt(ctx, 1)
	if err != nil {
		return err
	}
	if err := sess.SaveAll(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Rebuilt: %s (%d sentences)\n", sess.Persist().Path(persist.TextTfst), sess.SentenceCount())
	return nil
}

// ElagCmd groups the elag operations.
type ElagCmd struct {
	Apply   ElagApplyCmd   `cmd:"" help:"Run elag rules on the text automaton"`
	Replace ElagReplaceCmd `cmd:"" help:"Replace the text automaton by the elag result"`
}

// ElagApplyCmd runs the rules and writes text-elag.tfst.
type ElagApplyCmd struct {
	Rules   string `help:"Compiled rules (default: elag.rul of the elag directory)" type:"path"`
	Implode bool   `help:"Implode the result"`
}

func (c *ElagApplyCmd) Run() error {
	ctx := context.Background()
	if c.Rules != "" {
		if err := validation.ValidatePath(c.Rules); err != nil {
			return err
		}
	}
	sess, err := openAt(ctx, 1)
	if err != nil {
		return err
	}
	if err := sess.ApplyElag(ctx, c.Rules, c.Implode); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Elag applied: %s\n", sess.Persist().Path(persist.ElagTfst))
	return nil
}

// ElagReplaceCmd promotes text-elag.tfst to text.tfst.
type ElagReplaceCmd struct{}

func (c *ElagReplaceCmd) Run() error {
	ctx := context.Background()
	sess, err := openAt(ctx, 1)
	if err != nil {
		return err
	}
	if err := sess.ReplaceElag(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Replaced: %s (%d sentences)\n", sess.Persist().Path(persist.TextTfst), sess.SentenceCount())
	return nil
}

// ExplodeCmd explodes the tags of an automaton.
type ExplodeCmd struct {
	Elag bool `help:"Work on text-elag.tfst"`
}

func (c *ExplodeCmd) Run() error {
	ctx := context.Background()
	sess, err := openAt(ctx, 1)
	if err != nil {
		return err
	}
	if err := sess.Explode(ctx, c.Elag); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Exploded")
	return nil
}

// ImplodeCmd implodes the tags of an automaton.
type ImplodeCmd struct {
	Elag bool `help:"Work on text-elag.tfst"`
}

func (c *ImplodeCmd) Run() error {
	ctx := context.Background()
	sess, err := openAt(ctx, 1)
	if err != nil {
		return err
	}
	if err := sess.Implode(ctx, c.Elag); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Imploded")
	return nil
}

// NormalizeCmd normalizes text.tfst and optionally implodes it.
type NormalizeCmd struct {
	Implode bool `help:"Implode after normalizing"`
}

func (c *NormalizeCmd) Run() error {
	ctx := context.Background()
	sess, err := openAt(ctx, 1)
	if err != nil {
		return err
	}
	if err := sess.Normalize(ctx, c.Implode); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Normalized")
	return nil
}

// TagsCmd groups the tag index operations.
type TagsCmd struct {
	Import TagsImportCmd `cmd:"" help:"Import a tag frequency list"`
	Top    TagsTopCmd    `cmd:"" help:"Print the most frequent tags"`
}

// TagsImportCmd loads tfst_tags_by_freq.txt into the database.
type TagsImportCmd struct {
	File string `arg:"" optional:"" help:"Tag list (default: tfst_tags_by_freq.txt of the sentence directory)" type:"path"`
}

func (c *TagsImportCmd) Run() error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	file := c.File
	if file == "" {
		if cfg.SntDir == "" {
			return fmt.Errorf("a tag list or a sentence directory is required")
		}
		file = filepath.Join(cfg.SntDir, persist.TagsByFreq)
	}
	if err := validation.ValidatePath(file); err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	n, err := st.ImportTagFile(ctx, file)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Imported: %d tag(s) from %s\n", n, file)
	return nil
}

// TagsTopCmd prints the n most frequent tags.
type TagsTopCmd struct {
	N int `short:"n" default:"20" help:"Number of tags"`
}

func (c *TagsTopCmd) Run() error {
	ctx := context.Background()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	tags, err := st.TopTags(ctx, c.N)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, tc := range tags {
		fmt.Fprintf(tw, "%d\t%s\n", tc.Count, tc.Tag)
	}
	return tw.Flush()
}
