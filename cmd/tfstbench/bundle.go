package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/tfstbench/core/persist"
	"github.com/FocuswithJustin/tfstbench/internal/archive"
	"github.com/FocuswithJustin/tfstbench/internal/validation"
)

// bundlePatterns are the work files of a sentence directory.
var bundlePatterns = []string{
	persist.TextTfst,
	persist.TextTind,
	persist.ElagTfst,
	persist.ElagTind,
	persist.SentencePattern,
	persist.TagsByFreq,
	persist.TagsByAlph,
}

// BundleCmd groups the bundle operations.
type BundleCmd struct {
	Create  BundleCreateCmd  `cmd:"" help:"Pack the sentence directory into a .tar.xz or .tar.gz"`
	Extract BundleExtractCmd `cmd:"" help:"Unpack a bundle into a directory"`
	List    BundleListCmd    `cmd:"" help:"List the files of a bundle"`
}

// BundleCreateCmd packs the text automaton, its edited sentences and its tag lists.
type BundleCreateCmd struct {
	Out string `arg:"" help:"Bundle path (.tar.xz or .tar.gz)" type:"path"`
}

func (c *BundleCreateCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.SntDir == "" {
		return fmt.Errorf("a sentence directory is required")
	}
	if err := validation.ValidateOutput(c.Out); err != nil {
		return err
	}
	base := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(c.Out), ".tar.xz"), ".tar.gz")
	names, err := archive.Pack(cfg.SntDir, c.Out, base, bundlePatterns)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created: %s (%d file(s))\n", c.Out, len(names))
	return nil
}

// BundleExtractCmd unpacks a bundle.
type BundleExtractCmd struct {
	Bundle string `arg:"" help:"Bundle path" type:"existingfile"`
	Dir    string `arg:"" help:"Target directory" type:"path"`
}

func (c *BundleExtractCmd) Run() error {
	if err := validation.ValidatePath(c.Dir); err != nil {
		return err
	}
	names, err := archive.Extract(c.Bundle, c.Dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Extracted: %d file(s) into %s\n", len(names), c.Dir)
	return nil
}

// BundleListCmd prints the files of a bundle.
type BundleListCmd struct {
	Bundle string `arg:"" help:"Bundle path" type:"existingfile"`
}

func (c *BundleListCmd) Run() error {
	names, err := archive.List(c.Bundle)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(stdout, n)
	}
	return nil
}
