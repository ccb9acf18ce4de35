// Package runner builds and launches the external tools that produce and
// rewrite text automata.
package runner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Tool program names.
const (
	ProgramTfst2Grf       = "Tfst2Grf"
	ProgramRebuildTfst    = "RebuildTfst"
	ProgramElag           = "Elag"
	ProgramTagsetNormTfst = "TagsetNormTfst"
	ProgramImplodeTfst    = "ImplodeTfst"
)

// validOutputName restricts graph output names to plain file stems.
var validOutputName = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Command is one invocation of a tool program. The launcher prefixes it with
// the tool binary.
type Command struct {
	Program string   `json:"program"`
	Args    []string `json:"args"`
}

// Argv returns the full argument vector for the given tool binary.
func (c Command) Argv(tool string) []string {
	argv := make([]string, 0, len(c.Args)+2)
	if tool != "" {
		argv = append(argv, tool)
	}
	argv = append(argv, c.Program)
	return append(argv, c.Args...)
}

// CommandLine renders the command for logs, quoting arguments with spaces.
func (c Command) CommandLine(tool string) string {
	argv := c.Argv(tool)
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			parts[i] = strconv.Quote(a)
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}

// Tfst2GrfOptions selects a sentence of a text automaton to extract as a graph.
type Tfst2GrfOptions struct {
	Automaton string
	Sentence  int
	// Output is the stem of the produced files; empty means cursentence.
	Output   string
	Font     string
	FontSize int
}

// Tfst2Grf extracts one sentence automaton into <output>.grf, .txt and .tok.
func Tfst2Grf(o Tfst2GrfOptions) (Command, error) {
	if o.Automaton == "" {
		return Command{}, fmt.Errorf("tfst2grf: automaton is required")
	}
	if o.Sentence < 1 {
		return Command{}, fmt.Errorf("tfst2grf: sentence must be >= 1, got %d", o.Sentence)
	}
	args := []string{o.Automaton, "-s" + strconv.Itoa(o.Sentence)}
	if o.Output != "" {
		if !validOutputName.MatchString(o.Output) {
			return Command{}, fmt.Errorf("tfst2grf: invalid output name %q", o.Output)
		}
		args = append(args, "-o"+o.Output)
	}
	if o.Font != "" {
		args = append(args, "-f"+o.Font)
	}
	if o.FontSize > 0 {
		args = append(args, "-z"+strconv.Itoa(o.FontSize))
	}
	return Command{Program: ProgramTfst2Grf, Args: args}, nil
}

// RebuildTfst folds the per-sentence graphs back into the text automaton.
func RebuildTfst(automaton string) Command {
	return Command{Program: ProgramRebuildTfst, Args: []string{automaton}}
}

// ElagOptions configures a rule-based disambiguation run.
type ElagOptions struct {
	Automaton string
	Tagset    string
	Rules     string
	Output    string
}

// Elag applies compiled Elag rules to a text automaton.
func Elag(o ElagOptions) (Command, error) {
	if o.Automaton == "" || o.Rules == "" || o.Output == "" {
		return Command{}, fmt.Errorf("elag: automaton, rules and output are required")
	}
	args := []string{o.Automaton}
	if o.Tagset != "" {
		args = append(args, "-l"+o.Tagset)
	}
	args = append(args, "-r"+o.Rules, "-o"+o.Output)
	return Command{Program: ProgramElag, Args: args}, nil
}

// TagsetNormTfst normalizes (explodes) the tags of an automaton against a
// tagset description.
func TagsetNormTfst(tagset, automaton string) Command {
	return Command{Program: ProgramTagsetNormTfst, Args: []string{"-t" + tagset, automaton}}
}

// ImplodeTfst merges the exploded readings of an automaton.
func ImplodeTfst(automaton string) Command {
	return Command{Program: ProgramImplodeTfst, Args: []string{automaton}}
}
