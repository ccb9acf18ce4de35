package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/internal/logging"
)

// Injectable functions for testing.
var (
	execCommand = exec.CommandContext
	newRunID    = uuid.NewString
)

// ToDo is called once a command has finished, with its outcome.
type ToDo interface {
	ToDo(success bool)
}

// ToDoFunc adapts a function to ToDo.
type ToDoFunc func(success bool)

// ToDo calls f(success).
func (f ToDoFunc) ToDo(success bool) { f(success) }

// Launcher runs tool commands in a working directory.
type Launcher struct {
	Tool       string // tool binary, e.g. UnitexToolLogger
	Dir        string
	Timeout    time.Duration // zero waits for the tool however long it runs
	Env        []string
	Transcript *TranscriptWriter
}

// NewLauncher creates a launcher without a timeout. Commands still stop
// when the context passed to Run is cancelled.
func NewLauncher(tool, dir string) *Launcher {
	return &Launcher{
		Tool: tool,
		Dir:  dir,
	}
}

// Result is the outcome of one command run.
type Result struct {
	RunID    string
	Command  Command
	ExitCode int
	Duration time.Duration
	Stdout   []byte
	Stderr   []byte
}

// Run executes cmd and waits for it. Both output streams are drained while
// the process runs. todo, if not nil, is called with the outcome before Run
// returns. A non-zero exit yields a CommandError.
func (l *Launcher) Run(ctx context.Context, cmd Command, todo ToDo) (*Result, error) {
	res, err := l.run(ctx, cmd)
	if todo != nil {
		todo.ToDo(err == nil)
	}
	return res, err
}

// RunChain runs cmds in order and stops at the first failure. todo is
// called once, after the last command run.
func (l *Launcher) RunChain(ctx context.Context, cmds []Command, todo ToDo) ([]*Result, error) {
	results := make([]*Result, 0, len(cmds))
	var err error
	for _, cmd := range cmds {
		var res *Result
		res, err = l.run(ctx, cmd)
		results = append(results, res)
		if err != nil {
			break
		}
	}
	if todo != nil {
		todo.ToDo(err == nil)
	}
	return results, err
}

func (l *Launcher) run(ctx context.Context, cmd Command) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	argv := cmd.Argv(l.Tool)
	res := &Result{RunID: newRunID(), Command: cmd, ExitCode: -1}

	c := execCommand(ctx, argv[0], argv[1:]...)
	c.Dir = l.Dir
	if len(l.Env) > 0 {
		c.Env = l.Env
	}

	l.record(TranscriptEvent{Type: EventCommandStart, RunID: res.RunID, Program: cmd.Program, Argv: argv})
	logging.CommandStarted(res.RunID, cmd.Program, argv, "dir", l.Dir)

	start := time.Now()
	runErr := l.execute(c, res)
	res.Duration = time.Since(start)

	if runErr == nil {
		res.ExitCode = 0
	} else {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
	}

	exit := TranscriptEvent{
		Type:       EventCommandExit,
		RunID:      res.RunID,
		Program:    cmd.Program,
		ExitCode:   res.ExitCode,
		DurationMs: res.Duration.Milliseconds(),
	}
	if runErr != nil {
		exit.Message = runErr.Error()
	}
	l.record(exit)
	logging.CommandFinished(res.RunID, cmd.Program, res.ExitCode, res.Duration)

	if runErr != nil {
		if msg := strings.TrimSpace(string(res.Stderr)); msg != "" {
			runErr = fmt.Errorf("%w: %s", runErr, msg)
		}
		return res, tfsterrors.NewCommand(cmd.Program, res.ExitCode, runErr)
	}
	return res, nil
}

// execute starts c and drains its output. Wait is only called once both
// pipes are fully read.
func (l *Launcher) execute(c *exec.Cmd, res *Result) error {
	stdout, err := c.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { return drain(&outBuf, stdout) })
	g.Go(func() error { return drain(&errBuf, stderr) })
	drainErr := g.Wait()
	waitErr := c.Wait()

	res.Stdout = outBuf.Bytes()
	res.Stderr = errBuf.Bytes()
	if waitErr != nil {
		return waitErr
	}
	return drainErr
}

func drain(dst *bytes.Buffer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (l *Launcher) record(ev TranscriptEvent) {
	if l.Transcript == nil {
		return
	}
	if err := l.Transcript.Append(ev); err != nil {
		logging.Warn("transcript_write_failed", "path", l.Transcript.Path(), "error", err)
	}
}
