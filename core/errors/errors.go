// Package errors provides standardized error types and helpers for the workbench engine.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a file or resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrIO indicates a file system failure (missing file, permission denied)
	ErrIO = errors.New("i/o error")
	// ErrMalformedGraph indicates a graph file that cannot be parsed
	ErrMalformedGraph = errors.New("malformed graph")
	// ErrInvariantViolation indicates a structural invariant that does not hold
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrCommandFailed indicates an external command exited unsuccessfully
	ErrCommandFailed = errors.New("external command failed")
	// ErrUserError indicates an operation refused because of the user's data
	ErrUserError = errors.New("user error")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "rename")
	Path      string // File path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

// Is reports ErrIO for every IOError so callers can classify without errors.As.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// GraphErrorKind classifies a MalformedGraphError.
type GraphErrorKind string

const (
	KindHeader     GraphErrorKind = "header"
	KindBox        GraphErrorKind = "box"
	KindTransition GraphErrorKind = "transition"
	KindTerminal   GraphErrorKind = "terminal"
	KindEncoding   GraphErrorKind = "encoding"
	KindReach      GraphErrorKind = "reachability"
)

// MalformedGraphError reports a graph file that could not be parsed.
// Line is 1-based; 0 means the error is not tied to a line.
type MalformedGraphError struct {
	Path    string
	Line    int
	Kind    GraphErrorKind
	Message string
}

func (e *MalformedGraphError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if loc == "" {
		return fmt.Sprintf("malformed graph (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("malformed graph (%s) at %s: %s", e.Kind, loc, e.Message)
}

func (e *MalformedGraphError) Unwrap() error {
	return ErrMalformedGraph
}

// InvariantError represents a violated structural invariant.
type InvariantError struct {
	Operation string
	Message   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: invariant violation: %s", e.Operation, e.Message)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// CommandError represents an external command that did not succeed.
type CommandError struct {
	Command  string // Tool name (e.g., "Tfst2Grf")
	ExitCode int    // -1 when the process could not be started
	Err      error  // Underlying error, if any
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %s failed (exit %d): %v", e.Command, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("command %s failed (exit %d)", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error {
	if e.Err != nil {
		return errors.Join(ErrCommandFailed, e.Err)
	}
	return ErrCommandFailed
}

// UserError represents an operation blocked because of the current document state.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return ErrUserError
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewMalformed creates a MalformedGraphError
func NewMalformed(path string, line int, kind GraphErrorKind, message string) *MalformedGraphError {
	return &MalformedGraphError{
		Path:    path,
		Line:    line,
		Kind:    kind,
		Message: message,
	}
}

// NewInvariant creates an InvariantError
func NewInvariant(operation, message string) *InvariantError {
	return &InvariantError{
		Operation: operation,
		Message:   message,
	}
}

// NewCommand creates a CommandError
func NewCommand(command string, exitCode int, err error) *CommandError {
	return &CommandError{
		Command:  command,
		ExitCode: exitCode,
		Err:      err,
	}
}

// NewUser creates a UserError
func NewUser(message string) *UserError {
	return &UserError{Message: message}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
