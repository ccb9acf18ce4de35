package runner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Injectable functions for testing.
var (
	osOpenFile  = os.OpenFile
	jsonMarshal = json.Marshal
	fileWrite   = func(w io.Writer, data []byte) (int, error) { return w.Write(data) }
)

// TranscriptEvent represents a single event in a transcript JSONL file.
type TranscriptEvent struct {
	Type       string                 `json:"t"`
	Seq        int                    `json:"seq"`
	RunID      string                 `json:"run_id,omitempty"`
	Time       string                 `json:"time,omitempty"`
	Program    string                 `json:"program,omitempty"`
	Argv       []string               `json:"argv,omitempty"`
	ExitCode   int                    `json:"exit_code"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Known event types
const (
	EventCommandStart = "COMMAND_START"
	EventCommandExit  = "COMMAND_EXIT"
	EventWarn         = "WARN"
	EventError        = "ERROR"
)

// TranscriptWriter appends events to a JSONL file. It is safe for
// concurrent use.
type TranscriptWriter struct {
	path string
	mu   sync.Mutex
	seq  int
}

// NewTranscriptWriter returns a writer appending to path. The sequence
// continues from the events already in the file.
func NewTranscriptWriter(path string) (*TranscriptWriter, error) {
	w := &TranscriptWriter{path: path}
	events, err := ParseTranscript(path)
	switch {
	case err == nil:
		w.seq = len(events)
	case os.IsNotExist(err):
	default:
		return nil, err
	}
	return w, nil
}

// Path returns the transcript file.
func (w *TranscriptWriter) Path() string {
	return w.path
}

// Append writes one event, stamping its sequence number and time.
func (w *TranscriptWriter) Append(ev TranscriptEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ev.Seq = w.seq + 1
	if ev.Time == "" {
		ev.Time = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := jsonMarshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	file, err := osOpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()
	if _, err := fileWrite(file, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	w.seq++
	return nil
}

// ParseTranscript parses a transcript JSONL file and returns all events.
func ParseTranscript(path string) ([]TranscriptEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []TranscriptEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var event TranscriptEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}

		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading transcript: %w", err)
	}

	return events, nil
}

// Transcript represents a parsed transcript with helper methods.
type Transcript struct {
	Events []TranscriptEvent
	Path   string
}

// LoadTranscript loads a transcript from a file.
func LoadTranscript(path string) (*Transcript, error) {
	events, err := ParseTranscript(path)
	if err != nil {
		return nil, err
	}
	return &Transcript{
		Events: events,
		Path:   path,
	}, nil
}

// RunIDs returns the ids of all started runs, in order.
func (t *Transcript) RunIDs() []string {
	var ids []string
	for _, event := range t.Events {
		if event.Type == EventCommandStart {
			ids = append(ids, event.RunID)
		}
	}
	return ids
}

// Exit returns the COMMAND_EXIT event of a run, or nil if the run never
// finished.
func (t *Transcript) Exit(runID string) *TranscriptEvent {
	for i := range t.Events {
		if t.Events[i].Type == EventCommandExit && t.Events[i].RunID == runID {
			return &t.Events[i]
		}
	}
	return nil
}

// Failed returns the exit events with a non-zero exit code.
func (t *Transcript) Failed() []TranscriptEvent {
	var failed []TranscriptEvent
	for _, event := range t.Events {
		if event.Type == EventCommandExit && event.ExitCode != 0 {
			failed = append(failed, event)
		}
	}
	return failed
}

// HasErrors returns true if the transcript contains any error events.
func (t *Transcript) HasErrors() bool {
	for _, event := range t.Events {
		if event.Type == EventError {
			return true
		}
	}
	return false
}

// EventCount returns the total number of events.
func (t *Transcript) EventCount() int {
	return len(t.Events)
}
