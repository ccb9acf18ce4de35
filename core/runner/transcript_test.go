package runner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestTranscriptParsing tests parsing a transcript JSONL file.
func TestTranscriptParsing(t *testing.T) {
	transcriptContent := `{"t":"COMMAND_START","seq":1,"run_id":"a","program":"Tfst2Grf","argv":["Tool","Tfst2Grf","text.tfst","-s1"]}

{"t":"COMMAND_EXIT","seq":2,"run_id":"a","program":"Tfst2Grf","exit_code":0,"duration_ms":12}
{"t":"COMMAND_START","seq":3,"run_id":"b","program":"Elag"}
{"t":"ERROR","seq":4,"message":"disk full"}
`
	transcriptPath := filepath.Join(t.TempDir(), "transcript.jsonl")
	if err := os.WriteFile(transcriptPath, []byte(transcriptContent), 0644); err != nil {
		t.Fatalf("failed to write transcript: %v", err)
	}

	tr, err := LoadTranscript(transcriptPath)
	if err != nil {
		t.Fatalf("failed to load transcript: %v", err)
	}
	if tr.EventCount() != 4 {
		t.Errorf("expected 4 events, got %d", tr.EventCount())
	}
	if got := tr.RunIDs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("RunIDs() = %v", got)
	}
	if exit := tr.Exit("a"); exit == nil || exit.DurationMs != 12 {
		t.Errorf("Exit(a) = %+v", exit)
	}
	if tr.Exit("b") != nil {
		t.Error("run b never exited")
	}
	if !tr.HasErrors() {
		t.Error("HasErrors() should be true")
	}
	if len(tr.Events[0].Argv) != 4 {
		t.Errorf("argv = %v", tr.Events[0].Argv)
	}
}

// TestParseTranscriptInvalidJSON tests that invalid lines are rejected with their number.
func TestParseTranscriptInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"t\":\"WARN\"}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ParseTranscript(path)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 parse error, got %v", err)
	}
	if _, err := LoadTranscript(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing transcript")
	}
}

// TestTranscriptWriterContinuesSequence tests that a reopened writer keeps numbering.
func TestTranscriptWriterContinuesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	w, err := NewTranscriptWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(TranscriptEvent{Type: EventWarn, Message: "first"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	w2, err := NewTranscriptWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w2.Append(TranscriptEvent{Type: EventWarn, Message: "second"}); err != nil {
		t.Fatal(err)
	}

	events, err := ParseTranscript(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("events = %+v", events)
	}
	if events[1].Time == "" {
		t.Error("Append should stamp the time")
	}
}

// TestTranscriptWriterInjectedErrors tests Append with injected failures.
func TestTranscriptWriterInjectedErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	w, err := NewTranscriptWriter(path)
	if err != nil {
		t.Fatal(err)
	}

	origMarshal := jsonMarshal
	jsonMarshal = func(v interface{}) ([]byte, error) {
		return nil, fmt.Errorf("injected marshal error")
	}
	err = w.Append(TranscriptEvent{Type: EventWarn})
	jsonMarshal = origMarshal
	if err == nil || !strings.Contains(err.Error(), "failed to marshal event") {
		t.Errorf("unexpected error: %v", err)
	}

	origWrite := fileWrite
	fileWrite = func(w io.Writer, data []byte) (int, error) {
		return 0, fmt.Errorf("injected write error")
	}
	err = w.Append(TranscriptEvent{Type: EventWarn})
	fileWrite = origWrite
	if err == nil || !strings.Contains(err.Error(), "failed to write event") {
		t.Errorf("unexpected error: %v", err)
	}

	origOpen := osOpenFile
	osOpenFile = func(name string, flag int, perm os.FileMode) (*os.File, error) {
		return nil, fmt.Errorf("injected open error")
	}
	err = w.Append(TranscriptEvent{Type: EventWarn})
	osOpenFile = origOpen
	if err == nil || !strings.Contains(err.Error(), "failed to open transcript") {
		t.Errorf("unexpected error: %v", err)
	}

	// failed appends do not consume sequence numbers
	if err := w.Append(TranscriptEvent{Type: EventWarn}); err != nil {
		t.Fatal(err)
	}
	events, err := ParseTranscript(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Seq != 1 {
		t.Errorf("events = %+v", events)
	}
}
