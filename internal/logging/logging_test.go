package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	var buf bytes.Buffer

	oldLogger := defaultLogger
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	defaultLogger = slog.New(handler)

	f()

	defaultLogger = oldLogger
	return buf.String()
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		format Format
	}{
		{name: "Debug level JSON format", level: LevelDebug, format: FormatJSON},
		{name: "Info level JSON format", level: LevelInfo, format: FormatJSON},
		{name: "Warn level Text format", level: LevelWarn, format: FormatText},
		{name: "Error level Text format", level: LevelError, format: FormatText},
		{name: "Default level (invalid value)", level: Level(999), format: FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level, tt.format)
			if GetLogger() == nil {
				t.Error("Expected logger to be initialized, got nil")
			}
		})
	}
	InitLogger(LevelInfo, FormatJSON)
}

func TestInitLoggerToFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelWarn, FormatJSON)
	defer InitLogger(LevelInfo, FormatJSON)

	Info("dropped")
	Warn("kept", "k", "v")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info message should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn message missing: %s", out)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	ts, _ := entry["time"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	levels := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range levels {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if ParseFormat("text") != FormatText {
		t.Error("ParseFormat(text) should be FormatText")
	}
	if ParseFormat("") != FormatJSON {
		t.Error("ParseFormat(\"\") should default to FormatJSON")
	}
}

func TestSentenceContext(t *testing.T) {
	ctx := context.Background()
	if GetSentence(ctx) != 0 {
		t.Error("empty context should carry no sentence")
	}
	ctx = WithSentence(ctx, 4)
	if got := GetSentence(ctx); got != 4 {
		t.Errorf("GetSentence() = %d, want 4", got)
	}

	output := captureLogOutput(func() {
		InfoContext(ctx, "loaded")
	})
	if !strings.Contains(output, `"sentence":4`) {
		t.Errorf("expected sentence attribute in output: %s", output)
	}
}

func TestDomainHelpers(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
		want []string
	}{
		{
			name: "GraphLoaded",
			fn:   func() { GraphLoaded("cursentence.grf", 12, "utf16le") },
			want: []string{"graph_loaded", "cursentence.grf", `"boxes":12`, "utf16le"},
		},
		{
			name: "GraphSaved",
			fn:   func() { GraphSaved("sentence3.grf", 5) },
			want: []string{"graph_saved", "sentence3.grf"},
		},
		{
			name: "CommandStarted",
			fn:   func() { CommandStarted("r1", "Elag", []string{"Elag", "text.tfst"}) },
			want: []string{"command_started", `"argv":"Elag text.tfst"`},
		},
		{
			name: "CommandFinished failure",
			fn:   func() { CommandFinished("r1", "Elag", 3, time.Second) },
			want: []string{"command_finished", `"level":"WARN"`, `"exit_code":3`},
		},
		{
			name: "EditApplied",
			fn:   func() { EditApplied("remove_boxes", 2, "sentence", 1) },
			want: []string{"edit_applied", "remove_boxes"},
		},
		{
			name: "WebSocketEvent",
			fn:   func() { WebSocketEvent("client_connected", 1) },
			want: []string{"websocket_event", "client_connected"},
		},
		{
			name: "ServerStartup",
			fn:   func() { ServerStartup("bridge", ":8080") },
			want: []string{"server_startup", ":8080"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureLogOutput(tt.fn)
			for _, w := range tt.want {
				if !strings.Contains(output, w) {
					t.Errorf("output %q missing %q", output, w)
				}
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("x"))
	}))

	output := captureLogOutput(func() {
		req := httptest.NewRequest(http.MethodGet, "/table", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusTeapot {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
		}
	})

	if !strings.Contains(output, `"status_code":418`) || !strings.Contains(output, "/table") {
		t.Errorf("unexpected request log: %s", output)
	}
}

func TestResponseWriterDefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("body"))
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusOK || rec.Code != http.StatusOK {
		t.Errorf("status = %d/%d, want 200", rw.statusCode, rec.Code)
	}
}
