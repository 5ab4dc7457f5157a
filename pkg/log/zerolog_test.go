package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]interface{}{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithWriter(&buf, FormatJSON, zerolog.DebugLevel)

	l.Info("stage transition",
		String("from", "Starting"),
		Int("hooks", 3),
		Bool("ok", true),
		Duration("took", 2*time.Second),
		Err(errors.New("boom")),
	)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	rec := lines[0]
	if rec["message"] != "stage transition" {
		t.Errorf("message = %v", rec["message"])
	}
	if rec["from"] != "Starting" {
		t.Errorf("from = %v, want Starting", rec["from"])
	}
	if rec["hooks"] != float64(3) {
		t.Errorf("hooks = %v, want 3", rec["hooks"])
	}
	if rec["error"] != "boom" {
		t.Errorf("error = %v, want boom", rec["error"])
	}
	if rec["level"] != "info" {
		t.Errorf("level = %v, want info", rec["level"])
	}
}

func TestZerologAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithWriter(&buf, FormatJSON, zerolog.InfoLevel)

	child := l.With(String("component", "orchestrator"))
	child.Warn("slow hook")
	l.Info("plain")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["component"] != "orchestrator" {
		t.Errorf("child record missing component field: %v", lines[0])
	}
	if _, ok := lines[1]["component"]; ok {
		t.Errorf("parent record must not carry child fields: %v", lines[1])
	}
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithWriter(&buf, FormatJSON, zerolog.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	l.Error("shown")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["message"] != "shown" {
		t.Errorf("got %v, want only the error record", lines)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatConsole, false},
		{"console", FormatConsole, false},
		{"JSON", FormatJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	l := NewZerologAdapterWithWriter(&bytes.Buffer{}, FormatJSON, zerolog.InfoLevel)
	if OrNoop(l) != Logger(l) {
		t.Error("OrNoop should return the given logger")
	}
}
