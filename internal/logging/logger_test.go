package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"invalid", LevelInfo},
		{"", LevelInfo},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := ParseLevel(tc.input); got != tc.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{Level(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			if got := tc.level.String(); got != tc.expected {
				t.Errorf("Level.String() = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if got := ParseFormat("text"); got != FormatText {
		t.Errorf("ParseFormat(text) = %v, want %v", got, FormatText)
	}
	if got := ParseFormat("json"); got != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, want %v", got, FormatJSON)
	}
	if got := ParseFormat("yaml"); got != FormatJSON {
		t.Errorf("ParseFormat(yaml) = %v, want %v (default)", got, FormatJSON)
	}
}

func decodeEntry(t *testing.T, line []byte) Entry {
	t.Helper()
	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		t.Fatalf("failed to parse log line %q: %v", line, err)
	}
	return e
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	l.WithJobID("job-1").WithNodeID("node-a").Infof("fragment decoded", map[string]any{"bytes": 42})

	e := decodeEntry(t, buf.Bytes())
	if e.Level != "info" {
		t.Errorf("level = %q, want info", e.Level)
	}
	if e.Message != "fragment decoded" {
		t.Errorf("message = %q", e.Message)
	}
	if e.JobID != "job-1" || e.NodeID != "node-a" {
		t.Errorf("jobId/nodeId = %q/%q", e.JobID, e.NodeID)
	}
	if e.Fields["bytes"] != float64(42) {
		t.Errorf("fields[bytes] = %v, want 42", e.Fields["bytes"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if decodeEntry(t, []byte(lines[0])).Level != "warn" {
		t.Errorf("first line = %q", lines[0])
	}
	if decodeEntry(t, []byte(lines[1])).Level != "error" {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestLoggerTextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Format: FormatText, Output: &buf})

	l.WithJobID("job-9").Debugf("encoded", map[string]any{"nodes": 3, "compression": "zstd"})

	out := buf.String()
	for _, want := range []string{"[debug] encoded", "jobId=job-9", "compression=zstd nodes=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("text output should end with a newline")
	}
}

func TestLoggerWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Config{Output: &buf}).With(map[string]any{"component": "codec"})
	child := parent.With(map[string]any{"phase": 1}).WithJobID("job-2")

	parent.Info("parent")
	child.Info("child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	p := decodeEntry(t, []byte(lines[0]))
	if _, ok := p.Fields["phase"]; ok {
		t.Error("parent picked up child field")
	}
	if p.JobID != "" {
		t.Error("parent picked up child job id")
	}

	c := decodeEntry(t, []byte(lines[1]))
	if c.Fields["component"] != "codec" || c.Fields["phase"] != float64(1) {
		t.Errorf("child fields = %v", c.Fields)
	}
}

func TestLoggerAddCaller(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, AddCaller: true})
	l.Info("here")

	e := decodeEntry(t, buf.Bytes())
	if !strings.HasSuffix(e.File, "logger_test.go") {
		t.Errorf("file = %q, want logger_test.go", e.File)
	}
	if e.Line == 0 {
		t.Error("line not set")
	}
}
