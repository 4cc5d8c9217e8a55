package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	var buf bytes.Buffer
	oldLogger := defaultLogger
	defaultLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f()
	defaultLogger = oldLogger
	return buf.String()
}

func decode(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &m); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", line, err)
	}
	return m
}

func TestInitLoggerTo(t *testing.T) {
	tests := []struct {
		name    string
		level   Level
		format  Format
		logFn   func()
		want    string
		wantOut bool
	}{
		{"json info", LevelInfo, FormatJSON, func() { Info("hello") }, `"msg":"hello"`, true},
		{"text info", LevelInfo, FormatText, func() { Info("hello") }, "msg=hello", true},
		{"debug filtered at info", LevelInfo, FormatJSON, func() { Debug("hidden") }, "hidden", false},
		{"debug shown at debug", LevelDebug, FormatJSON, func() { Debug("shown") }, "shown", true},
		{"warn filtered at error", LevelError, FormatText, func() { Warn("w") }, "msg=w", false},
		{"error shown at warn", LevelWarn, FormatText, func() { Error("e") }, "msg=e", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitLoggerTo(&buf, tt.level, tt.format)
			defer InitLogger(LevelInfo, FormatText)

			tt.logFn()
			if got := strings.Contains(buf.String(), tt.want); got != tt.wantOut {
				t.Errorf("output %q contains %q = %v, want %v", buf.String(), tt.want, got, tt.wantOut)
			}
		})
	}
}

func TestTimestampFormat(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelInfo, FormatJSON)
	defer InitLogger(LevelInfo, FormatText)

	Info("tick")
	m := decode(t, buf.String())
	ts, ok := m["time"].(string)
	if !ok {
		t.Fatalf("time missing: %v", m)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": LevelDebug, "INFO": LevelInfo, "": LevelInfo,
		"warn": LevelWarn, "warning": LevelWarn, " error ": LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) should fail")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-123")
	if got := GetRunID(ctx); got != "run-123" {
		t.Errorf("GetRunID() = %q", got)
	}
	if got := GetRunID(context.Background()); got != "" {
		t.Errorf("GetRunID(empty) = %q", got)
	}

	out := captureLogOutput(func() {
		InfoContext(ctx, "with run")
	})
	if m := decode(t, out); m["run_id"] != "run-123" {
		t.Errorf("run_id missing: %v", m)
	}
}

func TestConversionHelpers(t *testing.T) {
	ctx := WithRunID(context.Background(), "r1")

	out := captureLogOutput(func() {
		ConversionStart(ctx, "a.jww", true, 8)
	})
	m := decode(t, out)
	if m["msg"] != "conversion_start" || m["explode_inserts"] != true || m["max_block_nesting"] != 8.0 {
		t.Errorf("ConversionStart = %v", m)
	}

	out = captureLogOutput(func() {
		ConversionDone(ctx, "a.jww", "a.dxf", 12, 1500*time.Millisecond, "unsupported", 1)
	})
	m = decode(t, out)
	if m["msg"] != "conversion_done" || m["entities"] != 12.0 || m["duration_ms"] != 1500.0 || m["unsupported"] != 1.0 {
		t.Errorf("ConversionDone = %v", m)
	}

	out = captureLogOutput(func() {
		ConversionError(ctx, "b.jww", errors.New("boom"))
	})
	m = decode(t, out)
	if m["level"] != "ERROR" || m["error"] != "boom" || m["run_id"] != "r1" {
		t.Errorf("ConversionError = %v", m)
	}

	out = captureLogOutput(func() {
		DecodeWarning("c.jww", "no entity list")
	})
	m = decode(t, out)
	if m["level"] != "DEBUG" || m["warning"] != "no entity list" {
		t.Errorf("DecodeWarning = %v", m)
	}
}

func TestGetLogger(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}
}
