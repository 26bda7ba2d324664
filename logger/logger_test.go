package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: FormatJSON}, "flowkit-test", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got none")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", line, err)
	}
	return m
}

func TestNewWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info")
	l.Info("stage completed", Fields(FieldStageID, "extract", "rows", 3))

	m := decodeLine(t, &buf)
	if m["message"] != "stage completed" {
		t.Errorf("expected message, got %v", m["message"])
	}
	if m[FieldStageID] != "extract" {
		t.Errorf("expected stage_id=extract, got %v", m[FieldStageID])
	}
	if m[FieldService] != "flowkit-test" {
		t.Errorf("expected service field, got %v", m[FieldService])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn")
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level, got %q", buf.String())
	}
	l.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("expected warn line, got %q", buf.String())
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "nonsense")
	l.Debug("hidden")
	l.Info("visible")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected info level fallback, got %q", buf.String())
	}
}

func TestWithComponentAndError(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "debug").WithComponent("scheduler").WithError(errors.New("boom"))
	l.Error("tick failed")

	m := decodeLine(t, &buf)
	if m[FieldComponent] != "scheduler" {
		t.Errorf("expected component=scheduler, got %v", m[FieldComponent])
	}
	if m["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", m["error"])
	}
}

func TestContextWithFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithFields(context.Background(), Fields(FieldWorkflowID, "etl"))
	ctx = ContextWithFields(ctx, Fields(FieldInstanceID, "i-1"))

	jsonLogger(&buf, "info").WithContext(ctx).Info("running")
	m := decodeLine(t, &buf)
	if m[FieldWorkflowID] != "etl" || m[FieldInstanceID] != "i-1" {
		t.Errorf("expected accumulated context fields, got %v", m)
	}
}

func TestWithContext_NoFields(t *testing.T) {
	l := NewNop()
	if l.WithContext(context.Background()) != l {
		t.Error("expected same logger when context carries no fields")
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatConsole, NoColor: true}, "svc", &buf)
	l.Warn("careful")
	if !strings.Contains(buf.String(), "[WRN]") {
		t.Errorf("expected console level tag, got %q", buf.String())
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stdout" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamp enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{Level: "loud", Format: "json", Output: "stdout"},
		{Level: "info", Format: "xml", Output: "stdout"},
		{Level: "info", Format: "json", Output: "file"},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", cfg)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	SetGlobalLogger(jsonLogger(&buf, "info"))
	Info("global", Fields(FieldJobID, "j1"))
	if !strings.Contains(buf.String(), `"job_id":"j1"`) {
		t.Errorf("expected global logger output, got %q", buf.String())
	}
}

func TestRegistry(t *testing.T) {
	defer Reset()
	var buf bytes.Buffer
	Register("engine", jsonLogger(&buf, "info"))
	Get("engine").Info("registered")
	if !strings.Contains(buf.String(), "registered") {
		t.Errorf("expected registered logger to be used, got %q", buf.String())
	}
	if Get("unknown") == nil {
		t.Error("expected fallback logger for unregistered name")
	}
}

func TestFieldsHelpers(t *testing.T) {
	f := Fields("a", 1, "b")
	if len(f) != 1 || f["a"] != 1 {
		t.Errorf("expected odd trailing key to be ignored, got %v", f)
	}
	if f := Fields(1, "skipped", "k", "v"); len(f) != 1 || f["k"] != "v" {
		t.Errorf("expected non-string key to be skipped, got %v", f)
	}
	if MergeWithError(nil, errors.New("y"))[FieldError] != "y" {
		t.Error("expected merged error field")
	}
}
