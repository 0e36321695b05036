package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(buf, &Config{Level: level, Format: "json"}, "svc")
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(strings.Split(strings.TrimSpace(buf.String()), "\n")[0])
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid json %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info")
	l.Info("injector created", Fields(FieldBindings, 3, FieldStage, "production"))

	m := decode(t, &buf)
	if m["message"] != "injector created" {
		t.Errorf("unexpected message %v", m["message"])
	}
	if m[FieldBindings] != float64(3) {
		t.Errorf("expected bindings=3, got %v", m[FieldBindings])
	}
	if m[FieldService] != "svc" {
		t.Errorf("expected service field, got %v", m[FieldService])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected warn message to be written")
	}
}

func TestNewInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "invalid-level")
	l.Info("still logged")
	if !strings.Contains(buf.String(), "still logged") {
		t.Error("expected invalid level to fall back to info")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	cl := jsonLogger(&buf, "info").WithComponent("di")
	if cl.service != "svc" {
		t.Errorf("service should be preserved, got %q", cl.service)
	}
	cl.Info("x")
	if decode(t, &buf)[FieldComponent] != "di" {
		t.Error("expected component field")
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info")

	ctx := ContextWithFields(context.Background(), Fields(FieldScope, "request"))
	ctx = ContextWithFields(ctx, Fields(FieldScopeID, "abc123"))
	l.WithContext(ctx).Info("scoped")

	m := decode(t, &buf)
	if m[FieldScope] != "request" || m[FieldScopeID] != "abc123" {
		t.Errorf("expected context fields, got %v", m)
	}

	if l.WithContext(context.Background()) != l {
		t.Error("expected same logger when context carries no fields")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "info").WithError(errors.New("boom")).Error("failed")
	if decode(t, &buf)["error"] != "boom" {
		t.Error("expected error field")
	}
}

func TestNop(t *testing.T) {
	Nop().Error("discarded")
}

func TestSetGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != FormatConsole {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected output 'stdout', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"valid console", Config{Level: "debug", Format: "console"}, false},
		{"invalid level", Config{Level: "bad", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestConsoleLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "info", Format: "console", NoColor: true}, "injector")
	l.Warn("scope annotation ignored")
	out := buf.String()
	if !strings.Contains(out, "[INJ][WRN]") {
		t.Errorf("expected service tag and level, got %q", out)
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := NewDefault("registered")
	Register("custom-component", l)
	if Get("custom-component") != l {
		t.Error("expected registered logger")
	}
	if Get("unregistered-component") == nil {
		t.Error("expected fallback logger")
	}
	found := false
	for _, name := range Registered() {
		found = found || name == "custom-component"
	}
	if !found {
		t.Errorf("expected custom-component in %v", Registered())
	}

	Register("custom-component", nil)
	if Get("custom-component") == l {
		t.Error("expected registration to be removed")
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two", 3, "ignored", "dangling")
	if len(m) != 2 || m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected fields %v", m)
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	ef := ErrorFields("preload", errors.New("boom"))
	if ef[FieldOperation] != "preload" || ef[FieldError] != "boom" {
		t.Errorf("unexpected error fields %v", ef)
	}
	df := DurationFields("create", 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("unexpected duration fields %v", df)
	}
}
