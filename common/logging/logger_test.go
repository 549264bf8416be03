package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/inventra-labs/inventra/common/middleware"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		wantJSON bool
	}{
		{name: "json format", format: "json", wantJSON: true},
		{name: "text format", format: "text", wantJSON: false},
		{name: "empty format defaults to json", format: "", wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, slog.LevelInfo, tt.format)
			logger.Info("hello", "k", "v")

			var entry map[string]any
			isJSON := json.Unmarshal(buf.Bytes(), &entry) == nil
			if isJSON != tt.wantJSON {
				t.Errorf("json output = %v, want %v (output: %s)", isJSON, tt.wantJSON, buf.String())
			}
		})
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	logger.InfoContext(ctx, "proxied")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if entry[FieldRequestID] != "req-42" {
		t.Errorf("request_id = %v, want req-42", entry[FieldRequestID])
	}
}

func TestWithContextWithoutRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	logger.WarnContext(context.Background(), "no id")

	if strings.Contains(buf.String(), FieldRequestID) {
		t.Errorf("unexpected request_id in output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "WARN") {
		t.Errorf("expected WARN level, got: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelWarn, "json")

	logger.DebugContext(context.Background(), "debug dropped")
	logger.InfoContext(context.Background(), "info dropped")
	logger.ErrorContext(context.Background(), "error kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("messages below warn should be filtered: %s", out)
	}
	if !strings.Contains(out, "error kept") {
		t.Errorf("expected error message, got: %s", out)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json").With(Service("gateway"))

	logger.Info("started")

	if !strings.Contains(buf.String(), `"service":"gateway"`) {
		t.Errorf("expected service field, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{" error ", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	logger := New(slog.LevelInfo, "json")
	SetDefault(logger)

	if slog.Default() != logger.Logger {
		t.Error("SetDefault did not update slog.Default()")
	}
	if Default().Logger != logger.Logger {
		t.Error("Default() should return the installed logger")
	}
}
