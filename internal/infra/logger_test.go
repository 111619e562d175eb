package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"credential-service/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"INFO":  slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): want %v, got %v", in, want, got)
		}
	}
}

func TestNewLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, &config.Config{LogLevel: "INFO"})

	logger.Info("credential registered", "subject", "alice@example.com", "password", "hunter2", "salt", "c2FsdA==")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log: %v", err)
	}
	if entry["password"] != "[REDACTED]" || entry["salt"] != "[REDACTED]" {
		t.Errorf("want secrets redacted, got %v", entry)
	}
	if entry["subject"] != "alice@example.com" {
		t.Errorf("want subject kept, got %v", entry["subject"])
	}
}

func TestTraceHandler_AddsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, &config.Config{LogLevel: "INFO", OtelEnabled: true, GoogleCloudProject: "proj-1"})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log: %v", err)
	}
	if entry["trace"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("want trace id, got %v", entry["trace"])
	}
	if entry["logging.googleapis.com/trace"] != "projects/proj-1/traces/4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("want cloud logging trace, got %v", entry["logging.googleapis.com/trace"])
	}
}
