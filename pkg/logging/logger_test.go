package logging

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fitsocial/followgraph/pkg/config"
)

func TestInitLogger(t *testing.T) {
	defer SetLogger(Logger)()

	tests := []struct {
		name string
		cfg  config.LoggingConfig
		want zapcore.Level
	}{
		{"json info", config.LoggingConfig{Level: "INFO", Format: "json"}, zapcore.InfoLevel},
		{"text debug", config.LoggingConfig{Level: "debug", Format: "text"}, zapcore.DebugLevel},
		{"bad level falls back", config.LoggingConfig{Level: "loud", Format: "json"}, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := InitLogger(&tt.cfg); err != nil {
				t.Fatalf("InitLogger() error = %v", err)
			}
			if !Logger.Core().Enabled(tt.want) {
				t.Errorf("level %v should be enabled", tt.want)
			}
			if Logger.Core().Enabled(tt.want - 1) {
				t.Errorf("level %v should be disabled", tt.want-1)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	defer SetLogger(zap.New(core))()

	WithComponent("account-store").Info("test message", zap.String("key", "value"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "account-store" {
		t.Errorf("Expected component field, got: %v", fields["component"])
	}
	if fields["key"] != "value" {
		t.Errorf("Expected field 'key'='value', got: %v", fields["key"])
	}
}

func TestTraceFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	defer SetLogger(zap.New(core))()

	GetLogger().Info("no span", TraceFields(context.Background())...)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})
	GetLogger().Info("with span", TraceFields(trace.ContextWithSpanContext(context.Background(), sc))...)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["trace_id"]; ok {
		t.Error("Expected no trace_id without a span")
	}
	if got := entries[1].ContextMap()["trace_id"]; got != sc.TraceID().String() {
		t.Errorf("trace_id = %v, want %s", got, sc.TraceID())
	}
}
