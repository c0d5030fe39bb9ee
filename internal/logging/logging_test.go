package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithFieldsCarriesLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	defer Replace(zap.NewNop())

	ctx := WithFields(context.Background(), ParentKey("root"))
	WithContext(ctx).Info("loaded", zap.Int("count", 3))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["parent_key"] != "root" {
		t.Errorf("parent_key = %v, want root", fields["parent_key"])
	}
	if fields["count"] != int64(3) {
		t.Errorf("count = %v, want 3", fields["count"])
	}
}

func TestWithContextFallsBackToGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Replace(zap.New(core))
	defer Replace(zap.NewNop())

	WithContext(context.Background()).Info("hello")
	if logs.Len() != 1 {
		t.Errorf("expected global logger to receive entry, got %d", logs.Len())
	}
}

func TestWithOperation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Replace(zap.New(core))
	defer Replace(zap.NewNop())

	ctx := WithOperation(context.Background(), "mkdir")
	WithContext(ctx).Info("done")
	if got := logs.All()[0].ContextMap()["operation"]; got != "mkdir" {
		t.Errorf("operation = %v", got)
	}
}
