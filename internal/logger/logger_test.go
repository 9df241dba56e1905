package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		wantErr bool
	}{
		{"prod", "prod", "", false},
		{"local debug", "local", "debug", false},
		{"docker", "docker", "warn", false},
		{"unknown env", "staging", "", true},
		{"bad level", "prod", "loud", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLogger(tc.env, tc.level)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && l == nil {
				t.Fatal("nil logger")
			}
		})
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "error")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be disabled at error level")
	}
	if !l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("missing logger should fall back to nop")
	}
	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("logger not propagated")
	}
	if ContextWithLogger(context.Background(), nil) != context.Background() {
		t.Error("nil logger should leave ctx untouched")
	}
}

func TestWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))
	ctx = WithFields(ctx, zap.String("op", "search"))
	FromContext(ctx).Info("done", zap.Int("documents", 2))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["op"] != "search" {
		t.Errorf("op = %v", fields["op"])
	}
	if fields["documents"] != int64(2) {
		t.Errorf("documents = %v", fields["documents"])
	}

	bare := context.Background()
	if WithFields(bare, zap.String("op", "x")) != bare {
		t.Error("WithFields without logger should return ctx unchanged")
	}
}
