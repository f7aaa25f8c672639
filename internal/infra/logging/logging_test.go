package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//nolint:paralleltest
func TestNew(t *testing.T) {
	l, err := New("casinobot", "test", zapcore.WarnLevel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info must be disabled at warn level")
	}

	if !l.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("error must be enabled at warn level")
	}

	if zap.L() != l {
		t.Fatalf("global logger not replaced")
	}

	local, err := New("casinobot", "local", zapcore.DebugLevel)
	if err != nil {
		t.Fatalf("New local: %v", err)
	}

	if !local.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug must be enabled for local")
	}
}
