package debug

import (
	"context"
	"log/slog"
	"testing"
)

func TestWithDebug(t *testing.T) {
	ctx := WithDebug(context.Background(), true)
	if !IsEnabled(ctx) {
		t.Error("IsEnabled should return true when debug is enabled")
	}
}

func TestIsEnabled_DefaultFalse(t *testing.T) {
	t.Setenv("CHATSPHERE_DEBUG", "")
	if IsEnabled(context.Background()) {
		t.Error("IsEnabled should return false by default")
	}
}

func TestIsEnabled_EnvFallback(t *testing.T) {
	t.Setenv("CHATSPHERE_DEBUG", "1")
	if !IsEnabled(context.Background()) {
		t.Error("IsEnabled should honor CHATSPHERE_DEBUG when no context value is set")
	}

	// An explicit context value wins over the environment.
	if IsEnabled(WithDebug(context.Background(), false)) {
		t.Error("context value false should override CHATSPHERE_DEBUG")
	}
}

func TestWithDebug_Disabled(t *testing.T) {
	t.Setenv("CHATSPHERE_DEBUG", "")
	ctx := WithDebug(context.Background(), false)
	if IsEnabled(ctx) {
		t.Error("IsEnabled should return false when debug is disabled")
	}
}

func TestSetupLogger_DebugEnabled(t *testing.T) {
	SetupLogger(true)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("SetupLogger(true) should enable debug level logging")
	}
}

func TestSetupLogger_DebugDisabled(t *testing.T) {
	SetupLogger(false)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("SetupLogger(false) should disable debug level logging")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("SetupLogger(false) should keep warn level logging")
	}
}
