package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSeverityHandlerTalliesWarnAndError(t *testing.T) {
	var buf bytes.Buffer
	tally := &severityTally{}
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(newSeverityHandler(base, tally))

	logger.Info("server started")
	logger.Warn("reconnect attempt failed")
	logger.Warn("reconnect attempt failed again")
	logger.Error("session sync aborted")

	if tally.warnings != 2 {
		t.Errorf("warnings = %d, want 2", tally.warnings)
	}
	if tally.errors != 1 {
		t.Errorf("errors = %d, want 1", tally.errors)
	}
	if !strings.Contains(buf.String(), "server started") {
		t.Error("info record was not forwarded to the base handler")
	}
}

func TestSeverityHandlerWithAttrsAndGroupPreserveTally(t *testing.T) {
	var buf bytes.Buffer
	tally := &severityTally{}
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(newSeverityHandler(base, tally)).With("session", "main").WithGroup("registry")

	logger.Error("attach failed")

	if tally.errors != 1 {
		t.Errorf("errors = %d, want 1", tally.errors)
	}
}

func TestSeverityTallyRecordThresholds(t *testing.T) {
	tally := &severityTally{}
	tally.record(slog.LevelDebug)
	tally.record(slog.LevelInfo)
	tally.record(slog.LevelWarn)
	tally.record(slog.LevelError)

	if tally.warnings != 1 {
		t.Errorf("warnings = %d, want 1", tally.warnings)
	}
	if tally.errors != 1 {
		t.Errorf("errors = %d, want 1", tally.errors)
	}
}
