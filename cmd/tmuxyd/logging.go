package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"tmuxy/internal/config"
)

// severityTally counts warn/error-level records seen over the
// process's lifetime, so an operator gets a one-line sense of how
// rocky a run was (reconnect storms, sync failures) without combing
// through logs.
type severityTally struct {
	mu       sync.Mutex
	warnings int
	errors   int
}

func (t *severityTally) record(level slog.Level) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case level >= slog.LevelError:
		t.errors++
	case level >= slog.LevelWarn:
		t.warnings++
	}
}

// severityHandler wraps a base slog.Handler and tallies every
// warn-or-above record it sees, without altering what reaches base.
type severityHandler struct {
	base  slog.Handler
	tally *severityTally
}

func newSeverityHandler(base slog.Handler, tally *severityTally) *severityHandler {
	return &severityHandler{base: base, tally: tally}
}

func (h *severityHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *severityHandler) Handle(ctx context.Context, record slog.Record) error {
	h.tally.record(record.Level)
	return h.base.Handle(ctx, record)
}

func (h *severityHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &severityHandler{base: h.base.WithAttrs(attrs), tally: h.tally}
}

func (h *severityHandler) WithGroup(name string) slog.Handler {
	return &severityHandler{base: h.base.WithGroup(name), tally: h.tally}
}

// newLogger picks a colorized text handler for an attached terminal
// and a plain JSON handler otherwise (piped output, systemd, a log
// file), then wraps it with severityHandler so run() can report a
// warnings/errors summary on shutdown.
func newLogger(level string, tally *severityTally) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(level)}

	var base slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) {
		base = slog.NewTextHandler(colorable.NewColorable(os.Stdout), opts)
	} else {
		base = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(newSeverityHandler(base, tally))
}
