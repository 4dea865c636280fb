// Command tmuxyd is the host process: it owns the Session Registry and
// serves the §6 external interfaces over HTTP. Grounded on the teacher's
// `cmd/go-tmux/main.go` (prefixed logger, signal.Notify+blocking-receive,
// graceful server stop before process exit), generalized from a named-pipe
// IPC host to an HTTP one and from a single session to the Registry's
// multi-session tracking.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"tmuxy/internal/config"
	"tmuxy/internal/monitor"
	"tmuxy/internal/registry"
	"tmuxy/internal/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to config file (default: XDG config dir)")
		listenAddr = flag.String("listen", "", "HTTP listen address, overrides config")
		logLevel   = flag.String("log-level", "", "debug|info|warn|error, overrides config")
		pidPath    = flag.String("pid-file", defaultPIDPath(), "path to write the server's PID file")
	)
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.EnsureFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tmuxyd: loading config: %v\n", err)
		return 1
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	tally := &severityTally{}
	logger := newLogger(cfg.LogLevel, tally)
	slog.SetDefault(logger)

	if cfg.Shell != "" {
		os.Setenv("SHELL", cfg.Shell)
	}

	if err := writePIDFile(*pidPath); err != nil {
		slog.Error("[tmuxyd] failed to write PID file", "path", *pidPath, "error", err)
		return 1
	}
	defer removePIDFile(*pidPath)

	reg := registry.NewWithMonitorConfig(monitorConfigFromBridge(cfg))
	server := transport.NewServer(reg)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("[tmuxyd] listening", "addr", cfg.ListenAddr)
		serveErr <- httpServer.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[tmuxyd] server exited unexpectedly", "error", err)
			return 1
		}
	case s := <-sig:
		slog.Info("[tmuxyd] shutdown started", "signal", s.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[tmuxyd] http server shutdown failed", "error", err)
	}
	reg.Shutdown()
	slog.Info("[tmuxyd] shutdown complete", "warnings", tally.warnings, "errors", tally.errors)
	return 0
}

// monitorConfigFromBridge adapts a loaded bridge config into the per-
// session monitor.Config the Registry calls on every (re)connect (§4.6),
// keeping the bridge's sync/throttle tuning in effect across reconnects.
func monitorConfigFromBridge(cfg config.Config) func(session string) monitor.Config {
	return func(session string) monitor.Config {
		return monitor.Config{
			Session:              session,
			SyncInterval:         cfg.SyncInterval,
			CopyModeSyncInterval: cfg.CopyModeSyncInterval,
			ThrottleInterval:     cfg.ThrottleInterval,
			ThrottleThreshold:    cfg.ThrottleThreshold,
			RateWindow:           cfg.RateWindow,
		}
	}
}

func defaultPIDPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tmuxy", "tmuxy.pid")
}

// writePIDFile records the running server's PID for an operator's
// start/stop/status tooling; removed on normal exit by removePIDFile.
func writePIDFile(path string) error {
	if path == "" {
		return errors.New("empty PID file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600)
}

func removePIDFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("[tmuxyd] failed to remove PID file", "path", path, "error", err)
	}
}
