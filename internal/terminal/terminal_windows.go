//go:build windows

package terminal

import (
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Start launches the process under a Windows ConPTY, falling back to
// pipe mode if ConPTY is unavailable (pre-1809 Windows) or fails to start.
func Start(cfg Config) (*Terminal, error) {
	if cfg.Shell == "" {
		cfg.Shell = defaultShell()
	}
	if cfg.Columns <= 0 {
		cfg.Columns = defaultCols
	}
	if cfg.Rows <= 0 {
		cfg.Rows = defaultRows
	}

	if shouldUseConPty() && IsConPtyAvailable() {
		cmdLine := buildCommandLine(cfg.Shell, cfg.Args)
		opts := []ConPtyOption{ConPtyDimensions(cfg.Columns, cfg.Rows)}
		if cfg.Dir != "" {
			opts = append(opts, ConPtyWorkDir(cfg.Dir))
		}
		cpty, err := startConPty(cmdLine, opts...)
		if err == nil {
			if _, err := cpty.Write([]byte("chcp 65001\r\n")); err != nil {
				slog.Warn("[terminal] failed to set UTF-8 code page", "error", err)
			}
			return &Terminal{pty: cpty}, nil
		}
		slog.Warn("[terminal] ConPTY start failed, falling back to pipe mode", "error", err)
	}

	return startPipeMode(cfg)
}

// shouldUseConPty lets an operator force pipe mode via environment
// variables; unrecognized values always leave ConPTY enabled.
func shouldUseConPty() bool {
	if truthy(os.Getenv("GO_TMUX_DISABLE_CONPTY")) {
		return false
	}
	switch strings.TrimSpace(strings.ToLower(os.Getenv("GO_TMUX_ENABLE_CONPTY"))) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func truthy(v string) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func defaultShell() string {
	return "powershell.exe"
}

// buildCommandLine joins shell and args into the single command-line
// string CreateProcess expects, escaping each part for embedded spaces.
func buildCommandLine(shell string, args []string) string {
	if len(args) == 0 {
		return syscall.EscapeArg(shell)
	}
	parts := make([]string, 0, 1+len(args))
	parts = append(parts, syscall.EscapeArg(shell))
	for _, arg := range args {
		parts = append(parts, syscall.EscapeArg(arg))
	}
	return strings.Join(parts, " ")
}

// hideWindow suppresses the console window flash pipe-mode would
// otherwise cause on Windows. Not needed on the ConPTY path: ConPTY
// manages its own console via CreateProcess's EXTENDED_STARTUPINFO_PRESENT.
func hideWindow(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
}

// resizePtmx is unreachable on Windows: ptmx is never set when ConPTY is in use.
func resizePtmx(_ *os.File, _, _ int) error {
	return nil
}
