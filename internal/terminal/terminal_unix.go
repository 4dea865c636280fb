//go:build !windows

package terminal

import (
	"errors"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// Start launches the process in a real PTY via creack/pty, falling
// back to pipe mode if the host has no PTY support (a minimal
// container, for instance).
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

	cmd := exec.Command(cfg.Shell, cfg.Args...)
	cmd.Dir = cfg.Dir

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(cfg.Columns),
		Rows: uint16(cfg.Rows),
	})
	if err == nil {
		return &Terminal{cmd: cmd, ptmx: ptmx}, nil
	}
	if !errors.Is(err, pty.ErrUnsupported) {
		return nil, err
	}
	return startPipeMode(cfg)
}

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// hideWindow is a no-op outside Windows; there's no console flash to suppress.
func hideWindow(_ *exec.Cmd) {}

func resizePtmx(ptmx *os.File, cols, rows int) error {
	return pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}
