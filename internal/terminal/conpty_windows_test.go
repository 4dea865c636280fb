//go:build windows

package terminal

import (
	"errors"
	"io"
	"strings"
	"testing"

	"golang.org/x/sys/windows"
)

func TestConPtyCloseIdempotent(t *testing.T) {
	cpty := &ConPty{} // nil handles: doClose skips handle cleanup entirely.

	if err := cpty.Close(); err != nil {
		t.Fatalf("first Close() error = %v, want nil", err)
	}
	if err := cpty.Close(); err != nil {
		t.Fatalf("second Close() error = %v, want nil", err)
	}
}

func TestConPtyCloseClearsPipeReferences(t *testing.T) {
	cpty := &ConPty{cmdIn: &handleIO{}, cmdOut: &handleIO{}}

	_ = cpty.Close()

	if cpty.cmdIn != nil || cpty.cmdOut != nil {
		t.Fatalf("Close() should clear pipe references, got cmdIn=%v cmdOut=%v", cpty.cmdIn, cpty.cmdOut)
	}
}

func TestConPtyReadWriteAfterCloseReturnErrors(t *testing.T) {
	cpty := &ConPty{}
	_ = cpty.Close()

	if _, err := cpty.Read(make([]byte, 1)); err == nil || !strings.Contains(err.Error(), "closed pseudo console") {
		t.Fatalf("Read() error = %v, want closed pseudo console error", err)
	}
	if _, err := cpty.Write([]byte("x")); err == nil || !strings.Contains(err.Error(), "closed pseudo console") {
		t.Fatalf("Write() error = %v, want closed pseudo console error", err)
	}
	if err := cpty.Resize(120, 40); err == nil || !strings.Contains(err.Error(), "closed pseudo console") {
		t.Fatalf("Resize() error = %v, want closed pseudo console error", err)
	}
	if got := cpty.Pid(); got != 0 {
		t.Fatalf("Pid() after close = %d, want 0", got)
	}
}

func TestHandleIOInvalidHandles(t *testing.T) {
	if err := (&handleIO{handle: 0}).Close(); err != nil {
		t.Fatalf("Close() with zero handle error = %v, want nil", err)
	}
	if err := (&handleIO{handle: windows.InvalidHandle}).Close(); err != nil {
		t.Fatalf("Close() with invalid handle error = %v, want nil", err)
	}
	if _, err := (&handleIO{handle: 0}).Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("Read() with zero handle error = %v, want io.EOF", err)
	}
	if _, err := (&handleIO{handle: windows.InvalidHandle}).Write([]byte("x")); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Write() with invalid handle error = %v, want io.ErrClosedPipe", err)
	}
}

func TestNormalizeConPtyPipeErrorForClosedHandleCodes(t *testing.T) {
	cases := []error{windows.ERROR_INVALID_HANDLE, windows.ERROR_BROKEN_PIPE, windows.ERROR_NO_DATA}
	for _, raw := range cases {
		got := normalizeConPtyPipeError("Read", raw)
		if got == nil || !strings.Contains(got.Error(), "closed pseudo console") {
			t.Fatalf("normalizeConPtyPipeError(%v) = %v, want closed pseudo console message", raw, got)
		}
		if !errors.Is(got, raw) {
			t.Fatalf("normalizeConPtyPipeError(%v) = %v, want wrapped original", raw, got)
		}
	}
}

func TestNormalizeConPtyPipeErrorPassesThroughUnknownErrors(t *testing.T) {
	original := errors.New("custom failure")
	got := normalizeConPtyPipeError("Write", original)
	if !errors.Is(got, original) {
		t.Fatalf("normalizeConPtyPipeError() = %v, want original error", got)
	}
}

func TestValidateConPtyDimensions(t *testing.T) {
	if err := validateConPtyDimensions(80, 24); err != nil {
		t.Fatalf("validateConPtyDimensions(80,24) error = %v, want nil", err)
	}
	if err := validateConPtyDimensions(0, 24); err == nil {
		t.Fatal("validateConPtyDimensions(0,24) error = nil, want error")
	}
	if err := validateConPtyDimensions(80, 40000); err == nil {
		t.Fatal("validateConPtyDimensions(80,40000) error = nil, want error")
	}
}
