package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"tmuxy/internal/aggregator"
	"tmuxy/internal/emitter"
)

type fakeEmitter struct {
	states []emitter.StateUpdate
	errs   []string
}

func (f *fakeEmitter) EmitState(u emitter.StateUpdate) { f.states = append(f.states, u) }
func (f *fakeEmitter) EmitError(err string)            { f.errs = append(f.errs, err) }

func TestDefaultConfigMatchesOriginalTuning(t *testing.T) {
	cfg := DefaultConfig("work")
	if cfg.Session != "work" {
		t.Fatalf("expected session name carried through, got %q", cfg.Session)
	}
	if cfg.ThrottleThreshold != 20 {
		t.Fatalf("expected throttle threshold 20, got %d", cfg.ThrottleThreshold)
	}
	if cfg.SyncInterval.Milliseconds() != 500 || cfg.CopyModeSyncInterval.Milliseconds() != 50 {
		t.Fatalf("unexpected sync intervals: %v / %v", cfg.SyncInterval, cfg.CopyModeSyncInterval)
	}
	if cfg.ThrottleInterval.Milliseconds() != 16 || cfg.RateWindow.Milliseconds() != 100 {
		t.Fatalf("unexpected throttle/rate tuning: %v / %v", cfg.ThrottleInterval, cfg.RateWindow)
	}
}

func TestFindConfigPathPrefersHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.WriteFile(filepath.Join(home, ".tmuxy.conf"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	cwd := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)
	if err := os.Chdir(cwd); err != nil {
		t.Fatal(err)
	}

	path, ok := findConfigPath()
	if !ok || path != filepath.Join(home, ".tmuxy.conf") {
		t.Fatalf("expected home config preferred, got %q ok=%v", path, ok)
	}
}

func TestFindConfigPathWalksUpForDockerConfig(t *testing.T) {
	home := t.TempDir() // no ~/.tmuxy.conf here
	t.Setenv("HOME", home)

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docker"), 0o755); err != nil {
		t.Fatal(err)
	}
	wantPath := filepath.Join(root, "docker", ".tmuxy.conf")
	if err := os.WriteFile(wantPath, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)
	if err := os.Chdir(nested); err != nil {
		t.Fatal(err)
	}

	path, ok := findConfigPath()
	if !ok || path != wantPath {
		t.Fatalf("expected %q found by walking up, got %q ok=%v", wantPath, path, ok)
	}
}

func TestFindConfigPathNoneFound(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cwd := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)
	if err := os.Chdir(cwd); err != nil {
		t.Fatal(err)
	}

	if _, ok := findConfigPath(); ok {
		t.Fatalf("expected no config file found")
	}
}

func newTestMonitor() *Monitor {
	return &Monitor{cfg: DefaultConfig("test"), agg: aggregator.New("test")}
}

func TestHasCopyModePane(t *testing.T) {
	m := newTestMonitor()
	if m.hasCopyModePane() {
		t.Fatalf("expected no copy-mode pane on empty session")
	}
	m.agg.Session().Panes["%1"] = &aggregator.Pane{ID: "%1", InMode: true}
	if !m.hasCopyModePane() {
		t.Fatalf("expected copy-mode pane detected")
	}
}

func TestEmitSkipsEmptyDelta(t *testing.T) {
	m := newTestMonitor()
	em := &fakeEmitter{}
	m.emit(em) // first ComputeDelta on an empty session is itself empty
	if len(em.states) != 0 {
		t.Fatalf("expected no emission for empty initial snapshot, got %d", len(em.states))
	}
}

func TestEmitSendsFullThenDelta(t *testing.T) {
	m := newTestMonitor()
	em := &fakeEmitter{}

	m.agg.Session().Panes["%1"] = &aggregator.Pane{ID: "%1", WindowID: "@1", Width: 80, Height: 24}
	m.agg.Session().Panes["%2"] = &aggregator.Pane{ID: "%2", WindowID: "@1", Width: 80, Height: 24}
	m.agg.Session().Panes["%3"] = &aggregator.Pane{ID: "%3", WindowID: "@1", Width: 80, Height: 24}
	m.agg.Session().Windows["@1"] = &aggregator.Window{ID: "@1", Active: true}
	m.agg.Session().ActiveWindow = "@1"
	m.emit(em)
	if len(em.states) != 1 || em.states[0].Type != emitter.UpdateFull {
		t.Fatalf("expected one full update, got %+v", em.states)
	}

	// Only one of three panes changes: below the full-snapshot threshold,
	// so this must emit a sparse delta, not another full snapshot.
	m.agg.Session().Panes["%1"].Title = "renamed"
	m.emit(em)
	if len(em.states) != 2 || em.states[1].Type != emitter.UpdateDelta {
		t.Fatalf("expected second update to be a sparse delta, got %+v", em.states)
	}

	// No further mutation: next emit must be a no-op.
	m.emit(em)
	if len(em.states) != 2 {
		t.Fatalf("expected no emission without a state change, got %d", len(em.states))
	}
}
