package aggregator

import (
	"testing"

	"tmuxy/internal/cellgrid"
)

func TestDiffPaneOnlyMarksChangedFields(t *testing.T) {
	old := PaneSnapshot{ID: "%1", WindowID: "@1", Width: 80, Height: 24, Title: "bash", CursorX: 1, CursorY: 1}
	cur := old
	cur.CursorX = 5
	cur.CursorY = 2
	cur.Grid = [][]cellgrid.Cell{{{Rune: 'x'}}}

	d := diffPane(old, cur)

	if d.ID != "%1" {
		t.Fatalf("expected ID always set, got %q", d.ID)
	}
	if d.CursorX == nil || *d.CursorX != 5 {
		t.Fatalf("expected CursorX = 5, got %v", d.CursorX)
	}
	if d.CursorY == nil || *d.CursorY != 2 {
		t.Fatalf("expected CursorY = 2, got %v", d.CursorY)
	}
	if !d.GridChanged || d.Grid == nil {
		t.Fatalf("expected grid change to be reported")
	}
	if d.Width != nil || d.Height != nil || d.Title != nil || d.WindowID != nil {
		t.Fatalf("expected unchanged fields to stay nil, got %+v", d)
	}
}

func TestComputeDeltaEmitsOnlyChangedPaneFields(t *testing.T) {
	prev := &Snapshot{
		Panes: map[string]PaneSnapshot{
			"%1": {ID: "%1", WindowID: "@1", Width: 80, Height: 24, Title: "bash"},
		},
		Windows: map[string]WindowSnapshot{
			"@1": {ID: "@1", Active: true},
		},
		ActiveWindow: "@1",
	}
	cur := &Snapshot{
		Panes: map[string]PaneSnapshot{
			"%1": {
				ID: "%1", WindowID: "@1", Width: 80, Height: 24, Title: "bash",
				CursorX: 3, CursorY: 1, Grid: [][]cellgrid.Cell{{{Rune: 'y'}}},
			},
		},
		Windows:      prev.Windows,
		ActiveWindow: "@1",
	}

	d := computeDelta(prev, cur)

	if d.Full {
		t.Fatalf("expected sparse delta, got full")
	}
	if len(d.Panes) != 1 {
		t.Fatalf("expected exactly one pane patch, got %d", len(d.Panes))
	}
	p := d.Panes[0]
	if p.CursorX == nil || *p.CursorX != 3 || p.CursorY == nil || *p.CursorY != 1 {
		t.Fatalf("expected cursor fields set, got %+v", p)
	}
	if !p.GridChanged {
		t.Fatalf("expected grid change flagged")
	}
	if p.Title != nil || p.Width != nil || p.Height != nil || p.WindowID != nil {
		t.Fatalf("expected unchanged pane fields to stay nil, got %+v", p)
	}
	if len(d.Windows) != 0 {
		t.Fatalf("expected no window changes, got %+v", d.Windows)
	}
}

func TestComputeDeltaNewPaneReportsEveryField(t *testing.T) {
	prev := &Snapshot{Panes: map[string]PaneSnapshot{}, Windows: map[string]WindowSnapshot{}}
	cur := &Snapshot{
		Panes: map[string]PaneSnapshot{
			"%1": {ID: "%1", WindowID: "@1", Width: 80, Height: 24, Title: "bash"},
		},
		Windows: map[string]WindowSnapshot{},
	}

	d := computeDelta(prev, cur)

	if len(d.Panes) != 1 {
		t.Fatalf("expected one new pane, got %d", len(d.Panes))
	}
	p := d.Panes[0]
	if p.Width == nil || *p.Width != 80 || p.Title == nil || *p.Title != "bash" {
		t.Fatalf("expected a brand new pane to report every field, got %+v", p)
	}
}

func TestComputeDeltaReportsStatusLineChange(t *testing.T) {
	prev := &Snapshot{Panes: map[string]PaneSnapshot{}, Windows: map[string]WindowSnapshot{}, StatusLine: "0:bash*"}
	cur := &Snapshot{Panes: map[string]PaneSnapshot{}, Windows: map[string]WindowSnapshot{}, StatusLine: "0:bash* 1:vim"}

	d := computeDelta(prev, cur)

	if !d.StatusLineChanged || d.StatusLine != "0:bash* 1:vim" {
		t.Fatalf("expected status line change reported, got %+v", d)
	}
	if d.IsEmpty() {
		t.Fatalf("a status-line-only change must not be reported empty")
	}
}
