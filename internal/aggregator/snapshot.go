package aggregator

import "tmuxy/internal/cellgrid"

// PaneSnapshot is the externally-visible, comparable state of one pane at
// a point in time — plain data, no pointers to the live emulator, so two
// snapshots can be diffed by value.
type PaneSnapshot struct {
	ID       string
	Index    int
	WindowID string
	Left, Top, Width, Height int
	Active   bool

	CurrentCommand string
	Title          string
	BorderTitle    string

	InMode          bool
	CopyCursorX     int
	CopyCursorY     int
	CursorX, CursorY int
	AlternateScreen bool
	MouseAny        bool
	Paused          bool

	GroupID     string
	GroupTabIdx int

	SelectionPresent bool
	SelectionStartX  int
	SelectionStartY  int
	HistorySize      int
	ScrollPosition   int

	Grid [][]cellgrid.Cell
}

// WindowSnapshot is the externally-visible state of one window.
type WindowSnapshot struct {
	ID     string
	Index  int
	Name   string
	Active bool
	Layout string

	IsPaneGroupWindow bool
	PaneGroupParentID string
	IsFloatWindow     bool
	FloatParentID     string
	FloatWidth        int
	FloatHeight       int
}

// PopupSnapshot is the externally-visible state of the session's popup.
type PopupSnapshot struct {
	ID      string
	Width   int
	Height  int
	X, Y    int
	Command string
	Active  bool
	Grid    [][]cellgrid.Cell
}

// Snapshot is a full point-in-time view of a Session, the unit diffed to
// produce Deltas and the payload of a Full state update (§4.5, §6).
type Snapshot struct {
	Panes        map[string]PaneSnapshot
	Windows      map[string]WindowSnapshot
	ActiveWindow string
	StatusLine   string
	Popup        *PopupSnapshot
}

// Snapshot captures the Session's current state as a comparable value.
// Recomputes the cached status line first if WindowAdd, WindowRenamed, or
// SessionWindowChanged marked it dirty since the last snapshot (§4.5).
func (s *Session) Snapshot() *Snapshot {
	s.refreshStatusLine()
	snap := &Snapshot{
		Panes:        make(map[string]PaneSnapshot, len(s.Panes)),
		Windows:      make(map[string]WindowSnapshot, len(s.Windows)),
		ActiveWindow: s.ActiveWindow,
		StatusLine:   s.StatusLine,
	}
	for id, p := range s.Panes {
		snap.Panes[id] = snapshotPane(p)
	}
	for id, w := range s.Windows {
		snap.Windows[id] = WindowSnapshot{
			ID: w.ID, Index: w.Index, Name: w.Name, Active: w.Active, Layout: w.Layout,
			IsPaneGroupWindow: w.IsPaneGroupWindow, PaneGroupParentID: w.PaneGroupParentID,
			IsFloatWindow: w.IsFloatWindow, FloatParentID: w.FloatParentID,
			FloatWidth: w.FloatWidth, FloatHeight: w.FloatHeight,
		}
	}
	if s.Popup != nil {
		var grid [][]cellgrid.Cell
		if s.Popup.Emulator != nil {
			grid = s.Popup.Emulator.Grid()
		}
		snap.Popup = &PopupSnapshot{
			ID: s.Popup.ID, Width: s.Popup.Width, Height: s.Popup.Height,
			X: s.Popup.X, Y: s.Popup.Y, Command: s.Popup.Command, Active: s.Popup.Active,
			Grid: grid,
		}
	}
	return snap
}

func snapshotPane(p *Pane) PaneSnapshot {
	var grid [][]cellgrid.Cell
	if p.copyMode != nil {
		// Copy mode freezes the externally-visible grid at the captured
		// scrollback snapshot (§8 scenario 6): the live emulator keeps
		// advancing underneath, but clients must not see it move.
		grid = p.copyMode.Grid
	} else if p.Emulator != nil {
		grid = p.Emulator.Grid()
	}
	return PaneSnapshot{
		ID: p.ID, Index: p.Index, WindowID: p.WindowID,
		Left: p.Left, Top: p.Top, Width: p.Width, Height: p.Height,
		Active: p.Active, CurrentCommand: p.CurrentCommand, Title: p.Title,
		BorderTitle: p.BorderTitle, InMode: p.InMode,
		CopyCursorX: p.CopyCursorX, CopyCursorY: p.CopyCursorY,
		CursorX: p.CursorX, CursorY: p.CursorY,
		AlternateScreen: p.AlternateScreen, MouseAny: p.MouseAny, Paused: p.Paused,
		GroupID: p.GroupID, GroupTabIdx: p.GroupTabIdx,
		SelectionPresent: p.SelectionPresent, SelectionStartX: p.SelectionStartX,
		SelectionStartY: p.SelectionStartY, HistorySize: p.HistorySize,
		ScrollPosition: p.ScrollPosition, Grid: grid,
	}
}

func gridEqual(a, b [][]cellgrid.Cell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if !a[i][j].Equal(b[i][j]) {
				return false
			}
		}
	}
	return true
}

// Equal reports whether two pane snapshots are identical.
func (p PaneSnapshot) Equal(o PaneSnapshot) bool {
	switch {
	case p.ID != o.ID, p.Index != o.Index, p.WindowID != o.WindowID,
		p.Left != o.Left, p.Top != o.Top, p.Width != o.Width, p.Height != o.Height,
		p.Active != o.Active, p.CurrentCommand != o.CurrentCommand, p.Title != o.Title,
		p.BorderTitle != o.BorderTitle, p.InMode != o.InMode,
		p.CopyCursorX != o.CopyCursorX, p.CopyCursorY != o.CopyCursorY,
		p.CursorX != o.CursorX, p.CursorY != o.CursorY,
		p.AlternateScreen != o.AlternateScreen, p.MouseAny != o.MouseAny, p.Paused != o.Paused,
		p.GroupID != o.GroupID, p.GroupTabIdx != o.GroupTabIdx,
		p.SelectionPresent != o.SelectionPresent, p.SelectionStartX != o.SelectionStartX,
		p.SelectionStartY != o.SelectionStartY, p.HistorySize != o.HistorySize,
		p.ScrollPosition != o.ScrollPosition:
		return false
	}
	return gridEqual(p.Grid, o.Grid)
}
