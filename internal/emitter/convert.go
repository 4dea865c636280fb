package emitter

import (
	"strconv"

	"tmuxy/internal/aggregator"
)

// FromSnapshot builds the client-facing TmuxState from an aggregator
// Snapshot, filtering panes the way the original's `to_tmux_state`
// equivalent does: a pane is included if its window is the active window
// OR its window is a pane-group/float window (SPEC_FULL supplemented
// feature 1 — those auxiliary windows are always visible regardless of
// which window tmux considers focused).
func FromSnapshot(snap *aggregator.Snapshot) *TmuxState {
	if snap == nil {
		return nil
	}
	visible := visibleWindows(snap)

	state := &TmuxState{ActiveWindow: snap.ActiveWindow, StatusLine: snap.StatusLine}
	for _, p := range snap.Panes {
		if !visible[p.WindowID] {
			continue
		}
		state.Panes = append(state.Panes, paneStateFrom(p))
	}
	for _, w := range snap.Windows {
		state.Windows = append(state.Windows, windowStateFrom(w))
	}
	if snap.Popup != nil {
		state.Popup = popupStateFrom(*snap.Popup)
	}
	return state
}

// FromDelta builds the client-facing TmuxDelta from an aggregator Delta,
// carrying forward only the fields each PaneDelta/WindowDelta marked changed.
func FromDelta(d *aggregator.Delta) *TmuxDelta {
	if d == nil {
		return nil
	}
	td := &TmuxDelta{
		Seq: d.Seq, RemovedPaneIDs: d.RemovedPaneIDs, RemovedWindowIDs: d.RemovedWindowIDs,
		ActiveWindowChanged: d.ActiveWindowChanged, ActiveWindow: d.ActiveWindow,
		StatusLineChanged: d.StatusLineChanged, StatusLine: d.StatusLine,
		PopupRemoved: d.PopupRemoved,
	}
	for _, p := range d.Panes {
		td.Panes = append(td.Panes, panePatchFrom(p))
	}
	for _, w := range d.Windows {
		td.Windows = append(td.Windows, windowPatchFrom(w))
	}
	if d.Popup != nil {
		td.Popup = popupStateFrom(*d.Popup)
	}
	return td
}

// EventID returns the string form of a delta's seq, used as the
// `state-update` stream event id for client-side resume (§6).
func EventID(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}

func visibleWindows(snap *aggregator.Snapshot) map[string]bool {
	visible := make(map[string]bool, len(snap.Windows))
	for id, w := range snap.Windows {
		if id == snap.ActiveWindow || w.IsPaneGroupWindow || w.IsFloatWindow {
			visible[id] = true
		}
	}
	return visible
}

func paneStateFrom(p aggregator.PaneSnapshot) PaneState {
	return PaneState{
		TmuxID: p.ID, WindowID: p.WindowID,
		Left: p.Left, Top: p.Top, Width: p.Width, Height: p.Height,
		Active: p.Active, CurrentCommand: p.CurrentCommand, Title: p.Title,
		BorderTitle: p.BorderTitle, InMode: p.InMode,
		CursorX: p.CursorX, CursorY: p.CursorY,
		CopyCursorX: p.CopyCursorX, CopyCursorY: p.CopyCursorY,
		Paused: p.Paused, GroupID: p.GroupID,
		HistorySize: p.HistorySize, ScrollPosition: p.ScrollPosition,
		Content: gridToContent(p.Grid),
	}
}

func windowStateFrom(w aggregator.WindowSnapshot) WindowState {
	return WindowState{
		ID: w.ID, Index: w.Index, Name: w.Name, Active: w.Active,
		IsPaneGroupWindow: w.IsPaneGroupWindow, IsFloatWindow: w.IsFloatWindow,
	}
}

// panePatchFrom carries forward only the fields a PaneDelta marked
// changed; everything else stays nil so it is omitted from the wire.
func panePatchFrom(p aggregator.PaneDelta) PanePatch {
	patch := PanePatch{
		TmuxID: p.ID, WindowID: p.WindowID,
		Left: p.Left, Top: p.Top, Width: p.Width, Height: p.Height,
		Active: p.Active, CurrentCommand: p.CurrentCommand, Title: p.Title,
		BorderTitle: p.BorderTitle, InMode: p.InMode,
		CursorX: p.CursorX, CursorY: p.CursorY,
		CopyCursorX: p.CopyCursorX, CopyCursorY: p.CopyCursorY,
		Paused: p.Paused, GroupID: p.GroupID,
		HistorySize: p.HistorySize, ScrollPosition: p.ScrollPosition,
	}
	if p.GridChanged {
		patch.Content = gridToContent(p.Grid)
	}
	return patch
}

func windowPatchFrom(w aggregator.WindowDelta) WindowPatch {
	return WindowPatch{
		ID: w.ID, Index: w.Index, Name: w.Name, Active: w.Active,
		IsPaneGroupWindow: w.IsPaneGroupWindow, IsFloatWindow: w.IsFloatWindow,
	}
}

func popupStateFrom(p aggregator.PopupSnapshot) *PopupState {
	return &PopupState{
		ID: p.ID, Width: p.Width, Height: p.Height, Active: p.Active,
		Content: gridToContent(p.Grid),
	}
}
