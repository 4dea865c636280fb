package aggregator

import "tmuxy/internal/cellgrid"

// fullSnapshotThreshold: if more than this fraction of panes changed
// since the previous snapshot, emit a Full state update instead of a
// sparse delta — cheaper to transmit and reassemble than a long list of
// per-pane patches once most of the session changed at once (§4.5).
const fullSnapshotThreshold = 0.5

// PaneDelta carries only the fields of a pane that changed since the
// previous snapshot. ID is always set; every other field is nil unless
// its value differs from the previous snapshot, so a pane whose only
// change was new output carries just Grid (and whatever cursor moved
// with it) rather than the whole pane (§4.5, §8 scenario 2).
type PaneDelta struct {
	ID       string
	Index    *int
	WindowID *string
	Left     *int
	Top      *int
	Width    *int
	Height   *int
	Active   *bool

	CurrentCommand *string
	Title          *string
	BorderTitle    *string

	InMode      *bool
	CopyCursorX *int
	CopyCursorY *int
	CursorX     *int
	CursorY     *int

	AlternateScreen *bool
	MouseAny        *bool
	Paused          *bool

	GroupID     *string
	GroupTabIdx *int

	SelectionPresent *bool
	SelectionStartX  *int
	SelectionStartY  *int
	HistorySize      *int
	ScrollPosition   *int

	GridChanged bool
	Grid        [][]cellgrid.Cell
}

// WindowDelta carries only the fields of a window that changed.
type WindowDelta struct {
	ID     string
	Index  *int
	Name   *string
	Active *bool
	Layout *string

	IsPaneGroupWindow *bool
	PaneGroupParentID *string
	IsFloatWindow     *bool
	FloatParentID     *string
	FloatWidth        *int
	FloatHeight       *int
}

// Delta is a sparse diff between two Snapshots.
type Delta struct {
	Seq  uint64
	Full bool // true: Panes/Windows below are the COMPLETE set, not a diff

	Panes          []PaneDelta // new or updated, field-sparse
	RemovedPaneIDs []string    // tombstones

	Windows          []WindowDelta
	RemovedWindowIDs []string

	ActiveWindowChanged bool
	ActiveWindow        string

	StatusLineChanged bool
	StatusLine        string

	Popup        *PopupSnapshot
	PopupRemoved bool
}

// IsEmpty reports whether the delta carries no change at all — callers
// must not emit (and must not bump seq for) an empty delta (§4.5, §8).
func (d *Delta) IsEmpty() bool {
	if d == nil {
		return true
	}
	if d.Full {
		return false
	}
	return len(d.Panes) == 0 && len(d.RemovedPaneIDs) == 0 &&
		len(d.Windows) == 0 && len(d.RemovedWindowIDs) == 0 &&
		!d.ActiveWindowChanged && !d.StatusLineChanged && d.Popup == nil && !d.PopupRemoved
}

// computeDelta diffs prev against cur. If the changed and removed panes
// exceed fullSnapshotThreshold of the larger of the previous and current
// pane counts, the returned Delta is marked Full and
// carries the complete pane/window sets instead of a sparse diff. A
// session with a single pane always gets a sparse diff.
func computeDelta(prev, cur *Snapshot) *Delta {
	if prev == nil {
		return fullDelta(cur)
	}

	changed := 0
	total := len(cur.Panes)
	if len(prev.Panes) > total {
		total = len(prev.Panes)
	}

	var changedPaneIDs, removedPaneIDs []string
	for id, p := range cur.Panes {
		if old, ok := prev.Panes[id]; !ok || !old.Equal(p) {
			changedPaneIDs = append(changedPaneIDs, id)
			changed++
		}
	}
	for id := range prev.Panes {
		if _, ok := cur.Panes[id]; !ok {
			removedPaneIDs = append(removedPaneIDs, id)
			changed++
		}
	}

	if total > 1 && float64(changed)/float64(total) > fullSnapshotThreshold {
		return fullDelta(cur)
	}

	d := &Delta{RemovedPaneIDs: removedPaneIDs}
	for _, id := range changedPaneIDs {
		c := cur.Panes[id]
		if old, ok := prev.Panes[id]; ok {
			d.Panes = append(d.Panes, diffPane(old, c))
		} else {
			d.Panes = append(d.Panes, newPaneDelta(c))
		}
	}

	for id, w := range cur.Windows {
		if old, ok := prev.Windows[id]; !ok {
			d.Windows = append(d.Windows, newWindowDelta(w))
		} else if old != w {
			d.Windows = append(d.Windows, diffWindow(old, w))
		}
	}
	for id := range prev.Windows {
		if _, ok := cur.Windows[id]; !ok {
			d.RemovedWindowIDs = append(d.RemovedWindowIDs, id)
		}
	}

	if cur.ActiveWindow != prev.ActiveWindow {
		d.ActiveWindowChanged = true
		d.ActiveWindow = cur.ActiveWindow
	}

	if cur.StatusLine != prev.StatusLine {
		d.StatusLineChanged = true
		d.StatusLine = cur.StatusLine
	}

	switch {
	case cur.Popup == nil && prev.Popup != nil:
		d.PopupRemoved = true
	case cur.Popup != nil && (prev.Popup == nil || !popupEqual(*cur.Popup, *prev.Popup)):
		d.Popup = cur.Popup
	}

	return d
}

func fullDelta(cur *Snapshot) *Delta {
	d := &Delta{
		Full:                true,
		ActiveWindowChanged: true,
		ActiveWindow:        cur.ActiveWindow,
		StatusLineChanged:   true,
		StatusLine:          cur.StatusLine,
	}
	for _, p := range cur.Panes {
		d.Panes = append(d.Panes, newPaneDelta(p))
	}
	for _, w := range cur.Windows {
		d.Windows = append(d.Windows, newWindowDelta(w))
	}
	d.Popup = cur.Popup
	return d
}

func popupEqual(a, b PopupSnapshot) bool {
	if a.ID != b.ID || a.Width != b.Width || a.Height != b.Height || a.X != b.X ||
		a.Y != b.Y || a.Command != b.Command || a.Active != b.Active {
		return false
	}
	return gridEqual(a.Grid, b.Grid)
}

// ptr is a small generic helper so a PaneDelta/WindowDelta field can be
// set inline from a value instead of a pre-declared local.
func ptr[T any](v T) *T { return &v }

// newPaneDelta reports every field of a pane newly seen by the client —
// there is no previous value to diff against, so everything is "changed".
func newPaneDelta(p PaneSnapshot) PaneDelta {
	return PaneDelta{
		ID: p.ID, Index: ptr(p.Index), WindowID: ptr(p.WindowID),
		Left: ptr(p.Left), Top: ptr(p.Top), Width: ptr(p.Width), Height: ptr(p.Height),
		Active: ptr(p.Active), CurrentCommand: ptr(p.CurrentCommand), Title: ptr(p.Title),
		BorderTitle: ptr(p.BorderTitle), InMode: ptr(p.InMode),
		CopyCursorX: ptr(p.CopyCursorX), CopyCursorY: ptr(p.CopyCursorY),
		CursorX: ptr(p.CursorX), CursorY: ptr(p.CursorY),
		AlternateScreen: ptr(p.AlternateScreen), MouseAny: ptr(p.MouseAny), Paused: ptr(p.Paused),
		GroupID: ptr(p.GroupID), GroupTabIdx: ptr(p.GroupTabIdx),
		SelectionPresent: ptr(p.SelectionPresent), SelectionStartX: ptr(p.SelectionStartX),
		SelectionStartY: ptr(p.SelectionStartY), HistorySize: ptr(p.HistorySize),
		ScrollPosition: ptr(p.ScrollPosition),
		GridChanged:    true, Grid: p.Grid,
	}
}

// diffPane reports only the fields that changed between old and cur.
func diffPane(old, cur PaneSnapshot) PaneDelta {
	d := PaneDelta{ID: cur.ID}
	if cur.Index != old.Index {
		d.Index = ptr(cur.Index)
	}
	if cur.WindowID != old.WindowID {
		d.WindowID = ptr(cur.WindowID)
	}
	if cur.Left != old.Left {
		d.Left = ptr(cur.Left)
	}
	if cur.Top != old.Top {
		d.Top = ptr(cur.Top)
	}
	if cur.Width != old.Width {
		d.Width = ptr(cur.Width)
	}
	if cur.Height != old.Height {
		d.Height = ptr(cur.Height)
	}
	if cur.Active != old.Active {
		d.Active = ptr(cur.Active)
	}
	if cur.CurrentCommand != old.CurrentCommand {
		d.CurrentCommand = ptr(cur.CurrentCommand)
	}
	if cur.Title != old.Title {
		d.Title = ptr(cur.Title)
	}
	if cur.BorderTitle != old.BorderTitle {
		d.BorderTitle = ptr(cur.BorderTitle)
	}
	if cur.InMode != old.InMode {
		d.InMode = ptr(cur.InMode)
	}
	if cur.CopyCursorX != old.CopyCursorX {
		d.CopyCursorX = ptr(cur.CopyCursorX)
	}
	if cur.CopyCursorY != old.CopyCursorY {
		d.CopyCursorY = ptr(cur.CopyCursorY)
	}
	if cur.CursorX != old.CursorX {
		d.CursorX = ptr(cur.CursorX)
	}
	if cur.CursorY != old.CursorY {
		d.CursorY = ptr(cur.CursorY)
	}
	if cur.AlternateScreen != old.AlternateScreen {
		d.AlternateScreen = ptr(cur.AlternateScreen)
	}
	if cur.MouseAny != old.MouseAny {
		d.MouseAny = ptr(cur.MouseAny)
	}
	if cur.Paused != old.Paused {
		d.Paused = ptr(cur.Paused)
	}
	if cur.GroupID != old.GroupID {
		d.GroupID = ptr(cur.GroupID)
	}
	if cur.GroupTabIdx != old.GroupTabIdx {
		d.GroupTabIdx = ptr(cur.GroupTabIdx)
	}
	if cur.SelectionPresent != old.SelectionPresent {
		d.SelectionPresent = ptr(cur.SelectionPresent)
	}
	if cur.SelectionStartX != old.SelectionStartX {
		d.SelectionStartX = ptr(cur.SelectionStartX)
	}
	if cur.SelectionStartY != old.SelectionStartY {
		d.SelectionStartY = ptr(cur.SelectionStartY)
	}
	if cur.HistorySize != old.HistorySize {
		d.HistorySize = ptr(cur.HistorySize)
	}
	if cur.ScrollPosition != old.ScrollPosition {
		d.ScrollPosition = ptr(cur.ScrollPosition)
	}
	if !gridEqual(old.Grid, cur.Grid) {
		d.GridChanged = true
		d.Grid = cur.Grid
	}
	return d
}

func newWindowDelta(w WindowSnapshot) WindowDelta {
	return WindowDelta{
		ID: w.ID, Index: ptr(w.Index), Name: ptr(w.Name), Active: ptr(w.Active), Layout: ptr(w.Layout),
		IsPaneGroupWindow: ptr(w.IsPaneGroupWindow), PaneGroupParentID: ptr(w.PaneGroupParentID),
		IsFloatWindow: ptr(w.IsFloatWindow), FloatParentID: ptr(w.FloatParentID),
		FloatWidth: ptr(w.FloatWidth), FloatHeight: ptr(w.FloatHeight),
	}
}

func diffWindow(old, cur WindowSnapshot) WindowDelta {
	d := WindowDelta{ID: cur.ID}
	if cur.Index != old.Index {
		d.Index = ptr(cur.Index)
	}
	if cur.Name != old.Name {
		d.Name = ptr(cur.Name)
	}
	if cur.Active != old.Active {
		d.Active = ptr(cur.Active)
	}
	if cur.Layout != old.Layout {
		d.Layout = ptr(cur.Layout)
	}
	if cur.IsPaneGroupWindow != old.IsPaneGroupWindow {
		d.IsPaneGroupWindow = ptr(cur.IsPaneGroupWindow)
	}
	if cur.PaneGroupParentID != old.PaneGroupParentID {
		d.PaneGroupParentID = ptr(cur.PaneGroupParentID)
	}
	if cur.IsFloatWindow != old.IsFloatWindow {
		d.IsFloatWindow = ptr(cur.IsFloatWindow)
	}
	if cur.FloatParentID != old.FloatParentID {
		d.FloatParentID = ptr(cur.FloatParentID)
	}
	if cur.FloatWidth != old.FloatWidth {
		d.FloatWidth = ptr(cur.FloatWidth)
	}
	if cur.FloatHeight != old.FloatHeight {
		d.FloatHeight = ptr(cur.FloatHeight)
	}
	return d
}
