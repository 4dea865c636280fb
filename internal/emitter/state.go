package emitter

import (
	"strconv"

	"tmuxy/internal/cellgrid"
)

// CellView is the JSON-facing form of one styled grid cell (used both in
// TmuxState pane content and in the get_scrollback_cells command response).
type CellView struct {
	Ch        string `json:"ch"`
	FG        string `json:"fg,omitempty"`
	BG        string `json:"bg,omitempty"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Inverse   bool   `json:"inverse,omitempty"`
}

// PaneState is the client-facing view of one pane.
type PaneState struct {
	TmuxID         string      `json:"tmux_id"`
	WindowID       string      `json:"window_id"`
	Left           int         `json:"left"`
	Top            int         `json:"top"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	Active         bool        `json:"active"`
	CurrentCommand string      `json:"current_command,omitempty"`
	Title          string      `json:"title,omitempty"`
	BorderTitle    string      `json:"border_title,omitempty"`
	InMode         bool        `json:"in_mode"`
	CursorX        int         `json:"cursor_x"`
	CursorY        int         `json:"cursor_y"`
	CopyCursorX    int         `json:"copy_cursor_x,omitempty"`
	CopyCursorY    int         `json:"copy_cursor_y,omitempty"`
	Paused         bool        `json:"paused,omitempty"`
	GroupID        string      `json:"group_id,omitempty"`
	HistorySize    int         `json:"history_size,omitempty"`
	ScrollPosition int         `json:"scroll_position,omitempty"`
	Content        [][]CellView `json:"content"`
}

// WindowState is the client-facing view of one window.
type WindowState struct {
	ID                string `json:"id"`
	Index             int    `json:"index"`
	Name              string `json:"name"`
	Active            bool   `json:"active"`
	IsPaneGroupWindow bool   `json:"is_pane_group_window,omitempty"`
	IsFloatWindow     bool   `json:"is_float_window,omitempty"`
}

// PopupState is the client-facing view of the session's popup, if any.
type PopupState struct {
	ID      string       `json:"id"`
	Width   int          `json:"width"`
	Height  int          `json:"height"`
	Active  bool         `json:"active"`
	Content [][]CellView `json:"content"`
}

// TmuxState is the full state payload (§6 `{type:"full", state:TmuxState}`).
type TmuxState struct {
	Panes        []PaneState   `json:"panes"`
	Windows      []WindowState `json:"windows"`
	ActiveWindow string        `json:"active_window"`
	StatusLine   string        `json:"status_line,omitempty"`
	Popup        *PopupState   `json:"popup,omitempty"`
}

// PanePatch is the client-facing field-sparse form of a pane delta entry:
// TmuxID is always set, every other field is nil unless it changed since
// the previous state update (§4.5, §8 scenario 2 — a pane whose only
// change was new output patches just Content/CursorX/CursorY).
type PanePatch struct {
	TmuxID         string        `json:"tmux_id"`
	WindowID       *string       `json:"window_id,omitempty"`
	Left           *int          `json:"left,omitempty"`
	Top            *int          `json:"top,omitempty"`
	Width          *int          `json:"width,omitempty"`
	Height         *int          `json:"height,omitempty"`
	Active         *bool         `json:"active,omitempty"`
	CurrentCommand *string       `json:"current_command,omitempty"`
	Title          *string       `json:"title,omitempty"`
	BorderTitle    *string       `json:"border_title,omitempty"`
	InMode         *bool         `json:"in_mode,omitempty"`
	CursorX        *int          `json:"cursor_x,omitempty"`
	CursorY        *int          `json:"cursor_y,omitempty"`
	CopyCursorX    *int          `json:"copy_cursor_x,omitempty"`
	CopyCursorY    *int          `json:"copy_cursor_y,omitempty"`
	Paused         *bool         `json:"paused,omitempty"`
	GroupID        *string       `json:"group_id,omitempty"`
	HistorySize    *int          `json:"history_size,omitempty"`
	ScrollPosition *int          `json:"scroll_position,omitempty"`
	Content        [][]CellView  `json:"content,omitempty"`
}

// WindowPatch is the client-facing field-sparse form of a window delta entry.
type WindowPatch struct {
	ID                string  `json:"id"`
	Index             *int    `json:"index,omitempty"`
	Name              *string `json:"name,omitempty"`
	Active            *bool   `json:"active,omitempty"`
	IsPaneGroupWindow *bool   `json:"is_pane_group_window,omitempty"`
	IsFloatWindow     *bool   `json:"is_float_window,omitempty"`
}

// TmuxDelta is the sparse delta payload (§6 `{type:"delta", delta:TmuxDelta}`).
// Panes/Windows entries carry only the fields that changed; a field absent
// from the JSON object means "unchanged since the last update".
type TmuxDelta struct {
	Seq                 uint64        `json:"seq"`
	Panes               []PanePatch   `json:"panes,omitempty"`
	RemovedPaneIDs      []string      `json:"removed_panes,omitempty"`
	Windows             []WindowPatch `json:"windows,omitempty"`
	RemovedWindowIDs    []string      `json:"removed_windows,omitempty"`
	ActiveWindowChanged bool          `json:"active_window_changed,omitempty"`
	ActiveWindow        string        `json:"active_window,omitempty"`
	StatusLineChanged   bool          `json:"status_line_changed,omitempty"`
	StatusLine          string        `json:"status_line,omitempty"`
	Popup               *PopupState   `json:"popup,omitempty"`
	PopupRemoved        bool          `json:"popup_removed,omitempty"`
}

// CellsFromGrid converts a raw cellgrid into the wire CellView form, for
// callers outside this package that parse a grid directly (§6
// get_scrollback_cells returns parsed cells using the same view type as
// pane content).
func CellsFromGrid(grid [][]cellgrid.Cell) [][]CellView {
	return gridToContent(grid)
}

func gridToContent(grid [][]cellgrid.Cell) [][]CellView {
	if grid == nil {
		return nil
	}
	out := make([][]CellView, len(grid))
	for i, row := range grid {
		cv := make([]CellView, len(row))
		for j, c := range row {
			cv[j] = cellToView(c)
		}
		out[i] = cv
	}
	return out
}

func cellToView(c cellgrid.Cell) CellView {
	v := CellView{
		Ch:        string(c.Rune),
		Bold:      c.Style.Bold,
		Italic:    c.Style.Italic,
		Underline: c.Style.Underline,
		Inverse:   c.Style.Inverse,
	}
	v.FG = colorString(c.Style.FG)
	v.BG = colorString(c.Style.BG)
	return v
}

func colorString(c cellgrid.Color) string {
	switch c.Mode {
	case cellgrid.ColorIndexed:
		return "idx:" + strconv.Itoa(int(c.Idx))
	case cellgrid.ColorRGB:
		return "#" + hexByte(c.R) + hexByte(c.G) + hexByte(c.B)
	default:
		return ""
	}
}

const hexDigits = "0123456789abcdef"

func hexByte(b uint8) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xf]})
}
