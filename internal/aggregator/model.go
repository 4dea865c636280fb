// Package aggregator implements the session data model of spec §3 and the
// State Aggregator fold logic of §4.5: it owns one Session per tmux
// session, folding Parser events into Pane/Window/Popup state and emitting
// sparse deltas (or an occasional full snapshot) to the Monitor Loop.
package aggregator

import "tmuxy/internal/cellgrid"

// Pane is one tmux pane, identified by its `%N` id for its entire
// lifetime — a pane's identity is never reconstructed from a layout
// position (§9 design note).
type Pane struct {
	ID    string // "%N"
	Index int

	WindowID string
	Left     int
	Top      int
	Width    int
	Height   int

	Active bool

	CurrentCommand string
	Title          string
	BorderTitle    string

	InMode          bool // copy mode or similar
	CopyCursorX     int
	CopyCursorY     int
	CursorX         int // authoritative cursor reported by list-panes
	CursorY         int
	AlternateScreen bool
	MouseAny        bool

	Paused bool

	GroupID      string
	GroupTabIdx  int

	// Supplemented fields (original_source list-panes format carries more
	// than spec.md's distilled format string): §6 get_scrollback_cells
	// needs these to report history accurately.
	SelectionPresent bool
	SelectionStartX  int
	SelectionStartY  int
	HistorySize      int
	ScrollPosition   int

	Emulator *cellgrid.Emulator
	OSC      *oscTracker

	raw      *ringBuffer // bounded ~64KiB raw capture buffer (§5 memory bounds)
	copyMode *copyModeSnapshot
}

// copyModeSnapshot freezes the externally-visible grid while a pane is in
// copy mode: the live emulator keeps advancing from captured scrollback,
// but clients should see the frozen view until copy mode ends (§8
// scenario 6).
type copyModeSnapshot struct {
	Grid [][]cellgrid.Cell
}

// Window is one tmux window.
type Window struct {
	ID     string // "@N"
	Index  int
	Name   string
	Active bool
	Layout string

	// Derived from the window name pattern, never persisted by tmux
	// itself (§3, SPEC_FULL supplemented feature 1).
	IsPaneGroupWindow bool
	PaneGroupParentID string // the %paneId the group window shadows
	IsFloatWindow     bool

	FloatParentID string
	FloatWidth    int
	FloatHeight   int

	nameSuppressed bool // true until the first %window-renamed with a non-default name
}

// Popup is tmux's single floating popup, owned by the Session (at most
// one live at a time, per §3). tmux control mode emits no notification
// for a popup's open/close/resize — display-popup is a client-side
// overlay, not session state tmux broadcasts to `-C` subscribers — so
// nothing in this package ever sets Session.Popup today. The field, the
// PopupSnapshot/Delta.Popup plumbing, and the emitter's PopupState all
// stay in place for the day a future tmux version (or a wrapping script)
// surfaces a popup notification to fold; until then a session's popup
// state is always nil.
type Popup struct {
	ID      string
	Width   int
	Height  int
	X       int
	Y       int
	Command string
	Active  bool

	Emulator *cellgrid.Emulator
}

// Session is the full folded state of one tmux session, owned exclusively
// by its Monitor task — no cross-goroutine mutation (§5 concurrency
// model: single-owner, lock-free inside the Monitor task).
type Session struct {
	Name string

	Panes        map[string]*Pane
	Windows      map[string]*Window
	ActiveWindow string
	Popup        *Popup

	StatusLine      string
	statusLineDirty bool

	pendingCaptures []pendingCapture // FIFO queue, §4.5 CommandResponse matching

	seq uint64

	prev *Snapshot // previous emitted snapshot, for delta computation
}

type pendingCapture struct {
	PaneID string
	Kind   captureKind
	Reply  chan<- QueryResult // only set for captureQuery
}

type captureKind int

const (
	captureListPanes captureKind = iota
	captureListWindows
	capturePaneContent
	captureCopyModeContent
	captureQuery
)

// QueryResult is the raw command-response output for an ad-hoc query
// issued outside the normal list-panes/list-windows/capture-pane sync
// cycle (e.g. §6 get_scrollback_cells), delivered back through the FIFO
// like any other pending capture so command numbering never needs to
// line up (§9).
type QueryResult struct {
	Output  string
	Success bool
}

// NewSession returns an empty Session ready to be folded into.
func NewSession(name string) *Session {
	return &Session{
		Name:    name,
		Panes:   make(map[string]*Pane),
		Windows: make(map[string]*Window),
	}
}
