package aggregator

import (
	"log/slog"
	"strconv"
	"strings"

	"tmuxy/internal/cellgrid"
	"tmuxy/internal/controlmode"
)

// ChangeKind classifies what kind of change a fold produced, mirroring
// spec §4.5's change_type enum.
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	ChangePaneOutput
	ChangePaneLayout
	ChangeWindow
	ChangePaneFocus
	ChangeSession
	ChangeFull
	ChangeFlowPause
	ChangeFlowContinue
)

// ChangeType is the fold's classification of one event, optionally
// carrying the pane id it concerns (PaneOutput, FlowPause, FlowContinue).
type ChangeType struct {
	Kind   ChangeKind
	PaneID string
}

// FoldResult is what HandleEvent returns: whether state changed, which
// panes (if any) need a fresh capture-pane, and the classified change.
type FoldResult struct {
	StateChanged        bool
	PanesNeedingRefresh []string
	Change              ChangeType
}

// Aggregator folds control-mode Events into a Session's state (§4.5). One
// Aggregator exists per session, owned exclusively by that session's
// Monitor task — no locking, single-owner mutation (§5).
type Aggregator struct {
	session *Session
}

// New returns an Aggregator for a freshly attached session named name.
func New(name string) *Aggregator {
	return &Aggregator{session: NewSession(name)}
}

// Session exposes the underlying model, mainly for the Monitor to read
// pane geometry when issuing commands (e.g. resize targets).
func (a *Aggregator) Session() *Session { return a.session }

// HandleEvent folds one parsed control-mode Event into the session.
func (a *Aggregator) HandleEvent(ev controlmode.Event) FoldResult {
	switch ev.Kind {
	case controlmode.KindOutput, controlmode.KindExtendedOutput:
		return a.handleOutput(ev)
	case controlmode.KindLayoutChange:
		return a.handleLayoutChange(ev)
	case controlmode.KindWindowAdd:
		return a.handleWindowAdd(ev)
	case controlmode.KindWindowClose:
		return a.handleWindowClose(ev)
	case controlmode.KindWindowRenamed:
		return a.handleWindowRenamed(ev)
	case controlmode.KindWindowPaneChanged:
		return a.handleWindowPaneChanged(ev)
	case controlmode.KindPaneModeChanged:
		// §9 OQ2: conservative — do not flip in_mode optimistically, only
		// surface a focus notification; the next list-panes sync (≤500ms,
		// ≤50ms in copy mode) reconciles the authoritative value.
		return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangePaneFocus, PaneID: ev.PaneID}}
	case controlmode.KindSessionChanged:
		return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangeSession}}
	case controlmode.KindSessionWindowChanged:
		return a.handleSessionWindowChanged(ev)
	case controlmode.KindSessionsChanged:
		// §9 OQ1: suppressed entirely — global notification, not specific
		// to the subscribed session.
		return FoldResult{}
	case controlmode.KindCommandResponse:
		return a.handleCommandResponse(ev)
	case controlmode.KindPause:
		return a.handlePause(ev)
	case controlmode.KindContinue:
		return a.handleContinue(ev)
	default:
		return FoldResult{}
	}
}

func (a *Aggregator) handleOutput(ev controlmode.Event) FoldResult {
	pane, ok := a.session.Panes[ev.PaneID]
	if !ok {
		slog.Debug("[aggregator] output for unknown pane, dropping", "pane", ev.PaneID)
		return FoldResult{}
	}
	sanitized, _, _ := pane.OSC.Feed(ev.Content)
	pane.Emulator.Write(sanitized)
	pane.raw.Write(ev.Content)
	return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangePaneOutput, PaneID: pane.ID}}
}

func (a *Aggregator) handleLayoutChange(ev controlmode.Event) FoldResult {
	root, err := ParseLayout(ev.Layout)
	if err != nil {
		slog.Debug("[aggregator] unparsable layout string, ignoring", "error", err, "layout", ev.Layout)
		return FoldResult{}
	}
	w, ok := a.session.Windows[ev.WindowID]
	if !ok {
		return FoldResult{}
	}
	w.Layout = ev.Layout

	var refresh []string
	for _, leaf := range root.Leaves() {
		paneID := "%" + strconv.Itoa(leaf.PaneIndex)
		pane, ok := a.session.Panes[paneID]
		// Gate on matching window id (§9 design note): never apply a
		// layout update to a pane that list-panes hasn't yet told us
		// belongs to this window, to avoid racing a stale layout string
		// against a pane that just moved.
		if !ok || pane.WindowID != ev.WindowID {
			continue
		}
		if pane.Width != leaf.Width || pane.Height != leaf.Height {
			refresh = append(refresh, paneID)
		}
		pane.Left, pane.Top, pane.Width, pane.Height = leaf.X, leaf.Y, leaf.Width, leaf.Height
		if pane.Emulator != nil {
			pane.Emulator.Resize(leaf.Width, leaf.Height)
		}
	}
	return FoldResult{StateChanged: true, PanesNeedingRefresh: refresh, Change: ChangeType{Kind: ChangePaneLayout}}
}

func (a *Aggregator) handleWindowAdd(ev controlmode.Event) FoldResult {
	if _, exists := a.session.Windows[ev.WindowID]; !exists {
		a.session.Windows[ev.WindowID] = &Window{ID: ev.WindowID, nameSuppressed: true}
	}
	a.session.statusLineDirty = true
	// §3 lifecycle: suppressed until named, no emission yet.
	return FoldResult{}
}

func (a *Aggregator) handleWindowClose(ev controlmode.Event) FoldResult {
	delete(a.session.Windows, ev.WindowID)
	for id, p := range a.session.Panes {
		if p.WindowID == ev.WindowID {
			delete(a.session.Panes, id)
		}
	}
	return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangeWindow}}
}

func (a *Aggregator) handleWindowRenamed(ev controlmode.Event) FoldResult {
	w, ok := a.session.Windows[ev.WindowID]
	if !ok {
		w = &Window{ID: ev.WindowID}
		a.session.Windows[ev.WindowID] = w
	}
	w.Name = ev.Name
	w.nameSuppressed = false
	classifyWindowName(w)
	a.session.statusLineDirty = true
	return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangeWindow}}
}

func (a *Aggregator) handleWindowPaneChanged(ev controlmode.Event) FoldResult {
	for _, p := range a.session.Panes {
		if p.WindowID == ev.WindowID {
			p.Active = p.ID == ev.PaneID
		}
	}
	return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangePaneFocus, PaneID: ev.PaneID}}
}

func (a *Aggregator) handleSessionWindowChanged(ev controlmode.Event) FoldResult {
	a.session.ActiveWindow = ev.WindowID
	for id, w := range a.session.Windows {
		w.Active = id == ev.WindowID
	}
	a.session.statusLineDirty = true
	return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangeSession}}
}

func (a *Aggregator) handlePause(ev controlmode.Event) FoldResult {
	if p, ok := a.session.Panes[ev.PaneID]; ok {
		p.Paused = true
	}
	return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangeFlowPause, PaneID: ev.PaneID}}
}

func (a *Aggregator) handleContinue(ev controlmode.Event) FoldResult {
	if p, ok := a.session.Panes[ev.PaneID]; ok {
		p.Paused = false
	}
	return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangeFlowContinue, PaneID: ev.PaneID}}
}

// --- Pending capture FIFO (§4.5 CommandResponse matching) ---

// EnqueueListPanes must be called immediately before sending `list-panes`,
// so the matching %begin/%end block is recognized by FIFO order rather
// than by tmux's command number (which does not reliably track external
// callers attaching to an existing session, §9).
func (a *Aggregator) EnqueueListPanes() {
	a.session.pendingCaptures = append(a.session.pendingCaptures, pendingCapture{Kind: captureListPanes})
}

func (a *Aggregator) EnqueueListWindows() {
	a.session.pendingCaptures = append(a.session.pendingCaptures, pendingCapture{Kind: captureListWindows})
}

func (a *Aggregator) EnqueuePaneCapture(paneID string) {
	a.session.pendingCaptures = append(a.session.pendingCaptures, pendingCapture{Kind: capturePaneContent, PaneID: paneID})
}

func (a *Aggregator) EnqueueCopyModeCapture(paneID string) {
	a.session.pendingCaptures = append(a.session.pendingCaptures, pendingCapture{Kind: captureCopyModeContent, PaneID: paneID})
}

// EnqueueQuery registers an ad-hoc command whose raw output should be
// delivered to reply rather than folded into session state. reply must be
// buffered (capacity >= 1): the send is best-effort and never blocks the
// fold.
func (a *Aggregator) EnqueueQuery(reply chan<- QueryResult) {
	a.session.pendingCaptures = append(a.session.pendingCaptures, pendingCapture{Kind: captureQuery, Reply: reply})
}

func (a *Aggregator) handleCommandResponse(ev controlmode.Event) FoldResult {
	if len(a.session.pendingCaptures) == 0 {
		slog.Debug("[aggregator] command response with no pending capture, dropping", "success", ev.Success)
		return FoldResult{}
	}
	pc := a.session.pendingCaptures[0]
	a.session.pendingCaptures = a.session.pendingCaptures[1:]

	if pc.Kind == captureQuery {
		if pc.Reply != nil {
			select {
			case pc.Reply <- QueryResult{Output: ev.Output, Success: ev.Success}:
			default:
			}
		}
		return FoldResult{}
	}

	if !ev.Success {
		slog.Debug("[aggregator] command failed", "kind", pc.Kind, "output", ev.Output)
		return FoldResult{}
	}

	switch pc.Kind {
	case captureListPanes:
		a.applyListPanes(ev.Output)
		return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangeFull}}
	case captureListWindows:
		a.applyListWindows(ev.Output)
		return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangeFull}}
	case capturePaneContent:
		a.applyPaneCapture(pc.PaneID, ev.Output)
		return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangePaneOutput, PaneID: pc.PaneID}}
	case captureCopyModeContent:
		a.applyCopyModeCapture(pc.PaneID, ev.Output)
		return FoldResult{StateChanged: true, Change: ChangeType{Kind: ChangePaneOutput, PaneID: pc.PaneID}}
	default:
		return FoldResult{}
	}
}

func (a *Aggregator) applyListPanes(output string) {
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parsed, err := ParsePaneLine(line)
		if err != nil {
			slog.Debug("[aggregator] unparsable list-panes line", "error", err)
			continue
		}
		seen[parsed.ID] = true

		existing, ok := a.session.Panes[parsed.ID]
		if !ok {
			existing = &Pane{ID: parsed.ID}
			existing.Emulator = cellgrid.New(parsed.Width, parsed.Height)
			existing.OSC = newOSCTracker()
			existing.raw = newRingBuffer(maxRawBufferBytes)
			a.session.Panes[parsed.ID] = existing
		}

		prevW, prevH := existing.Width, existing.Height
		em, osc, raw, cm := existing.Emulator, existing.OSC, existing.raw, existing.copyMode
		*existing = parsed
		existing.Emulator, existing.OSC, existing.raw, existing.copyMode = em, osc, raw, cm

		if existing.Width != prevW || existing.Height != prevH {
			existing.Emulator.Resize(existing.Width, existing.Height)
		}
		if !existing.InMode {
			existing.copyMode = nil
		}
	}

	// §4.5 pane deletion rule: any pane absent from a fresh list-panes
	// response no longer exists.
	for id := range a.session.Panes {
		if !seen[id] {
			delete(a.session.Panes, id)
		}
	}
}

func (a *Aggregator) applyListWindows(output string) {
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		w, err := ParseWindowLine(line)
		if err != nil {
			slog.Debug("[aggregator] unparsable list-windows line", "error", err)
			continue
		}
		seen[w.ID] = true
		wCopy := w
		a.session.Windows[w.ID] = &wCopy
		if w.Active {
			a.session.ActiveWindow = w.ID
		}
	}
	for id := range a.session.Windows {
		if !seen[id] {
			delete(a.session.Windows, id)
		}
	}
}

func (a *Aggregator) applyPaneCapture(paneID, output string) {
	pane, ok := a.session.Panes[paneID]
	if !ok {
		return
	}
	normalized := strings.ReplaceAll(output, "\n", "\r\n")
	pane.Emulator = cellgrid.New(pane.Width, pane.Height)
	pane.Emulator.Write([]byte(normalized))
	// §4.5: after reprocessing a full capture, reposition the cursor from
	// the pane's own authoritative cursor fields rather than trusting
	// wherever the replayed text happened to leave it.
	pane.Emulator.SetCursor(pane.CursorY, pane.CursorX)
}

func (a *Aggregator) applyCopyModeCapture(paneID, output string) {
	pane, ok := a.session.Panes[paneID]
	if !ok {
		return
	}
	normalized := strings.ReplaceAll(output, "\n", "\r\n")
	tmp := cellgrid.New(pane.Width, pane.Height)
	tmp.Write([]byte(normalized))
	pane.copyMode = &copyModeSnapshot{Grid: tmp.Grid()}
}

// --- Snapshot / delta emission (§4.5, §8) ---

// Snapshot returns the current full state.
func (a *Aggregator) Snapshot() *Snapshot {
	return a.session.Snapshot()
}

// ComputeDelta diffs the current state against the last emitted snapshot,
// bumping seq and updating the stored snapshot only if the result is
// non-empty (§8: "empty delta means no emit", seq only increases on
// non-empty emission).
func (a *Aggregator) ComputeDelta() *Delta {
	cur := a.session.Snapshot()
	d := computeDelta(a.session.prev, cur)
	if d.IsEmpty() {
		return d
	}
	a.session.seq++
	d.Seq = a.session.seq
	a.session.prev = cur
	return d
}

// Seq returns the current sequence number.
func (a *Aggregator) Seq() uint64 { return a.session.seq }
