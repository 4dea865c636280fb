// Package monitor implements the Monitor Loop of spec §4.6: one Monitor
// owns exactly one controlmode.Connection and one aggregator.Aggregator,
// pumping parsed events into the fold, throttling bursty pane output, and
// driving the periodic list-panes/list-windows resync that keeps the fold
// honest against drift. Grounded on
// `original_source/packages/tmuxy-core/src/control_mode/monitor.rs`'s
// `TmuxMonitor::run`, translated from a `tokio::select!` event loop into
// Go's idiomatic channel-select equivalent.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"tmuxy/internal/aggregator"
	"tmuxy/internal/controlmode"
	"tmuxy/internal/emitter"
	"tmuxy/internal/keybindings"
)

// Config mirrors the original's MonitorConfig defaults (§4.6).
type Config struct {
	Session              string
	WorkDir              string
	CreateSession        bool
	SyncInterval         time.Duration
	CopyModeSyncInterval time.Duration
	ThrottleInterval     time.Duration
	ThrottleThreshold    int
	RateWindow           time.Duration
}

// DefaultConfig returns a Config with the original's tuned defaults.
func DefaultConfig(session string) Config {
	return Config{
		Session:              session,
		SyncInterval:         500 * time.Millisecond,
		CopyModeSyncInterval: 50 * time.Millisecond,
		ThrottleInterval:     16 * time.Millisecond,
		ThrottleThreshold:    20,
		RateWindow:           100 * time.Millisecond,
	}
}

// Command is a request from the Session Registry's command channel into a
// running Monitor loop (§4.6, §4.7).
type Command interface {
	isMonitorCommand()
}

// ResizeWindow asks the Monitor to resize the underlying PTY/tmux client.
type ResizeWindow struct {
	Cols, Rows int
}

// RunCommand asks the Monitor to forward one or more already-translated
// tmux command strings (the blocked-resize check and `\ ;` unescaping
// happen once, in internal/command's Translate, not here — the command
// handler in internal/transport calls Translate before constructing this
// Command).
type RunCommand struct {
	Commands []string
	Reply    chan<- error
}

// Shutdown asks the Monitor to detach gracefully and stop its loop.
type Shutdown struct{}

// Query asks the Monitor to run one or more already-translated tmux
// commands and deliver the raw command-response output back on Reply,
// for callers that need the response body rather than just success/fail
// (§6 get_scrollback_cells). Reply must be buffered (capacity >= 1).
type Query struct {
	Commands []string
	Reply    chan<- aggregator.QueryResult
}

func (ResizeWindow) isMonitorCommand() {}
func (RunCommand) isMonitorCommand()   {}
func (Shutdown) isMonitorCommand()     {}
func (Query) isMonitorCommand()        {}

// Monitor owns one tmux control-mode Connection and its Aggregator,
// exclusively — no other goroutine may touch either (§5 concurrency
// model: single-owner per session).
type Monitor struct {
	cfg  Config
	conn *controlmode.Connection
	agg  *aggregator.Aggregator

	commands      chan Command
	configPath    string
	configChanged chan struct{}

	keyTable keybindings.Table
}

// Connect attaches to cfg.Session, creating it first if cfg.CreateSession
// is set and the session does not already exist — mirrors the original's
// `connect` fallback from attach to new_session.
func Connect(ctx context.Context, cfg Config) (*Monitor, error) {
	conn, err := controlmode.Connect(ctx, cfg.Session, cfg.WorkDir)
	if err != nil {
		if cfg.CreateSession && errors.Is(err, controlmode.ErrSessionNotFound) {
			conn, err = controlmode.NewSession(ctx, cfg.Session, cfg.WorkDir)
		}
		if err != nil {
			return nil, fmt.Errorf("monitor: connect: %w", err)
		}
	}
	return &Monitor{
		cfg:           cfg,
		conn:          conn,
		agg:           aggregator.New(cfg.Session),
		commands:      make(chan Command, 8),
		configChanged: make(chan struct{}, 1),
	}, nil
}

// Commands returns the channel the Session Registry sends Resize/RunCommand/
// Shutdown requests on.
func (m *Monitor) Commands() chan<- Command {
	return m.commands
}

// SyncInitialState performs the one-time attach sequence (§4.6): resize
// the PTY to the initial size, source the user's config file if found,
// turn on tmux flow control (`pause-after=5`) so a pane whose output backs
// up is paused instead of flooding the connection, then issue the initial
// full sync.
func (m *Monitor) SyncInitialState(cols, rows int) error {
	if _, err := m.conn.Send(fmt.Sprintf("resizew -t %s -x %d -y %d", m.cfg.Session, cols, rows)); err != nil {
		return err
	}
	if path, ok := findConfigPath(); ok {
		m.configPath = path
		if _, err := m.conn.Send(fmt.Sprintf("source-file %s", path)); err != nil {
			slog.Warn("[monitor] source-file failed", "path", path, "error", err)
		}
	}
	if _, err := m.conn.Send("refresh-client -f pause-after=5"); err != nil {
		slog.Debug("[monitor] refresh-client pause-after failed", "error", err)
	}
	m.keyTable = m.fetchKeyBindings()
	return m.syncAll()
}

// KeyBindings returns the prefix/root binding table fetched during
// SyncInitialState (§6 `keybindings` stream event, `get_key_bindings`
// command).
func (m *Monitor) KeyBindings() keybindings.Table {
	return m.keyTable
}

// fetchKeyBindings issues `show-options -g prefix`, `list-keys -T prefix`,
// and `list-keys -T root` and reads their three responses directly off the
// connection, in order, before anything is enqueued in the Aggregator's
// capture FIFO (§4.5, §9: the FIFO must stay aligned with list-panes/
// list-windows/capture-pane responses only). Any notification interleaved
// before a response arrives is not discarded — it is folded into the
// Aggregator immediately, since Run has not started pumping events yet.
func (m *Monitor) fetchKeyBindings() keybindings.Table {
	table := keybindings.Table{Prefix: keybindings.DefaultPrefix}

	read := func(cmdDesc string) (string, bool) {
		for ev := range m.conn.Events() {
			if ev.Kind == controlmode.KindCommandResponse {
				return ev.Output, ev.Success
			}
			m.agg.HandleEvent(ev)
		}
		slog.Debug("[monitor] connection closed while fetching key bindings", "command", cmdDesc)
		return "", false
	}

	if _, err := m.conn.Send("show-options -g prefix"); err != nil {
		slog.Debug("[monitor] show-options send failed", "error", err)
		return table
	}
	if out, ok := read("show-options -g prefix"); ok {
		table.Prefix = keybindings.ParsePrefixOption(out)
	}

	if _, err := m.conn.Send("list-keys -T prefix"); err != nil {
		slog.Debug("[monitor] list-keys -T prefix send failed", "error", err)
		return table
	}
	if out, ok := read("list-keys -T prefix"); ok {
		table.PrefixBindings = keybindings.ParseListKeys(out)
	}

	if _, err := m.conn.Send("list-keys -T root"); err != nil {
		slog.Debug("[monitor] list-keys -T root send failed", "error", err)
		return table
	}
	if out, ok := read("list-keys -T root"); ok {
		table.RootBindings = keybindings.ParseListKeys(out)
	}

	return table
}

// syncAll issues list-windows followed by list-panes, enqueueing their
// FIFO capture markers first so the eventual %begin/%end responses are
// matched correctly (§4.5, §9).
func (m *Monitor) syncAll() error {
	m.agg.EnqueueListWindows()
	if _, err := m.conn.Send("list-windows -F '" + aggregator.WindowListFormat + "'"); err != nil {
		return fmt.Errorf("monitor: list-windows: %w", err)
	}
	m.agg.EnqueueListPanes()
	if _, err := m.conn.Send("list-panes -s -F '" + aggregator.PaneListFormat + "'"); err != nil {
		return fmt.Errorf("monitor: list-panes: %w", err)
	}
	return nil
}

// syncCopyModePanes captures the visible scrollback window for every pane
// currently in copy mode, using the original's capture range formula:
// the EARLIEST line needed is `-(scroll_pos)-(height)+1` and the LATEST is
// `-(scroll_pos)`, both negative offsets from the bottom of history.
func (m *Monitor) syncCopyModePanes() {
	for id, p := range m.agg.Session().Panes {
		if !p.InMode {
			continue
		}
		start := -(p.ScrollPosition) - p.Height + 1
		end := -(p.ScrollPosition)
		m.agg.EnqueueCopyModeCapture(id)
		cmd := fmt.Sprintf("capture-pane -t %s -p -e -S %d -E %d", id, start, end)
		if _, err := m.conn.Send(cmd); err != nil {
			slog.Debug("[monitor] copy-mode capture failed", "pane", id, "error", err)
		}
	}
}

// watchConfig watches the resolved config path (if any was found) and
// signals configChanged on every write, so a long-running Monitor picks up
// edits without the client reattaching — the original only ever sources
// the file once, at connect (SPEC_FULL supplemented feature). The watcher
// goroutine exits once ctx is canceled.
func (m *Monitor) watchConfig(ctx context.Context) {
	if m.configPath == "" {
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("[monitor] config watcher unavailable", "error", err)
		return
	}
	if err := w.Add(m.configPath); err != nil {
		slog.Debug("[monitor] config watch add failed", "path", m.configPath, "error", err)
		w.Close()
		return
	}
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Write) {
					select {
					case m.configChanged <- struct{}{}:
					default:
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Debug("[monitor] config watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Monitor) hasCopyModePane() bool {
	for _, p := range m.agg.Session().Panes {
		if p.InMode {
			return true
		}
	}
	return false
}

// Run drives the Monitor's event loop until the connection closes, ctx is
// canceled, or a Shutdown command arrives. It pumps parsed events into the
// Aggregator's fold, adaptively throttles bursty pane-output emission,
// resyncs on a timer (faster while any pane is in copy mode), and answers
// the Resize/RunCommand/Shutdown command channel — a Go rendering of the
// original's 4-way `tokio::select!` (§4.6).
func (m *Monitor) Run(ctx context.Context, em emitter.Emitter) error {
	m.watchConfig(ctx)

	syncInterval := m.cfg.SyncInterval
	syncTimer := time.NewTimer(syncInterval)
	defer syncTimer.Stop()

	var throttleTimer *time.Timer
	var throttleC <-chan time.Time
	var pendingEmit bool

	rateWindowStart := time.Now()
	rateCount := 0

	armThrottle := func() {
		if throttleC != nil {
			return
		}
		throttleTimer = time.NewTimer(m.cfg.ThrottleInterval)
		throttleC = throttleTimer.C
	}
	disarmThrottle := func() {
		if throttleTimer != nil {
			throttleTimer.Stop()
		}
		throttleC = nil
	}
	defer disarmThrottle()

	for {
		select {
		case ev, ok := <-m.conn.Events():
			if !ok {
				return nil
			}
			result := m.agg.HandleEvent(ev)

			if result.Change.Kind == aggregator.ChangeFlowPause {
				cmd := fmt.Sprintf("refresh-client -A '%s:continue'", result.Change.PaneID)
				if _, err := m.conn.Send(cmd); err != nil {
					slog.Debug("[monitor] flow-continue send failed", "pane", result.Change.PaneID, "error", err)
				}
			}

			for _, paneID := range result.PanesNeedingRefresh {
				m.agg.EnqueuePaneCapture(paneID)
				cmd := fmt.Sprintf("capture-pane -t %s -p -e", paneID)
				if _, err := m.conn.Send(cmd); err != nil {
					slog.Debug("[monitor] pane refresh send failed", "pane", paneID, "error", err)
				}
			}

			if !result.StateChanged {
				break
			}

			if result.Change.Kind == aggregator.ChangePaneOutput {
				now := time.Now()
				if now.Sub(rateWindowStart) > m.cfg.RateWindow {
					rateWindowStart = now
					rateCount = 0
				}
				rateCount++
				if rateCount > m.cfg.ThrottleThreshold {
					pendingEmit = true
					armThrottle()
				} else {
					m.emit(em)
				}
			} else {
				m.emit(em)
			}

		case <-throttleC:
			throttleC = nil
			if pendingEmit {
				m.emit(em)
				pendingEmit = false
			}

		case <-syncTimer.C:
			if m.hasCopyModePane() {
				m.syncCopyModePanes()
				syncInterval = m.cfg.CopyModeSyncInterval
			} else {
				if err := m.syncAll(); err != nil {
					slog.Warn("[monitor] periodic sync failed", "error", err)
				}
				syncInterval = m.cfg.SyncInterval
			}
			syncTimer.Reset(syncInterval)

		case <-m.configChanged:
			if _, err := m.conn.Send(fmt.Sprintf("source-file %s", m.configPath)); err != nil {
				slog.Warn("[monitor] config re-source failed", "path", m.configPath, "error", err)
			}

		case cmd := <-m.commands:
			switch c := cmd.(type) {
			case ResizeWindow:
				if err := m.conn.Resize(c.Cols, c.Rows); err != nil {
					slog.Warn("[monitor] resize failed", "error", err)
				}
			case RunCommand:
				var err error
				if len(c.Commands) == 1 {
					_, err = m.conn.Send(c.Commands[0])
				} else if len(c.Commands) > 1 {
					_, err = m.conn.SendBatch(c.Commands)
				}
				if c.Reply != nil {
					c.Reply <- err
				}
			case Query:
				var err error
				switch {
				case len(c.Commands) == 1:
					_, err = m.conn.Send(c.Commands[0])
				case len(c.Commands) > 1:
					_, err = m.conn.SendBatch(c.Commands)
				default:
					err = fmt.Errorf("monitor: query with no commands")
				}
				if err != nil {
					if c.Reply != nil {
						select {
						case c.Reply <- aggregator.QueryResult{Success: false}:
						default:
						}
					}
					break
				}
				// Only enqueue once the write succeeded: an enqueue before a
				// failed Send would leave a pendingCapture with no matching
				// response, permanently misaligning the FIFO (§9).
				m.agg.EnqueueQuery(c.Reply)
			case Shutdown:
				m.conn.GracefulClose()
				return nil
			}

		case <-ctx.Done():
			m.conn.GracefulClose()
			return ctx.Err()
		}
	}
}

func (m *Monitor) emit(em emitter.Emitter) {
	delta := m.agg.ComputeDelta()
	if delta.IsEmpty() {
		return
	}
	if delta.Full {
		em.EmitState(emitter.StateUpdate{
			Type:    emitter.UpdateFull,
			EventID: emitter.EventID(delta.Seq),
			State:   emitter.FromSnapshot(m.agg.Snapshot()),
		})
		return
	}
	em.EmitState(emitter.StateUpdate{
		Type:    emitter.UpdateDelta,
		EventID: emitter.EventID(delta.Seq),
		Delta:   emitter.FromDelta(delta),
	})
}

// IsAlive reports whether the underlying tmux child is still running.
func (m *Monitor) IsAlive() bool {
	return m.conn.IsAlive()
}

// Aggregator exposes the fold for read-only inspection (e.g. the Registry
// answering get_initial_state without waiting on the loop).
func (m *Monitor) Aggregator() *aggregator.Aggregator {
	return m.agg
}
