// Package registry implements the Session Registry of spec §4.7: the only
// process-wide structure, multiplexing an Emitter across every client
// attached to a session and routing inbound commands to the owning
// session's Monitor. Grounded on the teacher's `internal/wsserver/hub.go`
// for the RWMutex-guarded map / idempotent-shutdown idioms, generalized
// from one fixed connection to many sessions each with many clients.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tmuxy/internal/aggregator"
	"tmuxy/internal/controlmode"
	"tmuxy/internal/keybindings"
	"tmuxy/internal/monitor"
)

// ErrUnknownSession is returned when a command or detach references a
// session the registry is not tracking.
var ErrUnknownSession = errors.New("registry: unknown session")

// ErrInvalidToken is returned when a client presents a session token that
// does not match its connection id (§6 `X-Session-Token`, §7 semantic
// client error).
var ErrInvalidToken = errors.New("registry: invalid session token")

const (
	reconnectInitialBackoff = 100 * time.Millisecond
	reconnectMaxBackoff     = 10 * time.Second
	shutdownWait            = 4 * time.Second
)

// Registry tracks every live session's connection lifecycle. The map
// itself is guarded by a readers-writer lock (§5): attach/detach take the
// write lock briefly, everything else takes only a read snapshot.
type Registry struct {
	mu            sync.RWMutex
	sessions      map[string]*sessionEntry
	monitorConfig func(session string) monitor.Config
}

// New returns an empty Registry using the monitor's built-in tuning
// defaults for every session.
func New() *Registry {
	return NewWithMonitorConfig(monitor.DefaultConfig)
}

// NewWithMonitorConfig returns an empty Registry that derives each
// session's Monitor tuning (sync/throttle intervals, rate window) from
// cfgFn rather than monitor.DefaultConfig, so an operator-configured
// bridge (internal/config) can retune every session it creates.
func NewWithMonitorConfig(cfgFn func(session string) monitor.Config) *Registry {
	return &Registry{sessions: make(map[string]*sessionEntry), monitorConfig: cfgFn}
}

type sessionEntry struct {
	name    string
	workDir string

	mu         sync.Mutex
	clients    map[string]viewport // connection id -> reported viewport
	tokens     map[string]string   // session token -> connection id
	lastCols   int
	lastRows   int
	nextConnID uint64
	curMonitor *monitor.Monitor // nil while disconnected/reconnecting
	keyTable   keybindings.Table

	broadcast *broadcastHub
	cancel    context.CancelFunc
	done      chan struct{}
}

// AttachResult is everything a fresh client subscribe needs to start its
// state stream (§6: connection-info, then keybindings, then state-update).
type AttachResult struct {
	ConnectionID uint64
	SessionToken string
	DefaultShell string
	KeyBindings  keybindings.Table
	Sub          Subscription
}

// Attach registers a new client on session name, creating the session's
// Monitor (with reconnect-and-backoff) if this is the first client, and
// recomputing the viewport minimum across all attached clients (§4.7).
func (r *Registry) Attach(ctx context.Context, name, workDir string, createSession bool, cols, rows int) (AttachResult, error) {
	entry := r.getOrCreateEntry(ctx, name, workDir, createSession)

	entry.mu.Lock()
	entry.nextConnID++
	connID := entry.nextConnID
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	connIDStr := fmt.Sprintf("%d", connID)
	entry.clients[connIDStr] = viewport{Cols: cols, Rows: rows}
	entry.tokens[token] = connIDStr
	keyTable := entry.keyTable
	entry.mu.Unlock()

	entry.reminimize()

	sub := entry.broadcast.Subscribe(connIDStr)

	return AttachResult{
		ConnectionID: connID,
		SessionToken: token,
		DefaultShell: defaultShell(),
		KeyBindings:  keyTable,
		Sub:          sub,
	}, nil
}

// Detach removes a client (identified by its subscription id, which is
// also its connection id string) from a session, re-minimizes the
// remaining viewport, and if no clients remain, shuts the Monitor down
// gracefully — never aborting its task, which would kill tmux's child
// (§4.1, §4.7).
func (r *Registry) Detach(name, connID string) error {
	entry := r.lookup(name)
	if entry == nil {
		return ErrUnknownSession
	}

	entry.broadcast.Unsubscribe(connID)

	entry.mu.Lock()
	delete(entry.clients, connID)
	for tok, id := range entry.tokens {
		if id == connID {
			delete(entry.tokens, tok)
		}
	}
	empty := len(entry.clients) == 0
	entry.mu.Unlock()

	if !empty {
		entry.reminimize()
		return nil
	}

	r.mu.Lock()
	delete(r.sessions, name)
	r.mu.Unlock()

	entry.shutdown()
	return nil
}

// SetClientSize updates a client's reported viewport and re-minimizes.
func (r *Registry) SetClientSize(name, connID string, cols, rows int) error {
	entry := r.lookup(name)
	if entry == nil {
		return ErrUnknownSession
	}
	entry.mu.Lock()
	entry.clients[connID] = viewport{Cols: cols, Rows: rows}
	entry.mu.Unlock()
	entry.reminimize()
	return nil
}

// ValidateToken checks an opaque session token against the session's
// known connections (§6 `X-Session-Token`).
func (r *Registry) ValidateToken(name, token string) (connID string, ok bool) {
	entry := r.lookup(name)
	if entry == nil {
		return "", false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	connID, ok = entry.tokens[token]
	return connID, ok
}

// Dispatch forwards a Monitor command to the named session, failing with
// ErrUnknownSession if the session isn't tracked or its Monitor is
// between reconnect attempts.
func (r *Registry) Dispatch(name string, cmd monitor.Command) error {
	entry := r.lookup(name)
	if entry == nil {
		return ErrUnknownSession
	}
	entry.mu.Lock()
	mon := entry.curMonitor
	entry.mu.Unlock()
	if mon == nil {
		return fmt.Errorf("registry: session %q has no live connection", name)
	}
	mon.Commands() <- cmd
	return nil
}

// queryTimeout bounds how long Query waits for a tmux command-response
// before giving up — a live connection that never answers is as good as
// dead for this purpose.
const queryTimeout = 5 * time.Second

// Query runs one or more already-translated tmux commands against name's
// session and returns the raw command-response output (§6
// get_scrollback_cells, which needs the captured text itself rather than
// just success/fail).
func (r *Registry) Query(ctx context.Context, name string, cmds []string) (aggregator.QueryResult, error) {
	reply := make(chan aggregator.QueryResult, 1)
	if err := r.Dispatch(name, monitor.Query{Commands: cmds, Reply: reply}); err != nil {
		return aggregator.QueryResult{}, err
	}
	select {
	case res := <-reply:
		if !res.Success {
			return res, fmt.Errorf("registry: query failed: %s", res.Output)
		}
		return res, nil
	case <-ctx.Done():
		return aggregator.QueryResult{}, ctx.Err()
	case <-time.After(queryTimeout):
		return aggregator.QueryResult{}, fmt.Errorf("registry: query timed out after %s", queryTimeout)
	}
}

// KeyBindings returns the cached table for a session, refreshed on each
// successful (re)connect.
func (r *Registry) KeyBindings(name string) (keybindings.Table, bool) {
	entry := r.lookup(name)
	if entry == nil {
		return keybindings.Table{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.keyTable, true
}

// Monitor returns the session's live Monitor, or nil if it has no live
// connection (callers read its Aggregator snapshot to answer
// get_initial_state without waiting on the Monitor's loop, §4.6).
func (r *Registry) Monitor(name string) *monitor.Monitor {
	entry := r.lookup(name)
	if entry == nil {
		return nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.curMonitor
}

// WorkDir returns the working directory a session was created with, for
// the `list_directory` command (§6) to resolve paths against. workDir is
// set once at entry creation and never mutated, so no lock is needed.
func (r *Registry) WorkDir(name string) (string, bool) {
	entry := r.lookup(name)
	if entry == nil {
		return "", false
	}
	return entry.workDir, true
}

// Shutdown tears down every tracked session's Monitor concurrently and
// waits for each to finish (bounded by shutdownWait per session, §7's
// SIGINT/SIGTERM fatal-condition handling: a graceful stop, never an
// abrupt kill of tmux's own child process).
func (r *Registry) Shutdown() {
	r.mu.Lock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, entry := range r.sessions {
		entries = append(entries, entry)
	}
	r.sessions = make(map[string]*sessionEntry)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(e *sessionEntry) {
			defer wg.Done()
			e.shutdown()
		}(entry)
	}
	wg.Wait()
}

func (r *Registry) lookup(name string) *sessionEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[name]
}

func (r *Registry) isTracked(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[name]
	return ok
}

func (r *Registry) getOrCreateEntry(ctx context.Context, name, workDir string, createSession bool) *sessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[name]; ok {
		return entry
	}

	runCtx, cancel := context.WithCancel(ctx)
	entry := &sessionEntry{
		name:      name,
		workDir:   workDir,
		clients:   make(map[string]viewport),
		tokens:    make(map[string]string),
		broadcast: newBroadcastHub(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.sessions[name] = entry
	go r.runSession(runCtx, entry, createSession)
	return entry
}

// runSession owns entry.curMonitor exclusively and implements the
// reconnect-with-backoff policy (§4.7): on any connection failure or EOF,
// retry with exponential backoff (100ms doubling, capped 10s), rechecking
// the registry's tracking before each attempt.
func (r *Registry) runSession(ctx context.Context, entry *sessionEntry, createSession bool) {
	defer close(entry.done)
	backoff := reconnectInitialBackoff

	for {
		if ctx.Err() != nil {
			return
		}
		if !r.isTracked(entry.name) {
			return
		}

		cfg := r.monitorConfig(entry.name)
		cfg.WorkDir = entry.workDir
		cfg.CreateSession = createSession

		mon, err := monitor.Connect(ctx, cfg)
		if err != nil {
			slog.Warn("[registry] monitor connect failed, backing off",
				"session", entry.name, "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > reconnectMaxBackoff {
				backoff = reconnectMaxBackoff
			}
			continue
		}
		backoff = reconnectInitialBackoff

		cols, rows, ok := entry.currentMin()
		if !ok {
			cols, rows = controlmode.InitialPTYCols, controlmode.InitialPTYRows
		}
		if err := mon.SyncInitialState(cols, rows); err != nil {
			slog.Warn("[registry] initial sync failed", "session", entry.name, "error", err)
		}
		entry.recordApplied(cols, rows)
		entry.setMonitor(mon, mon.KeyBindings())

		runErr := mon.Run(ctx, entry.broadcast)
		entry.setMonitor(nil, entry.snapshotKeyTable())

		if ctx.Err() != nil {
			return
		}
		if runErr != nil {
			slog.Warn("[registry] monitor loop exited, reconnecting", "session", entry.name, "error", runErr)
		}
	}
}

func (e *sessionEntry) setMonitor(m *monitor.Monitor, kt keybindings.Table) {
	e.mu.Lock()
	e.curMonitor = m
	e.keyTable = kt
	e.mu.Unlock()
}

func (e *sessionEntry) snapshotKeyTable() keybindings.Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keyTable
}

func (e *sessionEntry) currentMin() (cols, rows int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return minimizeViewport(e.clients)
}

func (e *sessionEntry) recordApplied(cols, rows int) {
	e.mu.Lock()
	e.lastCols, e.lastRows = cols, rows
	e.mu.Unlock()
}

// reminimize recomputes the viewport minimum and issues a Resize to the
// Monitor only if it differs from the last applied value (§4.7 debounce).
func (e *sessionEntry) reminimize() {
	e.mu.Lock()
	cols, rows, ok := minimizeViewport(e.clients)
	if !ok || (cols == e.lastCols && rows == e.lastRows) {
		e.mu.Unlock()
		return
	}
	e.lastCols, e.lastRows = cols, rows
	mon := e.curMonitor
	e.mu.Unlock()

	if mon == nil {
		return
	}
	mon.Commands() <- monitor.ResizeWindow{Cols: cols, Rows: rows}
}

// defaultShell reports the connection-info shell base name (§6): "bash",
// not "/bin/bash" — tmux's own new-session will use $SHELL, so that's
// what we advertise to a fresh client before it has any pane state to
// inspect.
func defaultShell() string {
	sh := os.Getenv("SHELL")
	if sh == "" {
		sh = "/bin/sh"
	}
	return filepath.Base(sh)
}

// shutdown sends Shutdown to the Monitor and waits up to ~4s for the
// session's run loop to exit, then cancels its context regardless — never
// aborting the task directly, which would kill tmux's child (§4.1, §4.7).
func (e *sessionEntry) shutdown() {
	e.mu.Lock()
	mon := e.curMonitor
	e.mu.Unlock()

	if mon != nil {
		mon.Commands() <- monitor.Shutdown{}
	}

	select {
	case <-e.done:
	case <-time.After(shutdownWait):
		slog.Warn("[registry] session shutdown timed out, giving up wait", "session", e.name)
	}
	e.cancel()
}
