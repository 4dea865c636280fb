package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"tmuxy/internal/controlmode"
)

// wsWriteDeadline/wsPingInterval/wsReadDeadline mirror the teacher's
// `wsserver.Hub` keepalive tuning (internal/wsserver/hub.go), carried over
// unchanged since nothing about this domain changes the dead-connection
// detection tradeoffs.
const (
	wsWriteDeadline = 5 * time.Second
	wsReadDeadline  = 90 * time.Second
	wsPingInterval  = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 32 * 1024,
}

// wsEnvelope frames every outbound message alike, since a single
// WebSocket connection carries all three event kinds of §6 (unlike SSE's
// named `event:` field).
type wsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// handleWebSocket is the alternate binding over the same Attach/
// Subscription surface as handleStream — concrete proof that the Emitter
// abstraction (§9) is transport-agnostic: a Monitor's state updates reach
// this handler exactly the way they reach the SSE one, through the same
// Registry.Attach call and the same Subscription channels.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "missing session name", http.StatusBadRequest)
		return
	}

	cols := queryInt(r, "cols", controlmode.InitialPTYCols)
	rows := queryInt(r, "rows", controlmode.InitialPTYRows)
	workDir := r.URL.Query().Get("work_dir")
	createSession := r.URL.Query().Get("create") != "false"

	result, err := s.reg.Attach(r.Context(), name, workDir, createSession, cols, rows)
	if err != nil {
		http.Error(w, "attach failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	connIDStr := strconv.FormatUint(result.ConnectionID, 10)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[transport] websocket upgrade failed", "session", name, "error", err)
		_ = s.reg.Detach(name, connIDStr)
		return
	}

	conn.SetReadLimit(32 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	var writeMu chan struct{} = make(chan struct{}, 1)
	writeMu <- struct{}{}
	writeLocked := func(fn func() error) error {
		<-writeMu
		defer func() { writeMu <- struct{}{} }()
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline)); err != nil {
			return err
		}
		return fn()
	}

	done := make(chan struct{})
	defer close(done)
	go wsPingLoop(conn, writeLocked, done)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[transport] websocket handler recovered", "panic", rec, "stack", string(debug.Stack()))
		}
		_ = conn.Close()
		if err := s.reg.Detach(name, connIDStr); err != nil {
			slog.Debug("[transport] detach on websocket close failed", "session", name, "error", err)
		}
	}()

	// Drain and discard inbound frames: this binding is output-only, but a
	// read pump is required so pong frames (via ReadMessage) are processed
	// and the peer's close is detected promptly.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if !wsSend(writeLocked, conn, "connection-info", connectionInfoEvent{
		ConnectionID: result.ConnectionID,
		SessionToken: result.SessionToken,
		DefaultShell: result.DefaultShell,
	}) {
		return
	}
	if !wsSend(writeLocked, conn, "keybindings", result.KeyBindings) {
		return
	}

	ctx := r.Context()
	for {
		select {
		case update, ok := <-result.Sub.States:
			if !ok {
				return
			}
			if !wsSend(writeLocked, conn, "state-update", update) {
				return
			}
		case msg, ok := <-result.Sub.Errors:
			if !ok {
				return
			}
			if !wsSend(writeLocked, conn, "error", map[string]string{"error": msg}) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func wsSend(writeLocked func(func() error) error, conn *websocket.Conn, typ string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("[transport] failed to marshal websocket payload", "type", typ, "error", err)
		return true
	}
	env, err := json.Marshal(wsEnvelope{Type: typ, Payload: data})
	if err != nil {
		slog.Warn("[transport] failed to marshal websocket envelope", "type", typ, "error", err)
		return true
	}
	err = writeLocked(func() error {
		return conn.WriteMessage(websocket.TextMessage, env)
	})
	if err != nil {
		slog.Debug("[transport] websocket write failed, closing", "type", typ, "error", err)
		return false
	}
	return true
}

func wsPingLoop(conn *websocket.Conn, writeLocked func(func() error) error, done <-chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[transport] websocket ping loop recovered", "panic", rec, "stack", string(debug.Stack()))
		}
	}()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := writeLocked(func() error {
				return conn.WriteMessage(websocket.PingMessage, nil)
			})
			if err != nil {
				slog.Debug("[transport] websocket ping failed, connection likely dead", "error", err)
				return
			}
		}
	}
}
