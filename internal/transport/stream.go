package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"tmuxy/internal/controlmode"
)

// connectionInfoEvent is the first event of every subscribe stream (§6).
type connectionInfoEvent struct {
	ConnectionID uint64 `json:"connection_id"`
	SessionToken string `json:"session_token"`
	DefaultShell string `json:"default_shell"`
}

// handleStream serves the SSE state stream: connection-info, then
// keybindings, then state-update/error events in order (§6).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "missing session name", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	cols := queryInt(r, "cols", controlmode.InitialPTYCols)
	rows := queryInt(r, "rows", controlmode.InitialPTYRows)
	workDir := r.URL.Query().Get("work_dir")
	createSession := r.URL.Query().Get("create") != "false"

	result, err := s.reg.Attach(r.Context(), name, workDir, createSession, cols, rows)
	if err != nil {
		http.Error(w, fmt.Sprintf("attach failed: %s", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	connIDStr := strconv.FormatUint(result.ConnectionID, 10)
	defer func() {
		if err := s.reg.Detach(name, connIDStr); err != nil {
			slog.Debug("[transport] detach on stream close failed", "session", name, "error", err)
		}
	}()

	if !writeSSE(w, flusher, "connection-info", "", connectionInfoEvent{
		ConnectionID: result.ConnectionID,
		SessionToken: result.SessionToken,
		DefaultShell: result.DefaultShell,
	}) {
		return
	}
	if !writeSSE(w, flusher, "keybindings", "", result.KeyBindings) {
		return
	}

	ctx := r.Context()
	for {
		select {
		case update, ok := <-result.Sub.States:
			if !ok {
				return
			}
			if !writeSSE(w, flusher, "state-update", update.EventID, update) {
				return
			}
		case msg, ok := <-result.Sub.Errors:
			if !ok {
				return
			}
			if !writeSSE(w, flusher, "error", "", map[string]string{"error": msg}) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event, id string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("[transport] failed to marshal SSE payload", "event", event, "error", err)
		return true
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return false
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
