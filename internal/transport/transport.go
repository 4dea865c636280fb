// Package transport is the out-of-core HTTP collaborator (§1): it binds
// the Session Registry's Attach/Subscription/Dispatch surface to the two
// external interfaces of §6 — an upstream state stream (SSE, with a
// WebSocket alternate binding) and a command channel. Grounded on the
// teacher's `internal/wsserver/hub.go` for connection lifecycle idioms
// (ping/pong keepalive, write-deadline discipline, panic recovery in
// long-lived goroutines), generalized from one fixed desktop connection
// to many sessions each with many HTTP clients.
package transport

import (
	"net/http"

	"tmuxy/internal/registry"
)

// Server wires the registry onto a net/http mux. It holds no session
// state itself — that all lives in the Registry.
type Server struct {
	reg *registry.Registry
	mux *http.ServeMux
}

// NewServer builds a Server routing the two §6 endpoints per session:
// GET /sessions/{name}/stream (SSE), GET /sessions/{name}/ws (WebSocket
// alternate binding), POST /sessions/{name}/command.
func NewServer(reg *registry.Registry) *Server {
	s := &Server{reg: reg, mux: http.NewServeMux()}
	s.mux.HandleFunc("/sessions/{name}/stream", s.handleStream)
	s.mux.HandleFunc("/sessions/{name}/ws", s.handleWebSocket)
	s.mux.HandleFunc("/sessions/{name}/command", s.handleCommand)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
