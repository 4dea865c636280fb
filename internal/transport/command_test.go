package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tmuxy/internal/command"
	"tmuxy/internal/registry"
)

func TestStringifyArgsConvertsMixedJSONTypes(t *testing.T) {
	got := stringifyArgs(map[string]any{
		"keys":  "C-c",
		"cols":  float64(80),
		"quiet": true,
		"blank": nil,
	})
	want := map[string]string{"keys": "C-c", "cols": "80", "quiet": "true", "blank": ""}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("stringifyArgs[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestExecuteActionPing(t *testing.T) {
	reg := registry.New()
	result, err := executeAction(context.Background(), reg, "main", "1", command.Action{Kind: command.KindPing})
	if err != nil {
		t.Fatalf("executeAction: %v", err)
	}
	got, ok := result.(map[string]bool)
	if !ok || !got["pong"] {
		t.Fatalf("got %#v, want {pong:true}", result)
	}
}

func TestExecuteActionGetInitialStateWithoutLiveMonitorFails(t *testing.T) {
	reg := registry.New()
	_, err := executeAction(context.Background(), reg, "main", "1", command.Action{Kind: command.KindGetInitialState})
	if err == nil {
		t.Fatal("expected an error for a session with no live monitor")
	}
}

func TestExecuteActionListDirectoryUnknownSessionFails(t *testing.T) {
	reg := registry.New()
	_, err := executeAction(context.Background(), reg, "main", "1", command.Action{Kind: command.KindListDirectory, ListDirectoryPath: "."})
	if err == nil {
		t.Fatal("expected an error for an untracked session")
	}
}

func TestHandleCommandMissingSessionName(t *testing.T) {
	s := NewServer(registry.New())
	req := httptest.NewRequest(http.MethodPost, "/sessions//command", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	s.handleCommand(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleCommandInvalidToken(t *testing.T) {
	s := NewServer(registry.New())
	req := httptest.NewRequest(http.MethodPost, "/sessions/main/command", bytes.NewReader([]byte(`{"cmd":"ping"}`)))
	req.SetPathValue("name", "main")
	req.Header.Set("X-Session-Token", "not-a-real-token")
	w := httptest.NewRecorder()
	s.handleCommand(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleCommandInvalidJSONBody(t *testing.T) {
	s := NewServer(registry.New())
	req := httptest.NewRequest(http.MethodPost, "/sessions/main/command", bytes.NewReader([]byte(`not json`)))
	req.SetPathValue("name", "main")
	w := httptest.NewRecorder()
	s.handleCommand(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Error == "" {
		t.Fatalf("expected a non-empty error body, got %+v (decode err %v)", body, err)
	}
}
