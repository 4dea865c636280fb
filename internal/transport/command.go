package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tmuxy/internal/cellgrid"
	"tmuxy/internal/command"
	"tmuxy/internal/emitter"
	"tmuxy/internal/keybindings"
	"tmuxy/internal/monitor"
	"tmuxy/internal/registry"
)

// commandRequestBody is the POST body shape for the command channel (§6:
// `{cmd, args}`).
type commandRequestBody struct {
	Cmd  string         `json:"cmd"`
	Args map[string]any `json:"args"`
}

// errorResponse is the uniform failure body (§7: semantic-client-error and
// command-failure responses both come back as `{error: string}`).
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// handleCommand implements the POST-style command channel (§6): decodes
// the body, validates X-Session-Token, resolves a process_key bound in the
// root key table to its run_tmux_command, translates {cmd, args} into an
// Action via internal/command, and executes it against the Registry.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing session name")
		return
	}

	var body commandRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %s", err)
		return
	}

	token := r.Header.Get("X-Session-Token")
	connID, ok := s.reg.ValidateToken(name, token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	req := command.Request{Cmd: body.Cmd, Args: stringifyArgs(body.Args)}
	if req.Cmd == "process_key" {
		if table, ok := s.reg.KeyBindings(name); ok {
			if bound, ok := keybindings.Lookup(table.RootBindings, req.Args["key"]); ok {
				req = command.Request{Cmd: "run_tmux_command", Args: map[string]string{"command": bound}}
			}
		}
	}

	action, err := command.Translate(name, req)
	if err != nil {
		status := http.StatusBadRequest
		var unknown *command.ErrUnknownCommand
		if errors.As(err, &unknown) {
			status = http.StatusNotFound
		}
		writeError(w, status, "%s", err)
		return
	}

	result, err := executeAction(r.Context(), s.reg, name, connID, action)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%s", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// stringifyArgs adapts JSON's mixed-type arg values to internal/command's
// map[string]string Request.Args, since Translate's own argument parsing
// (strconv.Atoi etc.) expects strings regardless of whether the client
// sent a JSON number or string.
func stringifyArgs(args map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// scrollbackResponse is the get_scrollback_cells reply (§6: "capture
// range, return parsed cells + history size").
type scrollbackResponse struct {
	Cells       [][]emitter.CellView `json:"cells"`
	HistorySize int                  `json:"history_size"`
}

// executeAction carries out a translated Action against the Registry and
// returns the JSON-ready response body for the command's effect (§6).
// get_key_bindings reuses keybindings.Table's existing wire shape directly
// rather than inventing a separate {prefix, bindings} envelope, so the
// reply is byte-identical to the `keybindings` stream event for the same
// session (Open Question decision, recorded in the grounding ledger).
func executeAction(ctx context.Context, reg *registry.Registry, session, connID string, action command.Action) (any, error) {
	switch action.Kind {
	case command.KindTmux:
		return runAndWait(reg, session, []string{action.TmuxCommand})
	case command.KindTmuxBatch:
		return runAndWait(reg, session, action.TmuxCommands)
	case command.KindResize:
		if err := reg.Dispatch(session, monitor.ResizeWindow{Cols: action.Cols, Rows: action.Rows}); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	case command.KindSetViewport:
		if err := reg.SetClientSize(session, connID, action.Cols, action.Rows); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	case command.KindGetInitialState:
		if action.Cols > 0 && action.Rows > 0 {
			if err := reg.SetClientSize(session, connID, action.Cols, action.Rows); err != nil {
				return nil, err
			}
		}
		mon := reg.Monitor(session)
		if mon == nil {
			return nil, fmt.Errorf("transport: session %q has no live connection", session)
		}
		return emitter.FromSnapshot(mon.Aggregator().Snapshot()), nil
	case command.KindGetKeyBindings:
		table, ok := reg.KeyBindings(session)
		if !ok {
			return nil, fmt.Errorf("transport: unknown session %q", session)
		}
		return table, nil
	case command.KindGetScrollback:
		return executeScrollback(ctx, reg, session, action)
	case command.KindListDirectory:
		workDir, ok := reg.WorkDir(session)
		if !ok {
			return nil, fmt.Errorf("transport: unknown session %q", session)
		}
		entries, err := listDirectory(workDir, action.ListDirectoryPath)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": entries}, nil
	case command.KindPing:
		return map[string]bool{"pong": true}, nil
	default:
		return nil, fmt.Errorf("transport: unhandled action kind %d", action.Kind)
	}
}

func runAndWait(reg *registry.Registry, session string, cmds []string) (any, error) {
	reply := make(chan error, 1)
	if err := reg.Dispatch(session, monitor.RunCommand{Commands: cmds, Reply: reply}); err != nil {
		return nil, err
	}
	if err := <-reply; err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// executeScrollback captures the requested range for a single pane,
// replays it through a freshly-sized emulator to resolve SGR state the
// way the live grid already does, and returns parsed cells rather than
// raw escape-coded text (§6 get_scrollback_cells).
func executeScrollback(ctx context.Context, reg *registry.Registry, session string, action command.Action) (any, error) {
	mon := reg.Monitor(session)
	if mon == nil {
		return nil, fmt.Errorf("transport: session %q has no live connection", session)
	}
	snap := mon.Aggregator().Snapshot()
	pane, ok := snap.Panes[action.ScrollbackPaneID]
	if !ok {
		return nil, fmt.Errorf("transport: unknown pane %q", action.ScrollbackPaneID)
	}

	cmd := fmt.Sprintf("capture-pane -t %s -p -e -S %d -E %d", action.ScrollbackPaneID, action.ScrollbackStart, action.ScrollbackEnd)
	res, err := reg.Query(ctx, session, []string{cmd})
	if err != nil {
		return nil, err
	}

	normalized := strings.ReplaceAll(res.Output, "\n", "\r\n")
	emu := cellgrid.New(pane.Width, pane.Height)
	if _, err := emu.Write([]byte(normalized)); err != nil {
		return nil, fmt.Errorf("transport: replaying scrollback capture: %w", err)
	}

	return scrollbackResponse{
		Cells:       emitter.CellsFromGrid(emu.Grid()),
		HistorySize: pane.HistorySize,
	}, nil
}
