// Package command translates the command-channel requests of spec §6 into
// tmux control-mode command strings (or a local action the Registry/Monitor
// must carry out itself, like a viewport resize). Translation is pure and
// side-effect free so it can be tested without a live Connection.
package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies what a translated Request produces.
type Kind int

const (
	// KindTmux: send TmuxCommand through the control-mode connection.
	KindTmux Kind = iota
	// KindTmuxBatch: send TmuxCommands as one batched write.
	KindTmuxBatch
	// KindResize: apply a viewport-aware Resize(cols, rows) via the Monitor.
	KindResize
	// KindSetViewport: update this client's reported viewport and re-minimize.
	KindSetViewport
	// KindGetInitialState: optionally apply a viewport, then return state.
	KindGetInitialState
	// KindGetKeyBindings: return the cached {prefix, bindings}.
	KindGetKeyBindings
	// KindGetScrollback: capture a range and return parsed cells.
	KindGetScrollback
	// KindListDirectory: local filesystem listing, no tmux involvement.
	KindListDirectory
	// KindPing: no-op.
	KindPing
)

// Action is the translated effect of one command request.
type Action struct {
	Kind         Kind
	TmuxCommand  string
	TmuxCommands []string

	Cols, Rows int

	ScrollbackPaneID      string
	ScrollbackStart, ScrollbackEnd int

	ListDirectoryPath string
}

// Request is one {cmd, args} command-channel request (§6).
type Request struct {
	Cmd  string
	Args map[string]string
}

// ErrBlockedRawResize is returned when a client attempts resize-window /
// resizew through run_tmux_command — resize MUST go through the Resize
// command so viewport coordination across clients is preserved (§4.6).
var ErrBlockedRawResize = fmt.Errorf("command: resize-window must go through set_client_size/resize_window, not run_tmux_command")

// ErrUnknownCommand is returned for any cmd not in the §6 table.
type ErrUnknownCommand struct{ Cmd string }

func (e *ErrUnknownCommand) Error() string { return "Unknown command: " + e.Cmd }

// Translate converts one command-channel request into an Action, targeting
// the given tmux session name.
func Translate(session string, req Request) (Action, error) {
	switch req.Cmd {
	case "send_keys_to_tmux":
		return translateSendKeys(session, "", req.Args["keys"])
	case "process_key":
		// Root-binding lookup happens one layer up (internal/transport's
		// command handler, via internal/keybindings.Lookup on the Registry's
		// cached binding table); by the time
		// a request reaches here with no bound command, it degenerates to
		// the same send-keys translation as send_keys_to_tmux.
		return translateSendKeys(session, "", req.Args["key"])
	case "get_initial_state":
		a := Action{Kind: KindGetInitialState}
		a.Cols, _ = strconv.Atoi(req.Args["cols"])
		a.Rows, _ = strconv.Atoi(req.Args["rows"])
		return a, nil
	case "set_client_size":
		cols, err := strconv.Atoi(req.Args["cols"])
		if err != nil {
			return Action{}, fmt.Errorf("command: set_client_size: invalid cols: %w", err)
		}
		rows, err := strconv.Atoi(req.Args["rows"])
		if err != nil {
			return Action{}, fmt.Errorf("command: set_client_size: invalid rows: %w", err)
		}
		return Action{Kind: KindSetViewport, Cols: cols, Rows: rows}, nil
	case "initialize_session":
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("has-session -t %s", shellQuote(session))}, nil
	case "split_pane_horizontal":
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("splitw -t %s -h", shellQuote(session))}, nil
	case "split_pane_vertical":
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("splitw -t %s -v", shellQuote(session))}, nil
	case "new_window":
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("neww -t %s", shellQuote(session))}, nil
	case "kill_window":
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("killw -t %s", shellQuote(session))}, nil
	case "select_pane":
		dir, ok := paneDirectionFlag(req.Args["direction"])
		if !ok {
			return Action{}, fmt.Errorf("command: select_pane: unknown direction %q", req.Args["direction"])
		}
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("selectp -t %s -%s", shellQuote(session), dir)}, nil
	case "select_pane_by_id":
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("selectp -t %s", shellQuote(req.Args["paneId"]))}, nil
	case "select_window":
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("selectw -t %s:%s", shellQuote(session), shellQuote(req.Args["window"]))}, nil
	case "next_window":
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("next-window -t %s", shellQuote(session))}, nil
	case "previous_window":
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("previous-window -t %s", shellQuote(session))}, nil
	case "kill_pane":
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("killp -t %s", shellQuote(session))}, nil
	case "scroll_pane":
		return translateScrollPane(req.Args)
	case "send_mouse_event":
		return translateMouseEvent(req.Args)
	case "execute_prefix_binding":
		cmd, ok := prefixBindingTable[req.Args["key"]]
		if !ok {
			return Action{}, fmt.Errorf("command: execute_prefix_binding: no mapping for key %q", req.Args["key"])
		}
		return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf(cmd, shellQuote(session))}, nil
	case "resize_pane":
		return translateResizePane(session, req.Args)
	case "resize_window":
		cols, err := strconv.Atoi(req.Args["cols"])
		if err != nil {
			return Action{}, fmt.Errorf("command: resize_window: invalid cols: %w", err)
		}
		rows, err := strconv.Atoi(req.Args["rows"])
		if err != nil {
			return Action{}, fmt.Errorf("command: resize_window: invalid rows: %w", err)
		}
		return Action{Kind: KindResize, Cols: cols, Rows: rows}, nil
	case "run_tmux_command":
		raw := req.Args["command"]
		if isBlockedResize(raw) {
			return Action{}, ErrBlockedRawResize
		}
		unescaped := strings.ReplaceAll(raw, " \\; ", " ; ")
		return Action{Kind: KindTmux, TmuxCommand: unescaped}, nil
	case "get_key_bindings":
		return Action{Kind: KindGetKeyBindings}, nil
	case "get_scrollback_cells":
		start, _ := strconv.Atoi(req.Args["start"])
		end, _ := strconv.Atoi(req.Args["end"])
		return Action{
			Kind: KindGetScrollback, ScrollbackPaneID: req.Args["paneId"],
			ScrollbackStart: start, ScrollbackEnd: end,
		}, nil
	case "list_directory":
		return Action{Kind: KindListDirectory, ListDirectoryPath: req.Args["path"]}, nil
	case "ping":
		return Action{Kind: KindPing}, nil
	default:
		return Action{}, &ErrUnknownCommand{Cmd: req.Cmd}
	}
}

func isBlockedResize(raw string) bool {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "resize-window", "resizew":
		return true
	}
	return false
}

func paneDirectionFlag(direction string) (string, bool) {
	switch direction {
	case "up":
		return "U", true
	case "down":
		return "D", true
	case "left":
		return "L", true
	case "right":
		return "R", true
	default:
		return "", false
	}
}

func translateResizePane(session string, args map[string]string) (Action, error) {
	dir, ok := paneDirectionFlag(args["direction"])
	if !ok {
		return Action{}, fmt.Errorf("command: resize_pane: unknown direction %q", args["direction"])
	}
	adj, err := strconv.Atoi(args["adjustment"])
	if err != nil {
		return Action{}, fmt.Errorf("command: resize_pane: invalid adjustment: %w", err)
	}
	return Action{Kind: KindTmux, TmuxCommand: fmt.Sprintf("resizep -t %s -%s %d", shellQuote(session), dir, adj)}, nil
}

func translateScrollPane(args map[string]string) (Action, error) {
	paneID := args["paneId"]
	amount, err := strconv.Atoi(args["amount"])
	if err != nil {
		return Action{}, fmt.Errorf("command: scroll_pane: invalid amount: %w", err)
	}
	var dir string
	switch args["direction"] {
	case "up":
		dir = "scroll-up"
	case "down":
		dir = "scroll-down"
	default:
		return Action{}, fmt.Errorf("command: scroll_pane: unknown direction %q", args["direction"])
	}
	return Action{Kind: KindTmuxBatch, TmuxCommands: []string{
		fmt.Sprintf("copy-mode -t %s", shellQuote(paneID)),
		fmt.Sprintf("send -t %s -X %s -N %d", shellQuote(paneID), dir, amount),
	}}, nil
}

// prefixBindingTable maps a small fixed set of prefix-table key names to
// their tmux command (§6 execute_prefix_binding). %s is the session name.
var prefixBindingTable = map[string]string{
	"c": "neww -t %s",
	"x": "killp -t %s",
	"%": "splitw -t %s -h",
	`"`: "splitw -t %s -v",
	"n": "next-window -t %s",
	"p": "previous-window -t %s",
}
