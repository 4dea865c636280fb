package command

import (
	"fmt"
	"strconv"
	"strings"
)

// translateSendKeys turns a raw key/text payload into one or more
// `send-keys` tmux commands. Printable runs are sent with `-l` (literal
// mode); everything else is named (Enter, Tab, arrows, C-<letter>, …) —
// tmux control mode can mishandle raw control bytes embedded directly in a
// command string, so named keys and literal text are always split and
// sent as separate send-keys invocations (grounded on the same split the
// schmux client's SendKeys uses for exactly this reason).
func translateSendKeys(session, paneID, keys string) (Action, error) {
	target := session
	if paneID != "" {
		target = paneID
	}
	var cmds []string
	i := 0
	for i < len(keys) {
		j := i
		for j < len(keys) && keys[j] >= 32 && keys[j] != 127 {
			j++
		}
		if j > i {
			cmds = append(cmds, fmt.Sprintf("send-keys -t %s -l %s", shellQuote(target), shellQuote(keys[i:j])))
			i = j
			continue
		}

		name, advance := namedKey(keys, i)
		if name != "" {
			cmds = append(cmds, fmt.Sprintf("send-keys -t %s %s", shellQuote(target), name))
		}
		i += advance
	}
	if len(cmds) == 0 {
		return Action{Kind: KindPing}, nil
	}
	if len(cmds) == 1 {
		return Action{Kind: KindTmux, TmuxCommand: cmds[0]}, nil
	}
	return Action{Kind: KindTmuxBatch, TmuxCommands: cmds}, nil
}

var csiKeyNames = map[string]string{
	"\x1b[A": "Up", "\x1b[B": "Down", "\x1b[C": "Right", "\x1b[D": "Left",
	"\x1b[H": "Home", "\x1b[F": "End", "\x1b[2~": "Insert", "\x1b[3~": "DC",
	"\x1b[5~": "PageUp", "\x1b[6~": "PageDown", "\x1b[Z": "BTab",
}

var ss3KeyNames = map[byte]string{'P': "F1", 'Q': "F2", 'R': "F3", 'S': "F4"}

// namedKey identifies the tmux key name for the special byte at keys[i],
// returning how many bytes of keys it consumed.
func namedKey(keys string, i int) (name string, advance int) {
	switch keys[i] {
	case '\r', '\n':
		return "Enter", 1
	case '\t':
		return "Tab", 1
	case 127:
		return "BSpace", 1
	case '\x1b':
		if i+2 < len(keys) && keys[i+1] == '[' {
			end := i + 2
			for end < len(keys) && (keys[end] < 0x40 || keys[end] > 0x7e) {
				end++
			}
			if end >= len(keys) {
				return "Escape", 1
			}
			seq := keys[i : end+1]
			if n, ok := csiKeyNames[seq]; ok {
				return n, end + 1 - i
			}
			return "", end + 1 - i // unrecognized CSI sequence: skip silently
		}
		if i+2 < len(keys) && keys[i+1] == 'O' {
			if n, ok := ss3KeyNames[keys[i+2]]; ok {
				return n, 3
			}
			return "Escape", 1
		}
		return "Escape", 1
	default:
		if keys[i] < 32 {
			return "C-" + string('a'+keys[i]-1), 1
		}
		return "", 1
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// translateMouseEvent builds the SGR (1006) mouse-tracking escape sequence
// `ESC [ < Cb ; x+1 ; y+1 {M|m}` for one mouse event and injects it into
// the target pane as raw bytes via `send-keys -H` (hex-pair mode), since
// tmux has no higher-level "inject mouse event" command — the bytes must
// land on the pane's stdin exactly as a terminal's mouse-tracking mode
// would emit them.
func translateMouseEvent(args map[string]string) (Action, error) {
	paneID := args["paneId"]
	button, err := strconv.Atoi(args["button"])
	if err != nil {
		return Action{}, fmt.Errorf("command: send_mouse_event: invalid button: %w", err)
	}
	x, err := strconv.Atoi(args["x"])
	if err != nil {
		return Action{}, fmt.Errorf("command: send_mouse_event: invalid x: %w", err)
	}
	y, err := strconv.Atoi(args["y"])
	if err != nil {
		return Action{}, fmt.Errorf("command: send_mouse_event: invalid y: %w", err)
	}

	cb := button
	final := byte('M')
	switch args["eventType"] {
	case "press":
		final = 'M'
	case "release":
		final = 'm'
	case "drag":
		cb += 32
		final = 'M'
	default:
		return Action{}, fmt.Errorf("command: send_mouse_event: unknown eventType %q", args["eventType"])
	}

	seq := fmt.Sprintf("\x1b[<%d;%d;%d%c", cb, x+1, y+1, final)
	hex := make([]string, 0, len(seq))
	for i := 0; i < len(seq); i++ {
		hex = append(hex, fmt.Sprintf("%02x", seq[i]))
	}
	cmd := fmt.Sprintf("send-keys -t %s -H %s", shellQuote(paneID), strings.Join(hex, " "))
	return Action{Kind: KindTmux, TmuxCommand: cmd}, nil
}
