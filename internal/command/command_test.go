package command

import (
	"errors"
	"strings"
	"testing"
)

func TestTranslateSendKeysToTmuxLiteralText(t *testing.T) {
	a, err := Translate("demo", Request{Cmd: "send_keys_to_tmux", Args: map[string]string{"keys": "ls"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != KindTmux || !strings.Contains(a.TmuxCommand, "-l 'ls'") {
		t.Fatalf("expected literal send-keys, got %+v", a)
	}
}

func TestTranslateSendKeysSplitsTextAndNamedKeys(t *testing.T) {
	a, err := Translate("demo", Request{Cmd: "send_keys_to_tmux", Args: map[string]string{"keys": "ls\r"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != KindTmuxBatch || len(a.TmuxCommands) != 2 {
		t.Fatalf("expected 2 batched commands (literal + Enter), got %+v", a)
	}
	if !strings.Contains(a.TmuxCommands[1], "Enter") {
		t.Fatalf("expected second command to send Enter, got %q", a.TmuxCommands[1])
	}
}

func TestTranslateSendKeysControlChar(t *testing.T) {
	a, err := Translate("demo", Request{Cmd: "process_key", Args: map[string]string{"key": "\x03"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != KindTmux || !strings.Contains(a.TmuxCommand, "C-c") {
		t.Fatalf("expected C-c translation, got %+v", a)
	}
}

func TestTranslateSplitPane(t *testing.T) {
	a, err := Translate("demo", Request{Cmd: "split_pane_horizontal"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.TmuxCommand != "splitw -t 'demo' -h" {
		t.Fatalf("unexpected command: %q", a.TmuxCommand)
	}
}

func TestTranslateSelectPaneUnknownDirection(t *testing.T) {
	_, err := Translate("demo", Request{Cmd: "select_pane", Args: map[string]string{"direction": "sideways"}})
	if err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}

func TestTranslateResizeWindow(t *testing.T) {
	a, err := Translate("demo", Request{Cmd: "resize_window", Args: map[string]string{"cols": "80", "rows": "24"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != KindResize || a.Cols != 80 || a.Rows != 24 {
		t.Fatalf("expected KindResize 80x24, got %+v", a)
	}
}

func TestTranslateRunTmuxCommandBlocksRawResize(t *testing.T) {
	_, err := Translate("demo", Request{Cmd: "run_tmux_command", Args: map[string]string{"command": "resize-window -x 80"}})
	if !errors.Is(err, ErrBlockedRawResize) {
		t.Fatalf("expected ErrBlockedRawResize, got %v", err)
	}
	_, err = Translate("demo", Request{Cmd: "run_tmux_command", Args: map[string]string{"command": "resizew -x 80"}})
	if !errors.Is(err, ErrBlockedRawResize) {
		t.Fatalf("expected ErrBlockedRawResize for resizew, got %v", err)
	}
}

func TestTranslateRunTmuxCommandUnescapesSeparator(t *testing.T) {
	a, err := Translate("demo", Request{Cmd: "run_tmux_command", Args: map[string]string{"command": "selectp -t %0 \\; selectw -t 0"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(a.TmuxCommand, "\\;") || !strings.Contains(a.TmuxCommand, " ; ") {
		t.Fatalf("expected \\; unescaped to ;, got %q", a.TmuxCommand)
	}
}

func TestTranslateUnknownCommand(t *testing.T) {
	_, err := Translate("demo", Request{Cmd: "bogus"})
	var unk *ErrUnknownCommand
	if !errors.As(err, &unk) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestTranslateMouseEventPressBuildsSGRSequence(t *testing.T) {
	a, err := Translate("demo", Request{Cmd: "send_mouse_event", Args: map[string]string{
		"paneId": "%0", "eventType": "press", "button": "0", "x": "5", "y": "3",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// ESC [ < 0 ; 6 ; 4 M -> hex: 1b 5b 3c 30 3b 36 3b 34 4d
	want := "1b 5b 3c 30 3b 36 3b 34 4d"
	if !strings.Contains(a.TmuxCommand, want) {
		t.Fatalf("expected hex sequence %q in command %q", want, a.TmuxCommand)
	}
}

func TestTranslateScrollPane(t *testing.T) {
	a, err := Translate("demo", Request{Cmd: "scroll_pane", Args: map[string]string{
		"paneId": "%0", "direction": "up", "amount": "3",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != KindTmuxBatch || len(a.TmuxCommands) != 2 {
		t.Fatalf("expected 2 batched commands, got %+v", a)
	}
	if !strings.Contains(a.TmuxCommands[1], "scroll-up -N 3") {
		t.Fatalf("expected scroll-up -N 3, got %q", a.TmuxCommands[1])
	}
}

func TestTranslateExecutePrefixBinding(t *testing.T) {
	a, err := Translate("demo", Request{Cmd: "execute_prefix_binding", Args: map[string]string{"key": "c"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.TmuxCommand != "neww -t 'demo'" {
		t.Fatalf("unexpected command: %q", a.TmuxCommand)
	}
}

func TestTranslatePing(t *testing.T) {
	a, err := Translate("demo", Request{Cmd: "ping"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != KindPing {
		t.Fatalf("expected KindPing, got %+v", a)
	}
}
