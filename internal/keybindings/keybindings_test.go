package keybindings

import "testing"

func TestParsePrefixOption(t *testing.T) {
	if got := ParsePrefixOption("prefix C-b\n"); got != "C-b" {
		t.Fatalf("expected C-b, got %q", got)
	}
	if got := ParsePrefixOption(""); got != DefaultPrefix {
		t.Fatalf("expected default prefix on empty output, got %q", got)
	}
}

func TestParseListKeys(t *testing.T) {
	output := "bind-key -T prefix c new-window\n" +
		"bind-key -T prefix % split-window -h\n" +
		"bind-key -r -T prefix Up resize-pane -U\n"
	bindings := ParseListKeys(output)
	if len(bindings) != 3 {
		t.Fatalf("expected 3 bindings, got %d: %+v", len(bindings), bindings)
	}
	cmd, ok := Lookup(bindings, "%")
	if !ok || cmd != "split-window -h" {
		t.Fatalf("expected split-window -h for %%, got %q ok=%v", cmd, ok)
	}
	if _, ok := Lookup(bindings, "z"); ok {
		t.Fatalf("expected no binding for z")
	}
}

func TestParseListKeysIgnoresMalformedLines(t *testing.T) {
	bindings := ParseListKeys("garbage line with no -T marker\n\nbind-key -T root MouseDown1Pane select-pane -t =")
	if len(bindings) != 1 || bindings[0].Key != "MouseDown1Pane" {
		t.Fatalf("expected 1 valid binding parsed, got %+v", bindings)
	}
}
