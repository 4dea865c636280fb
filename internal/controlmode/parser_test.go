package controlmode

import (
	"testing"
)

func TestParserOutput(t *testing.T) {
	p := NewParser()
	ev, ok := p.ParseLine("%output %1 Hello World")
	if !ok || ev.Kind != KindOutput {
		t.Fatalf("expected Output event, got %+v ok=%v", ev, ok)
	}
	if ev.PaneID != "%1" || string(ev.Content) != "Hello World" {
		t.Fatalf("unexpected output event: %+v", ev)
	}
}

func TestParserOutputWithEscapes(t *testing.T) {
	p := NewParser()
	ev, ok := p.ParseLine(`%output %1 \033[0mHello`)
	if !ok || ev.Kind != KindOutput {
		t.Fatalf("expected Output event")
	}
	if string(ev.Content) != "\x1b[0mHello" {
		t.Fatalf("content = %q, want ESC[0mHello", ev.Content)
	}
}

func TestParserLayoutChange(t *testing.T) {
	p := NewParser()
	ev, ok := p.ParseLine("%layout-change @0 abc123,80x24,0,0 abc123,80x24,0,0 *")
	if !ok || ev.Kind != KindLayoutChange {
		t.Fatalf("expected LayoutChange event")
	}
	if ev.WindowID != "@0" || ev.Layout != "abc123,80x24,0,0" || ev.VisibleLayout != "abc123,80x24,0,0" || ev.Flags != "*" {
		t.Fatalf("unexpected layout change event: %+v", ev)
	}
}

func TestParserWindowAdd(t *testing.T) {
	p := NewParser()
	ev, ok := p.ParseLine("%window-add @5")
	if !ok || ev.Kind != KindWindowAdd || ev.WindowID != "@5" {
		t.Fatalf("unexpected window add event: %+v ok=%v", ev, ok)
	}
}

func TestParserCommandResponseSuccess(t *testing.T) {
	p := NewParser()
	if _, ok := p.ParseLine("%begin 1234567890 0 0"); ok {
		t.Fatalf("%%begin should not emit an event")
	}
	if _, ok := p.ParseLine("line 1"); ok {
		t.Fatalf("response body lines should not emit an event")
	}
	if _, ok := p.ParseLine("line 2"); ok {
		t.Fatalf("response body lines should not emit an event")
	}
	ev, ok := p.ParseLine("%end 1234567890 0 0")
	if !ok || ev.Kind != KindCommandResponse {
		t.Fatalf("expected CommandResponse event")
	}
	if ev.Timestamp != 1234567890 || ev.CommandNum != 0 || ev.Output != "line 1\nline 2" || !ev.Success {
		t.Fatalf("unexpected command response: %+v", ev)
	}
}

func TestParserCommandResponseError(t *testing.T) {
	p := NewParser()
	p.ParseLine("%begin 1234567890 1 0")
	p.ParseLine("error message")
	ev, ok := p.ParseLine("%error 1234567890 1 0")
	if !ok || ev.Kind != KindCommandResponse || ev.Success {
		t.Fatalf("expected failed CommandResponse event, got %+v ok=%v", ev, ok)
	}
}

func TestParserExit(t *testing.T) {
	p := NewParser()
	ev, ok := p.ParseLine("%exit")
	if !ok || ev.Kind != KindExit || ev.HasReason {
		t.Fatalf("expected bare Exit event, got %+v", ev)
	}
	ev, ok = p.ParseLine("%exit detached")
	if !ok || !ev.HasReason || ev.Reason != "detached" {
		t.Fatalf("expected Exit with reason 'detached', got %+v", ev)
	}
}

func TestParserSessionChanged(t *testing.T) {
	p := NewParser()
	ev, ok := p.ParseLine("%session-changed $0 main")
	if !ok || ev.Kind != KindSessionChanged || ev.SessionID != "$0" || ev.SessionName != "main" {
		t.Fatalf("unexpected session changed event: %+v ok=%v", ev, ok)
	}
}

func TestParserPaneModeChanged(t *testing.T) {
	p := NewParser()
	ev, ok := p.ParseLine("%pane-mode-changed %0")
	if !ok || ev.Kind != KindPaneModeChanged || ev.PaneID != "%0" {
		t.Fatalf("unexpected pane mode changed event: %+v ok=%v", ev, ok)
	}
}

func TestParserSessionsChangedSuppressedUpstreamNotHere(t *testing.T) {
	// The parser itself still emits SessionsChanged; suppression is the
	// Aggregator's responsibility (§9 OQ1), not the parser's.
	p := NewParser()
	ev, ok := p.ParseLine("%sessions-changed")
	if !ok || ev.Kind != KindSessionsChanged {
		t.Fatalf("expected SessionsChanged event, got %+v ok=%v", ev, ok)
	}
}

func TestParserUnknownLineIgnored(t *testing.T) {
	p := NewParser()
	if _, ok := p.ParseLine("%totally-unknown-notification foo"); ok {
		t.Fatalf("unknown notification should not produce an event")
	}
	if _, ok := p.ParseLine("not even a notification"); ok {
		t.Fatalf("non-%% line outside a response block should not produce an event")
	}
}
