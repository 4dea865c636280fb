package controlmode

import (
	"strconv"
	"strings"

	"tmuxy/internal/octal"
)

// Kind identifies the variant of a parsed control-mode Event.
type Kind string

const (
	KindOutput               Kind = "output"
	KindExtendedOutput       Kind = "extended_output"
	KindLayoutChange         Kind = "layout_change"
	KindWindowAdd            Kind = "window_add"
	KindWindowClose          Kind = "window_close"
	KindWindowRenamed        Kind = "window_renamed"
	KindWindowPaneChanged    Kind = "window_pane_changed"
	KindPaneModeChanged      Kind = "pane_mode_changed"
	KindSessionChanged       Kind = "session_changed"
	KindSessionRenamed       Kind = "session_renamed"
	KindSessionWindowChanged Kind = "session_window_changed"
	KindSessionsChanged      Kind = "sessions_changed"
	KindCommandResponse      Kind = "command_response"
	KindPause                Kind = "pause"
	KindContinue             Kind = "continue"
	KindClientDetached       Kind = "client_detached"
	KindClientSessionChanged Kind = "client_session_changed"
	KindExit                 Kind = "exit"
	KindUnlinkedWindowAdd    Kind = "unlinked_window_add"
	KindUnlinkedWindowClose  Kind = "unlinked_window_close"
)

// Event is a single parsed control-mode notification or command response.
// Only the fields relevant to Kind are populated; this mirrors the tagged
// union in the original implementation while staying idiomatic Go (a flat
// struct instead of an enum-with-payload).
type Event struct {
	Kind Kind

	PaneID   string
	WindowID string
	SessionID string

	Content []byte // Output / ExtendedOutput, octal-decoded
	AgeMS   uint64 // ExtendedOutput

	Layout        string // LayoutChange
	VisibleLayout string // LayoutChange
	Flags         string // LayoutChange

	Name         string // WindowRenamed / SessionRenamed
	SessionName  string // SessionChanged / ClientSessionChanged

	Client string // ClientDetached / ClientSessionChanged

	Timestamp  uint64 // CommandResponse
	CommandNum uint32 // CommandResponse
	Output     string // CommandResponse
	Success    bool   // CommandResponse

	Reason string // Exit, optional
	HasReason bool
}

// Parser turns octal-decoded-on-demand control-mode lines into Events. It
// holds the state machine for multi-line %begin/%end/%error response
// blocks; everything else is parsed line-at-a-time with no retained state.
type Parser struct {
	inResponse    bool
	responseBuf   strings.Builder
	responseTS    uint64
	responseCmdNo uint32
}

// NewParser returns a ready-to-use Parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseLine parses a single line of octal-encoded control-mode output.
// Returns the parsed Event, or ok=false if the line produced no event
// (e.g. it was absorbed into an in-progress response block, or it did not
// match any known notification grammar).
func (p *Parser) ParseLine(line string) (Event, bool) {
	switch {
	case strings.HasPrefix(line, "%begin "):
		return p.handleBegin(line)
	case strings.HasPrefix(line, "%end "):
		return p.handleEnd(line, true)
	case strings.HasPrefix(line, "%error "):
		return p.handleEnd(line, false)
	}

	if p.inResponse {
		if p.responseBuf.Len() > 0 {
			p.responseBuf.WriteByte('\n')
		}
		p.responseBuf.WriteString(line)
		return Event{}, false
	}

	if !strings.HasPrefix(line, "%") {
		return Event{}, false
	}
	return p.parseNotification(line)
}

func (p *Parser) handleBegin(line string) (Event, bool) {
	parts := strings.Fields(line)
	if len(parts) >= 3 {
		p.inResponse = true
		p.responseTS = parseUintOr(parts[1], 0)
		p.responseCmdNo = uint32(parseUintOr(parts[2], 0))
		p.responseBuf.Reset()
	}
	return Event{}, false
}

func (p *Parser) handleEnd(_ string, success bool) (Event, bool) {
	ev := Event{
		Kind:       KindCommandResponse,
		Timestamp:  p.responseTS,
		CommandNum: p.responseCmdNo,
		Output:     p.responseBuf.String(),
		Success:    success,
	}
	p.inResponse = false
	p.responseBuf.Reset()
	return ev, true
}

func (p *Parser) parseNotification(line string) (Event, bool) {
	switch {
	case strings.HasPrefix(line, "%output "):
		return p.parseOutput(line)
	case strings.HasPrefix(line, "%extended-output "):
		return p.parseExtendedOutput(line)
	case strings.HasPrefix(line, "%layout-change "):
		return p.parseLayoutChange(line)
	case strings.HasPrefix(line, "%window-add "):
		return Event{Kind: KindWindowAdd, WindowID: trimAfter(line, "%window-add ")}, true
	case strings.HasPrefix(line, "%window-close "):
		return Event{Kind: KindWindowClose, WindowID: trimAfter(line, "%window-close ")}, true
	case strings.HasPrefix(line, "%window-renamed "):
		return p.parseWindowRenamed(line)
	case strings.HasPrefix(line, "%window-pane-changed "):
		return p.parseWindowPaneChanged(line)
	case strings.HasPrefix(line, "%pane-mode-changed "):
		return Event{Kind: KindPaneModeChanged, PaneID: trimAfter(line, "%pane-mode-changed ")}, true
	case strings.HasPrefix(line, "%session-changed "):
		return p.parseSessionChanged(line)
	case strings.HasPrefix(line, "%session-renamed "):
		return Event{Kind: KindSessionRenamed, Name: trimAfter(line, "%session-renamed ")}, true
	case strings.HasPrefix(line, "%session-window-changed "):
		return p.parseSessionWindowChanged(line)
	case line == "%sessions-changed":
		return Event{Kind: KindSessionsChanged}, true
	case strings.HasPrefix(line, "%pause "):
		return Event{Kind: KindPause, PaneID: trimAfter(line, "%pause ")}, true
	case strings.HasPrefix(line, "%continue "):
		return Event{Kind: KindContinue, PaneID: trimAfter(line, "%continue ")}, true
	case strings.HasPrefix(line, "%client-detached "):
		return Event{Kind: KindClientDetached, Client: trimAfter(line, "%client-detached ")}, true
	case strings.HasPrefix(line, "%client-session-changed "):
		return p.parseClientSessionChanged(line)
	case strings.HasPrefix(line, "%exit"):
		rest := strings.TrimSpace(line[len("%exit"):])
		return Event{Kind: KindExit, Reason: rest, HasReason: rest != ""}, true
	case strings.HasPrefix(line, "%unlinked-window-add "):
		return Event{Kind: KindUnlinkedWindowAdd, WindowID: trimAfter(line, "%unlinked-window-add ")}, true
	case strings.HasPrefix(line, "%unlinked-window-close "):
		return Event{Kind: KindUnlinkedWindowClose, WindowID: trimAfter(line, "%unlinked-window-close ")}, true
	}
	return Event{}, false
}

func (p *Parser) parseOutput(line string) (Event, bool) {
	rest := line[len("%output "):]
	if idx := strings.IndexByte(rest, ' '); idx >= 0 {
		return Event{
			Kind:    KindOutput,
			PaneID:  rest[:idx],
			Content: octal.Decode(rest[idx+1:]),
		}, true
	}
	return Event{Kind: KindOutput, PaneID: strings.TrimSpace(rest)}, true
}

func (p *Parser) parseExtendedOutput(line string) (Event, bool) {
	rest := line[len("%extended-output "):]
	parts := strings.SplitN(rest, " : ", 2)
	if len(parts) < 2 {
		return Event{}, false
	}
	header := strings.Fields(parts[0])
	if len(header) == 0 {
		return Event{}, false
	}
	var ageMS uint64
	if len(header) > 1 {
		ageMS = parseUintOr(header[1], 0)
	}
	return Event{
		Kind:    KindExtendedOutput,
		PaneID:  header[0],
		AgeMS:   ageMS,
		Content: octal.Decode(parts[1]),
	}, true
}

func (p *Parser) parseLayoutChange(line string) (Event, bool) {
	rest := line[len("%layout-change "):]
	parts := strings.Fields(rest)
	if len(parts) < 3 {
		return Event{}, false
	}
	flags := ""
	if len(parts) > 3 {
		flags = parts[3]
	}
	return Event{
		Kind:          KindLayoutChange,
		WindowID:      parts[0],
		Layout:        parts[1],
		VisibleLayout: parts[2],
		Flags:         flags,
	}, true
}

func (p *Parser) parseWindowRenamed(line string) (Event, bool) {
	rest := line[len("%window-renamed "):]
	idx := strings.IndexByte(rest, ' ')
	if idx < 0 {
		return Event{}, false
	}
	return Event{Kind: KindWindowRenamed, WindowID: rest[:idx], Name: rest[idx+1:]}, true
}

func (p *Parser) parseWindowPaneChanged(line string) (Event, bool) {
	rest := line[len("%window-pane-changed "):]
	parts := strings.Fields(rest)
	if len(parts) < 2 {
		return Event{}, false
	}
	return Event{Kind: KindWindowPaneChanged, WindowID: parts[0], PaneID: parts[1]}, true
}

func (p *Parser) parseSessionChanged(line string) (Event, bool) {
	rest := line[len("%session-changed "):]
	idx := strings.IndexByte(rest, ' ')
	if idx < 0 {
		return Event{}, false
	}
	return Event{Kind: KindSessionChanged, SessionID: rest[:idx], SessionName: rest[idx+1:]}, true
}

func (p *Parser) parseSessionWindowChanged(line string) (Event, bool) {
	rest := line[len("%session-window-changed "):]
	parts := strings.Fields(rest)
	if len(parts) < 2 {
		return Event{}, false
	}
	return Event{Kind: KindSessionWindowChanged, SessionID: parts[0], WindowID: parts[1]}, true
}

func (p *Parser) parseClientSessionChanged(line string) (Event, bool) {
	rest := line[len("%client-session-changed "):]
	parts := strings.SplitN(rest, " ", 3)
	if len(parts) < 3 {
		return Event{}, false
	}
	return Event{
		Kind:        KindClientSessionChanged,
		Client:      parts[0],
		SessionID:   parts[1],
		SessionName: parts[2],
	}, true
}

func trimAfter(line, prefix string) string {
	return strings.TrimSpace(line[len(prefix):])
}

func parseUintOr(s string, fallback uint64) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
