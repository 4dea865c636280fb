package controlmode

import (
	"encoding/base64"
	"strings"
)

// HyperlinkRegion is a completed OSC 8 hyperlink span, recorded once the
// region closes (an empty-URL OSC 8, or a new OSC 8 link opening). A
// region still open when processing ends is not recorded.
type HyperlinkRegion struct {
	StartRow, StartCol int
	EndRow, EndCol     int
	URL                string
	ID                 string
}

type cellCoord struct{ row, col int }

// OSCParser strips OSC (Operating System Command) sequences from a pane's
// raw output stream before it reaches the cell-grid emulator, and tracks
// OSC 8 hyperlink regions and OSC 52 clipboard payloads as it goes.
//
// Cursor position for URL-cell mapping is tracked approximately from the
// byte stream itself (\n advances row and resets column, \r resets column,
// printable bytes advance column) — the cell-grid emulator handles exact
// cursor positioning for rendering; this tracker only attributes URLs to
// cells, per §4.4.
type OSCParser struct {
	activeURL  string
	activeID   string
	hasActive  bool
	startRow   int
	startCol   int
	cursorRow  int
	cursorCol  int
	Hyperlinks []HyperlinkRegion
	clipboard  string
	hasClipbrd bool
	cellURLs   map[cellCoord]string
}

// NewOSCParser returns a ready-to-use parser for one pane.
func NewOSCParser() *OSCParser {
	return &OSCParser{cellURLs: make(map[cellCoord]string)}
}

// Reset clears all parser state, e.g. on pane resize or full refresh.
func (p *OSCParser) Reset() {
	p.hasActive = false
	p.activeURL = ""
	p.activeID = ""
	p.cursorRow = 0
	p.cursorCol = 0
	p.Hyperlinks = nil
	p.clipboard = ""
	p.hasClipbrd = false
	p.cellURLs = make(map[cellCoord]string)
}

// Process scans content for OSC sequences, removes them, and returns the
// remaining bytes for the cell-grid emulator to consume.
func (p *OSCParser) Process(content []byte) []byte {
	out := make([]byte, 0, len(content))
	i := 0
	for i < len(content) {
		if content[i] == 0x1b && i+1 < len(content) && content[i+1] == ']' {
			if end, oscContent, ok := findOSCEnd(content[i:]); ok {
				p.parseOSC(oscContent)
				i += end
				continue
			}
		}

		switch {
		case content[i] == '\n':
			p.cursorRow++
			p.cursorCol = 0
		case content[i] == '\r':
			p.cursorCol = 0
		case content[i] >= 0x20 && content[i] < 0x7f:
			if p.hasActive {
				p.cellURLs[cellCoord{p.cursorRow, p.cursorCol}] = p.activeURL
			}
			p.cursorCol++
		}

		out = append(out, content[i])
		i++
	}
	return out
}

// findOSCEnd locates the terminator (ST = ESC \, or BEL) of an OSC sequence
// starting at content[0:2] == ESC ']'. Returns the total length consumed
// (including the terminator) and the inner content between "ESC ]" and the
// terminator.
func findOSCEnd(content []byte) (length int, inner []byte, ok bool) {
	if len(content) < 2 || content[0] != 0x1b || content[1] != ']' {
		return 0, nil, false
	}
	const start = 2
	for i := start; i < len(content); i++ {
		if i+1 < len(content) && content[i] == 0x1b && content[i+1] == '\\' {
			return i + 2, content[start:i], true
		}
		if content[i] == 0x07 {
			return i + 1, content[start:i], true
		}
	}
	return 0, nil, false
}

func (p *OSCParser) parseOSC(content []byte) {
	s := string(content)
	if rest, ok := strings.CutPrefix(s, "8;"); ok {
		p.parseOSC8(rest)
		return
	}
	if rest, ok := strings.CutPrefix(s, "52;"); ok {
		p.parseOSC52(rest)
	}
}

// parseOSC8 handles "8;params;url" (open, or close when url is empty).
func (p *OSCParser) parseOSC8(content string) {
	params, url, ok := strings.Cut(content, ";")
	if !ok {
		return
	}
	if url == "" {
		p.finalizeHyperlink()
		return
	}

	var id string
	for _, part := range strings.Split(params, ":") {
		if v, ok := strings.CutPrefix(part, "id="); ok {
			id = v
			break
		}
	}

	p.finalizeHyperlink()
	p.activeURL = url
	p.activeID = id
	p.hasActive = true
	p.startRow = p.cursorRow
	p.startCol = p.cursorCol
}

// parseOSC52 handles "Pc;Pd" where Pd is base64-encoded clipboard text.
func (p *OSCParser) parseOSC52(content string) {
	_, payload, ok := strings.Cut(content, ";")
	if !ok {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return
		}
	}
	p.clipboard = string(decoded)
	p.hasClipbrd = true
}

func (p *OSCParser) finalizeHyperlink() {
	if !p.hasActive {
		return
	}
	p.Hyperlinks = append(p.Hyperlinks, HyperlinkRegion{
		StartRow: p.startRow,
		StartCol: p.startCol,
		EndRow:   p.cursorRow,
		EndCol:   p.cursorCol,
		URL:      p.activeURL,
		ID:       p.activeID,
	})
	p.hasActive = false
	p.activeURL = ""
	p.activeID = ""
}

// URLAt returns the URL mapped to (row, col), if any.
func (p *OSCParser) URLAt(row, col int) (string, bool) {
	u, ok := p.cellURLs[cellCoord{row, col}]
	return u, ok
}

// TakeClipboard returns and clears any pending OSC 52 clipboard payload.
func (p *OSCParser) TakeClipboard() (string, bool) {
	if !p.hasClipbrd {
		return "", false
	}
	text := p.clipboard
	p.clipboard = ""
	p.hasClipbrd = false
	return text, true
}
