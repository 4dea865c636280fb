package aggregator

import "tmuxy/internal/controlmode"

// oscTracker pairs one pane's OSC parser with the cellgrid Emulator it
// feeds: output flows OSC-strip -> emulator, per §4.4 ("strip OSC before
// handing to emulator").
type oscTracker struct {
	parser *controlmode.OSCParser
}

func newOSCTracker() *oscTracker {
	return &oscTracker{parser: controlmode.NewOSCParser()}
}

// Feed strips OSC sequences from content, returning the sanitized bytes
// ready for the cellgrid Emulator, and any clipboard payload OSC 52 just
// produced.
func (t *oscTracker) Feed(content []byte) (sanitized []byte, clipboard string, hasClipboard bool) {
	sanitized = t.parser.Process(content)
	clipboard, hasClipboard = t.parser.TakeClipboard()
	return sanitized, clipboard, hasClipboard
}

func (t *oscTracker) URLAt(row, col int) (string, bool) {
	return t.parser.URLAt(row, col)
}

func (t *oscTracker) Reset() {
	t.parser.Reset()
}
