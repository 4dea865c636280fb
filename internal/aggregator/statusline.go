package aggregator

import (
	"sort"
	"strconv"
	"strings"
)

// refreshStatusLine recomputes the cached status line if WindowAdd,
// WindowRenamed, or SessionWindowChanged marked it dirty, then clears the
// flag (§4.5). Cheap to call unconditionally: a clean session is a no-op.
func (s *Session) refreshStatusLine() {
	if !s.statusLineDirty {
		return
	}
	s.StatusLine = renderStatusLine(s)
	s.statusLineDirty = false
}

// renderStatusLine builds a tmux-status-bar-style summary of the
// session's windows, ordered by index, with the active window starred —
// e.g. "0:bash 1:vim* 2:htop". A window still suppressed (named but not
// yet confirmed by %window-renamed) is skipped: it has no name worth
// showing yet.
func renderStatusLine(s *Session) string {
	windows := make([]*Window, 0, len(s.Windows))
	for _, w := range s.Windows {
		if w.nameSuppressed {
			continue
		}
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Index < windows[j].Index })

	parts := make([]string, 0, len(windows))
	for _, w := range windows {
		entry := strconv.Itoa(w.Index) + ":" + w.Name
		if w.Active {
			entry += "*"
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, " ")
}
