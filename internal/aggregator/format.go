package aggregator

import (
	"strconv"
	"strings"
)

// PaneListFormat is the -F format string sent with `list-panes` (§4.5).
// Most fields are fixed-width/fixed-position, but border_title can itself
// contain commas (it is free text set by the user or another plugin), so
// the parser below locates it by taking the NINE fixed fields from the
// end first and treating whatever remains in the middle as the title,
// exactly like the teacher's own `#{var}` expansion idiom generalized to
// a fixed tmux format string instead of a locally-expanded one.
const PaneListFormat = "#{pane_id},#{pane_index},#{pane_left},#{pane_top},#{pane_width},#{pane_height}," +
	"#{cursor_x},#{cursor_y},#{pane_active},#{pane_current_command},#{pane_title},#{pane_in_mode}," +
	"#{copy_cursor_x},#{copy_cursor_y},#{window_id},#{@pane_border_title}," +
	"#{alternate_on},#{mouse_any_flag},#{@pane_group_id},#{@pane_group_tab_index}," +
	"#{selection_present},#{selection_start_x},#{selection_start_y},#{history_size},#{scroll_position}"

// WindowListFormat is the -F format string sent with `list-windows`.
const WindowListFormat = "#{window_id},#{window_index},#{window_name},#{window_active},#{window_layout}"

const paneListPrefixFields = 15
const paneListSuffixFields = 9

// ParsePaneLine parses one line of `list-panes -F PaneListFormat` output.
func ParsePaneLine(line string) (Pane, error) {
	tokens := strings.Split(line, ",")
	if len(tokens) < paneListPrefixFields+paneListSuffixFields {
		return Pane{}, errFieldCount("pane", line, len(tokens))
	}

	prefix := tokens[:paneListPrefixFields]
	suffix := tokens[len(tokens)-paneListSuffixFields:]
	middle := tokens[paneListPrefixFields : len(tokens)-paneListSuffixFields]
	borderTitle := strings.Join(middle, ",")

	p := Pane{
		ID:             prefix[0],
		Index:          atoiOr(prefix[1], 0),
		Left:           atoiOr(prefix[2], 0),
		Top:            atoiOr(prefix[3], 0),
		Width:          atoiOr(prefix[4], 0),
		Height:         atoiOr(prefix[5], 0),
		CursorX:        atoiOr(prefix[6], 0),
		CursorY:        atoiOr(prefix[7], 0),
		Active:         prefix[8] == "1",
		CurrentCommand: prefix[9],
		Title:          prefix[10],
		InMode:         prefix[11] == "1",
		CopyCursorX:    atoiOr(prefix[12], 0),
		CopyCursorY:    atoiOr(prefix[13], 0),
		WindowID:       prefix[14],
		BorderTitle:    borderTitle,

		AlternateScreen:  suffix[0] == "1",
		MouseAny:         suffix[1] == "1",
		GroupID:          suffix[2],
		GroupTabIdx:      atoiOr(suffix[3], 0),
		SelectionPresent: suffix[4] == "1",
		SelectionStartX:  atoiOr(suffix[5], 0),
		SelectionStartY:  atoiOr(suffix[6], 0),
		HistorySize:      atoiOr(suffix[7], 0),
		ScrollPosition:   atoiOr(suffix[8], 0),
	}
	return p, nil
}

// ParseWindowLine parses one line of `list-windows -F WindowListFormat`.
func ParseWindowLine(line string) (Window, error) {
	tokens := strings.SplitN(line, ",", 5)
	if len(tokens) < 5 {
		return Window{}, errFieldCount("window", line, len(tokens))
	}
	w := Window{
		ID:     tokens[0],
		Index:  atoiOr(tokens[1], 0),
		Name:   tokens[2],
		Active: tokens[3] == "1",
		Layout: tokens[4],
	}
	classifyWindowName(&w)
	return w, nil
}

func atoiOr(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func errFieldCount(kind, line string, got int) error {
	return &fieldCountError{kind: kind, line: line, got: got}
}

type fieldCountError struct {
	kind string
	line string
	got  int
}

func (e *fieldCountError) Error() string {
	return "aggregator: " + e.kind + " line has too few fields (" + strconv.Itoa(e.got) + "): " + e.line
}
