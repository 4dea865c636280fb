package aggregator

import "regexp"

// Window naming conventions the bridge uses to carry extra state through
// tmux's own window list rather than a side channel (SPEC_FULL
// supplemented feature 1, grounded on the original's
// `parse_stack_window_name`-equivalent naming scheme):
//
//	__%3_group_2   — a pane-group window shadowing pane %3, tab index 2
//	__float_term   — a float window named "term"
var (
	paneGroupNamePattern = regexp.MustCompile(`^__%(\d+)_group_(\d+)$`)
	floatNamePattern     = regexp.MustCompile(`^__float_`)
)

// classifyWindowName derives the pane-group/float-window flags from a
// window's name, applied whenever a window is created or renamed.
func classifyWindowName(w *Window) {
	w.IsPaneGroupWindow = false
	w.PaneGroupParentID = ""
	w.IsFloatWindow = false

	if m := paneGroupNamePattern.FindStringSubmatch(w.Name); m != nil {
		w.IsPaneGroupWindow = true
		w.PaneGroupParentID = "%" + m[1]
		return
	}
	if floatNamePattern.MatchString(w.Name) {
		w.IsFloatWindow = true
	}
}
