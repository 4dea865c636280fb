// Package keybindings parses the responses of tmux's `list-keys -T <table>`
// and `show-options -g prefix` so the Registry can serve a `keybindings`
// event (§6) describing the prefix key and both binding tables to a fresh
// client, the way the teacher's `internal/tmux/key_table.go` builds a
// static send-keys table — generalized here to a table built from tmux's
// own authoritative response instead of a hardcoded Go map.
package keybindings

import "strings"

// Binding is one `<key> -> <tmux command>` mapping in a key table.
type Binding struct {
	Key     string `json:"key"`
	Command string `json:"command"`
}

// Table is the full set of bindings a client needs to interpret local
// key presses before falling back to forwarding them to tmux. Field names
// match the `keybindings` stream event of §6.
type Table struct {
	Prefix         string    `json:"prefix_key"`
	PrefixBindings []Binding `json:"prefix_bindings"`
	RootBindings   []Binding `json:"root_bindings"`
}

// DefaultPrefix is used if `show-options -g prefix` returns nothing
// (tmux's own compiled-in default).
const DefaultPrefix = "C-b"

// ParsePrefixOption parses the output of `show-options -g prefix`, which
// is a single line of the form "prefix C-b".
func ParsePrefixOption(output string) string {
	fields := strings.Fields(strings.TrimSpace(output))
	if len(fields) < 2 {
		return DefaultPrefix
	}
	return fields[1]
}

// ParseListKeys parses the output of `list-keys -T <table>`. Each line has
// the form `bind-key [-r] [-N "note"] -T <table> <key> <command...>`; only
// the key and the command (everything after the key) are kept.
func ParseListKeys(output string) []Binding {
	var out []Binding
	for _, line := range strings.Split(output, "\n") {
		b, ok := parseListKeysLine(line)
		if ok {
			out = append(out, b)
		}
	}
	return out
}

func parseListKeysLine(line string) (Binding, bool) {
	fields := strings.Fields(line)
	idx := indexOf(fields, "-T")
	if idx < 0 || idx+2 >= len(fields) {
		return Binding{}, false
	}
	key := fields[idx+2]
	if idx+3 >= len(fields) {
		return Binding{}, false
	}
	return Binding{Key: key, Command: strings.Join(fields[idx+3:], " ")}, true
}

func indexOf(fields []string, target string) int {
	for i, f := range fields {
		if f == target {
			return i
		}
	}
	return -1
}

// Lookup returns the command bound to key in bindings, if any.
func Lookup(bindings []Binding, key string) (string, bool) {
	for _, b := range bindings {
		if b.Key == key {
			return b.Command, true
		}
	}
	return "", false
}
