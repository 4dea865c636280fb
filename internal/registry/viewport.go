package registry

// viewport is one client's reported terminal size (§3 Session Registry
// entry: "map connection-id → reported viewport (cols,rows)").
type viewport struct {
	Cols, Rows int
}

// minimizeViewport computes the minimum cols and minimum rows across all
// currently attached clients — tmux itself renders a window at the
// minimum size across every attached client, and the registry must match
// that (§4.7 coordination rule). Returns ok=false if no client is
// attached (nothing to minimize over).
func minimizeViewport(clients map[string]viewport) (cols, rows int, ok bool) {
	first := true
	for _, v := range clients {
		if first {
			cols, rows = v.Cols, v.Rows
			first = false
			continue
		}
		if v.Cols < cols {
			cols = v.Cols
		}
		if v.Rows < rows {
			rows = v.Rows
		}
	}
	return cols, rows, !first
}
