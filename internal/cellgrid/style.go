package cellgrid

// Color is either the terminal default, an indexed (0-255) palette entry,
// or a truecolor RGB triple, mirroring the three forms SGR parameters can
// select (30-37/40-47/90-97/100-107, 38;5;n/48;5;n, 38;2;r;g;b/48;2;r;g;b).
type Color struct {
	Mode ColorMode
	Idx  uint8
	R, G, B uint8
}

type ColorMode uint8

const (
	ColorDefault ColorMode = iota
	ColorIndexed
	ColorRGB
)

// Style is the SGR attribute set in effect when a cell was written.
type Style struct {
	FG, BG    Color
	Bold      bool
	Italic    bool
	Underline bool
	Inverse   bool
}

// Equal reports whether two styles render identically.
func (s Style) Equal(o Style) bool {
	return s == o
}

// Cell is one character position in the grid.
type Cell struct {
	Rune  rune
	Style Style
}

var blankCell = Cell{Rune: ' '}

func (c Cell) Equal(o Cell) bool {
	return c.Rune == o.Rune && c.Style.Equal(o.Style)
}
