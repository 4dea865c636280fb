// Package cellgrid implements the per-pane terminal emulator and styled
// cell extraction of spec §3 (pane attributes) and §4.4 (cell extraction).
//
// It extends the teacher's plain-text internal/panestate terminal state
// machine (ring-buffer lines, ESC/CSI/OSC parsing, UTF-8 remainder
// buffering) with SGR attribute tracking, per-cell style, and CSI cursor
// repositioning — needed because a captured tmux pane carries full color
// and cursor-movement sequences, not just printable text.
package cellgrid

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

const (
	defaultCols = 80
	defaultRows = 24
	maxCSILen   = 256
)

type escapeMode uint8

const (
	escapeNone escapeMode = iota
	escapeInitial
	escapeCSI
)

// Emulator is a minimal VT/ANSI state machine producing a styled r×c cell
// grid. One Emulator is owned per pane (§3 invariant: panes own their
// emulator exclusively).
type Emulator struct {
	cols, rows int

	cells [][]Cell
	head  int // ring-buffer rotation point, as in panestate.terminalState
	row   int
	col   int

	cur Style // SGR state accumulated by the most recent CSI m

	mode   escapeMode
	csiBuf strings.Builder

	remainder [utf8.UTFMax]byte
	remLen    int
}

// New returns an Emulator sized cols x rows, blank-filled.
func New(cols, rows int) *Emulator {
	cols, rows = sanitize(cols, rows)
	e := &Emulator{cols: cols, rows: rows}
	e.cells = make([][]Cell, rows)
	for i := range e.cells {
		e.cells[i] = blankRow(cols)
	}
	return e
}

func blankRow(cols int) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = blankCell
	}
	return row
}

func sanitize(cols, rows int) (int, int) {
	if cols <= 0 {
		cols = defaultCols
	}
	if rows <= 0 {
		rows = defaultRows
	}
	return cols, rows
}

func (e *Emulator) physIdx(logicalRow int) int {
	return (e.head + logicalRow) % len(e.cells)
}

// Size returns the current grid dimensions.
func (e *Emulator) Size() (cols, rows int) { return e.cols, e.rows }

// Resize reshapes the grid, keeping the most recent rows when shrinking
// and clamping the cursor, same linearize-then-reshape approach as
// panestate.terminalState.Resize.
func (e *Emulator) Resize(cols, rows int) {
	cols, rows = sanitize(cols, rows)
	e.resetEscape()

	if rows != e.rows {
		oldRows := e.rows
		if oldRows > len(e.cells) {
			oldRows = len(e.cells)
		}
		linear := make([][]Cell, oldRows)
		for i := 0; i < oldRows; i++ {
			linear[i] = e.cells[e.physIdx(i)]
		}
		next := make([][]Cell, rows)
		if rows > oldRows {
			copy(next, linear)
			for i := oldRows; i < rows; i++ {
				next[i] = blankRow(cols)
			}
		} else {
			start := 0
			if len(linear) > rows {
				start = len(linear) - rows
			}
			copy(next, linear[start:])
		}
		e.cells = next
		e.head = 0
	}

	for i := range e.cells {
		if len(e.cells[i]) > cols {
			e.cells[i] = e.cells[i][:cols]
		} else if len(e.cells[i]) < cols {
			pad := blankRow(cols - len(e.cells[i]))
			e.cells[i] = append(e.cells[i], pad...)
		}
	}

	e.cols, e.rows = cols, rows
	if e.col > e.cols {
		e.col = e.cols
	}
	if e.row >= e.rows {
		e.row = e.rows - 1
	}
	if e.row < 0 {
		e.row = 0
	}
}

// Write feeds raw pane output (with OSC sequences already stripped by
// controlmode.OSCParser.Process) through the state machine.
func (e *Emulator) Write(chunk []byte) (int, error) {
	n := len(chunk)

	if e.remLen > 0 {
		need := utf8NeedBytes(e.remainder[0]) - e.remLen
		if need > len(chunk) {
			copy(e.remainder[e.remLen:], chunk)
			e.remLen += len(chunk)
			return n, nil
		}
		copy(e.remainder[e.remLen:], chunk[:need])
		r, _ := utf8.DecodeRune(e.remainder[:e.remLen+need])
		e.consumeRune(r)
		chunk = chunk[need:]
		e.remLen = 0
	}

	for len(chunk) > 0 {
		b := chunk[0]
		if b < utf8.RuneSelf {
			e.consumeRune(rune(b))
			chunk = chunk[1:]
			continue
		}
		r, size := utf8.DecodeRune(chunk)
		if r == utf8.RuneError && size == 1 {
			if !utf8.FullRune(chunk) {
				e.remLen = copy(e.remainder[:], chunk)
				break
			}
			slog.Debug("[cellgrid] skipping invalid UTF-8 byte", "byte", fmt.Sprintf("0x%02X", b))
			chunk = chunk[1:]
			continue
		}
		e.consumeRune(r)
		chunk = chunk[size:]
	}
	return n, nil
}

func utf8NeedBytes(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

func (e *Emulator) consumeRune(r rune) {
	if e.mode != escapeNone {
		e.consumeEscapeRune(r)
		return
	}
	switch r {
	case 0x1b:
		e.mode = escapeInitial
	case '\r':
		e.col = 0
	case '\n':
		e.newLine()
	case '\b':
		if e.col > 0 {
			e.col--
		}
	case '\t':
		spaces := 8 - (e.col % 8)
		for i := 0; i < spaces; i++ {
			e.putRune(' ', 1)
		}
	default:
		if r < 0x20 || r == 0x7f {
			return
		}
		e.putGrapheme(r)
	}
}

func (e *Emulator) consumeEscapeRune(r rune) {
	switch e.mode {
	case escapeInitial:
		switch r {
		case '[':
			e.mode = escapeCSI
			e.csiBuf.Reset()
		default:
			// Other ESC-introduced sequences (charset selection, etc) are
			// single-rune and not relevant to cell content; drop.
			e.resetEscape()
		}
	case escapeCSI:
		if r >= 0x40 && r <= 0x7e {
			e.handleCSI(e.csiBuf.String(), byte(r))
			e.resetEscape()
			return
		}
		if r == '\r' || r == '\n' || e.csiBuf.Len() >= maxCSILen {
			e.resetEscape()
			return
		}
		e.csiBuf.WriteRune(r)
	default:
		e.resetEscape()
	}
}

func (e *Emulator) resetEscape() {
	e.mode = escapeNone
	e.csiBuf.Reset()
}

// handleCSI dispatches a completed CSI sequence. params may carry a
// leading '?' (private sequences) which is stripped before parameter
// parsing; unsupported finals are accepted but have no effect, matching
// real terminals' tolerance of sequences they don't implement.
func (e *Emulator) handleCSI(params string, final byte) {
	params = strings.TrimPrefix(params, "?")
	args := parseCSIParams(params)

	switch final {
	case 'm':
		e.applySGR(args)
	case 'H', 'f':
		row := csiArg(args, 0, 1)
		col := csiArg(args, 1, 1)
		e.row = clamp(row-1, 0, e.rows-1)
		e.col = clamp(col-1, 0, e.cols)
	case 'A':
		e.row = clamp(e.row-csiArg(args, 0, 1), 0, e.rows-1)
	case 'B':
		e.row = clamp(e.row+csiArg(args, 0, 1), 0, e.rows-1)
	case 'C':
		e.col = clamp(e.col+csiArg(args, 0, 1), 0, e.cols)
	case 'D':
		e.col = clamp(e.col-csiArg(args, 0, 1), 0, e.cols)
	case 'G':
		e.col = clamp(csiArg(args, 0, 1)-1, 0, e.cols)
	case 'd':
		e.row = clamp(csiArg(args, 0, 1)-1, 0, e.rows-1)
	case 'J':
		e.eraseDisplay(csiArg(args, 0, 0))
	case 'K':
		e.eraseLine(csiArg(args, 0, 0))
	}
}

func csiArg(args []int, i, def int) int {
	if i >= len(args) || args[i] == 0 {
		return def
	}
	return args[i]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func parseCSIParams(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			v = 0
		}
		out[i] = v
	}
	return out
}

func (e *Emulator) applySGR(args []int) {
	if len(args) == 0 {
		e.cur = Style{}
		return
	}
	for i := 0; i < len(args); i++ {
		p := args[i]
		switch {
		case p == 0:
			e.cur = Style{}
		case p == 1:
			e.cur.Bold = true
		case p == 3:
			e.cur.Italic = true
		case p == 4:
			e.cur.Underline = true
		case p == 7:
			e.cur.Inverse = true
		case p == 22:
			e.cur.Bold = false
		case p == 23:
			e.cur.Italic = false
		case p == 24:
			e.cur.Underline = false
		case p == 27:
			e.cur.Inverse = false
		case p >= 30 && p <= 37:
			e.cur.FG = Color{Mode: ColorIndexed, Idx: uint8(p - 30)}
		case p == 38:
			c, consumed := parseExtendedColor(args[i+1:])
			e.cur.FG = c
			i += consumed
		case p == 39:
			e.cur.FG = Color{}
		case p >= 40 && p <= 47:
			e.cur.BG = Color{Mode: ColorIndexed, Idx: uint8(p - 40)}
		case p == 48:
			c, consumed := parseExtendedColor(args[i+1:])
			e.cur.BG = c
			i += consumed
		case p == 49:
			e.cur.BG = Color{}
		case p >= 90 && p <= 97:
			e.cur.FG = Color{Mode: ColorIndexed, Idx: uint8(p-90) + 8}
		case p >= 100 && p <= 107:
			e.cur.BG = Color{Mode: ColorIndexed, Idx: uint8(p-100) + 8}
		}
	}
}

// parseExtendedColor parses the tail of a 38;... or 48;... sequence,
// returning the color and how many additional args it consumed.
func parseExtendedColor(rest []int) (Color, int) {
	if len(rest) == 0 {
		return Color{}, 0
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return Color{}, len(rest)
		}
		return Color{Mode: ColorIndexed, Idx: uint8(rest[1])}, 2
	case 2:
		if len(rest) < 4 {
			return Color{}, len(rest)
		}
		return Color{Mode: ColorRGB, R: uint8(rest[1]), G: uint8(rest[2]), B: uint8(rest[3])}, 4
	}
	return Color{}, len(rest)
}

func (e *Emulator) eraseDisplay(mode int) {
	switch mode {
	case 0:
		e.clearRow(e.row, e.col, e.cols)
		for r := e.row + 1; r < e.rows; r++ {
			e.clearRow(r, 0, e.cols)
		}
	case 1:
		for r := 0; r < e.row; r++ {
			e.clearRow(r, 0, e.cols)
		}
		e.clearRow(e.row, 0, e.col)
	case 2, 3:
		for r := 0; r < e.rows; r++ {
			e.clearRow(r, 0, e.cols)
		}
	}
}

func (e *Emulator) eraseLine(mode int) {
	switch mode {
	case 0:
		e.clearRow(e.row, e.col, e.cols)
	case 1:
		e.clearRow(e.row, 0, e.col)
	case 2:
		e.clearRow(e.row, 0, e.cols)
	}
}

func (e *Emulator) clearRow(row, from, to int) {
	if row < 0 || row >= e.rows {
		return
	}
	line := e.cells[e.physIdx(row)]
	for i := from; i < to && i < len(line); i++ {
		line[i] = blankCell
	}
}

// putGrapheme advances the cursor by one grapheme cluster's display width
// (via uniseg), so wide CJK and combining runes occupy the correct number
// of cells instead of always one — the teacher's plain-text pane state
// never needed this since it only modeled raw characters, not columns.
func (e *Emulator) putGrapheme(r rune) {
	width := uniseg.StringWidth(string(r))
	if width <= 0 {
		width = 1
	}
	e.putRune(r, width)
	for i := 1; i < width; i++ {
		e.putRune(0, 0) // continuation cell, never rendered as its own glyph
	}
}

func (e *Emulator) putRune(r rune, width int) {
	if e.cols <= 0 || e.rows <= 0 {
		return
	}
	if e.row >= e.rows {
		e.row = e.rows - 1
	}
	if e.col >= e.cols {
		e.newLine()
	}
	idx := e.physIdx(e.row)
	line := e.cells[idx]
	if e.col < len(line) {
		if r == 0 {
			line[e.col] = blankCell
		} else {
			line[e.col] = Cell{Rune: r, Style: e.cur}
		}
	}
	e.col++
	_ = width
}

func (e *Emulator) newLine() {
	if e.rows <= 0 {
		return
	}
	if e.row < e.rows-1 {
		e.row++
		e.col = 0
		return
	}
	if len(e.cells) == 0 {
		e.cells = make([][]Cell, e.rows)
		for i := range e.cells {
			e.cells[i] = blankRow(e.cols)
		}
		e.head = 0
	}
	oldHead := e.head
	e.head = (e.head + 1) % len(e.cells)
	e.cells[oldHead] = blankRow(e.cols)
	e.col = 0
}

// Cursor returns the current logical cursor position.
func (e *Emulator) Cursor() (row, col int) { return e.row, e.col }

// SetCursor repositions the cursor directly, with the same effect as a
// CSI H — used after reprocessing a capture-pane snapshot to put the
// cursor back at the pane's authoritative position once the whole buffer
// has been replayed (§4.5 CommandResponse).
func (e *Emulator) SetCursor(row, col int) {
	e.row = clamp(row, 0, e.rows-1)
	e.col = clamp(col, 0, e.cols)
}

// Grid returns a snapshot of the r×c styled cell grid in logical row
// order, trailing-empty cells trimmed per row per §4.4's extraction rule.
func (e *Emulator) Grid() [][]Cell {
	out := make([][]Cell, e.rows)
	for i := 0; i < e.rows; i++ {
		line := e.cells[e.physIdx(i)]
		cp := make([]Cell, len(line))
		copy(cp, line)
		out[i] = trimTrailingBlank(cp)
	}
	return out
}

func trimTrailingBlank(line []Cell) []Cell {
	end := len(line)
	for end > 0 && line[end-1].Equal(blankCell) {
		end--
	}
	return line[:end]
}
