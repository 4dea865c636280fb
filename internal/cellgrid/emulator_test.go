package cellgrid

import "testing"

func TestEmulatorPlainText(t *testing.T) {
	e := New(10, 3)
	e.Write([]byte("hi"))
	grid := e.Grid()
	if string(cellsToRunes(grid[0])) != "hi" {
		t.Fatalf("row 0 = %q, want %q", string(cellsToRunes(grid[0])), "hi")
	}
}

func TestEmulatorNewlineAndCarriageReturn(t *testing.T) {
	e := New(10, 3)
	e.Write([]byte("ab\r\ncd"))
	grid := e.Grid()
	if string(cellsToRunes(grid[0])) != "ab" || string(cellsToRunes(grid[1])) != "cd" {
		t.Fatalf("unexpected grid: %q / %q", cellsToRunes(grid[0]), cellsToRunes(grid[1]))
	}
}

func TestEmulatorSGRBoldAndColor(t *testing.T) {
	e := New(10, 3)
	e.Write([]byte("\x1b[1;31mred\x1b[0mnormal"))
	grid := e.Grid()
	row := grid[0]
	if !row[0].Style.Bold || row[0].Style.FG.Mode != ColorIndexed || row[0].Style.FG.Idx != 1 {
		t.Fatalf("expected bold red at col 0, got %+v", row[0].Style)
	}
	if row[3].Style.Bold || row[3].Style.FG.Mode != ColorDefault {
		t.Fatalf("expected reset style at col 3, got %+v", row[3].Style)
	}
}

func TestEmulatorCSICursorPosition(t *testing.T) {
	e := New(10, 5)
	e.Write([]byte("\x1b[3;4Hx"))
	row, col := e.Cursor()
	// cursor after writing x at (row=2,col=3) advances to col 4
	if row != 2 || col != 4 {
		t.Fatalf("cursor = (%d,%d), want (2,4)", row, col)
	}
	grid := e.Grid()
	if grid[2][3].Rune != 'x' {
		t.Fatalf("expected x at row 2 col 3, got %+v", grid[2])
	}
}

func TestEmulatorEraseLine(t *testing.T) {
	e := New(10, 2)
	e.Write([]byte("hello"))
	e.Write([]byte("\r\x1b[K"))
	grid := e.Grid()
	if len(grid[0]) != 0 {
		t.Fatalf("expected row cleared, got %q", cellsToRunes(grid[0]))
	}
}

func TestEmulatorResizeShrinkKeepsTail(t *testing.T) {
	e := New(10, 3)
	e.Write([]byte("a\r\nb\r\nc"))
	e.Resize(10, 2)
	grid := e.Grid()
	if len(grid) != 2 {
		t.Fatalf("expected 2 rows after shrink, got %d", len(grid))
	}
	if string(cellsToRunes(grid[0])) != "b" || string(cellsToRunes(grid[1])) != "c" {
		t.Fatalf("unexpected rows after shrink: %q / %q", cellsToRunes(grid[0]), cellsToRunes(grid[1]))
	}
}

func TestEmulatorWideGrapheme(t *testing.T) {
	e := New(10, 1)
	e.Write([]byte("a"))
	e.Write([]byte("\xe4\xb8\xad")) // U+4E2D, a wide CJK character
	e.Write([]byte("b"))
	_, col := e.Cursor()
	if col < 4 {
		t.Fatalf("expected wide rune to advance cursor by 2 cells, col=%d", col)
	}
}

func cellsToRunes(cells []Cell) []rune {
	out := make([]rune, 0, len(cells))
	for _, c := range cells {
		if c.Rune == 0 {
			continue
		}
		out = append(out, c.Rune)
	}
	return out
}
