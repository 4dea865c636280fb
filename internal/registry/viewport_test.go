package registry

import "testing"

func TestMinimizeViewportEmpty(t *testing.T) {
	_, _, ok := minimizeViewport(map[string]viewport{})
	if ok {
		t.Fatal("expected ok=false for no clients")
	}
}

func TestMinimizeViewportSingleClient(t *testing.T) {
	cols, rows, ok := minimizeViewport(map[string]viewport{
		"1": {Cols: 100, Rows: 40},
	})
	if !ok || cols != 100 || rows != 40 {
		t.Fatalf("got (%d,%d,%v), want (100,40,true)", cols, rows, ok)
	}
}

// Client A reports 100x30, client B reports 80x40; the registry must
// compute the independent min of each axis (80x30), which is neither
// client's full viewport.
func TestMinimizeViewportTakesIndependentMinPerAxis(t *testing.T) {
	cols, rows, ok := minimizeViewport(map[string]viewport{
		"a": {Cols: 100, Rows: 30},
		"b": {Cols: 80, Rows: 40},
	})
	if !ok || cols != 80 || rows != 30 {
		t.Fatalf("got (%d,%d,%v), want (80,30,true)", cols, rows, ok)
	}
}

func TestMinimizeViewportGrowsWhenSmallestClientLeaves(t *testing.T) {
	clients := map[string]viewport{
		"a": {Cols: 100, Rows: 40},
		"b": {Cols: 80, Rows: 30},
	}
	cols, rows, _ := minimizeViewport(clients)
	if cols != 80 || rows != 30 {
		t.Fatalf("got (%d,%d), want (80,30)", cols, rows)
	}
	delete(clients, "b")
	cols, rows, ok := minimizeViewport(clients)
	if !ok || cols != 100 || rows != 40 {
		t.Fatalf("got (%d,%d,%v), want (100,40,true)", cols, rows, ok)
	}
}
