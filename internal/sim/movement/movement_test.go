package movement

import (
	"errors"
	"testing"

	"sortbot.ai/internal/sim/grid"
)

type point struct{ p grid.Pos }

func (m *point) Pos() grid.Pos     { return m.p }
func (m *point) SetPos(p grid.Pos) { m.p = p }

func TestAdvance_XBeforeY(t *testing.T) {
	cases := []struct {
		cur, target, want grid.Pos
	}{
		{grid.Pos{X: 1, Y: 1}, grid.Pos{X: 3, Y: 4}, grid.Pos{X: 2, Y: 1}},
		{grid.Pos{X: 3, Y: 1}, grid.Pos{X: 3, Y: 4}, grid.Pos{X: 3, Y: 2}},
		{grid.Pos{X: 5, Y: 5}, grid.Pos{X: 2, Y: 9}, grid.Pos{X: 4, Y: 5}},
		{grid.Pos{X: 2, Y: 5}, grid.Pos{X: 2, Y: 1}, grid.Pos{X: 2, Y: 4}},
		{grid.Pos{X: 4, Y: 4}, grid.Pos{X: 4, Y: 4}, grid.Pos{X: 4, Y: 4}},
	}
	for _, tc := range cases {
		if got := Advance(tc.cur, tc.target); got != tc.want {
			t.Fatalf("Advance(%v,%v)=%v want %v", tc.cur, tc.target, got, tc.want)
		}
	}
}

func TestRunTo_StepsEqualManhattanAndPathIsL(t *testing.T) {
	start := grid.Pos{X: 1, Y: 1}
	target := grid.Pos{X: 4, Y: 3}
	m := &point{p: start}
	var visited []grid.Pos
	steps, err := RunTo(m, target, func() error {
		visited = append(visited, m.Pos())
		return nil
	})
	if err != nil {
		t.Fatalf("RunTo: %v", err)
	}
	if steps != start.Manhattan(target) || steps != 5 {
		t.Fatalf("steps=%d want 5", steps)
	}
	want := []grid.Pos{{X: 2, Y: 1}, {X: 3, Y: 1}, {X: 4, Y: 1}, {X: 4, Y: 2}, {X: 4, Y: 3}}
	if len(visited) != len(want) {
		t.Fatalf("visited=%v", visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("step %d at %v want %v", i, visited[i], want[i])
		}
	}
	path := Path(start, target)
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("Path[%d]=%v want %v", i, path[i], want[i])
		}
	}
}

func TestRunTo_AlreadyThere(t *testing.T) {
	m := &point{p: grid.Pos{X: 2, Y: 2}}
	calls := 0
	steps, err := RunTo(m, grid.Pos{X: 2, Y: 2}, func() error { calls++; return nil })
	if err != nil || steps != 0 || calls != 0 {
		t.Fatalf("steps=%d calls=%d err=%v", steps, calls, err)
	}
	if len(Path(m.Pos(), m.Pos())) != 0 {
		t.Fatalf("empty path expected")
	}
}

func TestRunTo_HookErrorStops(t *testing.T) {
	boom := errors.New("sink closed")
	m := &point{p: grid.Pos{X: 1, Y: 1}}
	steps, err := RunTo(m, grid.Pos{X: 6, Y: 6}, func() error {
		if m.Pos().X == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if steps != 2 || m.Pos() != (grid.Pos{X: 3, Y: 1}) {
		t.Fatalf("stopped at steps=%d pos=%v", steps, m.Pos())
	}
}
