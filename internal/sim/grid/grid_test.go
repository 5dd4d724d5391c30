package grid

import (
	"math"
	"testing"
)

func TestPosDistances(t *testing.T) {
	a := Pos{X: 1, Y: 1}
	b := Pos{X: 4, Y: 5}
	if got := a.Dist(b); math.Abs(got-5) > 1e-9 {
		t.Fatalf("Dist=%v want 5", got)
	}
	if got := a.Manhattan(b); got != 7 {
		t.Fatalf("Manhattan=%d want 7", got)
	}
	if got := b.Manhattan(a); got != 7 {
		t.Fatalf("Manhattan not symmetric: %d", got)
	}
	if !a.Equal(Pos{X: 1, Y: 1}) || a.Equal(b) {
		t.Fatalf("Equal mismatch")
	}
}

func TestRect(t *testing.T) {
	r := Rect{Min: Pos{X: 1, Y: 1}, Max: Pos{X: 6, Y: 6}}
	if r.Cells() != 36 {
		t.Fatalf("Cells=%d want 36", r.Cells())
	}
	if !r.Contains(Pos{X: 6, Y: 1}) || r.Contains(Pos{X: 7, Y: 1}) || r.Contains(Pos{X: 0, Y: 3}) {
		t.Fatalf("Contains mismatch")
	}
	empty := Rect{Min: Pos{X: 3, Y: 3}, Max: Pos{X: 2, Y: 5}}
	if !empty.Empty() || empty.Cells() != 0 {
		t.Fatalf("expected empty rect")
	}
}

func TestArenaInterior(t *testing.T) {
	a := Arena{Width: 10, Height: 10}
	cases := []struct {
		p    Pos
		want bool
	}{
		{Pos{X: 1, Y: 1}, true},
		{Pos{X: 9, Y: 9}, true},
		{Pos{X: 0, Y: 5}, false},
		{Pos{X: 10, Y: 5}, false},
		{Pos{X: 5, Y: -1}, false},
	}
	for _, tc := range cases {
		if got := a.Interior(tc.p); got != tc.want {
			t.Fatalf("Interior(%v)=%v want %v", tc.p, got, tc.want)
		}
	}
	if r := a.InteriorRect(); r.Cells() != 81 {
		t.Fatalf("InteriorRect cells=%d want 81", r.Cells())
	}
}
