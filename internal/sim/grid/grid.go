// Package grid holds the integer lattice primitives shared by the simulation.
package grid

import (
	"fmt"
	"math"
)

// Pos is a cell on the arena lattice.
type Pos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Pos) Equal(o Pos) bool { return p.X == o.X && p.Y == o.Y }

// Dist is the straight-line distance between two cells.
func (p Pos) Dist(o Pos) float64 {
	dx := float64(p.X - o.X)
	dy := float64(p.Y - o.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Manhattan is the number of unit moves between two cells on a 4-connected grid.
func (p Pos) Manhattan(o Pos) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Rect is an inclusive rectangle of cells.
type Rect struct {
	Min Pos `json:"min"`
	Max Pos `json:"max"`
}

func (r Rect) Contains(p Pos) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

func (r Rect) Empty() bool { return r.Max.X < r.Min.X || r.Max.Y < r.Min.Y }

func (r Rect) Width() int  { return r.Max.X - r.Min.X + 1 }
func (r Rect) Height() int { return r.Max.Y - r.Min.Y + 1 }

// Cells is the number of lattice points inside r.
func (r Rect) Cells() int {
	if r.Empty() {
		return 0
	}
	return r.Width() * r.Height()
}

// Arena is the drawable area [0,Width]x[0,Height]. Cells on the border are
// not usable by the agent or by items.
type Arena struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Interior reports whether p is strictly inside the arena border.
func (a Arena) Interior(p Pos) bool {
	return p.X > 0 && p.X < a.Width && p.Y > 0 && p.Y < a.Height
}

// InteriorRect is the largest rectangle of interior cells.
func (a Arena) InteriorRect() Rect {
	return Rect{Min: Pos{X: 1, Y: 1}, Max: Pos{X: a.Width - 1, Y: a.Height - 1}}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
