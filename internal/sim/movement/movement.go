// Package movement is the discrete motion model: one grid cell per tick,
// closing the x gap before touching y.
package movement

import (
	"errors"
	"fmt"

	"sortbot.ai/internal/sim/grid"
)

var errOverrun = errors.New("step budget exceeded")

// Mover is anything with a settable grid position.
type Mover interface {
	Pos() grid.Pos
	SetPos(grid.Pos)
}

// Advance moves cur one unit toward target. Only when the x coordinates
// already match does y move. Advance(p, p) == p.
func Advance(cur, target grid.Pos) grid.Pos {
	next := cur
	if dx := target.X - cur.X; dx != 0 {
		next.X += sign(dx)
		return next
	}
	next.Y += sign(target.Y - cur.Y)
	return next
}

// RunTo steps m until it stands on target, calling onStep after every single
// step. It returns the number of steps taken, which is always the Manhattan
// distance from the starting position. An onStep error stops the walk.
func RunTo(m Mover, target grid.Pos, onStep func() error) (int, error) {
	start := m.Pos()
	budget := start.Manhattan(target)
	steps := 0
	for !m.Pos().Equal(target) {
		if steps >= budget {
			return steps, fmt.Errorf("%w: %s -> %s after %d steps", errOverrun, start, target, steps)
		}
		m.SetPos(Advance(m.Pos(), target))
		steps++
		if onStep != nil {
			if err := onStep(); err != nil {
				return steps, err
			}
		}
	}
	return steps, nil
}

// Path lists the cells visited walking from start to target, excluding start.
func Path(start, target grid.Pos) []grid.Pos {
	out := make([]grid.Pos, 0, start.Manhattan(target))
	for cur := start; !cur.Equal(target); {
		cur = Advance(cur, target)
		out = append(out, cur)
	}
	return out
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
