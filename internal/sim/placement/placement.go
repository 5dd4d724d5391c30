// Package placement scatters items over the placement region by rejection
// sampling, keeping every pair of items at least MinSeparation apart.
package placement

import (
	"errors"
	"fmt"
	"math/rand"

	"sortbot.ai/internal/sim/catalogs"
	"sortbot.ai/internal/sim/grid"
	"sortbot.ai/internal/sim/tuning"
)

// ErrPlacementExhausted means no acceptable cell was found within the attempt budget.
var ErrPlacementExhausted = errors.New("placement exhausted")

type Item struct {
	ID       string            `json:"id"`
	Category catalogs.Category `json:"category"`
	Pos      grid.Pos          `json:"pos"`
}

type Generator struct {
	Region        grid.Rect
	MinSeparation float64
	MaxAttempts   int

	rng *rand.Rand
}

// New returns a generator drawing from rng. The caller owns seeding.
func New(region grid.Rect, minSeparation float64, maxAttempts int, rng *rand.Rand) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = tuning.DefaultMaxAttempts
	}
	return &Generator{
		Region:        region,
		MinSeparation: minSeparation,
		MaxAttempts:   maxAttempts,
		rng:           rng,
	}
}

// FromTuning builds a generator seeded with the configured seed.
func FromTuning(t tuning.Tuning) *Generator {
	return New(t.Region(), t.Placement.MinSeparation, t.Placement.MaxAttempts, rand.New(rand.NewSource(t.Seed)))
}

// Capacity is the number of lattice cells candidates are drawn from.
func (g *Generator) Capacity() int { return g.Region.Cells() }

// Next draws candidates until one keeps MinSeparation to every existing item.
func (g *Generator) Next(existing []Item) (grid.Pos, error) {
	if g.Region.Empty() {
		return grid.Pos{}, fmt.Errorf("%w: empty region", ErrPlacementExhausted)
	}
	w, h := g.Region.Width(), g.Region.Height()
	for attempt := 0; attempt < g.MaxAttempts; attempt++ {
		cand := grid.Pos{
			X: g.Region.Min.X + g.rng.Intn(w),
			Y: g.Region.Min.Y + g.rng.Intn(h),
		}
		if g.acceptable(cand, existing) {
			return cand, nil
		}
	}
	return grid.Pos{}, fmt.Errorf("%w: no cell after %d attempts (%d already placed, separation %.2f)",
		ErrPlacementExhausted, g.MaxAttempts, len(existing), g.MinSeparation)
}

func (g *Generator) acceptable(cand grid.Pos, existing []Item) bool {
	for _, it := range existing {
		if cand.Dist(it.Pos) < g.MinSeparation {
			return false
		}
	}
	return true
}

// Place generates the whole roster category by category, in roster order.
// Item IDs are I1..In in generation order.
func (g *Generator) Place(roster []tuning.RosterEntry) ([]Item, error) {
	total := 0
	for _, r := range roster {
		total += r.Count
	}
	// With a positive separation no two items share a cell.
	if g.MinSeparation > 0 && total > g.Capacity() {
		return nil, fmt.Errorf("%w: %d items requested but the region has %d cells",
			ErrPlacementExhausted, total, g.Capacity())
	}

	items := make([]Item, 0, total)
	for _, r := range roster {
		for i := 0; i < r.Count; i++ {
			pos, err := g.Next(items)
			if err != nil {
				return nil, fmt.Errorf("place %s #%d: %w", r.Category, i+1, err)
			}
			items = append(items, Item{
				ID:       fmt.Sprintf("I%d", len(items)+1),
				Category: catalogs.Category(r.Category),
				Pos:      pos,
			})
		}
	}
	return items, nil
}
