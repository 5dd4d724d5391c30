package tasks

import (
	"errors"
	"fmt"

	"sortbot.ai/internal/sim/catalogs"
	"sortbot.ai/internal/sim/grid"
	"sortbot.ai/internal/sim/placement"
)

var (
	// ErrUnknownCategory is a configuration error: an item category has no bin.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrBadTransition is returned when a status change would skip or regress.
	ErrBadTransition = errors.New("bad task transition")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPickedUp  Status = "PICKED_UP"
	StatusDelivered Status = "DELIVERED"
)

// Task is the pick-up-then-deliver unit of work for one item.
type Task struct {
	ID       string            `json:"id"`
	ItemID   string            `json:"item_id"`
	Category catalogs.Category `json:"category"`
	Pickup   grid.Pos          `json:"pickup"`
	Dropoff  grid.Pos          `json:"dropoff"`
	Status   Status            `json:"status"`
}

// Build turns placed items into tasks, one per item, in generation order.
// There is no reordering by distance: first generated, first served.
func Build(items []placement.Item, bins map[catalogs.Category]grid.Pos) ([]Task, error) {
	out := make([]Task, 0, len(items))
	for i, it := range items {
		bin, ok := bins[it.Category]
		if !ok {
			return nil, fmt.Errorf("%w: %q (item %s)", ErrUnknownCategory, it.Category, it.ID)
		}
		out = append(out, Task{
			ID:       fmt.Sprintf("K%d", i+1),
			ItemID:   it.ID,
			Category: it.Category,
			Pickup:   it.Pos,
			Dropoff:  bin,
			Status:   StatusPending,
		})
	}
	return out, nil
}

func (t *Task) MarkPickedUp() error {
	if t.Status != StatusPending {
		return fmt.Errorf("%w: %s %s -> %s", ErrBadTransition, t.ID, t.Status, StatusPickedUp)
	}
	t.Status = StatusPickedUp
	return nil
}

func (t *Task) MarkDelivered() error {
	if t.Status != StatusPickedUp {
		return fmt.Errorf("%w: %s %s -> %s", ErrBadTransition, t.ID, t.Status, StatusDelivered)
	}
	t.Status = StatusDelivered
	return nil
}
