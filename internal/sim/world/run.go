package world

import (
	"context"
	"fmt"

	"sortbot.ai/internal/sim/grid"
	"sortbot.ai/internal/sim/movement"
	"sortbot.ai/internal/sim/tasks"
)

type RunStatus string

const (
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
	RunCanceled  RunStatus = "CANCELED"
)

// Result summarizes a run. On error it holds whatever was reached.
type Result struct {
	Status      RunStatus `json:"status"`
	Items       int       `json:"items"`
	Delivered   int       `json:"delivered"`
	Steps       uint64    `json:"steps"`
	Frames      uint64    `json:"frames"`
	FinalDigest string    `json:"final_digest"`

	PickupSteps  int `json:"pickup_steps"`
	DropoffSteps int `json:"dropoff_steps"`
	HomeSteps    int `json:"home_steps"`
}

// Run places the items, builds the queue and works through it, then walks the
// agent home. Placement and queue errors are returned before any frame is
// emitted. Run may be called once.
func (w *World) Run(ctx context.Context) (res Result, err error) {
	if w.ran {
		return Result{Status: RunFailed}, errAlreadyRan
	}
	w.ran = true

	defer func() {
		res.Steps = w.tick
		res.Frames = w.seq
		res.FinalDigest = w.lastDigest
		switch {
		case err == nil:
			res.Status = RunCompleted
		case ctx.Err() != nil:
			res.Status = RunCanceled
		default:
			res.Status = RunFailed
		}
	}()

	items, err := w.gen.Place(w.cfg.Roster)
	if err != nil {
		return res, fmt.Errorf("placement: %w", err)
	}
	queue, err := tasks.Build(items, w.cat.Bins)
	if err != nil {
		return res, fmt.Errorf("tasks: %w", err)
	}
	w.items = items
	w.remaining = make([]bool, len(items))
	for i := range w.remaining {
		w.remaining[i] = true
	}
	w.queue = queue
	res.Items = len(items)

	index := make(map[string]int, len(items))
	for i, it := range items {
		index[it.ID] = i
	}

	if err := w.emit(ctx, FrameStart); err != nil {
		return res, err
	}

	for i := range w.queue {
		w.current = i
		t := &w.queue[i]

		n, err := w.runTo(ctx, t.Pickup)
		res.PickupSteps += n
		if err != nil {
			return res, err
		}
		if err := w.agent.PickUp(t.Category); err != nil {
			return res, internalf("pickup %s: %v", t.ID, err)
		}
		if err := t.MarkPickedUp(); err != nil {
			return res, internalf("%v", err)
		}
		idx, ok := index[t.ItemID]
		if !ok || !w.remaining[idx] {
			return res, internalf("item %s already collected", t.ItemID)
		}
		w.remaining[idx] = false
		w.logf("picked up %s item %s at %s", t.Category, t.ItemID, t.Pickup)
		if err := w.emit(ctx, FramePickup); err != nil {
			return res, err
		}

		n, err = w.runTo(ctx, t.Dropoff)
		res.DropoffSteps += n
		if err != nil {
			return res, err
		}
		got, err := w.agent.DropOff()
		if err != nil {
			return res, internalf("dropoff %s: %v", t.ID, err)
		}
		if got != t.Category {
			return res, internalf("dropoff %s: carried %s into %s bin", t.ID, got, t.Category)
		}
		if err := t.MarkDelivered(); err != nil {
			return res, internalf("%v", err)
		}
		res.Delivered++
		w.logf("dropped %s item %s in %s bin", t.Category, t.ItemID, t.Category)
		if err := w.emit(ctx, FrameDropoff); err != nil {
			return res, err
		}
	}
	w.current = -1
	w.logf("all %d items sorted, returning home to %s", res.Delivered, w.cfg.Home)

	n, err := w.runTo(ctx, w.cfg.Home)
	res.HomeSteps = n
	if err != nil {
		return res, err
	}
	if err := w.emit(ctx, FrameDone); err != nil {
		return res, err
	}
	w.logf("run complete: steps=%d frames=%d", w.tick, w.seq)
	return res, nil
}

func (w *World) runTo(ctx context.Context, target grid.Pos) (int, error) {
	return movement.RunTo(w.agent, target, func() error {
		w.tick++
		return w.emit(ctx, FrameMove)
	})
}

// emit stops at cancellation points between frames.
func (w *World) emit(ctx context.Context, kind FrameKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := w.snapshot(kind)
	w.seq++
	w.lastDigest = f.Digest
	if w.sink == nil {
		return nil
	}
	if err := w.sink.WriteFrame(f); err != nil {
		return fmt.Errorf("frame %d: %w", f.Seq, err)
	}
	return nil
}
