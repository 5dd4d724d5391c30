package world

import (
	"errors"

	"sortbot.ai/internal/sim/catalogs"
	"sortbot.ai/internal/sim/grid"
	"sortbot.ai/internal/sim/placement"
	"sortbot.ai/internal/sim/tasks"
)

type FrameKind string

const (
	FrameStart   FrameKind = "START"
	FrameMove    FrameKind = "MOVE"
	FramePickup  FrameKind = "PICKUP"
	FrameDropoff FrameKind = "DROPOFF"
	FrameDone    FrameKind = "DONE"
)

// Frame is a read-only snapshot taken after one atomic state change.
// Slices are copies; sinks may keep them.
type Frame struct {
	Seq     uint64            `json:"seq"`
	Tick    uint64            `json:"tick"`
	Kind    FrameKind         `json:"kind"`
	TaskID  string            `json:"task_id,omitempty"`
	Agent   grid.Pos          `json:"agent"`
	Payload catalogs.Category `json:"payload,omitempty"`

	Remaining []placement.Item  `json:"remaining"`
	Tasks     []tasks.Task      `json:"tasks"`
	Bins      []catalogs.BinDef `json:"bins"`
	Home      grid.Pos          `json:"home"`

	Digest string `json:"digest"`
}

// FrameSink receives frames synchronously. The driver does not advance until
// WriteFrame returns, and an error aborts the run.
type FrameSink interface {
	WriteFrame(f Frame) error
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(f Frame) error

func (fn FrameSinkFunc) WriteFrame(f Frame) error { return fn(f) }

// MultiSink fans a frame out to every sink in order. All sinks see the frame
// even when an earlier one fails; the errors are joined.
type MultiSink []FrameSink

func (m MultiSink) WriteFrame(f Frame) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.WriteFrame(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *World) snapshot(kind FrameKind) Frame {
	f := Frame{
		Seq:       w.seq,
		Tick:      w.tick,
		Kind:      kind,
		Agent:     w.agent.Pos(),
		Remaining: make([]placement.Item, 0, len(w.items)),
		Tasks:     append([]tasks.Task(nil), w.queue...),
		Bins:      w.cat.Defs(),
		Home:      w.cfg.Home,
	}
	if c, ok := w.agent.Payload(); ok {
		f.Payload = c
	}
	if w.current >= 0 && w.current < len(w.queue) {
		f.TaskID = w.queue[w.current].ID
	}
	for i, it := range w.items {
		if w.remaining[i] {
			f.Remaining = append(f.Remaining, it)
		}
	}
	f.Digest = w.stateDigest(kind)
	return f
}
