package main

import (
	"context"
	"time"

	"sortbot.ai/internal/sim/world"
)

// pacedSink holds each frame for interval before handing it on, so live
// observers can follow the run. Cancellation cuts the wait short.
type pacedSink struct {
	ctx      context.Context
	next     world.FrameSink
	interval time.Duration
}

func newPacedSink(ctx context.Context, next world.FrameSink, interval time.Duration) world.FrameSink {
	if interval <= 0 {
		return next
	}
	return &pacedSink{ctx: ctx, next: next, interval: interval}
}

func (p *pacedSink) WriteFrame(f world.Frame) error {
	if err := p.next.WriteFrame(f); err != nil {
		return err
	}
	t := time.NewTimer(p.interval)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}
