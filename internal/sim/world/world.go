package world

import (
	"errors"
	"fmt"
	"log"

	"sortbot.ai/internal/sim/agent"
	"sortbot.ai/internal/sim/catalogs"
	"sortbot.ai/internal/sim/grid"
	"sortbot.ai/internal/sim/placement"
	"sortbot.ai/internal/sim/tasks"
	"sortbot.ai/internal/sim/tuning"
)

// ErrInternal marks a broken consistency check inside the driver, such as a
// pickup while already carrying. It is never retried.
var ErrInternal = errors.New("internal consistency fault")

var errAlreadyRan = errors.New("world: run already started")

// World is a single-threaded sorting run. All state is owned by the goroutine
// calling Run.
type World struct {
	cfg tuning.Tuning
	cat *catalogs.Catalog
	gen *placement.Generator

	agent *agent.State

	// Items are never deleted; remaining[i] flips to false at pickup.
	items     []placement.Item
	remaining []bool
	queue     []tasks.Task
	current   int

	tick       uint64
	seq        uint64
	lastDigest string

	sink   FrameSink
	logger *log.Logger
	ran    bool
}

// New validates cfg and prepares a run seeded with cfg.Seed.
func New(cfg tuning.Tuning) (*World, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cat, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	return &World{
		cfg:     cfg,
		cat:     cat,
		gen:     placement.FromTuning(cfg),
		agent:   agent.New(cfg.Home),
		current: -1,
	}, nil
}

func (w *World) SetSink(s FrameSink)        { w.sink = s }
func (w *World) SetLogger(l *log.Logger)    { w.logger = l }
func (w *World) Config() tuning.Tuning      { return w.cfg }
func (w *World) Catalog() *catalogs.Catalog { return w.cat }
func (w *World) Home() grid.Pos             { return w.cfg.Home }
func (w *World) CurrentTick() uint64        { return w.tick }

// SetGenerator replaces the seeded placement generator. It must be called
// before Run.
func (w *World) SetGenerator(g *placement.Generator) { w.gen = g }

func (w *World) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}

func internalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
