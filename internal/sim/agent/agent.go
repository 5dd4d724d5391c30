package agent

import (
	"errors"

	"sortbot.ai/internal/sim/catalogs"
	"sortbot.ai/internal/sim/grid"
)

var (
	ErrAlreadyCarrying = errors.New("agent already carrying")
	ErrNothingToDrop   = errors.New("agent has nothing to drop")
)

// State is the agent's position and at most one carried category.
// The empty category means the agent carries nothing.
type State struct {
	pos     grid.Pos
	payload catalogs.Category
}

func New(home grid.Pos) *State { return &State{pos: home} }

func (s *State) Pos() grid.Pos { return s.pos }

// SetPos is the hook used by the motion executor.
func (s *State) SetPos(p grid.Pos) { s.pos = p }

func (s *State) Payload() (catalogs.Category, bool) {
	return s.payload, s.payload != ""
}

func (s *State) PickUp(c catalogs.Category) error {
	if s.payload != "" {
		return ErrAlreadyCarrying
	}
	s.payload = c
	return nil
}

func (s *State) DropOff() (catalogs.Category, error) {
	if s.payload == "" {
		return "", ErrNothingToDrop
	}
	c := s.payload
	s.payload = ""
	return c, nil
}
