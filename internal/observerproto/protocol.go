package observerproto

import (
	"sortbot.ai/internal/sim/catalogs"
	"sortbot.ai/internal/sim/grid"
	"sortbot.ai/internal/sim/movement"
	"sortbot.ai/internal/sim/placement"
	"sortbot.ai/internal/sim/tasks"
	"sortbot.ai/internal/sim/world"
)

// Version is the observer protocol version.
const Version = "0.1"

const TypeFrame = "FRAME"

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string            `json:"protocol_version"`
	RunID           string            `json:"run_id"`
	Arena           ArenaParams       `json:"arena"`
	Bins            []catalogs.BinDef `json:"bins"`
	Home            grid.Pos          `json:"home"`
	Seed            int64             `json:"seed"`
	FrameIntervalMs int               `json:"frame_interval_ms"`

	// Layout is the encoding.EncodeCells form of the arena cell map,
	// (width+1)*(height+1) cells row by row from y=0.
	Layout string `json:"layout"`
}

type ArenaParams struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Region grid.Rect `json:"region"`
}

// Server -> Client. Sent for every frame the driver emits.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`

	Seq     uint64            `json:"seq"`
	Tick    uint64            `json:"tick"`
	Kind    string            `json:"kind"`
	TaskID  string            `json:"task_id,omitempty"`
	Agent   grid.Pos          `json:"agent"`
	Payload catalogs.Category `json:"payload,omitempty"`

	Remaining []placement.Item `json:"remaining"`
	Tasks     []tasks.Task     `json:"tasks"`

	// NextLeg previews the cells of the agent's current leg, when one is known.
	NextLeg []grid.Pos `json:"next_leg,omitempty"`

	Digest string `json:"digest"`
}

// FromFrame converts a driver frame to its wire message.
func FromFrame(runID string, f world.Frame) FrameMsg {
	return FrameMsg{
		Type:            TypeFrame,
		ProtocolVersion: Version,
		RunID:           runID,
		Seq:             f.Seq,
		Tick:            f.Tick,
		Kind:            string(f.Kind),
		TaskID:          f.TaskID,
		Agent:           f.Agent,
		Payload:         f.Payload,
		Remaining:       f.Remaining,
		Tasks:           f.Tasks,
		NextLeg:         nextLeg(f),
		Digest:          f.Digest,
	}
}

func nextLeg(f world.Frame) []grid.Pos {
	if f.Kind == world.FrameDone {
		return nil
	}
	target, ok := f.Home, true
	if f.TaskID != "" {
		ok = false
		for _, t := range f.Tasks {
			if t.ID != f.TaskID {
				continue
			}
			switch t.Status {
			case tasks.StatusPending:
				target, ok = t.Pickup, true
			case tasks.StatusPickedUp:
				target, ok = t.Dropoff, true
			}
		}
	} else if f.Kind == world.FrameStart && len(f.Tasks) > 0 {
		target = f.Tasks[0].Pickup
	}
	if !ok {
		return nil
	}
	return movement.Path(f.Agent, target)
}

const TypeSubscribe = "SUBSCRIBE"

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}
