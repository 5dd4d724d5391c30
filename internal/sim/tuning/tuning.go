package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"sortbot.ai/internal/sim/catalogs"
	"sortbot.ai/internal/sim/grid"
)

//go:embed arena.schema.json
var arenaSchemaJSON string

var arenaSchema = jsonschema.MustCompileString("arena.schema.json", arenaSchemaJSON)

// DefaultMaxAttempts bounds rejection sampling per item when the config leaves it unset.
const DefaultMaxAttempts = 10000

type Tuning struct {
	Arena     ArenaSpec     `yaml:"arena" json:"arena"`
	Placement PlacementSpec `yaml:"placement" json:"placement"`
	Bins      []BinSpec     `yaml:"bins" json:"bins"`
	Roster    []RosterEntry `yaml:"roster" json:"roster"`
	Home      grid.Pos      `yaml:"home" json:"home"`
	Seed      int64         `yaml:"seed" json:"seed"`

	Render RenderSpec `yaml:"render" json:"render"`
}

type ArenaSpec struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

type PlacementSpec struct {
	MinX          int     `yaml:"min_x" json:"min_x"`
	MinY          int     `yaml:"min_y" json:"min_y"`
	MaxX          int     `yaml:"max_x" json:"max_x"`
	MaxY          int     `yaml:"max_y" json:"max_y"`
	MinSeparation float64 `yaml:"min_separation" json:"min_separation"`
	MaxAttempts   int     `yaml:"max_attempts" json:"max_attempts"`
}

type BinSpec struct {
	Category string `yaml:"category" json:"category"`
	X        int    `yaml:"x" json:"x"`
	Y        int    `yaml:"y" json:"y"`
}

type RosterEntry struct {
	Category string `yaml:"category" json:"category"`
	Count    int    `yaml:"count" json:"count"`
}

type RenderSpec struct {
	FrameIntervalMs int `yaml:"frame_interval_ms" json:"frame_interval_ms"`
}

// Defaults is the classic three-colour sorting floor.
func Defaults() Tuning {
	return Tuning{
		Arena: ArenaSpec{Width: 10, Height: 10},
		Placement: PlacementSpec{
			MinX: 1, MinY: 1, MaxX: 6, MaxY: 6,
			MinSeparation: 1.0,
			MaxAttempts:   DefaultMaxAttempts,
		},
		Bins: []BinSpec{
			{Category: "red", X: 8, Y: 2},
			{Category: "green", X: 8, Y: 5},
			{Category: "blue", X: 8, Y: 8},
		},
		Roster: []RosterEntry{
			{Category: "red", Count: 3},
			{Category: "green", Count: 3},
			{Category: "blue", Count: 3},
		},
		Home: grid.Pos{X: 1, Y: 1},
		Seed: 1337,
		Render: RenderSpec{
			FrameIntervalMs: 200,
		},
	}
}

// Load reads an arena file on top of Defaults. Keys left out of the file keep
// their default values; lists (bins, roster) are replaced as a whole.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	name := filepath.Base(path)
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// Save writes the effective tuning so a run can be reproduced later.
func Save(path string, t Tuning) error {
	b, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// validateSchema checks the raw YAML document against arena.schema.json. The
// document is round-tripped through JSON so the validator sees JSON types.
func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return arenaSchema.Validate(v)
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	if t.Placement.MaxAttempts <= 0 {
		t.Placement.MaxAttempts = DefaultMaxAttempts
	}
	if t.Render.FrameIntervalMs < 0 {
		t.Render.FrameIntervalMs = 0
	}
	for i := range t.Bins {
		t.Bins[i].Category = strings.TrimSpace(t.Bins[i].Category)
	}
	for i := range t.Roster {
		t.Roster[i].Category = strings.TrimSpace(t.Roster[i].Category)
	}
}

// Validate checks geometry only. A roster category without a bin is accepted
// here and rejected when the task queue is built.
func (t Tuning) Validate() error {
	arena := t.ArenaBounds()
	if arena.Width < 3 || arena.Height < 3 {
		return fmt.Errorf("arena must be at least 3x3, got %dx%d", arena.Width, arena.Height)
	}

	region := t.Region()
	if region.Empty() {
		return fmt.Errorf("placement region %s..%s is empty", region.Min, region.Max)
	}
	if !arena.Interior(region.Min) || !arena.Interior(region.Max) {
		return fmt.Errorf("placement region %s..%s must lie strictly inside the %dx%d arena", region.Min, region.Max, arena.Width, arena.Height)
	}
	if t.Placement.MinSeparation <= 0 {
		return fmt.Errorf("placement min_separation must be > 0")
	}

	cat, err := t.Catalog()
	if err != nil {
		return err
	}
	for _, d := range cat.Defs() {
		if !arena.Interior(d.Pos) {
			return fmt.Errorf("bin %s at %s must lie strictly inside the arena", d.Category, d.Pos)
		}
		if region.Contains(d.Pos) {
			return fmt.Errorf("bin %s at %s overlaps the placement region", d.Category, d.Pos)
		}
	}

	if len(t.Roster) == 0 {
		return fmt.Errorf("roster must not be empty")
	}
	seen := map[string]bool{}
	for _, r := range t.Roster {
		if r.Category == "" {
			return fmt.Errorf("roster: empty category")
		}
		if seen[r.Category] {
			return fmt.Errorf("roster: duplicate category %s", r.Category)
		}
		seen[r.Category] = true
		if r.Count <= 0 {
			return fmt.Errorf("roster: %s count must be > 0", r.Category)
		}
	}

	if !arena.Interior(t.Home) {
		return fmt.Errorf("home %s must lie strictly inside the arena", t.Home)
	}
	return nil
}

func (t Tuning) ArenaBounds() grid.Arena {
	return grid.Arena{Width: t.Arena.Width, Height: t.Arena.Height}
}

func (t Tuning) Region() grid.Rect {
	return grid.Rect{
		Min: grid.Pos{X: t.Placement.MinX, Y: t.Placement.MinY},
		Max: grid.Pos{X: t.Placement.MaxX, Y: t.Placement.MaxY},
	}
}

func (t Tuning) Catalog() (*catalogs.Catalog, error) {
	defs := make([]catalogs.BinDef, 0, len(t.Bins))
	for _, b := range t.Bins {
		defs = append(defs, catalogs.BinDef{
			Category: catalogs.Category(b.Category),
			Pos:      grid.Pos{X: b.X, Y: b.Y},
		})
	}
	return catalogs.New(defs)
}

func (t Tuning) TotalItems() int {
	n := 0
	for _, r := range t.Roster {
		n += r.Count
	}
	return n
}
