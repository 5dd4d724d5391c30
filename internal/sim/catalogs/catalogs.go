package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sortbot.ai/internal/sim/grid"
)

// Category labels an item and selects the bin it must be delivered to.
type Category string

// BinDef is one fixed delivery destination.
type BinDef struct {
	Category Category `json:"category"`
	Pos      grid.Pos `json:"pos"`
}

// Catalog is the immutable category -> bin mapping for a run.
type Catalog struct {
	Palette []Category
	Index   map[Category]uint16
	Bins    map[Category]grid.Pos

	Digest string
}

// New builds a catalog from bin definitions. Categories and bin positions must
// be unique; the palette is sorted so the index is stable across runs.
func New(defs []BinDef) (*Catalog, error) {
	c := &Catalog{
		Bins: make(map[Category]grid.Pos, len(defs)),
	}
	occupied := map[grid.Pos]Category{}
	for _, d := range defs {
		name := Category(strings.TrimSpace(string(d.Category)))
		if name == "" {
			return nil, fmt.Errorf("bins: empty category")
		}
		if _, dup := c.Bins[name]; dup {
			return nil, fmt.Errorf("bins: duplicate category %s", name)
		}
		if other, dup := occupied[d.Pos]; dup {
			return nil, fmt.Errorf("bins: %s and %s share position %s", other, name, d.Pos)
		}
		c.Bins[name] = d.Pos
		occupied[d.Pos] = name
	}

	c.Palette = make([]Category, 0, len(c.Bins))
	for name := range c.Bins {
		c.Palette = append(c.Palette, name)
	}
	sort.Slice(c.Palette, func(i, j int) bool { return c.Palette[i] < c.Palette[j] })

	c.Index = make(map[Category]uint16, len(c.Palette))
	for i, name := range c.Palette {
		c.Index[name] = uint16(i)
	}

	ordered := make([]BinDef, 0, len(c.Palette))
	for _, name := range c.Palette {
		ordered = append(ordered, BinDef{Category: name, Pos: c.Bins[name]})
	}
	raw, _ := json.Marshal(ordered)
	c.Digest = sha256Hex(raw)
	return c, nil
}

// Bin returns the destination for a category.
func (c *Catalog) Bin(name Category) (grid.Pos, bool) {
	if c == nil {
		return grid.Pos{}, false
	}
	p, ok := c.Bins[name]
	return p, ok
}

// Defs lists bins in palette order.
func (c *Catalog) Defs() []BinDef {
	out := make([]BinDef, 0, len(c.Palette))
	for _, name := range c.Palette {
		out = append(out, BinDef{Category: name, Pos: c.Bins[name]})
	}
	return out
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
