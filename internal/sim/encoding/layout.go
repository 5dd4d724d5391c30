// Package encoding packs arena cell maps for observers.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"sortbot.ai/internal/sim/catalogs"
	"sortbot.ai/internal/sim/grid"
)

// Cell ids. A bin cell is CellBin plus the category's palette index.
const (
	CellOpen   uint16 = 0
	CellWall   uint16 = 1
	CellRegion uint16 = 2
	CellHome   uint16 = 3
	CellBin    uint16 = 4
)

// Layout returns the arena as (Width+1)*(Height+1) cell ids, row by row from
// y=0. The border rows and columns are walls.
func Layout(arena grid.Arena, region grid.Rect, home grid.Pos, cat *catalogs.Catalog) []uint16 {
	w, h := arena.Width+1, arena.Height+1
	cells := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := grid.Pos{X: x, Y: y}
			switch {
			case !arena.Interior(p):
				cells[y*w+x] = CellWall
			case region.Contains(p):
				cells[y*w+x] = CellRegion
			}
		}
	}
	if arena.Interior(home) {
		cells[home.Y*w+home.X] = CellHome
	}
	if cat != nil {
		for _, name := range cat.Palette {
			p := cat.Bins[name]
			if arena.Interior(p) {
				cells[p.Y*w+p.X] = CellBin + cat.Index[name]
			}
		}
	}
	return cells
}

// EncodeCells encodes cell ids as base64(varint pairs).
// The pairs are (cell_id, run_len) repeated.
func EncodeCells(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(ids) {
		c := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == c && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(c))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeCells reverses EncodeCells. want is the expected cell count; a stream
// expanding past it is rejected.
func DecodeCells(b64 string, want int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, want)
	for i := 0; i < len(raw); {
		c, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if c > 0xFFFF {
			return nil, fmt.Errorf("cell id too large: %d", c)
		}
		if uint64(len(out))+run > uint64(want) {
			return nil, fmt.Errorf("layout overflows %d cells", want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(c))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("layout has %d cells, want %d", len(out), want)
	}
	return out, nil
}
