package catalogs

import (
	"testing"

	"sortbot.ai/internal/sim/grid"
)

func TestNew_PaletteSortedAndDigestStable(t *testing.T) {
	a, err := New([]BinDef{
		{Category: "red", Pos: grid.Pos{X: 8, Y: 2}},
		{Category: "green", Pos: grid.Pos{X: 8, Y: 5}},
		{Category: "blue", Pos: grid.Pos{X: 8, Y: 8}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []Category{"blue", "green", "red"}
	for i, c := range want {
		if a.Palette[i] != c || a.Index[c] != uint16(i) {
			t.Fatalf("palette[%d]=%s index=%d", i, a.Palette[i], a.Index[c])
		}
	}

	b, err := New([]BinDef{
		{Category: "blue", Pos: grid.Pos{X: 8, Y: 8}},
		{Category: "red", Pos: grid.Pos{X: 8, Y: 2}},
		{Category: "green", Pos: grid.Pos{X: 8, Y: 5}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Digest != b.Digest {
		t.Fatalf("digest depends on input order: %s vs %s", a.Digest, b.Digest)
	}

	if p, ok := a.Bin("green"); !ok || p != (grid.Pos{X: 8, Y: 5}) {
		t.Fatalf("Bin(green)=%v,%v", p, ok)
	}
	if _, ok := a.Bin("purple"); ok {
		t.Fatalf("Bin(purple) should be missing")
	}
}

func TestNew_Rejects(t *testing.T) {
	cases := map[string][]BinDef{
		"empty category": {{Category: " ", Pos: grid.Pos{X: 1, Y: 1}}},
		"dup category": {
			{Category: "red", Pos: grid.Pos{X: 1, Y: 1}},
			{Category: "red", Pos: grid.Pos{X: 2, Y: 1}},
		},
		"shared pos": {
			{Category: "red", Pos: grid.Pos{X: 1, Y: 1}},
			{Category: "blue", Pos: grid.Pos{X: 1, Y: 1}},
		},
	}
	for name, defs := range cases {
		if _, err := New(defs); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
