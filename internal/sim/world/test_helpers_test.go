package world

import (
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"

	"scrollworld.ai/internal/sim/tuning"
	"scrollworld.ai/internal/sim/world/logic/tint"
)

func newTestWorld(t testing.TB, mutate func(cfg *WorldConfig)) *World {
	t.Helper()
	cfg := ConfigFromTuning("test", tuning.Defaults())
	if mutate != nil {
		mutate(&cfg)
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func mustStep(t testing.TB, w *World, x float64) StepRecord {
	t.Helper()
	rec, err := w.stepInternal(x)
	if err != nil {
		t.Fatalf("step x=%v: %v", x, err)
	}
	return rec
}

// walk steps from..to (inclusive) in increments of inc.
func walk(t testing.TB, w *World, from, to, inc float64) []StepRecord {
	t.Helper()
	var out []StepRecord
	if inc == 0 {
		return nil
	}
	for i := 0; ; i++ {
		x := from + float64(i)*inc
		if (inc > 0 && x > to) || (inc < 0 && x < to) {
			return out
		}
		out = append(out, mustStep(t, w, x))
	}
}

type testStreamers struct {
	layers  *Layers
	terrain *TerrainStreamer
	veg     *VegetationPlacer
}

func newTestStreamers(t testing.TB, seed int64, mode string, jitter float64, life *LeafLife) testStreamers {
	t.Helper()
	d := tuning.Defaults()
	cfg := ConfigFromTuning("test", d)
	cfg.Seed = seed
	cfg.Vegetation.Mode = mode

	mustColor := func(hex string) colorful.Color {
		c, err := tint.Parse(hex)
		if err != nil {
			t.Fatalf("color: %v", err)
		}
		return c
	}
	layers := NewLayers()
	terrain := NewTerrainStreamer(seed, NewHeightField(seed, cfg.heightParams()), layers, TerrainParams{
		BlockSize:   d.Terrain.BlockSize,
		DepthBlocks: d.Terrain.DepthBlocks,
		Ground:      mustColor(d.Terrain.GroundColor),
		Topsoil:     mustColor(d.Terrain.TopsoilColor),
		TintJitter:  jitter,
	})
	veg := NewVegetationPlacer(seed, terrain, newPolicy(cfg), layers, VegetationParams{
		LeafSquare: d.Vegetation.LeafSquare,
		LeafSize:   d.Vegetation.LeafSize,
		Trunk:      mustColor(d.Vegetation.TrunkColor),
		Leaf:       mustColor(d.Vegetation.LeafColor),
		TintJitter: jitter,
	}, life)
	return testStreamers{layers: layers, terrain: terrain, veg: veg}
}

type placed struct {
	Kind   Kind
	Pos    mgl64.Vec2
	Anchor float64
}

// layout returns the objects of cat as a sorted, id-free list.
func layout(reg Registry, cat Category) []placed {
	var out []placed
	for _, o := range reg.Objects(cat) {
		out = append(out, placed{Kind: o.Kind, Pos: o.Pos, Anchor: o.Anchor})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pos.X() != b.Pos.X() {
			return a.Pos.X() < b.Pos.X()
		}
		if a.Pos.Y() != b.Pos.Y() {
			return a.Pos.Y() < b.Pos.Y()
		}
		return a.Kind < b.Kind
	})
	return out
}

func samePlacement(a, b []placed) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// trunkColumns maps anchor x to trunk height for every tree in reg.
func trunkColumns(reg Registry) map[float64]int {
	out := map[float64]int{}
	for _, o := range reg.Objects(CategoryTrunk) {
		out[o.Anchor]++
	}
	return out
}

func countAnchor(reg Registry, cat Category, anchor float64) int {
	n := 0
	for _, o := range reg.Objects(cat) {
		if o.Anchor == anchor {
			n++
		}
	}
	return n
}
