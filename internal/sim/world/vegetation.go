package world

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"

	"scrollworld.ai/internal/sim/world/feature/foliage"
	"scrollworld.ai/internal/sim/world/logic/anim"
	"scrollworld.ai/internal/sim/world/logic/mathx"
	"scrollworld.ai/internal/sim/world/logic/tint"
)

const (
	VegetationSequential = "sequential"
	VegetationPositional = "positional"
)

// PlacementPolicy decides, once per column in ascending order, whether a
// tree grows there and how many trunk units it gets.
type PlacementPolicy interface {
	Roll(columnX float64) (trunkBlocks int, ok bool)
}

// SequentialPolicy draws from one stream seeded once. A column's outcome
// depends on every draw made before it, so revisiting a range later in the
// session grows different trees.
type SequentialPolicy struct {
	rng      *rand.Rand
	chance   int
	trunkMin int
	trunkMax int
}

func NewSequentialPolicy(seed int64, chance, trunkMin, trunkMax int) *SequentialPolicy {
	return &SequentialPolicy{
		rng:      rand.New(rand.NewSource(seed)),
		chance:   chance,
		trunkMin: trunkMin,
		trunkMax: trunkMax,
	}
}

func (p *SequentialPolicy) Roll(float64) (int, bool) {
	if p.rng.Intn(p.chance) != p.chance-1 {
		return 0, false
	}
	return p.rng.Intn(p.trunkMax-p.trunkMin) + p.trunkMin, true
}

const positionalSalt = 0x5eed7ee5

// PositionalPolicy keys the same 1-in-chance decision on (seed, column), so
// a column always grows the same tree no matter when it is materialized.
type PositionalPolicy struct {
	seed      int64
	blockSize float64
	chance    int
	trunkMin  int
	trunkMax  int
}

func NewPositionalPolicy(seed int64, blockSize float64, chance, trunkMin, trunkMax int) PositionalPolicy {
	return PositionalPolicy{
		seed:      seed ^ positionalSalt,
		blockSize: blockSize,
		chance:    chance,
		trunkMin:  trunkMin,
		trunkMax:  trunkMax,
	}
}

func (p PositionalPolicy) Roll(x float64) (int, bool) {
	k := int(math.Round(x / p.blockSize))
	if mathx.Hash2(p.seed, k, 0)%uint64(p.chance) != uint64(p.chance-1) {
		return 0, false
	}
	span := uint64(p.trunkMax - p.trunkMin)
	return int(mathx.Hash2(p.seed, k, 1)%span) + p.trunkMin, true
}

// LeafLife wires spawned leaves to the shared animation clock. A nil
// LeafLife places static leaves.
type LeafLife struct {
	Sched  *anim.Scheduler
	Params foliage.Params
}

type VegetationParams struct {
	LeafSquare int
	LeafSize   float64
	Trunk      colorful.Color
	Leaf       colorful.Color
	TintJitter float64
}

// VegetationPlacer grows trees over the terrain grid: a trunk stacked up
// from the column surface plus a square leaf cluster around its top.
type VegetationPlacer struct {
	seed    int64
	terrain *TerrainStreamer
	policy  PlacementPolicy
	reg     Registry
	p       VegetationParams
	tints   *rand.Rand
	life    *LeafLife
}

func NewVegetationPlacer(seed int64, terrain *TerrainStreamer, policy PlacementPolicy, reg Registry, p VegetationParams, life *LeafLife) *VegetationPlacer {
	return &VegetationPlacer{
		seed:    seed,
		terrain: terrain,
		policy:  policy,
		reg:     reg,
		p:       p,
		// Tint draws never touch the placement stream.
		tints: rand.New(rand.NewSource(int64(mathx.Hash2(seed, 0, 1)))),
		life:  life,
	}
}

// Materialize rolls every grid column of [minX, maxX) in ascending order and
// returns how many trunk and leaf units it registered.
func (v *VegetationPlacer) Materialize(minX, maxX float64) (int, error) {
	if err := checkColumns("vegetation", minX, maxX, v.terrain.BlockSize()); err != nil {
		return 0, err
	}
	n := 0
	forColumns(minX, maxX, v.terrain.BlockSize(), func(_ int, x float64) {
		trunk, ok := v.policy.Roll(x)
		if !ok {
			return
		}
		n += v.plant(x, trunk)
	})
	return n, nil
}

func (v *VegetationPlacer) plant(x float64, trunk int) int {
	bs := v.terrain.BlockSize()
	base := v.terrain.SurfaceAt(x) - bs
	n := 0
	for i := 0; i < trunk; i++ {
		v.reg.Register(&Object{
			Kind:      KindTrunk,
			Pos:       mgl64.Vec2{x, base - float64(i)*bs},
			Size:      mgl64.Vec2{bs, bs},
			Anchor:    x,
			Tint:      tint.Approximate(v.p.Trunk, v.p.TintJitter, v.tints),
			Immovable: true,
		}, CategoryTrunk)
		n++
	}

	sq := v.p.LeafSquare
	size := mgl64.Vec2{v.p.LeafSize, v.p.LeafSize}
	for r := trunk - sq; r < trunk+sq; r++ {
		for c := -sq; c <= sq; c++ {
			pos := mgl64.Vec2{x + float64(c)*bs, base - float64(r)*bs}
			o := &Object{
				Kind:   KindLeaf,
				Pos:    pos,
				Size:   size,
				Anchor: x,
				Tint:   tint.Approximate(v.p.Leaf, v.p.TintJitter, v.tints),
			}
			if v.life != nil {
				seed := int64(mathx.Hash2(v.seed, int(pos.X()), int(pos.Y())))
				o.Leaf = foliage.New(pos, size, v.life.Params, seed, v.life.Sched, v.terrain.SurfaceAt)
			}
			v.reg.Register(o, CategoryFoliage)
			n++
		}
	}
	return n
}
