package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"

	"scrollworld.ai/internal/sim/world/logic/mathx"
	"scrollworld.ai/internal/sim/world/logic/tint"
)

// TerrainStreamer turns x-ranges into columns of immovable ground units.
// It does not track what it already produced: materializing an overlapping
// range registers duplicate units.
type TerrainStreamer struct {
	seed      int64
	field     HeightField
	reg       Registry
	blockSize float64
	depth     int

	ground  colorful.Color
	topsoil colorful.Color
	jitter  float64
}

type TerrainParams struct {
	BlockSize   float64
	DepthBlocks int
	Ground      colorful.Color
	Topsoil     colorful.Color
	TintJitter  float64
}

func NewTerrainStreamer(seed int64, field HeightField, reg Registry, p TerrainParams) *TerrainStreamer {
	return &TerrainStreamer{
		seed:      seed,
		field:     field,
		reg:       reg,
		blockSize: p.BlockSize,
		depth:     p.DepthBlocks,
		ground:    p.Ground,
		topsoil:   p.Topsoil,
		jitter:    p.TintJitter,
	}
}

func (t *TerrainStreamer) BlockSize() float64 { return t.blockSize }

// HeightAt is the raw height field value at x.
func (t *TerrainStreamer) HeightAt(x float64) float64 { return t.field.At(x) }

// SurfaceAt is the top edge of the topmost ground unit of x's column.
func (t *TerrainStreamer) SurfaceAt(x float64) float64 {
	return mathx.Snap(t.field.At(x), t.blockSize)
}

// Materialize registers TerrainDepth units for every grid column in
// [minX, maxX) and returns how many it registered.
func (t *TerrainStreamer) Materialize(minX, maxX float64) (int, error) {
	if err := checkColumns("terrain", minX, maxX, t.blockSize); err != nil {
		return 0, err
	}
	n := 0
	forColumns(minX, maxX, t.blockSize, func(k int, x float64) {
		top := t.SurfaceAt(x)
		for i := 0; i < t.depth; i++ {
			base := t.ground
			if i == 0 {
				base = t.topsoil
			}
			t.reg.Register(&Object{
				Kind:      KindBlock,
				Pos:       mgl64.Vec2{x, top + float64(i)*t.blockSize},
				Size:      mgl64.Vec2{t.blockSize, t.blockSize},
				Anchor:    x,
				Tint:      tint.Hashed(base, t.jitter, mathx.Hash2(t.seed, k, i)),
				Immovable: true,
			}, CategoryTerrain)
			n++
		}
	})
	return n, nil
}

func checkRange(what string, minX, maxX float64) error {
	if !mathx.Finite(minX, maxX) || minX > maxX {
		return fmt.Errorf("%s range [%v, %v): %w", what, minX, maxX, ErrInvalidCoordinate)
	}
	return nil
}

// checkColumns is checkRange plus a bound on the grid index: column hashes
// address an int32 lattice.
func checkColumns(what string, minX, maxX, step float64) error {
	if err := checkRange(what, minX, maxX); err != nil {
		return err
	}
	if math.Abs(minX/step) > math.MaxInt32 || math.Abs(maxX/step) > math.MaxInt32 {
		return fmt.Errorf("%s range [%v, %v) beyond column lattice: %w", what, minX, maxX, ErrInvalidCoordinate)
	}
	return nil
}

// forColumns visits grid columns k*step with minX <= k*step < maxX in
// ascending order. Splitting a range at any point visits the same columns.
func forColumns(minX, maxX, step float64, fn func(k int, x float64)) {
	for k := mathx.GridFrom(minX, step); ; k++ {
		x := float64(k) * step
		if x >= maxX || math.IsInf(x, 0) {
			return
		}
		fn(k, x)
	}
}
