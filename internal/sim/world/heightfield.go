package world

import (
	"math"

	"github.com/aquilax/go-perlin"

	"scrollworld.ai/internal/sim/world/logic/mathx"
)

// perlinPeriod is the lattice period of the perlin tables. Folding x into
// one period keeps the table lookups on non-negative arguments.
const perlinPeriod = 256

// HeightField maps x to the ground surface y. It is a pure function of the
// seed and x: octave perlin noise around a base ground level.
type HeightField struct {
	noise       *perlin.Perlin
	groundLevel float64
	amplitude   float64
	wavelength  float64
	norm        float64
}

type HeightParams struct {
	GroundLevel float64
	Amplitude   float64
	Wavelength  float64
	Octaves     int
	Persistence float64
	// Lacunarity is rounded to a whole number so every octave shares the
	// base period.
	Lacunarity float64
}

func NewHeightField(seed int64, p HeightParams) HeightField {
	if p.Octaves <= 0 {
		p.Octaves = 1
	}
	if p.Wavelength <= 0 {
		p.Wavelength = 1
	}
	beta := math.Round(p.Lacunarity)
	if beta < 1 {
		beta = 2
	}
	alpha := 2.0
	if p.Persistence > 0 {
		alpha = 1 / p.Persistence
	}
	// A single octave stays within [-0.5, 0.5]; octave i is scaled by alpha^-i.
	norm, scale := 0.0, 1.0
	for i := 0; i < p.Octaves; i++ {
		norm += scale
		scale /= alpha
	}
	return HeightField{
		noise:       perlin.NewPerlin(alpha, beta, int32(p.Octaves), seed),
		groundLevel: p.GroundLevel,
		amplitude:   p.Amplitude,
		wavelength:  p.Wavelength,
		norm:        norm / 2,
	}
}

// At returns NaN for non-finite x.
func (h HeightField) At(x float64) float64 {
	if !mathx.Finite(x) {
		return math.NaN()
	}
	t := math.Mod(x/h.wavelength, perlinPeriod)
	if t < 0 {
		t += perlinPeriod
	}
	return h.groundLevel + h.amplitude*h.noise.Noise1D(t)/h.norm
}
