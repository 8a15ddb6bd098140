package tint

import (
	"fmt"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"
)

// Parse reads a "#rrggbb" color.
func Parse(hex string) (colorful.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("tint %q: %w", hex, err)
	}
	return c, nil
}

// Approximate perturbs each RGB channel of base by up to ±jitter (0..255
// scale) using draws from rng, clamped to the valid range.
func Approximate(base colorful.Color, jitter float64, rng *rand.Rand) colorful.Color {
	if jitter <= 0 || rng == nil {
		return base
	}
	j := jitter / 255
	ch := func(v float64) float64 {
		return v + (rng.Float64()*2-1)*j
	}
	return colorful.Color{R: ch(base.R), G: ch(base.G), B: ch(base.B)}.Clamped()
}

// Hashed is Approximate with the offsets taken from the bits of h, so a
// position-keyed hash gives a stable tint without a random stream.
func Hashed(base colorful.Color, jitter float64, h uint64) colorful.Color {
	if jitter <= 0 {
		return base
	}
	j := jitter / 255
	ch := func(v float64, shift uint) float64 {
		u := float64((h>>shift)&(1<<21-1)) / float64(1<<21)
		return v + (u*2-1)*j
	}
	return colorful.Color{R: ch(base.R, 0), G: ch(base.G, 21), B: ch(base.B, 42)}.Clamped()
}
