package world

import (
	"fmt"

	"scrollworld.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	Seed       int64
	TickRateHz int

	// ViewWidth is the visible extent and the window growth step.
	ViewWidth  float64
	ViewHeight float64

	// StartX is the observer's initial x; the first window is centered on it.
	StartX float64

	AddThreshold    float64
	DeleteThreshold float64
	DedupOnRegrow   bool

	Terrain    tuning.TerrainTuning
	Vegetation tuning.VegetationTuning
	Foliage    tuning.FoliageTuning
}

// ConfigFromTuning starts the observer in the middle of the first view, so
// the initial window is [0, ViewWidth).
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:              id,
		Seed:            t.Seed,
		TickRateHz:      t.TickRateHz,
		ViewWidth:       t.ViewWidth,
		ViewHeight:      t.ViewHeight,
		StartX:          t.ViewWidth / 2,
		AddThreshold:    t.AddThreshold,
		DeleteThreshold: t.DeleteThreshold,
		DedupOnRegrow:   t.DedupOnRegrow,
		Terrain:         t.Terrain,
		Vegetation:      t.Vegetation,
		Foliage:         t.Foliage,
	}
}

// Tuning converts back for logging and replay headers.
func (c WorldConfig) Tuning() tuning.Tuning {
	t := tuning.Defaults()
	t.Seed = c.Seed
	t.TickRateHz = c.TickRateHz
	t.ViewWidth = c.ViewWidth
	t.ViewHeight = c.ViewHeight
	t.AddThreshold = c.AddThreshold
	t.DeleteThreshold = c.DeleteThreshold
	t.DedupOnRegrow = c.DedupOnRegrow
	t.Terrain = c.Terrain
	t.Vegetation = c.Vegetation
	t.Foliage = c.Foliage
	return t
}

func (c *WorldConfig) applyDefaults() {
	d := tuning.Defaults()
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.ViewWidth <= 0 {
		c.ViewWidth = d.ViewWidth
	}
	if c.ViewHeight <= 0 {
		c.ViewHeight = d.ViewHeight
	}
	if c.AddThreshold <= 0 {
		c.AddThreshold = d.AddThreshold
	}
	if c.DeleteThreshold <= 0 {
		c.DeleteThreshold = d.DeleteThreshold
	}
	// Sections are all-or-nothing: a zero section takes the defaults.
	if c.Terrain.BlockSize <= 0 {
		c.Terrain = d.Terrain
	}
	if c.Vegetation.TreeChance <= 0 {
		c.Vegetation = d.Vegetation
	}
	if c.Foliage.FadeOutSeconds <= 0 {
		c.Foliage = d.Foliage
	}
}

func (c WorldConfig) validate() error {
	if err := c.Tuning().Validate(); err != nil {
		return fmt.Errorf("world %s: %w", c.ID, err)
	}
	return nil
}

func (c WorldConfig) heightParams() HeightParams {
	bs := c.Terrain.BlockSize
	return HeightParams{
		GroundLevel: c.ViewHeight * c.Terrain.GroundLevelRatio,
		Amplitude:   c.Terrain.AmplitudeBlocks * bs,
		Wavelength:  c.Terrain.WavelengthBlocks * bs,
		Octaves:     c.Terrain.Octaves,
		Persistence: c.Terrain.Persistence,
		Lacunarity:  c.Terrain.Lacunarity,
	}
}
