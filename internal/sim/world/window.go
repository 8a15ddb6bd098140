package world

import (
	"fmt"

	"scrollworld.ai/internal/sim/world/logic/mathx"
)

// Bounds is a half-open x-range [MinX, MaxX).
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
}

func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

type Direction int8

const (
	GrowNone Direction = iota
	GrowRight
	GrowLeft
)

func (d Direction) String() string {
	switch d {
	case GrowRight:
		return "RIGHT"
	case GrowLeft:
		return "LEFT"
	default:
		return "NONE"
	}
}

// Growth records one window extension. Dir is GrowNone when the step did
// not grow.
type Growth struct {
	Dir   Direction
	Range Bounds
	Units int
}

// Materializer is satisfied by TerrainStreamer and VegetationPlacer.
type Materializer interface {
	Materialize(minX, maxX float64) (int, error)
}

// WindowController tracks the materialized extent and grows it by one span
// per step toward an approaching observer. Right growth wins when both
// edges are near.
type WindowController struct {
	bounds       Bounds
	addThreshold float64
	terrain      Materializer
	vegetation   Materializer

	// BeforeGrow, when set, runs before a new slice is materialized.
	BeforeGrow func(r Bounds)
}

func NewWindowController(initial Bounds, addThreshold float64, terrain, vegetation Materializer) *WindowController {
	return &WindowController{
		bounds:       initial,
		addThreshold: addThreshold,
		terrain:      terrain,
		vegetation:   vegetation,
	}
}

func (c *WindowController) Bounds() Bounds { return c.bounds }

func (c *WindowController) Step(observedX, viewSpan float64) (Growth, error) {
	if err := checkStep(observedX, viewSpan); err != nil {
		return Growth{}, err
	}
	near := c.addThreshold * viewSpan
	switch {
	case c.bounds.MaxX-observedX < near:
		r := Bounds{MinX: c.bounds.MaxX, MaxX: c.bounds.MaxX + viewSpan}
		n, err := c.grow(r)
		if err != nil {
			return Growth{}, err
		}
		c.bounds.MaxX = r.MaxX
		return Growth{Dir: GrowRight, Range: r, Units: n}, nil
	case observedX-c.bounds.MinX < near:
		r := Bounds{MinX: c.bounds.MinX - viewSpan, MaxX: c.bounds.MinX}
		n, err := c.grow(r)
		if err != nil {
			return Growth{}, err
		}
		c.bounds.MinX = r.MinX
		return Growth{Dir: GrowLeft, Range: r, Units: n}, nil
	}
	return Growth{}, nil
}

// Prime materializes the current bounds; used once for the initial window.
func (c *WindowController) Prime() (int, error) {
	return c.grow(c.bounds)
}

func (c *WindowController) grow(r Bounds) (int, error) {
	if c.BeforeGrow != nil {
		c.BeforeGrow(r)
	}
	a, err := c.terrain.Materialize(r.MinX, r.MaxX)
	if err != nil {
		return a, err
	}
	b, err := c.vegetation.Materialize(r.MinX, r.MaxX)
	return a + b, err
}

func (c *WindowController) shiftMin(d float64) { c.bounds.MinX += d }

func (c *WindowController) shiftMax(d float64) { c.bounds.MaxX += d }

func checkStep(observedX, viewSpan float64) error {
	if !mathx.Finite(observedX, viewSpan) || viewSpan <= 0 {
		return fmt.Errorf("step x=%v span=%v: %w", observedX, viewSpan, ErrInvalidCoordinate)
	}
	return nil
}
