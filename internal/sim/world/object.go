package world

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"

	"scrollworld.ai/internal/sim/world/feature/foliage"
)

// ErrInvalidCoordinate is returned for NaN/Inf inputs, reversed ranges and
// non-positive spans. It is a caller error and never retried.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

type Kind uint8

const (
	KindBlock Kind = iota + 1
	KindTrunk
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "BLOCK"
	case KindTrunk:
		return "TRUNK"
	case KindLeaf:
		return "LEAF"
	default:
		return "UNKNOWN"
	}
}

// Category is the registry layer an object lives in.
type Category uint8

const (
	CategoryTerrain Category = iota
	CategoryTrunk
	CategoryFoliage
	CategorySky
	CategoryOverlay

	numCategories
)

// ManagedCategories are the layers the lifecycle sweep scans. Sky and overlay
// objects belong to the host and are never evicted.
var ManagedCategories = []Category{CategoryTerrain, CategoryTrunk, CategoryFoliage}

func (c Category) String() string {
	switch c {
	case CategoryTerrain:
		return "terrain"
	case CategoryTrunk:
		return "trunk"
	case CategoryFoliage:
		return "foliage"
	case CategorySky:
		return "sky"
	case CategoryOverlay:
		return "overlay"
	default:
		return "unknown"
	}
}

// Object is one placed unit. Pos is the top-left corner in screen
// coordinates (y grows downward). Anchor is the grid x of the column whose
// materialization produced the object.
type Object struct {
	ID        uint64
	Kind      Kind
	Pos       mgl64.Vec2
	Size      mgl64.Vec2
	Anchor    float64
	Tint      colorful.Color
	Immovable bool

	// Leaf is set for KindLeaf when leaf life is enabled.
	Leaf *foliage.Leaf
}

// Position returns the current top-left corner; leaves move on their own.
func (o *Object) Position() mgl64.Vec2 {
	if o.Leaf != nil {
		return o.Leaf.Pos()
	}
	return o.Pos
}

func (o *Object) Center() mgl64.Vec2 {
	return o.Position().Add(o.Size.Mul(0.5))
}
