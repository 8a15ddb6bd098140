package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid tuning")

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	Seed       int64 `yaml:"seed" json:"seed"`
	TickRateHz int   `yaml:"tick_rate_hz" json:"tick_rate_hz"`

	// View is the visible extent in world units; its width is the window step.
	ViewWidth  float64 `yaml:"view_width" json:"view_width"`
	ViewHeight float64 `yaml:"view_height" json:"view_height"`

	AddThreshold    float64 `yaml:"add_threshold" json:"add_threshold"`
	DeleteThreshold float64 `yaml:"delete_threshold" json:"delete_threshold"`
	DedupOnRegrow   bool    `yaml:"dedup_on_regrow" json:"dedup_on_regrow"`

	Terrain    TerrainTuning    `yaml:"terrain" json:"terrain"`
	Vegetation VegetationTuning `yaml:"vegetation" json:"vegetation"`
	Foliage    FoliageTuning    `yaml:"foliage" json:"foliage"`
}

type TerrainTuning struct {
	BlockSize        float64 `yaml:"block_size" json:"block_size"`
	DepthBlocks      int     `yaml:"depth_blocks" json:"depth_blocks"`
	GroundLevelRatio float64 `yaml:"ground_level_ratio" json:"ground_level_ratio"`
	AmplitudeBlocks  float64 `yaml:"amplitude_blocks" json:"amplitude_blocks"`
	WavelengthBlocks float64 `yaml:"wavelength_blocks" json:"wavelength_blocks"`
	Octaves          int     `yaml:"octaves" json:"octaves"`
	Persistence      float64 `yaml:"persistence" json:"persistence"`
	Lacunarity       float64 `yaml:"lacunarity" json:"lacunarity"`
	GroundColor      string  `yaml:"ground_color" json:"ground_color"`
	TopsoilColor     string  `yaml:"topsoil_color" json:"topsoil_color"`
}

type VegetationTuning struct {
	// Mode is "sequential" (one seeded stream, history dependent) or
	// "positional" (hash of seed and column).
	Mode        string  `yaml:"mode" json:"mode"`
	TreeChance  int     `yaml:"tree_chance" json:"tree_chance"`
	TrunkMin    int     `yaml:"trunk_min" json:"trunk_min"`
	TrunkMax    int     `yaml:"trunk_max" json:"trunk_max"`
	LeafSquare  int     `yaml:"leaf_square" json:"leaf_square"`
	LeafSize    float64 `yaml:"leaf_size" json:"leaf_size"`
	TrunkColor  string  `yaml:"trunk_color" json:"trunk_color"`
	LeafColor   string  `yaml:"leaf_color" json:"leaf_color"`
	TintJitter  float64 `yaml:"tint_jitter" json:"tint_jitter"`
	DisableLife bool    `yaml:"disable_life" json:"disable_life"`
}

// FoliageTuning holds leaf lifecycle timings in seconds.
type FoliageTuning struct {
	SwayAfterMin   float64 `yaml:"sway_after_min" json:"sway_after_min"`
	SwayAfterMax   float64 `yaml:"sway_after_max" json:"sway_after_max"`
	FallAfterMin   float64 `yaml:"fall_after_min" json:"fall_after_min"`
	FallAfterMax   float64 `yaml:"fall_after_max" json:"fall_after_max"`
	FadeOutSeconds float64 `yaml:"fade_out_seconds" json:"fade_out_seconds"`
	DormantMin     float64 `yaml:"dormant_min" json:"dormant_min"`
	DormantMax     float64 `yaml:"dormant_max" json:"dormant_max"`
	FallVelocity   float64 `yaml:"fall_velocity" json:"fall_velocity"`
	DriftVelocity  float64 `yaml:"drift_velocity" json:"drift_velocity"`
	DriftPeriod    float64 `yaml:"drift_period" json:"drift_period"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "0.1",
		Seed:            22,
		TickRateHz:      30,
		ViewWidth:       800,
		ViewHeight:      600,
		AddThreshold:    1,
		DeleteThreshold: 2,
		Terrain: TerrainTuning{
			BlockSize:        30,
			DepthBlocks:      20,
			GroundLevelRatio: 2.0 / 3.0,
			AmplitudeBlocks:  7,
			WavelengthBlocks: 12,
			Octaves:          3,
			Persistence:      0.5,
			Lacunarity:       2,
			GroundColor:      "#d47b4a",
			TopsoilColor:     "#6a9c3c",
		},
		Vegetation: VegetationTuning{
			Mode:       "sequential",
			TreeChance: 15,
			TrunkMin:   6,
			TrunkMax:   14,
			LeafSquare: 2,
			LeafSize:   30,
			TrunkColor: "#643214",
			LeafColor:  "#32c81e",
			TintJitter: 10,
		},
		Foliage: FoliageTuning{
			SwayAfterMin:   3,
			SwayAfterMax:   5,
			FallAfterMin:   10,
			FallAfterMax:   30,
			FadeOutSeconds: 15,
			DormantMin:     2,
			DormantMax:     8,
			FallVelocity:   25,
			DriftVelocity:  40,
			DriftPeriod:    2,
		},
	}
}

// Load reads a YAML tuning file on top of Defaults and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}
	if t.TickRateHz <= 0 {
		return invalid("tick_rate_hz must be positive")
	}
	if t.ViewWidth <= 0 || t.ViewHeight <= 0 {
		return invalid("view dimensions must be positive")
	}
	if t.AddThreshold <= 0 {
		return invalid("add_threshold must be positive")
	}
	if t.DeleteThreshold <= t.AddThreshold {
		return invalid("delete_threshold (%g) must exceed add_threshold (%g)", t.DeleteThreshold, t.AddThreshold)
	}
	tr := t.Terrain
	if tr.BlockSize <= 0 || tr.DepthBlocks <= 0 {
		return invalid("terrain block_size and depth_blocks must be positive")
	}
	if tr.WavelengthBlocks <= 0 || tr.Octaves <= 0 {
		return invalid("terrain wavelength_blocks and octaves must be positive")
	}
	v := t.Vegetation
	switch v.Mode {
	case "sequential", "positional":
	default:
		return invalid("vegetation mode %q", v.Mode)
	}
	if v.TreeChance <= 0 {
		return invalid("vegetation tree_chance must be positive")
	}
	if v.TrunkMin <= 0 || v.TrunkMax <= v.TrunkMin {
		return invalid("vegetation trunk range [%d,%d)", v.TrunkMin, v.TrunkMax)
	}
	if v.LeafSquare < 0 || v.LeafSize <= 0 {
		return invalid("vegetation leaf_square/leaf_size")
	}
	f := t.Foliage
	if f.SwayAfterMax < f.SwayAfterMin || f.FallAfterMax < f.FallAfterMin || f.DormantMax < f.DormantMin {
		return invalid("foliage ranges must be ordered min <= max")
	}
	if f.FadeOutSeconds <= 0 {
		return invalid("foliage fade_out_seconds must be positive")
	}
	return nil
}
