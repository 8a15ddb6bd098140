package world

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"

	"scrollworld.ai/internal/sim/world/feature/foliage"
	"scrollworld.ai/internal/sim/world/logic/anim"
	"scrollworld.ai/internal/sim/world/logic/mathx"
	"scrollworld.ai/internal/sim/world/logic/tint"
)

// World owns the streaming pipeline for one observer: window growth, the
// eviction sweep and the leaf clock. All mutation happens on the goroutine
// running Run (or the caller of StepOnce when driven synchronously).
type World struct {
	cfg   WorldConfig
	runID string

	layers  *Layers
	sched   *anim.Scheduler
	terrain *TerrainStreamer
	veg     *VegetationPlacer
	window  *WindowController
	life    *LifecycleManager

	dt        float64
	observerX float64
	walkSpeed float64

	step         atomic.Uint64
	genesis      string
	digest       string
	initialUnits int
	reclaimed    int

	growths    uint64
	evictions  uint64
	reclaims   uint64
	stepErrors uint64
	lastErr    string

	move          chan float64
	walk          chan float64
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}
	stopOnce      sync.Once

	observers map[string]*observerClient

	// Optional (may be nil). Implemented in internal/persistence/*.
	stepLogger    StepLogger
	headerWritten bool

	metrics atomic.Value
}

func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !mathx.Finite(cfg.StartX) {
		return nil, fmt.Errorf("world %s start x=%v: %w", cfg.ID, cfg.StartX, ErrInvalidCoordinate)
	}

	colors := map[string]string{
		"ground":  cfg.Terrain.GroundColor,
		"topsoil": cfg.Terrain.TopsoilColor,
		"trunk":   cfg.Vegetation.TrunkColor,
		"leaf":    cfg.Vegetation.LeafColor,
	}
	parsed := map[string]colorful.Color{}
	for name, hex := range colors {
		c, err := tint.Parse(hex)
		if err != nil {
			return nil, fmt.Errorf("world %s %s color: %w", cfg.ID, name, err)
		}
		parsed[name] = c
	}

	w := &World{
		cfg:           cfg,
		runID:         uuid.NewString(),
		layers:        NewLayers(),
		sched:         &anim.Scheduler{},
		dt:            1 / float64(cfg.TickRateHz),
		observerX:     cfg.StartX,
		move:          make(chan float64, 1),
		walk:          make(chan float64, 1),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}

	field := NewHeightField(cfg.Seed, cfg.heightParams())
	w.terrain = NewTerrainStreamer(cfg.Seed, field, w.layers, TerrainParams{
		BlockSize:   cfg.Terrain.BlockSize,
		DepthBlocks: cfg.Terrain.DepthBlocks,
		Ground:      parsed["ground"],
		Topsoil:     parsed["topsoil"],
		TintJitter:  cfg.Vegetation.TintJitter,
	})

	var leafLife *LeafLife
	if !cfg.Vegetation.DisableLife {
		f := cfg.Foliage
		leafLife = &LeafLife{Sched: w.sched, Params: foliage.Params{
			SwayAfterMin:  f.SwayAfterMin,
			SwayAfterMax:  f.SwayAfterMax,
			FallAfterMin:  f.FallAfterMin,
			FallAfterMax:  f.FallAfterMax,
			FadeOut:       f.FadeOutSeconds,
			DormantMin:    f.DormantMin,
			DormantMax:    f.DormantMax,
			FallVelocity:  f.FallVelocity,
			DriftVelocity: f.DriftVelocity,
			DriftPeriod:   f.DriftPeriod,
		}}
	}
	v := cfg.Vegetation
	w.veg = NewVegetationPlacer(cfg.Seed, w.terrain, newPolicy(cfg), w.layers, VegetationParams{
		LeafSquare: v.LeafSquare,
		LeafSize:   v.LeafSize,
		Trunk:      parsed["trunk"],
		Leaf:       parsed["leaf"],
		TintJitter: v.TintJitter,
	}, leafLife)

	half := cfg.ViewWidth / 2
	w.window = NewWindowController(Bounds{MinX: cfg.StartX - half, MaxX: cfg.StartX + half}, cfg.AddThreshold, w.terrain, w.veg)
	w.life = NewLifecycleManager(w.layers, w.window, cfg.DeleteThreshold)
	if cfg.DedupOnRegrow {
		w.window.BeforeGrow = func(r Bounds) {
			n, _ := w.life.Reclaim(r.MinX, r.MaxX)
			w.reclaimed += n
		}
	}

	n, err := w.window.Prime()
	if err != nil {
		return nil, fmt.Errorf("world %s initial window: %w", cfg.ID, err)
	}
	w.initialUnits = n
	w.reclaimed = 0
	w.genesis = w.genesisDigest()
	w.digest = w.genesis
	w.publishMetrics(0)
	return w, nil
}

func newPolicy(cfg WorldConfig) PlacementPolicy {
	v := cfg.Vegetation
	if v.Mode == VegetationPositional {
		return NewPositionalPolicy(cfg.Seed, cfg.Terrain.BlockSize, v.TreeChance, v.TrunkMin, v.TrunkMax)
	}
	return NewSequentialPolicy(cfg.Seed, v.TreeChance, v.TrunkMin, v.TrunkMax)
}

func (w *World) SetStepLogger(l StepLogger) { w.stepLogger = l }

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func (w *World) CurrentStep() uint64 { return w.step.Load() }

func (w *World) RunID() string { return w.runID }

func (w *World) Config() WorldConfig {
	if w == nil {
		return WorldConfig{}
	}
	return w.cfg
}

// HeightAt is safe from any goroutine: the height field is immutable.
func (w *World) HeightAt(x float64) float64 { return w.terrain.HeightAt(x) }

func (w *World) SurfaceAt(x float64) float64 { return w.terrain.SurfaceAt(x) }

// Header describes the run for step logs and replay.
func (w *World) Header() RunHeader {
	return RunHeader{
		RunID:        w.runID,
		WorldID:      w.cfg.ID,
		StartX:       w.cfg.StartX,
		Tuning:       w.cfg.Tuning(),
		InitialUnits: w.initialUnits,
		Genesis:      w.genesis,
	}
}

// The accessors below read loop-owned state; call them only from the
// goroutine that drives the world.

func (w *World) ObserverX() float64 { return w.observerX }

func (w *World) Bounds() Bounds { return w.window.Bounds() }

func (w *World) Objects(cat Category) []*Object { return w.layers.Objects(cat) }

func (w *World) Counts() map[string]int { return w.layers.Counts() }

func (w *World) Digest() string { return w.digest }

// FromHeader rebuilds the world a step log was recorded from. The new world
// has its own run id; its genesis digest matches h.Genesis when the tuning
// round-tripped intact.
func FromHeader(h RunHeader) (*World, error) {
	cfg := ConfigFromTuning(h.WorldID, h.Tuning)
	cfg.StartX = h.StartX
	w, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if w.genesis != h.Genesis {
		return nil, fmt.Errorf("world %s: genesis mismatch: got=%s want=%s", h.WorldID, w.genesis, h.Genesis)
	}
	return w, nil
}
