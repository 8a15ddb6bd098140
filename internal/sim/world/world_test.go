package world

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"scrollworld.ai/internal/observerproto"
	"scrollworld.ai/internal/sim/tuning"
)

func TestWorld_InitialWindow(t *testing.T) {
	w := newTestWorld(t, nil)
	if w.Bounds() != (Bounds{MinX: 0, MaxX: 800}) {
		t.Fatalf("bounds=%v", w.Bounds())
	}
	if got := w.Counts()["terrain"]; got != 27*20 {
		t.Fatalf("terrain units=%d", got)
	}
	if w.CurrentStep() != 0 || w.Digest() == "" {
		t.Fatalf("step=%d digest=%q", w.CurrentStep(), w.Digest())
	}
}

// Walking 400 -> 1300 crosses the right threshold once for [800,1600); the
// terrain that slice produces matches height queries made before it existed.
func TestWorld_EndToEndSeed22(t *testing.T) {
	w := newTestWorld(t, nil)
	surface840 := w.SurfaceAt(840)
	height850 := w.HeightAt(850)

	recs := walk(t, w, 400, 1300, 10)

	var growths []Growth
	for _, r := range recs {
		if r.Growth.Dir != GrowNone {
			growths = append(growths, r.Growth)
		}
	}
	if len(growths) == 0 || growths[0].Dir != GrowRight || growths[0].Range != (Bounds{800, 1600}) {
		t.Fatalf("first growth=%+v", growths)
	}
	if recs[0].Growth.Dir != GrowRight {
		t.Fatalf("x=400 should grow right immediately, got %v", recs[0].Growth.Dir)
	}
	seen := map[Bounds]int{}
	for _, g := range growths {
		seen[g.Range]++
		if seen[g.Range] > 1 {
			t.Fatalf("range %v materialized twice", g.Range)
		}
	}
	if seen[Bounds{800, 1600}] != 1 {
		t.Fatalf("right growth [800,1600) count=%d", seen[Bounds{800, 1600}])
	}

	if got := w.HeightAt(850); got != height850 {
		t.Fatalf("heightAt(850) changed: %v -> %v", height850, got)
	}
	top := math.Inf(1)
	for _, o := range w.Objects(CategoryTerrain) {
		if o.Anchor == 840 && o.Pos.Y() < top {
			top = o.Pos.Y()
		}
	}
	if top != surface840 {
		t.Fatalf("column 840 top=%v, surface queried before growth=%v", top, surface840)
	}
}

func TestWorld_HeightAtIdempotentAcrossGrowthAndEviction(t *testing.T) {
	w := newTestWorld(t, nil)
	before := w.HeightAt(1234.5)
	recs := walk(t, w, 400, 5000, 20)
	evicted := 0
	for _, r := range recs {
		evicted += r.Sweep.Evicted
	}
	if evicted == 0 {
		t.Fatalf("walk never evicted anything")
	}
	if after := w.HeightAt(1234.5); after != before {
		t.Fatalf("heightAt(1234.5): %v -> %v", before, after)
	}
}

func TestWorld_NeverGrowsTwiceOrEvictsNear(t *testing.T) {
	w := newTestWorld(t, nil)
	span := w.Config().ViewWidth
	far := w.Config().DeleteThreshold * span
	xs := []float64{}
	for x := 400.0; x <= 4000; x += 15 {
		xs = append(xs, x)
	}
	for x := 4000.0; x >= -4000; x -= 25 {
		xs = append(xs, x)
	}
	for _, x := range xs {
		near := map[uint64]bool{}
		for _, cat := range ManagedCategories {
			for _, o := range w.Objects(cat) {
				if math.Abs(o.Center().X()-x) <= far {
					near[o.ID] = true
				}
			}
		}
		mustStep(t, w, x)
		alive := map[uint64]bool{}
		for _, cat := range ManagedCategories {
			for _, o := range w.Objects(cat) {
				alive[o.ID] = true
			}
		}
		for id := range near {
			if !alive[id] {
				t.Fatalf("x=%v evicted object %d within threshold", x, id)
			}
		}
	}
}

// Every grid column of the visible range has terrain while the observer
// walks at a bounded speed, even though eviction only approximates bounds.
func TestWorld_VisibleRangeAlwaysCovered(t *testing.T) {
	w := newTestWorld(t, func(cfg *WorldConfig) { cfg.Vegetation.DisableLife = true })
	half := w.Config().ViewWidth / 2
	check := func(x float64) {
		cols := map[float64]bool{}
		for _, o := range w.Objects(CategoryTerrain) {
			cols[o.Anchor] = true
		}
		forColumns(x-half, x+half, 30, func(_ int, cx float64) {
			if !cols[cx] {
				t.Fatalf("x=%v: visible column %v has no terrain (window %v)", x, cx, w.Bounds())
			}
		})
	}
	for x := 400.0; x <= 6000; x += 10 {
		mustStep(t, w, x)
		check(x)
	}
	for x := 6000.0; x >= -6000; x -= 10 {
		mustStep(t, w, x)
		check(x)
	}
}

// Turning around right after a left sweep regrows a slice whose terrain
// was never evicted: faithful bookkeeping duplicates it, dedup does not.
func TestWorld_DuplicateMaterializationOnTurnaround(t *testing.T) {
	run := func(dedup bool) (*World, StepRecord) {
		w := newTestWorld(t, func(cfg *WorldConfig) { cfg.DedupOnRegrow = dedup })
		walk(t, w, 400, 1610, 10)
		mustStep(t, w, 1600)
		return w, mustStep(t, w, 1590)
	}

	w, last := run(false)
	if last.Growth.Dir != GrowLeft || last.Growth.Range != (Bounds{0, 800}) {
		t.Fatalf("expected left regrowth of [0,800), got %+v", last.Growth)
	}
	depth := w.Config().Terrain.DepthBlocks
	if got := countAnchor(w.layers, CategoryTerrain, 300); got != 2*depth {
		t.Fatalf("faithful: column 300 has %d units, want duplicated %d", got, 2*depth)
	}

	w, last = run(true)
	if got := countAnchor(w.layers, CategoryTerrain, 300); got != depth {
		t.Fatalf("dedup: column 300 has %d units, want %d", got, depth)
	}
	if last.Reclaimed == 0 || w.Metrics().Reclaims == 0 {
		t.Fatalf("dedup reclaimed nothing: %+v", last)
	}
}

func TestWorld_DeterministicDigests(t *testing.T) {
	a := newTestWorld(t, nil)
	b := newTestWorld(t, nil)
	if a.RunID() == b.RunID() {
		t.Fatalf("run ids should differ")
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("genesis differs")
	}
	for x := 400.0; x < 3000; x += 37 {
		sa, da, err := a.StepOnce(x)
		if err != nil {
			t.Fatal(err)
		}
		sb, db, err := b.StepOnce(x)
		if err != nil {
			t.Fatal(err)
		}
		if sa != sb || da != db {
			t.Fatalf("x=%v: step %d/%d digest %s/%s", x, sa, sb, da, db)
		}
	}

	c := newTestWorld(t, func(cfg *WorldConfig) { cfg.Seed = 23 })
	if c.Digest() == a.Header().Genesis {
		t.Fatalf("different seed, same genesis")
	}
}

func TestWorld_InvalidStep(t *testing.T) {
	w := newTestWorld(t, nil)
	digest := w.Digest()
	for _, x := range []float64{math.NaN(), math.Inf(1)} {
		step, d, err := w.StepOnce(x)
		if !errors.Is(err, ErrInvalidCoordinate) {
			t.Fatalf("x=%v err=%v", x, err)
		}
		if step != 0 || d != digest {
			t.Fatalf("failed step advanced state: step=%d", step)
		}
	}
	m := w.Metrics()
	if m.StepErrors != 2 || m.LastError == "" {
		t.Fatalf("metrics=%+v", m)
	}
	if _, err := New(WorldConfig{StartX: math.NaN()}); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("New with NaN start: %v", err)
	}
	if _, err := New(WorldConfig{AddThreshold: 2, DeleteThreshold: 1}); !errors.Is(err, tuning.ErrInvalid) {
		t.Fatalf("New with delete<=add: %v", err)
	}
}

type memStepLog struct{ entries []StepLogEntry }

func (m *memStepLog) WriteStep(e StepLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func TestWorld_StepLogReplays(t *testing.T) {
	w := newTestWorld(t, func(cfg *WorldConfig) { cfg.Vegetation.Mode = VegetationPositional })
	logs := &memStepLog{}
	w.SetStepLogger(logs)
	walk(t, w, 400, 2500, 45)
	walk(t, w, 2500, -500, -60)

	if len(logs.entries) == 0 || logs.entries[0].Header == nil {
		t.Fatalf("first entry has no header")
	}
	for _, e := range logs.entries[1:] {
		if e.Header != nil {
			t.Fatalf("header repeated at step %d", e.Step)
		}
	}
	r, err := FromHeader(*logs.entries[0].Header)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range logs.entries {
		step, digest, err := r.StepOnce(e.ObserverX)
		if err != nil {
			t.Fatal(err)
		}
		if step != e.Step || digest != e.Digest {
			t.Fatalf("replay diverged at step %d", e.Step)
		}
	}
}

func TestWorld_ObserverReceivesSteps(t *testing.T) {
	w := newTestWorld(t, nil)
	out := make(chan []byte, 4)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", StepOut: out, Radius: 200})
	mustStep(t, w, 400)

	var msg observerproto.StepMsg
	if err := json.Unmarshal(<-out, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != observerproto.TypeStep || msg.Step != 0 || msg.Growth == nil || msg.Growth.Dir != "RIGHT" {
		t.Fatalf("msg=%+v", msg)
	}
	if len(msg.Objects) == 0 || msg.Counts["terrain"] == 0 {
		t.Fatalf("objects=%d counts=%v", len(msg.Objects), msg.Counts)
	}
	for _, o := range msg.Objects {
		if math.Abs(o.X+o.W/2-400) > 200+1e-9 && o.Kind != "LEAF" {
			t.Fatalf("object outside radius: %+v", o)
		}
	}

	w.handleObserverSubscribe(ObserverSubscribeRequest{SessionID: "O1", Radius: 0})
	mustStep(t, w, 410)
	msg = observerproto.StepMsg{}
	if err := json.Unmarshal(<-out, &msg); err != nil {
		t.Fatal(err)
	}
	if len(msg.Objects) != 0 {
		t.Fatalf("radius 0 should send counts only")
	}

	w.handleObserverLeave("O1")
	if _, ok := <-out; ok {
		t.Fatalf("channel not closed on leave")
	}
}

func TestWorld_RunLoopWalks(t *testing.T) {
	w := newTestWorld(t, func(cfg *WorldConfig) { cfg.TickRateHz = 200 })
	w.SetWalkSpeed(3000)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: %v", err)
	}
	m := w.Metrics()
	if m.Step == 0 || m.ObserverX <= 400 {
		t.Fatalf("metrics=%+v", m)
	}
	if m.Growths == 0 {
		t.Fatalf("walking world never grew")
	}
}

func TestWorld_StopEndsRun(t *testing.T) {
	w := newTestWorld(t, nil)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	w.SetObserverX(2000)
	w.Stop()
	w.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestWorld_SnapshotClipsAndOrders(t *testing.T) {
	w := newTestWorld(t, nil)
	walk(t, w, 400, 700, 10)
	f := w.Snapshot(0, 800)
	if f.Step != w.CurrentStep() || f.ObserverX != 700 || f.View.X() != 800 {
		t.Fatalf("frame header %+v", f)
	}
	if len(f.Objects) == 0 {
		t.Fatalf("empty frame")
	}
	last := CategoryTerrain
	for _, o := range f.Objects {
		if o.Category < last {
			t.Fatalf("categories out of draw order")
		}
		last = o.Category
		if o.Pos.X()+o.Size.X() <= 0 || o.Pos.X() >= 800 {
			t.Fatalf("object outside clip: %v", o.Pos)
		}
	}
	if n := len(w.Snapshot(1e6, 1e6+10).Objects); n != 0 {
		t.Fatalf("far clip returned %d objects", n)
	}
}
