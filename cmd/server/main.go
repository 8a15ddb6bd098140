package main

import (
	"context"
	"flag"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	persistlog "scrollworld.ai/internal/persistence/log"
	"scrollworld.ai/internal/sim/tuning"
	"scrollworld.ai/internal/sim/world"
	"scrollworld.ai/internal/transport/observer"
)

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:8080", "http listen address")
		worldID     = flag.String("world", "world_1", "world id")
		seed        = flag.Int64("seed", 0, "world seed (0: use tuning seed)")
		configDir   = flag.String("configs", "./configs", "config directory")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		startX      = flag.Float64("start_x", math.NaN(), "initial observer x (default: half the view width)")
		walkSpeed   = flag.Float64("walk", 0, "initial observer speed in units per second")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite step index")
		disableLog  = flag.Bool("disable_step_log", false, "disable the compressed step log")
		statusEvery = flag.Duration("status_every", 30*time.Second, "status log interval (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	cfg := world.ConfigFromTuning(*worldID, tune)
	if !math.IsNaN(*startX) {
		cfg.StartX = *startX
	}
	w, err := world.New(cfg)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	logger.Printf("world=%s run=%s seed=%d vegetation=%s dedup=%v initial_units=%s",
		cfg.ID, w.RunID(), tune.Seed, tune.Vegetation.Mode, tune.DedupOnRegrow, humanize.Comma(int64(w.Header().InitialUnits)))

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	mirror, err := buildArchiveMirror(*dataDir, logger)
	if err != nil {
		logger.Fatalf("archive mirror: %v", err)
	}
	// Closed after the step log so its last segment is still uploaded.
	defer mirror.Close()

	var stepLog *persistlog.StepLogger
	if !*disableLog {
		stepLog = persistlog.NewStepLogger(worldDir)
		if mirror != nil {
			stepLog.OnSegmentClosed(mirror.Enqueue)
			logger.Printf("archiving step log segments")
		}
		defer stepLog.Close()
	}
	switch {
	case stepLog != nil:
		w.SetStepLogger(multiStepLogger{a: stepLog, b: idx})
	case idx != nil:
		w.SetStepLogger(idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if *walkSpeed != 0 {
		w.SetWalkSpeed(*walkSpeed)
	}
	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	if *statusEvery > 0 {
		go logStatus(ctx, logger, w, stepLog, *statusEvery)
	}

	obsSrv := observer.NewServer(w, logger)
	enablePprofHTTP := envBool("SW_ENABLE_PPROF_HTTP", false)
	if !enablePprofHTTP {
		logger.Printf("pprof endpoints disabled (SW_ENABLE_PPROF_HTTP=false)")
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(httpDeps{world: w, obs: obsSrv, idx: idx, stepLog: stepLog, mirror: mirror, pprof: enablePprofHTTP}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	<-worldDone
}

func logStatus(ctx context.Context, logger *log.Logger, w *world.World, stepLog *persistlog.StepLogger, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		m := w.Metrics()
		total := 0
		for _, n := range m.Objects {
			total += n
		}
		var logged string
		if stepLog != nil {
			_, b := stepLog.Stats()
			logged = " step_log=" + humanize.Bytes(b)
		}
		logger.Printf("step=%s x=%.1f window=[%.0f,%.0f) objects=%s evicted=%s observers=%d step_ms=%.3f%s",
			humanize.Comma(int64(m.Step)), m.ObserverX, m.Window.MinX, m.Window.MaxX,
			humanize.Comma(int64(total)), humanize.Comma(int64(m.Evictions)), m.Observers, m.StepMS, logged)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
