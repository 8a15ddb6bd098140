package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	persistlog "scrollworld.ai/internal/persistence/log"
	"scrollworld.ai/internal/sim/tuning"
	"scrollworld.ai/internal/sim/world"
	"scrollworld.ai/internal/viewer"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "world seed (0: use tuning seed)")
		startX     = flag.Float64("start_x", math.NaN(), "initial observer x")
		stepDir    = flag.String("record", "", "write a replayable step log under this dir")
	)
	flag.Parse()

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	cfg := world.ConfigFromTuning("viewer", tune)
	if !math.IsNaN(*startX) {
		cfg.StartX = *startX
	}
	w, err := world.New(cfg)
	if err != nil {
		log.Fatalf("world: %v", err)
	}
	if *stepDir != "" {
		stepLog := persistlog.NewStepLogger(*stepDir)
		defer stepLog.Close()
		w.SetStepLogger(stepLog)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("screen init: %v", err)
	}
	// Restore the terminal before reporting a crash.
	defer func() {
		if r := recover(); r != nil {
			screen.Fini()
			fmt.Fprintf(os.Stderr, "viewer crashed: %v\n", r)
			os.Exit(1)
		}
	}()
	defer screen.Fini()

	v := viewer.New(screen, w)
	v.Draw()

	hz := cfg.TickRateHz
	if hz <= 0 {
		hz = 30
	}
	dt := 1.0 / float64(hz)
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case ev := <-events:
			if !v.HandleEvent(ev) {
				return
			}
		case <-ticker.C:
			v.Tick(dt)
		}
	}
}
