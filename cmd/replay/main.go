package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	persistlog "scrollworld.ai/internal/persistence/log"
	"scrollworld.ai/internal/sim/world"
)

func main() {
	var (
		stepsDir = flag.String("steps", "", "steps dir containing steps-*.jsonl.zst")
		runID    = flag.String("run", "", "run id to verify (default: first run in the log)")
		toStep   = flag.Uint64("to_step", 0, "stop after step (inclusive, optional)")
	)
	flag.Parse()

	if *stepsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -steps")
		os.Exit(2)
	}

	res, err := verify(*stepsDir, *runID, *toStep)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: run=%s world=%s seed=%d checked=%s steps growths=%s\n",
		res.header.RunID, res.header.WorldID, res.header.Tuning.Seed,
		humanize.Comma(int64(res.checked)), humanize.Comma(int64(res.growths)))
}

type result struct {
	header  world.RunHeader
	checked uint64
	growths uint64
}

var errRunMismatch = errors.New("run mismatch")

// verify rebuilds the world from the first header in dir (or the one with
// runID) and re-drives each logged observer position, comparing digests.
// Entries of other runs sharing the directory are skipped.
func verify(dir, runID string, toStep uint64) (result, error) {
	var (
		res   result
		w     *world.World
		inRun bool
	)
	err := persistlog.ReadSteps(dir, func(e world.StepLogEntry) error {
		if e.Header != nil {
			if w != nil {
				// Next run begins; the one being verified is complete.
				return persistlog.ErrStop
			}
			if runID != "" && e.Header.RunID != runID {
				inRun = false
				return nil
			}
			var err error
			if w, err = world.FromHeader(*e.Header); err != nil {
				return err
			}
			res.header = *e.Header
			inRun = true
		}
		if !inRun {
			return nil
		}
		if toStep != 0 && e.Step > toStep {
			return persistlog.ErrStop
		}
		if e.Step != w.CurrentStep() {
			return fmt.Errorf("step mismatch: want=%d got=%d", w.CurrentStep(), e.Step)
		}
		step, digest, err := w.StepOnce(e.ObserverX)
		if err != nil {
			return fmt.Errorf("step %d: %w", e.Step, err)
		}
		if step != e.Step || digest != e.Digest {
			return fmt.Errorf("digest mismatch at step %d: got=%s want=%s", step, digest, e.Digest)
		}
		res.checked++
		if e.Growth != nil {
			res.growths++
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	if w == nil {
		if runID != "" {
			return res, fmt.Errorf("%w: %s not found in %s", errRunMismatch, runID, dir)
		}
		return res, fmt.Errorf("no run header in %s", dir)
	}
	return res, nil
}
