package world

import (
	"time"
)

// stepInternal runs one step in strict order: window growth, eviction
// sweep, leaf clock, then digest/log/observer/metrics publication. A
// precondition failure aborts the step before anything is mutated.
func (w *World) stepInternal(x float64) (StepRecord, error) {
	stepStart := time.Now()
	nowStep := w.step.Load()
	span := w.cfg.ViewWidth

	if err := checkStep(x, span); err != nil {
		w.recordError(err)
		return StepRecord{}, err
	}
	w.observerX = x
	w.reclaimed = 0

	growth, err := w.window.Step(x, span)
	if err != nil {
		w.recordError(err)
		return StepRecord{}, err
	}
	sweep, err := w.life.Sweep(x, span)
	if err != nil {
		w.recordError(err)
		return StepRecord{}, err
	}

	w.sched.Advance(w.dt)
	for _, o := range w.layers.layers[CategoryFoliage] {
		if o.Leaf != nil {
			o.Leaf.Update(w.dt)
		}
	}

	if growth.Dir != GrowNone {
		w.growths++
	}
	w.evictions += uint64(sweep.Evicted)
	w.reclaims += uint64(w.reclaimed)

	rec := StepRecord{
		Step:      nowStep,
		ObserverX: x,
		Window:    w.window.Bounds(),
		Growth:    growth,
		Sweep:     sweep,
		Reclaimed: w.reclaimed,
		Counts:    w.layers.Counts(),
	}
	w.digest = w.chainDigest(w.digest, rec)
	rec.Digest = w.digest

	if w.stepLogger != nil {
		entry := rec.LogEntry()
		if !w.headerWritten {
			h := w.Header()
			entry.Header = &h
			w.headerWritten = true
		}
		_ = w.stepLogger.WriteStep(entry)
	}

	w.stepObservers(rec)

	w.step.Add(1)
	w.publishMetrics(float64(time.Since(stepStart).Microseconds()) / 1000.0)
	return rec, nil
}

func (w *World) recordError(err error) {
	w.stepErrors++
	w.lastErr = err.Error()
	w.publishMetrics(0)
}
