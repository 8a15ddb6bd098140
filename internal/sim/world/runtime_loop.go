package world

import (
	"context"
	"time"

	"scrollworld.ai/internal/sim/world/logic/mathx"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.closeObservers()
			return ctx.Err()
		case <-w.stop:
			w.closeObservers()
			return nil
		case x := <-w.move:
			if mathx.Finite(x) {
				w.observerX = x
			}
		case v := <-w.walk:
			if mathx.Finite(v) {
				w.walkSpeed = v
			}
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			// Errors are recorded in metrics; the next tick tries again
			// with whatever position the observer has by then.
			_, _ = w.stepInternal(w.observerX + w.walkSpeed*w.dt)
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// SetObserverX queues a teleport for the running loop. Only the latest
// pending position is kept.
func (w *World) SetObserverX(x float64) { sendLatest(w.move, x) }

// SetWalkSpeed queues a constant observer speed in units per second.
func (w *World) SetWalkSpeed(v float64) { sendLatest(w.walk, v) }

// StepOnce moves the observer to x and advances the world by a single step
// using the same ordering as Run. It is intended for deterministic replays,
// tests and hosts that drive their own frame loop.
func (w *World) StepOnce(x float64) (step uint64, digest string, err error) {
	rec, err := w.stepInternal(x)
	if err != nil {
		return w.step.Load(), w.digest, err
	}
	return rec.Step, rec.Digest, nil
}

// Step is StepOnce returning the full record: growth, sweep and counts.
// Like StepOnce it must not be mixed with a running Run loop.
func (w *World) Step(x float64) (StepRecord, error) {
	return w.stepInternal(x)
}

func sendLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
