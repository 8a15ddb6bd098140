// Package anim is the small animation substrate leaves run on: one-shot
// delayed callbacks and continuous value transitions, both advanced by the
// owner's simulation clock rather than wall time.
package anim

import (
	"math"
	"sort"
)

type TaskID uint64

type task struct {
	id  TaskID
	due float64
	fn  func()
}

// Scheduler runs one-shot callbacks once the clock passes their due time.
// Accessed only from the owning loop.
type Scheduler struct {
	now    float64
	nextID TaskID
	tasks  []task
}

func (s *Scheduler) Now() float64 { return s.now }

func (s *Scheduler) Pending() int { return len(s.tasks) }

// After schedules fn to run delay seconds from now.
func (s *Scheduler) After(delay float64, fn func()) TaskID {
	if delay < 0 {
		delay = 0
	}
	s.nextID++
	s.tasks = append(s.tasks, task{id: s.nextID, due: s.now + delay, fn: fn})
	return s.nextID
}

func (s *Scheduler) Cancel(id TaskID) bool {
	for i, t := range s.tasks {
		if t.id == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the clock forward and fires due tasks in (due, id) order.
// Tasks scheduled by a firing callback run in the same call if already due.
func (s *Scheduler) Advance(dt float64) int {
	if dt > 0 {
		s.now += dt
	}
	fired := 0
	for {
		idx := -1
		for i, t := range s.tasks {
			if t.due > s.now {
				continue
			}
			if idx < 0 || t.due < s.tasks[idx].due || (t.due == s.tasks[idx].due && t.id < s.tasks[idx].id) {
				idx = i
			}
		}
		if idx < 0 {
			return fired
		}
		t := s.tasks[idx]
		s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
		t.fn()
		fired++
	}
}

// DueTimes returns pending due times in ascending order (debug/tests).
func (s *Scheduler) DueTimes() []float64 {
	out := make([]float64, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.due)
	}
	sort.Float64s(out)
	return out
}

type Interpolator func(t float64) float64

func Linear(t float64) float64 { return t }

func Cubic(t float64) float64 { return t * t * (3 - 2*t) }

type Mode int

const (
	Once Mode = iota
	BackAndForth
)

// Transition moves a value from From to To over Duration seconds.
type Transition struct {
	From, To float64
	Duration float64
	Interp   Interpolator
	Mode     Mode

	elapsed float64
}

func NewTransition(from, to, duration float64, interp Interpolator, mode Mode) *Transition {
	if interp == nil {
		interp = Linear
	}
	return &Transition{From: from, To: to, Duration: duration, Interp: interp, Mode: mode}
}

// Step advances the transition and returns the current value.
func (tr *Transition) Step(dt float64) float64 {
	tr.elapsed += dt
	return tr.Value()
}

func (tr *Transition) Value() float64 {
	if tr.Duration <= 0 {
		return tr.To
	}
	p := tr.elapsed / tr.Duration
	switch tr.Mode {
	case BackAndForth:
		// Triangle wave over two legs: From -> To -> From.
		p = math.Mod(p, 2)
		if p > 1 {
			p = 2 - p
		}
	default:
		if p > 1 {
			p = 1
		}
	}
	return tr.From + (tr.To-tr.From)*tr.Interp(p)
}

func (tr *Transition) Done() bool {
	return tr.Mode == Once && tr.elapsed >= tr.Duration
}
