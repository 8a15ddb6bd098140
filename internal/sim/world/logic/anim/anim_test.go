package anim

import (
	"math"
	"testing"
)

func TestScheduler_FiresInDueOrder(t *testing.T) {
	var s Scheduler
	var order []string
	s.After(2, func() { order = append(order, "b") })
	s.After(1, func() { order = append(order, "a") })
	s.After(5, func() { order = append(order, "c") })

	if n := s.Advance(0.5); n != 0 {
		t.Fatalf("fired %d early", n)
	}
	if n := s.Advance(2); n != 2 {
		t.Fatalf("fired=%d want 2", n)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order=%v", order)
	}
	if s.Pending() != 1 {
		t.Fatalf("pending=%d", s.Pending())
	}
}

func TestScheduler_Cancel(t *testing.T) {
	var s Scheduler
	fired := false
	id := s.After(1, func() { fired = true })
	if !s.Cancel(id) {
		t.Fatalf("cancel failed")
	}
	s.Advance(10)
	if fired {
		t.Fatalf("cancelled task fired")
	}
	if s.Cancel(id) {
		t.Fatalf("double cancel succeeded")
	}
}

func TestScheduler_ChainedZeroDelay(t *testing.T) {
	var s Scheduler
	n := 0
	s.After(1, func() {
		n++
		s.After(0, func() { n++ })
	})
	if fired := s.Advance(1); fired != 2 || n != 2 {
		t.Fatalf("fired=%d n=%d", fired, n)
	}
}

func TestTransition_OnceClamps(t *testing.T) {
	tr := NewTransition(0, 10, 2, Linear, Once)
	if v := tr.Step(1); v != 5 {
		t.Fatalf("mid=%v", v)
	}
	if v := tr.Step(5); v != 10 || !tr.Done() {
		t.Fatalf("end=%v done=%v", v, tr.Done())
	}
}

func TestTransition_BackAndForth(t *testing.T) {
	tr := NewTransition(40, -40, 2, Linear, BackAndForth)
	if v := tr.Step(2); math.Abs(v-(-40)) > 1e-9 {
		t.Fatalf("leg end=%v", v)
	}
	if v := tr.Step(2); math.Abs(v-40) > 1e-9 {
		t.Fatalf("back=%v", v)
	}
	if tr.Done() {
		t.Fatalf("back-and-forth never completes")
	}
	if Cubic(0.5) != 0.5 || Cubic(0) != 0 || Cubic(1) != 1 {
		t.Fatalf("cubic endpoints")
	}
}
