package main

import (
	"errors"
	"strings"
	"testing"

	persistlog "scrollworld.ai/internal/persistence/log"
	"scrollworld.ai/internal/sim/tuning"
	"scrollworld.ai/internal/sim/world"
)

type tamperLogger struct {
	l    *persistlog.StepLogger
	at   uint64
	skew float64
}

func (t tamperLogger) WriteStep(e world.StepLogEntry) error {
	if e.Step == t.at {
		e.ObserverX += t.skew
	}
	return t.l.WriteStep(e)
}

func recordRun(t *testing.T, dir string, seed int64, tamperAt uint64) *world.World {
	t.Helper()
	tune := tuning.Defaults()
	tune.Seed = seed
	w, err := world.New(world.ConfigFromTuning("w1", tune))
	if err != nil {
		t.Fatal(err)
	}
	l := persistlog.NewStepLogger(dir)
	if tamperAt == 0 {
		w.SetStepLogger(l)
	} else {
		w.SetStepLogger(tamperLogger{l: l, at: tamperAt, skew: 900})
	}
	for x := 400.0; x < 2600; x += 30 {
		if _, _, err := w.StepOnce(x); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestVerify_MatchesRecordedRun(t *testing.T) {
	dir := t.TempDir()
	w := recordRun(t, dir, 22, 0)
	res, err := verify(persistlog.StepDir(dir), "", 0)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.checked != w.CurrentStep() || res.header.RunID != w.RunID() || res.growths == 0 {
		t.Fatalf("res=%+v", res)
	}

	res, err = verify(persistlog.StepDir(dir), w.RunID(), 10)
	if err != nil || res.checked != 11 {
		t.Fatalf("partial: checked=%d err=%v", res.checked, err)
	}

	if _, err := verify(persistlog.StepDir(dir), "nope", 0); !errors.Is(err, errRunMismatch) {
		t.Fatalf("unknown run: %v", err)
	}
}

func TestVerify_DetectsTamperedPosition(t *testing.T) {
	dir := t.TempDir()
	recordRun(t, dir, 7, 20)
	_, err := verify(persistlog.StepDir(dir), "", 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at step 20") {
		t.Fatalf("err=%v", err)
	}
}
