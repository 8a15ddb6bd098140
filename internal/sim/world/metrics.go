package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Step uint64 `json:"step"`

	ObserverX float64 `json:"observer_x"`
	WalkSpeed float64 `json:"walk_speed"`
	Window    Bounds  `json:"window"`

	Objects   map[string]int `json:"objects"`
	Observers int            `json:"observers"`

	Growths    uint64 `json:"growths_total"`
	Evictions  uint64 `json:"evictions_total"`
	Reclaims   uint64 `json:"reclaims_total"`
	StepErrors uint64 `json:"step_errors_total"`
	LastError  string `json:"last_error,omitempty"`

	ScheduledTasks int         `json:"scheduled_tasks"`
	QueueDepths    QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
	Digest string  `json:"digest"`
}

type QueueDepths struct {
	Move          int `json:"move"`
	Walk          int `json:"walk"`
	ObserverJoin  int `json:"observer_join"`
	ObserverLeave int `json:"observer_leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(stepMS float64) {
	w.metrics.Store(WorldMetrics{
		Step:           w.step.Load(),
		ObserverX:      w.observerX,
		WalkSpeed:      w.walkSpeed,
		Window:         w.window.Bounds(),
		Objects:        w.layers.Counts(),
		Observers:      len(w.observers),
		Growths:        w.growths,
		Evictions:      w.evictions,
		Reclaims:       w.reclaims,
		StepErrors:     w.stepErrors,
		LastError:      w.lastErr,
		ScheduledTasks: w.sched.Pending(),
		QueueDepths: QueueDepths{
			Move:          len(w.move),
			Walk:          len(w.walk),
			ObserverJoin:  len(w.observerJoin),
			ObserverLeave: len(w.observerLeave),
		},
		StepMS: stepMS,
		Digest: w.digest,
	})
}
