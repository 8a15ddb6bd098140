package world

import "scrollworld.ai/internal/sim/tuning"

// ObserverJoinRequest registers a read-only observer session. StepOut
// receives one STEP message per step; the world closes it on leave.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	StepOut   chan []byte
	Radius    float64
}

// ObserverSubscribeRequest updates an existing session's object radius.
type ObserverSubscribeRequest struct {
	SessionID string
	Radius    float64
}

// StepRecord is what one step did.
type StepRecord struct {
	Step      uint64
	ObserverX float64
	Window    Bounds
	Growth    Growth
	Sweep     Sweep
	Reclaimed int
	Counts    map[string]int
	Digest    string
}

type StepLogger interface {
	WriteStep(entry StepLogEntry) error
}

// StepLogEntry is the persisted form of a StepRecord. The first entry of a
// run carries the header needed to rebuild the world for replay.
type StepLogEntry struct {
	Step      uint64         `json:"step"`
	ObserverX float64        `json:"observer_x"`
	Window    Bounds         `json:"window"`
	Growth    *GrowthRecord  `json:"growth,omitempty"`
	Sweep     *SweepRecord   `json:"sweep,omitempty"`
	Reclaimed int            `json:"reclaimed,omitempty"`
	Counts    map[string]int `json:"counts"`
	Digest    string         `json:"digest"`

	Header *RunHeader `json:"header,omitempty"`
}

type GrowthRecord struct {
	Dir   string  `json:"dir"`
	MinX  float64 `json:"min_x"`
	MaxX  float64 `json:"max_x"`
	Units int     `json:"units"`
}

type SweepRecord struct {
	Left    bool `json:"left"`
	Right   bool `json:"right"`
	Evicted int  `json:"evicted"`
}

type RunHeader struct {
	RunID        string        `json:"run_id"`
	WorldID      string        `json:"world_id"`
	StartX       float64       `json:"start_x"`
	Tuning       tuning.Tuning `json:"tuning"`
	InitialUnits int           `json:"initial_units"`
	Genesis      string        `json:"genesis"`
}

func (r StepRecord) LogEntry() StepLogEntry {
	e := StepLogEntry{
		Step:      r.Step,
		ObserverX: r.ObserverX,
		Window:    r.Window,
		Reclaimed: r.Reclaimed,
		Counts:    r.Counts,
		Digest:    r.Digest,
	}
	if r.Growth.Dir != GrowNone {
		e.Growth = &GrowthRecord{
			Dir:   r.Growth.Dir.String(),
			MinX:  r.Growth.Range.MinX,
			MaxX:  r.Growth.Range.MaxX,
			Units: r.Growth.Units,
		}
	}
	if r.Sweep.Left || r.Sweep.Right {
		e.Sweep = &SweepRecord{Left: r.Sweep.Left, Right: r.Sweep.Right, Evicted: r.Sweep.Evicted}
	}
	return e
}
