package world

import (
	"encoding/json"
	"math"
	"sort"

	"scrollworld.ai/internal/observerproto"
)

const (
	observerMaxRadius  = 4000
	observerMaxObjects = 4096
)

type observerClient struct {
	id      string
	stepOut chan []byte
	radius  float64
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if w == nil || req.SessionID == "" || req.StepOut == nil {
		return
	}
	// Replace existing session id if any.
	if old := w.observers[req.SessionID]; old != nil {
		close(old.stepOut)
	}
	w.observers[req.SessionID] = &observerClient{
		id:      req.SessionID,
		stepOut: req.StepOut,
		radius:  clampRadius(req.Radius),
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.radius = clampRadius(req.Radius)
}

func (w *World) handleObserverLeave(sessionID string) {
	if sessionID == "" {
		return
	}
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.stepOut)
}

func (w *World) closeObservers() {
	for id, c := range w.observers {
		delete(w.observers, id)
		close(c.stepOut)
	}
}

func clampRadius(r float64) float64 {
	if math.IsNaN(r) || r <= 0 {
		return 0
	}
	if r > observerMaxRadius {
		return observerMaxRadius
	}
	return r
}

func (w *World) stepObservers(rec StepRecord) {
	if len(w.observers) == 0 {
		return
	}
	msg := observerproto.StepMsg{
		Type:            observerproto.TypeStep,
		ProtocolVersion: observerproto.Version,
		Step:            rec.Step,
		ObserverX:       rec.ObserverX,
		Window:          [2]float64{rec.Window.MinX, rec.Window.MaxX},
		Reclaimed:       rec.Reclaimed,
		Counts:          rec.Counts,
		Digest:          rec.Digest,
	}
	if rec.Growth.Dir != GrowNone {
		msg.Growth = &observerproto.GrowthInfo{
			Dir:   rec.Growth.Dir.String(),
			Range: [2]float64{rec.Growth.Range.MinX, rec.Growth.Range.MaxX},
			Units: rec.Growth.Units,
		}
	}
	if rec.Sweep.Left || rec.Sweep.Right {
		msg.Sweep = &observerproto.SweepInfo{Left: rec.Sweep.Left, Right: rec.Sweep.Right, Evicted: rec.Sweep.Evicted}
	}

	// Clients sharing a radius share one encoding.
	encoded := map[float64][]byte{}
	for _, c := range w.observers {
		b, ok := encoded[c.radius]
		if !ok {
			m := msg
			if c.radius > 0 {
				m.Objects = w.objectsNear(rec.ObserverX, c.radius)
			}
			var err error
			b, err = json.Marshal(m)
			if err != nil {
				continue
			}
			encoded[c.radius] = b
		}
		sendLatest(c.stepOut, b)
	}
}

// objectsNear lists managed objects whose center is within radius of x,
// ordered by id.
func (w *World) objectsNear(x, radius float64) []observerproto.ObjectState {
	var out []observerproto.ObjectState
	for _, cat := range ManagedCategories {
		for _, o := range w.layers.layers[cat] {
			if math.Abs(o.Center().X()-x) > radius {
				continue
			}
			st := observerproto.ObjectState{
				ID:    o.ID,
				Kind:  o.Kind.String(),
				X:     o.Position().X(),
				Y:     o.Position().Y(),
				W:     o.Size.X(),
				H:     o.Size.Y(),
				Color: o.Tint.Hex(),
			}
			if o.Leaf != nil {
				if !o.Leaf.Visible() {
					continue
				}
				st.Opacity = o.Leaf.Opacity()
			}
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > observerMaxObjects {
		out = out[:observerMaxObjects]
	}
	return out
}
