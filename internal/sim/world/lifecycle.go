package world

// Sweep records one eviction pass.
type Sweep struct {
	Left    bool // left gate passed; MinX shifted right by one span
	Right   bool // right gate passed; MaxX shifted left by one span
	Evicted int
}

// LifecycleManager evicts managed objects far from the observer and keeps
// the window bounds roughly in step with what was evicted.
//
// The bounds shift is a fixed one-span approximation per gate, not a
// recomputation from the surviving objects.
type LifecycleManager struct {
	reg             Registry
	window          *WindowController
	deleteThreshold float64
	categories      []Category
}

func NewLifecycleManager(reg Registry, window *WindowController, deleteThreshold float64) *LifecycleManager {
	return &LifecycleManager{
		reg:             reg,
		window:          window,
		deleteThreshold: deleteThreshold,
		categories:      ManagedCategories,
	}
}

// Sweep evicts every managed object whose center is strictly farther than
// DeleteThreshold*viewSpan from observedX, on each side whose gate passes.
func (m *LifecycleManager) Sweep(observedX, viewSpan float64) (Sweep, error) {
	if err := checkStep(observedX, viewSpan); err != nil {
		return Sweep{}, err
	}
	far := m.deleteThreshold * viewSpan
	var s Sweep
	b := m.window.Bounds()
	if observedX-b.MinX > far {
		s.Left = true
		s.Evicted += m.evictWhere(func(o *Object) bool { return observedX-o.Center().X() > far })
		m.window.shiftMin(viewSpan)
	}
	if b.MaxX-observedX > far {
		s.Right = true
		s.Evicted += m.evictWhere(func(o *Object) bool { return o.Center().X()-observedX > far })
		m.window.shiftMax(-viewSpan)
	}
	return s, nil
}

// Reclaim evicts managed objects generated by columns in [minX, maxX), so
// the range can be materialized again without duplicates.
func (m *LifecycleManager) Reclaim(minX, maxX float64) (int, error) {
	if err := checkRange("reclaim", minX, maxX); err != nil {
		return 0, err
	}
	return m.evictWhere(func(o *Object) bool { return o.Anchor >= minX && o.Anchor < maxX }), nil
}

func (m *LifecycleManager) evictWhere(match func(o *Object) bool) int {
	n := 0
	for _, cat := range m.categories {
		for _, o := range m.reg.Objects(cat) {
			if !match(o) {
				continue
			}
			if m.reg.Evict(o, cat) {
				if o.Leaf != nil {
					o.Leaf.Detach()
				}
				n++
			}
		}
	}
	return n
}
