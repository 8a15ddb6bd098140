package world

// Registry is the host's object store: the streamers register into it and
// the lifecycle sweep enumerates and evicts from it.
type Registry interface {
	Register(o *Object, cat Category)
	// Objects returns a snapshot of the category; callers may evict while
	// iterating it.
	Objects(cat Category) []*Object
	Evict(o *Object, cat Category) bool
	Len(cat Category) int
}

// Layers is the in-memory Registry: one slice per category plus an id index
// for O(1) eviction. Not safe for concurrent use; the world loop owns it.
type Layers struct {
	nextID uint64
	layers [numCategories][]*Object
	index  [numCategories]map[uint64]int
}

func NewLayers() *Layers {
	l := &Layers{}
	for i := range l.index {
		l.index[i] = map[uint64]int{}
	}
	return l
}

// Register assigns an id when the object has none.
func (l *Layers) Register(o *Object, cat Category) {
	if o == nil || cat >= numCategories {
		return
	}
	if o.ID == 0 {
		l.nextID++
		o.ID = l.nextID
	} else if o.ID > l.nextID {
		l.nextID = o.ID
	}
	if _, dup := l.index[cat][o.ID]; dup {
		return
	}
	l.index[cat][o.ID] = len(l.layers[cat])
	l.layers[cat] = append(l.layers[cat], o)
}

func (l *Layers) Objects(cat Category) []*Object {
	if cat >= numCategories {
		return nil
	}
	out := make([]*Object, len(l.layers[cat]))
	copy(out, l.layers[cat])
	return out
}

func (l *Layers) Evict(o *Object, cat Category) bool {
	if o == nil || cat >= numCategories {
		return false
	}
	i, ok := l.index[cat][o.ID]
	if !ok {
		return false
	}
	layer := l.layers[cat]
	last := len(layer) - 1
	if i != last {
		layer[i] = layer[last]
		l.index[cat][layer[i].ID] = i
	}
	layer[last] = nil
	l.layers[cat] = layer[:last]
	delete(l.index[cat], o.ID)
	return true
}

func (l *Layers) Len(cat Category) int {
	if cat >= numCategories {
		return 0
	}
	return len(l.layers[cat])
}

// Counts returns per-category sizes keyed by category name.
func (l *Layers) Counts() map[string]int {
	out := make(map[string]int, numCategories)
	for c := Category(0); c < numCategories; c++ {
		out[c.String()] = len(l.layers[c])
	}
	return out
}
