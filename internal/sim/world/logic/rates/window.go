package rates

// Window is a fixed-window counter. Now values are monotonic in any unit
// (steps, milliseconds) as long as Size uses the same one.
type Window struct {
	Size uint64
	Max  int

	start uint64
	count int
}

// Allow counts one event at now and reports whether it fits the window. When
// it does not, wait is how long until the window resets.
func (w *Window) Allow(now uint64) (ok bool, wait uint64) {
	if w.Size == 0 || w.Max <= 0 {
		return true, 0
	}
	if now < w.start || now-w.start >= w.Size {
		w.start = now
		w.count = 0
	}
	w.count++
	if w.count <= w.Max {
		return true, 0
	}
	return false, (w.start + w.Size) - now
}
