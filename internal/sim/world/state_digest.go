package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
)

// genesisDigest covers everything a replay must reproduce before the first
// step: seed, window geometry and what the initial window materialized.
func (w *World) genesisDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteI64(h, &tmp, w.cfg.Seed)
	digestWriteF64(h, &tmp, w.cfg.ViewWidth)
	digestWriteF64(h, &tmp, w.cfg.StartX)
	b := w.window.Bounds()
	digestWriteF64(h, &tmp, b.MinX)
	digestWriteF64(h, &tmp, b.MaxX)
	digestWriteU64(h, &tmp, uint64(w.initialUnits))
	digestCounts(h, &tmp, w.layers.Counts())

	return hex.EncodeToString(h.Sum(nil))
}

// chainDigest folds one step into the running digest, so equal digests at
// step n mean equal histories up to n.
func (w *World) chainDigest(prev string, r StepRecord) string {
	h := sha256.New()
	var tmp [8]byte

	h.Write([]byte(prev))
	digestWriteU64(h, &tmp, r.Step)
	digestWriteF64(h, &tmp, r.ObserverX)
	digestWriteF64(h, &tmp, r.Window.MinX)
	digestWriteF64(h, &tmp, r.Window.MaxX)
	h.Write([]byte{byte(r.Growth.Dir)})
	digestWriteF64(h, &tmp, r.Growth.Range.MinX)
	digestWriteF64(h, &tmp, r.Growth.Range.MaxX)
	digestWriteU64(h, &tmp, uint64(r.Growth.Units))
	h.Write([]byte{boolByte(r.Sweep.Left), boolByte(r.Sweep.Right)})
	digestWriteU64(h, &tmp, uint64(r.Sweep.Evicted))
	digestWriteU64(h, &tmp, uint64(r.Reclaimed))
	digestCounts(h, &tmp, r.Counts)

	return hex.EncodeToString(h.Sum(nil))
}

func digestCounts(h hashWriter, tmp *[8]byte, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		digestWriteU64(h, tmp, uint64(m[k]))
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
