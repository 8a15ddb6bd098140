package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"scrollworld.ai/internal/sim/world"
)

// JSONLZstdWriter appends one JSON document per line to zstd-compressed
// files that rotate every UTC hour.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	curPath string
	onClose func(path string)
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	lines   uint64
	bytes   uint64
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	w.bytes += uint64(len(b)) + 1
	return w.w.Flush()
}

// SetOnClose registers fn to run with the path of each file once it is
// complete, either on hourly rotation or on Close.
func (w *JSONLZstdWriter) SetOnClose(fn func(path string)) {
	w.mu.Lock()
	w.onClose = fn
	w.mu.Unlock()
}

// Stats reports lines and uncompressed bytes written since creation.
func (w *JSONLZstdWriter) Stats() (lines, bytes uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines, w.bytes
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	w.curPath = path
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	if w.curPath != "" && w.onClose != nil && err1 == nil {
		w.onClose(w.curPath)
	}
	w.curPath = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// StepLogger writes one compressed JSONL entry per world step under
// <worldDir>/steps.
type StepLogger struct{ w *JSONLZstdWriter }

func NewStepLogger(worldDir string) *StepLogger {
	return &StepLogger{w: NewJSONLZstdWriter(StepDir(worldDir), stepPrefix)}
}

func StepDir(worldDir string) string { return filepath.Join(worldDir, "steps") }

const stepPrefix = "steps"

func (l *StepLogger) WriteStep(v world.StepLogEntry) error { return l.w.Write(v) }
func (l *StepLogger) Close() error                         { return l.w.Close() }

func (l *StepLogger) Stats() (lines, bytes uint64) { return l.w.Stats() }

// OnSegmentClosed registers fn for each finished steps-*.jsonl.zst file.
func (l *StepLogger) OnSegmentClosed(fn func(path string)) { l.w.SetOnClose(fn) }
