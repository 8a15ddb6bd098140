package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	persistlog "scrollworld.ai/internal/persistence/log"
	"scrollworld.ai/internal/protocol"
	"scrollworld.ai/internal/sim/tuning"
	"scrollworld.ai/internal/sim/world"
)

func newTestServerWorld(t *testing.T) *world.World {
	t.Helper()
	cfg := world.ConfigFromTuning("w1", tuning.Defaults())
	cfg.Vegetation.DisableLife = true
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	for x := 400.0; x < 1200; x += 50 {
		if _, _, err := w.StepOnce(x); err != nil {
			t.Fatal(err)
		}
	}
	return w
}

func TestHandlers_Metrics(t *testing.T) {
	w := newTestServerWorld(t)
	dir := t.TempDir()
	stepLog := persistlog.NewStepLogger(dir)
	defer stepLog.Close()
	w.SetStepLogger(stepLog)
	if _, _, err := w.StepOnce(1200); err != nil {
		t.Fatal(err)
	}

	mux := newMux(httpDeps{world: w, stepLog: stepLog})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`scrollworld_step{world="w1"} 17`,
		`scrollworld_objects{world="w1",category="terrain"}`,
		`scrollworld_growths_total{world="w1"}`,
		`scrollworld_window_bound{world="w1",side="max"}`,
		`scrollworld_step_log_lines_total{world="w1"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "scrollworld_index_queue_depth") {
		t.Fatalf("index metrics without an index")
	}
}

func TestHandlers_StateAndHeight(t *testing.T) {
	w := newTestServerWorld(t)
	mux := newMux(httpDeps{world: w})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/state", nil))
	var st struct {
		WorldID string             `json:"world_id"`
		RunID   string             `json:"run_id"`
		Step    uint64             `json:"step"`
		Metrics world.WorldMetrics `json:"metrics"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.WorldID != "w1" || st.RunID != w.RunID() || st.Step != 16 || st.Metrics.Digest != w.Digest() {
		t.Fatalf("state=%+v", st)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/height?x=1234.5", nil))
	var h map[string]float64
	if err := json.Unmarshal(rr.Body.Bytes(), &h); err != nil {
		t.Fatal(err)
	}
	if h["height"] != w.HeightAt(1234.5) || h["surface"] != w.SurfaceAt(1234.5) {
		t.Fatalf("height=%v", h)
	}

	for _, q := range []string{"x=NaN", "x=abc", "x=Inf", ""} {
		rr = httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/height?"+q, nil))
		if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), protocol.ErrInvalidCoordinate) {
			t.Fatalf("%q: code=%d body=%s", q, rr.Code, rr.Body.String())
		}
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	dir := t.TempDir()
	if idx, err := openRuntimeIndex(dir, true); idx != nil || err != nil {
		t.Fatalf("disabled: %v %v", idx, err)
	}

	t.Setenv("SW_INDEX_BACKEND", "bogus")
	if _, err := openRuntimeIndex(dir, false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}

	t.Setenv("SW_INDEX_BACKEND", "")
	idx, err := openRuntimeIndex(dir, false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer idx.Close()
	if _, err := os.Stat(filepath.Join(dir, "index", "world.sqlite")); err != nil {
		t.Fatalf("sqlite file not created")
	}

	// The tee keeps writing to the index when the log side is absent.
	m := multiStepLogger{b: idx}
	_ = m.WriteStep(world.StepLogEntry{Step: 0})
}

func TestBuildArchiveMirror(t *testing.T) {
	t.Setenv("SW_ARCHIVE_MIRROR", "")
	if m, err := buildArchiveMirror(t.TempDir(), nil); m != nil || err != nil {
		t.Fatalf("disabled: %v %v", m, err)
	}

	t.Setenv("SW_ARCHIVE_MIRROR", "true")
	t.Setenv("SW_ARCHIVE_ENDPOINT", "")
	if _, err := buildArchiveMirror(t.TempDir(), nil); err == nil {
		t.Fatalf("expected error without endpoint")
	}

	t.Setenv("SW_ARCHIVE_ENDPOINT", "r2.example.com")
	t.Setenv("SW_ARCHIVE_BUCKET", "scroll")
	t.Setenv("SW_ARCHIVE_ACCESS_KEY_ID", "ak")
	t.Setenv("SW_ARCHIVE_SECRET_ACCESS_KEY", "sk")
	m, err := buildArchiveMirror(t.TempDir(), nil)
	if err != nil || m == nil {
		t.Fatalf("enabled: %v", err)
	}
	m.Close()

	mux := newMux(httpDeps{world: newTestServerWorld(t), mirror: m})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `scrollworld_archive_uploads_total{world="w1",result="ok"} 0`) {
		t.Fatalf("archive metrics missing:\n%s", rr.Body.String())
	}
}
