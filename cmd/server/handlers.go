package main

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/pprof"
	"sort"
	"strconv"

	persistlog "scrollworld.ai/internal/persistence/log"
	"scrollworld.ai/internal/persistence/r2s3"
	"scrollworld.ai/internal/protocol"
	"scrollworld.ai/internal/sim/world"
	"scrollworld.ai/internal/transport/observer"
)

type httpDeps struct {
	world   *world.World
	obs     *observer.Server
	idx     runtimeIndex
	stepLog *persistlog.StepLogger
	mirror  *r2s3.Mirror
	pprof   bool
}

func newMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(d))
	mux.HandleFunc("/v1/state", stateHandler(d.world))
	mux.HandleFunc("/v1/height", heightHandler(d.world))
	if d.obs != nil {
		mux.HandleFunc("/v1/observer/bootstrap", d.obs.BootstrapHandler())
		mux.HandleFunc("/v1/observer/ws", d.obs.WSHandler())
	}
	if d.pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func metricsHandler(d httpDeps) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		worldID := d.world.Config().ID
		m := d.world.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP scrollworld_step Steps completed.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_step gauge\n")
		fmt.Fprintf(rw, "scrollworld_step{world=%q} %d\n", worldID, m.Step)

		fmt.Fprintf(rw, "# HELP scrollworld_observer_x Observer position in world units.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_observer_x gauge\n")
		fmt.Fprintf(rw, "scrollworld_observer_x{world=%q} %g\n", worldID, m.ObserverX)

		fmt.Fprintf(rw, "# HELP scrollworld_window_bound Generation window bounds.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_window_bound gauge\n")
		fmt.Fprintf(rw, "scrollworld_window_bound{world=%q,side=%q} %g\n", worldID, "min", m.Window.MinX)
		fmt.Fprintf(rw, "scrollworld_window_bound{world=%q,side=%q} %g\n", worldID, "max", m.Window.MaxX)

		fmt.Fprintf(rw, "# HELP scrollworld_objects Registered objects per category.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_objects gauge\n")
		cats := make([]string, 0, len(m.Objects))
		for c := range m.Objects {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Fprintf(rw, "scrollworld_objects{world=%q,category=%q} %d\n", worldID, c, m.Objects[c])
		}

		fmt.Fprintf(rw, "# HELP scrollworld_observers Connected observer sessions.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_observers gauge\n")
		fmt.Fprintf(rw, "scrollworld_observers{world=%q} %d\n", worldID, m.Observers)

		fmt.Fprintf(rw, "# HELP scrollworld_growths_total Window growth events.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_growths_total counter\n")
		fmt.Fprintf(rw, "scrollworld_growths_total{world=%q} %d\n", worldID, m.Growths)

		fmt.Fprintf(rw, "# HELP scrollworld_evictions_total Objects evicted by the distance sweep.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_evictions_total counter\n")
		fmt.Fprintf(rw, "scrollworld_evictions_total{world=%q} %d\n", worldID, m.Evictions)

		fmt.Fprintf(rw, "# HELP scrollworld_reclaims_total Objects reclaimed before a regrowth.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_reclaims_total counter\n")
		fmt.Fprintf(rw, "scrollworld_reclaims_total{world=%q} %d\n", worldID, m.Reclaims)

		fmt.Fprintf(rw, "# HELP scrollworld_step_errors_total Steps rejected by a precondition.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_step_errors_total counter\n")
		fmt.Fprintf(rw, "scrollworld_step_errors_total{world=%q} %d\n", worldID, m.StepErrors)

		fmt.Fprintf(rw, "# HELP scrollworld_scheduled_tasks Pending leaf timers.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_scheduled_tasks gauge\n")
		fmt.Fprintf(rw, "scrollworld_scheduled_tasks{world=%q} %d\n", worldID, m.ScheduledTasks)

		fmt.Fprintf(rw, "# HELP scrollworld_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_queue_depth gauge\n")
		fmt.Fprintf(rw, "scrollworld_queue_depth{world=%q,queue=%q} %d\n", worldID, "move", m.QueueDepths.Move)
		fmt.Fprintf(rw, "scrollworld_queue_depth{world=%q,queue=%q} %d\n", worldID, "walk", m.QueueDepths.Walk)
		fmt.Fprintf(rw, "scrollworld_queue_depth{world=%q,queue=%q} %d\n", worldID, "observer_join", m.QueueDepths.ObserverJoin)
		fmt.Fprintf(rw, "scrollworld_queue_depth{world=%q,queue=%q} %d\n", worldID, "observer_leave", m.QueueDepths.ObserverLeave)

		fmt.Fprintf(rw, "# HELP scrollworld_step_ms Last step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE scrollworld_step_ms gauge\n")
		fmt.Fprintf(rw, "scrollworld_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

		if d.stepLog != nil {
			lines, bytes := d.stepLog.Stats()
			fmt.Fprintf(rw, "# HELP scrollworld_step_log_lines_total Step log entries written.\n")
			fmt.Fprintf(rw, "# TYPE scrollworld_step_log_lines_total counter\n")
			fmt.Fprintf(rw, "scrollworld_step_log_lines_total{world=%q} %d\n", worldID, lines)
			fmt.Fprintf(rw, "# HELP scrollworld_step_log_bytes_total Uncompressed step log bytes written.\n")
			fmt.Fprintf(rw, "# TYPE scrollworld_step_log_bytes_total counter\n")
			fmt.Fprintf(rw, "scrollworld_step_log_bytes_total{world=%q} %d\n", worldID, bytes)
		}
		if d.mirror != nil {
			s := d.mirror.Stats()
			fmt.Fprintf(rw, "# HELP scrollworld_archive_uploads_total Step log segments uploaded.\n")
			fmt.Fprintf(rw, "# TYPE scrollworld_archive_uploads_total counter\n")
			fmt.Fprintf(rw, "scrollworld_archive_uploads_total{world=%q,result=%q} %d\n", worldID, "ok", s.UploadSuccessTotal)
			fmt.Fprintf(rw, "scrollworld_archive_uploads_total{world=%q,result=%q} %d\n", worldID, "fail", s.UploadFailTotal)
			fmt.Fprintf(rw, "scrollworld_archive_uploads_total{world=%q,result=%q} %d\n", worldID, "dropped", s.DroppedTotal)
			fmt.Fprintf(rw, "# HELP scrollworld_archive_bytes_total Step log bytes uploaded.\n")
			fmt.Fprintf(rw, "# TYPE scrollworld_archive_bytes_total counter\n")
			fmt.Fprintf(rw, "scrollworld_archive_bytes_total{world=%q} %d\n", worldID, s.UploadedBytesTotal)
		}
		if d.idx != nil {
			s := d.idx.Stats()
			fmt.Fprintf(rw, "# HELP scrollworld_index_queue_depth Index writer queue depth.\n")
			fmt.Fprintf(rw, "# TYPE scrollworld_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "scrollworld_index_queue_depth{world=%q} %d\n", worldID, s.QueueDepth)
			fmt.Fprintf(rw, "# HELP scrollworld_index_dropped_total Index rows dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE scrollworld_index_dropped_total counter\n")
			fmt.Fprintf(rw, "scrollworld_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "step", s.DropStepTotal)
			fmt.Fprintf(rw, "scrollworld_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "run", s.DropRunTotal)
		}
	}
}

func stateHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID string             `json:"world_id"`
			RunID   string             `json:"run_id"`
			Step    uint64             `json:"step"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: w.Config().ID,
			RunID:   w.RunID(),
			Step:    w.CurrentStep(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// heightHandler answers GET /v1/height?x=<float> with the terrain height
// and the top of the grid column containing x.
func heightHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		x, err := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			rw.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(rw).Encode(map[string]string{
				"code":    protocol.ErrInvalidCoordinate,
				"message": "x must be a finite number",
			})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]float64{
			"x":       x,
			"height":  w.HeightAt(x),
			"surface": w.SurfaceAt(x),
		})
	}
}
