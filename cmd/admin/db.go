package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type dbOpts struct {
	runID string
	limit int
}

type runRow struct {
	RunID        string  `json:"run_id"`
	WorldID      string  `json:"world_id"`
	Seed         int64   `json:"seed"`
	StartX       float64 `json:"start_x"`
	InitialUnits int     `json:"initial_units"`
	Genesis      string  `json:"genesis"`
	StartedAt    string  `json:"started_at"`
}

type stepRow struct {
	Step      uint64  `json:"step"`
	ObserverX float64 `json:"observer_x"`
	MinX      float64 `json:"min_x"`
	MaxX      float64 `json:"max_x"`
	Reclaimed int     `json:"reclaimed"`
	Digest    string  `json:"digest"`
}

type growthRow struct {
	Step  uint64  `json:"step"`
	Dir   string  `json:"dir"`
	MinX  float64 `json:"min_x"`
	MaxX  float64 `json:"max_x"`
	Units int     `json:"units"`
}

type sweepRow struct {
	Step      uint64 `json:"step"`
	LeftGate  bool   `json:"left_gate"`
	RightGate bool   `json:"right_gate"`
	Evicted   int    `json:"evicted"`
}

// duplicateRow is a range that was materialized more than once in a run.
type duplicateRow struct {
	MinX  float64 `json:"min_x"`
	MaxX  float64 `json:"max_x"`
	Times int     `json:"times"`
	Units int     `json:"units"`
}

var errNoRuns = errors.New("no runs indexed")

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	runID := fs.String("run", "", "run id (default: latest run)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := queryIndex(db, q, dbOpts{runID: *runID, limit: *limit}, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

// queryIndex runs one named query and emits each row.
func queryIndex(db *sql.DB, q string, o dbOpts, emit func(any)) error {
	if o.limit <= 0 {
		o.limit = 20
	}
	if q == "runs" {
		return queryRuns(db, o.limit, emit)
	}
	if o.runID == "" {
		id, err := latestRun(db)
		if err != nil {
			return err
		}
		o.runID = id
	}

	var (
		query string
		scan  func(*sql.Rows) (any, error)
	)
	switch q {
	case "steps":
		query = `SELECT step,observer_x,min_x,max_x,reclaimed,digest FROM steps WHERE run_id=? ORDER BY step DESC LIMIT ?`
		scan = func(rows *sql.Rows) (any, error) {
			var r stepRow
			err := rows.Scan(&r.Step, &r.ObserverX, &r.MinX, &r.MaxX, &r.Reclaimed, &r.Digest)
			return r, err
		}
	case "growths":
		query = `SELECT step,dir,min_x,max_x,units FROM growths WHERE run_id=? ORDER BY step LIMIT ?`
		scan = func(rows *sql.Rows) (any, error) {
			var r growthRow
			err := rows.Scan(&r.Step, &r.Dir, &r.MinX, &r.MaxX, &r.Units)
			return r, err
		}
	case "sweeps":
		query = `SELECT step,left_gate,right_gate,evicted FROM sweeps WHERE run_id=? ORDER BY step DESC LIMIT ?`
		scan = func(rows *sql.Rows) (any, error) {
			var (
				r           sweepRow
				left, right int
			)
			err := rows.Scan(&r.Step, &left, &right, &r.Evicted)
			r.LeftGate, r.RightGate = left != 0, right != 0
			return r, err
		}
	case "duplicates":
		query = `SELECT min_x,max_x,COUNT(*),SUM(units) FROM growths WHERE run_id=? GROUP BY min_x,max_x HAVING COUNT(*) > 1 ORDER BY min_x LIMIT ?`
		scan = func(rows *sql.Rows) (any, error) {
			var r duplicateRow
			err := rows.Scan(&r.MinX, &r.MaxX, &r.Times, &r.Units)
			return r, err
		}
	default:
		return fmt.Errorf("unknown query (use runs|steps|growths|sweeps|duplicates)")
	}

	rows, err := db.Query(query, o.runID, o.limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return err
		}
		emit(r)
	}
	return rows.Err()
}

func queryRuns(db *sql.DB, limit int, emit func(any)) error {
	rows, err := db.Query(`SELECT run_id,world_id,seed,start_x,initial_units,genesis,started_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r runRow
		if err := rows.Scan(&r.RunID, &r.WorldID, &r.Seed, &r.StartX, &r.InitialUnits, &r.Genesis, &r.StartedAt); err != nil {
			return err
		}
		emit(r)
	}
	return rows.Err()
}

func latestRun(db *sql.DB) (string, error) {
	var id string
	err := db.QueryRow(`SELECT run_id FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errNoRuns
	}
	return id, err
}
