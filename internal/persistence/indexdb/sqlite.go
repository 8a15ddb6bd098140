package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"scrollworld.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of the step log. Writes are
// queued and applied by one goroutine; the JSONL step log stays the source
// of truth, so a full queue drops rows instead of stalling the world loop.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	// runID is the run of the last header passed to WriteStep, whether or
	// not its run row made it onto the queue.
	runID atomic.Value

	dropStep  atomic.Uint64
	dropRun   atomic.Uint64
	stepsDone atomic.Uint64
}

type reqKind int

const (
	reqStep reqKind = iota + 1
	reqRun
)

type req struct {
	kind  reqKind
	runID string

	step world.StepLogEntry
	run  world.RunHeader
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	StepsIndexed  uint64
	DropStepTotal uint64
	DropRunTotal  uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			start_x REAL NOT NULL,
			initial_units INTEGER NOT NULL,
			genesis TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			observer_x REAL NOT NULL,
			min_x REAL NOT NULL,
			max_x REAL NOT NULL,
			reclaimed INTEGER NOT NULL,
			digest TEXT NOT NULL,
			counts_json TEXT NOT NULL,
			PRIMARY KEY (run_id, step)
		);`,
		`CREATE TABLE IF NOT EXISTS growths (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			dir TEXT NOT NULL,
			min_x REAL NOT NULL,
			max_x REAL NOT NULL,
			units INTEGER NOT NULL,
			PRIMARY KEY (run_id, step)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_growths_range ON growths(run_id, min_x, max_x);`,
		`CREATE TABLE IF NOT EXISTS sweeps (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			left_gate INTEGER NOT NULL,
			right_gate INTEGER NOT NULL,
			evicted INTEGER NOT NULL,
			PRIMARY KEY (run_id, step)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteStep queues a step row. A header on the entry also records the run.
func (s *SQLiteIndex) WriteStep(entry world.StepLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	if entry.Header != nil {
		s.runID.Store(entry.Header.RunID)
		select {
		case s.ch <- req{kind: reqRun, run: *entry.Header}:
		default:
			s.dropRun.Add(1)
		}
	}
	runID, _ := s.runID.Load().(string)
	select {
	case s.ch <- req{kind: reqStep, runID: runID, step: entry}:
	default:
		s.dropStep.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		StepsIndexed:  s.stepsDone.Load(),
		DropStepTotal: s.dropStep.Load(),
		DropRunTotal:  s.dropRun.Load(),
	}
}

func tuningDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,world_id,seed,start_x,initial_units,genesis,tuning_digest,tuning_json,started_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertStep, _ := s.db.Prepare(`INSERT OR REPLACE INTO steps(run_id,step,observer_x,min_x,max_x,reclaimed,digest,counts_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertGrowth, _ := s.db.Prepare(`INSERT OR REPLACE INTO growths(run_id,step,dir,min_x,max_x,units) VALUES(?,?,?,?,?,?)`)
	insertSweep, _ := s.db.Prepare(`INSERT OR REPLACE INTO sweeps(run_id,step,left_gate,right_gate,evicted) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, insertStep, insertGrowth, insertSweep} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			h := r.run
			b, _ := json.Marshal(h.Tuning)
			exec(insertRun, h.RunID, h.WorldID, h.Tuning.Seed, h.StartX, h.InitialUnits, h.Genesis,
				tuningDigest(b), string(b), time.Now().UTC().Format(time.RFC3339Nano))

		case reqStep:
			e, runID := r.step, r.runID
			counts, _ := json.Marshal(e.Counts)
			if !exec(insertStep, runID, int64(e.Step), e.ObserverX, e.Window.MinX, e.Window.MaxX, e.Reclaimed, e.Digest, string(counts)) {
				continue
			}
			if g := e.Growth; g != nil {
				if !exec(insertGrowth, runID, int64(e.Step), g.Dir, g.MinX, g.MaxX, g.Units) {
					continue
				}
			}
			if sw := e.Sweep; sw != nil {
				if !exec(insertSweep, runID, int64(e.Step), boolInt(sw.Left), boolInt(sw.Right), sw.Evicted) {
					continue
				}
			}
			s.stepsDone.Add(1)
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
