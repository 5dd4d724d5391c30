package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"sortbot.ai/internal/sim/tuning"
	"sortbot.ai/internal/sim/world"
)

var ErrRunNotFound = errors.New("run not found")

// SQLiteIndex is a queryable secondary index of runs. Frames and deliveries
// are queued to a writer goroutine and dropped when it falls behind; the
// frame log stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropFrames     atomic.Uint64
	dropDeliveries atomic.Uint64
}

type reqKind int

const (
	reqFrame reqKind = iota + 1
	reqDelivery
	reqRunResult
)

type req struct {
	kind  reqKind
	runID string

	frame    frameRow
	delivery deliveryRow
	result   world.Result
	finished string
}

type frameRow struct {
	Seq       uint64
	Tick      uint64
	Kind      string
	TaskID    string
	X, Y      int
	Payload   string
	Remaining int
	Digest    string
}

type deliveryRow struct {
	TaskID   string
	ItemID   string
	Category string
	PickupX  int
	PickupY  int
	BinX     int
	BinY     int
	Tick     uint64
}

// RunRow is one row of the runs table.
type RunRow struct {
	RunID        string
	StartedAt    string
	FinishedAt   string
	Seed         int64
	ConfigDigest string
	Status       string
	Items        int
	Delivered    int
	Steps        uint64
	Frames       uint64
	FinalDigest  string
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropFrameTotal    uint64
	DropDeliveryTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
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
		ch: make(chan req, 65536),
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
			started_at TEXT NOT NULL,
			finished_at TEXT,
			seed INTEGER NOT NULL,
			config_digest TEXT NOT NULL,
			config_json TEXT NOT NULL,
			status TEXT NOT NULL,
			items INTEGER NOT NULL DEFAULT 0,
			delivered INTEGER NOT NULL DEFAULT 0,
			steps INTEGER NOT NULL DEFAULT 0,
			frames INTEGER NOT NULL DEFAULT 0,
			final_digest TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS frames (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			task_id TEXT,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			payload TEXT,
			remaining INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_frames_run_kind ON frames(run_id, kind);`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			run_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			category TEXT NOT NULL,
			pickup_x INTEGER NOT NULL,
			pickup_y INTEGER NOT NULL,
			bin_x INTEGER NOT NULL,
			bin_y INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			PRIMARY KEY (run_id, task_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_category ON deliveries(category);`,
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

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropFrameTotal:    s.dropFrames.Load(),
		DropDeliveryTotal: s.dropDeliveries.Load(),
	}
}

// BeginRun stores the run header with the effective configuration.
func (s *SQLiteIndex) BeginRun(runID string, cfg tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO runs(run_id,started_at,seed,config_digest,config_json,status) VALUES(?,?,?,?,?,?)`,
		runID, now, cfg.Seed, hex.EncodeToString(sum[:]), string(b), "RUNNING",
	); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordRun queues the final result behind every frame already queued.
// Unlike frames it is never dropped.
func (s *SQLiteIndex) RecordRun(runID string, res world.Result) {
	if s == nil || s.closed.Load() {
		return
	}
	s.ch <- req{
		kind:     reqRunResult,
		runID:    runID,
		result:   res,
		finished: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// FrameSink returns a sink that indexes frames of one run.
func (s *SQLiteIndex) FrameSink(runID string) world.FrameSink {
	return &runSink{idx: s, runID: runID}
}

type runSink struct {
	idx   *SQLiteIndex
	runID string
}

func (r *runSink) WriteFrame(f world.Frame) error {
	s := r.idx
	if s == nil || s.closed.Load() {
		return nil
	}
	row := frameRow{
		Seq:       f.Seq,
		Tick:      f.Tick,
		Kind:      string(f.Kind),
		TaskID:    f.TaskID,
		X:         f.Agent.X,
		Y:         f.Agent.Y,
		Payload:   string(f.Payload),
		Remaining: len(f.Remaining),
		Digest:    f.Digest,
	}
	select {
	case s.ch <- req{kind: reqFrame, runID: r.runID, frame: row}:
	default:
		s.dropFrames.Add(1)
	}

	if f.Kind != world.FrameDropoff {
		return nil
	}
	for _, t := range f.Tasks {
		if t.ID != f.TaskID {
			continue
		}
		d := deliveryRow{
			TaskID:   t.ID,
			ItemID:   t.ItemID,
			Category: string(t.Category),
			PickupX:  t.Pickup.X,
			PickupY:  t.Pickup.Y,
			BinX:     t.Dropoff.X,
			BinY:     t.Dropoff.Y,
			Tick:     f.Tick,
		}
		select {
		case s.ch <- req{kind: reqDelivery, runID: r.runID, delivery: d}:
		default:
			s.dropDeliveries.Add(1)
		}
	}
	return nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertFrame, _ := s.db.Prepare(`INSERT OR REPLACE INTO frames(run_id,seq,tick,kind,task_id,x,y,payload,remaining,digest) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertDelivery, _ := s.db.Prepare(`INSERT OR REPLACE INTO deliveries(run_id,task_id,item_id,category,pickup_x,pickup_y,bin_x,bin_y,tick) VALUES(?,?,?,?,?,?,?,?,?)`)
	updateRun, _ := s.db.Prepare(`UPDATE runs SET finished_at=?, status=?, items=?, delivered=?, steps=?, frames=?, final_digest=? WHERE run_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertFrame, insertDelivery, updateRun} {
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
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqFrame:
			f := r.frame
			exec(insertFrame, r.runID, int64(f.Seq), int64(f.Tick), f.Kind, f.TaskID, f.X, f.Y, f.Payload, f.Remaining, f.Digest)
		case reqDelivery:
			d := r.delivery
			exec(insertDelivery, r.runID, d.TaskID, d.ItemID, d.Category, d.PickupX, d.PickupY, d.BinX, d.BinY, int64(d.Tick))
		case reqRunResult:
			res := r.result
			exec(updateRun, r.finished, string(res.Status), res.Items, res.Delivered, int64(res.Steps), int64(res.Frames), res.FinalDigest, r.runID)
			commit()
			continue
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
