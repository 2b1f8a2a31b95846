// Package store persists simulation snapshots to SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/organsim/organsim/sim"
)

// NodeRecord is a stored node position with its creation time.
type NodeRecord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	T float64 `json:"t"`
}

// OrganRecord is one organ as stored at one simulation time.
type OrganRecord struct {
	RunID        int64
	Time         float64
	OrganID      int
	ParentID     int // -1 for base organs
	OrganType    string
	SubType      int
	Order        int
	Length       float64
	Age          float64
	CreationTime float64
	Nodes        []NodeRecord
}

// Store writes organ snapshots of simulation runs to a single SQLite file.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "organsim.sqlite"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL,
		seed INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS organs (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		time REAL NOT NULL,
		organ_id INTEGER NOT NULL,
		parent_id INTEGER NOT NULL,
		organ_type TEXT NOT NULL,
		sub_type INTEGER NOT NULL,
		organ_order INTEGER NOT NULL,
		length REAL NOT NULL,
		age REAL NOT NULL,
		creation_time REAL NOT NULL,
		nodes BLOB NOT NULL,
		PRIMARY KEY (run_id, time, organ_id)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create organs table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// CreateRun registers a new run and returns its id.
func (s *Store) CreateRun(ctx context.Context, label string, seed int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `INSERT INTO runs(label, seed) VALUES(?, ?)`, label, seed)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// SaveSnapshot stores every organ of org at its current simulation time.
// Saving the same run and time twice replaces the earlier rows.
func (s *Store) SaveSnapshot(ctx context.Context, runID int64, org *sim.Organism) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	t := org.SimTime()
	for _, o := range org.Organs(sim.OrganTypeAny) {
		nodes := make([]NodeRecord, 0, o.NumberOfNodes())
		for _, n := range o.Nodes() {
			nodes = append(nodes, NodeRecord{X: n.Pos.X, Y: n.Pos.Y, Z: n.Pos.Z, T: n.CreationTime})
		}
		data, err := json.Marshal(nodes)
		if err != nil {
			return err
		}
		parentID := -1
		if p := o.Parent(); p != nil {
			parentID = p.ID()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO organs(run_id, time, organ_id, parent_id, organ_type, sub_type, organ_order, length, age, creation_time, nodes)
			VALUES(?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(run_id, time, organ_id) DO UPDATE SET
				length=excluded.length, age=excluded.age, nodes=excluded.nodes`,
			runID, t, o.ID(), parentID, o.OrganType().String(), o.SubType(), o.Order(),
			o.Length(), o.Age(), o.CreationTime(), data); err != nil {
			return fmt.Errorf("upsert organ %d: %w", o.ID(), err)
		}
	}
	return tx.Commit()
}

// Snapshots returns the stored organs of a run ordered by time and organ id.
func (s *Store) Snapshots(ctx context.Context, runID int64) ([]OrganRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, time, organ_id, parent_id, organ_type, sub_type, organ_order, length, age, creation_time, nodes
		FROM organs WHERE run_id = ? ORDER BY time, organ_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("select organs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []OrganRecord
	for rows.Next() {
		var r OrganRecord
		var data []byte
		if err := rows.Scan(&r.RunID, &r.Time, &r.OrganID, &r.ParentID, &r.OrganType, &r.SubType, &r.Order,
			&r.Length, &r.Age, &r.CreationTime, &data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal(data, &r.Nodes); err != nil {
			return nil, fmt.Errorf("decode nodes of organ %d: %w", r.OrganID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TotalLengths returns the summed organ length per stored time of a run.
func (s *Store) TotalLengths(ctx context.Context, runID int64) (times, lengths []float64, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT time, SUM(length) FROM organs WHERE run_id = ? GROUP BY time ORDER BY time`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("select lengths: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var t, l float64
		if err := rows.Scan(&t, &l); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		times = append(times, t)
		lengths = append(lengths, l)
	}
	return times, lengths, rows.Err()
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
