// Package projstore persists projection datasets in SQLite, keyed by
// iteration, parameter combination and projection type. Datasets are
// immutable once written: a repeated request for the same key returns the
// stored bytes unchanged, and a forced refresh replaces the row and its
// figure artifact atomically.
package projstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/prism-data/prism/internal/monitoring"
	"github.com/prism-data/prism/internal/projection"
	"github.com/prism-data/prism/internal/timeutil"
)

// ErrNotFound is returned when no dataset exists for a key.
var ErrNotFound = errors.New("projstore: dataset not found")

// Store manages projection dataset persistence. It is safe for concurrent
// use; computation for a given key is serialized so concurrent requests for
// the same projection do not duplicate work.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// Open opens (or creates) the store database at path and applies pending
// migrations. Use ":memory:" for an in-memory store.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open projection store: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Store{
		db:       db,
		clock:    clock,
		keyLocks: make(map[string]*sync.Mutex),
	}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// lockKey acquires the per-key mutex and returns its release func.
func (s *Store) lockKey(key projection.Key) func() {
	s.mu.Lock()
	l, ok := s.keyLocks[key.String()]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key.String()] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Exists reports whether a dataset is stored for the key. It implements
// projection.Cache.
func (s *Store) Exists(key projection.Key) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM projections WHERE iteration = ? AND params = ? AND proj_type = ?`,
		key.Iteration, key.Name(), string(key.Type),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check projection %s: %w", key, err)
	}
	return n > 0, nil
}

// Get loads the dataset stored for the key, or ErrNotFound.
func (s *Store) Get(key projection.Key) (*projection.Dataset, error) {
	row := s.db.QueryRow(
		`SELECT resolution, depth, seed, first_cut, smoothed, axes_json, cells_json, created_at
		 FROM projections WHERE iteration = ? AND params = ? AND proj_type = ?`,
		key.Iteration, key.Name(), string(key.Type),
	)

	var (
		ds       = projection.Dataset{Key: key}
		smoothed int
		axesJSON string
		cellJSON string
	)
	err := row.Scan(&ds.Resolution, &ds.Depth, &ds.Seed, &ds.FirstCut,
		&smoothed, &axesJSON, &cellJSON, &ds.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load projection %s: %w", key, err)
	}
	ds.Smoothed = smoothed != 0
	if err := json.Unmarshal([]byte(axesJSON), &ds.Axes); err != nil {
		return nil, fmt.Errorf("decode axes for %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(cellJSON), &ds.Cells); err != nil {
		return nil, fmt.Errorf("decode cells for %s: %w", key, err)
	}
	return &ds, nil
}

// Put stores a dataset, replacing any existing row for its key. The replace
// and insert happen in one transaction.
func (s *Store) Put(ds *projection.Dataset) error {
	axesJSON, err := json.Marshal(ds.Axes)
	if err != nil {
		return fmt.Errorf("encode axes for %s: %w", ds.Key, err)
	}
	cellJSON, err := json.Marshal(ds.Cells)
	if err != nil {
		return fmt.Errorf("encode cells for %s: %w", ds.Key, err)
	}
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = s.clock.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin store transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`DELETE FROM projections WHERE iteration = ? AND params = ? AND proj_type = ?`,
		ds.Key.Iteration, ds.Key.Name(), string(ds.Key.Type),
	)
	if err != nil {
		return fmt.Errorf("replace projection %s: %w", ds.Key, err)
	}

	smoothed := 0
	if ds.Smoothed {
		smoothed = 1
	}
	_, err = tx.Exec(
		`INSERT INTO projections
		 (id, iteration, params, proj_type, resolution, depth, seed, first_cut, smoothed, axes_json, cells_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), ds.Key.Iteration, ds.Key.Name(), string(ds.Key.Type),
		ds.Resolution, ds.Depth, ds.Seed, ds.FirstCut, smoothed,
		string(axesJSON), string(cellJSON), ds.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert projection %s: %w", ds.Key, err)
	}
	return tx.Commit()
}

// RecordFigure attaches a rendered figure path to the stored dataset so a
// forced refresh can remove the stale artifact.
func (s *Store) RecordFigure(key projection.Key, path string) error {
	res, err := s.db.Exec(
		`UPDATE projections SET figure_path = ? WHERE iteration = ? AND params = ? AND proj_type = ?`,
		path, key.Iteration, key.Name(), string(key.Type),
	)
	if err != nil {
		return fmt.Errorf("record figure for %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FigurePath returns the recorded figure path for a key, or "" when no
// figure was rendered yet. ErrNotFound means no dataset row exists at all.
func (s *Store) FigurePath(key projection.Key) (string, error) {
	var path string
	err := s.db.QueryRow(
		`SELECT figure_path FROM projections WHERE iteration = ? AND params = ? AND proj_type = ?`,
		key.Iteration, key.Name(), string(key.Type),
	).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load figure path for %s: %w", key, err)
	}
	return path, nil
}

// Delete removes the dataset row for a key and its figure artifact from
// disk. Deleting a key with no stored dataset is a no-op.
func (s *Store) Delete(key projection.Key) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	var figurePath string
	err = tx.QueryRow(
		`SELECT figure_path FROM projections WHERE iteration = ? AND params = ? AND proj_type = ?`,
		key.Iteration, key.Name(), string(key.Type),
	).Scan(&figurePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup projection %s: %w", key, err)
	}

	_, err = tx.Exec(
		`DELETE FROM projections WHERE iteration = ? AND params = ? AND proj_type = ?`,
		key.Iteration, key.Name(), string(key.Type),
	)
	if err != nil {
		return fmt.Errorf("delete projection %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete for %s: %w", key, err)
	}

	if figurePath != "" {
		if err := os.Remove(figurePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove figure %s: %w", figurePath, err)
		}
	}
	return nil
}

// Record summarizes a stored dataset for listings.
type Record struct {
	ID         string         `json:"id"`
	Key        projection.Key `json:"key"`
	Resolution int            `json:"resolution"`
	Depth      int            `json:"depth"`
	Smoothed   bool           `json:"smoothed"`
	FigurePath string         `json:"figure_path,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// List returns summaries of the stored datasets for an iteration, ordered by
// creation time. Iteration 0 lists every iteration.
func (s *Store) List(iteration int) ([]Record, error) {
	query := `SELECT id, iteration, params, proj_type, resolution, depth, smoothed, figure_path, created_at
		 FROM projections`
	var args []interface{}
	if iteration != 0 {
		query += ` WHERE iteration = ?`
		args = append(args, iteration)
	}
	query += ` ORDER BY created_at, params`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projections: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r        Record
			params   string
			typ      string
			smoothed int
		)
		err := rows.Scan(&r.ID, &r.Key.Iteration, &params, &typ,
			&r.Resolution, &r.Depth, &smoothed, &r.FigurePath, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan projection row: %w", err)
		}
		r.Key.Type = projection.Type(typ)
		r.Key.Params = splitName(params)
		r.Smoothed = smoothed != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// ComputeFunc produces a dataset for a key when no stored one can serve.
type ComputeFunc func(ctx context.Context, key projection.Key) (*projection.Dataset, error)

// GetOrCompute returns the stored dataset for key, computing and storing it
// when absent. With force set the stored row and figure artifact are removed
// first and the dataset is recomputed. The returned flag reports a cache hit.
// Concurrent calls for the same key are serialized.
func (s *Store) GetOrCompute(ctx context.Context, key projection.Key, force bool, compute ComputeFunc) (*projection.Dataset, bool, error) {
	unlock := s.lockKey(key)
	defer unlock()

	if force {
		if err := s.Delete(key); err != nil {
			return nil, false, err
		}
	} else {
		ds, err := s.Get(key)
		if err == nil {
			monitoring.Logf("[ProjStore] serving %s from store", key)
			return ds, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}

	ds, err := compute(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if err := s.Put(ds); err != nil {
		return nil, false, err
	}
	return ds, false, nil
}

func splitName(name string) []string {
	var params []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '-' {
			params = append(params, name[start:i])
			start = i + 1
		}
	}
	return append(params, name[start:])
}
