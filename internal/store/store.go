// Package store persists extraction runs to SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/tabletop/internal/perception"
	"github.com/banshee-data/tabletop/internal/timeutil"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store wraps the run database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used to stamp runs.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open opens (creating if needed) the database at path. Call MigrateUp
// before use.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// PlaneRecord is a stored plane.
type PlaneRecord struct {
	Ordinal     int         `json:"ordinal"`
	Normal      r3.Vector   `json:"normal"`
	Point       r3.Vector   `json:"point"`
	InlierCount int         `json:"inlier_count"`
	Hull        []orb.Point `json:"hull"`
}

// ObjectRecord is a stored object.
type ObjectRecord struct {
	Ordinal    int       `json:"ordinal"`
	Centroid   r3.Vector `json:"centroid"`
	Height     float64   `json:"height"`
	PointCount int       `json:"point_count"`
}

// RunSummary is one row of ListRuns.
type RunSummary struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	PlaneCount  int       `json:"plane_count"`
	ObjectCount int       `json:"object_count"`
}

// Run is a stored extraction with its planes and objects.
type Run struct {
	RunSummary
	Params  perception.Params `json:"params"`
	Stats   perception.Stats  `json:"stats"`
	Planes  []PlaneRecord     `json:"planes"`
	Objects []ObjectRecord    `json:"objects"`
}

// SaveRun stores one extraction and returns its run id.
func (s *Store) SaveRun(ctx context.Context, source string, params perception.Params, res *perception.Result) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}
	statsJSON, err := json.Marshal(res.Stats)
	if err != nil {
		return "", fmt.Errorf("failed to encode stats: %w", err)
	}

	id := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, created_at_ns, params_json, stats_json, plane_count, object_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, source, s.clock.Now().UnixNano(), string(paramsJSON), string(statsJSON), len(res.Planes), len(res.Objects))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for i, seg := range res.Planes {
		hullJSON, err := json.Marshal(seg.Hull.Vertices)
		if err != nil {
			return "", fmt.Errorf("failed to encode hull %d: %w", i, err)
		}
		n, p := seg.Plane.Normal, seg.Plane.Point
		_, err = tx.ExecContext(ctx, `
			INSERT INTO planes (run_id, ordinal, normal_x, normal_y, normal_z, point_x, point_y, point_z, inlier_count, hull_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, n.X, n.Y, n.Z, p.X, p.Y, p.Z, seg.InlierCount(), string(hullJSON))
		if err != nil {
			return "", fmt.Errorf("failed to insert plane %d: %w", i, err)
		}
	}

	for i, obj := range res.Objects {
		c := obj.Centroid
		_, err = tx.ExecContext(ctx, `
			INSERT INTO objects (run_id, ordinal, centroid_x, centroid_y, centroid_z, height, point_count)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, c.X, c.Y, c.Z, obj.Height, len(obj.Points))
		if err != nil {
			return "", fmt.Errorf("failed to insert object %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// GetRun loads a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		run        Run
		createdNs  int64
		paramsJSON string
		statsJSON  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, created_at_ns, params_json, stats_json, plane_count, object_count
		FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Source, &createdNs, &paramsJSON, &statsJSON, &run.PlaneCount, &run.ObjectCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.CreatedAt = time.Unix(0, createdNs).UTC()
	if err := json.Unmarshal([]byte(paramsJSON), &run.Params); err != nil {
		return nil, fmt.Errorf("failed to decode params: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}

	if run.Planes, err = s.planes(ctx, id); err != nil {
		return nil, err
	}
	if run.Objects, err = s.objects(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) planes(ctx context.Context, runID string) ([]PlaneRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, normal_x, normal_y, normal_z, point_x, point_y, point_z, inlier_count, hull_json
		FROM planes WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query planes: %w", err)
	}
	defer rows.Close()

	out := []PlaneRecord{}
	for rows.Next() {
		var (
			pr       PlaneRecord
			hullJSON string
		)
		if err := rows.Scan(&pr.Ordinal, &pr.Normal.X, &pr.Normal.Y, &pr.Normal.Z,
			&pr.Point.X, &pr.Point.Y, &pr.Point.Z, &pr.InlierCount, &hullJSON); err != nil {
			return nil, fmt.Errorf("failed to scan plane: %w", err)
		}
		if err := json.Unmarshal([]byte(hullJSON), &pr.Hull); err != nil {
			return nil, fmt.Errorf("failed to decode hull: %w", err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (s *Store) objects(ctx context.Context, runID string) ([]ObjectRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, centroid_x, centroid_y, centroid_z, height, point_count
		FROM objects WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	defer rows.Close()

	out := []ObjectRecord{}
	for rows.Next() {
		var rec ObjectRecord
		if err := rows.Scan(&rec.Ordinal, &rec.Centroid.X, &rec.Centroid.Y, &rec.Centroid.Z, &rec.Height, &rec.PointCount); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, created_at_ns, plane_count, object_count
		FROM runs ORDER BY created_at_ns DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var (
			rs        RunSummary
			createdNs int64
		)
		if err := rows.Scan(&rs.ID, &rs.Source, &createdNs, &rs.PlaneCount, &rs.ObjectCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rs.CreatedAt = time.Unix(0, createdNs).UTC()
		out = append(out, rs)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, through the foreign keys, its planes and objects.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
