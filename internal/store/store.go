// Package store records screening runs and their per-pair verdicts in a
// SQLite database so results from several runs can be browsed together.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JamesSweetJones/AntibodyChainChecker/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	input      TEXT NOT NULL,
	normal     INTEGER NOT NULL,
	irregular  INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pairs (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq              INTEGER NOT NULL,
	group_key        TEXT NOT NULL,
	accepted         INTEGER NOT NULL,
	light_id         TEXT NOT NULL,
	light_sequence   TEXT NOT NULL,
	light_normal     INTEGER NOT NULL,
	light_cysteines  INTEGER NOT NULL,
	heavy_id         TEXT NOT NULL,
	heavy_sequence   TEXT NOT NULL,
	heavy_normal     INTEGER NOT NULL,
	heavy_rule       TEXT NOT NULL,
	heavy_cysteines  INTEGER NOT NULL,
	cdrh3_loop       TEXT NOT NULL,
	cdrh3_flanked    TEXT NOT NULL,
	insertion_length INTEGER NOT NULL,
	insertion        TEXT NOT NULL,
	placeholders     INTEGER NOT NULL,
	heavy_cys_distance INTEGER NOT NULL,
	light_cys_distance INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored screening run.
type Run struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	Normal    int       `json:"normal"`
	Irregular int       `json:"irregular"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the run database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create run store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRun stores r and its pairs in one transaction. A run ID is generated
// when r has none; the ID used is returned and set on r.
func (s *Store) SaveRun(ctx context.Context, r *report.Report) (string, error) {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, input, normal, irregular, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.RunID, r.Input, r.Normal, r.Irregular, r.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pairs (
		run_id, seq, group_key, accepted,
		light_id, light_sequence, light_normal, light_cysteines,
		heavy_id, heavy_sequence, heavy_normal, heavy_rule, heavy_cysteines,
		cdrh3_loop, cdrh3_flanked, insertion_length, insertion, placeholders,
		heavy_cys_distance, light_cys_distance
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, p := range r.Pairs {
		if _, err := stmt.ExecContext(ctx,
			r.RunID, i, p.Key, p.Accepted,
			p.LightID, p.LightSequence, p.LightNormal, p.LightCysteines,
			p.HeavyID, p.HeavySequence, p.HeavyNormal, p.HeavyRule, p.HeavyCysteines,
			p.Loop, p.LoopFlanked, p.InsertionLength, p.Insertion, p.Placeholders,
			p.HeavyCysDistance, p.LightCysDistance,
		); err != nil {
			return "", fmt.Errorf("insert pair %s: %w", p.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return r.RunID, nil
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input, normal, irregular, created_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			created string
		)
		if err := rows.Scan(&r.ID, &r.Input, &r.Normal, &r.Irregular, &created); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, created, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var (
		r       Run
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input, normal, irregular, created_at FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Input, &r.Normal, &r.Irregular, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Run{}, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, created, err)
	}
	return r, nil
}

// Pairs returns the pairs of a run in the order they were screened. A
// stored pair carries every field of the report row.
func (s *Store) Pairs(ctx context.Context, runID string) ([]report.Pair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		group_key, accepted,
		light_id, light_sequence, light_normal, light_cysteines,
		heavy_id, heavy_sequence, heavy_normal, heavy_rule, heavy_cysteines,
		cdrh3_loop, cdrh3_flanked, insertion_length, insertion, placeholders,
		heavy_cys_distance, light_cys_distance
		FROM pairs WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []report.Pair
	for rows.Next() {
		var p report.Pair
		if err := rows.Scan(
			&p.Key, &p.Accepted,
			&p.LightID, &p.LightSequence, &p.LightNormal, &p.LightCysteines,
			&p.HeavyID, &p.HeavySequence, &p.HeavyNormal, &p.HeavyRule, &p.HeavyCysteines,
			&p.Loop, &p.LoopFlanked, &p.InsertionLength, &p.Insertion, &p.Placeholders,
			&p.HeavyCysDistance, &p.LightCysDistance,
		); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
