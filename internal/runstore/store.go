// Package runstore persists the history of exploration runs and the state
// snapshots taken after each loop step.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one Answer call.
type Run struct {
	ID                 string
	Question           string
	Status             Status
	Route              engine.Route        // termination route; empty unless done
	DecisionKind       engine.DecisionKind // kind of the last decision
	Answer             string
	Context            string
	Error              string
	ExplorationCounter int
	NumExplorations    int
	Tokens             int
	StartedAt          time.Time
	FinishedAt         time.Time // zero while running
}

// Snapshot is the state of a run right after one step.
type Snapshot struct {
	RunID     string
	Seq       int
	Step      engine.Step
	Round     int
	State     *engine.State
	CreatedAt time.Time
}

// Store is the sqlite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL allows readers (history commands) while a run is writing
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers well
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id              TEXT PRIMARY KEY,
		question            TEXT NOT NULL,
		status              TEXT NOT NULL,
		route               TEXT NOT NULL DEFAULT '',
		decision_kind       TEXT NOT NULL DEFAULT '',
		answer              TEXT NOT NULL DEFAULT '',
		context             TEXT NOT NULL DEFAULT '',
		error               TEXT NOT NULL DEFAULT '',
		exploration_counter INTEGER NOT NULL DEFAULT 0,
		num_explorations    INTEGER NOT NULL DEFAULT 0,
		tokens              INTEGER NOT NULL DEFAULT 0,
		started_at          INTEGER NOT NULL,
		finished_at         INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id     TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		step       TEXT NOT NULL,
		round      INTEGER NOT NULL,
		state      TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateRun inserts a running run for question and returns it.
func (s *Store) CreateRun(ctx context.Context, question string) (*Run, error) {
	r := &Run{
		ID:        uuid.NewString(),
		Question:  question,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, question, status, started_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.Question, r.Status, r.StartedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return r, nil
}

// FinishRun stores the outcome of a run. r.ID must exist.
func (s *Store) FinishRun(ctx context.Context, r *Run) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, route = ?, decision_kind = ?, answer = ?, context = ?, error = ?,
			exploration_counter = ?, num_explorations = ?, tokens = ?, finished_at = ?
		WHERE run_id = ?`,
		r.Status, r.Route, r.DecisionKind, r.Answer, r.Context, r.Error,
		r.ExplorationCounter, r.NumExplorations, r.Tokens, r.FinishedAt.UnixMilli(), r.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

// SaveSnapshot appends a state snapshot to a run.
func (s *Store) SaveSnapshot(ctx context.Context, runID string, step engine.Step, st *engine.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, seq, step, round, state, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots WHERE run_id = ?), ?, ?, ?, ?)`,
		runID, runID, step, st.ExplorationCounter, string(data), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

const runColumns = `run_id, question, status, route, decision_kind, answer, context, error,
	exploration_counter, num_explorations, tokens, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var started, finished int64
	if err := row.Scan(&r.ID, &r.Question, &r.Status, &r.Route, &r.DecisionKind, &r.Answer, &r.Context, &r.Error,
		&r.ExplorationCounter, &r.NumExplorations, &r.Tokens, &started, &finished); err != nil {
		return nil, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	if finished > 0 {
		r.FinishedAt = time.UnixMilli(finished).UTC()
	}
	return &r, nil
}

// GetRun loads a run by id. A unique id prefix is accepted too.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("empty run id: %w", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id = ? OR run_id LIKE ? ORDER BY run_id = ? DESC LIMIT 2`,
		id, stripLikeWildcards(id)+"%", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	case found[0].ID == id, len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Snapshots returns the snapshots of a run in step order.
func (s *Store) Snapshots(ctx context.Context, runID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, step, round, state, created_at FROM snapshots WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap := Snapshot{RunID: runID}
		var data string
		var created int64
		if err := rows.Scan(&snap.Seq, &snap.Step, &snap.Round, &data, &created); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.State = &engine.State{}
		if err := json.Unmarshal([]byte(data), snap.State); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %d: %w", snap.Seq, err)
		}
		snap.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, snap)
	}
	return out, rows.Err()
}

// stripLikeWildcards removes LIKE wildcards from a user supplied id prefix.
func stripLikeWildcards(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}
