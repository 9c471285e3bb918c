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
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/coherence/internal/resolution"
	"github.com/nvandessel/coherence/internal/scene"
	"github.com/nvandessel/coherence/internal/simulation"
)

var (
	// ErrRunNotFound is returned when no run matches an ID or prefix.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousID is returned when an ID prefix matches more than one run.
	ErrAmbiguousID = errors.New("ambiguous run ID prefix")
)

// Kind distinguishes the two kinds of recorded runs.
type Kind string

const (
	KindSimulate Kind = "simulate"
	KindResolve  Kind = "resolve"
)

// RunInfo describes a run when it begins.
type RunInfo struct {
	Kind     Kind
	Scenario string
	Seed     uint64
	Config   any
	Scene    scene.Scene
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID             string     `json:"id"`
	Kind           Kind       `json:"kind"`
	Scenario       string     `json:"scenario"`
	Seed           uint64     `json:"seed"`
	FinalCoherence *float64   `json:"final_coherence,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// CandidateRow is one persisted row of a candidate table.
type CandidateRow struct {
	resolution.Candidate
	Selected bool `json:"selected"`
}

// RunDetail is a run with everything recorded for it.
type RunDetail struct {
	RunSummary
	Config     json.RawMessage     `json:"config,omitempty"`
	SeedScene  scene.Scene         `json:"seed_scene"`
	FinalScene scene.Scene         `json:"final_scene,omitempty"`
	History    []simulation.Record `json:"history,omitempty"`
	Candidates []CandidateRow      `json:"candidates,omitempty"`
}

// RunStore records runs in a SQLite database.
type RunStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
	now    func() time.Time
	newID  func() string
}

// Open opens (creating if needed) the run store at dbPath.
func Open(dbPath string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &RunStore{db: db, dbPath: dbPath, now: time.Now, newID: uuid.NewString}, nil
}

// Path returns the database file path.
func (s *RunStore) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Run is an open run. It implements simulation.HistorySink and
// resolution.TableSink so it can be handed directly to the loop or the CLI.
type Run struct {
	ID    string
	store *RunStore
}

// BeginRun inserts a new run and returns a handle for recording into it.
func (s *RunStore) BeginRun(ctx context.Context, info RunInfo) (*Run, error) {
	configJSON, err := json.Marshal(info.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run config: %w", err)
	}
	seedJSON, err := marshalScene(info.Scene)
	if err != nil {
		return nil, err
	}

	id := s.newID()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, scenario, seed, config, seed_scene, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(info.Kind), info.Scenario, int64(info.Seed), string(configJSON), seedJSON,
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return &Run{ID: id, store: s}, nil
}

// RecordStep appends one history record.
func (r *Run) RecordStep(ctx context.Context, rec simulation.Record) error {
	added, err := marshalScene(rec.Added)
	if err != nil {
		return err
	}
	removed, err := marshalScene(rec.Removed)
	if err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO run_steps (run_id, step, size, coherence, action, added, removed, new_entity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, rec.Step, rec.Size, rec.Coherence, string(rec.Action), added, removed, nullString(string(rec.NewEntity)))
	if err != nil {
		return fmt.Errorf("failed to insert step %d: %w", rec.Step, err)
	}
	return nil
}

// RecordResolution stores the candidate table and marks the run finished
// with the selected candidate's scene.
func (r *Run) RecordResolution(ctx context.Context, result resolution.Result) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, c := range result.Candidates {
		primary, err := json.Marshal(c.Primary)
		if err != nil {
			return fmt.Errorf("failed to marshal primary distinction: %w", err)
		}
		aux, err := marshalScene(c.Auxiliary)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO candidates (run_id, position, aspect, family, derived_aspect, primary_distinction, auxiliary,
				coherence, baseline_coherence, delta, multiplier, score, selected)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, string(c.Aspect), string(c.Family), string(c.DerivedAspect), string(primary), aux,
			c.Coherence, c.BaselineCoherence, c.Delta, c.Multiplier, c.Score, boolToInt(i == result.Selected))
		if err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", c.Aspect, err)
		}
	}

	if len(result.Candidates) > 0 {
		best := result.Best()
		if err := r.finishTx(ctx, tx, best.Scene, best.Coherence); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Finish records the final scene of a simulate run.
func (r *Run) Finish(ctx context.Context, final scene.Scene, coherence float64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.finishTx(ctx, tx, final, coherence); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Run) finishTx(ctx context.Context, tx *sql.Tx, final scene.Scene, coherence float64) error {
	finalJSON, err := marshalScene(final)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE runs SET final_scene = ?, final_coherence = ?, finished_at = ? WHERE id = ?`,
		finalJSON, coherence, r.store.now().UTC().Format(time.RFC3339Nano), r.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, kind, scenario, seed, final_coherence, created_at, finished_at
		FROM runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, summary)
	}
	return runs, rows.Err()
}

// GetRun loads a run by full ID or unique ID prefix.
func (s *RunStore) GetRun(ctx context.Context, idOrPrefix string) (*RunDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, scenario, seed, final_coherence, created_at, finished_at, config, seed_scene, final_scene
		FROM runs WHERE id = ? OR id LIKE ? || '%' LIMIT 2`, idOrPrefix, idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var details []*RunDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	switch {
	case idOrPrefix == "" || len(details) == 0:
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, idOrPrefix)
	case len(details) > 1 && details[0].ID != idOrPrefix && details[1].ID != idOrPrefix:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousID, idOrPrefix)
	}
	detail := details[0]
	if len(details) > 1 && details[1].ID == idOrPrefix {
		detail = details[1]
	}

	if detail.History, err = s.loadHistory(ctx, detail.ID); err != nil {
		return nil, err
	}
	if detail.Candidates, err = s.loadCandidates(ctx, detail.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

// DeleteRun removes a run and everything recorded for it.
func (s *RunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return nil
}

func (s *RunStore) loadHistory(ctx context.Context, runID string) ([]simulation.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step, size, coherence, action, added, removed, new_entity
		FROM run_steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []simulation.Record
	for rows.Next() {
		var (
			rec            simulation.Record
			action         string
			added, removed sql.NullString
			newEntity      sql.NullString
		)
		if err := rows.Scan(&rec.Step, &rec.Size, &rec.Coherence, &action, &added, &removed, &newEntity); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		rec.Action = simulation.Action(action)
		rec.NewEntity = scene.Entity(newEntity.String)
		if rec.Added, err = unmarshalScene(added); err != nil {
			return nil, err
		}
		if rec.Removed, err = unmarshalScene(removed); err != nil {
			return nil, err
		}
		history = append(history, rec)
	}
	return history, rows.Err()
}

func (s *RunStore) loadCandidates(ctx context.Context, runID string) ([]CandidateRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT aspect, family, derived_aspect, primary_distinction, auxiliary,
			coherence, baseline_coherence, delta, multiplier, score, selected
		FROM candidates WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var out []CandidateRow
	for rows.Next() {
		var (
			row                              CandidateRow
			aspect, family, derived, primary string
			aux                              sql.NullString
			selected                         int
		)
		if err := rows.Scan(&aspect, &family, &derived, &primary, &aux,
			&row.Coherence, &row.BaselineCoherence, &row.Delta, &row.Multiplier, &row.Score, &selected); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		row.Aspect = scene.Aspect(aspect)
		row.Family = resolution.Family(family)
		row.DerivedAspect = scene.Aspect(derived)
		row.Selected = selected != 0
		if err := json.Unmarshal([]byte(primary), &row.Primary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal primary distinction: %w", err)
		}
		if row.Auxiliary, err = unmarshalScene(aux); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (RunSummary, error) {
	var (
		r              RunSummary
		kind           string
		seed           sql.NullInt64
		finalCoherence sql.NullFloat64
		createdAt      string
		finishedAt     sql.NullString
	)
	if err := row.Scan(&r.ID, &kind, &r.Scenario, &seed, &finalCoherence, &createdAt, &finishedAt); err != nil {
		return RunSummary{}, fmt.Errorf("failed to scan run: %w", err)
	}
	return fillSummary(r, kind, seed, finalCoherence, createdAt, finishedAt)
}

func scanDetail(row scanner) (*RunDetail, error) {
	var (
		r                     RunSummary
		kind                  string
		seed                  sql.NullInt64
		finalCoherence        sql.NullFloat64
		createdAt             string
		finishedAt            sql.NullString
		config                sql.NullString
		seedScene, finalScene sql.NullString
	)
	if err := row.Scan(&r.ID, &kind, &r.Scenario, &seed, &finalCoherence, &createdAt, &finishedAt,
		&config, &seedScene, &finalScene); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	summary, err := fillSummary(r, kind, seed, finalCoherence, createdAt, finishedAt)
	if err != nil {
		return nil, err
	}

	d := &RunDetail{RunSummary: summary}
	if config.Valid && config.String != "null" {
		d.Config = json.RawMessage(config.String)
	}
	if d.SeedScene, err = unmarshalScene(seedScene); err != nil {
		return nil, err
	}
	if d.FinalScene, err = unmarshalScene(finalScene); err != nil {
		return nil, err
	}
	return d, nil
}

func fillSummary(r RunSummary, kind string, seed sql.NullInt64, finalCoherence sql.NullFloat64, createdAt string, finishedAt sql.NullString) (RunSummary, error) {
	r.Kind = Kind(kind)
	if seed.Valid {
		r.Seed = uint64(seed.Int64)
	}
	if finalCoherence.Valid {
		c := finalCoherence.Float64
		r.FinalCoherence = &c
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	r.CreatedAt = t
	if finishedAt.Valid {
		ft, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return RunSummary{}, fmt.Errorf("failed to parse finished_at: %w", err)
		}
		r.FinishedAt = &ft
	}
	return r, nil
}

func marshalScene(sc []scene.Distinction) (string, error) {
	if sc == nil {
		sc = []scene.Distinction{}
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal distinctions: %w", err)
	}
	return string(data), nil
}

func unmarshalScene(s sql.NullString) (scene.Scene, error) {
	if !s.Valid || s.String == "" || s.String == "[]" {
		return nil, nil
	}
	var sc scene.Scene
	if err := json.Unmarshal([]byte(s.String), &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal distinctions: %w", err)
	}
	return sc, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
