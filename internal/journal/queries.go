package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when no run matches an id.
var ErrRunNotFound = errors.New("run not found")

// Run is a journaled run.
type Run struct {
	ID         string
	Brand      string
	DryRun     bool
	MaxRecords int
	// Status is the result kind name, "running" or "unexpected".
	Status     string
	ExitCode   int
	Records    int
	Code       string
	Message    string
	Stage      string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is zero for an unfinished run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Record is one journaled record.
type Record struct {
	RunID       string
	Seq         int
	Disposition string
	Outcome     string
	Code        string
	Reported    string
	Response    string
	Stage       string
	Error       string
	Elapsed     time.Duration
	CreatedAt   time.Time
}

// StateChange is one journaled transition.
type StateChange struct {
	From string
	To   string
	At   time.Time
}

const runColumns = `id, brand, dry_run, max_records, status, exit_code, records, code, message, stage, error, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r        Run
		exitCode sql.NullInt64
		started  sql.NullInt64
		finished sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Brand, &r.DryRun, &r.MaxRecords, &r.Status, &exitCode,
		&r.Records, &r.Code, &r.Message, &r.Stage, &r.Error, &started, &finished); err != nil {
		return Run{}, err
	}
	r.ExitCode = int(exitCode.Int64)
	r.StartedAt = fromMillis(started)
	r.FinishedAt = fromMillis(finished)
	return r, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means 50.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun looks a run up by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return r, nil
}

// Records returns a run's records in processing order.
func (s *Store) Records(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, disposition, outcome, code, reported, response, stage, error, elapsed_ms, created_at
		FROM records
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			elapsedMs int64
			created   sql.NullInt64
		)
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Disposition, &rec.Outcome, &rec.Code, &rec.Reported,
			&rec.Response, &rec.Stage, &rec.Error, &elapsedMs, &created); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		rec.CreatedAt = fromMillis(created)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StateChanges returns a run's transitions in order.
func (s *Store) StateChanges(ctx context.Context, runID string) ([]StateChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_state, to_state, at FROM state_changes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list state changes: %w", err)
	}
	defer rows.Close()

	var changes []StateChange
	for rows.Next() {
		var (
			c  StateChange
			at sql.NullInt64
		)
		if err := rows.Scan(&c.From, &c.To, &at); err != nil {
			return nil, fmt.Errorf("failed to scan state change: %w", err)
		}
		c.At = fromMillis(at)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// TraceStats summarizes the model traces of a run.
type TraceStats struct {
	Calls        int
	Failures     int
	PromptTokens int
	OutputTokens int
	Duration     time.Duration
}

// TraceStats aggregates the model traces recorded for a run.
func (s *Store) TraceStats(ctx context.Context, runID string) (TraceStats, error) {
	var (
		st         TraceStats
		durationMs int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(duration_ms), 0)
		FROM model_traces WHERE run_id = ?`, runID).
		Scan(&st.Calls, &st.Failures, &st.PromptTokens, &st.OutputTokens, &durationMs)
	if err != nil {
		return TraceStats{}, fmt.Errorf("failed to aggregate traces: %w", err)
	}
	st.Duration = time.Duration(durationMs) * time.Millisecond
	return st, nil
}
