package journal

import (
	"context"
	"time"

	"auditor/internal/audit"
	"auditor/internal/logging"
	"auditor/internal/perception"
)

var (
	_ audit.Observer       = (*Store)(nil)
	_ perception.TraceSink = (*Store)(nil)
)

// statusRunning marks a run that has not reported a result yet.
const statusRunning = "running"

// statusUnexpected marks a run that ended with an error instead of a result.
const statusUnexpected = "unexpected"

// RunStarted records a new run and makes it the current one.
func (s *Store) RunStarted(ctx context.Context, info audit.RunInfo) {
	s.setCurrentRun(info.RunID)
	_, err := s.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO runs (id, brand, dry_run, max_records, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		info.RunID, info.Brand, boolInt(info.DryRun), info.MaxRecords, statusRunning, toMillis(info.StartedAt),
	)
	if err != nil {
		s.warn("record run start", err)
	}
}

// StateChanged records a state transition.
func (s *Store) StateChanged(ctx context.Context, runID string, from, to audit.State) {
	_, err := s.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO state_changes (run_id, from_state, to_state, at)
		VALUES (?, ?, ?, ?)`,
		runID, from.String(), to.String(), time.Now().UnixMilli(),
	)
	if err != nil {
		s.warn("record state change", err)
	}
}

// RecordAudited records one processed record.
func (s *Store) RecordAudited(ctx context.Context, runID string, seq int, report audit.RecordReport) {
	var outcome, code string
	if report.Outcome != nil {
		outcome = report.Outcome.Kind.String()
		code = string(report.Outcome.Code)
	}
	var errText string
	if report.Err != nil {
		errText = report.Err.Error()
	}

	_, err := s.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT OR REPLACE INTO records
		(run_id, seq, disposition, outcome, code, reported, response, stage, error, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, report.Disposition.String(), outcome, code, report.Reported, report.Response,
		report.Stage, errText, report.Elapsed.Milliseconds(), time.Now().UnixMilli(),
	)
	if err != nil {
		s.warn("record audited record", err)
	}
}

// RunFinished stores the run's result and clears the current run.
func (s *Store) RunFinished(ctx context.Context, result audit.RunResult, runErr error) {
	defer s.setCurrentRun("")

	status := result.Kind.String()
	exitCode := result.ExitCode()
	var errText string
	if runErr != nil {
		status = statusUnexpected
		exitCode = audit.ExitUnexpected
		errText = runErr.Error()
	}

	finished := result.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err := s.db.ExecContext(context.WithoutCancel(ctx), `
		UPDATE runs
		SET status = ?, exit_code = ?, records = ?, code = ?, message = ?, stage = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		status, exitCode, result.Records, result.Code, result.Message, result.Stage, errText,
		finished.UnixMilli(), result.RunID,
	)
	if err != nil {
		s.warn("record run result", err)
	}
}

// RecordTrace implements perception.TraceSink. Traces are attributed to the
// current run.
func (s *Store) RecordTrace(ctx context.Context, trace perception.Trace) error {
	_, err := s.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT OR REPLACE INTO model_traces
		(id, run_id, session_id, purpose, step, system_prompt, prompt, response, model,
		 prompt_tokens, output_tokens, duration_ms, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.ID, s.CurrentRun(), trace.SessionID, trace.Purpose, trace.Step,
		trace.System, trace.Prompt, trace.Response, trace.Model,
		trace.PromptTokens, trace.OutputTokens, trace.Duration.Milliseconds(),
		boolInt(trace.Success), trace.ErrorMessage, toMillis(trace.Timestamp),
	)
	return err
}

// warn logs a failed write. Journal failures never stop a run.
func (s *Store) warn(what string, err error) {
	logging.JournalWarn("failed to %s: %v", what, err)
}
