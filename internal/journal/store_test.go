package journal

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"auditor/internal/audit"
	"auditor/internal/perception"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal", "auditor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditor.db")
	s, err := Open(path)
	require.NoError(t, err)
	s.RunStarted(context.Background(), audit.RunInfo{RunID: "run-1", Brand: "ACME", StartedAt: time.Now()})
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "running", runs[0].Status)
	assert.Equal(t, path, s.Path())
}

func TestStore_RecordsRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.RunStarted(ctx, audit.RunInfo{RunID: "run-1", Brand: "ACME", DryRun: true, MaxRecords: 5, StartedAt: started})
	assert.Equal(t, "run-1", s.CurrentRun())

	s.StateChanged(ctx, "run-1", audit.StateIdle, audit.StateLoggingIn)
	s.StateChanged(ctx, "run-1", audit.StateLoggingIn, audit.StateFiltering)

	matched := audit.Matched("83V1EAXU76")
	s.RecordAudited(ctx, "run-1", 1, audit.RecordReport{
		Disposition: audit.DispositionApproved,
		Outcome:     &matched,
		Response:    "[83V1EAXU76] value found",
		Reported:    "83V1EAXU76",
		Elapsed:     1500 * time.Millisecond,
	})
	s.RecordAudited(ctx, "run-1", 2, audit.RecordReport{
		Disposition: audit.DispositionFault,
		Stage:       audit.StageApprove,
		Err:         errors.New("approve button missing"),
	})

	require.NoError(t, s.RecordTrace(ctx, perception.Trace{
		ID: "t-1", SessionID: "tab", Purpose: "audit", Step: 1,
		PromptTokens: 100, OutputTokens: 10, Duration: 2 * time.Second, Success: true, Timestamp: started,
	}))
	require.NoError(t, s.RecordTrace(ctx, perception.Trace{
		ID: "t-2", SessionID: "tab", Purpose: "approve", Step: 2,
		PromptTokens: 50, OutputTokens: 5, Duration: time.Second, ErrorMessage: "timeout", Timestamp: started,
	}))

	s.RunFinished(ctx, audit.RunResult{
		RunID:      "run-1",
		Kind:       audit.ResultAbortedOnRecordFault,
		Brand:      "ACME",
		Records:    1,
		Stage:      audit.StageApprove,
		Message:    "approve button missing",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}, nil)
	assert.Empty(t, s.CurrentRun())

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "aborted_on_record_fault", run.Status)
	assert.Equal(t, audit.ExitRecordFault, run.ExitCode)
	assert.True(t, run.DryRun)
	assert.Equal(t, 5, run.MaxRecords)
	assert.Equal(t, 1, run.Records)
	assert.Equal(t, "approve", run.Stage)
	assert.Equal(t, time.Minute, run.Duration())
	assert.True(t, run.StartedAt.Equal(started))

	records, err := s.Records(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "approved", records[0].Disposition)
	assert.Equal(t, "matched", records[0].Outcome)
	assert.Equal(t, "83V1EAXU76", records[0].Code)
	assert.Equal(t, 1500*time.Millisecond, records[0].Elapsed)
	assert.Equal(t, "approve button missing", records[1].Error)
	assert.Empty(t, records[1].Outcome)

	changes, err := s.StateChanges(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, StateChange{From: "idle", To: "logging_in", At: changes[0].At}, changes[0])

	stats, err := s.TraceStats(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, TraceStats{Calls: 2, Failures: 1, PromptTokens: 150, OutputTokens: 15, Duration: 3 * time.Second}, stats)
}

func TestStore_RunFinishedWithError(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	s.RunStarted(ctx, audit.RunInfo{RunID: "run-2", Brand: "ACME", StartedAt: time.Now()})
	cancel()

	s.RunFinished(ctx, audit.RunResult{RunID: "run-2"}, errors.New("login: submit: context canceled"))

	run, err := s.GetRun(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Equal(t, "unexpected", run.Status)
	assert.Equal(t, audit.ExitUnexpected, run.ExitCode)
	assert.Equal(t, "login: submit: context canceled", run.Error)
	assert.False(t, run.FinishedAt.IsZero())
}

func TestStore_GetRunMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		s.RunStarted(ctx, audit.RunInfo{RunID: id, Brand: "ACME", StartedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestStore_ExportXLSX(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Now()
	s.RunStarted(ctx, audit.RunInfo{RunID: "run-1", Brand: "ACME", StartedAt: started})
	matched := audit.Matched("83V1EAXU76")
	s.RecordAudited(ctx, "run-1", 1, audit.RecordReport{Disposition: audit.DispositionApproved, Outcome: &matched})
	s.RunFinished(ctx, audit.RunResult{RunID: "run-1", Kind: audit.ResultCompleted, Records: 1, StartedAt: started, FinishedAt: started}, nil)

	var buf bytes.Buffer
	require.NoError(t, s.ExportXLSX(ctx, &buf, 10))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Runs", "Records"}, f.GetSheetList())

	runRows, err := f.GetRows("Runs")
	require.NoError(t, err)
	require.Len(t, runRows, 2)
	assert.Equal(t, "Run", runRows[0][0])
	assert.Equal(t, "run-1", runRows[1][0])
	assert.Equal(t, "completed", runRows[1][3])

	recordRows, err := f.GetRows("Records")
	require.NoError(t, err)
	require.Len(t, recordRows, 2)
	assert.Equal(t, "83V1EAXU76", recordRows[1][4])
}
