package audit

import (
	"context"
	"time"
)

// RunInfo describes a run as it starts.
type RunInfo struct {
	RunID      string
	Brand      string
	DryRun     bool
	MaxRecords int
	StartedAt  time.Time
}

// Observer receives run progress. Implementations must not block for long;
// they run on the orchestrator's goroutine between engine calls.
type Observer interface {
	RunStarted(ctx context.Context, info RunInfo)
	StateChanged(ctx context.Context, runID string, from, to State)
	RecordAudited(ctx context.Context, runID string, seq int, report RecordReport)
	RunFinished(ctx context.Context, result RunResult, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) RunStarted(context.Context, RunInfo)                      {}
func (NopObserver) StateChanged(context.Context, string, State, State)       {}
func (NopObserver) RecordAudited(context.Context, string, int, RecordReport) {}
func (NopObserver) RunFinished(context.Context, RunResult, error)            {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) RunStarted(ctx context.Context, info RunInfo) {
	for _, o := range m {
		o.RunStarted(ctx, info)
	}
}

func (m MultiObserver) StateChanged(ctx context.Context, runID string, from, to State) {
	for _, o := range m {
		o.StateChanged(ctx, runID, from, to)
	}
}

func (m MultiObserver) RecordAudited(ctx context.Context, runID string, seq int, report RecordReport) {
	for _, o := range m {
		o.RecordAudited(ctx, runID, seq, report)
	}
}

func (m MultiObserver) RunFinished(ctx context.Context, result RunResult, err error) {
	for _, o := range m {
		o.RunFinished(ctx, result, err)
	}
}
