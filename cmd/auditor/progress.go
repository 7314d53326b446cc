package main

import (
	"context"

	"go.uber.org/zap"

	"auditor/internal/audit"
)

// progressObserver reports run progress through the command logger.
type progressObserver struct {
	log *zap.Logger
}

func (p progressObserver) RunStarted(_ context.Context, info audit.RunInfo) {
	p.log.Info("run started",
		zap.String("run_id", info.RunID),
		zap.String("brand", info.Brand),
		zap.Bool("dry_run", info.DryRun),
		zap.Int("max_records", info.MaxRecords),
	)
}

func (p progressObserver) StateChanged(_ context.Context, runID string, from, to audit.State) {
	p.log.Debug("state changed",
		zap.String("run_id", runID),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

func (p progressObserver) RecordAudited(_ context.Context, runID string, seq int, report audit.RecordReport) {
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.Int("seq", seq),
		zap.Stringer("disposition", report.Disposition),
		zap.Duration("elapsed", report.Elapsed),
	}
	if report.Outcome != nil {
		fields = append(fields, zap.String("code", report.Outcome.DisplayCode()))
	}
	if report.Err != nil {
		fields = append(fields, zap.String("stage", report.Stage), zap.Error(report.Err))
		p.log.Warn("record failed", fields...)
		return
	}
	p.log.Info("record audited", fields...)
}

// RunFinished is a no-op; runAudit logs the final result itself.
func (p progressObserver) RunFinished(context.Context, audit.RunResult, error) {}
