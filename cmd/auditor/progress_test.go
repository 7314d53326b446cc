package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"auditor/internal/audit"
)

func TestProgressObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var obs audit.Observer = audit.MultiObserver{progressObserver{log: zap.New(core)}}
	ctx := context.Background()

	obs.RunStarted(ctx, audit.RunInfo{RunID: "run-1", Brand: "ACME", MaxRecords: 3})
	obs.StateChanged(ctx, "run-1", audit.StateFiltering, audit.StateLooping)
	matched := audit.Matched("83V1EAXU76")
	obs.RecordAudited(ctx, "run-1", 1, audit.RecordReport{Disposition: audit.DispositionApproved, Outcome: &matched})
	obs.RecordAudited(ctx, "run-1", 2, audit.RecordReport{
		Disposition: audit.DispositionFault,
		Stage:       audit.StageApprove,
		Err:         errors.New("approve button missing"),
	})
	obs.RunFinished(ctx, audit.RunResult{RunID: "run-1"}, nil)

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, "run started", entries[0].Message)
	assert.Equal(t, "ACME", entries[0].ContextMap()["brand"])

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, "looping", entries[1].ContextMap()["to"])

	assert.Equal(t, "record audited", entries[2].Message)
	assert.Equal(t, "83V1EAXU76", entries[2].ContextMap()["code"])
	assert.Equal(t, "approved", entries[2].ContextMap()["disposition"])

	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
	assert.Equal(t, "approve", entries[3].ContextMap()["stage"])
	assert.Equal(t, "approve button missing", entries[3].ContextMap()["error"])
}
