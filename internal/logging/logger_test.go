package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGet_UsesCategoryName(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Get(CategoryAudit).Info("record %d approved", 3)
	BrowserWarn("page %s slow", "list")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, "record 3 approved", entries[0].Message)
	assert.Equal(t, "browser", entries[1].LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestGet_CachesPerCategory(t *testing.T) {
	SetLogger(zap.NewNop())
	t.Cleanup(func() { SetLogger(nil) })

	assert.Same(t, Get(CategoryJournal), Get(CategoryJournal))
	assert.NotSame(t, Get(CategoryJournal), Get(CategoryBoot))
}

func TestWith_AddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Get(CategoryAudit).With("run_id", "r-1").Info("started")

	entries := logs.FilterField(zap.String("run_id", "r-1")).AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "started", entries[0].Message)
}

func TestInitialize_ConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	_, err := Initialize(Options{Level: "debug", Dir: dir, Console: &console})
	require.NoError(t, err)
	t.Cleanup(func() {
		CloseAll()
		SetLogger(nil)
	})

	Get(CategoryBoot).Debug("hello %s", "file")
	Sync()

	assert.Contains(t, console.String(), "hello file")

	name := time.Now().Format("2006-01-02") + "_auditor.log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello file"`)
	assert.Contains(t, string(data), `"logger":"boot"`)
}

func TestInitialize_LevelFilters(t *testing.T) {
	var console bytes.Buffer
	_, err := Initialize(Options{Level: "warn", JSON: true, Console: &console})
	require.NoError(t, err)
	t.Cleanup(func() { SetLogger(nil) })

	Get(CategoryAudit).Info("quiet")
	Get(CategoryAudit).Warn("loud")
	Sync()

	out := console.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "JSON encoder expected")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestTimer_StopWithThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	timer := StartTimer(CategoryPerception, "plan")
	elapsed := timer.StopWithThreshold(-1)

	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "plan took")
}

func TestUninitialized_IsNoop(t *testing.T) {
	SetLogger(nil)
	assert.NotPanics(t, func() {
		Get(CategoryAudit).Error("nobody hears this")
		Sync()
	})
}
