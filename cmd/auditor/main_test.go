package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"auditor/internal/audit"
	"auditor/internal/journal"
	"auditor/internal/logging"
)

var portalEnv = []string{
	"PORTAL_LOGIN_URL", "PORTAL_TASK_URL", "PORTAL_USERNAME", "PORTAL_PASSWORD", "PORTAL_BRAND",
	"EVIDENCE_TO_CHECK", "TARGET_ROW_KEY", "TARGET_COLUMN_HEADER",
	"GEMINI_API_KEY", "GOOGLE_API_KEY", "AUDITOR_DB", "AUDITOR_LOG_LEVEL",
}

// isolate clears the environment the configuration reads and points the
// journal into a temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	for _, name := range portalEnv {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	t.Setenv("AUDITOR_DB", filepath.Join(dir, "journal.db"))
	logger = zap.NewNop()
	t.Cleanup(func() { logging.SetLogger(nil) })
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "auditor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

const fullConfig = `
portal:
  login_url: https://portal.example/login
  task_list_url: https://portal.example/tasks
  username: auditor@example.com
  password: hunter2hunter2
  brand: ACME
  evidence_key: LOT
  row_key: REF
  column_header: Evidence
llm:
  provider: gemini
  api_key: AIzaTESTKEY1234
`

// runCLI executes the root command with args and returns the exit status and
// combined output.
func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	rootCmd.SetArgs(args)
	var code int
	output := captureOutput(t, func() {
		code = execute()
	})
	return code, output
}

func TestNormalizeCommand(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "missing.yaml")

	code, out := runCLI(t, "normalize", "--config", cfgPath, "--env-file", "", "L-83V1EAXU76--1", "83V1EAXU76")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "\"L-83V1EAXU76--1\"\t83V1EAXU76")

	code, out = runCLI(t, "normalize", "--config", cfgPath, "--env-file", "", "83V1EAXU76", "ABC")
	assert.Equal(t, audit.ExitNormalizationFailure, code)
	assert.Contains(t, out, "invalid")
	assert.Contains(t, out, "1 of 2 code(s) did not normalize")
}

func TestConfigCheck(t *testing.T) {
	t.Run("missing portal settings", func(t *testing.T) {
		dir := isolate(t)
		code, out := runCLI(t, "config", "check", "--config", filepath.Join(dir, "none.yaml"), "--env-file", "")
		assert.Equal(t, audit.ExitConfig, code)
		assert.Contains(t, out, "Configuration invalid")
		assert.Contains(t, out, "PORTAL_LOGIN_URL")
	})

	t.Run("valid configuration is masked", func(t *testing.T) {
		dir := isolate(t)
		path := writeConfig(t, dir, fullConfig)
		code, out := runCLI(t, "config", "check", "--config", path, "--env-file", "")
		assert.Equal(t, 0, code)
		assert.Contains(t, out, "Configuration OK")
		assert.Contains(t, out, "ACME")
		assert.NotContains(t, out, "hunter2hunter2")
		assert.NotContains(t, out, "AIzaTESTKEY1234")
		assert.Contains(t, out, "****1234")
	})

	t.Run("dotenv supplies the password", func(t *testing.T) {
		dir := isolate(t)
		path := writeConfig(t, dir, strings.Replace(fullConfig, "  password: hunter2hunter2\n", "", 1))
		envPath := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(envPath, []byte("PORTAL_PASSWORD=fromdotenv\n"), 0600))

		code, out := runCLI(t, "config", "check", "--config", path, "--env-file", envPath)
		assert.Equal(t, 0, code)
		assert.NotContains(t, out, "fromdotenv")
		assert.Contains(t, out, "********")
	})
}

func TestRunRejectsIncompleteConfig(t *testing.T) {
	dir := isolate(t)
	code, out := runCLI(t, "run", "--config", filepath.Join(dir, "none.yaml"), "--env-file", "")
	assert.Equal(t, audit.ExitConfig, code)
	assert.Contains(t, out, "required configuration missing")
}

func TestRunRequiresAPIKey(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, strings.Replace(fullConfig, "  api_key: AIzaTESTKEY1234\n", "", 1))
	code, out := runCLI(t, "run", "--config", path, "--env-file", "")
	assert.Equal(t, audit.ExitConfig, code)
	assert.Contains(t, out, "API key")
}

func TestHistoryCommands(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "none.yaml")

	code, out := runCLI(t, "history", "--config", cfgPath, "--env-file", "")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No runs recorded")

	store, err := journal.Open(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	ctx := context.Background()
	started := time.Now().Add(-time.Minute)
	store.RunStarted(ctx, audit.RunInfo{RunID: "3f2a-run", Brand: "ACME", StartedAt: started})
	matched := audit.Matched("83V1EAXU76")
	store.RecordAudited(ctx, "3f2a-run", 1, audit.RecordReport{
		Disposition: audit.DispositionApproved, Outcome: &matched, Reported: "L-83V1EAXU76--1",
	})
	store.RunFinished(ctx, audit.RunResult{
		RunID: "3f2a-run", Kind: audit.ResultAbortedOnMismatch, Code: "ZZZZZZZZZZ", Records: 1,
		StartedAt: started, FinishedAt: time.Now(),
	}, nil)
	require.NoError(t, store.Close())

	code, out = runCLI(t, "history", "--config", cfgPath, "--env-file", "", "--limit", "5")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "3f2a-run")
	assert.Contains(t, out, "aborted_on_mismatch")

	code, out = runCLI(t, "history", "show", "3f2a-run", "--config", cfgPath, "--env-file", "")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "ZZZZZZZZZZ")
	assert.Contains(t, out, "L-83V1EAXU76--1")

	code, out = runCLI(t, "history", "show", "nope", "--config", cfgPath, "--env-file", "")
	assert.Equal(t, audit.ExitUnexpected, code)
	assert.Contains(t, out, "run not found")

	xlsx := filepath.Join(dir, "history.xlsx")
	code, out = runCLI(t, "history", "export", xlsx, "--config", cfgPath, "--env-file", "")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Exported journal")

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Records")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRenderResult(t *testing.T) {
	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	matched := audit.Matched("83V1EAXU76")

	tests := []struct {
		name   string
		result audit.RunResult
		err    error
		want   []string
	}{
		{
			name: "completed",
			result: audit.RunResult{
				RunID: "r1", Kind: audit.ResultCompleted, Brand: "ACME", Records: 3, LastOutcome: &matched,
				StartedAt: started, FinishedAt: started.Add(90 * time.Second),
			},
			want: []string{"COMPLETED", "completed after 3 record(s)", "83V1EAXU76", "1m30s", "Exit", "0"},
		},
		{
			name:   "mismatch",
			result: audit.RunResult{Kind: audit.ResultAbortedOnMismatch, Code: "ABCDEFGHIJ"},
			want:   []string{"ABORTED ON MISMATCH", "value ABCDEFGHIJ not found", "12"},
		},
		{
			name: "unexpected",
			err:  errors.New("login: username: context canceled"),
			want: []string{"UNEXPECTED ERROR", "login: username: context canceled"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderResult(tt.result, tt.err)
			for _, want := range tt.want {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := configError(inner)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, "exit status 14", (&exitError{code: 14}).Error())
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "****WXYZ", maskSecret("ABCDWXYZ"))
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}
