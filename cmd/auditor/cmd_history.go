package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"auditor/internal/journal"
)

var historyLimit int

func openJournal() (*journal.Store, error) {
	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, configError(err)
	}
	return store, nil
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(commandContext(cmd), historyLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs recorded in %s\n", store.Path())
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "STARTED", "BRAND", "STATUS", "APPROVED", "EXIT", "DURATION")
	for _, r := range runs {
		exit := "-"
		if r.Status != "running" {
			exit = strconv.Itoa(r.ExitCode)
		}
		t.Row(
			r.ID,
			formatStarted(r.StartedAt),
			r.Brand,
			r.Status,
			strconv.Itoa(r.Records),
			exit,
			r.Duration().Round(time.Second).String(),
		)
	}
	fmt.Fprintln(out, t.Render())
	return nil
}

// runHistoryShow prints one run with its records and model usage.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := commandContext(cmd)
	run, err := store.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	records, err := store.Records(ctx, run.ID)
	if err != nil {
		return err
	}
	stats, err := store.TraceStats(ctx, run.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resultStyle(run.ExitCode).Render(run.Status))
	printField(out, "run", run.ID)
	printField(out, "brand", run.Brand)
	printField(out, "started", formatStarted(run.StartedAt))
	printField(out, "duration", run.Duration().Round(time.Second).String())
	printField(out, "approved", strconv.Itoa(run.Records))
	if run.Code != "" {
		printField(out, "code", run.Code)
	}
	if run.Message != "" {
		printField(out, "message", run.Message)
	}
	if run.Stage != "" {
		printField(out, "stage", run.Stage)
	}
	if run.Error != "" {
		printField(out, "error", run.Error)
	}
	printField(out, "model calls", fmt.Sprintf("%d (%d failed, %d+%d tokens)", stats.Calls, stats.Failures, stats.PromptTokens, stats.OutputTokens))

	if len(records) == 0 {
		return nil
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "DISPOSITION", "OUTCOME", "CODE", "REPORTED", "ELAPSED")
	for _, rec := range records {
		t.Row(
			strconv.Itoa(rec.Seq),
			rec.Disposition,
			rec.Outcome,
			rec.Code,
			rec.Reported,
			rec.Elapsed.Round(time.Millisecond).String(),
		)
	}
	fmt.Fprintln(out, t.Render())
	return nil
}

// runHistoryExport writes the journal to an Excel workbook.
func runHistoryExport(cmd *cobra.Command, args []string) (err error) {
	store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[0], err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := store.ExportXLSX(commandContext(cmd), f, historyLimit); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported journal to %s\n", args[0])
	return nil
}

func formatStarted(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
