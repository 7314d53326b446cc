package journal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	runsSheet    = "Runs"
	recordsSheet = "Records"
)

var (
	runsHeader    = []any{"Run", "Brand", "Dry run", "Status", "Exit code", "Records", "Code", "Message", "Stage", "Error", "Started", "Finished", "Duration (s)"}
	recordsHeader = []any{"Run", "Seq", "Disposition", "Outcome", "Code", "Reported", "Response", "Stage", "Error", "Elapsed (ms)", "At"}
)

// ExportXLSX writes the most recent runs and their records as a workbook with
// a Runs sheet and a Records sheet.
func (s *Store) ExportXLSX(ctx context.Context, w io.Writer, limit int) (err error) {
	runs, err := s.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", runsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeRow(f, runsSheet, 1, runsHeader); err != nil {
		return err
	}
	if err := writeRow(f, recordsSheet, 1, recordsHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(runsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetRowStyle(recordsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	recordRow := 2
	for i, r := range runs {
		row := []any{
			r.ID, r.Brand, r.DryRun, r.Status, r.ExitCode, r.Records, r.Code, r.Message, r.Stage, r.Error,
			formatTime(r.StartedAt), formatTime(r.FinishedAt), r.Duration().Seconds(),
		}
		if err := writeRow(f, runsSheet, i+2, row); err != nil {
			return err
		}

		records, err := s.Records(ctx, r.ID)
		if err != nil {
			return err
		}
		for _, rec := range records {
			row := []any{
				rec.RunID, rec.Seq, rec.Disposition, rec.Outcome, rec.Code, rec.Reported, rec.Response,
				rec.Stage, rec.Error, rec.Elapsed.Milliseconds(), formatTime(rec.CreatedAt),
			}
			if err := writeRow(f, recordsSheet, recordRow, row); err != nil {
				return err
			}
			recordRow++
		}
	}

	if err := f.SetPanes(runsSheet, frozenHeader()); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if err := f.SetPanes(recordsSheet, frozenHeader()); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func frozenHeader() *excelize.Panes {
	return &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
