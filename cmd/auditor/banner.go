package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"auditor/internal/audit"
)

var (
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// resultStyle picks the headline color for an exit status.
func resultStyle(code int) lipgloss.Style {
	switch code {
	case audit.ExitCompleted:
		return okStyle
	case audit.ExitEmptyQueue, audit.ExitNavigationFailure:
		return warnStyle
	default:
		return errorStyle
	}
}

// renderResult draws the end-of-run banner.
func renderResult(result audit.RunResult, runErr error) string {
	var (
		headline string
		code     int
		summary  string
	)
	if runErr != nil {
		code = audit.ExitUnexpected
		headline = "UNEXPECTED ERROR"
		summary = runErr.Error()
	} else {
		code = result.ExitCode()
		headline = strings.ToUpper(strings.ReplaceAll(result.Kind.String(), "_", " "))
		summary = result.Summary()
	}

	lines := []string{
		resultStyle(code).Render(headline),
		"",
		field("Summary", summary),
	}
	if result.Brand != "" {
		lines = append(lines, field("Brand", result.Brand))
	}
	if runErr == nil {
		lines = append(lines, field("Approved", fmt.Sprintf("%d", result.Records)))
	}
	if o := result.LastOutcome; o != nil {
		lines = append(lines, field("Last code", o.DisplayCode()))
	}
	if result.RunID != "" {
		lines = append(lines, field("Run", result.RunID))
	}
	if d := result.Duration(); d > 0 {
		lines = append(lines, field("Duration", d.Round(time.Second).String()))
	}
	lines = append(lines, field("Exit", fmt.Sprintf("%d", code)))

	return boxStyle.Render(strings.Join(lines, "\n"))
}

func field(label, value string) string {
	return labelStyle.Render(label) + " " + value
}
