package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// runConfigCheck validates the loaded configuration and prints it masked.
func runConfigCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	auditCfg, portalErr := cfg.Audit()
	engineErr := cfg.ValidateEngine()

	masked := auditCfg.Masked()
	section(out, "Portal")
	printField(out, "login url", masked.LoginURL)
	printField(out, "task list url", masked.TaskListURL)
	printField(out, "username", masked.Username)
	printField(out, "password", masked.Password)
	printField(out, "brand", masked.Brand)
	printField(out, "evidence", masked.EvidenceKey)
	printField(out, "row key", masked.RowKey)
	printField(out, "column", masked.ColumnHeader)

	section(out, "Models")
	printField(out, "provider", cfg.LLM.Provider)
	printField(out, "act model", cfg.LLM.ActModel)
	printField(out, "agent model", cfg.LLM.AgentModel)
	printField(out, "api key", maskSecret(cfg.LLM.APIKey))
	printField(out, "timeout", cfg.LLM.GetTimeout().String())

	section(out, "Browser")
	printField(out, "headless", fmt.Sprintf("%v", cfg.Browser.Headless))
	printField(out, "viewport", fmt.Sprintf("%dx%d", cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight))
	if cfg.Browser.DebuggerURL != "" {
		printField(out, "debugger", cfg.Browser.DebuggerURL)
	}

	section(out, "Journal")
	printField(out, "enabled", fmt.Sprintf("%v", cfg.Journal.Enabled))
	printField(out, "path", cfg.Journal.Path)

	if portalErr != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, errorStyle.Render("Configuration invalid:"))
		fmt.Fprintln(out, portalErr)
		return configError(nil)
	}
	if engineErr != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, errorStyle.Render("Configuration invalid:"))
		fmt.Fprintln(out, engineErr)
		return configError(nil)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, okStyle.Render("Configuration OK"))
	return nil
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", warnStyle.Render(title))
}

func printField(w io.Writer, label, value string) {
	if value == "" {
		value = "(unset)"
	}
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Width(14).Render(label), value)
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return "****" + s[len(s)-4:]
}
