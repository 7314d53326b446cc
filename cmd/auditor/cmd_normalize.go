package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auditor/internal/audit"
)

// runNormalize prints the canonical form of each argument.
func runNormalize(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, raw := range args {
		code, err := audit.Normalize(raw)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%q\t%s\n", raw, errorStyle.Render("invalid: "+err.Error()))
			continue
		}
		fmt.Fprintf(out, "%q\t%s\n", raw, code)
	}
	if failed > 0 {
		return &exitError{code: audit.ExitNormalizationFailure, err: fmt.Errorf("%d of %d code(s) did not normalize", failed, len(args))}
	}
	return nil
}
