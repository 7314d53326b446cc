package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"auditor/internal/audit"
	"auditor/internal/config"
	"auditor/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	envFile    string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// exitError carries a process exit status out of a command. A nil err means
// the command already reported what happened.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// configError marks a configuration problem (exit status 2).
func configError(err error) error {
	return &exitError{code: audit.ExitConfig, err: err}
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "auditor",
	Short: "Approve portal records whose evidence carries the expected code",
	Long: `auditor logs in to the records portal, filters the task list by brand and
walks the records one by one. For each record a vision model inspects the
evidence, the reported code is normalized and matched, and the record is
approved. The first mismatch or unclear answer stops the run.

Exit status reflects the outcome:
  0  completed          11 task list empty
  1  unexpected error   12 mismatch
  2  configuration      13 ambiguous answer
  10 no record to open  14 normalize: code not canonical
                        15 record step failed`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadWithEnvFile(configPath, envFile)
		if err != nil {
			return configError(err)
		}

		opts := logging.Options{
			Level: cfg.Logging.Level,
			JSON:  cfg.Logging.JSON,
			Dir:   cfg.Logging.Dir,
		}
		if verbose {
			opts.Level = "debug"
		}
		logger, err = logging.Initialize(opts)
		if err != nil {
			return configError(fmt.Errorf("failed to initialize logger: %w", err))
		}
		logging.Boot("auditor starting: command=%s", cmd.CommandPath())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

// runCmd performs one audit run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit and approve the brand's pending records",
	Long: `Runs the full audit: login, brand filter, then the record loop until the
queue drains, a record fails validation, or --max-records approvals are done.

Example:
  auditor run --env-file .env --headless
  auditor run --dry-run       # audit the first record without approving it`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

// normalizeCmd validates reference codes offline
var normalizeCmd = &cobra.Command{
	Use:   "normalize [raw]...",
	Short: "Normalize reported codes to their canonical form",
	Long: `Applies the code normalization used during audits and prints one line per
argument. Exits non-zero if any argument fails.

Example:
  auditor normalize "L-83V1EAXU76--1" "ABC"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNormalize,
}

// configCmd groups configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print it with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigCheck,
}

// historyCmd lists journaled runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the journal",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run with its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyExportCmd = &cobra.Command{
	Use:   "export [file.xlsx]",
	Short: "Export recent runs and records to an Excel workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "auditor.yaml", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with portal credentials")

	// Run flags
	runCmd.Flags().IntVar(&runFlags.maxRecords, "max-records", 0, "Stop after this many approvals (0 = until the queue drains)")
	runCmd.Flags().BoolVar(&runFlags.headless, "headless", false, "Run Chrome without a window")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "Audit the first record and stop before approving")

	// History flags
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs")

	configCmd.AddCommand(configCheckCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	os.Exit(execute())
}

// execute runs the root command and maps its error to an exit status.
func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return audit.ExitUnexpected
}
