package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"auditor/internal/audit"
	"auditor/internal/browser"
	"auditor/internal/config"
	"auditor/internal/journal"
	"auditor/internal/logging"
	"auditor/internal/perception"
)

var runFlags struct {
	maxRecords int
	headless   bool
	dryRun     bool
}

// runAudit wires the browser, models and journal and performs one run.
func runAudit(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd, cfg)

	auditCfg, err := cfg.Audit()
	if err != nil {
		return configError(err)
	}
	if err := cfg.ValidateEngine(); err != nil {
		return configError(err)
	}
	timing := audit.Timing(cfg.Timing.Durations())

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRunDeps(ctx, cfg, auditCfg)
	if err != nil {
		return &exitError{code: audit.ExitUnexpected, err: err}
	}
	defer rt.close()

	logging.Boot("run configured: %+v", auditCfg.Masked())

	orch := audit.NewOrchestrator(auditCfg, rt.opener, audit.Options{
		Timing:     &timing,
		Observer:   rt.observer,
		MaxRecords: cfg.Run.MaxRecords,
		DryRun:     cfg.Run.DryRun,
	})
	result, runErr := orch.Run(ctx)

	logger.Info("run finished",
		zap.String("run_id", result.RunID),
		zap.Stringer("result", result.Kind),
		zap.Int("records", result.Records),
		zap.Duration("duration", result.Duration()),
		zap.Error(runErr),
	)
	fmt.Fprintln(cmd.OutOrStdout(), renderResult(result, runErr))

	if runErr != nil {
		return &exitError{code: audit.ExitUnexpected}
	}
	if code := result.ExitCode(); code != audit.ExitCompleted {
		return &exitError{code: code}
	}
	return nil
}

// applyRunFlags lets explicitly set flags win over the configuration.
func applyRunFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("headless") {
		c.Browser.Headless = runFlags.headless
	}
	if flags.Changed("max-records") {
		c.Run.MaxRecords = runFlags.maxRecords
	}
	if flags.Changed("dry-run") {
		c.Run.DryRun = runFlags.dryRun
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// runDeps holds everything a run needs that must be released afterwards.
type runDeps struct {
	manager  *browser.SessionManager
	journal  *journal.Store
	opener   audit.Opener
	observer audit.Observer
}

func newRunDeps(ctx context.Context, c *config.Config, auditCfg config.AuditConfig) (*runDeps, error) {
	rt := &runDeps{}
	observers := audit.MultiObserver{progressObserver{log: logger}}

	// A journal that cannot be opened is reported but does not block the run.
	var sink perception.TraceSink
	if c.Journal.Enabled {
		store, err := journal.Open(c.Journal.Path)
		if err != nil {
			logging.BootWarn("journal disabled: %v", err)
		} else {
			rt.journal = store
			observers = append(observers, store)
			sink = store
		}
	}
	rt.observer = observers

	secrets := append(auditCfg.Secrets(), c.LLM.APIKey)

	act, err := perception.NewGeminiModel(ctx, perception.GeminiOptions{
		APIKey:      c.LLM.APIKey,
		Model:       c.LLM.ActModel,
		Temperature: c.LLM.Temperature,
		Timeout:     c.LLM.GetTimeout(),
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	agent, err := perception.NewGeminiModel(ctx, perception.GeminiOptions{
		APIKey:      c.LLM.APIKey,
		Model:       c.LLM.AgentModel,
		Temperature: c.LLM.Temperature,
		Timeout:     c.LLM.GetTimeout(),
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	tracedAct := perception.NewTracingModel(act, sink, secrets)
	tracedAgent := perception.NewTracingModel(agent, sink, secrets)

	rt.manager = browser.NewSessionManager(browserConfig(c.Browser))
	rt.opener = &perception.Opener{
		Manager: rt.manager,
		Act:     tracedAct,
		Agent:   tracedAgent,
		Options: perception.EngineOptions{
			AgentSteps: c.LLM.GetMaxAgentSteps(),
			Variables:  map[string]string{"password": auditCfg.Password},
		},
		Traced: []*perception.TracingModel{tracedAct, tracedAgent},
	}
	return rt, nil
}

func browserConfig(c config.BrowserConfig) browser.Config {
	return browser.Config{
		DebuggerURL:       c.DebuggerURL,
		Bin:               c.Bin,
		Headless:          c.Headless,
		ViewportWidth:     c.ViewportWidth,
		ViewportHeight:    c.ViewportHeight,
		NavigationTimeout: c.GetNavigationTimeout(),
	}
}

func (rt *runDeps) close() {
	if rt.manager != nil {
		if err := rt.manager.Shutdown(context.Background()); err != nil {
			logging.BootWarn("browser shutdown: %v", err)
		}
	}
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			logging.BootWarn("journal close: %v", err)
		}
	}
}
