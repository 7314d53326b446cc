package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"auditor/internal/config"
	"auditor/internal/logging"
)

// State is a phase of a run.
type State int

const (
	StateIdle State = iota
	StateLoggingIn
	StateFiltering
	StateEmptyQueue
	StateLooping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoggingIn:
		return "logging_in"
	case StateFiltering:
		return "filtering"
	case StateEmptyQueue:
		return "empty_queue"
	case StateLooping:
		return "looping"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrSessionOpen wraps failures to create the automation session.
var ErrSessionOpen = errors.New("failed to open session")

// Options tunes an Orchestrator. The zero value uses DefaultTiming,
// FixedDelay and no observer.
type Options struct {
	Timing   *Timing
	Settler  Settler
	Observer Observer

	// MaxRecords ends the loop with Completed after this many approvals.
	MaxRecords int
	// DryRun stops at the first match without approving it.
	DryRun bool
}

// Orchestrator drives one audit run: login, brand filter and the record loop.
type Orchestrator struct {
	cfg        config.AuditConfig
	opener     Opener
	timing     Timing
	settler    Settler
	observer   Observer
	processor  *RecordProcessor
	maxRecords int
	dryRun     bool
	log        *logging.Logger

	state State
}

// NewOrchestrator creates an orchestrator for cfg. Sessions come from opener.
func NewOrchestrator(cfg config.AuditConfig, opener Opener, opts Options) *Orchestrator {
	timing := DefaultTiming()
	if opts.Timing != nil {
		timing = *opts.Timing
	}
	settler := opts.Settler
	if settler == nil {
		settler = FixedDelay{}
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	return &Orchestrator{
		cfg:        cfg,
		opener:     opener,
		timing:     timing,
		settler:    settler,
		observer:   observer,
		processor:  NewRecordProcessor(cfg, timing, settler, opts.DryRun),
		maxRecords: opts.MaxRecords,
		dryRun:     opts.DryRun,
		log:        logging.Get(logging.CategoryAudit),
	}
}

// State returns the current phase. It is only meaningful from the goroutine
// running Run, or after Run returned.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the whole audit and returns its result.
//
// A non-nil error means the run could not produce a result: a login or
// filter step failed, the session could not be opened, ctx ended, or an
// unexpected panic was recovered. Every record-level failure is a RunResult.
// The session is closed exactly once on every path.
func (o *Orchestrator) Run(ctx context.Context) (result RunResult, err error) {
	runID := uuid.NewString()
	started := time.Now()
	log := o.log.With("run_id", runID)

	o.state = StateIdle
	o.observer.RunStarted(ctx, RunInfo{
		RunID:      runID,
		Brand:      o.cfg.Brand,
		DryRun:     o.dryRun,
		MaxRecords: o.maxRecords,
		StartedAt:  started,
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected fault in %s: %v", o.state, r)
		}
		if err != nil {
			result = RunResult{}
		}
		result.RunID = runID
		result.StartedAt = started
		result.FinishedAt = time.Now()
		o.transition(ctx, runID, StateTerminated)
		if err != nil {
			log.Error("run failed after %v: %v", result.Duration(), err)
		} else {
			log.Info("run finished after %v: %s", result.Duration(), result.Summary())
		}
		o.observer.RunFinished(ctx, result, err)
	}()

	session, err := o.opener.Open(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("%w: %w", ErrSessionOpen, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logging.SessionWarn("session close: %v", cerr)
		}
	}()

	o.transition(ctx, runID, StateLoggingIn)
	if err := o.login(ctx, session); err != nil {
		return RunResult{}, fmt.Errorf("login: %w", err)
	}

	o.transition(ctx, runID, StateFiltering)
	report, err := o.filter(ctx, session)
	if err != nil {
		return RunResult{}, fmt.Errorf("filter: %w", err)
	}
	if report == FilterEmptyQueue {
		o.transition(ctx, runID, StateEmptyQueue)
		return RunResult{Kind: ResultEmptyQueue, Brand: o.cfg.Brand}, nil
	}
	if err := o.settler.Settle(ctx, o.timing.ListSettle, "filtered list"); err != nil {
		return RunResult{}, err
	}

	o.transition(ctx, runID, StateLooping)
	return o.loop(ctx, runID, session)
}

func (o *Orchestrator) login(ctx context.Context, session Session) error {
	if err := session.Navigate(ctx, o.cfg.LoginURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}

	steps := []struct {
		name        string
		instruction string
		settle      time.Duration
	}{
		{"enter username", usernameInstruction(o.cfg.Username), o.timing.FieldSettle},
		{"enter password", passwordInstruction(), o.timing.FieldSettle},
		{"submit", submitLoginInstruction, o.timing.LoginSettle},
	}
	for _, step := range steps {
		if err := session.Perform(ctx, step.instruction, o.timing.ActTimeout); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		if err := o.settler.Settle(ctx, step.settle, step.name); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) filter(ctx context.Context, session Session) (FilterReport, error) {
	if err := session.Navigate(ctx, o.cfg.TaskListURL); err != nil {
		return FilterRowsVisible, fmt.Errorf("navigate: %w", err)
	}
	res, err := session.RunTask(ctx, FilterTask(o.cfg.Brand))
	if err != nil {
		return FilterRowsVisible, err
	}
	report := ParseFilterReport(res.Message)
	if report == FilterEmptyQueue {
		o.log.Info("no pending tasks for brand %s", o.cfg.Brand)
	}
	return report, nil
}

// loop processes records until one of them ends the run. Each iteration
// either approves a record or terminates, so it runs at most
// approvals+1 times.
func (o *Orchestrator) loop(ctx context.Context, runID string, session Session) (RunResult, error) {
	var (
		approved int
		last     *Outcome
	)

	for seq := 1; ; seq++ {
		if o.maxRecords > 0 && approved >= o.maxRecords {
			o.log.Info("record limit %d reached", o.maxRecords)
			return RunResult{Kind: ResultCompleted, Records: approved, LastOutcome: last}, nil
		}
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		report, err := o.processor.Process(ctx, session)
		if err != nil {
			return RunResult{}, fmt.Errorf("record %d: %w", seq, err)
		}
		o.observer.RecordAudited(ctx, runID, seq, report)
		if report.Outcome != nil {
			last = report.Outcome
		}

		switch report.Disposition {
		case DispositionApproved:
			approved++
			o.log.Info("record %d approved (%s), %d so far", seq, report.Outcome.Code, approved)
			continue

		case DispositionHeld:
			return RunResult{Kind: ResultCompleted, Records: approved + 1, LastOutcome: last}, nil

		case DispositionNavigationFailure:
			return RunResult{Kind: ResultAbortedOnNavigationFailure, Records: approved, LastOutcome: last}, nil

		case DispositionMismatch:
			return RunResult{
				Kind:        ResultAbortedOnMismatch,
				Records:     approved,
				LastOutcome: last,
				Code:        report.Outcome.DisplayCode(),
			}, nil

		case DispositionAmbiguous:
			return RunResult{
				Kind:        ResultAbortedOnAmbiguity,
				Records:     approved,
				LastOutcome: last,
				Message:     report.Response,
			}, nil

		case DispositionFault:
			return RunResult{
				Kind:        ResultAbortedOnRecordFault,
				Records:     approved,
				LastOutcome: last,
				Stage:       report.Stage,
				Message:     report.Err.Error(),
			}, nil

		default:
			return RunResult{}, fmt.Errorf("record %d: unhandled disposition %s", seq, report.Disposition)
		}
	}
}

func (o *Orchestrator) transition(ctx context.Context, runID string, to State) {
	from := o.state
	if from == to {
		return
	}
	o.state = to
	o.log.Debug("run %s: %s -> %s", runID, from, to)
	o.observer.StateChanged(ctx, runID, from, to)
}
