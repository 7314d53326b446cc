package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auditor/internal/config"
	"auditor/internal/logging"
)

// ErrNavigation marks a failure to reach the next record. It ends the loop
// normally: the queue is exhausted or the list is not where it should be.
var ErrNavigation = errors.New("record navigation failed")

// Record fault stages.
const (
	StageAudit   = "audit"
	StageApprove = "approve"
)

// Disposition tells the orchestrator what follows a record.
type Disposition int

const (
	// DispositionApproved: matched and approved, continue the loop.
	DispositionApproved Disposition = iota
	// DispositionHeld: matched but left unapproved (dry run), stop.
	DispositionHeld
	DispositionNavigationFailure
	DispositionMismatch
	DispositionAmbiguous
	DispositionFault
)

var dispositionNames = map[Disposition]string{
	DispositionApproved:          "approved",
	DispositionHeld:              "held",
	DispositionNavigationFailure: "navigation_failure",
	DispositionMismatch:          "mismatch",
	DispositionAmbiguous:         "ambiguous",
	DispositionFault:             "fault",
}

func (d Disposition) String() string {
	if name, ok := dispositionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("disposition(%d)", int(d))
}

// Continues reports whether the loop moves on to the next record.
func (d Disposition) Continues() bool {
	return d == DispositionApproved
}

// RecordReport is everything known about one processed record.
type RecordReport struct {
	Disposition Disposition
	// Outcome is nil when no verdict was reached (navigation failure or
	// a failed audit task).
	Outcome *Outcome
	// Response is the raw audit response, empty before the audit step.
	Response string
	// Reported is the code as the engine wrote it.
	Reported string
	// Stage names the failing step of a DispositionFault.
	Stage   string
	Err     error
	Elapsed time.Duration
}

// RecordProcessor runs one audit cycle against the record list on screen.
type RecordProcessor struct {
	cfg     config.AuditConfig
	timing  Timing
	settler Settler
	dryRun  bool
	log     *logging.Logger
}

// NewRecordProcessor creates a processor. A nil settler means FixedDelay.
func NewRecordProcessor(cfg config.AuditConfig, timing Timing, settler Settler, dryRun bool) *RecordProcessor {
	if settler == nil {
		settler = FixedDelay{}
	}
	return &RecordProcessor{
		cfg:     cfg,
		timing:  timing,
		settler: settler,
		dryRun:  dryRun,
		log:     logging.Get(logging.CategoryAudit),
	}
}

// Process opens the next record, audits it and approves it on a match.
//
// Every per-record failure is folded into the report. The returned error is
// non-nil only when ctx ends, which the caller treats as an unexpected fault.
func (p *RecordProcessor) Process(ctx context.Context, engine Engine) (RecordReport, error) {
	start := time.Now()
	report, err := p.process(ctx, engine)
	report.Elapsed = time.Since(start)
	return report, err
}

func (p *RecordProcessor) process(ctx context.Context, engine Engine) (RecordReport, error) {
	if err := p.open(ctx, engine); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RecordReport{}, ctxErr
		}
		p.log.Info("no record to open: %v", err)
		return RecordReport{
			Disposition: DispositionNavigationFailure,
			Err:         fmt.Errorf("%w: %w", ErrNavigation, err),
		}, nil
	}

	if err := p.settler.Settle(ctx, p.timing.DetailSettle, "detail view"); err != nil {
		return RecordReport{}, err
	}

	res, err := engine.RunTask(ctx, AuditTask(p.cfg))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RecordReport{}, ctxErr
		}
		return RecordReport{
			Disposition: DispositionFault,
			Stage:       StageAudit,
			Err:         fmt.Errorf("audit task: %w", err),
		}, nil
	}

	report := p.classify(res.Message)
	if report.Disposition != DispositionApproved {
		return report, nil
	}

	if p.dryRun {
		p.log.Info("dry run: leaving %s unapproved", report.Outcome.Code)
		report.Disposition = DispositionHeld
		return report, nil
	}

	if err := engine.Perform(ctx, approveInstruction, p.timing.ApproveTimeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RecordReport{}, ctxErr
		}
		report.Disposition = DispositionFault
		report.Stage = StageApprove
		report.Err = fmt.Errorf("approve %s: %w", report.Outcome.Code, err)
		return report, nil
	}

	if err := p.settler.Settle(ctx, p.timing.ApproveSettle, "back to list"); err != nil {
		return RecordReport{}, err
	}
	return report, nil
}

// open reveals the open-record control and clicks it. Either step failing
// means there is no record to process.
func (p *RecordProcessor) open(ctx context.Context, engine Engine) error {
	if err := engine.Perform(ctx, scrollToViewInstruction, p.timing.ScrollTimeout); err != nil {
		return fmt.Errorf("scroll to open control: %w", err)
	}
	if err := engine.Perform(ctx, openRecordInstruction, p.timing.OpenTimeout); err != nil {
		return fmt.Errorf("open record: %w", err)
	}
	return nil
}

// classify turns an audit response into a report. The marker alone decides
// the verdict; a reported code is kept raw and only becomes Outcome.Code when
// it normalizes.
func (p *RecordProcessor) classify(message string) RecordReport {
	verdict := ParseVerdict(message)
	report := RecordReport{Response: message, Reported: verdict.Code}

	switch verdict.Kind {
	case VerdictFound:
		outcome := Outcome{Kind: OutcomeMatched, Reported: verdict.Code}
		if code, err := Normalize(verdict.Code); err == nil {
			outcome.Code = code
		} else if verdict.Code != "" {
			p.log.Warn("found response code %q kept as reported: %v", verdict.Code, err)
		}
		report.Outcome = &outcome
		report.Disposition = DispositionApproved
		p.log.Info("value %s found in evidence", outcome.DisplayCode())

	case VerdictNotFound:
		outcome := Outcome{Kind: OutcomeMismatched, Reported: verdict.Code}
		if code, err := Normalize(verdict.Code); err == nil {
			outcome.Code = code
		}
		report.Outcome = &outcome
		report.Disposition = DispositionMismatch
		p.log.Warn("value %s not found in evidence", outcome.DisplayCode())

	default:
		outcome := Ambiguous(message)
		report.Outcome = &outcome
		report.Disposition = DispositionAmbiguous
		p.log.Warn("unrecognized audit response: %q", message)
	}
	return report
}
