package audit

import (
	"fmt"
	"time"
)

// ResultKind tags a RunResult.
type ResultKind int

const (
	ResultCompleted ResultKind = iota
	ResultEmptyQueue
	ResultAbortedOnMismatch
	ResultAbortedOnAmbiguity
	ResultAbortedOnNavigationFailure
	ResultAbortedOnRecordFault
)

var resultKindNames = map[ResultKind]string{
	ResultCompleted:                  "completed",
	ResultEmptyQueue:                 "empty_queue",
	ResultAbortedOnMismatch:          "aborted_on_mismatch",
	ResultAbortedOnAmbiguity:         "aborted_on_ambiguity",
	ResultAbortedOnNavigationFailure: "aborted_on_navigation_failure",
	ResultAbortedOnRecordFault:       "aborted_on_record_fault",
}

func (k ResultKind) String() string {
	if name, ok := resultKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", int(k))
}

// ParseResultKind is the inverse of ResultKind.String.
func ParseResultKind(s string) (ResultKind, bool) {
	for k, name := range resultKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Process exit statuses. ExitNormalizationFailure is reported by the offline
// normalize command.
const (
	ExitCompleted            = 0
	ExitUnexpected           = 1
	ExitConfig               = 2
	ExitNavigationFailure    = 10
	ExitEmptyQueue           = 11
	ExitMismatch             = 12
	ExitAmbiguity            = 13
	ExitNormalizationFailure = 14
	ExitRecordFault          = 15
)

// RunResult is the single externally observable result of a run.
//
// Payload fields by kind:
//   - EmptyQueue: Brand
//   - Completed: Records, LastOutcome
//   - AbortedOnMismatch: Code
//   - AbortedOnAmbiguity: Message
//   - AbortedOnNavigationFailure: Records
//   - AbortedOnRecordFault: Stage, Message
type RunResult struct {
	RunID       string
	Kind        ResultKind
	Brand       string
	Records     int
	LastOutcome *Outcome
	Code        string
	Message     string
	Stage       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// ExitCode maps the result to the process exit status.
func (r RunResult) ExitCode() int {
	switch r.Kind {
	case ResultCompleted:
		return ExitCompleted
	case ResultEmptyQueue:
		return ExitEmptyQueue
	case ResultAbortedOnMismatch:
		return ExitMismatch
	case ResultAbortedOnAmbiguity:
		return ExitAmbiguity
	case ResultAbortedOnNavigationFailure:
		return ExitNavigationFailure
	case ResultAbortedOnRecordFault:
		return ExitRecordFault
	default:
		return ExitUnexpected
	}
}

// Duration returns how long the run took.
func (r RunResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders a one-line human description.
func (r RunResult) Summary() string {
	switch r.Kind {
	case ResultEmptyQueue:
		return fmt.Sprintf("task list is empty for brand %s", r.Brand)
	case ResultCompleted:
		return fmt.Sprintf("completed after %d record(s)", r.Records)
	case ResultAbortedOnMismatch:
		return fmt.Sprintf("value %s not found", r.Code)
	case ResultAbortedOnAmbiguity:
		return fmt.Sprintf("unexpected validation result: %s", r.Message)
	case ResultAbortedOnNavigationFailure:
		return fmt.Sprintf("no more records to open after %d approval(s)", r.Records)
	case ResultAbortedOnRecordFault:
		return fmt.Sprintf("record %s step failed: %s", r.Stage, r.Message)
	default:
		return r.Kind.String()
	}
}
