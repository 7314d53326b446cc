package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"auditor/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errNotVisible = errors.New("element not visible before timeout")

func testConfig() config.AuditConfig {
	return config.AuditConfig{
		LoginURL:     "https://portal.example/login",
		TaskListURL:  "https://portal.example/tasks",
		Username:     "auditor@example.com",
		Password:     "s3cret",
		Brand:        "ACME",
		EvidenceKey:  "Receipt",
		RowKey:       "Order",
		ColumnHeader: "Reference",
	}
}

// fakeSession scripts the portal. Each entry of records is the audit
// response for one record; opening a record past the end fails like an
// empty list does.
type fakeSession struct {
	mu sync.Mutex

	filterMessage string
	filterErr     error
	records       []string
	auditErr      error
	failOn        map[string]error
	panicOn       string

	opened    int
	approved  int
	closed    int
	calls     []string
	timeouts  map[string]time.Duration
	navigated []string
}

func newFakeSession(filter string, records ...string) *fakeSession {
	return &fakeSession{
		filterMessage: filter,
		records:       records,
		failOn:        map[string]error{},
		timeouts:      map[string]time.Duration{},
	}
}

func (f *fakeSession) Perform(ctx context.Context, instruction string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "perform:"+instruction)
	f.timeouts[instruction] = timeout

	if instruction == f.panicOn {
		panic("engine crashed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := f.failOn[instruction]; ok {
		return err
	}

	switch instruction {
	case openRecordInstruction:
		if f.opened >= len(f.records) {
			return errNotVisible
		}
		f.opened++
	case approveInstruction:
		f.approved++
	}
	return nil
}

func (f *fakeSession) RunTask(ctx context.Context, task Task) (TaskResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "task:"+task.Name)

	if err := ctx.Err(); err != nil {
		return TaskResult{}, err
	}
	switch task.Name {
	case "filter":
		return TaskResult{Message: f.filterMessage}, f.filterErr
	case "audit":
		if f.auditErr != nil {
			return TaskResult{}, f.auditErr
		}
		return TaskResult{Message: f.records[f.opened-1]}, nil
	}
	return TaskResult{}, errors.New("unexpected task " + task.Name)
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "navigate:"+url)
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSession) opener() Opener {
	return OpenerFunc(func(context.Context) (Session, error) { return f, nil })
}

func (f *fakeSession) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

// recordingSettler returns immediately and remembers every wait.
type recordingSettler struct {
	mu      sync.Mutex
	waits   []time.Duration
	reasons []string
}

func (s *recordingSettler) Settle(ctx context.Context, d time.Duration, reason string) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.reasons = append(s.reasons, reason)
	s.mu.Unlock()
	return ctx.Err()
}

// eventLog is an Observer that keeps everything it sees.
type eventLog struct {
	mu       sync.Mutex
	started  []RunInfo
	states   []State
	records  []RecordReport
	results  []RunResult
	failures []error
}

func (e *eventLog) RunStarted(_ context.Context, info RunInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, info)
}

func (e *eventLog) StateChanged(_ context.Context, _ string, _, to State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, to)
}

func (e *eventLog) RecordAudited(_ context.Context, _ string, _ int, report RecordReport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, report)
}

func (e *eventLog) RunFinished(_ context.Context, result RunResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = append(e.results, result)
	e.failures = append(e.failures, err)
}
