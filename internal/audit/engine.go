package audit

import (
	"context"
	"time"
)

// Task is a multi-step job delegated to the perception engine. The engine
// works until it can answer with a single terminal message.
type Task struct {
	Name         string // short label used in logs and traces ("filter", "audit")
	SystemPrompt string
	Instruction  string
	MaxSteps     int // 0 lets the engine pick its default
}

// TaskResult is the terminal answer of a delegated task.
type TaskResult struct {
	Message string
	Steps   int
}

// Engine is the perception/action contract the audit depends on.
type Engine interface {
	// Perform executes one imperative instruction. It returns nil once the
	// action was carried out, or an error when it could not be done before
	// the timeout elapsed.
	Perform(ctx context.Context, instruction string, timeout time.Duration) error

	// RunTask delegates a multi-step task and returns its terminal message.
	RunTask(ctx context.Context, task Task) (TaskResult, error)
}

// PasswordPlaceholder stands for the portal password in instructions. Engines
// substitute it only when typing, so the secret never reaches a model prompt.
const PasswordPlaceholder = "%password%"

// Session is a live automation context owned by one orchestrator run.
type Session interface {
	Engine

	// Navigate loads url in the session's page.
	Navigate(ctx context.Context, url string) error

	// Close releases the session. It must be idempotent and safe on a
	// partially initialized session.
	Close() error
}

// Opener creates sessions.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Session, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}
