package perception

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"auditor/internal/audit"
	"auditor/internal/browser"
	"auditor/internal/logging"
)

// ErrInstructionFailed is returned when the model gives up on an instruction.
var ErrInstructionFailed = errors.New("instruction could not be carried out")

// ErrStepBudget is returned when the model did not finish within its steps.
var ErrStepBudget = errors.New("step budget exhausted")

// Driver is the page surface the engine acts on. browser.Tab implements it.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Elements(ctx context.Context) ([]browser.Element, error)
	Info(ctx context.Context) (browser.PageInfo, error)
	Click(ctx context.Context, index int) error
	Type(ctx context.Context, index int, text string) error
	ScrollElement(ctx context.Context, index int, dx, dy float64) error
	ScrollPage(ctx context.Context, dx, dy float64) error
	PressKey(ctx context.Context, key string) error
	Close() error
}

// Observation is what the model sees before choosing an action.
type Observation struct {
	URL        string
	Title      string
	Elements   []browser.Element
	Screenshot []byte
}

// EngineOptions tunes an Engine.
type EngineOptions struct {
	// ActSteps bounds a single Perform; AgentSteps bounds RunTask when the
	// task sets no budget of its own.
	ActSteps   int
	AgentSteps int
	// MaxWait caps a model-requested wait.
	MaxWait time.Duration
	// Variables are substituted for %name% placeholders in typed text.
	Variables map[string]string
}

const (
	defaultActSteps   = 4
	defaultAgentSteps = 25
	defaultMaxWait    = 5 * time.Second
	actSystemPrompt   = "You are a precise browser operator. Carry out the instruction with as few actions as possible."
)

// Engine implements audit.Engine on a Driver and two models: a fast one for
// single instructions and a stronger one for delegated tasks.
type Engine struct {
	driver  Driver
	act     Model
	agent   Model
	opts    EngineOptions
	secrets []string
	log     *logging.Logger
}

// NewEngine creates an engine. agent falls back to act when nil.
func NewEngine(driver Driver, act, agent Model, opts EngineOptions) *Engine {
	if agent == nil {
		agent = act
	}
	if opts.ActSteps <= 0 {
		opts.ActSteps = defaultActSteps
	}
	if opts.AgentSteps <= 0 {
		opts.AgentSteps = defaultAgentSteps
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = defaultMaxWait
	}
	secrets := make([]string, 0, len(opts.Variables))
	for _, v := range opts.Variables {
		secrets = append(secrets, v)
	}
	return &Engine{
		driver:  driver,
		act:     act,
		agent:   agent,
		opts:    opts,
		secrets: secrets,
		log:     logging.Get(logging.CategoryPerception),
	}
}

// Perform carries out one instruction within timeout.
func (e *Engine) Perform(ctx context.Context, instruction string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategoryPerception, "perform")
	defer timer.Stop()

	_, _, err := e.loop(ctx, e.act, "act", actSystemPrompt, instruction, e.opts.ActSteps)
	if err != nil {
		return fmt.Errorf("perform %q: %w", clip(Redacted(instruction, e.secrets), 80), err)
	}
	return nil
}

// RunTask delegates a multi-step task and returns the model's final message.
func (e *Engine) RunTask(ctx context.Context, task audit.Task) (audit.TaskResult, error) {
	steps := task.MaxSteps
	if steps <= 0 {
		steps = e.opts.AgentSteps
	}

	timer := logging.StartTimer(logging.CategoryPerception, "task "+task.Name)
	defer timer.Stop()

	message, used, err := e.loop(ctx, e.agent, task.Name, task.SystemPrompt, task.Instruction, steps)
	if err != nil {
		return audit.TaskResult{Steps: used}, fmt.Errorf("task %s: %w", task.Name, err)
	}
	e.log.Info("task %s finished in %d step(s): %s", task.Name, used, Redacted(message, e.secrets))
	return audit.TaskResult{Message: message, Steps: used}, nil
}

// loop runs observe -> decide -> execute until the model says done or fail.
// Execution errors are reported back to the model rather than aborting, so it
// can try another element.
func (e *Engine) loop(ctx context.Context, model Model, purpose, system, instruction string, maxSteps int) (string, int, error) {
	system = strings.TrimSpace(system) + "\n" + actionProtocol
	var history []Step

	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", step - 1, err
		}

		obs, err := e.observe(ctx)
		if err != nil {
			return "", step - 1, fmt.Errorf("observe: %w", err)
		}

		resp, err := model.Generate(ctx, Request{
			Purpose:    purpose,
			System:     system,
			Prompt:     buildPrompt(instruction, obs, history, maxSteps-step+1),
			Screenshot: obs.Screenshot,
		})
		if err != nil {
			return "", step, fmt.Errorf("model: %w", err)
		}

		action, err := ParseAction(resp.Text)
		if err != nil {
			e.log.Warn("%s step %d: %v", purpose, step, err)
			history = append(history, Step{Action: Action{Action: "invalid"}, Err: err})
			continue
		}
		e.log.Debug("%s step %d: %s (%s)", purpose, step, Redacted(action.String(), e.secrets), action.Reason)

		switch action.Action {
		case ActionDone:
			return strings.TrimSpace(action.Message), step, nil
		case ActionFail:
			return "", step, fmt.Errorf("%w: %s", ErrInstructionFailed, action.Message)
		}

		execErr := e.execute(ctx, action)
		if execErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", step, ctxErr
			}
			e.log.Debug("%s step %d failed: %v", purpose, step, execErr)
		}
		history = append(history, Step{Action: action, Err: execErr})
	}
	return "", maxSteps, fmt.Errorf("%w after %d steps", ErrStepBudget, maxSteps)
}

// observe captures the screenshot, element snapshot and page info in
// parallel. Only the snapshot is required.
func (e *Engine) observe(ctx context.Context) (Observation, error) {
	var obs Observation
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		shot, err := e.driver.Screenshot(gctx)
		if err != nil {
			e.log.Debug("screenshot unavailable: %v", err)
			return nil
		}
		obs.Screenshot = shot
		return nil
	})
	g.Go(func() error {
		info, err := e.driver.Info(gctx)
		if err != nil {
			e.log.Debug("page info unavailable: %v", err)
			return nil
		}
		obs.URL, obs.Title = info.URL, info.Title
		return nil
	})
	g.Go(func() error {
		elements, err := e.driver.Elements(gctx)
		if err != nil {
			return err
		}
		obs.Elements = elements
		return nil
	})

	if err := g.Wait(); err != nil {
		return Observation{}, err
	}
	return obs, nil
}

func (e *Engine) execute(ctx context.Context, a Action) error {
	switch a.Action {
	case ActionClick:
		return e.driver.Click(ctx, a.Element)
	case ActionType:
		return e.driver.Type(ctx, a.Element, e.substitute(a.Text))
	case ActionScroll:
		if a.Element > 0 {
			return e.driver.ScrollElement(ctx, a.Element, a.DX, a.DY)
		}
		return e.driver.ScrollPage(ctx, a.DX, a.DY)
	case ActionPress:
		return e.driver.PressKey(ctx, a.Key)
	case ActionWait:
		d := time.Duration(a.Seconds * float64(time.Second))
		if d <= 0 || d > e.opts.MaxWait {
			d = e.opts.MaxWait
		}
		return audit.FixedDelay{}.Settle(ctx, d, "model wait")
	default:
		return fmt.Errorf("%w: cannot execute %q", ErrMalformedAction, a.Action)
	}
}

// substitute fills %name% placeholders from Variables.
func (e *Engine) substitute(text string) string {
	for name, value := range e.opts.Variables {
		text = strings.ReplaceAll(text, "%"+name+"%", value)
	}
	return text
}
