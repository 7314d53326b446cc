package perception

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"auditor/internal/logging"
)

// Trace captures one model interaction for later review.
type Trace struct {
	ID        string
	SessionID string
	Purpose   string
	Step      int

	System   string
	Prompt   string
	Response string

	Model        string
	PromptTokens int
	OutputTokens int
	Duration     time.Duration

	Success      bool
	ErrorMessage string

	Timestamp time.Time
}

// TraceSink stores traces.
type TraceSink interface {
	RecordTrace(ctx context.Context, trace Trace) error
}

// minSubstringSecret is the shortest secret redacted wherever it occurs.
// Shorter secrets are only redacted as whole words.
const minSubstringSecret = 6

const redactedMark = "[REDACTED]"

// Redacted replaces each secret in s.
func Redacted(s string, secrets []string) string {
	for _, secret := range secrets {
		switch {
		case secret == "":
			continue
		case len(secret) < minSubstringSecret:
			s = redactWord(s, secret)
		default:
			s = strings.ReplaceAll(s, secret, redactedMark)
		}
	}
	return s
}

// redactWord replaces occurrences of word that are not part of a longer
// run of letters or digits.
func redactWord(s, word string) string {
	var b strings.Builder
	from := 0
	for {
		i := strings.Index(s[from:], word)
		if i < 0 {
			b.WriteString(s[from:])
			return b.String()
		}
		start := from + i
		end := start + len(word)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		b.WriteString(s[from:start])
		if (start == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			b.WriteString(redactedMark)
		} else {
			b.WriteString(word)
		}
		from = end
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// TracingModel wraps a Model and records every call. Secrets are scrubbed
// from what is stored and logged, never from what is sent.
type TracingModel struct {
	underlying Model
	sink       TraceSink
	secrets    []string

	mu        sync.RWMutex
	sessionID string
	step      int
}

// NewTracingModel creates a tracing wrapper around an existing model.
func NewTracingModel(underlying Model, sink TraceSink, secrets []string) *TracingModel {
	return &TracingModel{
		underlying: underlying,
		sink:       sink,
		secrets:    secrets,
	}
}

// SetSession attributes subsequent traces to a browser session.
func (tm *TracingModel) SetSession(sessionID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.sessionID = sessionID
	tm.step = 0
}

// Name implements Model.
func (tm *TracingModel) Name() string {
	return tm.underlying.Name()
}

// Generate implements Model with tracing.
func (tm *TracingModel) Generate(ctx context.Context, req Request) (Response, error) {
	tm.mu.Lock()
	tm.step++
	sessionID, step := tm.sessionID, tm.step
	tm.mu.Unlock()

	start := time.Now()
	logging.PerceptionDebug("model call started: purpose=%s model=%s prompt_len=%d", req.Purpose, tm.Name(), len(req.Prompt))

	resp, err := tm.underlying.Generate(ctx, req)

	duration := time.Since(start)
	if err != nil {
		logging.PerceptionWarn("model call failed: purpose=%s duration=%v error=%s", req.Purpose, duration, Redacted(err.Error(), tm.secrets))
	} else {
		logging.PerceptionDebug("model call completed: purpose=%s duration=%v response_len=%d", req.Purpose, duration, len(resp.Text))
	}

	if tm.sink == nil {
		return resp, err
	}

	trace := Trace{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Purpose:      req.Purpose,
		Step:         step,
		System:       Redacted(req.System, tm.secrets),
		Prompt:       Redacted(req.Prompt, tm.secrets),
		Response:     Redacted(resp.Text, tm.secrets),
		Model:        resp.Model,
		PromptTokens: resp.PromptTokens,
		OutputTokens: resp.OutputTokens,
		Duration:     duration,
		Success:      err == nil,
		Timestamp:    start,
	}
	if trace.Model == "" {
		trace.Model = tm.Name()
	}
	if err != nil {
		trace.ErrorMessage = Redacted(err.Error(), tm.secrets)
	}

	// Store with a detached context so a cancelled call is still recorded.
	if serr := tm.sink.RecordTrace(context.WithoutCancel(ctx), trace); serr != nil {
		logging.PerceptionWarn("failed to store trace: %v", serr)
	}

	return resp, err
}
