// Package perception turns natural-language instructions into browser
// actions. A multimodal model looks at a screenshot and a numbered element
// snapshot, answers with one JSON action at a time, and the engine executes
// it on the page until the model declares the instruction done.
package perception

import "context"

// Request is one multimodal model call.
type Request struct {
	// Purpose labels the call in traces ("act", "filter", "audit").
	Purpose    string
	System     string
	Prompt     string
	Screenshot []byte // PNG, optional
}

// Response is the model's raw answer.
type Response struct {
	Text         string
	Model        string
	PromptTokens int
	OutputTokens int
}

// Model is a multimodal completion backend.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, req Request) (Response, error)

// Generate calls f.
func (f ModelFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Name implements Model.
func (f ModelFunc) Name() string { return "func" }
