package perception

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// =============================================================================
// GOOGLE GENAI MODEL
// =============================================================================

// GeminiModel answers requests with a Gemini model through the genai SDK.
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// GeminiOptions configures NewGeminiModel.
type GeminiOptions struct {
	APIKey      string
	Model       string
	Temperature float32
	// Timeout bounds one call; zero leaves it to ctx.
	Timeout time.Duration
}

// NewGeminiModel creates a Gemini-backed model.
func NewGeminiModel(ctx context.Context, opts GeminiOptions) (*GeminiModel, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiModel{
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}, nil
}

// Name returns the model identifier.
func (g *GeminiModel) Name() string {
	return g.model
}

// Generate sends the prompt and optional screenshot and asks for JSON.
func (g *GeminiModel) Generate(ctx context.Context, req Request) (Response, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Screenshot) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Screenshot, "image/png"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Response{}, fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return Response{}, errors.New("GenAI returned an empty response")
	}

	resp := Response{Text: text, Model: g.model}
	if u := result.UsageMetadata; u != nil {
		resp.PromptTokens = int(u.PromptTokenCount)
		resp.OutputTokens = int(u.CandidatesTokenCount)
	}
	return resp, nil
}
