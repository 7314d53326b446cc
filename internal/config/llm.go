package config

import "time"

// LLMConfig configures the perception models.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini
	APIKey   string `yaml:"api_key,omitempty"`

	// ActModel plans single instructions (login steps, clicks).
	ActModel string `yaml:"act_model"`
	// AgentModel drives multi-step tasks (filter, evidence audit).
	AgentModel string `yaml:"agent_model"`

	Timeout       string  `yaml:"timeout"`
	MaxAgentSteps int     `yaml:"max_agent_steps"`
	Temperature   float32 `yaml:"temperature"`
}

// GetTimeout returns the per-call model timeout.
func (c LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// GetMaxAgentSteps returns the agent step budget.
func (c LLMConfig) GetMaxAgentSteps() int {
	if c.MaxAgentSteps <= 0 {
		return 25
	}
	return c.MaxAgentSteps
}
