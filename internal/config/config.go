package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all auditor configuration.
type Config struct {
	// Portal credentials and the record to validate
	Portal PortalConfig `yaml:"portal"`

	// Bounded waits
	Timing TimingConfig `yaml:"timing"`

	// Chrome session
	Browser BrowserConfig `yaml:"browser"`

	// Perception models
	LLM LLMConfig `yaml:"llm"`

	// Run journal
	Journal JournalConfig `yaml:"journal"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Loop policy
	Run RunConfig `yaml:"run"`
}

// RunConfig bounds a single run.
type RunConfig struct {
	// MaxRecords stops the loop after this many approvals (0 = until the queue drains).
	MaxRecords int `yaml:"max_records"`
	// DryRun audits the first record and stops without approving it.
	DryRun bool `yaml:"dry_run"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timing:  DefaultTimingConfig(),
		Browser: DefaultBrowserConfig(),
		LLM: LLMConfig{
			Provider:      "gemini",
			ActModel:      "gemini-2.5-flash",
			AgentModel:    "gemini-2.5-pro",
			Timeout:       "120s",
			MaxAgentSteps: 25,
			Temperature:   0.1,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(".auditor", "journal.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file and applies process environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	return LoadWithEnvFile(path, "")
}

// LoadWithEnvFile is Load with an additional dotenv file. Precedence is
// process environment, then the dotenv file, then YAML, then defaults.
func LoadWithEnvFile(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
			// defaults
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var dotenv map[string]string
	if envFile != "" {
		var err error
		dotenv, err = LoadDotEnv(envFile)
		if err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides(envLookup(dotenv))
	return cfg, nil
}

// Save saves configuration to a YAML file. The password is never written.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	out.Portal.Password = ""
	out.LLM.APIKey = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// lookupFunc resolves an environment variable name.
type lookupFunc func(name string) (string, bool)

// envLookup checks the process environment first and the dotenv values second.
func envLookup(dotenv map[string]string) lookupFunc {
	return func(name string) (string, bool) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v, true
		}
		if v, ok := dotenv[name]; ok && v != "" {
			return v, true
		}
		return "", false
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides(lookup lookupFunc) {
	for _, f := range c.Portal.fields() {
		if v, ok := lookup(f.env); ok {
			*f.value = v
		}
	}

	// API key: GOOGLE_API_KEY is what the genai SDK reads; GEMINI_API_KEY wins.
	if key, ok := lookup("GOOGLE_API_KEY"); ok {
		c.LLM.APIKey = key
	}
	if key, ok := lookup("GEMINI_API_KEY"); ok {
		c.LLM.APIKey = key
	}
	if model, ok := lookup("AUDITOR_ACT_MODEL"); ok {
		c.LLM.ActModel = model
	}
	if model, ok := lookup("AUDITOR_AGENT_MODEL"); ok {
		c.LLM.AgentModel = model
	}

	if v, ok := lookup("AUDITOR_HEADLESS"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Browser.Headless = b
		}
	}
	if v, ok := lookup("AUDITOR_CHROME_BIN"); ok {
		c.Browser.Bin = v
	}
	if v, ok := lookup("AUDITOR_DEBUGGER_URL"); ok {
		c.Browser.DebuggerURL = v
	}

	if path, ok := lookup("AUDITOR_DB"); ok {
		c.Journal.Path = path
	}
	if level, ok := lookup("AUDITOR_LOG_LEVEL"); ok {
		c.Logging.Level = level
	}
}

// ValidProviders lists the supported LLM providers.
var ValidProviders = []string{"gemini"}

// Validate checks everything a run needs. Portal errors come first so a
// missing credential is reported even when the API key is also absent.
func (c *Config) Validate() error {
	if _, err := c.Audit(); err != nil {
		return err
	}
	return c.ValidateEngine()
}

// ValidateEngine checks the perception engine settings.
func (c *Config) ValidateEngine() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: LLM API key (set GEMINI_API_KEY or GOOGLE_API_KEY)", ErrMissingField)
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	return c.Timing.Validate()
}
