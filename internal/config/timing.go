package config

import (
	"fmt"
	"time"
)

// TimingConfig holds the bounded waits of a run as duration strings.
//
// Timeouts bound a single engine instruction; settle delays are unconditional
// pauses that give the portal time to render, since the page exposes no
// readiness signal.
type TimingConfig struct {
	ActTimeout     string `yaml:"act_timeout"`
	ScrollTimeout  string `yaml:"scroll_timeout"`
	OpenTimeout    string `yaml:"open_timeout"`
	ApproveTimeout string `yaml:"approve_timeout"`

	FieldSettle   string `yaml:"field_settle"`
	LoginSettle   string `yaml:"login_settle"`
	ListSettle    string `yaml:"list_settle"`
	DetailSettle  string `yaml:"detail_settle"`
	ApproveSettle string `yaml:"approve_settle"`
}

// DefaultTimingConfig returns the waits the portal is known to need.
func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		ActTimeout:     "15s",
		ScrollTimeout:  "10s",
		OpenTimeout:    "15s",
		ApproveTimeout: "15s",
		FieldSettle:    "1s",
		LoginSettle:    "5s",
		ListSettle:     "3s",
		DetailSettle:   "7s",
		ApproveSettle:  "8s",
	}
}

// Durations is the parsed form of TimingConfig.
type Durations struct {
	ActTimeout     time.Duration
	ScrollTimeout  time.Duration
	OpenTimeout    time.Duration
	ApproveTimeout time.Duration
	FieldSettle    time.Duration
	LoginSettle    time.Duration
	ListSettle     time.Duration
	DetailSettle   time.Duration
	ApproveSettle  time.Duration
}

type timingField struct {
	name  string
	raw   string
	def   string
	value *time.Duration
}

func (t TimingConfig) fields(d *Durations) []timingField {
	def := DefaultTimingConfig()
	return []timingField{
		{"act_timeout", t.ActTimeout, def.ActTimeout, &d.ActTimeout},
		{"scroll_timeout", t.ScrollTimeout, def.ScrollTimeout, &d.ScrollTimeout},
		{"open_timeout", t.OpenTimeout, def.OpenTimeout, &d.OpenTimeout},
		{"approve_timeout", t.ApproveTimeout, def.ApproveTimeout, &d.ApproveTimeout},
		{"field_settle", t.FieldSettle, def.FieldSettle, &d.FieldSettle},
		{"login_settle", t.LoginSettle, def.LoginSettle, &d.LoginSettle},
		{"list_settle", t.ListSettle, def.ListSettle, &d.ListSettle},
		{"detail_settle", t.DetailSettle, def.DetailSettle, &d.DetailSettle},
		{"approve_settle", t.ApproveSettle, def.ApproveSettle, &d.ApproveSettle},
	}
}

// Durations parses every field. Empty or malformed values fall back to the
// default; use Validate to reject malformed input instead.
func (t TimingConfig) Durations() Durations {
	var d Durations
	for _, f := range t.fields(&d) {
		parsed, err := time.ParseDuration(f.raw)
		if err != nil || parsed < 0 {
			parsed, _ = time.ParseDuration(f.def)
		}
		*f.value = parsed
	}
	return d
}

// Validate rejects malformed or negative durations. Empty fields are allowed.
func (t TimingConfig) Validate() error {
	var d Durations
	for _, f := range t.fields(&d) {
		if f.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("timing.%s: %w", f.name, err)
		}
		if parsed < 0 {
			return fmt.Errorf("timing.%s: negative duration %s", f.name, f.raw)
		}
	}
	return nil
}
