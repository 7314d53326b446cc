package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField is wrapped by every missing-configuration error.
var ErrMissingField = errors.New("required configuration missing")

// PortalConfig is the mutable YAML/env view of the portal settings.
type PortalConfig struct {
	LoginURL     string `yaml:"login_url"`
	TaskListURL  string `yaml:"task_list_url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password,omitempty"`
	Brand        string `yaml:"brand"`
	EvidenceKey  string `yaml:"evidence_key"`
	RowKey       string `yaml:"row_key"`
	ColumnHeader string `yaml:"column_header"`
}

type portalField struct {
	name  string
	env   string
	value *string
}

func (p *PortalConfig) fields() []portalField {
	return []portalField{
		{"login_url", "PORTAL_LOGIN_URL", &p.LoginURL},
		{"task_list_url", "PORTAL_TASK_URL", &p.TaskListURL},
		{"username", "PORTAL_USERNAME", &p.Username},
		{"password", "PORTAL_PASSWORD", &p.Password},
		{"brand", "PORTAL_BRAND", &p.Brand},
		{"evidence_key", "EVIDENCE_TO_CHECK", &p.EvidenceKey},
		{"row_key", "TARGET_ROW_KEY", &p.RowKey},
		{"column_header", "TARGET_COLUMN_HEADER", &p.ColumnHeader},
	}
}

// AuditConfig is the validated, read-only portal configuration handed to the
// orchestrator. It is passed by value; nothing reads the environment after it
// has been built.
type AuditConfig struct {
	LoginURL     string
	TaskListURL  string
	Username     string
	Password     string
	Brand        string
	EvidenceKey  string
	RowKey       string
	ColumnHeader string
}

// Audit validates the portal section and returns the immutable AuditConfig.
// Every missing field is reported, joined into one error.
func (c *Config) Audit() (AuditConfig, error) {
	var errs []error
	for _, f := range c.Portal.fields() {
		if strings.TrimSpace(*f.value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s (env %s)", ErrMissingField, f.name, f.env))
		}
	}
	if len(errs) > 0 {
		return AuditConfig{}, errors.Join(errs...)
	}

	p := c.Portal
	return AuditConfig{
		LoginURL:     strings.TrimSpace(p.LoginURL),
		TaskListURL:  strings.TrimSpace(p.TaskListURL),
		Username:     strings.TrimSpace(p.Username),
		Password:     p.Password,
		Brand:        strings.TrimSpace(p.Brand),
		EvidenceKey:  strings.TrimSpace(p.EvidenceKey),
		RowKey:       strings.TrimSpace(p.RowKey),
		ColumnHeader: strings.TrimSpace(p.ColumnHeader),
	}, nil
}

// Secrets returns values that must never appear in logs or traces.
func (a AuditConfig) Secrets() []string {
	if a.Password == "" {
		return nil
	}
	return []string{a.Password}
}

// Masked returns a copy safe to print.
func (a AuditConfig) Masked() AuditConfig {
	out := a
	if out.Password != "" {
		out.Password = "********"
	}
	return out
}
