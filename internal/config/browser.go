package config

import "time"

// BrowserConfig configures the Chrome session.
type BrowserConfig struct {
	// Headless hides the browser window.
	Headless bool `yaml:"headless"`
	// Bin is an explicit Chrome binary; empty lets the launcher find or download one.
	Bin string `yaml:"bin"`
	// DebuggerURL connects to an already running Chrome instead of launching.
	DebuggerURL string `yaml:"debugger_url"`

	ViewportWidth     int    `yaml:"viewport_width"`
	ViewportHeight    int    `yaml:"viewport_height"`
	NavigationTimeout string `yaml:"navigation_timeout"`
}

// DefaultBrowserConfig returns a visible 1920x1080 browser.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:          false,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		NavigationTimeout: "30s",
	}
}

// GetNavigationTimeout returns the page load timeout.
func (c BrowserConfig) GetNavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.NavigationTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
