// Package browser drives Chrome through the DevTools protocol. It exposes the
// page to the perception engine as screenshots plus a numbered snapshot of
// the elements a model can act on.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"auditor/internal/logging"
)

// ErrUnknownSession is returned for session IDs the manager does not track.
var ErrUnknownSession = errors.New("unknown session")

// ErrNotConnected is returned when no browser is attached.
var ErrNotConnected = errors.New("browser not connected")

// Session describes the public metadata for a tracked browser context.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type sessionRecord struct {
	meta      Session
	page      *rod.Page
	incognito *rod.Browser
}

// Config holds browser configuration.
type Config struct {
	DebuggerURL       string        `json:"debugger_url"`
	Bin               string        `json:"bin"`
	Flags             []string      `json:"flags"`
	Headless          bool          `json:"headless"`
	ViewportWidth     int           `json:"viewport_width"`
	ViewportHeight    int           `json:"viewport_height"`
	NavigationTimeout time.Duration `json:"navigation_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          false,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		NavigationTimeout: 30 * time.Second,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// GetNavigationTimeout returns the navigation timeout.
func (c Config) GetNavigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

// SessionManager owns the Chrome instance and tracks the pages opened on it.
type SessionManager struct {
	cfg      Config
	mu       sync.RWMutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	sessions map[string]*sessionRecord
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		sessions: make(map[string]*sessionRecord),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		_, err := m.browser.Version()
		if err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.sessions = make(map[string]*sessionRecord)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(m.cfg.Headless)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		for _, rawFlag := range m.cfg.Flags {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		url, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
		m.launcher = l
		logging.Browser("launched chrome (headless=%v)", m.cfg.Headless)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		if m.launcher != nil {
			m.launcher.Kill()
			m.launcher = nil
		}
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	logging.BrowserDebug("connected to chrome at %s", controlURL)
	return nil
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown closes tracked pages and the browser. It is safe to call more
// than once and on a manager that never started.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, record := range m.sessions {
		closeRecord(record)
		delete(m.sessions, id)
	}

	// A Chrome reached through DebuggerURL is not ours to close.
	var err error
	if m.browser != nil && m.launcher != nil {
		err = m.browser.Close()
	}
	m.browser = nil
	if m.launcher != nil {
		m.launcher.Cleanup()
		m.launcher = nil
	}
	return err
}

func closeRecord(record *sessionRecord) {
	if record.page != nil {
		_ = record.page.Close()
	}
	if record.incognito != nil {
		_ = record.incognito.Close()
	}
}

// List returns metadata for all known sessions.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Session, 0, len(m.sessions))
	for _, record := range m.sessions {
		results = append(results, record.meta)
	}
	return results
}

// CreateSession opens a new incognito page sized to the viewport and tracks it.
func (m *SessionManager) CreateSession(ctx context.Context, url string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, ErrNotConnected
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}

	if url != "" {
		if err := page.Context(ctx).Timeout(m.cfg.GetNavigationTimeout()).Navigate(url); err != nil {
			logging.BrowserWarn("initial navigation to %s: %v", url, err)
		}
	}

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		Status:     "active",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page, incognito: incognito}
	m.mu.Unlock()

	logging.BrowserDebug("session %s created (target %s)", meta.ID, meta.TargetID)
	return &meta, nil
}

// CloseSession closes one page and forgets it. Unknown IDs are ignored.
func (m *SessionManager) CloseSession(sessionID string) error {
	m.mu.Lock()
	record, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	closeRecord(record)
	return nil
}

// Page returns the underlying Rod page for a session.
func (m *SessionManager) Page(sessionID string) (*rod.Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok || rec.page == nil {
		return nil, false
	}
	return rec.page, true
}

// UpdateMetadata updates session metadata.
func (m *SessionManager) UpdateMetadata(sessionID string, updater func(Session) Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	rec.meta = updater(rec.meta)
}

// GetSession returns session metadata.
func (m *SessionManager) GetSession(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return rec.meta, true
}

func (m *SessionManager) page(ctx context.Context, sessionID string) (*rod.Page, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	page, ok := m.Page(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	m.UpdateMetadata(sessionID, func(s Session) Session {
		s.LastActive = time.Now()
		return s
	})
	return page.Context(ctx), nil
}

// Navigate navigates to a URL and waits for the load event.
func (m *SessionManager) Navigate(ctx context.Context, sessionID, url string) error {
	page, err := m.page(ctx, sessionID)
	if err != nil {
		return err
	}
	page = page.Timeout(m.cfg.GetNavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		logging.BrowserWarn("load event for %s: %v", url, err)
	}
	m.UpdateMetadata(sessionID, func(s Session) Session {
		s.URL = url
		return s
	})
	return nil
}

// Screenshot captures the viewport, or the whole page when fullPage is set.
func (m *SessionManager) Screenshot(ctx context.Context, sessionID string, fullPage bool) ([]byte, error) {
	page, err := m.page(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return page.Screenshot(fullPage, nil)
}

// PageInfo is the current location of a session.
type PageInfo struct {
	URL   string
	Title string
}

// Info returns the page URL and title.
func (m *SessionManager) Info(ctx context.Context, sessionID string) (PageInfo, error) {
	page, err := m.page(ctx, sessionID)
	if err != nil {
		return PageInfo{}, err
	}
	info, err := page.Info()
	if err != nil {
		return PageInfo{}, fmt.Errorf("page info: %w", err)
	}
	m.UpdateMetadata(sessionID, func(s Session) Session {
		s.URL = info.URL
		s.Title = info.Title
		return s
	})
	return PageInfo{URL: info.URL, Title: info.Title}, nil
}

// ScrollPage scrolls the window by the given offsets in CSS pixels.
func (m *SessionManager) ScrollPage(ctx context.Context, sessionID string, dx, dy float64) error {
	page, err := m.page(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = page.Evaluate(&rod.EvalOptions{
		JS:      `(dx, dy) => window.scrollBy(dx, dy)`,
		JSArgs:  []interface{}{dx, dy},
		ByValue: true,
	})
	if err != nil {
		return fmt.Errorf("scroll page: %w", err)
	}
	return nil
}

// namedKeys maps the key names a model may use to Rod keys.
var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"return":     input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"esc":        input.Escape,
	"backspace":  input.Backspace,
	"space":      input.Space,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"left":       input.ArrowLeft,
	"right":      input.ArrowRight,
	"up":         input.ArrowUp,
	"down":       input.ArrowDown,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"home":       input.Home,
	"end":        input.End,
}

// ParseKey resolves a key name ("Enter", "ArrowRight") or a single character.
func ParseKey(name string) (input.Key, error) {
	if k, ok := namedKeys[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	if r := []rune(name); len(r) == 1 {
		return input.Key(r[0]), nil
	}
	return 0, fmt.Errorf("unsupported key %q", name)
}

// PressKey presses and releases a key on the focused element.
func (m *SessionManager) PressKey(ctx context.Context, sessionID, key string) error {
	k, err := ParseKey(key)
	if err != nil {
		return err
	}
	page, err := m.page(ctx, sessionID)
	if err != nil {
		return err
	}
	return page.Keyboard.Type(k)
}

func decodeElements(raw []byte) ([]Element, error) {
	var elements []Element
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("decode element snapshot: %w", err)
	}
	return elements, nil
}
