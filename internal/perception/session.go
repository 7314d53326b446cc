package perception

import (
	"context"
	"fmt"
	"sync"

	"auditor/internal/audit"
	"auditor/internal/browser"
	"auditor/internal/logging"
)

// Session is one browser tab driven by an Engine. It implements
// audit.Session.
type Session struct {
	*Engine
	driver Driver

	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps a driver and engine.
func NewSession(driver Driver, engine *Engine) *Session {
	return &Session{Engine: engine, driver: driver}
}

// Navigate loads url in the session's tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	logging.Session("navigating to %s", url)
	return s.driver.Navigate(ctx, url)
}

// Close closes the tab. Later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.driver.Close()
		logging.Session("session closed")
	})
	return s.closeErr
}

// Opener creates Sessions as fresh tabs of one Chrome instance.
type Opener struct {
	Manager *browser.SessionManager
	Act     Model
	Agent   Model
	Options EngineOptions
	// Traced, when set, is re-attributed to each new tab.
	Traced []*TracingModel
}

// Open implements audit.Opener.
func (o *Opener) Open(ctx context.Context) (audit.Session, error) {
	tab, err := o.Manager.OpenTab(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	for _, tm := range o.Traced {
		tm.SetSession(tab.ID())
	}
	logging.Session("session %s opened", tab.ID())
	return NewSession(tab, NewEngine(tab, o.Act, o.Agent, o.Options)), nil
}
