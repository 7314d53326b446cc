package browser

import "context"

// Tab binds a SessionManager to one session so callers can drive a single
// page without carrying its ID around.
type Tab struct {
	m  *SessionManager
	id string
}

// OpenTab creates a session and returns it as a Tab.
func (m *SessionManager) OpenTab(ctx context.Context, url string) (*Tab, error) {
	s, err := m.CreateSession(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Tab{m: m, id: s.ID}, nil
}

// ID returns the session ID.
func (t *Tab) ID() string { return t.id }

func (t *Tab) Navigate(ctx context.Context, url string) error {
	return t.m.Navigate(ctx, t.id, url)
}

func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	return t.m.Screenshot(ctx, t.id, false)
}

func (t *Tab) Elements(ctx context.Context) ([]Element, error) {
	return t.m.Elements(ctx, t.id)
}

func (t *Tab) Info(ctx context.Context) (PageInfo, error) {
	return t.m.Info(ctx, t.id)
}

func (t *Tab) Click(ctx context.Context, index int) error {
	return t.m.ClickElement(ctx, t.id, index)
}

func (t *Tab) Type(ctx context.Context, index int, text string) error {
	return t.m.TypeInto(ctx, t.id, index, text)
}

func (t *Tab) ScrollElement(ctx context.Context, index int, dx, dy float64) error {
	return t.m.ScrollElement(ctx, t.id, index, dx, dy)
}

func (t *Tab) ScrollPage(ctx context.Context, dx, dy float64) error {
	return t.m.ScrollPage(ctx, t.id, dx, dy)
}

func (t *Tab) PressKey(ctx context.Context, key string) error {
	return t.m.PressKey(ctx, t.id, key)
}

// Close closes the page. The browser keeps running.
func (t *Tab) Close() error {
	return t.m.CloseSession(t.id)
}
