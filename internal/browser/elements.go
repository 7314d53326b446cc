package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// indexAttr tags snapshot elements so later actions can find them again.
const indexAttr = "data-auditor-idx"

// maxSnapshotElements bounds the snapshot sent to the model.
const maxSnapshotElements = 300

// Element is one actionable or readable node of the page, numbered so a
// model can refer to it by Index.
type Element struct {
	Index       int     `json:"index"`
	Tag         string  `json:"tag"`
	Role        string  `json:"role,omitempty"`
	Type        string  `json:"type,omitempty"`
	Text        string  `json:"text,omitempty"`
	Label       string  `json:"label,omitempty"`
	Value       string  `json:"value,omitempty"`
	Href        string  `json:"href,omitempty"`
	Row         int     `json:"row,omitempty"`
	Column      int     `json:"column,omitempty"`
	Scrollable  bool    `json:"scrollable,omitempty"`
	InViewport  bool    `json:"in_viewport"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Disabled    bool    `json:"disabled,omitempty"`
	Placeholder string  `json:"placeholder,omitempty"`
}

// Describe renders the element as one line of model context.
func (e Element) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] <%s", e.Index, strings.ToLower(e.Tag))
	if e.Type != "" {
		fmt.Fprintf(&b, " type=%s", e.Type)
	}
	if e.Role != "" {
		fmt.Fprintf(&b, " role=%s", e.Role)
	}
	b.WriteString(">")
	if e.Text != "" {
		fmt.Fprintf(&b, " %q", e.Text)
	}
	if e.Label != "" && e.Label != e.Text {
		fmt.Fprintf(&b, " label=%q", e.Label)
	}
	if e.Placeholder != "" {
		fmt.Fprintf(&b, " placeholder=%q", e.Placeholder)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " value=%q", e.Value)
	}
	if e.Row > 0 || e.Column > 0 {
		fmt.Fprintf(&b, " cell=r%dc%d", e.Row, e.Column)
	}
	if e.Scrollable {
		b.WriteString(" scrollable")
	}
	if e.Disabled {
		b.WriteString(" disabled")
	}
	if !e.InViewport {
		b.WriteString(" offscreen")
	}
	return b.String()
}

// snapshotScript numbers interactive controls, table cells, images and
// headings, and tags each with indexAttr. Password values are never read.
const snapshotScript = `
(attr, limit) => {
	document.querySelectorAll('[' + attr + ']').forEach(el => el.removeAttribute(attr));

	const selector = [
		'a[href]', 'button', 'input', 'select', 'textarea', 'summary',
		'[role=button]', '[role=link]', '[role=tab]', '[role=menuitem]', '[role=checkbox]',
		'[onclick]', '[tabindex]:not([tabindex="-1"])',
		'th', 'td', 'img', 'label', 'h1', 'h2', 'h3', 'h4'
	].join(',');

	const clip = (s, n) => (s || '').replace(/\s+/g, ' ').trim().slice(0, n);
	const vw = window.innerWidth, vh = window.innerHeight;
	const out = [];
	const seen = new Set();

	const candidates = Array.from(document.querySelectorAll(selector));
	document.querySelectorAll('div,section,main,table').forEach(el => {
		const style = window.getComputedStyle(el);
		const scrollX = el.scrollWidth > el.clientWidth + 4 && /(auto|scroll)/.test(style.overflowX);
		const scrollY = el.scrollHeight > el.clientHeight + 4 && /(auto|scroll)/.test(style.overflowY);
		if (scrollX || scrollY) candidates.push(el);
	});

	for (const el of candidates) {
		if (out.length >= limit) break;
		if (seen.has(el)) continue;
		seen.add(el);

		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || rect.width === 0 || rect.height === 0) continue;

		const tag = el.tagName;
		const type = (el.getAttribute('type') || '').toLowerCase();
		let label = el.getAttribute('aria-label') || el.getAttribute('title') || el.getAttribute('alt') || '';
		if (!label && el.id) {
			const l = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
			if (l) label = l.innerText;
		}

		let row = 0, column = 0;
		if ((tag === 'TD' || tag === 'TH') && el.parentElement) {
			row = el.parentElement.rowIndex + 1;
			column = el.cellIndex + 1;
		}

		const scrollable = (el.scrollWidth > el.clientWidth + 4 && /(auto|scroll)/.test(style.overflowX)) ||
			(el.scrollHeight > el.clientHeight + 4 && /(auto|scroll)/.test(style.overflowY));

		const idx = out.length + 1;
		el.setAttribute(attr, String(idx));
		out.push({
			index: idx,
			tag,
			role: el.getAttribute('role') || '',
			type,
			text: clip(el.innerText || el.textContent, 160),
			label: clip(label, 120),
			value: type === 'password' ? '' : clip(el.value, 120),
			href: el.getAttribute('href') || '',
			placeholder: clip(el.getAttribute('placeholder'), 80),
			row,
			column,
			scrollable,
			disabled: !!el.disabled,
			in_viewport: rect.bottom > 0 && rect.right > 0 && rect.top < vh && rect.left < vw,
			x: rect.x, y: rect.y, width: rect.width, height: rect.height
		});
	}
	return JSON.stringify(out);
}
`

// Elements returns a fresh numbered snapshot of the page. Indices are only
// valid until the next snapshot.
func (m *SessionManager) Elements(ctx context.Context, sessionID string) ([]Element, error) {
	page, err := m.page(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res, err := page.Evaluate(&rod.EvalOptions{
		JS:           snapshotScript,
		JSArgs:       []interface{}{indexAttr, maxSnapshotElements},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, fmt.Errorf("element snapshot: %w", err)
	}
	if res == nil || res.Value.Nil() {
		return nil, nil
	}
	return decodeElements([]byte(res.Value.Str()))
}

func (m *SessionManager) element(ctx context.Context, sessionID string, index int) (*rod.Element, error) {
	page, err := m.page(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sel := fmt.Sprintf(`[%s="%d"]`, indexAttr, index)
	has, el, err := page.Has(sel)
	if err != nil {
		return nil, fmt.Errorf("find element %d: %w", index, err)
	}
	if !has {
		return nil, fmt.Errorf("element %d is no longer on the page", index)
	}
	return el, nil
}

// ClickElement clicks a snapshot element.
func (m *SessionManager) ClickElement(ctx context.Context, sessionID string, index int) error {
	el, err := m.element(ctx, sessionID, index)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll element %d into view: %w", index, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click element %d: %w", index, err)
	}
	return nil
}

// TypeInto replaces the content of a snapshot input element.
func (m *SessionManager) TypeInto(ctx context.Context, sessionID string, index int, text string) error {
	el, err := m.element(ctx, sessionID, index)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select element %d: %w", index, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into element %d: %w", index, err)
	}
	return nil
}

// ScrollElement scrolls a snapshot element's content by the given offsets.
func (m *SessionManager) ScrollElement(ctx context.Context, sessionID string, index int, dx, dy float64) error {
	el, err := m.element(ctx, sessionID, index)
	if err != nil {
		return err
	}
	_, err = el.Evaluate(&rod.EvalOptions{
		JS:      `function(dx, dy) { this.scrollBy(dx, dy); }`,
		JSArgs:  []interface{}{dx, dy},
		ByValue: true,
	})
	if err != nil {
		return fmt.Errorf("scroll element %d: %w", index, err)
	}
	return nil
}
