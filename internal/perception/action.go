package perception

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Action kinds the model may choose.
const (
	ActionClick  = "click"
	ActionType   = "type"
	ActionScroll = "scroll"
	ActionPress  = "press"
	ActionWait   = "wait"
	ActionDone   = "done"
	ActionFail   = "fail"
)

// ErrMalformedAction is wrapped by every action parsing failure.
var ErrMalformedAction = errors.New("malformed action")

// Action is one step chosen by the model.
type Action struct {
	Action  string  `json:"action"`
	Element int     `json:"element,omitempty"`
	Text    string  `json:"text,omitempty"`
	Key     string  `json:"key,omitempty"`
	DX      float64 `json:"dx,omitempty"`
	DY      float64 `json:"dy,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
	Message string  `json:"message,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// String renders the action for history and logs.
func (a Action) String() string {
	switch a.Action {
	case ActionClick:
		return fmt.Sprintf("click [%d]", a.Element)
	case ActionType:
		return fmt.Sprintf("type %q into [%d]", a.Text, a.Element)
	case ActionScroll:
		if a.Element > 0 {
			return fmt.Sprintf("scroll [%d] by (%g, %g)", a.Element, a.DX, a.DY)
		}
		return fmt.Sprintf("scroll page by (%g, %g)", a.DX, a.DY)
	case ActionPress:
		return fmt.Sprintf("press %s", a.Key)
	case ActionWait:
		return fmt.Sprintf("wait %gs", a.Seconds)
	case ActionDone:
		return fmt.Sprintf("done: %s", a.Message)
	case ActionFail:
		return fmt.Sprintf("fail: %s", a.Message)
	default:
		return a.Action
	}
}

// ParseAction extracts the action from a model answer. Code fences and
// prose around the JSON object are tolerated.
func ParseAction(text string) (Action, error) {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return Action{}, fmt.Errorf("%w: no JSON object in %q", ErrMalformedAction, clip(text, 200))
	}

	var a Action
	if err := json.Unmarshal([]byte(body[start:end+1]), &a); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	a.Action = strings.ToLower(strings.TrimSpace(a.Action))
	return a, a.Validate()
}

// Validate checks that the fields the action needs are present.
func (a Action) Validate() error {
	switch a.Action {
	case ActionClick:
		if a.Element <= 0 {
			return fmt.Errorf("%w: click needs an element", ErrMalformedAction)
		}
	case ActionType:
		if a.Element <= 0 {
			return fmt.Errorf("%w: type needs an element", ErrMalformedAction)
		}
	case ActionScroll:
		if a.DX == 0 && a.DY == 0 {
			return fmt.Errorf("%w: scroll needs dx or dy", ErrMalformedAction)
		}
	case ActionPress:
		if strings.TrimSpace(a.Key) == "" {
			return fmt.Errorf("%w: press needs a key", ErrMalformedAction)
		}
	case ActionWait, ActionDone, ActionFail:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrMalformedAction, a.Action)
	}
	return nil
}

// actionProtocol is appended to every system prompt.
const actionProtocol = `
You control a web browser. Each turn you receive a screenshot of the viewport, the page URL and title,
and a numbered list of page elements such as "[12] <button> "Approve (A)"". Elements marked offscreen
are outside the viewport; cell=rXcY gives the table row and column of a cell.

Reply with exactly one JSON object and nothing else, choosing one action:
  {"action":"click","element":N,"reason":"..."}
  {"action":"type","element":N,"text":"...","reason":"..."}
  {"action":"scroll","element":N,"dx":PIXELS,"dy":PIXELS,"reason":"..."}   (omit element to scroll the page)
  {"action":"press","key":"Enter|Tab|Escape|ArrowRight|ArrowLeft|ArrowDown|ArrowUp|PageDown|PageUp|-|+","reason":"..."}
  {"action":"wait","seconds":S,"reason":"..."}
  {"action":"done","message":"..."}
  {"action":"fail","message":"why the instruction cannot be carried out"}

Text of the form %name% is a placeholder; type it exactly as written and it will be filled in for you.
Choose "done" as soon as the instruction is complete. Its message is your final answer.
`

// Step is one executed action and what came of it.
type Step struct {
	Action Action
	Err    error
}

func (s Step) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s -> error: %v", s.Action, s.Err)
	}
	return fmt.Sprintf("%s -> ok", s.Action)
}

// buildPrompt renders the user turn.
func buildPrompt(instruction string, obs Observation, history []Step, stepsLeft int) string {
	var b strings.Builder
	b.WriteString("Instruction:\n")
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Page: %s\nTitle: %s\n\n", obs.URL, obs.Title)

	b.WriteString("Elements:\n")
	if len(obs.Elements) == 0 {
		b.WriteString("(none)\n")
	}
	for _, el := range obs.Elements {
		b.WriteString(el.Describe())
		b.WriteByte('\n')
	}

	if len(history) > 0 {
		b.WriteString("\nPrevious steps:\n")
		for i, s := range history {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	fmt.Fprintf(&b, "\nSteps left: %d\n", stepsLeft)
	return b.String()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
