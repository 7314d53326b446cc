package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditor/internal/browser"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Action
		wantErr bool
	}{
		{
			name:  "plain click",
			input: `{"action":"click","element":4,"reason":"VIEW link"}`,
			want:  Action{Action: ActionClick, Element: 4, Reason: "VIEW link"},
		},
		{
			name:  "fenced json",
			input: "```json\n{\"action\":\"press\",\"key\":\"ArrowRight\"}\n```",
			want:  Action{Action: ActionPress, Key: "ArrowRight"},
		},
		{
			name:  "prose around object",
			input: "Sure. {\"action\":\"done\",\"message\":\"[ABCDEFGHIJ] value found\"} Hope that helps.",
			want:  Action{Action: ActionDone, Message: "[ABCDEFGHIJ] value found"},
		},
		{
			name:  "action name is case insensitive",
			input: `{"action":" Scroll ","dy":300}`,
			want:  Action{Action: ActionScroll, DY: 300},
		},
		{name: "no object", input: "I will click the button", wantErr: true},
		{name: "broken json", input: `{"action":"click","element":}`, wantErr: true},
		{name: "unknown action", input: `{"action":"hover","element":2}`, wantErr: true},
		{name: "click without element", input: `{"action":"click"}`, wantErr: true},
		{name: "type without element", input: `{"action":"type","text":"x"}`, wantErr: true},
		{name: "scroll without distance", input: `{"action":"scroll","element":3}`, wantErr: true},
		{name: "press without key", input: `{"action":"press","key":"  "}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedAction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "click [2]", Action{Action: ActionClick, Element: 2}.String())
	assert.Equal(t, `type "%password%" into [5]`, Action{Action: ActionType, Element: 5, Text: "%password%"}.String())
	assert.Equal(t, "scroll [7] by (400, 0)", Action{Action: ActionScroll, Element: 7, DX: 400}.String())
	assert.Equal(t, "scroll page by (0, -200)", Action{Action: ActionScroll, DY: -200}.String())
	assert.Equal(t, "wait 1.5s", Action{Action: ActionWait, Seconds: 1.5}.String())
}

func TestBuildPrompt(t *testing.T) {
	obs := Observation{
		URL:   "https://portal.example/tasks",
		Title: "Tasks",
		Elements: []browser.Element{
			{Index: 1, Tag: "A", Text: "VIEW", Row: 1, Column: 1, InViewport: true},
		},
	}
	history := []Step{{Action: Action{Action: ActionPress, Key: "Escape"}}}

	prompt := buildPrompt("  Close the dialog  ", obs, history, 3)
	assert.Contains(t, prompt, "Instruction:\nClose the dialog\n")
	assert.Contains(t, prompt, "Page: https://portal.example/tasks\nTitle: Tasks")
	assert.Contains(t, prompt, `[1] <a> "VIEW"`)
	assert.Contains(t, prompt, "1. press Escape -> ok")
	assert.Contains(t, prompt, "Steps left: 3")

	empty := buildPrompt("x", Observation{}, nil, 1)
	assert.Contains(t, empty, "(none)")
	assert.NotContains(t, empty, "Previous steps")
}
