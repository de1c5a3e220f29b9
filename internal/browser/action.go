// Package browser drives a persistent Chrome window toward a natural language
// goal, one model-chosen action per step.
package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp/kb"

	apperrors "github.com/dazdaz/gemini/internal/errors"
)

// Action kinds the model may choose.
const (
	ActionNavigate = "navigate"
	ActionClick    = "click"
	ActionType     = "type"
	ActionPress    = "press"
	ActionScroll   = "scroll"
	ActionWait     = "wait"
	ActionDone     = "done"
)

// Action is one step chosen by the model.
type Action struct {
	Action    string `json:"action"`
	URL       string `json:"url,omitempty"`
	Selector  string `json:"selector,omitempty"`
	Text      string `json:"text,omitempty"`
	Key       string `json:"key,omitempty"`
	Direction string `json:"direction,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

func (a Action) String() string {
	switch a.Action {
	case ActionNavigate:
		return fmt.Sprintf("navigate %s", a.URL)
	case ActionClick:
		return fmt.Sprintf("click %s", a.Selector)
	case ActionType:
		return fmt.Sprintf("type %q into %s", a.Text, a.Selector)
	case ActionPress:
		return fmt.Sprintf("press %s", a.Key)
	case ActionScroll:
		return fmt.Sprintf("scroll %s", a.direction())
	default:
		return a.Action
	}
}

func (a Action) direction() string {
	if strings.EqualFold(a.Direction, "up") {
		return "up"
	}
	return "down"
}

// ParseAction decodes a model reply, tolerating a fenced code block.
func ParseAction(text string) (Action, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	var a Action
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return Action{}, apperrors.Wrap(err, apperrors.CodeLLMAPIError, "model returned an invalid action")
	}
	a.Action = strings.ToLower(strings.TrimSpace(a.Action))
	if err := a.validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

func (a Action) validate() error {
	missing := func(field string) error {
		return apperrors.Newf(apperrors.CodeLLMAPIError, "%s action requires %s", a.Action, field)
	}
	switch a.Action {
	case ActionNavigate:
		if a.URL == "" {
			return missing("url")
		}
	case ActionClick:
		if a.Selector == "" {
			return missing("selector")
		}
	case ActionType:
		if a.Selector == "" {
			return missing("selector")
		}
	case ActionPress:
		if _, ok := keyCode(a.Key); !ok {
			return apperrors.Newf(apperrors.CodeLLMAPIError, "unsupported key %q", a.Key)
		}
	case ActionScroll, ActionWait, ActionDone:
	default:
		return apperrors.Newf(apperrors.CodeLLMAPIError, "unknown action %q", a.Action)
	}
	return nil
}

var keys = map[string]string{
	"enter":     kb.Enter,
	"tab":       kb.Tab,
	"escape":    kb.Escape,
	"backspace": kb.Backspace,
	"arrowdown": kb.ArrowDown,
	"arrowup":   kb.ArrowUp,
	"pagedown":  kb.PageDown,
	"pageup":    kb.PageUp,
}

func keyCode(name string) (string, bool) {
	k, ok := keys[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}
