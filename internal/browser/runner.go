package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"strings"

	"github.com/corona10/goimagehash"
	"google.golang.org/genai"

	"github.com/dazdaz/gemini/internal/gemini"
	"github.com/dazdaz/gemini/internal/trace"
)

// DefaultSummary is returned when the model never explains its result.
const DefaultSummary = "Task completed, but no final summary was generated."

const (
	defaultMaxSteps = 25
	// maxHashDistance is the perceptual hash distance at or under which two
	// screenshots count as the same page.
	maxHashDistance = 4
	historyLimit    = 10
)

const systemPrompt = `You control a web browser to accomplish the user's goal.
Each turn you receive the current URL, page title, visible text and a screenshot.
Reply with exactly one JSON object and nothing else:
{"action": "navigate|click|type|press|scroll|wait|done", "url": "...", "selector": "CSS selector", "text": "...", "key": "Enter|Tab|Escape|Backspace|ArrowDown|ArrowUp|PageDown|PageUp", "direction": "down|up", "reasoning": "..."}
Use "done" when the goal is achieved or impossible; its reasoning is read aloud to the user as the final answer.`

// Browser is the page surface the runner drives.
type Browser interface {
	Observe(ctx context.Context) (Observation, error)
	Apply(ctx context.Context, a Action) error
	BringToFront(ctx context.Context) error
}

// Runner runs goal-directed tasks. It is used by one task at a time.
type Runner struct {
	browser  Browser
	model    gemini.Generator
	name     string
	maxSteps int
	lastHash *goimagehash.ImageHash
}

// NewRunner creates a runner using model name for decisions.
func NewRunner(b Browser, model gemini.Generator, name string, maxSteps int) *Runner {
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	return &Runner{browser: b, model: model, name: name, maxSteps: maxSteps}
}

// Run works toward query until the model says done, the step budget runs out
// or ctx is cancelled. Cancellation is checked once per step.
func (r *Runner) Run(ctx context.Context, query string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "browser_task")
	defer span.End()
	log := trace.Logger(ctx)
	log.Info("computer agent task started", "query", query)

	r.lastHash = nil
	summary := DefaultSummary
	var history []string

	for step := 1; step <= r.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		obs, err := r.browser.Observe(ctx)
		if err != nil {
			return "", err
		}
		unchanged := r.sameAsLast(obs.Screenshot) && step > 1

		action, err := r.decide(ctx, query, step, obs, history, unchanged)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Warn("could not decide next action", "step", step, "error", err)
			history = appendHistory(history, fmt.Sprintf("step %d: invalid reply (%v)", step, err))
			continue
		}
		if action.Reasoning != "" {
			summary = action.Reasoning
		}
		log.Debug("agent action", "step", step, "action", action.String())
		if action.Action == ActionDone {
			break
		}

		entry := fmt.Sprintf("step %d: %s", step, action)
		if err := r.browser.Apply(ctx, action); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			entry += fmt.Sprintf(" failed: %v", err)
		}
		history = appendHistory(history, entry)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := r.browser.BringToFront(ctx); err != nil {
		log.Warn("could not bring browser to front", "error", err)
	}
	span.SetAttr("summary", summary)
	return summary, nil
}

func (r *Runner) decide(ctx context.Context, query string, step int, obs Observation, history []string, unchanged bool) (Action, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\nStep %d of %d\nURL: %s\nTitle: %s\n", query, step, r.maxSteps, obs.URL, obs.Title)
	if len(history) > 0 {
		b.WriteString("Previous actions:\n")
		for _, h := range history {
			b.WriteString("- " + h + "\n")
		}
	}
	if unchanged {
		b.WriteString("Note: the last action did not visibly change the page.\n")
	}
	fmt.Fprintf(&b, "Visible text:\n%s\n", obs.Text)

	parts := []*genai.Part{genai.NewPartFromText(b.String())}
	if len(obs.Screenshot) > 0 {
		parts = append(parts, genai.NewPartFromBytes(obs.Screenshot, "image/png"))
	}
	resp, err := r.model.GenerateContent(ctx, r.name,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.2),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		return Action{}, err
	}
	return ParseAction(resp.Text())
}

// sameAsLast hashes img and reports whether it matches the previous frame.
func (r *Runner) sameAsLast(img []byte) bool {
	decoded, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return false
	}
	hash, err := goimagehash.PerceptionHash(decoded)
	if err != nil {
		return false
	}
	prev := r.lastHash
	r.lastHash = hash
	if prev == nil {
		return false
	}
	dist, err := prev.Distance(hash)
	return err == nil && dist <= maxHashDistance
}

func appendHistory(h []string, entry string) []string {
	h = append(h, entry)
	if len(h) > historyLimit {
		h = h[len(h)-historyLimit:]
	}
	return h
}
