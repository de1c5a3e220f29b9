package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/dazdaz/gemini/internal/errors"
	"github.com/dazdaz/gemini/internal/resilience"
	"github.com/dazdaz/gemini/internal/trace"
)

// Tool names handled by the guard.
const (
	ToolExecute = "execute_computer_task"
	ToolStop    = "stop_computer_task"
)

const defaultFunctionTimeout = 30 * time.Second

// Dispatcher routes tool calls to the guard or to fixed HTTP endpoints.
type Dispatcher struct {
	guard     *Guard
	functions map[string]string
	breakers  map[string]*resilience.Breaker
	client    *http.Client
}

// NewDispatcher registers the named endpoints. Names with an empty URL are
// left out and reported as unknown tools.
func NewDispatcher(guard *Guard, functions map[string]string, client *http.Client) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFunctionTimeout}
	}
	d := &Dispatcher{
		guard:     guard,
		functions: make(map[string]string, len(functions)),
		breakers:  make(map[string]*resilience.Breaker, len(functions)),
		client:    client,
	}
	for name, u := range functions {
		if u == "" {
			continue
		}
		d.functions[name] = u
		d.breakers[name] = resilience.New(resilience.DefaultConfig("cloud_function:" + name))
	}
	return d
}

// Execute runs one tool call and returns its JSON-shaped response.
func (d *Dispatcher) Execute(ctx context.Context, name string, params map[string]any, conv Conversation) map[string]any {
	ctx, span := trace.StartSpan(ctx, "tool:"+name)
	defer span.End()
	log := trace.Logger(ctx)

	switch name {
	case ToolStop:
		log.Info("received request to stop computer agent")
		return d.guard.Stop().Map()
	case ToolExecute:
		if d.guard.Running() {
			return Reply{Status: StatusAlreadyRunning, Summary: "A task is in progress."}.Map()
		}
		query, _ := params["query"].(string)
		if query == "" {
			return errorResult("Missing query")
		}
		if conv == nil {
			return errorResult("Missing session")
		}
		return d.guard.Start(query, conv).Map()
	}

	base, ok := d.functions[name]
	if !ok {
		log.Error("tool not found", "tool", name)
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}
	out, err := resilience.ExecuteWithResult(ctx, d.breakers[name], func(ctx context.Context) (map[string]any, error) {
		return d.call(ctx, base, params)
	})
	if err != nil {
		span.SetAttr("error", err.Error())
		log.Error("cloud function failed", "tool", name, "error", err)
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return errorResult(appErr.Message)
		}
		return errorResult(fmt.Sprintf("Failed to call cloud function: %v", err))
	}
	return out
}

func (d *Dispatcher) call(ctx context.Context, base string, params map[string]any) (map[string]any, error) {
	target := base
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, fmt.Sprint(v))
		}
		target += "?" + q.Encode()
	}
	trace.Logger(ctx).Debug("calling cloud function", "url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeToolFailed, "Failed to call cloud function: %v", err)
	}
	trace.InjectHeader(ctx, req.Header)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeToolFailed, "Failed to call cloud function: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeToolFailed, "Failed to call cloud function: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Newf(apperrors.CodeToolFailed, "Cloud function returned status %d", resp.StatusCode)
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, apperrors.Newf(apperrors.CodeToolFailed, "Invalid JSON response from cloud function: %v", err)
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"result": v}, nil
}

func errorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}
