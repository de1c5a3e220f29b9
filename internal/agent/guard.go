// Package agent runs at most one background browser task at a time on behalf
// of a live conversation and dispatches the conversation's tool calls.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dazdaz/gemini/internal/syncx"
	"github.com/dazdaz/gemini/internal/trace"
)

// Runner performs one automation task. It must poll ctx between steps.
type Runner interface {
	Run(ctx context.Context, query string) (string, error)
}

// Conversation receives the outcome of a background task as a new turn.
type Conversation interface {
	SendTurn(ctx context.Context, text string) error
}

// Status is the tool-facing outcome of a guard operation.
type Status string

const (
	StatusStarted        Status = "started"
	StatusSuccess        Status = "success"
	StatusAlreadyRunning Status = "already_running"
	StatusNoTask         Status = "no_task"
	StatusCancelled      Status = "cancelled"
	StatusError          Status = "error"
)

const (
	completeTurn  = "The task is complete."
	cancelledTurn = "The task has been cancelled."
	errorTurn     = "An error occurred during the task."
)

// Reply is returned to the model for start and stop requests.
type Reply struct {
	Status  Status `json:"status"`
	Summary string `json:"summary"`
}

// Map renders the reply as a tool response payload.
func (r Reply) Map() map[string]any {
	return map[string]any{"status": string(r.Status), "summary": r.Summary}
}

// TaskResult is the final state of a background task.
type TaskResult struct {
	Status  Status
	Summary string
}

type task struct {
	id     string
	query  string
	ctx    context.Context
	cancel context.CancelFunc
	conv   Conversation
	once   sync.Once
	done   chan struct{}
	result TaskResult
}

// Guard enforces the single-flight rule: Idle until Start wins the slot,
// Running until the task's completion handler clears it.
type Guard struct {
	runner Runner
	base   context.Context
	slot   syncx.Slot[task]
	wg     sync.WaitGroup
}

// NewGuard creates a guard whose tasks inherit ctx's values and lifetime.
func NewGuard(ctx context.Context, runner Runner) *Guard {
	return &Guard{runner: runner, base: ctx}
}

// Running reports whether a task holds the slot.
func (g *Guard) Running() bool {
	t := g.slot.Load()
	return t != nil && !t.finished()
}

// Start launches query in the background unless a task is already running.
func (g *Guard) Start(query string, conv Conversation) Reply {
	ctx, cancel := context.WithCancel(trace.WithSession(g.base, uuid.NewString()))
	t := &task{id: trace.SessionID(ctx), query: query, ctx: ctx, cancel: cancel, conv: conv, done: make(chan struct{})}
	if !g.slot.TryFill(t) {
		cancel()
		return Reply{Status: StatusAlreadyRunning, Summary: "A task is in progress."}
	}

	trace.Logger(ctx).Info("background task scheduled", "query", query)
	g.wg.Add(1)
	go g.run(t)
	return Reply{Status: StatusStarted, Summary: fmt.Sprintf("Task '%s' has started.", query)}
}

// Stop requests cancellation of the running task. The transition to Idle
// happens when the task observes the cancellation.
func (g *Guard) Stop() Reply {
	t := g.slot.Load()
	if t == nil || t.finished() {
		return Reply{Status: StatusNoTask, Summary: "No task is running."}
	}
	trace.Logger(t.ctx).Info("stop requested", "query", t.query)
	t.cancel()
	return Reply{Status: StatusSuccess, Summary: "Stop signal sent."}
}

// Wait blocks until every started task has completed.
func (g *Guard) Wait() {
	g.wg.Wait()
}

func (g *Guard) run(t *task) {
	defer g.wg.Done()
	log := trace.Logger(t.ctx)
	log.Info("background task running", "query", t.query)

	summary, err := g.invoke(t)
	res := g.complete(t, summary, err)
	log.Info("background task finished", "status", res.Status, "summary", res.Summary)
}

func (g *Guard) invoke(t *task) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return g.runner.Run(t.ctx, t.query)
}

// complete runs once per task: it reports the outcome to the conversation
// and frees the slot if the task still owns it.
func (g *Guard) complete(t *task, summary string, err error) TaskResult {
	t.once.Do(func() {
		switch {
		case t.ctx.Err() != nil || errors.Is(err, context.Canceled):
			t.result = TaskResult{Status: StatusCancelled, Summary: cancelledTurn}
		case err != nil:
			t.result = TaskResult{Status: StatusError, Summary: err.Error()}
		default:
			if summary == "" {
				summary = completeTurn
			}
			t.result = TaskResult{Status: StatusSuccess, Summary: summary}
		}

		turn := t.result.Summary
		switch t.result.Status {
		case StatusCancelled:
			turn = cancelledTurn
		case StatusError:
			turn = errorTurn
		}
		log := trace.Logger(t.ctx)
		if t.conv != nil {
			if err := t.conv.SendTurn(context.WithoutCancel(t.ctx), turn); err != nil {
				log.Warn("could not report task outcome", "error", err)
			}
		}

		t.cancel()
		close(t.done)
		g.slot.ClearIf(t)
		log.Debug("background task cleared", "task", t.id)
	})
	return t.result
}

func (t *task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
