// Package engine drives agent runs to completion. The Driver decides
// what happens next; the Engine turns that decision into an executed
// action, feeds the result back, and stops at a terminal state.
package engine

import (
	"context"
	"fmt"

	"github.com/drover-dev/drover/internal/domain"
)

// ActionExecutor carries out a single action and reports what happened.
// Failures of the action itself should come back as an error
// observation; the error return is reserved for infrastructure faults
// that should abort the run.
type ActionExecutor interface {
	Execute(ctx context.Context, action domain.Action) (domain.Observation, error)
}

// ActionExecutorFunc adapts a function to the ActionExecutor interface.
type ActionExecutorFunc func(ctx context.Context, action domain.Action) (domain.Observation, error)

// Execute calls f(ctx, action).
func (f ActionExecutorFunc) Execute(ctx context.Context, action domain.Action) (domain.Observation, error) {
	return f(ctx, action)
}

// StatusHandler receives progress notifications during a run.
type StatusHandler interface {
	OnTurnStart(run *domain.Run, turn int)
	OnAction(run *domain.Run, turn int, action domain.Action)
	OnObservation(run *domain.Run, turn int, obs domain.Observation)
	OnRunComplete(run *domain.Run)
}

// noopStatus is the default handler when none is set.
type noopStatus struct{}

func (noopStatus) OnTurnStart(*domain.Run, int)                       {}
func (noopStatus) OnAction(*domain.Run, int, domain.Action)           {}
func (noopStatus) OnObservation(*domain.Run, int, domain.Observation) {}
func (noopStatus) OnRunComplete(*domain.Run)                          {}

// Engine runs one agent to a terminal state, one turn at a time.
type Engine struct {
	executor ActionExecutor
	status   StatusHandler
	maxTurns int
	maxChars int
}

// New creates an engine with the given action executor.
func New(executor ActionExecutor) *Engine {
	return &Engine{
		executor: executor,
		status:   noopStatus{},
		maxTurns: 100,
		maxChars: 5_000_000,
	}
}

// SetStatusHandler installs a handler for progress notifications.
func (e *Engine) SetStatusHandler(h StatusHandler) {
	if h != nil {
		e.status = h
	}
}

// SetMaxTurns bounds how many turns a run may take before it is failed.
func (e *Engine) SetMaxTurns(n int) {
	if n > 0 {
		e.maxTurns = n
	}
}

// SetMaxChars bounds the cumulative prompt and reply size before the
// run is failed.
func (e *Engine) SetMaxChars(n int) {
	if n > 0 {
		e.maxChars = n
	}
}

// Run executes turns until the driver produces a terminal action or a
// limit trips. Each turn the driver sees exactly the interactions from
// the previous turn. The returned Run carries the terminal state even
// when an error is also returned.
func (e *Engine) Run(ctx context.Context, runID string, driver *Driver) (*domain.Run, error) {
	run := domain.NewRun(runID, driver.AgentName())
	run.Start()

	var pending []domain.Interaction
	for turn := 1; ; turn++ {
		if err := ctx.Err(); err != nil {
			run.Fail("run cancelled")
			return run, fmt.Errorf("run cancelled: %w", err)
		}
		if turn > e.maxTurns {
			run.Fail(fmt.Sprintf("exceeded maximum turn count (%d)", e.maxTurns))
			return run, fmt.Errorf("run exceeded maximum turn count (%d)", e.maxTurns)
		}
		if driver.Chars() > e.maxChars {
			run.Fail(fmt.Sprintf("exceeded character budget (%d)", e.maxChars))
			return run, fmt.Errorf("run exceeded character budget (%d)", e.maxChars)
		}

		e.status.OnTurnStart(run, turn)

		action, err := driver.Advance(ctx, pending)
		if err != nil {
			run.Fail(err.Error())
			return run, fmt.Errorf("turn %d: %w", turn, err)
		}
		pending = nil

		run.RecordTurn(driver.StepIndex())
		run.Chars = driver.Chars()
		e.status.OnAction(run, turn, action)

		if domain.Terminal(action) {
			if action.Kind() == domain.ActionFinish {
				run.Complete(domain.RunStateFinished)
			} else {
				run.Complete(domain.RunStateRejected)
			}
			e.status.OnRunComplete(run)
			return run, nil
		}

		obs, err := e.executor.Execute(ctx, action)
		if err != nil {
			run.Fail(fmt.Sprintf("action %s: %v", action.Kind(), err))
			return run, fmt.Errorf("action %s: %w", action.Kind(), err)
		}
		e.status.OnObservation(run, turn, obs)

		pending = []domain.Interaction{{Action: action, Observation: obs}}
	}
}
