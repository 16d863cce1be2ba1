package engine

import (
	"context"
	"fmt"

	"github.com/drover-dev/drover/internal/definition"
	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/ports"
	"github.com/drover-dev/drover/internal/prompt"
	"github.com/drover-dev/drover/internal/protocol"
)

// Driver advances one agent through its definition, producing exactly
// one action per Advance call. It owns the step cursor and the data
// collected from completed steps; the caller owns executing actions and
// feeding the observed interactions back in. One Driver serves one run,
// and Advance must be invoked sequentially, never concurrently.
type Driver struct {
	def       *definition.Definition
	completer ports.Completer
	renderer  *prompt.Renderer
	delegates map[string]*definition.Definition

	inputs    map[string]any
	stepIndex int
	collected map[string]domain.Observation
	chars     int
}

// NewDriver builds a driver for one run of def. The registry supplies
// the delegate listing for prompt context; def itself is removed from
// it. A definition that fails its construction rules is refused here,
// before any turn runs.
func NewDriver(def *definition.Definition, reg *definition.Registry, completer ports.Completer, renderer *prompt.Renderer) (*Driver, error) {
	if err := def.Check(); err != nil {
		return nil, err
	}
	delegates := map[string]*definition.Definition{}
	if reg != nil {
		delegates = reg.Delegates(def.Name)
	}
	return &Driver{
		def:       def,
		completer: completer,
		renderer:  renderer,
		delegates: delegates,
		inputs:    map[string]any{},
		collected: make(map[string]domain.Observation),
	}, nil
}

// SetInputs hands the run's caller-supplied inputs to the driver. The
// top-level prompt sees them directly; workflow steps see them through
// the state.
func (d *Driver) SetInputs(inputs map[string]any) {
	if inputs != nil {
		d.inputs = inputs
	}
}

// Advance evaluates one transition. For workflow agents: past the final
// step it returns a finish action; a failed validation of the previous
// step returns a reject action; otherwise it resolves the current step,
// fixed or prompted. Agents without a workflow resolve their top-level
// prompt every turn until the model itself finishes or rejects.
//
// interactions is the log of (action, observation) pairs observed since
// the previous Advance call; the driver reads it and never writes it.
func (d *Driver) Advance(ctx context.Context, interactions []domain.Interaction) (domain.Action, error) {
	if d.def.Workflow == nil {
		return d.promptAction(ctx, d.def.Prompt, d.inputs)
	}
	return d.advanceWorkflow(ctx, interactions)
}

func (d *Driver) advanceWorkflow(ctx context.Context, interactions []domain.Interaction) (domain.Action, error) {
	if d.stepIndex >= len(d.def.Workflow) {
		return domain.AgentFinishAction{}, nil
	}
	if d.stepIndex > 0 && !d.validatePrevious(interactions) {
		return domain.AgentRejectAction{}, nil
	}

	step := d.def.Workflow[d.stepIndex]
	// The cursor moves before any output is produced, so a crash from
	// here on can never replay a step already handed out.
	d.stepIndex++

	if _, ok := step.ActionKind(); ok {
		action, err := step.FixedAction()
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
		return action, nil
	}
	if tmpl, ok := step.PromptTemplate(); ok {
		return d.promptAction(ctx, tmpl, step.StepInputs())
	}
	return nil, &definition.DefinitionError{
		Agent:  d.def.Name,
		Step:   step.Name,
		Reason: "step must contain either an action or a prompt",
	}
}

// validatePrevious applies the acceptance rule to the just-completed
// step. Every interaction whose action matches the step's fixed
// discriminator is recorded under the step name first, then checked;
// the first failure rejects the run with the recorded data retained.
// Prompt-driven steps have no discriminator to match and always pass.
func (d *Driver) validatePrevious(interactions []domain.Interaction) bool {
	prev := d.def.Workflow[d.stepIndex-1]
	kind, fixed := prev.ActionKind()
	if !fixed {
		return true
	}
	for _, pair := range interactions {
		if pair.Action == nil || pair.Action.Kind() != kind {
			continue
		}
		d.collected[prev.Name] = pair.Observation
		if !domain.Accept(pair.Observation) {
			return false
		}
	}
	return true
}

// promptAction renders a prompt template, submits it as a single user
// message, and extracts the action from the reply. Extraction failures
// propagate to the caller untouched; the driver never retries them.
func (d *Driver) promptAction(ctx context.Context, tmpl string, inputs map[string]any) (domain.Action, error) {
	rendered, err := d.renderer.Render(tmpl, prompt.Context{
		State:     d.stateView(),
		Delegates: delegateView(d.delegates),
		Inputs:    inputs,
	})
	if err != nil {
		return nil, err
	}

	reply, err := d.completer.Complete(ctx, []domain.Message{
		{Role: domain.RoleUser, Content: rendered},
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	d.chars += len(rendered) + len(reply)

	return protocol.Extract(reply)
}

// stateView is the read-only snapshot templates see as "state".
// Collected observations appear in their serialized map form.
func (d *Driver) stateView() map[string]any {
	collected := make(map[string]any, len(d.collected))
	for name, obs := range d.collected {
		collected[name] = obs.ToMap()
	}
	return map[string]any{
		"agent":      d.def.Name,
		"step_index": d.stepIndex,
		"inputs":     d.inputs,
		"collected":  collected,
		"chars":      d.chars,
	}
}

func delegateView(defs map[string]*definition.Definition) map[string]any {
	out := make(map[string]any, len(defs))
	for name, def := range defs {
		out[name] = map[string]any{
			"name":        def.Name,
			"description": def.Description,
			"generates":   def.Generates,
			"inputs":      def.Inputs,
		}
	}
	return out
}

// StepIndex reports how many workflow steps have been taken so far.
func (d *Driver) StepIndex() int { return d.stepIndex }

// Collected returns the observations recorded per completed step name.
func (d *Driver) Collected() map[string]domain.Observation { return d.collected }

// Chars reports the cumulative size of prompts sent and replies
// received.
func (d *Driver) Chars() int { return d.chars }

// AgentName returns the name of the definition this driver runs.
func (d *Driver) AgentName() string { return d.def.Name }
