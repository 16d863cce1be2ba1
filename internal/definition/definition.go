// Package definition loads agent definitions: YAML documents naming a
// micro agent and carrying either a single top-level prompt template or
// an ordered workflow of steps.
package definition

import (
	"fmt"

	"github.com/drover-dev/drover/internal/domain"
)

// DefinitionError reports a structurally unusable agent definition:
// a missing agent name, or a workflow step with neither an action nor a
// prompt. It is fatal for that construction.
type DefinitionError struct {
	Agent  string
	Step   string
	Reason string
}

func (e *DefinitionError) Error() string {
	switch {
	case e.Step != "":
		return fmt.Sprintf("agent %q step %q: %s", e.Agent, e.Step, e.Reason)
	case e.Agent != "":
		return fmt.Sprintf("agent %q: %s", e.Agent, e.Reason)
	default:
		return e.Reason
	}
}

// Definition describes one micro agent. When Workflow is present it is
// authoritative and the top-level Prompt is ignored.
type Definition struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Generates   string  `yaml:"generates,omitempty" json:"generates,omitempty"`
	Inputs      []Input `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Prompt      string  `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Workflow    []Step  `yaml:"workflow,omitempty" json:"workflow,omitempty"`
}

// Input declares one named value a caller may hand to the agent.
type Input struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Step is one workflow entry. Do carries either a fixed action spec (an
// "action" key plus that action's fields) or a "prompt" template with
// optional "inputs"; the whole map is handed to the action factory for
// fixed steps.
type Step struct {
	Name string         `yaml:"name" json:"name"`
	Do   map[string]any `yaml:"do" json:"do"`
}

// ActionKind returns the fixed-action discriminator, if the step has one.
func (s Step) ActionKind() (string, bool) {
	kind, ok := s.Do["action"].(string)
	return kind, ok
}

// PromptTemplate returns the step's prompt template, if the step is
// prompt-driven.
func (s Step) PromptTemplate() (string, bool) {
	p, ok := s.Do["prompt"].(string)
	return p, ok
}

// StepInputs returns the step's declared inputs. Never nil.
func (s Step) StepInputs() map[string]any {
	if inputs, ok := s.Do["inputs"].(map[string]any); ok {
		return inputs
	}
	return map[string]any{}
}

// FixedAction builds the step's fixed action from its do spec.
func (s Step) FixedAction() (domain.Action, error) {
	return domain.ActionFromMap(s.Do)
}

// Check enforces the construction rules. A definition that fails Check
// never reaches the driver.
func (d *Definition) Check() error {
	if d.Name == "" {
		return &DefinitionError{Reason: "agent definition must contain a name"}
	}
	for _, step := range d.Workflow {
		_, hasAction := step.ActionKind()
		_, hasPrompt := step.PromptTemplate()
		if !hasAction && !hasPrompt {
			return &DefinitionError{
				Agent:  d.Name,
				Step:   step.Name,
				Reason: "step must contain either an action or a prompt",
			}
		}
	}
	return nil
}
