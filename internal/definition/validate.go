package definition

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError is a single validation finding with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g. "workflow[0].do")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the Definition struct.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Definition{})
	s.ID = "https://github.com/drover-dev/drover/schemas/agent-v0.json"
	s.Title = "Drover Agent Definition v0"
	s.Description = "Schema for drover agent definition YAML documents"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// ValidateFile runs the full validation pipeline on one definition file.
// Phase 1: structural (strict YAML decode + construction rules)
// Phase 2: semantic (JSON Schema validation)
// Phase 3: domain (workflow rules)
func ValidateFile(path string) (*Definition, []*ValidationError) {
	def, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Path:     "",
			Message:  err.Error(),
			Severity: "error",
		}}
	}

	var all []*ValidationError
	all = append(all, validateSemantic(def)...)
	all = append(all, ValidateDomain(def)...)
	if len(all) > 0 {
		return def, all
	}
	return def, nil
}

func validateSemantic(def *Definition) []*ValidationError {
	fail := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{
			Phase:    "semantic",
			Path:     "",
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		}}
	}

	data, err := json.Marshal(def)
	if err != nil {
		return fail("marshal for schema validation: %v", err)
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return fail("generate schema: %v", err)
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return fail("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("agent-v0.json", schemaDoc); err != nil {
		return fail("add schema resource: %v", err)
	}
	sch, err := c.Compile("agent-v0.json")
	if err != nil {
		return fail("compile schema: %v", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fail("unmarshal document: %v", err)
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Message:  err.Error(),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain checks the workflow rules that the schema cannot
// express. Empty result means valid.
func ValidateDomain(def *Definition) []*ValidationError {
	var errs []*ValidationError

	if def.Name == "" {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "name",
			Message:  "agent definition must contain a name",
			Severity: "error",
		})
	}

	if def.Prompt == "" && len(def.Workflow) == 0 {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "",
			Message:  "definition has neither a prompt nor a workflow",
			Severity: "warning",
		})
	}
	if def.Prompt != "" && len(def.Workflow) > 0 {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "prompt",
			Message:  "top-level prompt is ignored when a workflow is present",
			Severity: "warning",
		})
	}

	for i, input := range def.Inputs {
		if input.Name == "" {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("inputs[%d].name", i),
				Message:  "input requires a name",
				Severity: "error",
			})
		}
	}

	seen := make(map[string]int)
	for i, step := range def.Workflow {
		path := fmt.Sprintf("workflow[%d]", i)

		if step.Name == "" {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".name",
				Message:  "step requires a name",
				Severity: "error",
			})
		} else if prev, dup := seen[step.Name]; dup {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".name",
				Message:  fmt.Sprintf("duplicate step name %q (first at workflow[%d])", step.Name, prev),
				Severity: "error",
			})
		} else {
			seen[step.Name] = i
		}

		_, hasAction := step.ActionKind()
		_, hasPrompt := step.PromptTemplate()
		switch {
		case !hasAction && !hasPrompt:
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".do",
				Message:  fmt.Sprintf("step %q must contain either an action or a prompt", step.Name),
				Severity: "error",
			})
		case hasAction && hasPrompt:
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".do",
				Message:  fmt.Sprintf("step %q declares both an action and a prompt; exactly one is allowed", step.Name),
				Severity: "error",
			})
		case hasAction:
			if _, err := step.FixedAction(); err != nil {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     path + ".do",
					Message:  fmt.Sprintf("step %q: %v", step.Name, err),
					Severity: "error",
				})
			}
		}

		if raw, ok := step.Do["inputs"]; ok {
			if _, isMap := raw.(map[string]any); !isMap {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     path + ".do.inputs",
					Message:  fmt.Sprintf("step %q inputs must be a mapping", step.Name),
					Severity: "error",
				})
			}
		}
	}

	return errs
}
