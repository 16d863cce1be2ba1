// Package prompt renders agent and step prompt templates. The rendering
// context contract is fixed: run state, the static instructions library,
// sibling delegates, the step's declared inputs, and a to_json helper.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/drover-dev/drover/internal/domain"
)

type Renderer struct {
	instructions map[string]any
}

func NewRenderer() *Renderer {
	return &Renderer{instructions: Instructions()}
}

// Context carries the per-render values; the instructions library comes
// from the renderer itself. All of it is read-only during rendering.
type Context struct {
	State     map[string]any
	Delegates map[string]any
	Inputs    map[string]any
}

// Render executes a prompt template. Template syntax errors and
// references to missing keys fail the render; nothing is substituted
// silently.
func (r *Renderer) Render(tmpl string, ctx Context) (string, error) {
	t, err := template.New("prompt").
		Option("missingkey=error").
		Funcs(template.FuncMap{"to_json": toJSON}).
		Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}

	data := map[string]any{
		"state":        ctx.State,
		"instructions": r.instructions,
		"delegates":    ctx.Delegates,
		"inputs":       ctx.Inputs,
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	return buf.String(), nil
}

// toJSON serializes a template value. Actions and observations go
// through their ToMap form so templates see the same shape the wire
// does.
func toJSON(v any) (string, error) {
	if s, ok := v.(domain.Serializable); ok {
		v = s.ToMap()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
