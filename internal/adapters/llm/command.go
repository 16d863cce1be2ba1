package llm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/drover-dev/drover/internal/domain"
)

// CommandClient invokes a local command for completions: the prompt
// goes to stdin, the reply comes back on stdout.
type CommandClient struct {
	Command string
	Args    []string
}

// Complete joins the messages into one prompt and runs the command.
func (c *CommandClient) Complete(ctx context.Context, msgs []domain.Message) (string, error) {
	var prompt strings.Builder
	for i, m := range msgs {
		if i > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(m.Content)
	}

	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Stdin = strings.NewReader(prompt.String())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("llm command failed: %w (stderr: %s)", err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}
