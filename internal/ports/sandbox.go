package ports

import "context"

// ExecResult is the captured outcome of one sandboxed command.
type ExecResult struct {
	Output   string
	ExitCode int
}

// Sandbox runs shell commands on behalf of an agent, either to
// completion or as a managed background process addressed by ID.
type Sandbox interface {
	Execute(ctx context.Context, command string) (ExecResult, error)
	StartBackground(ctx context.Context, command string) (id int, err error)
	Kill(ctx context.Context, id int) error
	Close() error
}
