package domain

import "time"

type RunState string

const (
	RunStatePending  RunState = "pending"
	RunStateRunning  RunState = "running"
	RunStateFinished RunState = "finished"
	RunStateRejected RunState = "rejected"
	RunStateFailed   RunState = "failed"
)

// Done reports whether the state is terminal.
func (s RunState) Done() bool {
	return s == RunStateFinished || s == RunStateRejected || s == RunStateFailed
}

// Run is one execution of an agent definition.
type Run struct {
	ID           string
	AgentName    string
	State        RunState
	StepIndex    int
	Turns        int
	Chars        int
	StartedAt    time.Time
	CompletedAt  time.Time
	WorkspaceDir string
	ErrorMessage string
}

func NewRun(id, agentName string) *Run {
	return &Run{
		ID:        id,
		AgentName: agentName,
		State:     RunStatePending,
	}
}

func (r *Run) Start() {
	r.State = RunStateRunning
	r.StartedAt = time.Now()
}

// RecordTurn advances the turn counter after one action/observation
// round trip.
func (r *Run) RecordTurn(stepIndex int) {
	r.Turns++
	r.StepIndex = stepIndex
}

func (r *Run) Complete(state RunState) {
	r.State = state
	r.CompletedAt = time.Now()
}

func (r *Run) Fail(msg string) {
	r.State = RunStateFailed
	r.CompletedAt = time.Now()
	r.ErrorMessage = msg
}

func (r *Run) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Message roles for the completion collaborator.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one role-tagged entry in a completion request.
type Message struct {
	Role    string
	Content string
}
