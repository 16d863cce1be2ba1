package agent_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/drover-dev/drover/internal/adapters/sqlite"
	"github.com/drover-dev/drover/internal/agent"
	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/definition"
	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (c *scriptedCompleter) Complete(_ context.Context, _ []domain.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reply := c.replies[c.calls%len(c.replies)]
	c.calls++
	return reply, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		WorkspaceDir: t.TempDir(),
		Sandbox:      config.SandboxConfig{Type: "local", TimeoutSeconds: 30},
		Agent:        config.AgentConfig{MaxIterations: 20, MaxChars: 1_000_000},
	}
}

func library(t *testing.T, defs ...*definition.Definition) *definition.Registry {
	t.Helper()
	reg := definition.NewRegistry()
	for _, def := range defs {
		require.NoError(t, reg.Add(def))
	}
	return reg
}

func runStep(name, command string) definition.Step {
	return definition.Step{Name: name, Do: map[string]any{"action": "run", "command": command}}
}

func TestRunner_FixedWorkflowStreamsStatus(t *testing.T) {
	cfg := testConfig(t)
	reg := library(t, &definition.Definition{
		Name: "checker",
		Workflow: []definition.Step{
			runStep("greet", "echo hello"),
			runStep("list", "true"),
		},
	})

	var statusBuf bytes.Buffer
	runner := agent.NewRunner(agent.RunnerConfig{
		Config:       cfg,
		Library:      reg,
		StatusOutput: &statusBuf,
	})

	run, err := runner.Run(context.Background(), "checker", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateFinished, run.State)
	assert.Equal(t, "checker", run.AgentName)
	assert.Equal(t, cfg.WorkspaceDir, run.WorkspaceDir)

	msgs, err := protocol.ParseStatusStream(statusBuf.Bytes())
	require.NoError(t, err)
	require.NotEmpty(t, msgs)

	assert.Equal(t, protocol.MsgRunStarted, msgs[0].Type)
	assert.Equal(t, "checker", msgs[0].Agent)
	assert.Equal(t, run.ID, msgs[0].RunID)

	last := msgs[len(msgs)-1]
	assert.Equal(t, protocol.MsgRunCompleted, last.Type)
	assert.Equal(t, "finished", last.Result)

	var commands []string
	for _, msg := range msgs {
		if msg.Type == protocol.MsgAction && msg.Kind == domain.ActionRun {
			commands = append(commands, msg.Payload["command"].(string))
		}
	}
	assert.Equal(t, []string{"echo hello", "true"}, commands)
}

func TestRunner_WritesWorkspaceTranscript(t *testing.T) {
	cfg := testConfig(t)
	reg := library(t, &definition.Definition{
		Name:     "scribe",
		Workflow: []definition.Step{runStep("note", "echo recorded")},
	})

	runner := agent.NewRunner(agent.RunnerConfig{Config: cfg, Library: reg})
	run, err := runner.Run(context.Background(), "scribe", nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.WorkspaceDir, ".drover", "history.log"))
	require.NoError(t, err)
	transcript := string(data)
	assert.Contains(t, transcript, "run:start agent:scribe")
	assert.Contains(t, transcript, "run:"+run.ID)
	assert.Contains(t, transcript, "echo recorded")
	assert.Contains(t, transcript, "  | recorded")
	assert.Contains(t, transcript, "run:end result:finished")
}

func TestRunner_PersistsRunAndEvents(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	cfg := testConfig(t)
	reg := library(t, &definition.Definition{
		Name:     "keeper",
		Workflow: []definition.Step{runStep("touch", "echo kept")},
	})

	runner := agent.NewRunner(agent.RunnerConfig{
		Config:  cfg,
		Library: reg,
		Runs:    store,
		Events:  store,
	})

	run, err := runner.Run(context.Background(), "keeper", nil)
	require.NoError(t, err)

	stored, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateFinished, stored.State)
	assert.Equal(t, run.Turns, stored.Turns)
	assert.Equal(t, cfg.WorkspaceDir, stored.WorkspaceDir)

	events, err := store.ListEvents(context.Background(), run.ID)
	require.NoError(t, err)
	// One action and one observation for the step, then the terminal
	// finish action.
	require.Len(t, events, 3)
	assert.Equal(t, "action", events[0].Source)
	assert.Equal(t, domain.ActionRun, events[0].Kind)
	assert.Equal(t, "observation", events[1].Source)
	assert.Equal(t, "action", events[2].Source)
	assert.Equal(t, domain.ActionFinish, events[2].Kind)
	for i, event := range events {
		assert.Equal(t, i+1, event.Seq)
	}
}

func TestRunner_PromptAgentUsesCompleter(t *testing.T) {
	cfg := testConfig(t)
	reg := library(t, &definition.Definition{
		Name:   "committer",
		Prompt: "Decide the next command.",
	})
	completer := &scriptedCompleter{replies: []string{
		`{"action": "run", "command": "echo staged"}`,
		`All done. {"action": "finish"}`,
	}}

	runner := agent.NewRunner(agent.RunnerConfig{
		Config:    cfg,
		Library:   reg,
		Completer: completer,
	})

	run, err := runner.Run(context.Background(), "committer", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateFinished, run.State)
	assert.Equal(t, 2, completer.calls)
	assert.Equal(t, 2, run.Turns)
}

func TestRunner_DelegateRunsInline(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	cfg := testConfig(t)
	reg := library(t,
		&definition.Definition{
			Name:   "lead",
			Prompt: "Plan the work.",
		},
		&definition.Definition{
			Name:     "helper",
			Workflow: []definition.Step{runStep("assist", "echo helping")},
		},
	)
	completer := &scriptedCompleter{replies: []string{
		`{"action": "delegate", "agent": "helper", "inputs": {"task": "assist"}}`,
		`{"action": "finish"}`,
	}}

	var statusBuf bytes.Buffer
	runner := agent.NewRunner(agent.RunnerConfig{
		Config:       cfg,
		Library:      reg,
		StatusOutput: &statusBuf,
		Completer:    completer,
		Runs:         store,
	})

	run, err := runner.Run(context.Background(), "lead", map[string]any{"goal": "ship"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateFinished, run.State)

	// The delegate gets its own run, recorded alongside the parent.
	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byAgent := map[string]*domain.Run{}
	for _, r := range runs {
		byAgent[r.AgentName] = r
	}
	require.Contains(t, byAgent, "helper")
	assert.Equal(t, domain.RunStateFinished, byAgent["helper"].State)

	msgs, err := protocol.ParseStatusStream(statusBuf.Bytes())
	require.NoError(t, err)
	var started []string
	for _, msg := range msgs {
		if msg.Type == protocol.MsgRunStarted {
			started = append(started, msg.Agent)
		}
	}
	assert.Equal(t, []string{"lead", "helper"}, started)

	// The delegate's outcome reaches the parent as an observation.
	var delegated bool
	for _, msg := range msgs {
		if msg.Type == protocol.MsgObservation && msg.RunID == run.ID && msg.Kind == domain.ObservationMessage {
			assert.Contains(t, msg.Message, "delegate helper finished")
			delegated = true
		}
	}
	assert.True(t, delegated, "expected a delegate outcome observation on the parent run")
}

func TestRunner_UnknownDelegateReportedToAgent(t *testing.T) {
	cfg := testConfig(t)
	reg := library(t, &definition.Definition{Name: "lead", Prompt: "Plan."})
	completer := &scriptedCompleter{replies: []string{
		`{"action": "delegate", "agent": "ghost"}`,
		`{"action": "finish"}`,
	}}

	var statusBuf bytes.Buffer
	runner := agent.NewRunner(agent.RunnerConfig{
		Config:       cfg,
		Library:      reg,
		StatusOutput: &statusBuf,
		Completer:    completer,
	})

	run, err := runner.Run(context.Background(), "lead", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateFinished, run.State)

	msgs, err := protocol.ParseStatusStream(statusBuf.Bytes())
	require.NoError(t, err)
	var found bool
	for _, msg := range msgs {
		if msg.Type == protocol.MsgObservation && msg.Kind == domain.ObservationError {
			assert.Contains(t, msg.Message, `unknown delegate agent "ghost"`)
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunner_UnknownAgent(t *testing.T) {
	runner := agent.NewRunner(agent.RunnerConfig{
		Config:  testConfig(t),
		Library: library(t),
	})

	_, err := runner.Run(context.Background(), "ghost", nil)
	require.Error(t, err)
	var defErr *definition.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "ghost", defErr.Agent)
}

func TestRunner_UnsupportedSandboxType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sandbox.Type = "firecracker"
	reg := library(t, &definition.Definition{
		Name:     "checker",
		Workflow: []definition.Step{runStep("greet", "echo hi")},
	})

	runner := agent.NewRunner(agent.RunnerConfig{Config: cfg, Library: reg})
	_, err := runner.Run(context.Background(), "checker", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sandbox type")
}

func TestRunner_FailedRunIsRecorded(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	cfg := testConfig(t)
	reg := library(t, &definition.Definition{Name: "mumbler", Prompt: "Say something."})
	completer := &scriptedCompleter{replies: []string{"I have no command for you."}}

	var statusBuf bytes.Buffer
	runner := agent.NewRunner(agent.RunnerConfig{
		Config:       cfg,
		Library:      reg,
		StatusOutput: &statusBuf,
		Completer:    completer,
		Runs:         store,
	})

	run, err := runner.Run(context.Background(), "mumbler", nil)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunStateFailed, run.State)

	stored, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateFailed, stored.State)
	assert.Contains(t, stored.ErrorMessage, "no valid JSON object found")

	msgs, parseErr := protocol.ParseStatusStream(statusBuf.Bytes())
	require.NoError(t, parseErr)
	var sawError, sawCompleted bool
	for _, msg := range msgs {
		switch msg.Type {
		case protocol.MsgError:
			sawError = true
		case protocol.MsgRunCompleted:
			assert.Equal(t, "failed", msg.Result)
			sawCompleted = true
		}
	}
	assert.True(t, sawError)
	assert.True(t, sawCompleted)
}

func TestRunner_RejectedRunReported(t *testing.T) {
	cfg := testConfig(t)
	reg := library(t, &definition.Definition{
		Name: "strict",
		Workflow: []definition.Step{
			runStep("check", "exit 3"),
			runStep("never", "echo unreachable"),
		},
	})

	var statusBuf bytes.Buffer
	runner := agent.NewRunner(agent.RunnerConfig{
		Config:       cfg,
		Library:      reg,
		StatusOutput: &statusBuf,
	})

	run, err := runner.Run(context.Background(), "strict", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateRejected, run.State)

	msgs, err := protocol.ParseStatusStream(statusBuf.Bytes())
	require.NoError(t, err)
	last := msgs[len(msgs)-1]
	assert.Equal(t, protocol.MsgRunCompleted, last.Type)
	assert.Equal(t, "rejected", last.Result)
}

func TestRunner_UnknownAgentDoesNotTouchStore(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	runner := agent.NewRunner(agent.RunnerConfig{
		Config:  testConfig(t),
		Library: library(t),
		Runs:    store,
	})

	_, runErr := runner.Run(context.Background(), "ghost", nil)
	require.Error(t, runErr)

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)

	var defErr *definition.DefinitionError
	assert.True(t, errors.As(runErr, &defErr))
}
