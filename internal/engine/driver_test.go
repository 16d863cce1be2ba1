package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/drover-dev/drover/internal/definition"
	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/engine"
	"github.com/drover-dev/drover/internal/prompt"
	"github.com/drover-dev/drover/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	mu      sync.Mutex
	replies []string
	calls   int
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []domain.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, msgs[len(msgs)-1].Content)
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return reply, nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	exitCode map[string]int
	called   []string
}

func (f *fakeExecutor) Execute(_ context.Context, action domain.Action) (domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if run, ok := action.(domain.CmdRunAction); ok {
		f.called = append(f.called, run.Command)
		return domain.CmdOutputObservation{
			Content:  "ok",
			Command:  run.Command,
			ExitCode: f.exitCode[run.Command],
		}, nil
	}
	f.called = append(f.called, action.Kind())
	return domain.NullObservation{}, nil
}

func runStep(name, command string) definition.Step {
	return definition.Step{Name: name, Do: map[string]any{"action": "run", "command": command}}
}

func TestDriver_FixedProcedureThenFinish(t *testing.T) {
	def := &definition.Definition{
		Name: "builder",
		Workflow: []definition.Step{
			runStep("configure", "make configure"),
			runStep("compile", "make all"),
			runStep("check", "make test"),
		},
	}
	drv, err := engine.NewDriver(def, nil, &fakeCompleter{}, prompt.NewRenderer())
	require.NoError(t, err)

	var log []domain.Interaction
	commands := []string{"make configure", "make all", "make test"}
	for i, want := range commands {
		action, err := drv.Advance(context.Background(), log)
		require.NoError(t, err)
		run, ok := action.(domain.CmdRunAction)
		require.True(t, ok, "step %d should be a run action", i)
		assert.Equal(t, want, run.Command)
		assert.Equal(t, i+1, drv.StepIndex())

		log = []domain.Interaction{{
			Action:      run,
			Observation: domain.CmdOutputObservation{Content: "ok", Command: run.Command},
		}}
	}

	action, err := drv.Advance(context.Background(), log)
	require.NoError(t, err)
	assert.IsType(t, domain.AgentFinishAction{}, action)
	assert.Equal(t, len(commands), drv.StepIndex())
}

func TestDriver_RejectsOnFailedCommand(t *testing.T) {
	def := &definition.Definition{
		Name: "builder",
		Workflow: []definition.Step{
			runStep("compile", "make all"),
			runStep("check", "make test"),
		},
	}
	drv, err := engine.NewDriver(def, nil, &fakeCompleter{}, prompt.NewRenderer())
	require.NoError(t, err)

	first, err := drv.Advance(context.Background(), nil)
	require.NoError(t, err)

	failed := domain.CmdOutputObservation{Content: "make: *** error", Command: "make all", ExitCode: 2}
	action, err := drv.Advance(context.Background(), []domain.Interaction{
		{Action: first, Observation: failed},
	})
	require.NoError(t, err)
	assert.IsType(t, domain.AgentRejectAction{}, action)

	// The failing output is still recorded under the step that produced it.
	got, ok := drv.Collected()["compile"]
	require.True(t, ok)
	assert.Equal(t, failed, got)
}

func TestDriver_PromptStepExtractsAction(t *testing.T) {
	def := &definition.Definition{
		Name: "committer",
		Workflow: []definition.Step{
			runStep("stage", "git add -A"),
			{Name: "message", Do: map[string]any{
				"prompt": "Summarize {{ to_json .state.collected.stage }} as a commit.",
			}},
		},
	}
	completer := &fakeCompleter{replies: []string{
		`Sure! {"action": "run", "command": "git commit -m 'update'"} Done.`,
	}}
	drv, err := engine.NewDriver(def, nil, completer, prompt.NewRenderer())
	require.NoError(t, err)

	first, err := drv.Advance(context.Background(), nil)
	require.NoError(t, err)

	staged := domain.CmdOutputObservation{Content: "2 files staged", Command: "git add -A"}
	action, err := drv.Advance(context.Background(), []domain.Interaction{
		{Action: first, Observation: staged},
	})
	require.NoError(t, err)

	run, ok := action.(domain.CmdRunAction)
	require.True(t, ok)
	assert.Equal(t, "git commit -m 'update'", run.Command)
	// The rendered prompt carried the collected output forward.
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "2 files staged")
	assert.Positive(t, drv.Chars())
}

func TestDriver_MalformedReplyPropagates(t *testing.T) {
	def := &definition.Definition{
		Name: "chatty",
		Workflow: []definition.Step{
			{Name: "decide", Do: map[string]any{"prompt": "Pick an action."}},
		},
	}
	completer := &fakeCompleter{replies: []string{"I would rather not say."}}
	drv, err := engine.NewDriver(def, nil, completer, prompt.NewRenderer())
	require.NoError(t, err)

	_, err = drv.Advance(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrNoJSONFound)

	var malformed *protocol.MalformedOutputError
	assert.True(t, errors.As(err, &malformed))
}

func TestDriver_PromptOnlyAgent(t *testing.T) {
	def := &definition.Definition{
		Name:   "freeform",
		Prompt: "Decide what to do next. State: {{ .state.step_index }}",
	}
	completer := &fakeCompleter{replies: []string{
		`{"action": "think", "thought": "reading the code"}`,
		`{"action": "finish"}`,
	}}
	drv, err := engine.NewDriver(def, nil, completer, prompt.NewRenderer())
	require.NoError(t, err)

	action, err := drv.Advance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionThink, action.Kind())

	action, err = drv.Advance(context.Background(), nil)
	require.NoError(t, err)
	assert.IsType(t, domain.AgentFinishAction{}, action)
	// A prompt-only agent has no workflow cursor to move.
	assert.Equal(t, 0, drv.StepIndex())
}

func TestDriver_ChecksDefinitionUpFront(t *testing.T) {
	def := &definition.Definition{
		Workflow: []definition.Step{runStep("compile", "make all")},
	}
	_, err := engine.NewDriver(def, nil, &fakeCompleter{}, prompt.NewRenderer())
	require.Error(t, err)

	var defErr *definition.DefinitionError
	assert.True(t, errors.As(err, &defErr))
}

func TestDriver_UnbuildableFixedStep(t *testing.T) {
	def := &definition.Definition{
		Name: "broken",
		Workflow: []definition.Step{
			{Name: "launch", Do: map[string]any{"action": "run"}},
		},
	}
	drv, err := engine.NewDriver(def, nil, &fakeCompleter{}, prompt.NewRenderer())
	require.NoError(t, err)

	_, err = drv.Advance(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch")
}

func TestDriver_RunInputsReachPrompt(t *testing.T) {
	def := &definition.Definition{
		Name:   "freeform",
		Prompt: "Task: {{ .inputs.task }}",
	}
	completer := &fakeCompleter{replies: []string{`{"action": "finish"}`}}
	drv, err := engine.NewDriver(def, nil, completer, prompt.NewRenderer())
	require.NoError(t, err)
	drv.SetInputs(map[string]any{"task": "mend the gate"})

	_, err = drv.Advance(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, completer.prompts, 1)
	assert.Equal(t, "Task: mend the gate", completer.prompts[0])
}

func TestDriver_DelegateListingExcludesSelf(t *testing.T) {
	reg := definition.NewRegistry()
	require.NoError(t, reg.Add(&definition.Definition{Name: "writer", Prompt: "write"}))
	require.NoError(t, reg.Add(&definition.Definition{Name: "critic", Description: "reviews drafts", Prompt: "review"}))

	def := &definition.Definition{
		Name:   "writer",
		Prompt: "Delegates: {{ to_json .delegates }}",
	}
	completer := &fakeCompleter{replies: []string{`{"action": "finish"}`}}
	drv, err := engine.NewDriver(def, reg, completer, prompt.NewRenderer())
	require.NoError(t, err)

	_, err = drv.Advance(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "critic")
	assert.NotContains(t, completer.prompts[0], `"writer"`)
}
