package domain_test

import (
	"testing"

	"github.com/drover-dev/drover/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionFromMap_Run(t *testing.T) {
	action, err := domain.ActionFromMap(map[string]any{"action": "run", "command": "ls"})
	require.NoError(t, err)

	run, ok := action.(domain.CmdRunAction)
	require.True(t, ok, "expected CmdRunAction, got %T", action)
	assert.Equal(t, "ls", run.Command)
	assert.False(t, run.Background)
	assert.Equal(t, domain.ActionRun, run.Kind())
}

func TestActionFromMap_RunBackground(t *testing.T) {
	action, err := domain.ActionFromMap(map[string]any{
		"action":     "run",
		"command":    "python -m http.server",
		"background": true,
	})
	require.NoError(t, err)
	assert.True(t, action.(domain.CmdRunAction).Background)
}

func TestActionFromMap_MissingDiscriminator(t *testing.T) {
	_, err := domain.ActionFromMap(map[string]any{"command": "ls"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"action"`)
}

func TestActionFromMap_UnknownKind(t *testing.T) {
	_, err := domain.ActionFromMap(map[string]any{"action": "teleport"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized action")
}

func TestActionFromMap_MissingRequiredField(t *testing.T) {
	_, err := domain.ActionFromMap(map[string]any{"action": "write", "path": "out.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"content"`)
}

func TestActionFromMap_KillAcceptsJSONNumber(t *testing.T) {
	// encoding/json decodes numbers into map[string]any as float64.
	action, err := domain.ActionFromMap(map[string]any{"action": "kill", "command_id": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, action.(domain.CmdKillAction).CommandID)
}

func TestActionFromMap_SendPROptionalFields(t *testing.T) {
	action, err := domain.ActionFromMap(map[string]any{
		"action": "send_pr",
		"owner":  "drover-dev",
		"repo":   "drover",
		"title":  "Fix typo",
		"head":   "fix-typo",
		"base":   "main",
	})
	require.NoError(t, err)

	pr := action.(domain.GithubSendPRAction)
	assert.Empty(t, pr.HeadRepo)
	assert.Empty(t, pr.Body)

	m := pr.ToMap()
	_, hasHeadRepo := m["head_repo"]
	_, hasBody := m["body"]
	assert.False(t, hasHeadRepo)
	assert.False(t, hasBody)
}

func TestActionFromMap_Delegate(t *testing.T) {
	action, err := domain.ActionFromMap(map[string]any{
		"action": "delegate",
		"agent":  "commit_writer",
		"inputs": map[string]any{"branch": "main"},
	})
	require.NoError(t, err)

	d := action.(domain.AgentDelegateAction)
	assert.Equal(t, "commit_writer", d.Agent)
	assert.Equal(t, "main", d.Inputs["branch"])
}

func TestTerminal(t *testing.T) {
	assert.True(t, domain.Terminal(domain.AgentFinishAction{}))
	assert.True(t, domain.Terminal(domain.AgentRejectAction{}))
	assert.False(t, domain.Terminal(domain.CmdRunAction{Command: "ls"}))
	assert.False(t, domain.Terminal(domain.NullAction{}))
}
