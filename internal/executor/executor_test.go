package executor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drover-dev/drover/internal/adapters/local"
	"github.com/drover-dev/drover/internal/adapters/sqlite"
	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/executor"
	"github.com/drover-dev/drover/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T) (*executor.Executor, string) {
	t.Helper()
	dir := t.TempDir()
	sb := local.New(dir, 10*time.Second)
	t.Cleanup(func() { sb.Close() })
	return executor.New(sb, dir), dir
}

func TestRunCommand(t *testing.T) {
	exec, _ := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.CmdRunAction{Command: "echo hello"})
	require.NoError(t, err)

	out, ok := obs.(domain.CmdOutputObservation)
	require.True(t, ok)
	assert.Equal(t, "hello\n", out.Content)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "echo hello", out.Command)
}

func TestRunCommandNonZeroExit(t *testing.T) {
	exec, _ := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.CmdRunAction{Command: "exit 7"})
	require.NoError(t, err)

	out, ok := obs.(domain.CmdOutputObservation)
	require.True(t, ok)
	assert.Equal(t, 7, out.ExitCode)
}

func TestBackgroundRunAndKill(t *testing.T) {
	exec, _ := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.CmdRunAction{Command: "sleep 60", Background: true})
	require.NoError(t, err)

	out, ok := obs.(domain.CmdOutputObservation)
	require.True(t, ok)
	assert.Contains(t, out.Content, "Background command started")
	assert.Positive(t, out.CommandID)

	killed, err := exec.Execute(context.Background(), domain.CmdKillAction{CommandID: out.CommandID})
	require.NoError(t, err)
	killOut, ok := killed.(domain.CmdOutputObservation)
	require.True(t, ok)
	assert.Contains(t, killOut.Content, "killed")
}

func TestKillUnknownCommand(t *testing.T) {
	exec, _ := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.CmdKillAction{CommandID: 42})
	require.NoError(t, err)
	assert.IsType(t, domain.AgentErrorObservation{}, obs)
}

func TestWriteThenRead(t *testing.T) {
	exec, dir := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.FileWriteAction{
		Path: "notes/plan.md", Content: "mend the north fence",
	})
	require.NoError(t, err)
	wrote, ok := obs.(domain.FileWriteObservation)
	require.True(t, ok)
	assert.Equal(t, "notes/plan.md", wrote.Path)

	data, err := os.ReadFile(filepath.Join(dir, "notes", "plan.md"))
	require.NoError(t, err)
	assert.Equal(t, "mend the north fence", string(data))

	obs, err = exec.Execute(context.Background(), domain.FileReadAction{Path: "notes/plan.md"})
	require.NoError(t, err)
	read, ok := obs.(domain.FileReadObservation)
	require.True(t, ok)
	assert.Equal(t, "mend the north fence", read.Content)
}

func TestReadMissingFile(t *testing.T) {
	exec, _ := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.FileReadAction{Path: "ghost.txt"})
	require.NoError(t, err)
	assert.IsType(t, domain.AgentErrorObservation{}, obs)
}

func TestPathEscapeRefused(t *testing.T) {
	exec, _ := newExecutor(t)

	for _, path := range []string{"../outside.txt", "/etc/passwd", "a/../../b"} {
		obs, err := exec.Execute(context.Background(), domain.FileWriteAction{Path: path, Content: "x"})
		require.NoError(t, err)
		errObs, ok := obs.(domain.AgentErrorObservation)
		require.True(t, ok, "path %q should be refused", path)
		assert.Contains(t, errObs.Content, "escapes the workspace")
	}
}

func TestBrowse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>pasture</html>"))
	}))
	defer server.Close()

	exec, _ := newExecutor(t)
	obs, err := exec.Execute(context.Background(), domain.BrowseURLAction{URL: server.URL})
	require.NoError(t, err)

	page, ok := obs.(domain.BrowserOutputObservation)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.Content, "pasture")
}

func TestBrowseUnreachable(t *testing.T) {
	exec, _ := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.BrowseURLAction{URL: "http://127.0.0.1:1/nothing"})
	require.NoError(t, err)
	assert.IsType(t, domain.AgentErrorObservation{}, obs)
}

func TestRecallSearchesEvents(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.AppendEvent(ctx, &ports.Event{
		RunID: "run-1", Seq: 1, Source: "observation", Kind: "run",
		Message: "the gate latch is broken", CreatedAt: time.Now(),
	}))

	exec, _ := newExecutor(t)
	exec.SetEventStore(store)

	obs, err := exec.Execute(ctx, domain.AgentRecallAction{Query: "gate latch"})
	require.NoError(t, err)

	recall, ok := obs.(domain.AgentRecallObservation)
	require.True(t, ok)
	require.Len(t, recall.Memories, 1)
	assert.Contains(t, recall.Memories[0], "gate latch")
}

func TestRecallWithoutStore(t *testing.T) {
	exec, _ := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.AgentRecallAction{Query: "anything"})
	require.NoError(t, err)

	recall, ok := obs.(domain.AgentRecallObservation)
	require.True(t, ok)
	assert.Empty(t, recall.Memories)
}

func TestDelegateWithoutHandler(t *testing.T) {
	exec, _ := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.AgentDelegateAction{Agent: "reviewer"})
	require.NoError(t, err)
	assert.IsType(t, domain.AgentErrorObservation{}, obs)
}

func TestDelegateHandlerInvoked(t *testing.T) {
	exec, _ := newExecutor(t)

	var gotAgent string
	var gotInputs map[string]any
	exec.SetDelegateFunc(func(_ context.Context, agent string, inputs map[string]any) (domain.Observation, error) {
		gotAgent = agent
		gotInputs = inputs
		return domain.AgentMessageObservation{Content: "delegate finished"}, nil
	})

	obs, err := exec.Execute(context.Background(), domain.AgentDelegateAction{
		Agent: "reviewer", Inputs: map[string]any{"style": "terse"},
	})
	require.NoError(t, err)
	assert.Equal(t, "reviewer", gotAgent)
	assert.Equal(t, "terse", gotInputs["style"])
	assert.Equal(t, domain.AgentMessageObservation{Content: "delegate finished"}, obs)
}

func TestGithubUnconfigured(t *testing.T) {
	exec, _ := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.GithubPushAction{
		Owner: "drover-dev", Repo: "drover", Branch: "main",
	})
	require.NoError(t, err)
	assert.IsType(t, domain.AgentErrorObservation{}, obs)
}

func TestThinkProducesNoEffect(t *testing.T) {
	exec, _ := newExecutor(t)

	obs, err := exec.Execute(context.Background(), domain.AgentThinkAction{Thought: "the fence needs posts"})
	require.NoError(t, err)
	assert.IsType(t, domain.NullObservation{}, obs)
}
