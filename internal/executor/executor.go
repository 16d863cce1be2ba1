// Package executor turns actions into observations. It owns the
// collaborators an action may touch: the sandbox for commands, the
// workspace for files, the event store for recall, and the github
// client for repository operations.
package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drover-dev/drover/internal/adapters/github"
	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/ports"
)

// DelegateFunc runs a named sub-agent with inputs and reports its
// outcome. The agent runner provides it; without one, delegate actions
// fail with an error observation.
type DelegateFunc func(ctx context.Context, agent string, inputs map[string]any) (domain.Observation, error)

type Executor struct {
	sandbox   ports.Sandbox
	workspace string
	events    ports.EventStore
	github    *github.Client
	delegate  DelegateFunc
	browser   *http.Client
}

func New(sandbox ports.Sandbox, workspace string) *Executor {
	return &Executor{
		sandbox:   sandbox,
		workspace: workspace,
		browser:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SetEventStore enables recall actions.
func (e *Executor) SetEventStore(s ports.EventStore) { e.events = s }

// SetGithub enables push and send_pr actions.
func (e *Executor) SetGithub(c *github.Client) { e.github = c }

// SetDelegateFunc enables delegate actions.
func (e *Executor) SetDelegateFunc(f DelegateFunc) { e.delegate = f }

// Execute dispatches one action. Failures of the action itself come
// back as an error observation; the error return means the executor's
// own machinery broke.
func (e *Executor) Execute(ctx context.Context, action domain.Action) (domain.Observation, error) {
	switch a := action.(type) {
	case domain.CmdRunAction:
		return e.run(ctx, a)
	case domain.CmdKillAction:
		return e.kill(ctx, a)
	case domain.FileReadAction:
		return e.readFile(a)
	case domain.FileWriteAction:
		return e.writeFile(a)
	case domain.BrowseURLAction:
		return e.browse(ctx, a)
	case domain.AgentRecallAction:
		return e.recall(ctx, a)
	case domain.AgentDelegateAction:
		if e.delegate == nil {
			return domain.AgentErrorObservation{Content: "delegation is not available in this run"}, nil
		}
		return e.delegate(ctx, a.Agent, a.Inputs)
	case domain.GithubPushAction:
		if e.github == nil {
			return domain.AgentErrorObservation{Content: "github operations are not configured"}, nil
		}
		return e.github.Push(ctx, e.sandbox, a)
	case domain.GithubSendPRAction:
		if e.github == nil {
			return domain.AgentErrorObservation{Content: "github operations are not configured"}, nil
		}
		return e.github.SendPR(ctx, a)
	default:
		// think, null, and anything terminal that slips through produce
		// no observable effect.
		return domain.NullObservation{}, nil
	}
}

func (e *Executor) run(ctx context.Context, a domain.CmdRunAction) (domain.Observation, error) {
	if a.Background {
		id, err := e.sandbox.StartBackground(ctx, a.Command)
		if err != nil {
			return domain.AgentErrorObservation{Content: err.Error()}, nil
		}
		return domain.CmdOutputObservation{
			Content:   fmt.Sprintf("Background command started. To stop it, send a `kill` action with command_id %d.", id),
			Command:   a.Command,
			CommandID: id,
		}, nil
	}

	result, err := e.sandbox.Execute(ctx, a.Command)
	if err != nil {
		return domain.NullObservation{}, err
	}
	return domain.CmdOutputObservation{
		Content:  result.Output,
		Command:  a.Command,
		ExitCode: result.ExitCode,
	}, nil
}

func (e *Executor) kill(ctx context.Context, a domain.CmdKillAction) (domain.Observation, error) {
	if err := e.sandbox.Kill(ctx, a.CommandID); err != nil {
		return domain.AgentErrorObservation{Content: err.Error()}, nil
	}
	return domain.CmdOutputObservation{
		Content:   fmt.Sprintf("Background command %d has been killed.", a.CommandID),
		Command:   fmt.Sprintf("kill %d", a.CommandID),
		CommandID: a.CommandID,
	}, nil
}

func (e *Executor) readFile(a domain.FileReadAction) (domain.Observation, error) {
	path, err := e.resolvePath(a.Path)
	if err != nil {
		return domain.AgentErrorObservation{Content: err.Error()}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AgentErrorObservation{Content: fmt.Sprintf("reading %s: %v", a.Path, err)}, nil
	}
	return domain.FileReadObservation{Content: string(data), Path: a.Path}, nil
}

func (e *Executor) writeFile(a domain.FileWriteAction) (domain.Observation, error) {
	path, err := e.resolvePath(a.Path)
	if err != nil {
		return domain.AgentErrorObservation{Content: err.Error()}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.AgentErrorObservation{Content: fmt.Sprintf("writing %s: %v", a.Path, err)}, nil
	}
	if err := os.WriteFile(path, []byte(a.Content), 0o644); err != nil {
		return domain.AgentErrorObservation{Content: fmt.Sprintf("writing %s: %v", a.Path, err)}, nil
	}
	return domain.FileWriteObservation{Path: a.Path}, nil
}

func (e *Executor) browse(ctx context.Context, a domain.BrowseURLAction) (domain.Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return domain.AgentErrorObservation{Content: fmt.Sprintf("browsing %s: %v", a.URL, err)}, nil
	}
	resp, err := e.browser.Do(req)
	if err != nil {
		return domain.AgentErrorObservation{Content: fmt.Sprintf("browsing %s: %v", a.URL, err)}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.AgentErrorObservation{Content: fmt.Sprintf("browsing %s: %v", a.URL, err)}, nil
	}
	return domain.BrowserOutputObservation{
		Content:    string(body),
		URL:        a.URL,
		StatusCode: resp.StatusCode,
	}, nil
}

func (e *Executor) recall(ctx context.Context, a domain.AgentRecallAction) (domain.Observation, error) {
	if e.events == nil {
		return domain.AgentRecallObservation{Content: "no memories available", Memories: []string{}}, nil
	}
	events, err := e.events.SearchEvents(ctx, a.Query, 10)
	if err != nil {
		return domain.NullObservation{}, err
	}
	memories := make([]string, 0, len(events))
	for _, ev := range events {
		memories = append(memories, ev.Message)
	}
	return domain.AgentRecallObservation{
		Content:  fmt.Sprintf("found %d memories for %q", len(memories), a.Query),
		Memories: memories,
	}, nil
}

// resolvePath confines an agent-supplied path to the workspace.
func (e *Executor) resolvePath(p string) (string, error) {
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(e.workspace, full)
	}
	full = filepath.Clean(full)
	root := filepath.Clean(e.workspace)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", p)
	}
	return full, nil
}
