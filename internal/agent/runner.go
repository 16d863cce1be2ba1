// Package agent assembles and executes runs. The runner resolves the
// requested definition from the library, builds the completion client
// and sandbox from configuration, and drives the engine while streaming
// status, appending the workspace transcript, and persisting the run
// and its events.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/drover-dev/drover/internal/adapters/docker"
	"github.com/drover-dev/drover/internal/adapters/github"
	"github.com/drover-dev/drover/internal/adapters/llm"
	"github.com/drover-dev/drover/internal/adapters/local"
	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/definition"
	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/engine"
	"github.com/drover-dev/drover/internal/executor"
	"github.com/drover-dev/drover/internal/ports"
	"github.com/drover-dev/drover/internal/prompt"
	"github.com/drover-dev/drover/internal/protocol"
)

// maxDelegateDepth caps how deep agents may hand off to each other
// before further delegate actions are refused.
const maxDelegateDepth = 5

type RunnerConfig struct {
	Config       *config.Config
	Library      *definition.Registry
	StatusOutput io.Writer
	Logger       *slog.Logger

	// Optional persistence; nil leaves runs and events unrecorded.
	Runs   ports.RunStore
	Events ports.EventStore

	// Completer, when set, replaces the provider built from Config.LLM.
	Completer ports.Completer
}

type Runner struct {
	cfg RunnerConfig
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.StatusOutput == nil {
		cfg.StatusOutput = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{cfg: cfg}
}

// Run executes the named agent to a terminal state. The sandbox, the
// completion client, and the executor are built once here and shared
// with any delegate runs the agent spawns.
func (r *Runner) Run(ctx context.Context, agentName string, inputs map[string]any) (*domain.Run, error) {
	def, ok := r.cfg.Library.Get(agentName)
	if !ok {
		return nil, &definition.DefinitionError{Agent: agentName, Reason: "agent not found in library"}
	}

	workspace := r.cfg.Config.WorkspaceDir
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	completer := r.cfg.Completer
	if completer == nil {
		var err error
		completer, err = llm.New(r.cfg.Config.LLM)
		if err != nil {
			return nil, err
		}
	}

	sandbox, err := r.newSandbox(ctx, workspace)
	if err != nil {
		return nil, err
	}
	defer sandbox.Close()

	exec := executor.New(sandbox, workspace)
	if r.cfg.Events != nil {
		exec.SetEventStore(r.cfg.Events)
	}
	if token := r.cfg.Config.GithubToken; token != "" {
		exec.SetGithub(github.New(token))
	}

	var depth atomic.Int32
	exec.SetDelegateFunc(func(ctx context.Context, name string, delegateInputs map[string]any) (domain.Observation, error) {
		if depth.Load() >= maxDelegateDepth {
			return domain.AgentErrorObservation{Content: fmt.Sprintf("delegation depth limit (%d) reached", maxDelegateDepth)}, nil
		}
		depth.Add(1)
		defer depth.Add(-1)

		sub, ok := r.cfg.Library.Get(name)
		if !ok {
			return domain.AgentErrorObservation{Content: fmt.Sprintf("unknown delegate agent %q", name)}, nil
		}
		subRun, err := r.runAgent(ctx, sub, delegateInputs, completer, exec, workspace)
		if err != nil {
			return domain.AgentErrorObservation{Content: fmt.Sprintf("delegate %s failed: %v", name, err)}, nil
		}
		if subRun.State == domain.RunStateFinished {
			return domain.AgentMessageObservation{Content: fmt.Sprintf("delegate %s finished (run %s)", name, subRun.ID)}, nil
		}
		return domain.AgentErrorObservation{Content: fmt.Sprintf("delegate %s ended %s (run %s)", name, subRun.State, subRun.ID)}, nil
	})

	return r.runAgent(ctx, def, inputs, completer, exec, workspace)
}

func (r *Runner) newSandbox(ctx context.Context, workspace string) (ports.Sandbox, error) {
	timeout := time.Duration(r.cfg.Config.Sandbox.TimeoutSeconds) * time.Second
	switch r.cfg.Config.Sandbox.Type {
	case "", "local":
		return local.New(workspace, timeout), nil
	case "docker":
		return docker.New(ctx, workspace, r.cfg.Config.Sandbox.Image, timeout)
	default:
		return nil, fmt.Errorf("unsupported sandbox type: %s", r.cfg.Config.Sandbox.Type)
	}
}

// runAgent drives one definition to a terminal state on already-built
// collaborators. Delegate runs re-enter here with the parent's sandbox
// and completer and get their own run ID, status stream, and records.
func (r *Runner) runAgent(ctx context.Context, def *definition.Definition, inputs map[string]any, completer ports.Completer, exec engine.ActionExecutor, workspace string) (*domain.Run, error) {
	driver, err := engine.NewDriver(def, r.cfg.Library, completer, prompt.NewRenderer())
	if err != nil {
		return nil, err
	}
	driver.SetInputs(inputs)

	runID := domain.NewRunID(def.Name)
	writer := protocol.NewStatusWriter(r.cfg.StatusOutput, runID)
	logger := r.cfg.Logger.With("run_id", runID, "agent", def.Name)

	eng := engine.New(exec)
	eng.SetMaxTurns(r.cfg.Config.Agent.MaxIterations)
	eng.SetMaxChars(r.cfg.Config.Agent.MaxChars)
	eng.SetStatusHandler(&statusReporter{
		events:    r.cfg.Events,
		writer:    writer,
		logger:    logger,
		workspace: workspace,
	})

	if r.cfg.Runs != nil {
		pending := domain.NewRun(runID, def.Name)
		pending.WorkspaceDir = workspace
		if err := r.cfg.Runs.CreateRun(ctx, pending); err != nil {
			return nil, fmt.Errorf("recording run: %w", err)
		}
	}

	logger.Info("run started")
	writer.RunStarted(def.Name)
	protocol.AppendHistoryMarker(workspace, runID, "run:start agent:"+def.Name)

	run, runErr := eng.Run(ctx, runID, driver)
	run.WorkspaceDir = workspace

	protocol.AppendHistoryMarker(workspace, runID, "run:end result:"+string(run.State))
	if runErr != nil {
		writer.Error(runErr.Error())
		logger.Error("run failed", "error", runErr)
	} else {
		logger.Info("run completed", "state", run.State, "turns", run.Turns)
	}
	writer.RunCompleted(string(run.State))

	if r.cfg.Runs != nil {
		if err := r.cfg.Runs.UpdateRun(ctx, run); err != nil {
			logger.Error("persisting run", "error", err)
		}
	}
	return run, runErr
}

// statusReporter bridges engine notifications to the status stream, the
// workspace transcript, and the event store. The engine delivers
// notifications sequentially, so no locking is needed.
type statusReporter struct {
	events    ports.EventStore
	writer    *protocol.StatusWriter
	logger    *slog.Logger
	workspace string

	seq        int
	lastAction domain.Action
}

func (s *statusReporter) OnTurnStart(_ *domain.Run, turn int) {
	s.writer.TurnStarted(turn)
}

func (s *statusReporter) OnAction(run *domain.Run, turn int, action domain.Action) {
	s.writer.Action(turn, action)
	s.logger.Debug("action", "turn", turn, "kind", action.Kind())
	s.lastAction = action
	s.appendEvent(run, "action", action.Kind(), action.Message(), action.ToMap())
}

func (s *statusReporter) OnObservation(run *domain.Run, turn int, obs domain.Observation) {
	s.writer.Observation(turn, obs)
	if s.lastAction != nil {
		protocol.AppendHistory(s.workspace, run.ID, s.lastAction, obs)
	}
	s.appendEvent(run, "observation", obs.Kind(), obs.Message(), obs.ToMap())
}

func (s *statusReporter) OnRunComplete(_ *domain.Run) {}

func (s *statusReporter) appendEvent(run *domain.Run, source, kind, message string, payload map[string]any) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	s.seq++
	event := &ports.Event{
		RunID:     run.ID,
		Seq:       s.seq,
		Source:    source,
		Kind:      kind,
		Message:   message,
		Payload:   string(data),
		CreatedAt: time.Now(),
	}
	if err := s.events.AppendEvent(context.Background(), event); err != nil {
		s.logger.Error("persisting event", "error", err)
	}
}
