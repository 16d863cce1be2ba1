package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/drover-dev/drover/internal/adapters/sqlite"
	"github.com/drover-dev/drover/internal/agent"
	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/definition"
	"github.com/drover-dev/drover/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers carries the shared state every tool handler needs.
type Handlers struct {
	cfg    *config.Config
	logger *slog.Logger
}

// HandleValidate implements the drover/validate tool.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	def, errs := definition.ValidateFile(path)
	if hasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	if def.Workflow != nil {
		return textResult(fmt.Sprintf("✓ agent %s is valid (%d steps)", def.Name, len(def.Workflow))), nil
	}
	return textResult(fmt.Sprintf("✓ agent %s is valid (prompt)", def.Name)), nil
}

// HandleAgents implements the drover/agents tool.
func (h *Handlers) HandleAgents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg, err := definition.LoadDir(h.cfg.Agent.Library)
	if err != nil {
		return errorResult(fmt.Sprintf("load agent library: %s", err)), nil
	}

	type agentInfo struct {
		Name        string   `json:"name"`
		Description string   `json:"description,omitempty"`
		Generates   string   `json:"generates,omitempty"`
		Mode        string   `json:"mode"`
		Steps       int      `json:"steps,omitempty"`
		Inputs      []string `json:"inputs,omitempty"`
	}

	var agents []agentInfo
	for _, name := range reg.Names() {
		def, _ := reg.Get(name)
		info := agentInfo{
			Name:        def.Name,
			Description: def.Description,
			Generates:   def.Generates,
			Mode:        "prompt",
		}
		if def.Workflow != nil {
			info.Mode = "workflow"
			info.Steps = len(def.Workflow)
		}
		for _, input := range def.Inputs {
			info.Inputs = append(info.Inputs, input.Name)
		}
		agents = append(agents, info)
	}

	data, _ := json.MarshalIndent(agents, "", "  ")
	return textResult(string(data)), nil
}

// HandleRun implements the drover/run tool. The status stream is
// captured and returned alongside the final state.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	agentName, _ := args["agent"].(string)
	if agentName == "" {
		return errorResult("agent argument is required"), nil
	}
	inputs, _ := args["inputs"].(map[string]any)

	reg, err := definition.LoadDir(h.cfg.Agent.Library)
	if err != nil {
		return errorResult(fmt.Sprintf("load agent library: %s", err)), nil
	}

	store, err := sqlite.NewStore(h.cfg.StorePath)
	if err != nil {
		return errorResult(fmt.Sprintf("open run store: %s", err)), nil
	}
	defer store.Close()

	var status bytes.Buffer
	runner := agent.NewRunner(agent.RunnerConfig{
		Config:       h.cfg,
		Library:      reg,
		StatusOutput: &status,
		Logger:       h.logger,
		Runs:         store,
		Events:       store,
	})

	run, runErr := runner.Run(ctx, agentName, inputs)
	if run == nil {
		return errorResult(runErr.Error()), nil
	}

	response := map[string]any{
		"run_id": run.ID,
		"agent":  run.AgentName,
		"state":  string(run.State),
		"turns":  run.Turns,
		"chars":  run.Chars,
	}
	if run.State.Done() {
		response["duration"] = run.Duration().String()
	}
	if run.ErrorMessage != "" {
		response["error"] = run.ErrorMessage
	}
	if status.Len() > 0 {
		response["status_stream"] = status.String()
	}

	data, _ := json.MarshalIndent(response, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: run.State != domain.RunStateFinished,
	}, nil
}

// HandleRuns implements the drover/runs tool.
func (h *Handlers) HandleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	runID, _ := args["run_id"].(string)

	store, err := sqlite.NewStore(h.cfg.StorePath)
	if err != nil {
		return errorResult(fmt.Sprintf("open run store: %s", err)), nil
	}
	defer store.Close()

	if runID != "" {
		run, err := store.GetRun(ctx, runID)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		events, err := store.ListEvents(ctx, runID)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		type eventInfo struct {
			Seq     int    `json:"seq"`
			Source  string `json:"source"`
			Kind    string `json:"kind"`
			Message string `json:"message"`
		}
		detail := map[string]any{
			"run_id":    run.ID,
			"agent":     run.AgentName,
			"state":     string(run.State),
			"turns":     run.Turns,
			"chars":     run.Chars,
			"workspace": run.WorkspaceDir,
		}
		if run.ErrorMessage != "" {
			detail["error"] = run.ErrorMessage
		}
		var infos []eventInfo
		for _, e := range events {
			infos = append(infos, eventInfo{Seq: e.Seq, Source: e.Source, Kind: e.Kind, Message: e.Message})
		}
		detail["events"] = infos

		data, _ := json.MarshalIndent(detail, "", "  ")
		return textResult(string(data)), nil
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	type runInfo struct {
		RunID string `json:"run_id"`
		Agent string `json:"agent"`
		State string `json:"state"`
		Turns int    `json:"turns"`
	}
	infos := make([]runInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, runInfo{RunID: run.ID, Agent: run.AgentName, State: string(run.State), Turns: run.Turns})
	}

	data, _ := json.MarshalIndent(infos, "", "  ")
	return textResult(string(data)), nil
}

// HandleSchema implements the drover/schema tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := definition.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func hasErrors(errs []*definition.ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

func formatErrors(errs []*definition.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
