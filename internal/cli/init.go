package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configTemplate = `# Drover project configuration. Values shown are the defaults;
# DROVER_* environment variables override this file.

workspace_dir = "./workspace"
# store_path = ".drover/drover.db"
# github_token = ""

[llm]
provider = "openai"
model = "gpt-3.5-turbo-1106"
# api_key = ""
# base_url = ""
# num_retries = 5

[sandbox]
type = "local"
# image = "ghcr.io/drover-dev/sandbox:latest"
# timeout_seconds = 120

[agent]
library = "agents"
# max_iterations = 100

[log]
# level = "info"
# file = ".drover/drover.log"
`

var agentTemplate = `name: %s
description: Stages the working tree and commits it with a generated message.
generates: a git commit on the current branch
inputs:
  - name: task
    description: One line describing what the change was about
workflow:
  - name: stage
    do:
      action: run
      command: git add -A && git diff --cached --stat
  - name: commit
    do:
      prompt: |
        You are finishing a change described as: {{ index .state.inputs "task" }}

        The staged files are:
        {{ (index .state.collected "stage").content }}

        Reply with exactly one JSON object that commits the staged
        changes with a short, specific message:
        {"action": "run", "command": "git commit -m '<message>'"}
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a drover project",
	Long: `Init writes a starter configuration and an example agent into the
current directory. Existing files are left untouched.`,
	RunE: runInit,
}

var initAgentName string

func init() {
	initCmd.Flags().StringVar(&initAgentName, "agent", "committer", "name of the example agent")
}

func runInit(cmd *cobra.Command, args []string) error {
	agentDir := filepath.Join("agents", initAgentName)
	for _, dir := range []string{".drover", agentDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	files := []struct{ path, content string }{
		{filepath.Join(".drover", "config.toml"), configTemplate},
		{filepath.Join(agentDir, "agent.yaml"), fmt.Sprintf(agentTemplate, initAgentName)},
	}

	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Fprintf(os.Stderr, "  skip %s (already exists)\n", f.path)
			continue
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		fmt.Fprintf(os.Stderr, "  create %s\n", f.path)
	}

	cwd, _ := os.Getwd()
	fmt.Fprintf(os.Stderr, "\nInitialized drover project in %s\n", filepath.Base(cwd))
	fmt.Fprintf(os.Stderr, "\nNext steps:\n")
	fmt.Fprintf(os.Stderr, "  1. Set DROVER_LLM_API_KEY (or api_key in .drover/config.toml)\n")
	fmt.Fprintf(os.Stderr, "  2. Edit agents/%s/agent.yaml for your project\n", initAgentName)
	fmt.Fprintf(os.Stderr, "  3. drover validate\n")
	fmt.Fprintf(os.Stderr, "  4. drover run %s --input task=\"...\"\n", initAgentName)
	return nil
}
