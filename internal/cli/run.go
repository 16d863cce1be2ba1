package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/drover-dev/drover/internal/agent"
	"github.com/drover-dev/drover/internal/definition"
	"github.com/drover-dev/drover/internal/domain"
	"github.com/spf13/cobra"
)

var (
	runInputs    []string
	runWorkspace string
	runNoStore   bool
)

var runCmd = &cobra.Command{
	Use:   "run <agent>",
	Short: "Run an agent from the library",
	Long: `Run executes one agent to a terminal state. Status messages stream to
stdout as JSON lines; the exit code reflects the outcome (finished runs
exit 0, rejected and failed runs exit 1).

Examples:
  drover run committer
  drover run committer --input task="fix the flaky parser test"
  drover run reviewer --workspace /tmp/scratch --no-store`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runInputs, "input", "i", nil, "run input as key=value (repeatable)")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "override the workspace directory")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "skip run and event persistence")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	inputs, err := parseInputs(runInputs)
	if err != nil {
		return err
	}

	reg, err := definition.LoadDir(cfg.Agent.Library)
	if err != nil {
		return fmt.Errorf("load agent library: %w", err)
	}

	if runWorkspace != "" {
		cfg.WorkspaceDir = runWorkspace
	}

	rcfg := agent.RunnerConfig{
		Config:       cfg,
		Library:      reg,
		StatusOutput: os.Stdout,
		Logger:       logger,
	}
	if !runNoStore {
		store, err := openStore(cfg.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()
		rcfg.Runs = store
		rcfg.Events = store
	}

	run, err := agent.NewRunner(rcfg).Run(ctx, args[0], inputs)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Run %s %s after %d turns\n", run.ID, run.State, run.Turns)
	if run.State != domain.RunStateFinished {
		return fmt.Errorf("run %s ended %s", run.ID, run.State)
	}
	return nil
}

func parseInputs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q: expected key=value", pair)
		}
		inputs[key] = value
	}
	return inputs, nil
}
