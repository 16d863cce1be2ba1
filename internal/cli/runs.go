package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/drover-dev/drover/internal/adapters/sqlite"
	"github.com/spf13/cobra"
)

var (
	runsDB          string
	runsSearchLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsEventsCmd = &cobra.Command{
	Use:   "events <run-id>",
	Short: "List the recorded actions and observations of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsEvents,
}

var runsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search event messages and payloads across runs",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsSearch,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run and its events",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsDB, "db", "", "path to the run store (default from config)")
	runsSearchCmd.Flags().IntVarP(&runsSearchLimit, "limit", "n", 10, "max results")

	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsEventsCmd)
	runsCmd.AddCommand(runsSearchCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}

func openRunStore() (*sqlite.Store, error) {
	path := runsDB
	if path == "" {
		path = cfg.StorePath
	}
	return openStore(path)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		started := ""
		if !run.StartedAt.IsZero() {
			started = run.StartedAt.Format(time.RFC3339)
		}
		fmt.Printf("%-40s  %-12s  %-8s  turns:%-4d  %s\n", run.ID, run.AgentName, run.State, run.Turns, started)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Run:       %s\n", run.ID)
	fmt.Printf("Agent:     %s\n", run.AgentName)
	fmt.Printf("State:     %s\n", run.State)
	fmt.Printf("Steps:     %d\n", run.StepIndex)
	fmt.Printf("Turns:     %d\n", run.Turns)
	fmt.Printf("Chars:     %d\n", run.Chars)
	if run.WorkspaceDir != "" {
		fmt.Printf("Workspace: %s\n", run.WorkspaceDir)
	}
	if !run.StartedAt.IsZero() {
		fmt.Printf("Started:   %s\n", run.StartedAt.Format(time.RFC3339))
	}
	if run.State.Done() {
		fmt.Printf("Completed: %s (%s)\n", run.CompletedAt.Format(time.RFC3339), run.Duration().Round(time.Millisecond))
	}
	if run.ErrorMessage != "" {
		fmt.Printf("Error:     %s\n", run.ErrorMessage)
	}
	return nil
}

func runRunsEvents(cmd *cobra.Command, args []string) error {
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	// Fail on unknown run IDs instead of printing an empty list.
	if _, err := store.GetRun(context.Background(), args[0]); err != nil {
		return err
	}

	events, err := store.ListEvents(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}

	for _, event := range events {
		fmt.Printf("%4d  %-11s  %-8s  %s\n", event.Seq, event.Source, event.Kind, event.Message)
		if verbose {
			fmt.Printf("      %s\n", event.Payload)
		}
	}
	return nil
}

func runRunsSearch(cmd *cobra.Command, args []string) error {
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.SearchEvents(context.Background(), args[0], runsSearchLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No matching events.")
		return nil
	}

	for _, event := range events {
		fmt.Printf("%-40s  #%-4d  %-11s  %s\n", event.RunID, event.Seq, event.Source, event.Message)
	}
	return nil
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(context.Background(), args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteRun(context.Background(), run.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted run %s\n", run.ID)
	return nil
}
