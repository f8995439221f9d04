package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"foreman/internal/events"
	"foreman/internal/graph"
	"foreman/internal/guard"
	"foreman/internal/notify"
	"foreman/internal/orchestrator"
	"foreman/internal/runner"
	"foreman/internal/store"
	"foreman/internal/style"
	"foreman/internal/tracker"
	"foreman/internal/workspace"
)

var (
	dispatchModel      string
	dispatchConcurrent int
	dispatchTrigger    string
	dispatchTracker    string
	dispatchVerbose    bool
)

var dispatchCmd = &cobra.Command{
	Use:     "dispatch <project-id>",
	Aliases: []string{"run"},
	GroupID: GroupWork,
	Short:   "Dispatch a project's work items in dependency order",
	Long: `Fetch a project's items from the tracker, build the dependency graph,
and dispatch ready items to agents until the project completes or gets
stuck. Blocks until all in-flight work finishes.

Use --trigger to attach an event key so redelivered trigger events are
deduplicated, including across restarts.`,
	Args: cobra.ExactArgs(1),
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().StringVarP(&dispatchModel, "model", "m", "", "Model override for work agents")
	dispatchCmd.Flags().IntVarP(&dispatchConcurrent, "concurrency", "c", 0, "Override max concurrent dispatches")
	dispatchCmd.Flags().StringVar(&dispatchTrigger, "trigger", "", "Trigger event key for dedup")
	dispatchCmd.Flags().StringVar(&dispatchTracker, "tracker-dir", "", "Directory to run tracker commands in")
	dispatchCmd.Flags().BoolVarP(&dispatchVerbose, "verbose", "v", false, "Log dispatch activity")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dispatchModel != "" {
		cfg.Model = dispatchModel
	}
	if dispatchConcurrent > 0 {
		cfg.MaxConcurrent = dispatchConcurrent
	}
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	logger := func(format string, argv ...interface{}) {}
	if dispatchVerbose {
		logger = func(format string, argv ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", argv...)
		}
	}

	s := openStore(cfg)
	g := guard.New(s, guard.Options{
		DispatchStaleness: cfg.DispatchStaleness.Duration,
		DedupTTL:          cfg.DedupTTL.Duration,
		SweepInterval:     cfg.DedupSweep.Duration,
		Logger:            logger,
	})
	g.Start()
	defer g.Stop()

	eventLog := events.NewLog(cfg.StateDir)
	orch := orchestrator.New(orchestrator.Options{
		Config:      cfg,
		Store:       s,
		Tracker:     tracker.NewBDClient(dispatchTracker),
		Guard:       g,
		Executor:    runner.NewClaudeRunner(logger),
		Provisioner: workspace.NewDirProvisioner(cfg.StateDir),
		Notify:      notify.ToEventLog(eventLog, "fm"),
		Logger:      logger,
	})

	// Ctrl-C cancels in-flight attempts; pipelines still record their
	// terminal state before exiting.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if dispatchTrigger != "" {
		err = orch.HandleTrigger(ctx, dispatchTrigger, projectID)
	} else {
		err = orch.StartProject(ctx, projectID)
	}
	if err != nil {
		return err
	}
	orch.Wait()

	state, err := s.ReadProject(projectID)
	if errors.Is(err, store.ErrProjectNotFound) {
		// Deduplicated trigger with no prior run on this state dir.
		fmt.Printf("%s nothing dispatched for %s\n", style.Dim.Render("·"), projectID)
		return nil
	}
	if err != nil {
		return err
	}
	return printOutcome(state)
}

func printOutcome(state *graph.ProjectState) error {
	done, stuck, skipped := 0, 0, 0
	for _, item := range state.Issues {
		switch item.Status {
		case graph.StatusDone:
			done++
		case graph.StatusStuck:
			stuck++
		case graph.StatusSkipped:
			skipped++
		}
	}

	switch state.Status {
	case graph.ProjectCompleted:
		fmt.Printf("%s project %s completed: %d done, %d skipped\n",
			style.SuccessPrefix, state.ProjectID, done, skipped)
		return nil
	case graph.ProjectStuck:
		fmt.Printf("%s project %s stuck: %d done, %d stuck, %d skipped\n",
			style.ErrorPrefix, state.ProjectID, done, stuck, skipped)
		return fmt.Errorf("project %s is stuck", state.ProjectID)
	default:
		fmt.Printf("%s project %s: %s\n", style.WarningPrefix, state.ProjectID, state.Status)
		return nil
	}
}
