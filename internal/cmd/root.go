// Package cmd implements the fm command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"foreman/internal/config"
	"foreman/internal/constants"
	"foreman/internal/store"
	"foreman/internal/style"
)

// Command groups for help output.
const (
	GroupWork = "work"
	GroupDiag = "diag"
)

var stateDirFlag string

var rootCmd = &cobra.Command{
	Use:   "fm",
	Short: "Dependency-aware work dispatcher",
	Long: `Foreman dispatches work items to coding agents in dependency order.

It builds a dependency graph from an issue tracker, admits ready items
up to a concurrency cap, and drives each one through a bounded
work/audit loop until the project completes or gets stuck.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupWork, Title: "Dispatch Commands:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostic Commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&stateDirFlag, "state-dir", "",
		"State directory (default ~/"+constants.StateDirName+", or $FOREMAN_HOME)")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", style.ErrorPrefix, err)
		return 1
	}
	return 0
}

// loadConfig resolves the effective config, honoring --state-dir.
func loadConfig() (*config.Config, error) {
	dir := stateDirFlag
	if dir == "" {
		dir = config.Default().StateDir
	}
	return config.LoadFromStateDir(dir)
}

// openStore returns the dispatch store for cfg.
func openStore(cfg *config.Config) *store.Store {
	return store.New(cfg.StateDir, cfg.LockStaleness.Duration)
}
