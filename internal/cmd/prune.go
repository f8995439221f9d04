package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"foreman/internal/events"
	"foreman/internal/style"
)

var pruneOlderThan time.Duration

var pruneCmd = &cobra.Command{
	Use:     "prune",
	GroupID: GroupDiag,
	Short:   "Remove completed dispatch records past retention",
	RunE:    runPrune,
}

func init() {
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0,
		"Prune records older than this (default: configured retention)")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	maxAge := pruneOlderThan
	if maxAge <= 0 {
		maxAge = cfg.Retention.Duration
	}

	s := openStore(cfg)
	n, err := s.PruneCompleted(cmd.Context(), maxAge)
	if err != nil {
		return err
	}

	if n > 0 {
		eventLog := events.NewLog(cfg.StateDir)
		_ = eventLog.Append(events.TypePrune, "fm", map[string]interface{}{"pruned": n})
	}
	fmt.Printf("%s pruned %d completed record(s)\n", style.SuccessPrefix, n)
	return nil
}
