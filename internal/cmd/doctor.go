package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"foreman/internal/doctor"
	"foreman/internal/style"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupDiag,
	Short:   "Check state directory health",
	Long: `Run health checks against the foreman state directory: stale dispatch
records, stale lock markers, orphaned workspaces, and over-retention
completed records.

Use --fix to repair what can be repaired automatically.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Attempt to fix problems automatically")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := &doctor.CheckContext{
		StateDir: cfg.StateDir,
		Config:   cfg,
		Store:    openStore(cfg),
	}

	d := doctor.NewDoctor()
	d.RegisterAll(doctor.DefaultChecks()...)

	var report *doctor.Report
	if doctorFix {
		report = d.Fix(ctx)
	} else {
		report = d.Run(ctx)
	}

	for _, result := range report.Checks {
		prefix := style.SuccessPrefix
		switch result.Status {
		case doctor.StatusWarning:
			prefix = style.WarningPrefix
		case doctor.StatusError:
			prefix = style.ErrorPrefix
		}
		fmt.Printf("%s %-18s %s\n", prefix, result.Name, result.Message)
		for _, detail := range result.Details {
			fmt.Printf("    %s\n", style.Dim.Render(detail))
		}
		if result.FixHint != "" && result.Status != doctor.StatusOK {
			fmt.Printf("    %s\n", style.Info.Render(result.FixHint))
		}
	}

	sum := report.Summary
	fmt.Printf("\n  %d ok, %d warnings, %d errors", sum.OK, sum.Warnings, sum.Errors)
	if doctorFix {
		fmt.Printf(", %d fixed", sum.Fixed)
	}
	fmt.Println()

	if sum.Errors > 0 {
		return fmt.Errorf("%d check(s) failed", sum.Errors)
	}
	return nil
}
