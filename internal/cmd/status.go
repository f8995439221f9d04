package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"foreman/internal/graph"
	"foreman/internal/store"
	"foreman/internal/style"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:     "status [project-id]",
	Aliases: []string{"stat"},
	GroupID: GroupDiag,
	Short:   "Show project and dispatch status",
	Long: `Display persisted dispatch state.

Without arguments, lists all known projects and active dispatches.
With a project id, shows that project's per-item breakdown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(statusCmd)
}

// ProjectSummary is one project's line in the status output.
type ProjectSummary struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
	Done      int    `json:"done"`
	Stuck     int    `json:"stuck"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Skipped   int    `json:"skipped"`
}

// StatusReport is the full status output.
type StatusReport struct {
	Projects  []ProjectSummary         `json:"projects"`
	Active    []*store.DispatchRecord  `json:"active_dispatches"`
	Completed int                      `json:"completed_dispatches"`
	Items     map[string]graph.Status  `json:"items,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s := openStore(cfg)

	report, state, err := buildStatusReport(s, args)
	if err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printStatusReport(report, state)
	return nil
}

func buildStatusReport(s *store.Store, args []string) (*StatusReport, *graph.ProjectState, error) {
	report := &StatusReport{}

	var projectIDs []string
	var selected *graph.ProjectState
	if len(args) == 1 {
		projectIDs = args
	} else {
		ids, err := s.ListProjects()
		if err != nil {
			return nil, nil, err
		}
		projectIDs = ids
	}

	for _, id := range projectIDs {
		state, err := s.ReadProject(id)
		if err != nil {
			return nil, nil, err
		}
		report.Projects = append(report.Projects, summarize(state))
		if len(args) == 1 {
			selected = state
			report.Items = make(map[string]graph.Status, len(state.Issues))
			for itemID, item := range state.Issues {
				report.Items[itemID] = item.Status
			}
		}
	}

	ds, err := s.Read()
	if err != nil {
		return nil, nil, err
	}
	for _, rec := range ds.Dispatches.Active {
		report.Active = append(report.Active, rec)
	}
	report.Completed = len(ds.Dispatches.Completed)

	return report, selected, nil
}

func summarize(state *graph.ProjectState) ProjectSummary {
	sum := ProjectSummary{ProjectID: state.ProjectID, Status: string(state.Status)}
	for _, item := range state.Issues {
		switch item.Status {
		case graph.StatusDone:
			sum.Done++
		case graph.StatusStuck:
			sum.Stuck++
		case graph.StatusPending:
			sum.Pending++
		case graph.StatusDispatched:
			sum.Active++
		case graph.StatusSkipped:
			sum.Skipped++
		}
	}
	return sum
}

func printStatusReport(report *StatusReport, selected *graph.ProjectState) {
	if len(report.Projects) == 0 {
		fmt.Println(style.Dim.Render("No projects."))
		return
	}

	tbl := style.NewTable(
		style.Column{Name: "PROJECT", Width: 24},
		style.Column{Name: "STATUS", Width: 12},
		style.Column{Name: "DONE", Width: 5, Align: style.AlignRight},
		style.Column{Name: "STUCK", Width: 5, Align: style.AlignRight},
		style.Column{Name: "PENDING", Width: 7, Align: style.AlignRight},
		style.Column{Name: "ACTIVE", Width: 6, Align: style.AlignRight},
		style.Column{Name: "PROGRESS", Width: 18},
	)
	for _, p := range report.Projects {
		tracked := p.Done + p.Stuck + p.Pending + p.Active
		percent := 0
		if tracked > 0 {
			percent = p.Done * 100 / tracked
		}
		tbl.AddRow(
			p.ProjectID,
			style.DispatchStatusStyle(p.Status).Render(p.Status),
			fmt.Sprint(p.Done),
			fmt.Sprint(p.Stuck),
			fmt.Sprint(p.Pending),
			fmt.Sprint(p.Active),
			style.ProgressBar(percent, 10),
		)
	}
	fmt.Println(tbl.Render())

	if selected != nil {
		fmt.Println(style.Bold.Render("  Items:"))
		itemTbl := style.NewTable(
			style.Column{Name: "ITEM", Width: 28},
			style.Column{Name: "STATUS", Width: 12},
			style.Column{Name: "COMPLETED", Width: 20},
		)
		for _, item := range selected.InOrder() {
			completed := ""
			if item.CompletedAt != nil {
				completed = item.CompletedAt.Format(time.RFC3339)
			}
			itemTbl.AddRow(
				item.ID,
				style.DispatchStatusStyle(string(item.Status)).Render(string(item.Status)),
				completed,
			)
		}
		fmt.Println(itemTbl.Render())
	}

	if len(report.Active) > 0 {
		fmt.Println(style.Bold.Render("  Active dispatches:"))
		actTbl := style.NewTable(
			style.Column{Name: "ITEM", Width: 28},
			style.Column{Name: "STATUS", Width: 10},
			style.Column{Name: "ATTEMPT", Width: 7, Align: style.AlignRight},
			style.Column{Name: "AGE", Width: 10},
		)
		for _, rec := range report.Active {
			actTbl.AddRow(
				rec.ID,
				style.DispatchStatusStyle(string(rec.Status)).Render(string(rec.Status)),
				fmt.Sprint(rec.Attempt),
				time.Since(rec.DispatchedAt).Round(time.Second).String(),
			)
		}
		fmt.Println(actTbl.Render())
	}

	if isTerminal() {
		fmt.Println(style.Dim.Render(fmt.Sprintf("  %d completed dispatch(es) retained", report.Completed)))
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
