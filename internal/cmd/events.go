package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"foreman/internal/events"
	"foreman/internal/style"
)

var (
	eventsTail int
	eventsJSON bool
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	GroupID: GroupDiag,
	Short:   "Show recent lifecycle events",
	RunE:    runEvents,
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsTail, "tail", "n", 20, "Number of events to show")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := events.NewLog(cfg.StateDir)
	evts, err := log.Tail(eventsTail)
	if err != nil {
		return err
	}

	if eventsJSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(evts)
	}

	if len(evts) == 0 {
		fmt.Println(style.Dim.Render("No events."))
		return nil
	}
	for _, evt := range evts {
		payload := ""
		if len(evt.Payload) > 0 {
			if data, err := json.Marshal(evt.Payload); err == nil {
				payload = string(data)
			}
		}
		fmt.Printf("%s %-18s %s\n",
			style.Dim.Render(evt.Timestamp),
			evt.Type,
			style.Dim.Render(payload),
		)
	}
	return nil
}
