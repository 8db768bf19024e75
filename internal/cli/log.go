package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/kilupskalvis/agentmerge/internal/models"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [id]",
	Short: "Show the audit log",
	Long:  `Display the audit log, optionally restricted to a single conflict.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runLog,
}

var (
	logOneline bool
	logJSON    bool
	logLimit   int
)

func init() {
	logCmd.Flags().BoolVar(&logOneline, "oneline", false, "Show each entry on a single line")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "Print entries as JSON lines")
	logCmd.Flags().IntVarP(&logLimit, "n", "n", 0, "Limit the number of entries to show (most recent)")
}

func runLog(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	var conflictID string
	if len(args) > 0 {
		conflictID = c.resolveConflictID(args[0])
	}

	entries := c.Resolver.GetAuditLog(conflictID)
	if logLimit > 0 && len(entries) > logLimit {
		entries = entries[len(entries)-logLimit:]
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries yet")
		return
	}

	if logJSON {
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				exitError("failed to encode audit entry: %v", err)
			}
			fmt.Println(string(data))
		}
		return
	}

	yellow := color.New(color.FgYellow)
	for _, e := range entries {
		if logOneline {
			yellow.Printf("%s ", shortID(e.ConflictID))
			actionColor(e.Action).Printf("%-15s ", e.Action)
			fmt.Printf("%s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Actor)
			continue
		}

		yellow.Printf("entry %s\n", e.ID)
		fmt.Printf("Conflict: %s\n", e.ConflictID)
		fmt.Print("Action:   ")
		actionColor(e.Action).Println(e.Action)
		fmt.Printf("Actor:    %s\n", e.Actor)
		fmt.Printf("Date:     %s\n", e.Timestamp.Format("Mon Jan 2 15:04:05 2006"))
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %s: %v\n", k, e.Details[k])
		}
		fmt.Println()
	}
}

func actionColor(a models.AuditAction) *color.Color {
	switch a {
	case models.AuditDetected:
		return color.New(color.FgRed)
	case models.AuditRolledBack:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgGreen)
	}
}
