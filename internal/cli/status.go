package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/agentmerge/internal/models"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show conflicts waiting for a resolution",
	Long: `Show pending conflicts and conflicts that require a manual resolution.
Use --all to list every registered conflict.`,
	Run: runStatus,
}

var (
	statusAll  bool
	statusFile string
)

func init() {
	statusCmd.Flags().BoolVar(&statusAll, "all", false, "List all conflicts, including resolved ones")
	statusCmd.Flags().StringVar(&statusFile, "file", "", "Only list conflicts for this file")
}

func runStatus(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	var conflicts []*models.Conflict
	if statusAll {
		conflicts = c.Resolver.ListConflicts(statusFile)
	} else {
		for _, conflict := range c.Resolver.GetPendingConflicts() {
			if statusFile == "" || conflict.FilePath == statusFile {
				conflicts = append(conflicts, conflict)
			}
		}
	}

	if len(conflicts) == 0 {
		if statusAll {
			fmt.Println("No conflicts recorded")
		} else {
			color.New(color.FgGreen).Println("Nothing to resolve")
		}
		return
	}

	for _, conflict := range conflicts {
		printConflictLine(conflict)
	}

	if !statusAll {
		fmt.Println()
		fmt.Println("  (use \"agentmerge show <id>\" to inspect a conflict)")
		fmt.Println("  (use \"agentmerge resolve <id> --auto|--accept-a|--accept-b|--content-file <f>\" to resolve)")
	}
}
