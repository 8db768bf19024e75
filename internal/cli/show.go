package cli

import (
	"fmt"

	"github.com/kilupskalvis/agentmerge/internal/core"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show conflict details",
	Long:  `Show details about a conflict, including both edits rendered between git-style conflict markers.`,
	Args:  cobra.ExactArgs(1),
	Run:   runShow,
}

var showMarkersOnly bool

func init() {
	showCmd.Flags().BoolVar(&showMarkersOnly, "markers", false, "Print only the conflict markers (uncolored)")
}

func runShow(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	id := c.resolveConflictID(args[0])
	conflict, ok := c.Resolver.GetConflict(id)
	if !ok {
		exitError("conflict not found: %s", args[0])
	}

	if showMarkersOnly {
		fmt.Println(core.GenerateConflictMarkers(conflict))
		return
	}

	printConflict(conflict)
	fmt.Println()
	printMarkers(conflict)

	if rs, ok := c.Resolver.GetRollbackState(id); ok {
		fmt.Printf("\nRollback available until %s\n", rs.ExpiresAt.Format("Mon Jan 2 15:04:05 2006"))
	}
}
