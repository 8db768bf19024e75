package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/agentmerge/internal/models"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect conflicts between two edits of a file",
	Long: `Compare two edited versions of a file against their common base and
record one conflict for every pair of overlapping changed regions.

Examples:
  agentmerge detect --path src/app.go --base base.go --a a.go --b b.go
  agentmerge detect --path README.md --base README.md --a a.md --agent-a writer \
                    --b b.md --agent-b reviewer --auto`,
	Run: runDetect,
}

var (
	detectPath    string
	detectBase    string
	detectFileA   string
	detectFileB   string
	detectAgentA  string
	detectAgentB  string
	detectReasonA string
	detectReasonB string
	detectAuto    bool
)

func init() {
	detectCmd.Flags().StringVar(&detectPath, "path", "", "Path of the file being edited (recorded on conflicts)")
	detectCmd.Flags().StringVar(&detectBase, "base", "", "File with the pre-edit content")
	detectCmd.Flags().StringVar(&detectFileA, "a", "", "File with edit A")
	detectCmd.Flags().StringVar(&detectFileB, "b", "", "File with edit B")
	detectCmd.Flags().StringVar(&detectAgentA, "agent-a", "agent-a", "Agent that produced edit A")
	detectCmd.Flags().StringVar(&detectAgentB, "agent-b", "agent-b", "Agent that produced edit B")
	detectCmd.Flags().StringVar(&detectReasonA, "reason-a", "", "Reason given for edit A")
	detectCmd.Flags().StringVar(&detectReasonB, "reason-b", "", "Reason given for edit B")
	detectCmd.Flags().BoolVar(&detectAuto, "auto", false, "Attempt automatic resolution of each detected conflict")
	detectCmd.MarkFlagRequired("base")
	detectCmd.MarkFlagRequired("a")
	detectCmd.MarkFlagRequired("b")
}

func runDetect(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	path := detectPath
	if path == "" {
		path = detectBase
	}

	now := time.Now()
	changeA := models.ChangeInfo{AgentID: detectAgentA, Content: readFileArg(detectFileA), Timestamp: now, Reason: detectReasonA}
	changeB := models.ChangeInfo{AgentID: detectAgentB, Content: readFileArg(detectFileB), Timestamp: now, Reason: detectReasonB}

	conflicts, err := c.Resolver.DetectConflicts(ctx, readFileArg(detectBase), changeA, changeB, path)
	if err != nil {
		exitError("%v", err)
	}

	if len(conflicts) == 0 {
		color.New(color.FgGreen).Println("No conflicts: the edits touch disjoint regions")
		return
	}

	color.New(color.FgRed, color.Bold).Printf("%d conflict(s) detected in %s\n", len(conflicts), path)
	for _, conflict := range conflicts {
		printConflictLine(conflict)
	}

	if !detectAuto {
		return
	}

	fmt.Println()
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)
	for _, conflict := range conflicts {
		result, err := c.Resolver.AttemptAutoResolve(ctx, conflict.ID)
		if err != nil {
			exitResolverError(conflict.ID, err)
		}
		if result.Success {
			green.Printf("%s auto-resolved\n", conflict.ShortID())
			continue
		}
		for _, w := range result.Warnings {
			yellow.Printf("%s %s: %s\n", conflict.ShortID(), result.Status, w)
		}
	}
}
