package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/agentmerge/internal/models"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Resolve a conflict",
	Long: `Resolve a conflict automatically, by accepting one side, or with custom content.

Examples:
  agentmerge resolve 1a2b3c4d --auto                  # Try an automatic merge
  agentmerge resolve 1a2b3c4d --accept-a              # Keep edit A
  agentmerge resolve 1a2b3c4d --accept-b --by alice   # Keep edit B
  agentmerge resolve 1a2b3c4d --content-file merged.txt --notes "combined"`,
	Args: cobra.ExactArgs(1),
	Run:  runResolve,
}

var (
	resolveAuto        bool
	resolveAcceptA     bool
	resolveAcceptB     bool
	resolveContentFile string
	resolveBy          string
	resolveNotes       string
	resolveType        string
)

func init() {
	resolveCmd.Flags().BoolVar(&resolveAuto, "auto", false, "Attempt an automatic merge")
	resolveCmd.Flags().BoolVar(&resolveAcceptA, "accept-a", false, "Resolve with edit A")
	resolveCmd.Flags().BoolVar(&resolveAcceptB, "accept-b", false, "Resolve with edit B")
	resolveCmd.Flags().StringVar(&resolveContentFile, "content-file", "", "Resolve with the content of this file (- for stdin)")
	resolveCmd.Flags().StringVar(&resolveBy, "by", defaultActor(), "Actor recorded as resolver")
	resolveCmd.Flags().StringVar(&resolveNotes, "notes", "", "Notes stored with a custom resolution")
	resolveCmd.Flags().StringVar(&resolveType, "type", string(models.ResolutionManual), "Resolution type for --content-file (manual, custom, merge)")
	resolveCmd.MarkFlagsMutuallyExclusive("auto", "accept-a", "accept-b", "content-file")
	resolveCmd.MarkFlagsOneRequired("auto", "accept-a", "accept-b", "content-file")
}

func runResolve(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	id := c.resolveConflictID(args[0])
	green := color.New(color.FgGreen)

	switch {
	case resolveAuto:
		result, err := c.Resolver.AttemptAutoResolve(ctx, id)
		if err != nil {
			exitResolverError(id, err)
		}
		if !result.Success {
			yellow := color.New(color.FgYellow)
			yellow.Printf("Automatic resolution failed; conflict is %s\n", result.Status)
			for _, w := range result.Warnings {
				yellow.Printf("  %s\n", w)
			}
			os.Exit(1)
		}
		green.Printf("Auto-resolved %s\n", shortID(id))
		printIndented(result.ResolvedContent)
		return

	case resolveAcceptA, resolveAcceptB:
		accept := c.Resolver.AcceptChangeA
		if resolveAcceptB {
			accept = c.Resolver.AcceptChangeB
		}
		conflict, err := accept(ctx, id, resolveBy)
		if err != nil {
			exitResolverError(id, err)
		}
		green.Printf("Resolved %s (%s)\n", conflict.ShortID(), conflict.Resolution.Type)
		fmt.Printf("  %s\n", conflict.Resolution.Notes)

	default:
		typ := models.ResolutionType(resolveType)
		if !typ.Valid() {
			exitError("invalid resolution type %q", resolveType)
		}
		conflict, err := c.Resolver.ManualResolve(ctx, id, models.Resolution{
			Type:            typ,
			ResolvedContent: readFileArg(resolveContentFile),
			ResolvedBy:      resolveBy,
			Notes:           resolveNotes,
		})
		if err != nil {
			exitResolverError(id, err)
		}
		green.Printf("Resolved %s (%s) by %s\n", conflict.ShortID(), conflict.Resolution.Type, conflict.Resolution.ResolvedBy)
	}
}

// defaultActor uses the login name of the operator
func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "operator"
}
