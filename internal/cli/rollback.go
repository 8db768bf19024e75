package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <id>",
	Short: "Undo the resolution of a conflict",
	Long: `Undo the latest resolution of a conflict and print the original region
content so it can be re-applied. A resolution can be rolled back once, and
only within the configured retention window.`,
	Args: cobra.ExactArgs(1),
	Run:  runRollback,
}

var rollbackQuiet bool

func init() {
	rollbackCmd.Flags().BoolVarP(&rollbackQuiet, "quiet", "q", false, "Print only the restored content")
}

func runRollback(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	id := c.resolveConflictID(args[0])
	content, err := c.Resolver.Rollback(ctx, id)
	if err != nil {
		exitResolverError(id, err)
	}

	if rollbackQuiet {
		fmt.Println(content)
		return
	}

	color.New(color.FgMagenta).Printf("Rolled back %s\n", shortID(id))
	fmt.Println("Original content:")
	printIndented(content)
}
