package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old resolved conflicts",
	Long: `Remove conflicts resolved longer ago than the maximum age. Conflicts that
were never resolved are kept. With --rollbacks, expired rollback states are
purged as well.`,
	Run: runCleanup,
}

var (
	cleanupMaxAge    time.Duration
	cleanupRollbacks bool
)

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupMaxAge, "max-age", 0, "Maximum age of resolved conflicts (default from config)")
	cleanupCmd.Flags().BoolVar(&cleanupRollbacks, "rollbacks", false, "Also purge expired rollback states")
}

func runCleanup(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	maxAge := cleanupMaxAge
	if maxAge <= 0 {
		maxAge = c.Config.CleanupMaxAgeDuration()
	}

	removed, err := c.Resolver.CleanupOldConflicts(ctx, maxAge)
	if err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Removed %d conflict(s) resolved more than %s ago\n", removed, maxAge)

	if cleanupRollbacks {
		purged, err := c.Resolver.PurgeExpiredRollbacks(ctx)
		if err != nil {
			exitError("%v", err)
		}
		fmt.Printf("Purged %d expired rollback state(s)\n", purged)
	}
}
