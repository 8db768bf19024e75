package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kilupskalvis/agentmerge/internal/config"
	"github.com/kilupskalvis/agentmerge/internal/core"
	"github.com/kilupskalvis/agentmerge/internal/store"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for agentmerge.

Conflict ids are completed from the current workspace.

To load completions:

Bash:
  $ source <(agentmerge completion bash)

Zsh:
  $ source <(agentmerge completion zsh)

Fish:
  $ agentmerge completion fish | source
`,
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		default:
			return rootCmd.GenFishCompletion(out, true)
		}
	},
}

// completeConflictIDs offers short ids of registered conflicts. Any failure to
// open the workspace yields no suggestions instead of an error.
func completeConflictIDs(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if _, err := os.Stat(cfg.StatePath()); err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	st, err := store.Open(cfg.Backend, cfg.StatePath())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer st.Close()

	opts := cfg.EngineOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := core.New(context.Background(), opts, st)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var out []cobra.Completion
	for _, c := range r.ListConflicts("") {
		if strings.HasPrefix(c.ID, toComplete) {
			out = append(out, cobra.CompletionWithDesc(c.ShortID(), string(c.Status)+" "+c.FilePath))
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)

	for _, cmd := range []*cobra.Command{showCmd, resolveCmd, rollbackCmd, logCmd} {
		cmd.ValidArgsFunction = completeConflictIDs
	}
}
