package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/agentmerge/internal/config"
	"github.com/kilupskalvis/agentmerge/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new agentmerge workspace",
	Long: `Initialize a new agentmerge workspace in the current directory.
This creates a .agentmerge directory holding the configuration and conflict state.`,
	Run: runInit,
}

var initBackend string

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", store.BackendBbolt, "State store backend (bbolt, sqlite)")
}

func runInit(cmd *cobra.Command, args []string) {
	if _, err := config.FindRoot(); err == nil {
		exitError("agentmerge workspace already exists")
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitError("%v", err)
	}

	cfg, err := config.Initialize(cwd)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	if initBackend != cfg.Backend {
		cfg.Backend = initBackend
		if err := cfg.Validate(); err != nil {
			os.RemoveAll(cfg.Path())
			exitError("%v", err)
		}
		if err := cfg.Save(); err != nil {
			exitError("failed to save config: %v", err)
		}
	}

	st, err := store.Open(cfg.Backend, cfg.StatePath())
	if err != nil {
		exitError("failed to initialize store: %v", err)
	}
	st.Close()

	color.New(color.FgGreen).Printf("Initialized empty agentmerge workspace in %s\n", cfg.Path())
	fmt.Printf("State backend: %s\n", cfg.Backend)
}
