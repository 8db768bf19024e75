// Package cli implements the command-line interface for agentmerge.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kilupskalvis/agentmerge/internal/config"
	"github.com/kilupskalvis/agentmerge/internal/core"
	"github.com/kilupskalvis/agentmerge/internal/store"
	"github.com/spf13/cobra"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config   *config.Config
	Store    store.Store
	Resolver *core.Resolver
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}

// initContext loads config, opens the state store, and builds the resolver
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	st, err := store.Open(cfg.Backend, cfg.StatePath())
	if err != nil {
		exitError("failed to open store: %v", err)
	}

	opts := cfg.EngineOptions()
	opts.Logger = newLogger()

	r, err := core.New(context.Background(), opts, st)
	if err != nil {
		st.Close()
		exitError("%v", err)
	}

	return &cmdContext{Config: cfg, Store: st, Resolver: r}
}

// resolveConflictID expands a short id, exiting on failure
func (c *cmdContext) resolveConflictID(id string) string {
	full, err := c.Resolver.ResolveID(id)
	if err != nil {
		exitError("%v", err)
	}
	return full
}

var verbose bool

// newLogger logs engine transitions to stderr with --verbose, and discards them otherwise
func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var rootCmd = &cobra.Command{
	Use:   "agentmerge",
	Short: "Concurrent edit conflict engine",
	Long: `agentmerge detects, classifies, and resolves overlapping edits made by
independent agents to the same text file. Resolutions can be rolled back
within a retention window and every transition is recorded in an audit log.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine transitions to stderr")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// exitResolverError maps engine errors to user-facing messages
func exitResolverError(id string, err error) {
	switch {
	case errors.Is(err, core.ErrConflictNotFound):
		exitError("conflict not found: %s", id)
	case errors.Is(err, core.ErrNoRollbackState), errors.Is(err, core.ErrRollbackExpired):
		exitError("cannot roll back %s: %v", shortID(id), err)
	case errors.Is(err, core.ErrConflictClosed):
		exitError("cannot resolve %s: it was rolled back", shortID(id))
	default:
		exitError("%v", err)
	}
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// readFileArg reads a file argument, "-" meaning stdin
func readFileArg(path string) string {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		exitError("failed to read %s: %v", path, err)
	}
	return string(data)
}
