// Command agentmerge detects and resolves conflicting edits from the command line.
package main

import (
	"os"

	"github.com/kilupskalvis/agentmerge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
