package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/agentmerge/internal/core"
	"github.com/kilupskalvis/agentmerge/internal/models"
)

// severityColor picks the display color for a severity
func severityColor(s models.Severity) *color.Color {
	switch s {
	case models.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case models.SeverityHigh:
		return color.New(color.FgRed)
	case models.SeverityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

// statusColor picks the display color for a status
func statusColor(s models.ConflictStatus) *color.Color {
	switch s {
	case models.StatusPending:
		return color.New(color.FgYellow)
	case models.StatusManualRequired:
		return color.New(color.FgRed)
	case models.StatusRolledBack:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgGreen)
	}
}

// printConflictLine prints a one-line summary of a conflict
func printConflictLine(c *models.Conflict) {
	color.New(color.FgYellow).Printf("%s ", c.ShortID())
	fmt.Printf("%s:%d-%d ", c.FilePath, c.LineStart+1, c.LineEnd+1)
	severityColor(c.Severity).Printf("[%s] ", c.Severity)
	statusColor(c.Status).Printf("%s", c.Status)
	fmt.Printf("  %s vs %s\n", c.ChangeA.AgentID, c.ChangeB.AgentID)
}

// printConflict prints the full details of a conflict
func printConflict(c *models.Conflict) {
	color.New(color.FgYellow).Printf("conflict %s\n", c.ID)
	fmt.Printf("File:     %s\n", c.FilePath)
	fmt.Printf("Lines:    %d-%d\n", c.LineStart+1, c.LineEnd+1)
	fmt.Print("Severity: ")
	severityColor(c.Severity).Println(c.Severity)
	fmt.Print("Status:   ")
	statusColor(c.Status).Println(c.Status)
	fmt.Printf("Detected: %s\n", c.DetectedAt.Format("Mon Jan 2 15:04:05 2006"))
	printChange("A", c.ChangeA)
	printChange("B", c.ChangeB)

	if c.Resolution != nil {
		fmt.Println()
		color.New(color.FgGreen).Printf("Resolved by %s (%s)", c.Resolution.ResolvedBy, c.Resolution.Type)
		if c.ResolvedAt != nil {
			fmt.Printf(" at %s", c.ResolvedAt.Format("Mon Jan 2 15:04:05 2006"))
		}
		fmt.Println()
		if c.Resolution.Notes != "" {
			fmt.Printf("    %s\n", c.Resolution.Notes)
		}
		printIndented(c.Resolution.ResolvedContent)
	}
}

func printChange(side string, ch models.ChangeInfo) {
	fmt.Printf("Change %s:  %s", side, ch.AgentID)
	if !ch.Timestamp.IsZero() {
		fmt.Printf(" at %s", ch.Timestamp.Format("15:04:05"))
	}
	if ch.Reason != "" {
		fmt.Printf(" (%s)", ch.Reason)
	}
	fmt.Println()
}

// printMarkers prints git-style conflict markers with colored marker lines
func printMarkers(c *models.Conflict) {
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	for _, line := range strings.Split(core.GenerateConflictMarkers(c), "\n") {
		switch {
		case strings.HasPrefix(line, core.MarkerStart):
			red.Println(line)
		case line == core.MarkerSeparator:
			cyan.Println(line)
		case strings.HasPrefix(line, core.MarkerEnd):
			green.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func printIndented(text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Printf("    %s\n", line)
	}
}
