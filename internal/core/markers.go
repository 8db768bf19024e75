package core

import (
	"strings"

	"github.com/kilupskalvis/agentmerge/internal/models"
)

// Conflict marker lines, as written by git.
const (
	MarkerStart     = "<<<<<<<"
	MarkerSeparator = "======="
	MarkerEnd       = ">>>>>>>"
)

// GenerateConflictMarkers renders both sides of a conflict between git-style
// markers labelled with the originating agents. It works for any status.
func GenerateConflictMarkers(c *models.Conflict) string {
	var sb strings.Builder
	sb.WriteString(MarkerStart + " " + c.ChangeA.AgentID + "\n")
	sb.WriteString(c.ChangeA.Content + "\n")
	sb.WriteString(MarkerSeparator + "\n")
	sb.WriteString(c.ChangeB.Content + "\n")
	sb.WriteString(MarkerEnd + " " + c.ChangeB.AgentID)
	return sb.String()
}
