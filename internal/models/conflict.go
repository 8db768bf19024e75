package models

import "time"

// Severity ranks how large the contested span of a conflict is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal of the severity (low=0 .. critical=3), -1 if unknown
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// ConflictStatus is the lifecycle state of a conflict
type ConflictStatus string

const (
	StatusPending        ConflictStatus = "pending"
	StatusAutoResolved   ConflictStatus = "auto_resolved"
	StatusManualRequired ConflictStatus = "manual_required"
	StatusResolved       ConflictStatus = "resolved"
	StatusRolledBack     ConflictStatus = "rolled_back"
)

// IsOpen reports whether the conflict still waits for a resolution
func (s ConflictStatus) IsOpen() bool {
	return s == StatusPending || s == StatusManualRequired
}

// ResolutionType identifies how a conflict was resolved
type ResolutionType string

const (
	ResolutionAcceptA ResolutionType = "accept_a"
	ResolutionAcceptB ResolutionType = "accept_b"
	ResolutionMerge   ResolutionType = "merge"
	ResolutionCustom  ResolutionType = "custom"
	ResolutionManual  ResolutionType = "manual"
)

// Valid reports whether t is one of the known resolution types
func (t ResolutionType) Valid() bool {
	switch t {
	case ResolutionAcceptA, ResolutionAcceptB, ResolutionMerge, ResolutionCustom, ResolutionManual:
		return true
	}
	return false
}

// ChangeInfo is one writer's edit. When submitted for detection Content is the
// whole edited file; inside a Conflict it is only the changed region.
type ChangeInfo struct {
	AgentID   string    `json:"agent_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// Resolution is the outcome attached to a resolved conflict
type Resolution struct {
	Type            ResolutionType `json:"type"`
	ResolvedContent string         `json:"resolved_content"`
	ResolvedBy      string         `json:"resolved_by"`
	Notes           string         `json:"notes,omitempty"`
}

// Conflict is a union of two overlapping regions from two edits of the same base
type Conflict struct {
	ID              string         `json:"id"`
	FilePath        string         `json:"file_path"`
	LineStart       int            `json:"line_start"` // 0-based, inclusive
	LineEnd         int            `json:"line_end"`   // 0-based, inclusive
	OriginalContent string         `json:"original_content"`
	ChangeA         ChangeInfo     `json:"change_a"`
	ChangeB         ChangeInfo     `json:"change_b"`
	Severity        Severity       `json:"severity"`
	Status          ConflictStatus `json:"status"`
	DetectedAt      time.Time      `json:"detected_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	Resolution      *Resolution    `json:"resolution,omitempty"`
}

// ShortID returns the first 8 characters of the conflict ID
func (c *Conflict) ShortID() string {
	if len(c.ID) > 8 {
		return c.ID[:8]
	}
	return c.ID
}

// Clone returns a deep copy so callers cannot reach into the registry
func (c *Conflict) Clone() *Conflict {
	if c == nil {
		return nil
	}
	out := *c
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		out.ResolvedAt = &t
	}
	if c.Resolution != nil {
		res := *c.Resolution
		out.Resolution = &res
	}
	return &out
}

// Region is a contiguous run of lines that differ between a base and an edit
type Region struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Content string `json:"content"` // edited lines in [Start, End]
}

// Overlaps reports whether the two line ranges share at least one line
func (r Region) Overlaps(o Region) bool {
	return !(r.End < o.Start || o.End < r.Start)
}

// AutoResolveResult contains the outcome of an automatic resolution attempt
type AutoResolveResult struct {
	Success         bool           // Whether the conflict was merged automatically
	ResolvedContent string         // Merged text (empty on failure)
	Status          ConflictStatus // Status of the conflict after the attempt
	Warnings        []string       // Reasons the merge was not possible
}
