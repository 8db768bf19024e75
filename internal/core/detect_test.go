package core

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kilupskalvis/agentmerge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConflicts_SameLineDifferentEdits(t *testing.T) {
	r, clock := newTestResolver(t)

	c := detectLine2Conflict(t, r)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "src/main.go", c.FilePath)
	assert.Equal(t, 1, c.LineStart)
	assert.Equal(t, 1, c.LineEnd)
	assert.Equal(t, "line2", c.OriginalContent)
	assert.Equal(t, "line2-A", c.ChangeA.Content)
	assert.Equal(t, "line2-B", c.ChangeB.Content)
	assert.Equal(t, "agent-1", c.ChangeA.AgentID)
	assert.Equal(t, "agent-2", c.ChangeB.AgentID)
	assert.Equal(t, models.SeverityLow, c.Severity)
	assert.Equal(t, models.StatusPending, c.Status)
	assert.Equal(t, clock.Now(), c.DetectedAt)
	assert.Equal(t, clock.Now(), c.ChangeA.Timestamp, "missing timestamps default to detection time")
	assert.Nil(t, c.ResolvedAt)
	assert.Nil(t, c.Resolution)

	stored, ok := r.GetConflict(c.ID)
	require.True(t, ok)
	assert.Equal(t, c, stored)

	log := r.GetAuditLog(c.ID)
	require.Len(t, log, 1)
	assert.Equal(t, models.AuditDetected, log[0].Action)
	assert.Equal(t, "src/main.go", log[0].Details["file_path"])
}

func TestDetectConflicts_DisjointEditsDoNotConflict(t *testing.T) {
	r, _ := newTestResolver(t)

	conflicts, err := r.DetectConflicts(context.Background(), fiveLines,
		change("agent-1", "line1-A\nline2\nline3\nline4\nline5"),
		change("agent-2", "line1\nline2\nline3\nline4\nline5-B"),
		"file.txt")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Empty(t, r.GetAuditLog(""))
	assert.Empty(t, r.ListConflicts(""))
}

func TestDetectConflicts_OnePerOverlappingPair(t *testing.T) {
	r, _ := newTestResolver(t)

	base := "a\nb\nc\nd\ne\nf\ng"
	conflicts, err := r.DetectConflicts(context.Background(), base,
		change("agent-1", "A\nb\nc\nd\nE\nf\ng"),
		change("agent-2", "a1\nb\nc\nd\ne1\nf\ng"),
		"file.txt")
	require.NoError(t, err)
	require.Len(t, conflicts, 2)

	assert.Equal(t, 0, conflicts[0].LineStart)
	assert.Equal(t, 0, conflicts[0].LineEnd)
	assert.Equal(t, 4, conflicts[1].LineStart)
	assert.Equal(t, 4, conflicts[1].LineEnd)
	assert.NotEqual(t, conflicts[0].ID, conflicts[1].ID)
	assert.Len(t, r.GetAuditLog(""), 2)
}

func TestDetectConflicts_UnionOfRegions(t *testing.T) {
	r, _ := newTestResolver(t)

	base := "l0\nl1\nl2\nl3\nl4\nl5\nl6"
	conflicts, err := r.DetectConflicts(context.Background(), base,
		change("agent-1", "l0\nA1\nA2\nA3\nl4\nl5\nl6"),
		change("agent-2", "l0\nl1\nB2\nB3\nB4\nB5\nl6"),
		"file.txt")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, 1, c.LineStart)
	assert.Equal(t, 5, c.LineEnd)
	assert.Equal(t, "l1\nl2\nl3\nl4\nl5", c.OriginalContent)
	assert.Equal(t, "A1\nA2\nA3", c.ChangeA.Content)
	assert.Equal(t, "B2\nB3\nB4\nB5", c.ChangeB.Content)
	// Overlap is lines 2..3
	assert.Equal(t, models.SeverityLow, c.Severity)
}

func TestDetectConflicts_EmptyInputs(t *testing.T) {
	r, _ := newTestResolver(t)

	conflicts, err := r.DetectConflicts(context.Background(), "", change("a", ""), change("b", ""), "")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectConflicts_IgnoreWhitespace(t *testing.T) {
	clock := newFakeClock()
	opts := testOptions(clock)
	opts.IgnoreWhitespace = true
	r, err := New(context.Background(), opts, nil)
	require.NoError(t, err)

	conflicts, err := r.DetectConflicts(context.Background(), fiveLines,
		change("agent-1", "line1\n  line2\nline3\nline4\nline5"),
		change("agent-2", "line1\nline2-B\nline3\nline4\nline5"),
		"file.txt")
	require.NoError(t, err)
	assert.Empty(t, conflicts, "whitespace-only edit is not a change")
}

func TestClassifySeverity_Boundaries(t *testing.T) {
	tests := []struct {
		overlap  int
		expected models.Severity
	}{
		{1, models.SeverityLow},
		{5, models.SeverityLow},
		{6, models.SeverityMedium},
		{10, models.SeverityMedium},
		{11, models.SeverityHigh},
		{20, models.SeverityHigh},
		{21, models.SeverityCritical},
		{40, models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("overlap_%d", tt.overlap), func(t *testing.T) {
			a := models.Region{Start: 3, End: 3 + tt.overlap - 1}
			b := models.Region{Start: 3, End: 3 + tt.overlap + 4}
			assert.Equal(t, tt.overlap, overlapSize(a, b))
			assert.Equal(t, tt.expected, classifySeverity(a, b))
		})
	}
}

func TestClassifySeverity_Monotonic(t *testing.T) {
	prev := -1
	for n := 1; n <= 30; n++ {
		r := models.Region{Start: 0, End: n - 1}
		rank := classifySeverity(r, r).Rank()
		assert.GreaterOrEqual(t, rank, prev)
		prev = rank
	}
}

func TestDetectConflicts_SeverityFromOverlap(t *testing.T) {
	tests := []struct {
		lines    int
		expected models.Severity
	}{
		{5, models.SeverityLow},
		{6, models.SeverityMedium},
		{11, models.SeverityHigh},
		{21, models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			r, _ := newTestResolver(t)

			base := make([]string, 30)
			a := make([]string, 30)
			b := make([]string, 30)
			for i := range base {
				base[i] = fmt.Sprintf("line%d", i)
				a[i], b[i] = base[i], base[i]
				if i < tt.lines {
					a[i] = base[i] + "-A"
					b[i] = base[i] + "-B"
				}
			}

			conflicts, err := r.DetectConflicts(context.Background(), strings.Join(base, "\n"),
				change("agent-1", strings.Join(a, "\n")),
				change("agent-2", strings.Join(b, "\n")),
				"big.txt")
			require.NoError(t, err)
			require.Len(t, conflicts, 1)
			assert.Equal(t, tt.expected, conflicts[0].Severity)
			assert.Equal(t, tt.lines-1, conflicts[0].LineEnd)
		})
	}
}
