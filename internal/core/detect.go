package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/kilupskalvis/agentmerge/internal/models"
)

// DetectConflicts diffs both edits against the shared base and registers one
// pending conflict per overlapping region pair. Edits whose regions never
// overlap produce no conflicts. The Content of changeA and changeB is the whole
// edited file.
func (r *Resolver) DetectConflicts(ctx context.Context, original string, changeA, changeB models.ChangeInfo, filePath string) ([]*models.Conflict, error) {
	origLines := splitLines(original)
	regionsA := r.findChangedRegions(origLines, splitLines(changeA.Content))
	regionsB := r.findChangedRegions(origLines, splitLines(changeB.Content))

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	batch := &models.Batch{}

	for _, ra := range regionsA {
		for _, rb := range regionsB {
			if !ra.Overlaps(rb) {
				continue
			}

			lineStart := min(ra.Start, rb.Start)
			lineEnd := max(ra.End, rb.End)
			severity := classifySeverity(ra, rb)

			c := &models.Conflict{
				ID:              r.opts.NewID(),
				FilePath:        filePath,
				LineStart:       lineStart,
				LineEnd:         lineEnd,
				OriginalContent: joinRange(origLines, lineStart, lineEnd),
				ChangeA:         regionChange(changeA, ra, now),
				ChangeB:         regionChange(changeB, rb, now),
				Severity:        severity,
				Status:          models.StatusPending,
				DetectedAt:      now,
			}

			batch.Conflicts = append(batch.Conflicts, c)
			batch.Audit = append(batch.Audit, r.newAuditEntry(c.ID, models.AuditDetected, SystemActor, map[string]any{
				"file_path":  filePath,
				"line_start": lineStart,
				"line_end":   lineEnd,
				"severity":   string(severity),
				"agent_a":    changeA.AgentID,
				"agent_b":    changeB.AgentID,
				"region_a":   []int{ra.Start, ra.End},
				"region_b":   []int{rb.Start, rb.End},
			}))
		}
	}

	if err := r.commit(ctx, batch); err != nil {
		return nil, err
	}

	out := make([]*models.Conflict, 0, len(batch.Conflicts))
	for _, c := range batch.Conflicts {
		r.opts.Logger.Info("conflict detected",
			slog.String("conflict_id", c.ID),
			slog.String("file_path", c.FilePath),
			slog.Int("line_start", c.LineStart),
			slog.Int("line_end", c.LineEnd),
			slog.String("severity", string(c.Severity)),
		)
		out = append(out, c.Clone())
	}
	return out, nil
}

// regionChange narrows a whole-file edit to the content of one region.
// Edits submitted without a timestamp are stamped with the detection time.
func regionChange(change models.ChangeInfo, region models.Region, now time.Time) models.ChangeInfo {
	change.Content = region.Content
	if change.Timestamp.IsZero() {
		change.Timestamp = now
	}
	return change
}

// overlapSize returns the number of lines shared by two overlapping regions
func overlapSize(a, b models.Region) int {
	return min(a.End, b.End) - max(a.Start, b.Start) + 1
}

// classifySeverity grades a conflict by how many lines its regions share
func classifySeverity(a, b models.Region) models.Severity {
	overlap := overlapSize(a, b)
	switch {
	case overlap > 20:
		return models.SeverityCritical
	case overlap > 10:
		return models.SeverityHigh
	case overlap > 5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
