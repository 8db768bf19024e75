package core

import (
	"context"
	"maps"
	"sort"
	"time"

	"github.com/kilupskalvis/agentmerge/internal/models"
)

// GetConflict returns a copy of the conflict with the given id
func (r *Resolver) GetConflict(id string) (*models.Conflict, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conflicts[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// GetPendingConflicts returns conflicts that are pending or need a manual
// resolution, oldest first
func (r *Resolver) GetPendingConflicts() []*models.Conflict {
	return r.listConflicts(func(c *models.Conflict) bool {
		return c.Status.IsOpen()
	})
}

// ListConflicts returns every registered conflict, oldest first. A non-empty
// filePath restricts the result to that file.
func (r *Resolver) ListConflicts(filePath string) []*models.Conflict {
	return r.listConflicts(func(c *models.Conflict) bool {
		return filePath == "" || c.FilePath == filePath
	})
}

func (r *Resolver) listConflicts(keep func(*models.Conflict) bool) []*models.Conflict {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Conflict, 0)
	for _, c := range r.conflicts {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.Before(out[j].DetectedAt)
		}
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		if out[i].LineStart != out[j].LineStart {
			return out[i].LineStart < out[j].LineStart
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetAuditLog returns audit entries in insertion order. An empty conflictID
// returns the full log.
func (r *Resolver) GetAuditLog(conflictID string) []*models.AuditEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.AuditEntry, 0)
	for _, e := range r.audit {
		if conflictID != "" && e.ConflictID != conflictID {
			continue
		}
		entry := *e
		entry.Details = maps.Clone(e.Details)
		out = append(out, &entry)
	}
	return out
}

// CleanupOldConflicts removes conflicts resolved more than maxAge ago and
// returns how many were removed. Unresolved conflicts are never removed.
// A non-positive maxAge uses DefaultCleanupMaxAge.
func (r *Resolver) CleanupOldConflicts(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultCleanupMaxAge
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.opts.Now().Add(-maxAge)
	batch := &models.Batch{}
	for id, c := range r.conflicts {
		if c.ResolvedAt != nil && c.ResolvedAt.Before(cutoff) {
			batch.DeletedConflicts = append(batch.DeletedConflicts, id)
		}
	}
	if err := r.commit(ctx, batch); err != nil {
		return 0, err
	}

	if n := len(batch.DeletedConflicts); n > 0 {
		r.opts.Logger.Info("cleaned up resolved conflicts", "removed", n, "max_age", maxAge.String())
	}
	return len(batch.DeletedConflicts), nil
}
