package core

import (
	"context"
	"fmt"

	"github.com/kilupskalvis/agentmerge/internal/models"
)

// Rollback undoes the latest resolution of a conflict and returns the
// pre-resolution region content for the caller to re-apply. Rollback states are
// single-use. An expired state is deleted and ErrRollbackExpired is returned.
func (r *Resolver) Rollback(ctx context.Context, conflictID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs, ok := r.rollbacks[conflictID]
	if !ok {
		return "", ErrNoRollbackState
	}

	now := r.opts.Now()
	if rs.Expired(now) {
		if err := r.commit(ctx, &models.Batch{DeletedRollbacks: []string{conflictID}}); err != nil {
			return "", err
		}
		r.opts.Logger.Info("rollback state expired", "conflict_id", conflictID, "expired_at", rs.ExpiresAt)
		return "", ErrRollbackExpired
	}

	details := map[string]any{
		"original_file_path": rs.OriginalFilePath,
		"original_content":   rs.OriginalContent,
	}
	batch := &models.Batch{DeletedRollbacks: []string{conflictID}}

	// The conflict record may already be gone after a retention cleanup.
	if c, ok := r.conflicts[conflictID]; ok {
		next := c.Clone()
		next.Status = models.StatusRolledBack
		batch.Conflicts = []*models.Conflict{next}
		details["previous_status"] = string(c.Status)
	}
	batch.Audit = []*models.AuditEntry{r.newAuditEntry(conflictID, models.AuditRolledBack, SystemActor, details)}

	if err := r.commit(ctx, batch); err != nil {
		return "", fmt.Errorf("rollback %s: %w", conflictID, err)
	}

	r.opts.Logger.Info("conflict rolled back", "conflict_id", conflictID, "file_path", rs.OriginalFilePath)
	return rs.OriginalContent, nil
}

// GetRollbackState returns a copy of the live rollback state for a conflict.
func (r *Resolver) GetRollbackState(conflictID string) (*models.RollbackState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, ok := r.rollbacks[conflictID]
	if !ok {
		return nil, false
	}
	out := *rs
	return &out, true
}

// PurgeExpiredRollbacks deletes every rollback state whose window has passed
// and returns how many were removed.
func (r *Resolver) PurgeExpiredRollbacks(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	batch := &models.Batch{}
	for id, rs := range r.rollbacks {
		if rs.Expired(now) {
			batch.DeletedRollbacks = append(batch.DeletedRollbacks, id)
		}
	}
	if err := r.commit(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch.DeletedRollbacks), nil
}
