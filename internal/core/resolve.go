package core

import (
	"context"
	"fmt"

	"github.com/kilupskalvis/agentmerge/internal/models"
)

// AttemptAutoResolve tries to merge a conflict without human input.
// Only low-severity conflicts are attempted, and only when AutoResolveSimple is
// enabled; every other conflict is marked manual_required and an unsuccessful
// result is returned. An unknown id yields ErrConflictNotFound.
func (r *Resolver) AttemptAutoResolve(ctx context.Context, conflictID string) (*models.AutoResolveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conflicts[conflictID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConflictNotFound, conflictID)
	}

	if !c.Status.IsOpen() {
		return &models.AutoResolveResult{
			Status:   c.Status,
			Warnings: []string{fmt.Sprintf("conflict is already %s", c.Status)},
		}, nil
	}

	if !r.opts.AutoResolveSimple {
		return r.requireManual(ctx, c, "automatic resolution is disabled")
	}
	if c.Severity != models.SeverityLow {
		return r.requireManual(ctx, c, fmt.Sprintf("severity %s requires manual resolution", c.Severity))
	}

	merged, ok := mergeNonOverlapping(c)
	if !ok {
		return r.requireManual(ctx, c, "changes cannot be merged automatically")
	}

	now := r.opts.Now()
	next := c.Clone()
	next.Status = models.StatusAutoResolved
	next.ResolvedAt = &now
	next.Resolution = &models.Resolution{
		Type:            models.ResolutionMerge,
		ResolvedContent: merged,
		ResolvedBy:      AutoResolverActor,
		Notes:           "Automatically merged non-overlapping changes",
	}

	batch := &models.Batch{
		Conflicts: []*models.Conflict{next},
		Rollbacks: []*models.RollbackState{r.newRollbackState(c, now)},
		Audit: []*models.AuditEntry{r.newAuditEntry(c.ID, models.AuditAutoResolved, AutoResolverActor, map[string]any{
			"resolution_type":  string(models.ResolutionMerge),
			"resolved_content": merged,
			"severity":         string(c.Severity),
		})},
	}
	if err := r.commit(ctx, batch); err != nil {
		return nil, err
	}

	r.opts.Logger.Info("conflict auto-resolved", "conflict_id", c.ID, "file_path", c.FilePath)

	return &models.AutoResolveResult{
		Success:         true,
		ResolvedContent: merged,
		Status:          next.Status,
	}, nil
}

// requireManual moves an open conflict to manual_required.
// Callers must hold the write lock.
func (r *Resolver) requireManual(ctx context.Context, c *models.Conflict, reason string) (*models.AutoResolveResult, error) {
	if c.Status != models.StatusManualRequired {
		next := c.Clone()
		next.Status = models.StatusManualRequired
		if err := r.commit(ctx, &models.Batch{Conflicts: []*models.Conflict{next}}); err != nil {
			return nil, err
		}
		r.opts.Logger.Info("conflict requires manual resolution",
			"conflict_id", c.ID,
			"severity", string(c.Severity),
			"reason", reason,
		)
	}

	return &models.AutoResolveResult{
		Status:   models.StatusManualRequired,
		Warnings: []string{reason},
	}, nil
}

// mergeNonOverlapping merges only when one side is a pure addition: the other
// side keeps the original line count while this side has more lines. Any other
// shape is left for a human.
func mergeNonOverlapping(c *models.Conflict) (string, bool) {
	origCount := len(splitLines(c.OriginalContent))
	countA := len(splitLines(c.ChangeA.Content))
	countB := len(splitLines(c.ChangeB.Content))

	switch {
	case countA == origCount && countB > origCount:
		return c.ChangeB.Content, true
	case countB == origCount && countA > origCount:
		return c.ChangeA.Content, true
	default:
		return "", false
	}
}

// ManualResolve records a caller-supplied resolution. The content is not
// validated against the conflict region. A rollback state capturing the
// pre-resolution content is saved with the transition.
func (r *Resolver) ManualResolve(ctx context.Context, conflictID string, resolution models.Resolution) (*models.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.manualResolve(ctx, conflictID, resolution)
}

// AcceptChangeA resolves the conflict with edit A's region content.
func (r *Resolver) AcceptChangeA(ctx context.Context, conflictID, resolvedBy string) (*models.Conflict, error) {
	return r.acceptChange(ctx, conflictID, resolvedBy, models.ResolutionAcceptA)
}

// AcceptChangeB resolves the conflict with edit B's region content.
func (r *Resolver) AcceptChangeB(ctx context.Context, conflictID, resolvedBy string) (*models.Conflict, error) {
	return r.acceptChange(ctx, conflictID, resolvedBy, models.ResolutionAcceptB)
}

func (r *Resolver) acceptChange(ctx context.Context, conflictID, resolvedBy string, typ models.ResolutionType) (*models.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conflicts[conflictID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConflictNotFound, conflictID)
	}

	change := c.ChangeA
	if typ == models.ResolutionAcceptB {
		change = c.ChangeB
	}

	return r.manualResolve(ctx, conflictID, models.Resolution{
		Type:            typ,
		ResolvedContent: change.Content,
		ResolvedBy:      resolvedBy,
		Notes:           fmt.Sprintf("Accepted changes from %s", change.AgentID),
	})
}

// manualResolve applies a resolution. Resolved and auto-resolved conflicts may
// be overridden; rolled_back is terminal. Callers must hold the write lock.
func (r *Resolver) manualResolve(ctx context.Context, conflictID string, resolution models.Resolution) (*models.Conflict, error) {
	c, ok := r.conflicts[conflictID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConflictNotFound, conflictID)
	}
	if c.Status == models.StatusRolledBack {
		return nil, fmt.Errorf("%w: %s", ErrConflictClosed, conflictID)
	}

	now := r.opts.Now()
	res := resolution

	next := c.Clone()
	next.Status = models.StatusResolved
	next.ResolvedAt = &now
	next.Resolution = &res

	details := map[string]any{
		"resolution_type":  string(res.Type),
		"resolved_content": res.ResolvedContent,
		"previous_status":  string(c.Status),
	}
	if res.Notes != "" {
		details["notes"] = res.Notes
	}

	batch := &models.Batch{
		Conflicts: []*models.Conflict{next},
		Rollbacks: []*models.RollbackState{r.newRollbackState(c, now)},
		Audit:     []*models.AuditEntry{r.newAuditEntry(c.ID, models.AuditManualResolved, res.ResolvedBy, details)},
	}
	if err := r.commit(ctx, batch); err != nil {
		return nil, err
	}

	r.opts.Logger.Info("conflict resolved",
		"conflict_id", c.ID,
		"resolution_type", string(res.Type),
		"resolved_by", res.ResolvedBy,
	)

	return next.Clone(), nil
}
