// Package core implements the conflict engine: region diffing of two
// concurrent edits against a common base, conflict detection and severity,
// automatic and manual resolution, time-bounded rollback, and the audit log.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/agentmerge/internal/models"
	"github.com/kilupskalvis/agentmerge/internal/store"
)

// Sentinel errors for expected conditions.
var (
	ErrConflictNotFound = errors.New("conflict not found")
	ErrNoRollbackState  = errors.New("No rollback state available")
	ErrRollbackExpired  = errors.New("Rollback state has expired")
	ErrAmbiguousID      = errors.New("ambiguous conflict id")
	ErrConflictClosed   = errors.New("conflict was rolled back and can no longer be resolved")
)

const (
	// AutoResolverActor is recorded as the resolver of automatic merges.
	AutoResolverActor = "auto-resolver"
	// SystemActor is recorded for transitions not driven by a named caller.
	SystemActor = "system"

	DefaultRollbackRetention = 24 * time.Hour
	DefaultCleanupMaxAge     = 7 * 24 * time.Hour
)

// Options configures detection and resolution behavior
type Options struct {
	IgnoreWhitespace  bool          // Compare lines ignoring whitespace differences
	AutoResolveSimple bool          // Allow automatic merges of low-severity conflicts
	RollbackRetention time.Duration // How long a resolution can be rolled back

	Now    func() time.Time // Clock, defaults to time.Now
	NewID  func() string    // ID source, defaults to random UUIDs
	Logger *slog.Logger
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		AutoResolveSimple: true,
		RollbackRetention: DefaultRollbackRetention,
	}
}

// Resolver owns all conflict, rollback, and audit state.
// It is safe for concurrent use; mutating operations are serialized.
type Resolver struct {
	mu        sync.RWMutex
	opts      Options
	store     store.Store
	conflicts map[string]*models.Conflict
	rollbacks map[string]*models.RollbackState
	audit     []*models.AuditEntry
}

// New creates a resolver. When st is non-nil the persisted state is loaded
// and every transition is written through to it.
func New(ctx context.Context, opts Options, st store.Store) (*Resolver, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RollbackRetention <= 0 {
		opts.RollbackRetention = DefaultRollbackRetention
	}

	r := &Resolver{
		opts:      opts,
		store:     st,
		conflicts: make(map[string]*models.Conflict),
		rollbacks: make(map[string]*models.RollbackState),
	}

	if st != nil {
		snap, err := st.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load resolver state: %w", err)
		}
		for _, c := range snap.Conflicts {
			r.conflicts[c.ID] = c
		}
		for _, rs := range snap.Rollbacks {
			r.rollbacks[rs.ConflictID] = rs
		}
		r.audit = snap.Audit
		opts.Logger.Debug("loaded resolver state",
			"conflicts", len(snap.Conflicts),
			"rollbacks", len(snap.Rollbacks),
			"audit_entries", len(snap.Audit),
		)
	}

	return r, nil
}

// Options returns the effective configuration, with defaults filled in
func (r *Resolver) Options() Options {
	return r.opts
}

// ResolveID expands a full or short (prefix) conflict ID to the full ID.
func (r *Resolver) ResolveID(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.conflicts[id]; ok {
		return id, nil
	}
	if _, ok := r.rollbacks[id]; ok {
		return id, nil
	}
	if id == "" {
		return "", ErrConflictNotFound
	}

	var match string
	for full := range r.conflicts {
		if strings.HasPrefix(full, id) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", ErrAmbiguousID, id)
			}
			match = full
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrConflictNotFound, id)
	}
	return match, nil
}

// commit persists the batch and then applies it to the in-memory registry.
// Callers must hold the write lock.
func (r *Resolver) commit(ctx context.Context, b *models.Batch) error {
	if b.Empty() {
		return nil
	}
	if r.store != nil {
		if err := r.store.Apply(ctx, b); err != nil {
			return fmt.Errorf("failed to persist transition: %w", err)
		}
	}

	for _, c := range b.Conflicts {
		r.conflicts[c.ID] = c
	}
	for _, id := range b.DeletedConflicts {
		delete(r.conflicts, id)
	}
	for _, rs := range b.Rollbacks {
		r.rollbacks[rs.ConflictID] = rs
	}
	for _, id := range b.DeletedRollbacks {
		delete(r.rollbacks, id)
	}
	r.audit = append(r.audit, b.Audit...)
	return nil
}

func (r *Resolver) newAuditEntry(conflictID string, action models.AuditAction, actor string, details map[string]any) *models.AuditEntry {
	return &models.AuditEntry{
		ID:         r.opts.NewID(),
		ConflictID: conflictID,
		Action:     action,
		Timestamp:  r.opts.Now(),
		Actor:      actor,
		Details:    details,
	}
}

func (r *Resolver) newRollbackState(c *models.Conflict, now time.Time) *models.RollbackState {
	return &models.RollbackState{
		ConflictID:       c.ID,
		OriginalFilePath: c.FilePath,
		OriginalContent:  c.OriginalContent,
		CreatedAt:        now,
		ExpiresAt:        now.Add(r.opts.RollbackRetention),
	}
}
