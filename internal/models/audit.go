package models

import "time"

// AuditAction is the state transition recorded by an audit entry
type AuditAction string

const (
	AuditDetected       AuditAction = "detected"
	AuditAutoResolved   AuditAction = "auto_resolved"
	AuditManualResolved AuditAction = "manual_resolved"
	AuditRolledBack     AuditAction = "rolled_back"
)

// AuditEntry is an append-only log row for one transition of one conflict
type AuditEntry struct {
	ID         string         `json:"id"`
	ConflictID string         `json:"conflict_id"`
	Action     AuditAction    `json:"action"`
	Timestamp  time.Time      `json:"timestamp"`
	Actor      string         `json:"actor"`
	Details    map[string]any `json:"details,omitempty"`
}

// RollbackState keeps a conflict's pre-resolution content for a bounded window
type RollbackState struct {
	ConflictID       string    `json:"conflict_id"`
	OriginalFilePath string    `json:"original_file_path"`
	OriginalContent  string    `json:"original_content"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Expired reports whether the rollback window has passed at now
func (rs *RollbackState) Expired(now time.Time) bool {
	return now.After(rs.ExpiresAt)
}

// Batch is the set of record changes produced by one resolver operation.
// Stores apply a batch atomically.
type Batch struct {
	Conflicts        []*Conflict
	DeletedConflicts []string
	Rollbacks        []*RollbackState
	DeletedRollbacks []string
	Audit            []*AuditEntry
}

// Empty reports whether the batch carries no changes
func (b *Batch) Empty() bool {
	return len(b.Conflicts) == 0 && len(b.DeletedConflicts) == 0 &&
		len(b.Rollbacks) == 0 && len(b.DeletedRollbacks) == 0 && len(b.Audit) == 0
}

// Snapshot is the full persisted state of a resolver
type Snapshot struct {
	Conflicts []*Conflict
	Rollbacks []*RollbackState
	Audit     []*AuditEntry // insertion order
}
