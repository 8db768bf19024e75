package core

import (
	"context"
	"testing"
	"time"

	"github.com/kilupskalvis/agentmerge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPendingConflicts(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	pending := detectLine2Conflict(t, r)
	manual := detectLine2Conflict(t, r)
	resolved := detectLine2Conflict(t, r)

	_, err := r.AttemptAutoResolve(ctx, manual.ID)
	require.NoError(t, err)
	_, err = r.AcceptChangeA(ctx, resolved.ID, "operator")
	require.NoError(t, err)

	ids := make([]string, 0)
	for _, c := range r.GetPendingConflicts() {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{pending.ID, manual.ID}, ids)
	assert.Len(t, r.ListConflicts(""), 3)
}

func TestQueries_Idempotent(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		detectLine2Conflict(t, r)
	}
	_, err := r.AcceptChangeB(ctx, r.ListConflicts("")[0].ID, "operator")
	require.NoError(t, err)

	assert.Equal(t, r.GetPendingConflicts(), r.GetPendingConflicts())
	assert.Equal(t, r.GetAuditLog(""), r.GetAuditLog(""))
	assert.Equal(t, r.ListConflicts(""), r.ListConflicts(""))

	id := r.ListConflicts("")[1].ID
	first, _ := r.GetConflict(id)
	second, _ := r.GetConflict(id)
	assert.Equal(t, first, second)
}

func TestGetConflict_ReturnsCopy(t *testing.T) {
	r, _ := newTestResolver(t)
	c := detectLine2Conflict(t, r)

	got, ok := r.GetConflict(c.ID)
	require.True(t, ok)
	got.Status = models.StatusResolved
	got.ChangeA.Content = "tampered"

	stored, _ := r.GetConflict(c.ID)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, "line2-A", stored.ChangeA.Content)

	_, ok = r.GetConflict("missing")
	assert.False(t, ok)
}

func TestGetAuditLog_FilteredAndOrdered(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	c1 := detectLine2Conflict(t, r)
	c2 := detectLine2Conflict(t, r)
	_, err := r.AcceptChangeA(ctx, c1.ID, "alice")
	require.NoError(t, err)
	_, err = r.Rollback(ctx, c1.ID)
	require.NoError(t, err)

	all := r.GetAuditLog("")
	require.Len(t, all, 4)
	assert.Equal(t, c1.ID, all[0].ConflictID)
	assert.Equal(t, c2.ID, all[1].ConflictID)

	var actions []models.AuditAction
	for _, e := range r.GetAuditLog(c1.ID) {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []models.AuditAction{models.AuditDetected, models.AuditManualResolved, models.AuditRolledBack}, actions)

	assert.Len(t, r.GetAuditLog(c2.ID), 1)
	assert.Empty(t, r.GetAuditLog("missing"))
}

func TestListConflicts_ByFile(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	detectLine2Conflict(t, r)
	_, err := r.DetectConflicts(ctx, "a", change("agent-1", "b"), change("agent-2", "c"), "other.txt")
	require.NoError(t, err)

	assert.Len(t, r.ListConflicts("src/main.go"), 1)
	assert.Len(t, r.ListConflicts("other.txt"), 1)
	assert.Len(t, r.ListConflicts(""), 2)
	assert.Empty(t, r.ListConflicts("none.txt"))
}

func TestCleanupOldConflicts(t *testing.T) {
	r, clock := newTestResolver(t)
	ctx := context.Background()

	old := detectLine2Conflict(t, r)
	neverResolved := detectLine2Conflict(t, r)
	_, err := r.AcceptChangeA(ctx, old.ID, "operator")
	require.NoError(t, err)

	clock.Advance(8 * 24 * time.Hour)
	recent := detectLine2Conflict(t, r)
	_, err = r.AcceptChangeB(ctx, recent.ID, "operator")
	require.NoError(t, err)

	removed, err := r.CleanupOldConflicts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok := r.GetConflict(old.ID)
	assert.False(t, ok)
	_, ok = r.GetConflict(neverResolved.ID)
	assert.True(t, ok, "unresolved conflicts are never cleaned up")
	_, ok = r.GetConflict(recent.ID)
	assert.True(t, ok)

	// The audit log survives retention cleanup
	assert.NotEmpty(t, r.GetAuditLog(old.ID))
}

func TestResolveID(t *testing.T) {
	opts := testOptions(newFakeClock())
	opts.NewID = sequentialIDs()
	r, err := New(context.Background(), opts, nil)
	require.NoError(t, err)

	c := detectLine2Conflict(t, r)
	assert.Equal(t, "id-0001", c.ID)

	full, err := r.ResolveID("id-0001")
	require.NoError(t, err)
	assert.Equal(t, "id-0001", full)

	// id-0002 is the audit entry, so the conflict prefix is unique
	full, err = r.ResolveID("id-000")
	require.NoError(t, err)
	assert.Equal(t, "id-0001", full)

	detectLine2Conflict(t, r)
	_, err = r.ResolveID("id-000")
	assert.ErrorIs(t, err, ErrAmbiguousID)

	_, err = r.ResolveID("nope")
	assert.ErrorIs(t, err, ErrConflictNotFound)
}
