package core

import (
	"context"
	"errors"
	"testing"

	"github.com/kilupskalvis/agentmerge/internal/models"
	"github.com/kilupskalvis/agentmerge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_PersistsAcrossRestart(t *testing.T) {
	for _, backend := range []string{store.BackendBbolt, store.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			r, st, path := newStoreResolver(t, backend)

			resolved := detectLine2Conflict(t, r)
			pending := detectLine2Conflict(t, r)
			_, err := r.AcceptChangeA(ctx, resolved.ID, "operator")
			require.NoError(t, err)
			_, err = r.AttemptAutoResolve(ctx, pending.ID)
			require.NoError(t, err)

			wantAudit := r.GetAuditLog("")
			require.NoError(t, st.Close())

			st2, err := store.Open(backend, path)
			require.NoError(t, err)
			defer st2.Close()

			r2, err := New(ctx, testOptions(newFakeClock()), st2)
			require.NoError(t, err)

			got, ok := r2.GetConflict(resolved.ID)
			require.True(t, ok)
			assert.Equal(t, models.StatusResolved, got.Status)
			assert.Equal(t, "line2-A", got.Resolution.ResolvedContent)

			got, ok = r2.GetConflict(pending.ID)
			require.True(t, ok)
			assert.Equal(t, models.StatusManualRequired, got.Status)

			gotAudit := r2.GetAuditLog("")
			require.Len(t, gotAudit, len(wantAudit))
			for i := range wantAudit {
				assert.Equal(t, wantAudit[i].ID, gotAudit[i].ID)
				assert.Equal(t, wantAudit[i].Action, gotAudit[i].Action)
			}

			content, err := r2.Rollback(ctx, resolved.ID)
			require.NoError(t, err)
			assert.Equal(t, "line2", content)
		})
	}
}

// failingStore rejects every write.
type failingStore struct{}

func (failingStore) Apply(context.Context, *models.Batch) error { return errors.New("disk full") }
func (failingStore) Load(context.Context) (*models.Snapshot, error) {
	return &models.Snapshot{}, nil
}
func (failingStore) Close() error { return nil }

func TestResolver_StoreFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx, testOptions(newFakeClock()), failingStore{})
	require.NoError(t, err)

	_, err = r.DetectConflicts(ctx, fiveLines,
		change("agent-1", "line1\nA\nline3\nline4\nline5"),
		change("agent-2", "line1\nB\nline3\nline4\nline5"),
		"f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, r.ListConflicts(""))
	assert.Empty(t, r.GetAuditLog(""))
}
