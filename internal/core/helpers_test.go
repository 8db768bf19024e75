package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kilupskalvis/agentmerge/internal/models"
	"github.com/kilupskalvis/agentmerge/internal/store"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for expiry and retention tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// sequentialIDs returns an ID source producing "id-0001", "id-0002", ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%04d", n)
	}
}

func testOptions(clock *fakeClock) Options {
	opts := DefaultOptions()
	opts.Now = clock.Now
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

// newTestResolver creates an in-memory resolver driven by a fake clock.
func newTestResolver(t *testing.T) (*Resolver, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	r, err := New(context.Background(), testOptions(clock), nil)
	require.NoError(t, err)
	return r, clock
}

// newStoreResolver creates a resolver backed by a store in a temp directory.
func newStoreResolver(t *testing.T, backend string) (*Resolver, store.Store, string) {
	t.Helper()
	path := t.TempDir() + "/state.db"
	st, err := store.Open(backend, path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	r, err := New(context.Background(), testOptions(newFakeClock()), st)
	require.NoError(t, err)
	return r, st, path
}

func change(agent, content string) models.ChangeInfo {
	return models.ChangeInfo{AgentID: agent, Content: content}
}

// registerConflict inserts a hand-built conflict into the registry.
func registerConflict(t *testing.T, r *Resolver, c *models.Conflict) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NoError(t, r.commit(context.Background(), &models.Batch{Conflicts: []*models.Conflict{c}}))
}

const fiveLines = "line1\nline2\nline3\nline4\nline5"

// detectLine2Conflict detects the canonical single-line conflict on line 2.
func detectLine2Conflict(t *testing.T, r *Resolver) *models.Conflict {
	t.Helper()
	conflicts, err := r.DetectConflicts(context.Background(), fiveLines,
		change("agent-1", "line1\nline2-A\nline3\nline4\nline5"),
		change("agent-2", "line1\nline2-B\nline3\nline4\nline5"),
		"src/main.go")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	return conflicts[0]
}
