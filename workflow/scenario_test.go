package workflow_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/worktrack/ledger"
	"github.com/GoCodeAlone/worktrack/notify"
	"github.com/GoCodeAlone/worktrack/workflow"
	"github.com/GoCodeAlone/worktrack/workitem"
)

// Create, start, comment, resolve: two history entries, one comment and one
// event per mutation after the create.
func TestLoginFailsScenario(t *testing.T) {
	ctx := context.Background()
	store, err := workitem.NewSQLiteStore(filepath.Join(t.TempDir(), "scenario.db"), "")
	require.NoError(t, err)
	defer store.Close()

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := start
	now := func() time.Time { clock = clock.Add(time.Minute); return clock }

	d := notify.NewDispatcher(notify.Config{}, nil)
	events, unsubscribe := d.Subscribe(notify.WildcardTopic)
	defer unsubscribe()

	engine := workflow.NewEngine(store, d, workflow.WithClock(now))
	comments := ledger.New(store, d, ledger.WithClock(now))

	w, err := engine.CreateItem(ctx, workitem.NewItem{Title: "Login fails", Priority: workitem.PriorityHigh})
	require.NoError(t, err)

	_, err = engine.TransitionTo(ctx, w.ID, "InProgress", "", "alice")
	require.NoError(t, err)
	_, err = comments.AddComment(ctx, workitem.ItemOwner(w.ID), "investigating", "alice")
	require.NoError(t, err)
	final, err := engine.TransitionTo(ctx, w.ID, "Resolved", "fixed cookie domain", "alice")
	require.NoError(t, err)

	history, err := store.ListHistory(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Resolved", history[0].NewValue)
	assert.Equal(t, "In Progress", history[1].NewValue)

	list, err := comments.List(ctx, workitem.ItemOwner(w.ID))
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NotNil(t, final.ResolvedAt)
	assert.False(t, final.ResolvedAt.Before(final.CreatedAt))

	var kinds []notify.Kind
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}
	assert.Equal(t, []notify.Kind{notify.ItemUpdated, notify.CommentAdded, notify.ItemUpdated}, kinds)
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %s", ev.Kind)
	default:
	}
}
