package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/worktrack/workitem"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *workitem.SQLiteStore {
	t.Helper()
	store, err := workitem.NewSQLiteStore(filepath.Join(t.TempDir(), "report.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func add(t *testing.T, s workitem.Repo, title string, status workitem.Status, mutate ...func(*workitem.WorkItem)) *workitem.WorkItem {
	t.Helper()
	w := &workitem.WorkItem{Title: title, Status: status, Priority: workitem.PriorityMedium,
		Category: workitem.CategoryTask, CreatedAt: now.Add(-72 * time.Hour), UpdatedAt: now.Add(-72 * time.Hour)}
	for _, m := range mutate {
		m(w)
	}
	require.NoError(t, s.CreateItem(context.Background(), w))
	return w
}

func due(d time.Duration) func(*workitem.WorkItem) {
	return func(w *workitem.WorkItem) {
		t := now.Add(d)
		w.DueDate = &t
	}
}

func inSprint(id int64) func(*workitem.WorkItem) {
	return func(w *workitem.WorkItem) { w.SprintID = &id }
}

func sprint(t *testing.T, s workitem.Repo, name string, status workitem.SprintStatus) *workitem.Sprint {
	t.Helper()
	sp := &workitem.Sprint{Name: name, Status: status, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateSprint(context.Background(), sp))
	return sp
}

func TestCountsByStatus_ZeroFilled(t *testing.T) {
	store := newStore(t)
	add(t, store, "a", workitem.StatusOpen)
	add(t, store, "b", workitem.StatusOpen)
	add(t, store, "c", workitem.StatusClosed)

	counts, err := New(store).CountsByStatus(context.Background(), workitem.Filter{})
	require.NoError(t, err)
	assert.Len(t, counts, len(workitem.Statuses()))
	assert.Equal(t, 2, counts[workitem.StatusOpen])
	assert.Equal(t, 1, counts[workitem.StatusClosed])
	assert.Equal(t, 0, counts[workitem.StatusBlocked])
}

func TestCountsByPriorityAndCategory(t *testing.T) {
	store := newStore(t)
	add(t, store, "a", workitem.StatusOpen, func(w *workitem.WorkItem) {
		w.Priority = workitem.PriorityCritical
		w.Category = workitem.CategoryBug
	})
	add(t, store, "b", workitem.StatusOpen)

	rep := New(store)
	byPriority, err := rep.CountsByPriority(context.Background(), workitem.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, byPriority[workitem.PriorityCritical])
	assert.Equal(t, 0, byPriority[workitem.PriorityLow])

	bug := workitem.CategoryBug
	byCategory, err := rep.CountsByCategory(context.Background(), workitem.Filter{Category: &bug})
	require.NoError(t, err)
	assert.Equal(t, 1, byCategory[workitem.CategoryBug])
	assert.Equal(t, 0, byCategory[workitem.CategoryTask])
}

func TestOverdueItems(t *testing.T) {
	store := newStore(t)
	add(t, store, "late", workitem.StatusInProgress, due(-2*time.Hour))
	add(t, store, "later", workitem.StatusOpen, due(-48*time.Hour))
	add(t, store, "late but resolved", workitem.StatusResolved, due(-5*time.Hour))
	add(t, store, "late but closed", workitem.StatusClosed, due(-5*time.Hour))
	add(t, store, "not yet due", workitem.StatusOpen, due(time.Hour))
	add(t, store, "no due date", workitem.StatusOpen)

	items, err := New(store).OverdueItems(context.Background(), now)
	require.NoError(t, err)
	var titles []string
	for _, w := range items {
		titles = append(titles, w.Title)
	}
	assert.Equal(t, []string{"later", "late"}, titles)
}

func TestSprintProgress(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	empty := sprint(t, store, "empty", workitem.SprintActive)
	busy := sprint(t, store, "busy", workitem.SprintActive)

	add(t, store, "1", workitem.StatusResolved, inSprint(busy.ID))
	add(t, store, "2", workitem.StatusOpen, inSprint(busy.ID))
	add(t, store, "3", workitem.StatusInReview, inSprint(busy.ID))
	add(t, store, "4", workitem.StatusBlocked, inSprint(busy.ID))
	add(t, store, "elsewhere", workitem.StatusClosed)

	rep := New(store)
	p, err := rep.SprintProgress(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, Progress{SprintID: empty.ID, Name: "empty"}, p)

	p, err = rep.SprintProgress(ctx, busy.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 1, p.Completed)
	assert.InDelta(t, 25.0, p.Percent, 1e-9)

	_, err = rep.SprintProgress(ctx, 999)
	assert.ErrorIs(t, err, workitem.ErrNotFound)
}

func TestSummary(t *testing.T) {
	store := newStore(t)
	sp := sprint(t, store, "current", workitem.SprintActive)
	sprint(t, store, "next", workitem.SprintPlanned)
	add(t, store, "a", workitem.StatusOpen, inSprint(sp.ID), due(-time.Hour))
	add(t, store, "b", workitem.StatusClosed, inSprint(sp.ID))

	sum, err := New(store).Summary(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Overdue)
	assert.Equal(t, 1, sum.ByStatus[workitem.StatusClosed])
	require.Len(t, sum.Sprints, 1)
	assert.InDelta(t, 50.0, sum.Sprints[0].Percent, 1e-9)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(0, 0))
	assert.Equal(t, 25.0, Percent(1, 4))
	assert.Equal(t, 100.0, Percent(3, 3))
}
