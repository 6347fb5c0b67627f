package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/worktrack/workitem"
)

var at = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func baseItem() workitem.WorkItem {
	return workitem.WorkItem{
		ID:       7,
		Title:    "Login fails",
		Status:   workitem.StatusOpen,
		Priority: workitem.PriorityMedium,
		Category: workitem.CategoryBug,
	}
}

func TestDiff_IdenticalSnapshots(t *testing.T) {
	w := baseItem()
	assert.Empty(t, Diff(w, w.Clone(), Meta{At: at}))
}

func TestDiff_OnlyPriority(t *testing.T) {
	before := baseItem()
	after := before.Clone()
	after.Priority = workitem.PriorityHigh

	entries := Diff(before, after, Meta{By: "alice", At: at, Reason: "customer escalation"})
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, FieldPriority, e.Field)
	assert.Equal(t, "Medium", e.OldValue)
	assert.Equal(t, "High", e.NewValue)
	assert.Equal(t, int64(7), e.ItemID)
	assert.Equal(t, "alice", e.ChangedBy)
	assert.Equal(t, "customer escalation", e.Reason)
	assert.True(t, e.ChangedAt.Equal(at))
}

func TestDiff_FixedOrderAndDisplayValues(t *testing.T) {
	before := baseItem()
	after := before.Clone()
	due := time.Date(2025, 4, 1, 17, 30, 0, 0, time.UTC)
	sprint := int64(3)
	after.Title = "Login fails on Safari"
	after.Status = workitem.StatusInProgress
	after.Assignee = "bob"
	after.DueDate = &due
	after.SprintID = &sprint

	entries := Diff(before, after, Meta{At: at})
	var got []string
	for _, e := range entries {
		got = append(got, e.Field)
	}
	assert.Equal(t, []string{FieldTitle, FieldStatus, FieldAssignee, FieldDueDate, FieldSprint}, got)

	assert.Equal(t, "In Progress", entries[1].NewValue)
	assert.Equal(t, "", entries[2].OldValue)
	assert.Equal(t, "2025-04-01", entries[3].NewValue)
	assert.Equal(t, "3", entries[4].NewValue)
}

func TestDiff_ComparesValuesNotPointers(t *testing.T) {
	d1 := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1
	before := baseItem()
	before.DueDate = &d1
	after := before.Clone()
	after.DueDate = &d2

	assert.Empty(t, Diff(before, after, Meta{At: at}))

	after.DueDate = nil
	entries := Diff(before, after, Meta{At: at})
	require.Len(t, entries, 1)
	assert.Equal(t, "2025-04-01", entries[0].OldValue)
	assert.Equal(t, "", entries[0].NewValue)
}

func TestPointers(t *testing.T) {
	entries := []workitem.HistoryEntry{{Field: "a"}, {Field: "b"}}
	ptrs := Pointers(entries)
	require.Len(t, ptrs, 2)
	ptrs[1].ID = 5
	assert.Equal(t, int64(5), entries[1].ID)
}

func TestFields(t *testing.T) {
	assert.Equal(t, []string{"Title", "Description", "Status", "Priority", "Category", "Assignee", "DueDate", "Sprint"}, Fields())
}
