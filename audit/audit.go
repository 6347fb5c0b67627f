// Package audit computes the field-level history of a work item mutation.
package audit

import (
	"strconv"
	"time"

	"github.com/GoCodeAlone/worktrack/workitem"
)

// Field names recorded in history entries.
const (
	FieldTitle       = "Title"
	FieldDescription = "Description"
	FieldStatus      = "Status"
	FieldPriority    = "Priority"
	FieldCategory    = "Category"
	FieldAssignee    = "Assignee"
	FieldDueDate     = "DueDate"
	FieldSprint      = "Sprint"
)

// DateLayout is the display form of due dates in history values.
const DateLayout = "2006-01-02"

// Meta describes who made a change, when, and why.
type Meta struct {
	By     string
	At     time.Time
	Reason string
}

type tracked struct {
	name    string
	display func(workitem.WorkItem) string
}

// fields is the fixed set of audited fields, in recording order.
var fields = []tracked{
	{FieldTitle, func(w workitem.WorkItem) string { return w.Title }},
	{FieldDescription, func(w workitem.WorkItem) string { return w.Description }},
	{FieldStatus, func(w workitem.WorkItem) string { return w.Status.Label() }},
	{FieldPriority, func(w workitem.WorkItem) string { return w.Priority.Label() }},
	{FieldCategory, func(w workitem.WorkItem) string { return w.Category.Label() }},
	{FieldAssignee, func(w workitem.WorkItem) string { return w.Assignee }},
	{FieldDueDate, func(w workitem.WorkItem) string { return FormatDate(w.DueDate) }},
	{FieldSprint, func(w workitem.WorkItem) string { return formatID(w.SprintID) }},
}

// Fields returns the audited field names in recording order.
func Fields() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return names
}

// Diff compares two snapshots of the same work item and returns one history
// entry per tracked field whose display value differs. Identical snapshots
// produce no entries. The result is not persisted.
func Diff(before, after workitem.WorkItem, meta Meta) []workitem.HistoryEntry {
	var entries []workitem.HistoryEntry
	for _, f := range fields {
		old, cur := f.display(before), f.display(after)
		if old == cur {
			continue
		}
		entries = append(entries, workitem.HistoryEntry{
			ItemID:    after.ID,
			Field:     f.name,
			OldValue:  old,
			NewValue:  cur,
			ChangedBy: meta.By,
			ChangedAt: meta.At,
			Reason:    meta.Reason,
		})
	}
	return entries
}

// Pointers adapts entries for Repo.AppendHistory.
func Pointers(entries []workitem.HistoryEntry) []*workitem.HistoryEntry {
	out := make([]*workitem.HistoryEntry, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out
}

// FormatDate renders an optional date for display; nil is the empty string.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
