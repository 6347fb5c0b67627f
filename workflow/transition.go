// Package workflow validates and applies work item and sprint mutations.
//
// Every mutation follows the same pipeline: load the current entity inside a
// transaction, apply the change to a copy, diff the two snapshots into
// history, persist entity and history together, then publish a change event
// once the transaction has committed.
package workflow

import (
	"strings"
	"time"

	"github.com/GoCodeAlone/worktrack/workitem"
)

// ApplyStatus moves item to status to. It reports false and returns item
// unchanged when to equals the current status. Entering the terminal set
// stamps ResolvedAt, leaving it clears ResolvedAt, and a move between two
// terminal statuses keeps the original stamp.
//
// Any status may follow any other; to must only be a member of the enum.
func ApplyStatus(item workitem.WorkItem, to workitem.Status, now time.Time) (workitem.WorkItem, bool) {
	if item.Status == to {
		return item, false
	}
	next := item.Clone()
	next.Status = to
	switch {
	case to.IsTerminal() && next.ResolvedAt == nil:
		t := now
		next.ResolvedAt = &t
	case !to.IsTerminal():
		next.ResolvedAt = nil
	}
	next.UpdatedAt = now
	return next, true
}

// ApplyPatch returns a copy of item with the non-nil fields of p applied.
// Status changes go through ApplyStatus. The result is not validated.
func ApplyPatch(item workitem.WorkItem, p workitem.Patch, now time.Time) workitem.WorkItem {
	next := item.Clone()
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.Category != nil {
		next.Category = *p.Category
	}
	if p.Assignee != nil {
		next.Assignee = strings.TrimSpace(*p.Assignee)
	}
	if p.Requester != nil {
		next.Requester = strings.TrimSpace(*p.Requester)
	}
	switch {
	case p.ClearDueDate:
		next.DueDate = nil
	case p.DueDate != nil:
		d := workitem.DueDay(*p.DueDate)
		next.DueDate = &d
	}
	if p.Status != nil {
		next, _ = ApplyStatus(next, *p.Status, now)
	}
	return next
}

// ApplySprintPatch returns a copy of s with the non-nil fields of p applied.
func ApplySprintPatch(s workitem.Sprint, p workitem.SprintPatch) workitem.Sprint {
	if p.Name != nil {
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.Goal != nil {
		s.Goal = *p.Goal
	}
	if p.StartDate != nil {
		d := p.StartDate.UTC()
		s.StartDate = &d
	}
	if p.EndDate != nil {
		d := p.EndDate.UTC()
		s.EndDate = &d
	}
	return s
}

func sprintChanged(a, b workitem.Sprint) bool {
	return a.Name != b.Name || a.Goal != b.Goal || a.Status != b.Status ||
		!sameTime(a.StartDate, b.StartDate) || !sameTime(a.EndDate, b.EndDate)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
