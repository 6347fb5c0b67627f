package workitem

import (
	"strings"
	"time"
)

// SprintStatus is the lifecycle state of a sprint.
type SprintStatus string

const (
	SprintPlanned   SprintStatus = "planned"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
	SprintCancelled SprintStatus = "cancelled"
)

var sprintStatuses = []SprintStatus{SprintPlanned, SprintActive, SprintCompleted, SprintCancelled}

// SprintStatuses returns every sprint status.
func SprintStatuses() []SprintStatus { return append([]SprintStatus(nil), sprintStatuses...) }

// IsValid reports whether s is a member of the sprint status enum.
func (s SprintStatus) IsValid() bool { return contains(sprintStatuses, s) }

// Label returns the display form, e.g. "Completed".
func (s SprintStatus) Label() string { return label(string(s)) }

// ParseSprintStatus accepts the canonical value or its display form.
func ParseSprintStatus(v string) (SprintStatus, bool) { return parseEnum(v, sprintStatuses) }

// Sprint is a time-boxed container of work items.
type Sprint struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Goal      string       `json:"goal,omitempty"`
	Status    SprintStatus `json:"status"`
	StartDate *time.Time   `json:"start_date,omitempty"`
	EndDate   *time.Time   `json:"end_date,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SprintPatch is a partial sprint edit.
type SprintPatch struct {
	Name      *string    `json:"name,omitempty"`
	Goal      *string    `json:"goal,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// SprintFilter controls which sprints are returned by ListSprints.
type SprintFilter struct {
	Status *SprintStatus `json:"status,omitempty"`
}

// ValidateSprint checks name, goal bounds, status and date ordering.
func (l Limits) ValidateSprint(op string, s *Sprint) error {
	if strings.TrimSpace(s.Name) == "" {
		return Invalid(op, "name", "is required")
	}
	if err := l.bound(op, "name", s.Name, l.NameMax); err != nil {
		return err
	}
	if err := l.bound(op, "goal", s.Goal, l.DescriptionMax); err != nil {
		return err
	}
	if !s.Status.IsValid() {
		return Invalid(op, "status", "unknown value "+string(s.Status))
	}
	if s.StartDate != nil && s.EndDate != nil && s.EndDate.Before(*s.StartDate) {
		return Invalid(op, "end_date", "is before start_date")
	}
	return nil
}
