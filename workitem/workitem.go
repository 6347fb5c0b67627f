// Package workitem defines the tracker's domain model and its persistence.
package workitem

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status represents the lifecycle state of a work item.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusInReview   Status = "in_review"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

var statuses = []Status{StatusOpen, StatusInProgress, StatusBlocked, StatusInReview, StatusResolved, StatusClosed}

// Statuses returns every status in workflow order.
func Statuses() []Status { return append([]Status(nil), statuses...) }

// IsValid reports whether s is a member of the status enum.
func (s Status) IsValid() bool { return contains(statuses, s) }

// IsTerminal reports whether s counts as completed work.
func (s Status) IsTerminal() bool { return s == StatusResolved || s == StatusClosed }

// Label returns the display form, e.g. "In Progress".
func (s Status) Label() string { return label(string(s)) }

// ParseStatus accepts the canonical value or its display form.
func ParseStatus(v string) (Status, bool) { return parseEnum(v, statuses) }

// Priority ranks how urgent a work item is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Priorities returns every priority from lowest to highest.
func Priorities() []Priority { return append([]Priority(nil), priorities...) }

// IsValid reports whether p is a member of the priority enum.
func (p Priority) IsValid() bool { return contains(priorities, p) }

// Label returns the display form, e.g. "High".
func (p Priority) Label() string { return label(string(p)) }

// ParsePriority accepts the canonical value or its display form.
func ParsePriority(v string) (Priority, bool) { return parseEnum(v, priorities) }

// Category is the kind of work an item describes.
type Category string

const (
	CategoryBug         Category = "bug"
	CategoryFeature     Category = "feature"
	CategoryTask        Category = "task"
	CategoryImprovement Category = "improvement"
	CategoryQuestion    Category = "question"
	CategorySupport     Category = "support"
)

var categories = []Category{CategoryBug, CategoryFeature, CategoryTask, CategoryImprovement, CategoryQuestion, CategorySupport}

// Categories returns every category.
func Categories() []Category { return append([]Category(nil), categories...) }

// IsValid reports whether c is a member of the category enum.
func (c Category) IsValid() bool { return contains(categories, c) }

// Label returns the display form, e.g. "Improvement".
func (c Category) Label() string { return label(string(c)) }

// ParseCategory accepts the canonical value or its display form.
func ParseCategory(v string) (Category, bool) { return parseEnum(v, categories) }

// WorkItem is a tracked unit of work (ticket, task). Comments and history are
// not embedded; they are loaded on demand by owner id.
type WorkItem struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Category    Category   `json:"category"`
	Assignee    string     `json:"assignee,omitempty"`
	Requester   string     `json:"requester,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	SprintID    *int64     `json:"sprint_id,omitempty"`
	ExternalRef string     `json:"external_ref,omitempty"` // originating issue or thread
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Clone returns a deep copy so before/after snapshots never share pointers.
func (w WorkItem) Clone() WorkItem {
	c := w
	if w.DueDate != nil {
		d := *w.DueDate
		c.DueDate = &d
	}
	if w.SprintID != nil {
		s := *w.SprintID
		c.SprintID = &s
	}
	if w.ResolvedAt != nil {
		r := *w.ResolvedAt
		c.ResolvedAt = &r
	}
	return c
}

// NewItem is the input for creating a work item. Zero enum values take the
// defaults (open, medium, task).
type NewItem struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Category    Category   `json:"category"`
	Assignee    string     `json:"assignee"`
	Requester   string     `json:"requester"`
	DueDate     *time.Time `json:"due_date"`
	SprintID    *int64     `json:"sprint_id"`
	ExternalRef string     `json:"external_ref"`
}

// Patch is a partial field edit. Nil fields are left alone.
type Patch struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Status       *Status    `json:"status,omitempty"`
	Priority     *Priority  `json:"priority,omitempty"`
	Category     *Category  `json:"category,omitempty"`
	Assignee     *string    `json:"assignee,omitempty"`
	Requester    *string    `json:"requester,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
	Version      *int       `json:"version,omitempty"` // expected current version
}

// DueDay normalizes a due date to midnight UTC of its UTC calendar day.
// Due dates are stored, compared and displayed at day granularity.
func DueDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Limits bounds the length of free-text fields, counted in runes.
type Limits struct {
	TitleMax       int `json:"title_max" yaml:"title_max"`
	DescriptionMax int `json:"description_max" yaml:"description_max"`
	NameMax        int `json:"name_max" yaml:"name_max"`
	CommentMax     int `json:"comment_max" yaml:"comment_max"`
	PersonMax      int `json:"person_max" yaml:"person_max"`
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		TitleMax:       200,
		DescriptionMax: 10000,
		NameMax:        120,
		CommentMax:     4000,
		PersonMax:      100,
	}
}

// ValidateItem checks required fields, length bounds and enum membership.
func (l Limits) ValidateItem(op string, w *WorkItem) error {
	if strings.TrimSpace(w.Title) == "" {
		return Invalid(op, "title", "is required")
	}
	if err := l.bound(op, "title", w.Title, l.TitleMax); err != nil {
		return err
	}
	if err := l.bound(op, "description", w.Description, l.DescriptionMax); err != nil {
		return err
	}
	if err := l.bound(op, "assignee", w.Assignee, l.PersonMax); err != nil {
		return err
	}
	if err := l.bound(op, "requester", w.Requester, l.PersonMax); err != nil {
		return err
	}
	if !w.Status.IsValid() {
		return Invalid(op, "status", "unknown value "+strconv.Quote(string(w.Status)))
	}
	if !w.Priority.IsValid() {
		return Invalid(op, "priority", "unknown value "+strconv.Quote(string(w.Priority)))
	}
	if !w.Category.IsValid() {
		return Invalid(op, "category", "unknown value "+strconv.Quote(string(w.Category)))
	}
	return nil
}

// CheckLength reports a validation error when v exceeds max runes. A max of
// zero disables the check.
func (l Limits) CheckLength(op, field, v string, max int) error {
	return l.bound(op, field, v, max)
}

func (l Limits) bound(op, field, v string, max int) error {
	if max > 0 && utf8.RuneCountInString(v) > max {
		return Invalid(op, field, "exceeds "+strconv.Itoa(max)+" characters")
	}
	return nil
}

func contains[T comparable](all []T, v T) bool {
	for _, a := range all {
		if a == v {
			return true
		}
	}
	return false
}

func parseEnum[T ~string](v string, all []T) (T, bool) {
	key := normalize(v)
	for _, a := range all {
		if normalize(string(a)) == key {
			return a, true
		}
	}
	var zero T
	return zero, false
}

func normalize(v string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(v)))
}

func label(v string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(v, "_", " "))
}
