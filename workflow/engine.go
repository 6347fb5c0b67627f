package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/GoCodeAlone/worktrack/audit"
	"github.com/GoCodeAlone/worktrack/notify"
	"github.com/GoCodeAlone/worktrack/workitem"
)

// Engine runs typed mutations against a Store and publishes the results.
type Engine struct {
	store        workitem.Store
	pub          notify.Publisher
	limits       workitem.Limits
	defaultTopic string
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLimits overrides the field length limits.
func WithLimits(l workitem.Limits) Option { return func(e *Engine) { e.limits = l } }

// WithDefaultTopic sets the topic for changes not scoped to a sprint.
func WithDefaultTopic(topic string) Option {
	return func(e *Engine) {
		if topic != "" {
			e.defaultTopic = topic
		}
	}
}

// NewEngine creates an Engine. A nil publisher discards events.
func NewEngine(store workitem.Store, pub notify.Publisher, opts ...Option) *Engine {
	if pub == nil {
		pub = notify.Nop{}
	}
	e := &Engine{
		store:        store,
		pub:          pub,
		limits:       workitem.DefaultLimits(),
		defaultTopic: notify.DefaultTopic,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Limits returns the limits the engine validates against.
func (e *Engine) Limits() workitem.Limits { return e.limits }

func (e *Engine) topicFor(sprintID *int64) string {
	if sprintID == nil {
		return e.defaultTopic
	}
	return notify.SprintTopic(*sprintID)
}

func (e *Engine) clock() time.Time { return e.now().UTC() }

// --- items ---

// CreateItem validates in, applies defaults and persists a new open item.
// Creation publishes no event.
func (e *Engine) CreateItem(ctx context.Context, in workitem.NewItem) (*workitem.WorkItem, error) {
	const op = "create item"
	now := e.clock()
	w := &workitem.WorkItem{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      workitem.StatusOpen,
		Priority:    in.Priority,
		Category:    in.Category,
		Assignee:    strings.TrimSpace(in.Assignee),
		Requester:   strings.TrimSpace(in.Requester),
		SprintID:    in.SprintID,
		ExternalRef: strings.TrimSpace(in.ExternalRef),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if w.Priority == "" {
		w.Priority = workitem.PriorityMedium
	}
	if w.Category == "" {
		w.Category = workitem.CategoryTask
	}
	if in.DueDate != nil {
		d := workitem.DueDay(*in.DueDate)
		w.DueDate = &d
	}
	if err := e.limits.ValidateItem(op, w); err != nil {
		return nil, err
	}

	err := e.store.InTx(ctx, func(r workitem.Repo) error {
		if w.SprintID != nil {
			if err := requireSprint(ctx, r, op, *w.SprintID); err != nil {
				return err
			}
		}
		return r.CreateItem(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "work item created",
		slog.Int64("item_id", w.ID), slog.String("number", w.Number), slog.String("title", w.Title))
	return w, nil
}

// Transition moves an item to status to. A status outside the enum is an
// InvalidTransition error; the same status is a no-op that records nothing.
func (e *Engine) Transition(ctx context.Context, id int64, to workitem.Status, reason, actor string) (*workitem.WorkItem, error) {
	const op = "transition item"
	if !to.IsValid() {
		return nil, workitem.InvalidTransitionf(op, "%q is not a work item status", string(to))
	}
	return e.mutateItem(ctx, op, id, nil, audit.Meta{By: actor, Reason: reason}, func(w *workitem.WorkItem, now time.Time) error {
		*w, _ = ApplyStatus(*w, to, now)
		return nil
	})
}

// TransitionTo parses a status as given at the request boundary and
// transitions to it.
func (e *Engine) TransitionTo(ctx context.Context, id int64, status, reason, actor string) (*workitem.WorkItem, error) {
	to, ok := workitem.ParseStatus(status)
	if !ok {
		return nil, workitem.InvalidTransitionf("transition item", "%q is not a work item status", status)
	}
	return e.Transition(ctx, id, to, reason, actor)
}

// UpdateItem applies a field edit. When p.Version is set it must match the
// stored version or the update fails with a Conflict error.
func (e *Engine) UpdateItem(ctx context.Context, id int64, p workitem.Patch, actor string) (*workitem.WorkItem, error) {
	const op = "update item"
	if p.Status != nil && !p.Status.IsValid() {
		return nil, workitem.InvalidTransitionf(op, "%q is not a work item status", string(*p.Status))
	}
	return e.mutateItem(ctx, op, id, p.Version, audit.Meta{By: actor}, func(w *workitem.WorkItem, now time.Time) error {
		*w = ApplyPatch(*w, p, now)
		return nil
	})
}

// Assign sets or clears (empty assignee) the item's assignee.
func (e *Engine) Assign(ctx context.Context, id int64, assignee, actor string) (*workitem.WorkItem, error) {
	return e.mutateItem(ctx, "assign item", id, nil, audit.Meta{By: actor}, func(w *workitem.WorkItem, _ time.Time) error {
		w.Assignee = strings.TrimSpace(assignee)
		return nil
	})
}

// MoveToSprint places the item in a sprint, or detaches it when sprintID is
// nil. Both the old and the new sprint topics are notified.
func (e *Engine) MoveToSprint(ctx context.Context, id int64, sprintID *int64, actor string) (*workitem.WorkItem, error) {
	const op = "move item"
	var prev *int64
	w, err := e.mutate(ctx, op, id, nil, audit.Meta{By: actor}, func(r workitem.Repo, w *workitem.WorkItem, _ time.Time) error {
		prev = w.SprintID
		if sprintID != nil {
			if err := requireSprint(ctx, r, op, *sprintID); err != nil {
				return err
			}
			sid := *sprintID
			w.SprintID = &sid
		} else {
			w.SprintID = nil
		}
		return nil
	})
	if err != nil || w == nil {
		return w, err
	}
	if !sameID(prev, w.SprintID) && e.topicFor(prev) != e.topicFor(w.SprintID) {
		e.pub.Publish(ctx, e.topicFor(prev), notify.ItemUpdated, w)
	}
	return w, nil
}

// DeleteItem removes an item with its comments and history.
func (e *Engine) DeleteItem(ctx context.Context, id int64, actor string) error {
	var gone *workitem.WorkItem
	err := e.store.InTx(ctx, func(r workitem.Repo) error {
		w, err := r.GetItem(ctx, id)
		if err != nil {
			return err
		}
		gone = w
		return r.DeleteItem(ctx, id)
	})
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "work item deleted",
		slog.Int64("item_id", id), slog.String("number", gone.Number), slog.String("by", actor))
	e.pub.Publish(ctx, e.topicFor(gone.SprintID), notify.ItemDeleted, gone)
	return nil
}

// mutateItem is mutate for changes that need no extra store access.
func (e *Engine) mutateItem(ctx context.Context, op string, id int64, version *int, meta audit.Meta,
	apply func(*workitem.WorkItem, time.Time) error) (*workitem.WorkItem, error) {
	return e.mutate(ctx, op, id, version, meta, func(_ workitem.Repo, w *workitem.WorkItem, now time.Time) error {
		return apply(w, now)
	})
}

// mutate runs the item pipeline. An apply that changes nothing is a no-op:
// the stored item is returned with no write, no history and no event.
func (e *Engine) mutate(ctx context.Context, op string, id int64, version *int, meta audit.Meta,
	apply func(workitem.Repo, *workitem.WorkItem, time.Time) error) (*workitem.WorkItem, error) {
	var (
		result  *workitem.WorkItem
		changed bool
	)
	err := e.store.InTx(ctx, func(r workitem.Repo) error {
		before, err := r.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if version != nil && *version != before.Version {
			return workitem.Conflictf(op, "work item %d is at version %d, not %d", id, before.Version, *version)
		}

		now := e.clock()
		after := before.Clone()
		if err := apply(r, &after, now); err != nil {
			return err
		}
		meta.At = now
		entries := audit.Diff(*before, after, meta)
		if len(entries) == 0 && after.Requester == before.Requester {
			result = before
			return nil
		}
		if err := e.limits.ValidateItem(op, &after); err != nil {
			return err
		}

		after.UpdatedAt = now
		if err := r.UpdateItem(ctx, &after); err != nil {
			return err
		}
		if err := r.AppendHistory(ctx, audit.Pointers(entries)); err != nil {
			return err
		}
		result, changed = &after, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.logger.InfoContext(ctx, "work item updated",
			slog.String("op", op), slog.Int64("item_id", id), slog.Int("version", result.Version), slog.String("by", meta.By))
		e.pub.Publish(ctx, e.topicFor(result.SprintID), notify.ItemUpdated, result)
	}
	return result, nil
}

// --- sprints ---

// CreateSprint persists a new planned sprint and announces it on the
// default topic.
func (e *Engine) CreateSprint(ctx context.Context, in workitem.Sprint) (*workitem.Sprint, error) {
	const op = "create sprint"
	now := e.clock()
	s := &workitem.Sprint{
		Name:      strings.TrimSpace(in.Name),
		Goal:      in.Goal,
		Status:    workitem.SprintPlanned,
		StartDate: utcPtr(in.StartDate),
		EndDate:   utcPtr(in.EndDate),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.limits.ValidateSprint(op, s); err != nil {
		return nil, err
	}
	if err := e.store.InTx(ctx, func(r workitem.Repo) error { return r.CreateSprint(ctx, s) }); err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "sprint created", slog.Int64("sprint_id", s.ID), slog.String("name", s.Name))
	e.pub.Publish(ctx, e.defaultTopic, notify.ContainerUpdated, s)
	return s, nil
}

// UpdateSprint applies a sprint field edit.
func (e *Engine) UpdateSprint(ctx context.Context, id int64, p workitem.SprintPatch) (*workitem.Sprint, error) {
	return e.mutateSprint(ctx, "update sprint", id, func(s workitem.Sprint) workitem.Sprint {
		return ApplySprintPatch(s, p)
	})
}

// TransitionSprint moves a sprint to status to. Any sprint status may follow
// any other.
func (e *Engine) TransitionSprint(ctx context.Context, id int64, to workitem.SprintStatus) (*workitem.Sprint, error) {
	const op = "transition sprint"
	if !to.IsValid() {
		return nil, workitem.InvalidTransitionf(op, "%q is not a sprint status", string(to))
	}
	return e.mutateSprint(ctx, op, id, func(s workitem.Sprint) workitem.Sprint {
		s.Status = to
		return s
	})
}

// DeleteSprint removes a sprint and its comments; its items become unscheduled.
func (e *Engine) DeleteSprint(ctx context.Context, id int64) error {
	var gone *workitem.Sprint
	err := e.store.InTx(ctx, func(r workitem.Repo) error {
		s, err := r.GetSprint(ctx, id)
		if err != nil {
			return err
		}
		gone = s
		return r.DeleteSprint(ctx, id)
	})
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "sprint deleted", slog.Int64("sprint_id", id), slog.String("name", gone.Name))
	e.pub.Publish(ctx, notify.SprintTopic(id), notify.ContainerDeleted, gone)
	return nil
}

func (e *Engine) mutateSprint(ctx context.Context, op string, id int64, apply func(workitem.Sprint) workitem.Sprint) (*workitem.Sprint, error) {
	var (
		result  *workitem.Sprint
		changed bool
	)
	err := e.store.InTx(ctx, func(r workitem.Repo) error {
		before, err := r.GetSprint(ctx, id)
		if err != nil {
			return err
		}
		after := apply(*before)
		if !sprintChanged(*before, after) {
			result = before
			return nil
		}
		if err := e.limits.ValidateSprint(op, &after); err != nil {
			return err
		}
		after.UpdatedAt = e.clock()
		if err := r.UpdateSprint(ctx, &after); err != nil {
			return err
		}
		result, changed = &after, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.logger.InfoContext(ctx, "sprint updated", slog.String("op", op), slog.Int64("sprint_id", id))
		e.pub.Publish(ctx, notify.SprintTopic(id), notify.ContainerUpdated, result)
	}
	return result, nil
}

func requireSprint(ctx context.Context, r workitem.Repo, op string, id int64) error {
	ok, err := r.SprintExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return workitem.NotFoundf(op, "sprint %d not found", id)
	}
	return nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
