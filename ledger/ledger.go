// Package ledger records immutable comments on work items and sprints.
package ledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/GoCodeAlone/worktrack/notify"
	"github.com/GoCodeAlone/worktrack/workitem"
)

// Ledger appends and lists comments.
type Ledger struct {
	store        workitem.Store
	pub          notify.Publisher
	limits       workitem.Limits
	defaultTopic string
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the time source for comment timestamps.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithLimits overrides the comment length bounds.
func WithLimits(lim workitem.Limits) Option { return func(l *Ledger) { l.limits = lim } }

// WithDefaultTopic sets the topic for comments on items outside any sprint.
func WithDefaultTopic(topic string) Option { return func(l *Ledger) { l.defaultTopic = topic } }

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option { return func(l *Ledger) { l.logger = logger } }

// New creates a Ledger. A nil publisher discards events.
func New(store workitem.Store, pub notify.Publisher, opts ...Option) *Ledger {
	if pub == nil {
		pub = notify.Nop{}
	}
	l := &Ledger{
		store:        store,
		pub:          pub,
		limits:       workitem.DefaultLimits(),
		defaultTopic: notify.DefaultTopic,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.defaultTopic == "" {
		l.defaultTopic = notify.DefaultTopic
	}
	return l
}

// AddComment appends a comment to owner and refreshes the owner's
// updated-at in the same transaction. Item comments are published on the
// item's sprint topic, sprint comments on the sprint's own topic.
func (l *Ledger) AddComment(ctx context.Context, owner workitem.Owner, content, author string) (*workitem.Comment, error) {
	const op = "add comment"
	content = strings.TrimSpace(content)
	author = strings.TrimSpace(author)
	if !owner.IsValid() {
		return nil, workitem.Invalid(op, "owner", "unknown owner "+owner.String())
	}
	if content == "" {
		return nil, workitem.Invalid(op, "content", "is required")
	}
	if err := l.limits.CheckLength(op, "content", content, l.limits.CommentMax); err != nil {
		return nil, err
	}
	if author == "" {
		return nil, workitem.Invalid(op, "author", "is required")
	}
	if err := l.limits.CheckLength(op, "author", author, l.limits.PersonMax); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	c := &workitem.Comment{Author: author, Content: content, CreatedAt: now}
	topic := l.defaultTopic

	err := l.store.InTx(ctx, func(r workitem.Repo) error {
		switch owner.Kind {
		case workitem.OwnerItem:
			w, err := r.GetItem(ctx, owner.ID)
			if err != nil {
				return err
			}
			if w.SprintID != nil {
				topic = notify.SprintTopic(*w.SprintID)
			}
			c.ItemID = &w.ID
			if err := r.TouchItem(ctx, w.ID, now); err != nil {
				return err
			}
		case workitem.OwnerSprint:
			s, err := r.GetSprint(ctx, owner.ID)
			if err != nil {
				return err
			}
			topic = notify.SprintTopic(s.ID)
			c.SprintID = &s.ID
			if err := r.TouchSprint(ctx, s.ID, now); err != nil {
				return err
			}
		}
		return r.CreateComment(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "comment added",
		slog.String("owner", owner.String()), slog.Int64("comment_id", c.ID), slog.String("author", author))
	l.pub.Publish(ctx, topic, notify.CommentAdded, c)
	return c, nil
}

// List returns owner's comments newest first. An unknown owner is NotFound.
func (l *Ledger) List(ctx context.Context, owner workitem.Owner) ([]*workitem.Comment, error) {
	if !owner.IsValid() {
		return nil, workitem.Invalid("list comments", "owner", "unknown owner "+owner.String())
	}
	var exists bool
	var err error
	if owner.Kind == workitem.OwnerItem {
		exists, err = l.store.ItemExists(ctx, owner.ID)
	} else {
		exists, err = l.store.SprintExists(ctx, owner.ID)
	}
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, workitem.NotFoundf("list comments", "%s not found", owner)
	}
	return l.store.ListComments(ctx, owner)
}
