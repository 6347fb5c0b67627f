// Package report derives aggregates from the current entity set. Every call
// re-queries the store; nothing is cached.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/GoCodeAlone/worktrack/workitem"
)

// Reader is the read side of the entity store used by reports.
type Reader interface {
	ListItems(ctx context.Context, f workitem.Filter) ([]*workitem.WorkItem, error)
	CountItems(ctx context.Context, f workitem.Filter) (int, error)
	CountItemsBy(ctx context.Context, by workitem.GroupBy, f workitem.Filter) (map[string]int, error)
	GetSprint(ctx context.Context, id int64) (*workitem.Sprint, error)
	ListSprints(ctx context.Context, f workitem.SprintFilter) ([]*workitem.Sprint, error)
}

// Progress is a sprint completion summary.
type Progress struct {
	SprintID  int64   `json:"sprint_id"`
	Name      string  `json:"name"`
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Percent   float64 `json:"percent"`
}

// Summary bundles the dashboard aggregates.
type Summary struct {
	Total      int                       `json:"total"`
	ByStatus   map[workitem.Status]int   `json:"by_status"`
	ByPriority map[workitem.Priority]int `json:"by_priority"`
	ByCategory map[workitem.Category]int `json:"by_category"`
	Overdue    int                       `json:"overdue"`
	Sprints    []Progress                `json:"active_sprints"`
	At         time.Time                 `json:"generated_at"`
}

// Reporter computes aggregates.
type Reporter struct {
	r Reader
}

// New creates a Reporter over r.
func New(r Reader) *Reporter { return &Reporter{r: r} }

// CountsByStatus counts matching items per status. Every status is present.
func (rep *Reporter) CountsByStatus(ctx context.Context, f workitem.Filter) (map[workitem.Status]int, error) {
	return countBy(ctx, rep.r, workitem.GroupByStatus, f, workitem.Statuses())
}

// CountsByPriority counts matching items per priority. Every priority is present.
func (rep *Reporter) CountsByPriority(ctx context.Context, f workitem.Filter) (map[workitem.Priority]int, error) {
	return countBy(ctx, rep.r, workitem.GroupByPriority, f, workitem.Priorities())
}

// CountsByCategory counts matching items per category. Every category is present.
func (rep *Reporter) CountsByCategory(ctx context.Context, f workitem.Filter) (map[workitem.Category]int, error) {
	return countBy(ctx, rep.r, workitem.GroupByCategory, f, workitem.Categories())
}

// OverdueItems returns items with a due date before now whose status is not
// terminal, earliest due first.
func (rep *Reporter) OverdueItems(ctx context.Context, now time.Time) ([]*workitem.WorkItem, error) {
	items, err := rep.r.ListItems(ctx, workitem.Filter{HasDueDate: true, DueBefore: &now})
	if err != nil {
		return nil, err
	}
	overdue := items[:0]
	for _, w := range items {
		if w.DueDate != nil && w.DueDate.Before(now) && !w.Status.IsTerminal() {
			overdue = append(overdue, w)
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool { return overdue[i].DueDate.Before(*overdue[j].DueDate) })
	return overdue, nil
}

// SprintProgress reports how many of a sprint's items are in a terminal
// status. Percent is 0 for an empty sprint.
func (rep *Reporter) SprintProgress(ctx context.Context, sprintID int64) (Progress, error) {
	s, err := rep.r.GetSprint(ctx, sprintID)
	if err != nil {
		return Progress{}, err
	}
	counts, err := rep.r.CountItemsBy(ctx, workitem.GroupByStatus, workitem.Filter{SprintID: &sprintID})
	if err != nil {
		return Progress{}, err
	}
	p := Progress{SprintID: s.ID, Name: s.Name}
	for status, n := range counts {
		p.Total += n
		if workitem.Status(status).IsTerminal() {
			p.Completed += n
		}
	}
	p.Percent = Percent(p.Completed, p.Total)
	return p, nil
}

// Summary gathers the dashboard aggregates as of now.
func (rep *Reporter) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	sum := &Summary{At: now}
	var err error
	if sum.Total, err = rep.r.CountItems(ctx, workitem.Filter{}); err != nil {
		return nil, err
	}
	if sum.ByStatus, err = rep.CountsByStatus(ctx, workitem.Filter{}); err != nil {
		return nil, err
	}
	if sum.ByPriority, err = rep.CountsByPriority(ctx, workitem.Filter{}); err != nil {
		return nil, err
	}
	if sum.ByCategory, err = rep.CountsByCategory(ctx, workitem.Filter{}); err != nil {
		return nil, err
	}
	overdue, err := rep.OverdueItems(ctx, now)
	if err != nil {
		return nil, err
	}
	sum.Overdue = len(overdue)

	active := workitem.SprintActive
	sprints, err := rep.r.ListSprints(ctx, workitem.SprintFilter{Status: &active})
	if err != nil {
		return nil, err
	}
	sum.Sprints = make([]Progress, 0, len(sprints))
	for _, s := range sprints {
		p, err := rep.SprintProgress(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		sum.Sprints = append(sum.Sprints, p)
	}
	return sum, nil
}

// Percent returns part/total*100, or 0 when total is 0.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func countBy[T ~string](ctx context.Context, r Reader, by workitem.GroupBy, f workitem.Filter, all []T) (map[T]int, error) {
	raw, err := r.CountItemsBy(ctx, by, f)
	if err != nil {
		return nil, err
	}
	out := make(map[T]int, len(all))
	for _, v := range all {
		out[v] = raw[string(v)]
	}
	return out, nil
}
