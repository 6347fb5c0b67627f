package importer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/go-github/v41/github"

	"github.com/GoCodeAlone/worktrack/workflow"
	"github.com/GoCodeAlone/worktrack/workitem"
)

// Actor is recorded as the author of imported changes.
const Actor = "github-import"

// ClosedReason is the history reason for issues already closed upstream.
const ClosedReason = "closed on GitHub"

// Result counts what an import did.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Lookup finds already-imported items.
type Lookup interface {
	ListItems(ctx context.Context, f workitem.Filter) ([]*workitem.WorkItem, error)
}

// Importer creates work items from GitHub issues.
type Importer struct {
	engine *workflow.Engine
	lookup Lookup
	source IssueSource
	logger *slog.Logger
}

// New creates an Importer. A nil logger uses slog.Default().
func New(engine *workflow.Engine, lookup Lookup, source IssueSource, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{engine: engine, lookup: lookup, source: source, logger: logger}
}

// ImportGitHub imports every issue of repository ("owner/repo"). Issues
// imported earlier are skipped, so repeated runs are idempotent, except that
// an open item whose issue has since closed is closed.
func (im *Importer) ImportGitHub(ctx context.Context, repository string) (Result, error) {
	var res Result
	owner, repo, err := SplitRepository(repository)
	if err != nil {
		return res, workitem.Invalid("import github", "repository", err.Error())
	}
	issues, err := im.source.ListIssues(ctx, owner, repo)
	if err != nil {
		return res, err
	}

	for _, is := range issues {
		ref := ExternalRef(owner, repo, is.GetNumber())
		existing, err := im.lookup.ListItems(ctx, workitem.Filter{ExternalRef: ref, Limit: 1})
		if err != nil {
			return res, err
		}
		if len(existing) > 0 {
			// A skipped item still follows the issue once it closes upstream.
			if is.GetState() == "closed" && !existing[0].Status.IsTerminal() {
				if _, err := im.engine.Transition(ctx, existing[0].ID, workitem.StatusClosed, ClosedReason, Actor); err != nil {
					return res, err
				}
			}
			res.Skipped++
			continue
		}

		w, err := im.engine.CreateItem(ctx, im.newItem(is, ref))
		if workitem.KindOf(err) == workitem.KindConflict {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}
		if is.GetState() == "closed" {
			if _, err := im.engine.Transition(ctx, w.ID, workitem.StatusClosed, ClosedReason, Actor); err != nil {
				return res, err
			}
		}
		res.Imported++
	}

	im.logger.InfoContext(ctx, "github import finished",
		slog.String("repo", repository), slog.Int("imported", res.Imported), slog.Int("skipped", res.Skipped))
	return res, nil
}

func (im *Importer) newItem(is *github.Issue, ref string) workitem.NewItem {
	limits := im.engine.Limits()
	var labels []string
	for _, l := range is.Labels {
		labels = append(labels, l.GetName())
	}
	in := workitem.NewItem{
		Title:       truncate(is.GetTitle(), limits.TitleMax),
		Description: truncate(is.GetBody(), limits.DescriptionMax),
		Priority:    PriorityFromLabels(labels),
		Category:    CategoryFromLabels(labels),
		Assignee:    truncate(is.GetAssignee().GetLogin(), limits.PersonMax),
		Requester:   truncate(is.GetUser().GetLogin(), limits.PersonMax),
		ExternalRef: ref,
	}
	if strings.TrimSpace(in.Title) == "" {
		in.Title = ref
	}
	if due := is.GetMilestone().GetDueOn(); !due.IsZero() {
		in.DueDate = &due
	}
	return in
}

// PriorityFromLabels maps "priority: high", "priority/high" or P0..P3
// labels to a priority, defaulting to medium.
func PriorityFromLabels(labels []string) workitem.Priority {
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		switch l {
		case "p0":
			return workitem.PriorityCritical
		case "p1":
			return workitem.PriorityHigh
		case "p2":
			return workitem.PriorityMedium
		case "p3":
			return workitem.PriorityLow
		}
		for _, prefix := range []string{"priority:", "priority/", "priority-"} {
			if v, ok := strings.CutPrefix(l, prefix); ok {
				if p, ok := workitem.ParsePriority(v); ok {
					return p
				}
			}
		}
	}
	return workitem.PriorityMedium
}

// CategoryFromLabels maps the first recognised label to a category,
// defaulting to task.
func CategoryFromLabels(labels []string) workitem.Category {
	for _, l := range labels {
		switch strings.ToLower(strings.TrimSpace(l)) {
		case "bug", "defect", "type: bug":
			return workitem.CategoryBug
		case "feature", "enhancement", "feature request", "type: feature":
			return workitem.CategoryFeature
		case "improvement", "refactor":
			return workitem.CategoryImprovement
		case "question":
			return workitem.CategoryQuestion
		case "support", "help wanted":
			return workitem.CategorySupport
		}
	}
	return workitem.CategoryTask
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
