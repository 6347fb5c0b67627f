package api

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/worktrack/workitem"
)

// dateLayouts are accepted for date inputs, most specific first.
var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func parseDate(op, field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, workitem.Invalid(op, field, "invalid date "+strconv.Quote(v)+", want YYYY-MM-DD or RFC 3339")
}

func parseOptDate(op, field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := parseDate(op, field, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parsePriority(op string, v string) (workitem.Priority, error) {
	p, ok := workitem.ParsePriority(v)
	if !ok {
		return "", workitem.Invalid(op, "priority", "unknown value "+strconv.Quote(v))
	}
	return p, nil
}

func parseCategory(op string, v string) (workitem.Category, error) {
	c, ok := workitem.ParseCategory(v)
	if !ok {
		return "", workitem.Invalid(op, "category", "unknown value "+strconv.Quote(v))
	}
	return c, nil
}

func parseStatus(op string, v string) (workitem.Status, error) {
	s, ok := workitem.ParseStatus(v)
	if !ok {
		return "", workitem.InvalidTransitionf(op, "%q is not a work item status", v)
	}
	return s, nil
}

func parseSprintStatus(op string, v string) (workitem.SprintStatus, error) {
	s, ok := workitem.ParseSprintStatus(v)
	if !ok {
		return "", workitem.InvalidTransitionf(op, "%q is not a sprint status", v)
	}
	return s, nil
}

// parseFilter builds an item filter from list query parameters.
func parseFilter(q url.Values) (workitem.Filter, error) {
	const op = "list items"
	var f workitem.Filter

	if v := q.Get("status"); v != "" {
		s, ok := workitem.ParseStatus(v)
		if !ok {
			return f, workitem.Invalid(op, "status", "unknown value "+strconv.Quote(v))
		}
		f.Status = &s
	}
	if v := q.Get("priority"); v != "" {
		p, err := parsePriority(op, v)
		if err != nil {
			return f, err
		}
		f.Priority = &p
	}
	if v := q.Get("category"); v != "" {
		c, err := parseCategory(op, v)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	f.Assignee = q.Get("assignee")
	f.Requester = q.Get("requester")
	f.ExternalRef = q.Get("external_ref")
	f.Search = q.Get("q")

	if v := q.Get("sprint_id"); v != "" {
		if v == "none" {
			f.NoSprint = true
		} else {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return f, workitem.Invalid(op, "sprint_id", "invalid id "+strconv.Quote(v))
			}
			f.SprintID = &id
		}
	}
	for _, d := range []struct {
		key string
		dst **time.Time
	}{
		{"due_before", &f.DueBefore},
		{"due_after", &f.DueAfter},
		{"created_after", &f.CreatedAfter},
		{"created_before", &f.CreatedBefore},
	} {
		if v := q.Get(d.key); v != "" {
			t, err := parseDate(op, d.key, v)
			if err != nil {
				return f, err
			}
			*d.dst = &t
		}
	}
	for _, n := range []struct {
		key string
		dst *int
	}{
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	} {
		if v := q.Get(n.key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil || i < 0 {
				return f, workitem.Invalid(op, n.key, "must be a non-negative integer")
			}
			*n.dst = i
		}
	}
	return f, nil
}
