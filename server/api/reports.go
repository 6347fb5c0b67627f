package api

import (
	"net/http"

	"github.com/GoCodeAlone/worktrack/workitem"
)

// reportFilter narrows report counts by sprint and assignee.
func reportFilter(r *http.Request) (workitem.Filter, error) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		return f, err
	}
	f.Limit, f.Offset = 0, 0
	return f, nil
}

func (h *Handlers) reportStatus(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	counts, err := h.Reports.CountsByStatus(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handlers) reportPriority(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	counts, err := h.Reports.CountsByPriority(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handlers) reportCategory(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	counts, err := h.Reports.CountsByCategory(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handlers) reportOverdue(w http.ResponseWriter, r *http.Request) {
	items, err := h.Reports.OverdueItems(r.Context(), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]ItemView, 0, len(items))
	for _, it := range items {
		views = append(views, h.view(it))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) reportSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Reports.Summary(r.Context(), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
