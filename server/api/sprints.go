package api

import (
	"net/http"

	"github.com/GoCodeAlone/worktrack/workitem"
)

type sprintRequest struct {
	Name      *string `json:"name"`
	Goal      *string `json:"goal"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

func (h *Handlers) listSprints(w http.ResponseWriter, r *http.Request) {
	var f workitem.SprintFilter
	if v := r.URL.Query().Get("status"); v != "" {
		s, ok := workitem.ParseSprintStatus(v)
		if !ok {
			h.fail(w, r, workitem.Invalid("list sprints", "status", "unknown value "+v))
			return
		}
		f.Status = &s
	}
	sprints, err := h.Store.ListSprints(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sprints == nil {
		sprints = []*workitem.Sprint{}
	}
	writeJSON(w, http.StatusOK, sprints)
}

func (h *Handlers) createSprint(w http.ResponseWriter, r *http.Request) {
	const op = "create sprint"
	var req sprintRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var in workitem.Sprint
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Goal != nil {
		in.Goal = *req.Goal
	}
	var err error
	if in.StartDate, err = parseOptDate(op, "start_date", req.StartDate); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.EndDate, err = parseOptDate(op, "end_date", req.EndDate); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.Engine.CreateSprint(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handlers) getSprint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.Store.GetSprint(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) updateSprint(w http.ResponseWriter, r *http.Request) {
	const op = "update sprint"
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req sprintRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p := workitem.SprintPatch{Name: req.Name, Goal: req.Goal}
	if p.StartDate, err = parseOptDate(op, "start_date", req.StartDate); err != nil {
		h.fail(w, r, err)
		return
	}
	if p.EndDate, err = parseOptDate(op, "end_date", req.EndDate); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.Engine.UpdateSprint(r.Context(), id, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) deleteSprint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Engine.DeleteSprint(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) transitionSprint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := parseSprintStatus("transition sprint", req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.Engine.TransitionSprint(r.Context(), id, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) sprintProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.Reports.SprintProgress(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
