package api

import (
	"net/http"
	"strings"

	"github.com/GoCodeAlone/worktrack/workitem"
)

// ItemView is the JSON projection of a work item. Comments and history are
// present only when requested with include=comments,history.
type ItemView struct {
	*workitem.WorkItem
	StatusLabel   string                   `json:"status_label"`
	PriorityLabel string                   `json:"priority_label"`
	CategoryLabel string                   `json:"category_label"`
	Overdue       bool                     `json:"overdue"`
	Comments      []*workitem.Comment      `json:"comments,omitempty"`
	History       []*workitem.HistoryEntry `json:"history,omitempty"`
}

func (h *Handlers) view(w *workitem.WorkItem) ItemView {
	return ItemView{
		WorkItem:      w,
		StatusLabel:   w.Status.Label(),
		PriorityLabel: w.Priority.Label(),
		CategoryLabel: w.Category.Label(),
		Overdue:       w.DueDate != nil && w.DueDate.Before(h.now()) && !w.Status.IsTerminal(),
	}
}

type createItemRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Category    string  `json:"category"`
	Assignee    string  `json:"assignee"`
	Requester   string  `json:"requester"`
	DueDate     *string `json:"due_date"`
	SprintID    *int64  `json:"sprint_id"`
	ExternalRef string  `json:"external_ref"`
}

type patchItemRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	Category    *string `json:"category"`
	Assignee    *string `json:"assignee"`
	Requester   *string `json:"requester"`
	DueDate     *string `json:"due_date"` // "" clears
	Version     *int    `json:"version"`
}

func (h *Handlers) listItems(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.Store.ListItems(r.Context(), f)
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

func (h *Handlers) createItem(w http.ResponseWriter, r *http.Request) {
	const op = "create item"
	var req createItemRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in := workitem.NewItem{
		Title:       req.Title,
		Description: req.Description,
		Assignee:    req.Assignee,
		Requester:   req.Requester,
		SprintID:    req.SprintID,
		ExternalRef: req.ExternalRef,
	}
	if req.Requester == "" {
		in.Requester = ActorFrom(r.Context())
	}
	var err error
	if req.Priority != "" {
		if in.Priority, err = parsePriority(op, req.Priority); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if req.Category != "" {
		if in.Category, err = parseCategory(op, req.Category); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if in.DueDate, err = parseOptDate(op, "due_date", req.DueDate); err != nil {
		h.fail(w, r, err)
		return
	}

	item, err := h.Engine.CreateItem(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(item))
}

func (h *Handlers) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.Store.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v := h.view(item)
	for _, inc := range strings.Split(r.URL.Query().Get("include"), ",") {
		switch strings.TrimSpace(inc) {
		case "comments":
			if v.Comments, err = h.Store.ListComments(r.Context(), workitem.ItemOwner(id)); err != nil {
				h.fail(w, r, err)
				return
			}
		case "history":
			if v.History, err = h.Store.ListHistory(r.Context(), id); err != nil {
				h.fail(w, r, err)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handlers) updateItem(w http.ResponseWriter, r *http.Request) {
	const op = "update item"
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req patchItemRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	p := workitem.Patch{
		Title:       req.Title,
		Description: req.Description,
		Assignee:    req.Assignee,
		Requester:   req.Requester,
		Version:     req.Version,
	}
	if req.Status != nil {
		s, err := parseStatus(op, *req.Status)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		p.Status = &s
	}
	if req.Priority != nil {
		v, err := parsePriority(op, *req.Priority)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		p.Priority = &v
	}
	if req.Category != nil {
		v, err := parseCategory(op, *req.Category)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		p.Category = &v
	}
	if req.DueDate != nil {
		if strings.TrimSpace(*req.DueDate) == "" {
			p.ClearDueDate = true
		} else if p.DueDate, err = parseOptDate(op, "due_date", req.DueDate); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	item, err := h.Engine.UpdateItem(r.Context(), id, p, ActorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(item))
}

func (h *Handlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Engine.DeleteItem(r.Context(), id, ActorFrom(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) transitionItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.Engine.TransitionTo(r.Context(), id, req.Status, req.Reason, ActorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(item))
}

func (h *Handlers) assignItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Assignee string `json:"assignee"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.Engine.Assign(r.Context(), id, req.Assignee, ActorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(item))
}

func (h *Handlers) moveItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		SprintID *int64 `json:"sprint_id"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.Engine.MoveToSprint(r.Context(), id, req.SprintID, ActorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(item))
}

func (h *Handlers) itemHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok, err := h.Store.ItemExists(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		h.fail(w, r, workitem.NotFoundf("item history", "work item %d not found", id))
		return
	}
	history, err := h.Store.ListHistory(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if history == nil {
		history = []*workitem.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

// listComments and addComment serve both owner kinds.
func (h *Handlers) listComments(kind workitem.OwnerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		comments, err := h.Ledger.List(r.Context(), workitem.Owner{Kind: kind, ID: id})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if comments == nil {
			comments = []*workitem.Comment{}
		}
		writeJSON(w, http.StatusOK, comments)
	}
}

func (h *Handlers) addComment(kind workitem.OwnerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		var req struct {
			Content string `json:"content"`
			Author  string `json:"author"`
		}
		if err := decode(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		if req.Author == "" {
			req.Author = ActorFrom(r.Context())
		}
		c, err := h.Ledger.AddComment(r.Context(), workitem.Owner{Kind: kind, ID: id}, req.Content, req.Author)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}
