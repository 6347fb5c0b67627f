// Package api implements the worktrack REST handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/worktrack/importer"
	"github.com/GoCodeAlone/worktrack/ledger"
	"github.com/GoCodeAlone/worktrack/notify"
	"github.com/GoCodeAlone/worktrack/report"
	"github.com/GoCodeAlone/worktrack/workflow"
	"github.com/GoCodeAlone/worktrack/workitem"
)

// GitHubImporter imports a GitHub repository's issues.
type GitHubImporter interface {
	ImportGitHub(ctx context.Context, repository string) (importer.Result, error)
}

// EventLog exposes recently published events.
type EventLog interface {
	Recent(topic string, limit int) []notify.Event
}

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Store    workitem.Repo
	Engine   *workflow.Engine
	Ledger   *ledger.Ledger
	Reports  *report.Reporter
	Importer GitHubImporter // nil disables POST /api/import/github
	Events   EventLog
	Logger   *slog.Logger
	Version  string
	StartAt  time.Time
	Now      func() time.Time
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/items", h.listItems)
	mux.HandleFunc("POST /api/items", h.createItem)
	mux.HandleFunc("GET /api/items/{id}", h.getItem)
	mux.HandleFunc("PATCH /api/items/{id}", h.updateItem)
	mux.HandleFunc("DELETE /api/items/{id}", h.deleteItem)
	mux.HandleFunc("POST /api/items/{id}/transition", h.transitionItem)
	mux.HandleFunc("POST /api/items/{id}/assign", h.assignItem)
	mux.HandleFunc("POST /api/items/{id}/sprint", h.moveItem)
	mux.HandleFunc("GET /api/items/{id}/comments", h.listComments(workitem.OwnerItem))
	mux.HandleFunc("POST /api/items/{id}/comments", h.addComment(workitem.OwnerItem))
	mux.HandleFunc("GET /api/items/{id}/history", h.itemHistory)

	mux.HandleFunc("GET /api/sprints", h.listSprints)
	mux.HandleFunc("POST /api/sprints", h.createSprint)
	mux.HandleFunc("GET /api/sprints/{id}", h.getSprint)
	mux.HandleFunc("PATCH /api/sprints/{id}", h.updateSprint)
	mux.HandleFunc("DELETE /api/sprints/{id}", h.deleteSprint)
	mux.HandleFunc("POST /api/sprints/{id}/transition", h.transitionSprint)
	mux.HandleFunc("GET /api/sprints/{id}/comments", h.listComments(workitem.OwnerSprint))
	mux.HandleFunc("POST /api/sprints/{id}/comments", h.addComment(workitem.OwnerSprint))
	mux.HandleFunc("GET /api/sprints/{id}/progress", h.sprintProgress)

	mux.HandleFunc("GET /api/reports/status", h.reportStatus)
	mux.HandleFunc("GET /api/reports/priority", h.reportPriority)
	mux.HandleFunc("GET /api/reports/category", h.reportCategory)
	mux.HandleFunc("GET /api/reports/overdue", h.reportOverdue)
	mux.HandleFunc("GET /api/reports/summary", h.reportSummary)

	mux.HandleFunc("POST /api/import/github", h.importGitHub)
	mux.HandleFunc("GET /api/events/recent", h.recentEvents)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError writes a JSON error response with an explicit code.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorBody{Error: msg, Code: code})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind workitem.Kind) int {
	switch kind {
	case workitem.KindNotFound:
		return http.StatusNotFound
	case workitem.KindValidation:
		return http.StatusBadRequest
	case workitem.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case workitem.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail maps err to a response. Persistence and untyped errors are logged
// and answered without internal detail.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := workitem.KindOf(err)
	status := StatusFor(kind)
	if status == http.StatusInternalServerError {
		h.logger().ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("err", err))
		if kind == "" {
			kind = workitem.KindPersistence
		}
		writeError(w, status, string(kind), "internal error")
		return
	}
	msg := err.Error()
	var te *workitem.Error
	if errors.As(err, &te) && te.Msg != "" {
		msg = te.Msg
		if te.Field != "" {
			msg = te.Field + ": " + msg
		}
	}
	writeError(w, status, string(kind), msg)
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, workitem.Invalid("parse path", "id", "invalid id "+strconv.Quote(raw))
	}
	return id, nil
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return workitem.Invalid("decode request", "body", "invalid request body: "+err.Error())
	}
	return nil
}

// --- Events / status / version ---

func (h *Handlers) recentEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		writeJSON(w, http.StatusOK, []notify.Event{})
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	events := h.Events.Recent(r.URL.Query().Get("topic"), limit)
	if events == nil {
		events = []notify.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handlers) importGitHub(w http.ResponseWriter, r *http.Request) {
	if h.Importer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "github import is not configured")
		return
	}
	var req struct {
		Repository string `json:"repository"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Importer.ImportGitHub(r.Context(), req.Repository)
	if err != nil {
		if workitem.KindOf(err) == "" {
			h.logger().WarnContext(r.Context(), "github import failed", slog.String("repo", req.Repository), slog.Any("err", err))
			writeError(w, http.StatusBadGateway, "upstream", err.Error())
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{
		"status":  "ok",
		"version": h.Version,
	}
	if !h.StartAt.IsZero() {
		body["uptime"] = time.Since(h.StartAt).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, body)
}

// StatusHandler returns the status handler function for external registration.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return h.status
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
