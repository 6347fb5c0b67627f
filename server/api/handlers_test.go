package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GoCodeAlone/worktrack/importer"
	"github.com/GoCodeAlone/worktrack/ledger"
	"github.com/GoCodeAlone/worktrack/notify"
	"github.com/GoCodeAlone/worktrack/report"
	"github.com/GoCodeAlone/worktrack/server/api"
	"github.com/GoCodeAlone/worktrack/workflow"
	"github.com/GoCodeAlone/worktrack/workitem"
)

// --- Test doubles ---

type fakeImporter struct {
	res importer.Result
	err error
}

func (f *fakeImporter) ImportGitHub(_ context.Context, _ string) (importer.Result, error) {
	return f.res, f.err
}

// clock advances one second per reading so rows get distinct timestamps.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// --- Test helpers ---

type env struct {
	h   *api.Handlers
	mux *http.ServeMux
	d   *notify.Dispatcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := workitem.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clk := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	d := notify.NewDispatcher(notify.DefaultConfig(), nil)
	h := &api.Handlers{
		Store:   store,
		Engine:  workflow.NewEngine(store, d, workflow.WithClock(clk.now)),
		Ledger:  ledger.New(store, d, ledger.WithClock(clk.now)),
		Reports: report.New(store),
		Events:  d,
		Logger:  slog.Default(),
		Version: "test",
		Now:     func() time.Time { return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) },
	}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &env{h: h, mux: mux, d: d}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req = req.WithContext(api.WithActor(req.Context(), "alice"))
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func expectCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	if code == "" {
		return
	}
	body := decodeBody[api.ErrorBody](t, rr)
	if body.Code != code {
		t.Errorf("expected code %q, got %q (%s)", code, body.Code, body.Error)
	}
}

func (e *env) createItem(t *testing.T, body string) api.ItemView {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/items", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	return decodeBody[api.ItemView](t, rr)
}

// --- Tests ---

func TestListItems_Empty(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodGet, "/api/items", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("expected empty array, got %s", got)
	}
}

func TestCreateAndGetItem(t *testing.T) {
	e := newEnv(t)
	created := e.createItem(t, `{"title":"Login fails","priority":"high","category":"bug","due_date":"2025-03-05"}`)

	if created.Number != "WI-1" {
		t.Errorf("expected number WI-1, got %q", created.Number)
	}
	if created.Status != workitem.StatusOpen || created.Priority != workitem.PriorityHigh {
		t.Errorf("unexpected status/priority %q/%q", created.Status, created.Priority)
	}
	if created.Requester != "alice" {
		t.Errorf("expected requester from actor, got %q", created.Requester)
	}
	if !created.Overdue {
		t.Error("expected item due before now to be overdue")
	}

	rr := e.do(t, http.MethodGet, "/api/items/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	got := decodeBody[map[string]any](t, rr)
	if got["title"] != "Login fails" {
		t.Errorf("expected title, got %v", got["title"])
	}
	if _, ok := got["comments"]; ok {
		t.Error("comments present without include")
	}
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)
	e.createItem(t, `{"title":"Exists"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing item", http.MethodGet, "/api/items/99", "", http.StatusNotFound, "not_found"},
		{"bad id", http.MethodGet, "/api/items/abc", "", http.StatusBadRequest, "validation"},
		{"blank title", http.MethodPost, "/api/items", `{"title":"  "}`, http.StatusBadRequest, "validation"},
		{"unknown field", http.MethodPost, "/api/items", `{"title":"x","colour":"red"}`, http.StatusBadRequest, "validation"},
		{"bad priority", http.MethodPost, "/api/items", `{"title":"x","priority":"urgent-ish"}`, http.StatusBadRequest, "validation"},
		{"bad date", http.MethodPost, "/api/items", `{"title":"x","due_date":"tomorrow"}`, http.StatusBadRequest, "validation"},
		{"bad filter", http.MethodGet, "/api/items?status=nope", "", http.StatusBadRequest, "validation"},
		{"bad status", http.MethodPost, "/api/items/1/transition", `{"status":"archived"}`, http.StatusUnprocessableEntity, "invalid_transition"},
		{"stale version", http.MethodPatch, "/api/items/1", `{"title":"New","version":7}`, http.StatusConflict, "conflict"},
		{"missing sprint", http.MethodPost, "/api/items/1/sprint", `{"sprint_id":42}`, http.StatusNotFound, "not_found"},
		{"comment on missing sprint", http.MethodPost, "/api/sprints/3/comments", `{"content":"hi"}`, http.StatusNotFound, "not_found"},
		{"empty comment", http.MethodPost, "/api/items/1/comments", `{"content":"   "}`, http.StatusBadRequest, "validation"},
		{"bad sprint status", http.MethodPost, "/api/sprints/1/transition", `{"status":"paused"}`, http.StatusUnprocessableEntity, "invalid_transition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectCode(t, e.do(t, tt.method, tt.path, tt.body), tt.status, tt.code)
		})
	}
}

func TestTransitionRecordsHistory(t *testing.T) {
	e := newEnv(t)
	e.createItem(t, `{"title":"Login fails"}`)

	rr := e.do(t, http.MethodPost, "/api/items/1/transition", `{"status":"In Progress","reason":"picked up"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("transition: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = e.do(t, http.MethodPost, "/api/items/1/transition", `{"status":"resolved"}`)
	item := decodeBody[api.ItemView](t, rr)
	if item.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}

	history := decodeBody[[]workitem.HistoryEntry](t, e.do(t, http.MethodGet, "/api/items/1/history", ""))
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].NewValue != "Resolved" || history[1].Reason != "picked up" {
		t.Errorf("unexpected history %+v", history)
	}
	if history[1].ChangedBy != "alice" {
		t.Errorf("expected changed_by alice, got %q", history[1].ChangedBy)
	}
}

func TestUpdateItem_ClearsDueDate(t *testing.T) {
	e := newEnv(t)
	e.createItem(t, `{"title":"Dated","due_date":"2025-04-01"}`)

	rr := e.do(t, http.MethodPatch, "/api/items/1", `{"due_date":"","version":1}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	item := decodeBody[api.ItemView](t, rr)
	if item.DueDate != nil {
		t.Errorf("expected due date cleared, got %v", item.DueDate)
	}
	if item.Version != 2 {
		t.Errorf("expected version 2, got %d", item.Version)
	}
}

func TestGetItem_IncludeCommentsAndHistory(t *testing.T) {
	e := newEnv(t)
	e.createItem(t, `{"title":"Login fails"}`)
	e.do(t, http.MethodPost, "/api/items/1/comments", `{"content":"first"}`)
	e.do(t, http.MethodPost, "/api/items/1/comments", `{"content":"second","author":"bob"}`)
	e.do(t, http.MethodPost, "/api/items/1/assign", `{"assignee":"carol"}`)

	rr := e.do(t, http.MethodGet, "/api/items/1?include=comments,history", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	item := decodeBody[api.ItemView](t, rr)
	if len(item.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(item.Comments))
	}
	if item.Comments[0].Content != "second" || item.Comments[0].Author != "bob" {
		t.Errorf("expected newest comment first, got %+v", item.Comments[0])
	}
	if item.Comments[1].Author != "alice" {
		t.Errorf("expected author from actor, got %q", item.Comments[1].Author)
	}
	if len(item.History) != 1 || item.History[0].Field != "Assignee" {
		t.Errorf("unexpected history %+v", item.History)
	}
}

func TestSprintLifecycle(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodPost, "/api/sprints", `{"name":"Sprint 1","start_date":"2025-03-01","end_date":"2025-03-14"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create sprint: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	sprint := decodeBody[workitem.Sprint](t, rr)

	e.createItem(t, `{"title":"A","sprint_id":1}`)
	e.createItem(t, `{"title":"B","sprint_id":1}`)
	e.do(t, http.MethodPost, "/api/items/1/transition", `{"status":"closed"}`)

	progress := decodeBody[report.Progress](t, e.do(t, http.MethodGet, "/api/sprints/1/progress", ""))
	if progress.Total != 2 || progress.Completed != 1 || progress.Percent != 50 {
		t.Errorf("unexpected progress %+v", progress)
	}

	rr = e.do(t, http.MethodPost, "/api/sprints/1/transition", `{"status":"active"}`)
	if got := decodeBody[workitem.Sprint](t, rr); got.Status != workitem.SprintActive {
		t.Errorf("expected active sprint, got %q", got.Status)
	}
	sprints := decodeBody[[]workitem.Sprint](t, e.do(t, http.MethodGet, "/api/sprints?status=active", ""))
	if len(sprints) != 1 || sprints[0].ID != sprint.ID {
		t.Errorf("unexpected sprints %+v", sprints)
	}

	expectCode(t, e.do(t, http.MethodDelete, "/api/sprints/1", ""), http.StatusNoContent, "")
	items := decodeBody[[]api.ItemView](t, e.do(t, http.MethodGet, "/api/items?sprint_id=none", ""))
	if len(items) != 2 {
		t.Errorf("expected items detached from deleted sprint, got %d", len(items))
	}
}

func TestReports(t *testing.T) {
	e := newEnv(t)
	e.createItem(t, `{"title":"Late","due_date":"2025-03-02","priority":"critical"}`)
	e.createItem(t, `{"title":"Later","due_date":"2025-04-02"}`)

	counts := decodeBody[map[string]int](t, e.do(t, http.MethodGet, "/api/reports/priority", ""))
	if counts["critical"] != 1 || counts["medium"] != 1 || counts["low"] != 0 {
		t.Errorf("unexpected priority counts %v", counts)
	}
	if _, ok := counts["low"]; !ok {
		t.Error("expected zero-filled priority counts")
	}

	overdue := decodeBody[[]api.ItemView](t, e.do(t, http.MethodGet, "/api/reports/overdue", ""))
	if len(overdue) != 1 || overdue[0].Title != "Late" {
		t.Errorf("unexpected overdue %+v", overdue)
	}

	summary := decodeBody[report.Summary](t, e.do(t, http.MethodGet, "/api/reports/summary", ""))
	if summary.Total != 2 || summary.Overdue != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestDeleteItem(t *testing.T) {
	e := newEnv(t)
	e.createItem(t, `{"title":"Doomed"}`)
	expectCode(t, e.do(t, http.MethodDelete, "/api/items/1", ""), http.StatusNoContent, "")
	expectCode(t, e.do(t, http.MethodGet, "/api/items/1", ""), http.StatusNotFound, "not_found")

	events := decodeBody[[]notify.Event](t, e.do(t, http.MethodGet, "/api/events/recent?topic=global", ""))
	if len(events) != 1 || events[0].Kind != notify.ItemDeleted {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestImportGitHub(t *testing.T) {
	e := newEnv(t)
	expectCode(t, e.do(t, http.MethodPost, "/api/import/github", `{"repository":"o/r"}`), http.StatusServiceUnavailable, "unavailable")

	e.h.Importer = &fakeImporter{res: importer.Result{Imported: 3, Skipped: 1}}
	rr := e.do(t, http.MethodPost, "/api/import/github", `{"repository":"o/r"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if res := decodeBody[importer.Result](t, rr); res.Imported != 3 || res.Skipped != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	e.h.Importer = &fakeImporter{err: errors.New("rate limited")}
	expectCode(t, e.do(t, http.MethodPost, "/api/import/github", `{"repository":"o/r"}`), http.StatusBadGateway, "upstream")
}

func TestStatusEndpoint(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody[map[string]string](t, rr)
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}
