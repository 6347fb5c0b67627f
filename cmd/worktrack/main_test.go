package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/worktrack/server/api"
)

// fakeServer records the last request and answers from routes.
type fakeServer struct {
	*httptest.Server
	auth   string
	method string
	path   string
	body   map[string]any
}

func newFakeServer(t *testing.T, routes map[string]http.HandlerFunc) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.auth = r.Header.Get("Authorization")
		fs.method = r.Method
		fs.path = r.URL.RequestURI()
		fs.body = nil
		_ = json.NewDecoder(r.Body).Decode(&fs.body)
		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorBody{Error: "work item 9 not found", Code: "not_found"})
			return
		}
		h(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func respond(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(viper.New())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestItemsList_UsesEnvServerAndToken(t *testing.T) {
	srv := newFakeServer(t, map[string]http.HandlerFunc{
		"GET /api/items": respond(http.StatusOK, []map[string]any{
			{"id": 1, "number": "WI-1", "title": "Login fails", "status": "open", "status_label": "Open", "priority_label": "High"},
		}),
	})
	t.Setenv("WORKTRACK_SERVER", srv.URL)
	t.Setenv("WORKTRACK_TOKEN", "tok")

	out, err := run(t, "items", "list", "--status", "open")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", srv.auth)
	assert.Equal(t, "/api/items?status=open", srv.path)
	assert.Contains(t, out, "WI-1")
	assert.Contains(t, out, "Login fails")
}

func TestItemsCreate_SendsFields(t *testing.T) {
	srv := newFakeServer(t, map[string]http.HandlerFunc{
		"POST /api/items": respond(http.StatusCreated, map[string]any{"id": 7, "number": "WI-7"}),
	})

	out, err := run(t, "--server", srv.URL, "items", "create", "Fix", "login", "--priority", "high", "--due", "2025-03-05")
	require.NoError(t, err)
	assert.Equal(t, "Fix login", srv.body["title"])
	assert.Equal(t, "high", srv.body["priority"])
	assert.Equal(t, "2025-03-05", srv.body["due_date"])
	assert.NotContains(t, srv.body, "category")
	assert.Contains(t, out, "created WI-7 (id 7)")
}

func TestItemsTransition(t *testing.T) {
	srv := newFakeServer(t, map[string]http.HandlerFunc{
		"POST /api/items/3/transition": respond(http.StatusOK, map[string]any{"id": 3, "number": "WI-3", "status_label": "In Progress"}),
	})

	out, err := run(t, "--server", srv.URL, "items", "transition", "3", "in", "progress", "--reason", "started")
	require.NoError(t, err)
	assert.Equal(t, "in progress", srv.body["status"])
	assert.Equal(t, "started", srv.body["reason"])
	assert.Contains(t, out, "WI-3 is now In Progress")
}

func TestAPIErrorSurfacesCode(t *testing.T) {
	srv := newFakeServer(t, nil)

	_, err := run(t, "--server", srv.URL, "items", "show", "9")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Equal(t, "work item 9 not found", apiErr.Msg)
}

func TestImportGitHub(t *testing.T) {
	srv := newFakeServer(t, map[string]http.HandlerFunc{
		"POST /api/import/github": respond(http.StatusOK, map[string]int{"imported": 4, "skipped": 2}),
	})

	out, err := run(t, "--server", srv.URL, "import", "github", "octo/hello")
	require.NoError(t, err)
	assert.Equal(t, "octo/hello", srv.body["repository"])
	assert.Contains(t, out, "imported 4, skipped 2")
}

func TestSprintProgress(t *testing.T) {
	srv := newFakeServer(t, map[string]http.HandlerFunc{
		"GET /api/sprints/2/progress": respond(http.StatusOK, map[string]any{"sprint_id": 2, "name": "Sprint 2", "total": 4, "completed": 1, "percent": 25}),
	})

	out, err := run(t, "--server", srv.URL, "sprints", "progress", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Sprint 2: 1/4 done (25%)")
}
