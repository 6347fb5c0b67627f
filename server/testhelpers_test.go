package server

import (
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/worktrack/config"
	"github.com/GoCodeAlone/worktrack/ledger"
	"github.com/GoCodeAlone/worktrack/notify"
	"github.com/GoCodeAlone/worktrack/report"
	"github.com/GoCodeAlone/worktrack/server/api"
	"github.com/GoCodeAlone/worktrack/server/stream"
	"github.com/GoCodeAlone/worktrack/workflow"
	"github.com/GoCodeAlone/worktrack/workitem"
)

const testPassword = "secret"

// newTestServer wires a server over a throwaway SQLite database.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := config.Config{
		Server: config.ServerConfig{Addr: ":0"},
		Auth: config.AuthConfig{
			AdminUser: "admin",
			AdminPass: string(hash),
			JWTSecret: "test-secret-key-1234567890",
		},
	}

	store, err := workitem.NewSQLiteStore(filepath.Join(t.TempDir(), "server.db"), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	d := notify.NewDispatcher(notify.DefaultConfig(), nil)
	h := &api.Handlers{
		Store:   store,
		Engine:  workflow.NewEngine(store, d),
		Ledger:  ledger.New(store, d),
		Reports: report.New(store),
		Events:  d,
		Version: "test",
	}
	return New(cfg, h, stream.NewHub(d, notify.DefaultTopic, nil), nil)
}
