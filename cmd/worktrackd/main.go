// Command worktrackd is the worktrack server daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/worktrack/config"
	"github.com/GoCodeAlone/worktrack/importer"
	"github.com/GoCodeAlone/worktrack/internal/version"
	"github.com/GoCodeAlone/worktrack/ledger"
	"github.com/GoCodeAlone/worktrack/notify"
	"github.com/GoCodeAlone/worktrack/report"
	"github.com/GoCodeAlone/worktrack/server"
	"github.com/GoCodeAlone/worktrack/server/api"
	"github.com/GoCodeAlone/worktrack/server/stream"
	"github.com/GoCodeAlone/worktrack/workflow"
	"github.com/GoCodeAlone/worktrack/workitem"
)

const defaultConfigPath = "worktrack.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "worktrackd",
		Short:        "worktrack server daemon",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath, cmd.Flags().Changed("config"))
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath, cmd.Flags().Changed("config"))
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash to use as auth.admin_pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := server.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "worktrackd %s (commit %s, built %s)\n",
				version.Version, version.Commit, version.BuildDate)
		},
	})
	return root
}

// loadConfig reads path. A missing default file falls back to built-in defaults.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return nil, err
}

func serve(ctx context.Context, configPath string, explicit bool) error {
	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting worktrackd",
		"version", version.Version,
		"commit", version.Commit,
	)

	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := workitem.NewSQLiteStore(cfg.Database.Path, cfg.Tracker.NumberPrefix)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	dispatcher := notify.NewDispatcher(cfg.Notify, logger.With("component", "notify"))
	topic := dispatcher.DefaultTopic()
	engine := workflow.NewEngine(store, dispatcher,
		workflow.WithLogger(logger.With("component", "workflow")),
		workflow.WithLimits(cfg.Tracker.Limits),
		workflow.WithDefaultTopic(topic),
	)
	h := &api.Handlers{
		Store:  store,
		Engine: engine,
		Ledger: ledger.New(store, dispatcher,
			ledger.WithLogger(logger.With("component", "ledger")),
			ledger.WithLimits(cfg.Tracker.Limits),
			ledger.WithDefaultTopic(topic),
		),
		Reports: report.New(store),
		Events:  dispatcher,
		Logger:  logger.With("component", "api"),
		Version: version.Version,
		StartAt: time.Now(),
	}
	if cfg.GitHub.Token == "" {
		logger.Warn("github token not set, importing public repositories anonymously at the unauthenticated rate limit")
	}
	src, err := importer.NewGitHubSource(ctx, cfg.GitHub.Token, cfg.GitHub.BaseURL, logger)
	if err != nil {
		return err
	}
	h.Importer = importer.New(engine, store, src, logger.With("component", "importer"))

	hub := stream.NewHub(dispatcher, topic, logger.With("component", "stream"))
	srv := server.New(*cfg, h, hub, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	subs, dropped := dispatcher.Stats()
	logger.Info("shutdown complete", "subscribers", subs, "dropped_events", dropped)
	return nil
}
