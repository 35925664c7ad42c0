package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/permgate-org/permgate/pkg/api"
	"github.com/permgate-org/permgate/pkg/audit"
	"github.com/permgate-org/permgate/pkg/config"
	"github.com/permgate-org/permgate/pkg/engine"
	"github.com/permgate-org/permgate/pkg/events"
	"github.com/permgate-org/permgate/pkg/profile"
	"github.com/permgate-org/permgate/pkg/prompt"
	"github.com/permgate-org/permgate/pkg/store"
	"github.com/permgate-org/permgate/pkg/types"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		logger.Error("permgate exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	flagSet := flag.NewFlagSet("permgate", flag.ContinueOnError)
	configPath := flagSet.String("config", "", "Path to configuration file")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	remaining := flagSet.Args()
	mode := ""
	if len(remaining) > 0 {
		mode = remaining[0]
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if mode == "clean" {
		return cmdClean(logger, cfg.DataDir)
	}

	return cmdServe(ctx, logger, cfg)
}

func cmdClean(logger *slog.Logger, dataDir string) error {
	logger.Info("cleaning stored data...", "path", dataDir)
	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("clean data dir: %w", err)
	}
	logger.Info("cleanup complete")
	return nil
}

func cmdServe(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	fsStore := store.NewFSStore(cfg.DataDir)
	if err := fsStore.Open(ctx); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer fsStore.Close()

	bus := events.NewBus()
	clock := types.SystemClock{}

	profiles := profile.NewStore(fsStore, bus, clock, logger)
	if err := profiles.Load(ctx); err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	if err := profile.EnsureBuiltins(ctx, profiles); err != nil {
		return fmt.Errorf("ensure built-in profiles: %w", err)
	}

	auditLog := audit.NewLog(cfg.Engine.MaxAuditEntries, fsStore, clock, logger)
	if err := auditLog.Load(ctx); err != nil {
		logger.Warn("failed to load audit log", "error", err)
	}

	var workspace engine.Workspace
	if cfg.WorkspaceRoot != "" {
		workspace = engine.NewRootWorkspace(cfg.WorkspaceRoot)
	}

	policy := engine.New(engine.Deps{
		Profiles:  profiles,
		Audit:     auditLog,
		Bus:       bus,
		Clock:     clock,
		FileStat:  engine.OSFileStat{},
		Workspace: workspace,
		Logger:    logger,
	}, engine.Options{
		Enabled:          cfg.Engine.Enabled,
		DefaultProfileID: cfg.Engine.DefaultProfile,
		AuditEnabled:     cfg.Engine.AuditEnabled,
		CacheEnabled:     cfg.Engine.CacheEnabled,
		CacheTTL:         cfg.Engine.CacheTTL(),
	})
	defer policy.Close()

	prompts := prompt.NewManager(logger)

	apiCfg := api.Config{Enable: cfg.HTTP.Enable, Addr: cfg.HTTP.Addr, APIKey: cfg.HTTP.APIKey}
	server := api.NewServer(apiCfg, policy, prompts, logger)

	logger.Info("permgate starting", "addr", cfg.HTTP.Addr, "active_profile", profiles.ActiveID())
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "VERBOSE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
