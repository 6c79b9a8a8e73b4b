// Package main provides the ruleset engine daemon. It assembles the item
// catalogue, Lua hook packs, and the authority loop, optionally preloading a
// persisted actor roster, and runs until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sevenleaf/ascendant/internal/config"
	"github.com/sevenleaf/ascendant/internal/game/dice"
	"github.com/sevenleaf/ascendant/internal/game/engine"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/observability"
	"github.com/sevenleaf/ascendant/internal/scripting"
	"github.com/sevenleaf/ascendant/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	roster := flag.String("roster", "", "comma-separated participant ids whose persisted entities are preloaded")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL for entity persistence.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	actors := postgres.NewActorRepository(pool.DB())

	// Load the item catalogue.
	catStart := time.Now()
	registry, err := item.LoadDirectory(cfg.Content.Dir)
	if err != nil {
		logger.Fatal("loading item definitions", zap.Error(err))
	}
	logger.Info("item catalogue loaded",
		zap.Int("count", len(registry.All())),
		zap.Duration("elapsed", time.Since(catStart)),
	)

	// Initialise scripting and load hook packs.
	var scripts *scripting.Manager
	if cfg.Content.ScriptDir != "" {
		scriptStart := time.Now()
		roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
		scripts = scripting.NewManager(roller, logger)
		if info, statErr := os.Stat(cfg.Content.ScriptDir); statErr == nil && info.IsDir() {
			if err := scripts.LoadGlobal(cfg.Content.ScriptDir, cfg.Content.LuaInstructionLimit); err != nil {
				logger.Fatal("loading hook scripts",
					zap.String("dir", cfg.Content.ScriptDir), zap.Error(err))
			}
			logger.Info("hook scripts loaded",
				zap.String("dir", cfg.Content.ScriptDir),
				zap.Duration("elapsed", time.Since(scriptStart)))
		} else {
			logger.Warn("script dir not found, hooks disabled",
				zap.String("dir", cfg.Content.ScriptDir))
		}
	}

	eng := engine.New(engine.Options{
		Config:   cfg,
		Registry: registry,
		Scripts:  scripts,
		Logger:   logger,
	})

	// Preload persisted entities for the named participants.
	loaded := 0
	for _, owner := range splitRoster(*roster) {
		list, err := actors.ListByOwner(ctx, owner)
		if err != nil {
			logger.Fatal("loading roster", zap.String("owner", owner), zap.Error(err))
		}
		for _, a := range list {
			eng.AddActor(a)
			loaded++
		}
	}
	if loaded > 0 {
		logger.Info("roster preloaded", zap.Int("entities", loaded))
	}

	logger.Info("engine ready",
		zap.Int("queue_size", cfg.Engine.IntentQueueSize),
		zap.Int("max_participants", cfg.Session.MaxParticipants),
		zap.Duration("startup", time.Since(start)),
	)

	eng.Run(ctx)

	// Persist the live roster before exit. The authority loop has stopped,
	// so nothing mutates entities concurrently.
	persistCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	saved := 0
	for _, a := range eng.Actors() {
		_, version, err := actors.Get(persistCtx, a.ID)
		if err != nil {
			logger.Warn("skipping unsaved entity", zap.String("id", a.ID), zap.Error(err))
			continue
		}
		if _, err := actors.Save(persistCtx, a, version); err != nil {
			logger.Error("persisting entity", zap.String("id", a.ID), zap.Error(err))
			continue
		}
		saved++
	}
	logger.Info("shutdown complete", zap.Int("persisted", saved))
}

func splitRoster(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
