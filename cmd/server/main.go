package main

import (
	"context"

	"github.com/kindredapp/kindred/internal/app"
	"github.com/kindredapp/kindred/internal/cache"
	"github.com/kindredapp/kindred/internal/config"
	"github.com/kindredapp/kindred/internal/db"
	"github.com/kindredapp/kindred/internal/logger"
	"github.com/kindredapp/kindred/internal/server"
	"github.com/kindredapp/kindred/internal/service/daily"
	"github.com/kindredapp/kindred/internal/service/matching"
	"github.com/kindredapp/kindred/internal/service/undo"
	"github.com/kindredapp/kindred/internal/session"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB through the lazy gateway
	gateway := db.NewGateway(cfg)
	database, err := gateway.DB()
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log, cfg)

	if cfg.App.Env == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	stripes := session.New(cfg.Matching.StripeCount)
	dailySvc := daily.NewService(appCtx)
	undoSvc := undo.NewService(appCtx, stripes)
	matchingSvc := matching.NewService(appCtx, dailySvc, undoSvc, stripes)

	handler := server.NewHandler(appCtx, matchingSvc, dailySvc, undoSvc)

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.StartHTTPServer(cfg, handler); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
