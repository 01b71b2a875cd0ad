package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/risk-orchestrator/internal/config"
	"github.com/DoyleJ11/risk-orchestrator/internal/dispatch"
	"github.com/DoyleJ11/risk-orchestrator/internal/feed"
	"github.com/DoyleJ11/risk-orchestrator/internal/gamestate"
	"github.com/DoyleJ11/risk-orchestrator/internal/httpapi"
	"github.com/DoyleJ11/risk-orchestrator/internal/round"
	"github.com/DoyleJ11/risk-orchestrator/internal/session"
	"github.com/DoyleJ11/risk-orchestrator/internal/turn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	states := gamestate.NewClient(cfg.RiskAPIURL, cfg.StateTimeout, logger.Named("gamestate"))
	dispatcher := dispatch.NewClient(cfg.DispatchMaxAttempts, logger.Named("dispatch"))
	executor := turn.NewExecutor(states, dispatcher, cfg.TurnTimeout, logger.Named("turn"))

	registry := session.NewRegistry(ctx)
	events := feed.NewFeed(ctx)
	controller := round.NewController(states, executor, registry, events,
		cfg.PlayerEndpoints, cfg.MaxRounds, logger.Named("round"))

	handler := httpapi.SetupRoutes(controller, registry, events, logger.Named("http"))

	logger.Info("listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("risk_api", cfg.RiskAPIURL),
		zap.Int("player_endpoints", len(cfg.PlayerEndpoints)))
	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
