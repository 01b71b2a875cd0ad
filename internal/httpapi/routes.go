package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/risk-orchestrator/internal/feed"
	"github.com/DoyleJ11/risk-orchestrator/internal/round"
	"github.com/DoyleJ11/risk-orchestrator/internal/session"
	"github.com/DoyleJ11/risk-orchestrator/internal/ws"
)

func SetupRoutes(ctrl *round.Controller, reg *session.Registry, f *feed.Feed, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/games", StartGame(ctrl, log))
	r.Delete("/games", AbortGame(ctrl))
	r.Post("/rounds", PlayRound(ctrl, log))
	r.Post("/run", RunGame(ctrl, log))
	r.Get("/status", Status(reg))
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.Handler(f, log))
	return r
}
