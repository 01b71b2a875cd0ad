package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/risk-orchestrator/internal/game"
	"github.com/DoyleJ11/risk-orchestrator/internal/gamestate"
	"github.com/DoyleJ11/risk-orchestrator/internal/round"
	"github.com/DoyleJ11/risk-orchestrator/internal/session"
	"github.com/DoyleJ11/risk-orchestrator/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrInvalidConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNoSession):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrGameActive), errors.Is(err, round.ErrRoundInFlight):
		status = http.StatusConflict
	case errors.Is(err, gamestate.ErrUnavailable), errors.Is(err, gamestate.ErrUpstream):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, types.ErrorResponse{Error: err.Error()})
}

func StartGame(ctrl *round.Controller, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.StartGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "bad json"})
			return
		}

		sess, err := ctrl.StartGame(r.Context(), req.NumPlayers, req.Personas)
		if err != nil {
			log.Warn("start game rejected", zap.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, types.StartGameResponse{
			GameID:  sess.GameID,
			Players: sess.Players,
			Status:  sess.Status,
		})
	}
}

func AbortGame(ctrl *round.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ctrl.AbortGame(); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func PlayRound(ctrl *round.Controller, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := ctrl.PlayRound(r.Context())
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, summary)
		case errors.Is(err, gamestate.ErrUnavailable), errors.Is(err, gamestate.ErrUpstream):
			// The round aborted but the partial ledger is still the answer.
			log.Warn("round aborted", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, summary)
		default:
			writeError(w, err)
		}
	}
}

func RunGame(ctrl *round.Controller, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := ctrl.Run(r.Context())
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, report)
		case errors.Is(err, round.ErrMaxRoundsReached):
			log.Warn("run stopped at max rounds", zap.Int("rounds", report.RoundsPlayed))
			writeJSON(w, http.StatusOK, report)
		default:
			writeError(w, err)
		}
	}
}

func Status(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, last, ok := reg.Current()
		if !ok {
			writeError(w, session.ErrNoSession)
			return
		}
		writeJSON(w, http.StatusOK, types.StatusResponse{Session: sess, LastRound: last})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
