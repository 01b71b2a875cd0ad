// Package turn drives a single (round, seat) pair through its state machine:
// fetch authoritative state, re-validate that the seat may act, dispatch to
// the remote player, classify the outcome.
package turn

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/risk-orchestrator/internal/game"
	"github.com/DoyleJ11/risk-orchestrator/internal/gamestate"
	"github.com/DoyleJ11/risk-orchestrator/internal/metrics"
)

type StateSource interface {
	GameState(ctx context.Context) (gamestate.Snapshot, error)
}

type Dispatcher interface {
	DispatchTurn(ctx context.Context, endpoint string, a game.TurnAssignment) game.TurnResult
}

type Executor struct {
	states      StateSource
	dispatch    Dispatcher
	turnTimeout time.Duration
	log         *zap.Logger
}

func NewExecutor(states StateSource, dispatch Dispatcher, turnTimeout time.Duration, log *zap.Logger) *Executor {
	return &Executor{
		states:      states,
		dispatch:    dispatch,
		turnTimeout: turnTimeout,
		log:         log,
	}
}

// Execute runs one seat's turn and always returns exactly one TurnResult.
//
// The round controller iterates seats optimistically; the authority remains
// the source of truth for whose turn it is. The seat is re-validated against
// a fresh snapshot here so an eliminated or already-resolved seat is never
// double-dispatched. Elimination is checked before turn ownership: an
// eliminated seat is never the current seat, and skipped_eliminated is the
// more precise outcome.
func (e *Executor) Execute(ctx context.Context, gameID string, seat game.PlayerConfig) game.TurnResult {
	start := time.Now()

	snap, err := e.states.GameState(ctx)
	if err != nil {
		// Upstream state is load-bearing; no turn proceeds on unknown state.
		e.log.Error("turn aborted: game state unavailable",
			zap.Int("seat", seat.SeatIndex), zap.Error(err))
		return e.record(game.TurnResult{
			SeatIndex:   seat.SeatIndex,
			Status:      game.TurnErrored,
			ErrorDetail: fmt.Sprintf("game state unavailable: %v", err),
		}, start)
	}

	if snap.SeatEliminated(seat.SeatIndex) {
		e.log.Info("seat eliminated, skipping", zap.Int("seat", seat.SeatIndex))
		return e.record(game.TurnResult{
			SeatIndex: seat.SeatIndex,
			Status:    game.TurnSkippedEliminated,
		}, start)
	}

	if cur, ok := snap.CurrentSeat(); !ok || cur != seat.SeatIndex {
		e.log.Info("seat is not current, skipping",
			zap.Int("seat", seat.SeatIndex), zap.Int("current", snap.CurrentPlayer))
		return e.record(game.TurnResult{
			SeatIndex: seat.SeatIndex,
			Status:    game.TurnSkippedNotCurrent,
		}, start)
	}

	assignment := game.TurnAssignment{
		SeatIndex:   seat.SeatIndex,
		PersonaTag:  seat.PersonaTag,
		GameID:      gameID,
		IssuedAt:    time.Now().UTC(),
		TurnTimeout: e.turnTimeout,
	}
	e.log.Info("dispatching turn",
		zap.Int("seat", seat.SeatIndex),
		zap.String("persona", seat.PersonaTag),
		zap.String("endpoint", seat.Endpoint))

	res := e.dispatch.DispatchTurn(ctx, seat.Endpoint, assignment)
	res.SeatIndex = seat.SeatIndex
	if res.Status != game.TurnCompleted {
		res.ActionsTaken = nil
	}

	e.log.Info("turn finished",
		zap.Int("seat", seat.SeatIndex),
		zap.String("status", string(res.Status)),
		zap.Int64("duration_ms", res.DurationMS))
	metrics.TurnsTotal.WithLabelValues(string(res.Status)).Inc()
	return res
}

func (e *Executor) record(res game.TurnResult, start time.Time) game.TurnResult {
	res.DurationMS = time.Since(start).Milliseconds()
	metrics.TurnsTotal.WithLabelValues(string(res.Status)).Inc()
	return res
}
