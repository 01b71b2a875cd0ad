// Package round drives full rounds: one turn per configured seat, in seat
// order, strictly serialized against the authority.
package round

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/risk-orchestrator/internal/feed"
	"github.com/DoyleJ11/risk-orchestrator/internal/game"
	"github.com/DoyleJ11/risk-orchestrator/internal/gamestate"
	"github.com/DoyleJ11/risk-orchestrator/internal/metrics"
	"github.com/DoyleJ11/risk-orchestrator/internal/session"
)

// ErrRoundInFlight rejects a second concurrent round against the same
// session instead of letting it corrupt the ledger.
var ErrRoundInFlight = errors.New("a round is already in flight")

// ErrMaxRoundsReached stops run-to-completion before the authority reports a
// winner.
var ErrMaxRoundsReached = errors.New("max rounds reached without game completion")

type StateSource interface {
	GameState(ctx context.Context) (gamestate.Snapshot, error)
	NewGame(ctx context.Context, numPlayers int) (string, error)
}

type TurnRunner interface {
	Execute(ctx context.Context, gameID string, seat game.PlayerConfig) game.TurnResult
}

type Registry interface {
	Create(s *game.Session) error
	Current() (*game.Session, *game.RoundSummary, bool)
	RecordRound(summary game.RoundSummary) error
	End(status game.SessionStatus) error
}

// RunReport is the outcome of driving rounds until the game ends.
type RunReport struct {
	RoundsPlayed     int                `json:"rounds_played"`
	FinalStatus      game.GameStatus    `json:"final_status"`
	Winner           string             `json:"winner,omitempty"`
	MaxRoundsReached bool               `json:"max_rounds_reached,omitempty"`
	LastRound        *game.RoundSummary `json:"last_round,omitempty"`
}

type Controller struct {
	states    StateSource
	turns     TurnRunner
	registry  Registry
	feed      *feed.Feed
	endpoints []string
	maxRounds int
	log       *zap.Logger

	mu sync.Mutex // at most one round in flight per session
}

func NewController(states StateSource, turns TurnRunner, registry Registry, f *feed.Feed,
	endpoints []string, maxRounds int, log *zap.Logger) *Controller {
	return &Controller{
		states:    states,
		turns:     turns,
		registry:  registry,
		feed:      f,
		endpoints: endpoints,
		maxRounds: maxRounds,
		log:       log,
	}
}

// StartGame validates the configuration, asks the authority for a fresh
// game, and installs the session in the registry.
func (c *Controller) StartGame(ctx context.Context, numPlayers int, personas []string) (*game.Session, error) {
	if cur, _, ok := c.registry.Current(); ok &&
		(cur.Status == game.StatusNotStarted || cur.Status == game.StatusInProgress) {
		return nil, session.ErrGameActive
	}

	seats, err := game.BuildSeats(numPlayers, personas, c.endpoints)
	if err != nil {
		return nil, err
	}

	gameID, err := c.states.NewGame(ctx, numPlayers)
	if err != nil {
		return nil, err
	}

	sess := game.NewSession(gameID, seats)
	if err := c.registry.Create(sess); err != nil {
		return nil, err
	}

	c.log.Info("game started",
		zap.String("game_id", gameID),
		zap.Int("num_players", numPlayers))
	c.feed.Publish(feed.Event{Type: feed.EventGameStarted, GameID: gameID})
	return sess, nil
}

// AbortGame moves the active session to aborted so a new game can start.
func (c *Controller) AbortGame() error {
	cur, _, ok := c.registry.Current()
	if !ok {
		return session.ErrNoSession
	}
	if err := c.registry.End(game.StatusAborted); err != nil {
		return err
	}
	c.log.Info("game aborted", zap.String("game_id", cur.GameID))
	c.feed.Publish(feed.Event{Type: feed.EventGameAborted, GameID: cur.GameID})
	return nil
}

// PlayRound gives every configured seat one turn, in seat order, and returns
// the round's ledger. On authority failure the partial summary is returned
// together with the error.
func (c *Controller) PlayRound(ctx context.Context) (game.RoundSummary, error) {
	if !c.mu.TryLock() {
		return game.RoundSummary{}, ErrRoundInFlight
	}
	defer c.mu.Unlock()
	return c.playRound(ctx)
}

func (c *Controller) playRound(ctx context.Context) (game.RoundSummary, error) {
	sess, _, ok := c.registry.Current()
	if !ok {
		return game.RoundSummary{}, session.ErrNoSession
	}
	if sess.Status == game.StatusAborted {
		return game.RoundSummary{}, fmt.Errorf("%w: session aborted", session.ErrNoSession)
	}

	attempted := sess.RoundNumber + 1

	snap, err := c.states.GameState(ctx)
	if err != nil {
		metrics.RoundsTotal.WithLabelValues("aborted").Inc()
		return game.RoundSummary{
			RoundNumber:     attempted,
			Results:         []game.TurnResult{},
			GameStatusAfter: game.GamePlaying,
			Success:         false,
			AbortReason:     fmt.Sprintf("authority unreachable at round start: %v", err),
		}, err
	}

	// A game that is already over yields an empty, successful summary and no
	// dispatches.
	if snap.GameOver {
		summary := game.RoundSummary{
			RoundNumber:     sess.RoundNumber,
			Results:         []game.TurnResult{},
			GameStatusAfter: game.GameCompleted,
			Success:         true,
		}
		if err := c.registry.RecordRound(summary); err != nil {
			return summary, err
		}
		metrics.RoundsTotal.WithLabelValues("game_over").Inc()
		return summary, nil
	}

	c.log.Info("round starting",
		zap.String("game_id", sess.GameID),
		zap.Int("round", attempted))

	results := make([]game.TurnResult, 0, len(sess.Players))
	statusAfter := game.GamePlaying

	// Seats run strictly in order: each turn mutates the state the next seat
	// observes, and the authority is single-threaded per game.
	for _, seat := range sess.Players {
		c.feed.Publish(feed.Event{
			Type: feed.EventTurnStarted, GameID: sess.GameID,
			Round: attempted, Seat: seat.SeatIndex,
		})

		res := c.turns.Execute(ctx, sess.GameID, seat)
		results = append(results, res)

		c.feed.Publish(feed.Event{
			Type: feed.EventTurnFinished, GameID: sess.GameID,
			Round: attempted, Seat: seat.SeatIndex,
			Status: string(res.Status), Detail: res.ErrorDetail,
		})

		snap, err := c.states.GameState(ctx)
		if err != nil {
			// The authority itself is gone; the round cannot continue. The
			// session survives and the round may be retried once the
			// authority recovers.
			abortReason := fmt.Sprintf("authority unreachable mid-round: %v", err)
			c.log.Error("round abandoned", zap.Int("round", attempted), zap.Error(err))
			metrics.RoundsTotal.WithLabelValues("aborted").Inc()
			return game.RoundSummary{
				RoundNumber:      attempted,
				Results:          results,
				PlayersProcessed: len(results),
				GameStatusAfter:  game.GamePlaying,
				Success:          false,
				AbortReason:      abortReason,
			}, err
		}
		if snap.GameOver {
			// Remaining seats are legitimately absent: the round ended.
			statusAfter = game.GameCompleted
			break
		}
	}

	summary := game.RoundSummary{
		RoundNumber:      attempted,
		Results:          results,
		PlayersProcessed: len(results),
		GameStatusAfter:  statusAfter,
		Success:          countErrors(results) == 0,
	}
	if err := c.registry.RecordRound(summary); err != nil {
		return summary, err
	}

	c.log.Info("round finished",
		zap.Int("round", attempted),
		zap.Int("players_processed", summary.PlayersProcessed),
		zap.Bool("success", summary.Success),
		zap.String("game_status", string(statusAfter)))
	c.feed.Publish(feed.Event{
		Type: feed.EventRoundFinished, GameID: sess.GameID,
		Round: attempted, Status: string(statusAfter),
	})
	metrics.RoundsTotal.WithLabelValues("completed").Inc()
	return summary, nil
}

// Run plays rounds until the authority reports game over, an authority
// failure aborts a round, or maxRounds is exhausted. The in-flight lock is
// held for the whole run.
func (c *Controller) Run(ctx context.Context) (RunReport, error) {
	if !c.mu.TryLock() {
		return RunReport{}, ErrRoundInFlight
	}
	defer c.mu.Unlock()

	report := RunReport{FinalStatus: game.GamePlaying}
	for i := 0; i < c.maxRounds; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		summary, err := c.playRound(ctx)
		if err != nil {
			return report, err
		}
		report.RoundsPlayed++
		s := summary
		report.LastRound = &s

		if summary.GameStatusAfter == game.GameCompleted {
			report.FinalStatus = game.GameCompleted
			if snap, err := c.states.GameState(ctx); err == nil {
				report.Winner = snap.Winner
			}
			return report, nil
		}

		// Brief pause so back-to-back rounds do not hammer the authority.
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	report.MaxRoundsReached = true
	return report, ErrMaxRoundsReached
}

func countErrors(results []game.TurnResult) int {
	n := 0
	for _, r := range results {
		if r.Status == game.TurnErrored {
			n++
		}
	}
	return n
}
