package gamestate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/risk-orchestrator/internal/game"
)

var (
	// ErrUnavailable means the rules authority could not be reached within
	// the state timeout. Safe to retry the same command.
	ErrUnavailable = errors.New("game state authority unavailable")
	// ErrUpstream means the authority answered but with an error or a
	// malformed body.
	ErrUpstream = errors.New("game state authority error")
)

// PlayerState is the authority's view of one player.
type PlayerState struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Territories []string `json:"territories"`
	Armies      int      `json:"armies"`
}

// Snapshot is the authority's full view of the game at one instant.
type Snapshot struct {
	GameID        string                 `json:"game_id"`
	CurrentPlayer int                    `json:"current_player"`
	Phase         string                 `json:"phase"`
	CurrentTurn   int                    `json:"current_turn"`
	GameOver      bool                   `json:"game_over"`
	Winner        string                 `json:"winner,omitempty"`
	Players       map[string]PlayerState `json:"players"`
}

// CurrentSeat reports whose turn it is. ok is false when the game is over or
// the authority is between turns.
func (s Snapshot) CurrentSeat() (int, bool) {
	if s.GameOver || s.CurrentPlayer < 1 {
		return 0, false
	}
	return s.CurrentPlayer, true
}

// PlayerBySeat looks a player up by 1-based seat index.
func (s Snapshot) PlayerBySeat(seat int) (PlayerState, bool) {
	for _, p := range s.Players {
		if p.ID == seat {
			return p, true
		}
	}
	return PlayerState{}, false
}

// SeatEliminated reports whether a seat is out of the game: absent from the
// player list or holding zero territories.
func (s Snapshot) SeatEliminated(seat int) bool {
	p, ok := s.PlayerBySeat(seat)
	if !ok {
		return true
	}
	return len(p.Territories) == 0
}

// Client is a thin translation layer over the rules authority's HTTP API.
// Every call is an independent request/response; the client holds no game
// state.
type Client struct {
	baseURL string
	timeout time.Duration
	httpc   *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpc:   &http.Client{},
		log:     log,
	}
}

// GameState fetches the current snapshot. The state timeout is deliberately
// much shorter than the turn timeout: this call gates every turn.
func (c *Client) GameState(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/game-state", nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn("game-state fetch failed", zap.Error(err))
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("%w: game-state returned %d", ErrUpstream, resp.StatusCode)
	}
	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode game-state: %v", ErrUpstream, err)
	}
	return snap, nil
}

type newGameRequest struct {
	NumPlayers int `json:"num_players"`
}

type newGameResponse struct {
	Success bool   `json:"success"`
	GameID  string `json:"game_id"`
}

// NewGame asks the authority to start a fresh game and returns its id. When
// the authority omits the id from the response it is read back from the
// first snapshot.
func (c *Client) NewGame(ctx context.Context, numPlayers int) (string, error) {
	if numPlayers < game.MinPlayers || numPlayers > game.MaxPlayers {
		return "", fmt.Errorf("%w: num_players must be between %d and %d, got %d",
			game.ErrInvalidConfiguration, game.MinPlayers, game.MaxPlayers, numPlayers)
	}

	body, err := json.Marshal(newGameRequest{NumPlayers: numPlayers})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/new-game", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn("new-game failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: new-game returned %d", ErrUpstream, resp.StatusCode)
	}
	var out newGameResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode new-game: %v", ErrUpstream, err)
	}
	if !out.Success && out.GameID == "" {
		return "", fmt.Errorf("%w: new-game rejected", ErrUpstream)
	}

	gameID := out.GameID
	if gameID == "" {
		snap, err := c.GameState(ctx)
		if err != nil {
			return "", err
		}
		gameID = snap.GameID
	}
	c.log.Info("new game started", zap.String("game_id", gameID), zap.Int("num_players", numPlayers))
	return gameID, nil
}
