package game

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfiguration = errors.New("invalid game configuration")

const (
	MinPlayers = 2
	MaxPlayers = 6
)

type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusAborted    SessionStatus = "aborted"
)

type TurnStatus string

const (
	TurnCompleted         TurnStatus = "completed"
	TurnTimedOut          TurnStatus = "timed_out"
	TurnErrored           TurnStatus = "error"
	TurnSkippedNotCurrent TurnStatus = "skipped_not_current"
	TurnSkippedEliminated TurnStatus = "skipped_eliminated"
)

type GameStatus string

const (
	GamePlaying   GameStatus = "playing"
	GameCompleted GameStatus = "completed"
)

// PlayerConfig binds one seat to a remote player endpoint for the lifetime
// of a session. Seat indices are 1-based and contiguous.
type PlayerConfig struct {
	SeatIndex   int    `json:"seat_index"`
	DisplayName string `json:"display_name"`
	PersonaTag  string `json:"persona_tag"`
	Endpoint    string `json:"endpoint"`
}

// Session is the single active game. It is owned by the session registry;
// everyone else works on copies.
type Session struct {
	GameID      string         `json:"game_id"`
	NumPlayers  int            `json:"num_players"`
	Players     []PlayerConfig `json:"players"`
	RoundNumber int            `json:"round_number"`
	Status      SessionStatus  `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Clone returns a copy that shares no mutable state with the receiver.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Players = append([]PlayerConfig(nil), s.Players...)
	return &out
}

// TurnAssignment is the request handed to a remote player for one turn.
// Immutable once sent.
type TurnAssignment struct {
	SeatIndex   int           `json:"seat_index"`
	PersonaTag  string        `json:"persona_tag"`
	GameID      string        `json:"game_id"`
	IssuedAt    time.Time     `json:"-"`
	TurnTimeout time.Duration `json:"-"`
}

// TurnResult records the outcome of one seat in one round. Append-only once
// it lands in a round ledger. ActionsTaken is populated only for completed
// turns.
type TurnResult struct {
	SeatIndex    int        `json:"seat_index"`
	Status       TurnStatus `json:"status"`
	ActionsTaken []string   `json:"actions_taken,omitempty"`
	ErrorDetail  string     `json:"error_detail,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
}

// RoundSummary is the aggregate output of one round. Results preserve seat
// order; a skipped seat is a result, not an absence.
type RoundSummary struct {
	RoundNumber      int          `json:"round_number"`
	Results          []TurnResult `json:"results"`
	PlayersProcessed int          `json:"players_processed"`
	GameStatusAfter  GameStatus   `json:"game_status_after"`
	Success          bool         `json:"success"`
	AbortReason      string       `json:"abort_reason,omitempty"`
}

var defaultPersonas = [MaxPlayers]string{
	"aggressive", "defensive", "balanced", "opportunistic", "cautious", "random",
}

// DefaultPersona returns the built-in persona tag for a 1-based seat.
func DefaultPersona(seat int) string {
	if seat < 1 || seat > MaxPlayers {
		return "balanced"
	}
	return defaultPersonas[seat-1]
}

// BuildSeats validates a start-game request and produces the seat
// assignments. personas may be empty (defaults apply) or exactly one tag per
// seat. endpoints must cover at least numPlayers seats; seat i is served by
// endpoints[i-1].
func BuildSeats(numPlayers int, personas, endpoints []string) ([]PlayerConfig, error) {
	if numPlayers < MinPlayers || numPlayers > MaxPlayers {
		return nil, fmt.Errorf("%w: num_players must be between %d and %d, got %d",
			ErrInvalidConfiguration, MinPlayers, MaxPlayers, numPlayers)
	}
	if len(personas) != 0 && len(personas) != numPlayers {
		return nil, fmt.Errorf("%w: got %d personas for %d players",
			ErrInvalidConfiguration, len(personas), numPlayers)
	}
	if len(endpoints) < numPlayers {
		return nil, fmt.Errorf("%w: %d player endpoints configured, need %d",
			ErrInvalidConfiguration, len(endpoints), numPlayers)
	}

	seats := make([]PlayerConfig, 0, numPlayers)
	for i := 1; i <= numPlayers; i++ {
		persona := DefaultPersona(i)
		if len(personas) != 0 {
			persona = personas[i-1]
		}
		seats = append(seats, PlayerConfig{
			SeatIndex:   i,
			DisplayName: fmt.Sprintf("Player %d", i),
			PersonaTag:  persona,
			Endpoint:    endpoints[i-1],
		})
	}
	return seats, nil
}

// NewSession assembles a session around seats already validated by
// BuildSeats.
func NewSession(gameID string, seats []PlayerConfig) *Session {
	return &Session{
		GameID:     gameID,
		NumPlayers: len(seats),
		Players:    seats,
		Status:     StatusNotStarted,
		CreatedAt:  time.Now().UTC(),
	}
}
