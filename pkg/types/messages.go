// Package types holds the caller-facing wire messages of the orchestrator
// API.
package types

import "github.com/DoyleJ11/risk-orchestrator/internal/game"

type StartGameRequest struct {
	NumPlayers int      `json:"num_players"`
	Personas   []string `json:"personas,omitempty"`
}

type StartGameResponse struct {
	GameID  string              `json:"game_id"`
	Players []game.PlayerConfig `json:"players"`
	Status  game.SessionStatus  `json:"status"`
}

type StatusResponse struct {
	Session   *game.Session      `json:"session"`
	LastRound *game.RoundSummary `json:"last_round,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
