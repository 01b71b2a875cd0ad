package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the orchestrator's environment-driven configuration. Defaults
// mirror the deployment this grew out of: rules authority on :8000, player
// endpoints on :8081 and up.
type Config struct {
	ListenAddr          string        `env:"LISTEN_ADDR" envDefault:":8080"`
	RiskAPIURL          string        `env:"RISK_API_URL" envDefault:"http://localhost:8000"`
	PlayerEndpoints     []string      `env:"PLAYER_ENDPOINTS" envSeparator:"," envDefault:"http://localhost:8081,http://localhost:8082"`
	StateTimeout        time.Duration `env:"STATE_TIMEOUT" envDefault:"5s"`
	TurnTimeout         time.Duration `env:"TURN_TIMEOUT" envDefault:"60s"`
	DispatchMaxAttempts int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"1"`
	MaxRounds           int           `env:"MAX_ROUNDS" envDefault:"500"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StateTimeout <= 0 || cfg.TurnTimeout <= 0 {
		return Config{}, fmt.Errorf("timeouts must be positive")
	}
	return cfg, nil
}
