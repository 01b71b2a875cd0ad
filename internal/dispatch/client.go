package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/DoyleJ11/risk-orchestrator/internal/game"
	"github.com/DoyleJ11/risk-orchestrator/internal/metrics"
)

// Remote error messages are carried into TurnResult verbatim up to this
// bound.
const maxErrorDetailLen = 512

const transportFailureDetail = "transport failure contacting player endpoint"

// Pause between transport-failure retries so a refused endpoint is not
// re-dialed in a tight loop.
const retryDelay = 200 * time.Millisecond

type playTurnRequest struct {
	SeatIndex  int    `json:"seat_index"`
	PersonaTag string `json:"persona_tag"`
	GameID     string `json:"game_id"`
}

type playTurnResponse struct {
	Status       string   `json:"status"`
	ActionsTaken []string `json:"actions_taken"`
	ErrorDetail  string   `json:"error_detail"`
	Message      string   `json:"message"`
}

// Client delivers turn assignments to remote player endpoints. It holds no
// state between calls; every dispatch is an independent bounded-wait
// request/response. Retry is limited to transport failures and capped at
// maxAttempts; a timeout is never retried.
type Client struct {
	httpc       *http.Client
	maxAttempts int
	log         *zap.Logger
}

func NewClient(maxAttempts int, log *zap.Logger) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{
		httpc:       &http.Client{},
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// DispatchTurn sends the assignment to endpoint and waits for a single
// completion response, bounded by the assignment's turn timeout. It never
// returns an error: every outcome, including timeout and transport failure,
// is a classified TurnResult. A response arriving after the timeout is
// abandoned with the connection.
func (c *Client) DispatchTurn(ctx context.Context, endpoint string, a game.TurnAssignment) game.TurnResult {
	start := time.Now()
	res := game.TurnResult{SeatIndex: a.SeatIndex}

	ctx, cancel := context.WithTimeout(ctx, a.TurnTimeout)
	defer cancel()

	body, err := json.Marshal(playTurnRequest{
		SeatIndex:  a.SeatIndex,
		PersonaTag: a.PersonaTag,
		GameID:     a.GameID,
	})
	if err != nil {
		res.Status = game.TurnErrored
		res.ErrorDetail = transportFailureDetail
		return finish(res, start)
	}

	url := strings.TrimRight(endpoint, "/") + "/play-turn"
	for attempt := 1; ; attempt++ {
		out, remoteMsg, err := c.exchange(ctx, url, body)
		switch {
		case err == nil && remoteMsg != "":
			// Remote-reported failure: the endpoint answered with an
			// explicit error.
			res.Status = game.TurnErrored
			res.ErrorDetail = truncate(remoteMsg)
			return finish(res, start)

		case err == nil:
			if out.Status == "completed" {
				res.Status = game.TurnCompleted
				res.ActionsTaken = out.ActionsTaken
			} else {
				res.Status = game.TurnErrored
				res.ErrorDetail = truncate(firstNonEmpty(out.ErrorDetail, out.Message,
					fmt.Sprintf("player endpoint reported status %q", out.Status)))
			}
			return finish(res, start)

		case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			c.log.Warn("turn dispatch timed out",
				zap.Int("seat", a.SeatIndex),
				zap.Duration("timeout", a.TurnTimeout))
			res.Status = game.TurnTimedOut
			return finish(res, start)

		default:
			c.log.Warn("turn dispatch transport failure",
				zap.Int("seat", a.SeatIndex),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if attempt >= c.maxAttempts {
				res.Status = game.TurnErrored
				res.ErrorDetail = transportFailureDetail
				return finish(res, start)
			}
			select {
			case <-ctx.Done():
				// The turn window closed while waiting to retry.
				res.Status = game.TurnErrored
				res.ErrorDetail = transportFailureDetail
				return finish(res, start)
			case <-time.After(retryDelay):
			}
		}
	}
}

// exchange performs one request/response cycle. remoteMsg is set when the
// endpoint returned a non-2xx status with a readable message.
func (c *Client) exchange(ctx context.Context, url string, body []byte) (playTurnResponse, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return playTurnResponse{}, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return playTurnResponse{}, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetailLen))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("player endpoint returned %d", resp.StatusCode)
		}
		return playTurnResponse{}, msg, nil
	}

	var out playTurnResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// Malformed response counts as a transport failure.
		return playTurnResponse{}, "", fmt.Errorf("malformed player response: %w", err)
	}
	return out, "", nil
}

func finish(res game.TurnResult, start time.Time) game.TurnResult {
	elapsed := time.Since(start)
	res.DurationMS = elapsed.Milliseconds()
	metrics.DispatchSeconds.Observe(elapsed.Seconds())
	return res
}

// truncate caps s at maxErrorDetailLen bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxErrorDetailLen {
		return s
	}
	cut := maxErrorDetailLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
