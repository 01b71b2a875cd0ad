package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/DoyleJ11/risk-orchestrator/internal/game"
)

func assignment(timeout time.Duration) game.TurnAssignment {
	return game.TurnAssignment{
		SeatIndex:   2,
		PersonaTag:  "defensive",
		GameID:      "g-1",
		IssuedAt:    time.Now(),
		TurnTimeout: timeout,
	}
}

func TestDispatchTurnCompleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/play-turn" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["seat_index"].(float64) != 2 || req["persona_tag"] != "defensive" || req["game_id"] != "g-1" {
			t.Fatalf("bad payload: %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":        "completed",
			"actions_taken": []string{"reinforced Alaska with 3", "attacked Kamchatka"},
		})
	}))
	defer srv.Close()

	c := NewClient(1, zap.NewNop())
	res := c.DispatchTurn(context.Background(), srv.URL, assignment(2*time.Second))

	if res.Status != game.TurnCompleted {
		t.Fatalf("want completed, got %s (%s)", res.Status, res.ErrorDetail)
	}
	if len(res.ActionsTaken) != 2 {
		t.Fatalf("want 2 actions, got %v", res.ActionsTaken)
	}
	if res.SeatIndex != 2 {
		t.Fatalf("want seat 2, got %d", res.SeatIndex)
	}
}

func TestDispatchTurnRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       "error",
			"error_detail": "no valid reinforce actions",
		})
	}))
	defer srv.Close()

	res := NewClient(1, zap.NewNop()).DispatchTurn(context.Background(), srv.URL, assignment(2*time.Second))
	if res.Status != game.TurnErrored {
		t.Fatalf("want error, got %s", res.Status)
	}
	if res.ErrorDetail != "no valid reinforce actions" {
		t.Fatalf("want remote detail, got %q", res.ErrorDetail)
	}
	if len(res.ActionsTaken) != 0 {
		t.Fatalf("errored turn must not carry actions")
	}
}

func TestDispatchTurnErrorDetailTruncated(t *testing.T) {
	long := strings.Repeat("x", 4*maxErrorDetailLen)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "error_detail": long})
	}))
	defer srv.Close()

	res := NewClient(1, zap.NewNop()).DispatchTurn(context.Background(), srv.URL, assignment(2*time.Second))
	if len(res.ErrorDetail) != maxErrorDetailLen {
		t.Fatalf("want detail truncated to %d, got %d", maxErrorDetailLen, len(res.ErrorDetail))
	}
}

func TestDispatchTurnTruncationKeepsValidUTF8(t *testing.T) {
	// The leading ASCII byte puts every two-byte rune at an odd offset, so
	// the byte cap lands mid-rune and must back off to the rune start.
	long := "x" + strings.Repeat("территория", maxErrorDetailLen/4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "error_detail": long})
	}))
	defer srv.Close()

	res := NewClient(1, zap.NewNop()).DispatchTurn(context.Background(), srv.URL, assignment(2*time.Second))
	if len(res.ErrorDetail) > maxErrorDetailLen {
		t.Fatalf("want detail capped at %d bytes, got %d", maxErrorDetailLen, len(res.ErrorDetail))
	}
	if !utf8.ValidString(res.ErrorDetail) {
		t.Fatalf("truncated detail is not valid UTF-8: %q", res.ErrorDetail)
	}
}

func TestDispatchTurnNon200IsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := NewClient(1, zap.NewNop()).DispatchTurn(context.Background(), srv.URL, assignment(2*time.Second))
	if res.Status != game.TurnErrored {
		t.Fatalf("want error, got %s", res.Status)
	}
	if !strings.Contains(res.ErrorDetail, "agent exploded") {
		t.Fatalf("want remote message surfaced, got %q", res.ErrorDetail)
	}
}

func TestDispatchTurnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	start := time.Now()
	res := NewClient(1, zap.NewNop()).DispatchTurn(context.Background(), srv.URL, assignment(50*time.Millisecond))
	if res.Status != game.TurnTimedOut {
		t.Fatalf("want timed_out, got %s (%s)", res.Status, res.ErrorDetail)
	}
	if time.Since(start) > 300*time.Millisecond {
		t.Fatalf("dispatch did not respect the timeout bound")
	}
}

func TestDispatchTurnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	res := NewClient(1, zap.NewNop()).DispatchTurn(context.Background(), srv.URL, assignment(time.Second))
	if res.Status != game.TurnErrored {
		t.Fatalf("want error, got %s", res.Status)
	}
	if res.ErrorDetail != transportFailureDetail {
		t.Fatalf("want generic transport detail, got %q", res.ErrorDetail)
	}
}

func TestDispatchTurnMalformedResponseIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	res := NewClient(1, zap.NewNop()).DispatchTurn(context.Background(), srv.URL, assignment(time.Second))
	if res.Status != game.TurnErrored {
		t.Fatalf("want error, got %s", res.Status)
	}
	if res.ErrorDetail != transportFailureDetail {
		t.Fatalf("want generic transport detail, got %q", res.ErrorDetail)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestDispatchTurnRetriesTransportFailureOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "completed", "actions_taken": []string{"fortified"}})
	}))
	defer srv.Close()

	c := NewClient(2, zap.NewNop())
	attempts := 0
	base := http.DefaultTransport
	c.httpc.Transport = roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return base.RoundTrip(r)
	})

	start := time.Now()
	res := c.DispatchTurn(context.Background(), srv.URL, assignment(2*time.Second))
	if res.Status != game.TurnCompleted {
		t.Fatalf("want completed after retry, got %s (%s)", res.Status, res.ErrorDetail)
	}
	if attempts != 2 {
		t.Fatalf("want 2 attempts, got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed < retryDelay {
		t.Fatalf("retry fired after %v, want at least %v between attempts", elapsed, retryDelay)
	}
}

func TestDispatchTurnRetryStopsWhenTurnWindowCloses(t *testing.T) {
	c := NewClient(10, zap.NewNop())
	attempts := 0
	c.httpc.Transport = roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		attempts++
		return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	})

	start := time.Now()
	res := c.DispatchTurn(context.Background(), "http://localhost:1", assignment(50*time.Millisecond))
	if res.Status != game.TurnErrored {
		t.Fatalf("want error, got %s", res.Status)
	}
	if res.ErrorDetail != transportFailureDetail {
		t.Fatalf("want generic transport detail, got %q", res.ErrorDetail)
	}
	// The window expires during the first backoff; the remaining attempts
	// are abandoned.
	if attempts >= 10 {
		t.Fatalf("retries ignored the turn window, made %d attempts", attempts)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("dispatch did not give up when the turn window closed")
	}
}
