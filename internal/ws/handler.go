package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/risk-orchestrator/internal/feed"
)

// Handler attaches a websocket client to the event feed. The stream is
// server-to-client only; the read loop exists to notice the close.
func Handler(f *feed.Feed, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan feed.Event, 16)
		clientID := randID(6)

		f.Inbox() <- feed.Join{ClientID: clientID, Outbox: out}
		defer func() { f.Inbox() <- feed.Leave{ClientID: clientID} }()

		log.Info("feed client connected", zap.String("client_id", clientID))

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for event := range out {
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				log.Info("feed client disconnected", zap.String("client_id", clientID))
				return
			}
			// Inbound frames are ignored; the feed has no client commands.
		}
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
