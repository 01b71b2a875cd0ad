// Package feed broadcasts orchestration lifecycle events to connected
// observers. It is a read-only side channel: nothing in the turn protocol
// depends on a subscriber seeing an event.
package feed

import (
	"context"
	"time"
)

type EventType string

const (
	EventGameStarted   EventType = "GameStarted"
	EventGameAborted   EventType = "GameAborted"
	EventTurnStarted   EventType = "TurnStarted"
	EventTurnFinished  EventType = "TurnFinished"
	EventRoundFinished EventType = "RoundFinished"
)

type Event struct {
	Type   EventType `json:"type"`
	GameID string    `json:"game_id,omitempty"`
	Round  int       `json:"round,omitempty"`
	Seat   int       `json:"seat,omitempty"`
	Status string    `json:"status,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

type Msg interface{ isFeedMsg() }

type Join struct {
	ClientID string
	Outbox   chan Event
}

func (Join) isFeedMsg() {}

type Leave struct{ ClientID string }

func (Leave) isFeedMsg() {}

type publish struct{ event Event }

func (publish) isFeedMsg() {}

type Shutdown struct{}

func (Shutdown) isFeedMsg() {}

type Feed struct {
	inbox   chan Msg
	clients map[string]chan Event
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewFeed(parent context.Context) *Feed {
	ctx, cancel := context.WithCancel(parent)
	f := &Feed{
		inbox:   make(chan Msg, 64),
		clients: make(map[string]chan Event),
		ctx:     ctx,
		cancel:  cancel,
	}
	go f.loop()
	return f
}

func (f *Feed) Inbox() chan<- Msg { return f.inbox }

// Publish queues an event for broadcast. Safe on a nil feed so components
// can treat the feed as optional.
func (f *Feed) Publish(e Event) {
	if f == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	select {
	case f.inbox <- publish{event: e}:
	case <-f.ctx.Done():
	}
}

func (f *Feed) loop() {
	for {
		select {
		case <-f.ctx.Done():
			f.shutdown()
			return

		case m := <-f.inbox:
			switch msg := m.(type) {
			case Join:
				f.clients[msg.ClientID] = msg.Outbox

			case Leave:
				// Close the outbox so the client's writer loop exits; the
				// channel may already be gone if broadcast dropped the client.
				if ch, ok := f.clients[msg.ClientID]; ok {
					close(ch)
					delete(f.clients, msg.ClientID)
				}

			case publish:
				f.broadcast(msg.event)

			case Shutdown:
				f.shutdown()
				return
			}
		}
	}
}

func (f *Feed) broadcast(e Event) {
	for id, ch := range f.clients {
		select {
		case ch <- e:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(f.clients, id)
		}
	}
}

func (f *Feed) shutdown() {
	for id, ch := range f.clients {
		close(ch)
		delete(f.clients, id)
	}
	f.cancel()
}
