// Package session holds the process-wide record of the active game. A single
// goroutine owns the session; everything else talks to it through messages
// and receives copies, so there is exactly one writer by construction.
package session

import (
	"context"
	"errors"

	"github.com/DoyleJ11/risk-orchestrator/internal/game"
)

var (
	ErrNoSession  = errors.New("no active game session")
	ErrGameActive = errors.New("a game is already active")
)

type msg interface{ isRegistryMsg() }

type createMsg struct {
	sess  *game.Session
	reply chan error
}

func (createMsg) isRegistryMsg() {}

type currentMsg struct {
	reply chan currentReply
}

func (currentMsg) isRegistryMsg() {}

type currentReply struct {
	sess    *game.Session
	summary *game.RoundSummary
}

type recordMsg struct {
	summary game.RoundSummary
	reply   chan error
}

func (recordMsg) isRegistryMsg() {}

type endMsg struct {
	status game.SessionStatus
	reply  chan error
}

func (endMsg) isRegistryMsg() {}

type Registry struct {
	inbox  chan msg
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRegistry(parent context.Context) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:  make(chan msg, 16),
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) loop() {
	var sess *game.Session
	var last *game.RoundSummary

	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case createMsg:
				if sess != nil && (sess.Status == game.StatusNotStarted || sess.Status == game.StatusInProgress) {
					msg.reply <- ErrGameActive
					break
				}
				sess = msg.sess.Clone()
				last = nil
				msg.reply <- nil

			case currentMsg:
				var lastCopy *game.RoundSummary
				if last != nil {
					c := *last
					lastCopy = &c
				}
				msg.reply <- currentReply{sess: sess.Clone(), summary: lastCopy}

			case recordMsg:
				if sess == nil {
					msg.reply <- ErrNoSession
					break
				}
				sess.RoundNumber = msg.summary.RoundNumber
				if msg.summary.GameStatusAfter == game.GameCompleted {
					sess.Status = game.StatusCompleted
				} else {
					sess.Status = game.StatusInProgress
				}
				s := msg.summary
				last = &s
				msg.reply <- nil

			case endMsg:
				if sess == nil {
					msg.reply <- ErrNoSession
					break
				}
				sess.Status = msg.status
				msg.reply <- nil
			}
		}
	}
}

// Create installs a new session. Fails with ErrGameActive while a prior
// session is still live; completed and aborted sessions are replaced.
func (r *Registry) Create(s *game.Session) error {
	reply := make(chan error, 1)
	r.inbox <- createMsg{sess: s, reply: reply}
	return <-reply
}

// Current returns a copy of the active session and the last round summary.
// ok is false when no session exists.
func (r *Registry) Current() (*game.Session, *game.RoundSummary, bool) {
	reply := make(chan currentReply, 1)
	r.inbox <- currentMsg{reply: reply}
	out := <-reply
	return out.sess, out.summary, out.sess != nil
}

// RecordRound applies a round's outcome: round counter, status transition,
// last-summary slot.
func (r *Registry) RecordRound(summary game.RoundSummary) error {
	reply := make(chan error, 1)
	r.inbox <- recordMsg{summary: summary, reply: reply}
	return <-reply
}

// End moves the active session to a terminal status, freeing the slot for
// the next Create.
func (r *Registry) End(status game.SessionStatus) error {
	reply := make(chan error, 1)
	r.inbox <- endMsg{status: status, reply: reply}
	return <-reply
}

func (r *Registry) Close() { r.cancel() }
