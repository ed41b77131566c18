package hub

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/amplifyed/pulse/internal/pulse"
	"github.com/amplifyed/pulse/internal/session"
)

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("hub stopped")

// inbound is the command interface for the hub's actor loop.
type inbound interface{ isInbound() }

type baseInbound struct{}

func (baseInbound) isInbound() {}

type connectCmd struct {
	baseInbound
	conn session.ConnID
}

type messageCmd struct {
	baseInbound
	conn  session.ConnID
	event string
	data  json.RawMessage
}

type disconnectCmd struct {
	baseInbound
	conn session.ConnID
}

type queryCmd struct {
	baseInbound
	run  func(h *Hub)
	done chan struct{}
}

// Run owns the hub state until ctx is cancelled. It must be called once. Every inbound command is
// handled to completion before the next one is read, and its outbound events
// are delivered through t in the order the handler produced them.
func (h *Hub) Run(ctx context.Context, t Transport) error {
	defer close(h.stopped)

	h.logger.Info("hub started")
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub stopped", "sessions", h.registry.Count(), "clients", len(h.conns))
			return nil
		case cmd := <-h.inbox:
			var out []Outbound
			switch c := cmd.(type) {
			case connectCmd:
				out = h.OnConnect(c.conn)
			case messageCmd:
				out = h.Dispatch(c.conn, c.event, c.data)
			case disconnectCmd:
				out = h.OnDisconnect(c.conn)
			case queryCmd:
				c.run(h)
				close(c.done)
			}
			h.deliver(t, out)
		}
	}
}

func (h *Hub) deliver(t Transport, out []Outbound) {
	for _, o := range out {
		conns := h.Recipients(o.Target)
		if len(conns) == 0 {
			continue
		}
		t.Deliver(conns, o.Event, o.Payload)
	}
}

func (h *Hub) enqueue(ctx context.Context, cmd inbound) error {
	select {
	case <-h.stopped:
		return ErrStopped
	default:
	}

	select {
	case h.inbox <- cmd:
		return nil
	case <-h.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connected registers conn and queues the board snapshot for it.
func (h *Hub) Connected(ctx context.Context, conn session.ConnID) error {
	return h.enqueue(ctx, connectCmd{conn: conn})
}

// Received queues one client event. Calls from the same connection are
// handled in the order they were made.
func (h *Hub) Received(ctx context.Context, conn session.ConnID, event string, data json.RawMessage) error {
	return h.enqueue(ctx, messageCmd{conn: conn, event: event, data: data})
}

// Disconnected queues the cleanup for a closed connection.
func (h *Hub) Disconnected(ctx context.Context, conn session.ConnID) error {
	return h.enqueue(ctx, disconnectCmd{conn: conn})
}

// query runs fn on the actor goroutine and waits for it to finish.
func (h *Hub) query(ctx context.Context, fn func(h *Hub)) error {
	done := make(chan struct{})
	if err := h.enqueue(ctx, queryCmd{run: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-h.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SessionInfo is the read-only view of a session served over HTTP.
type SessionInfo struct {
	Code         string         `json:"code"`
	Participants int            `json:"participants"`
	Posts        int            `json:"posts"`
	Pulse        pulse.Snapshot `json:"pulse"`
}

// BoardInfo is the read-only view of the board served over HTTP.
type BoardInfo struct {
	Questions []QuestionSummary `json:"questions"`
	Pulse     pulse.Snapshot    `json:"pulse"`
}

type QuestionSummary struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Score    int    `json:"score"`
	Answered bool   `json:"answered"`
	Replies  int    `json:"replies"`
}

// Stats summarizes hub load for health checks.
type Stats struct {
	Sessions int `json:"sessions"`
	Clients  int `json:"clients"`
}

// SessionInfo looks a session up by code. The boolean is false when no such
// session is open.
func (h *Hub) SessionInfo(ctx context.Context, code string) (SessionInfo, bool, error) {
	var (
		info  SessionInfo
		found bool
	)
	err := h.query(ctx, func(h *Hub) {
		s, ok := h.registry.Resolve(code)
		if !ok {
			return
		}
		found = true
		info = SessionInfo{
			Code:         s.Code,
			Participants: len(s.Participants),
			Posts:        h.ledger.Len(s.Code),
			Pulse:        h.pulse.Snapshot(s.Code),
		}
	})
	return info, found, err
}

func (h *Hub) BoardInfo(ctx context.Context) (BoardInfo, error) {
	var info BoardInfo
	err := h.query(ctx, func(h *Hub) {
		threads := h.ledger.Threads(boardScope)
		info.Questions = make([]QuestionSummary, 0, len(threads))
		for _, t := range threads {
			info.Questions = append(info.Questions, QuestionSummary{
				ID:       t.ID,
				Text:     t.Text,
				Score:    t.Score,
				Answered: t.Answered,
				Replies:  len(t.Replies),
			})
		}
		info.Pulse = h.pulse.Snapshot(boardScope)
	})
	return info, err
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := h.query(ctx, func(h *Hub) {
		st = Stats{Sessions: h.registry.Count(), Clients: len(h.conns)}
	})
	return st, err
}

// SessionOf reports the session conn currently belongs to.
func (h *Hub) SessionOf(ctx context.Context, conn session.ConnID) (string, bool, error) {
	var (
		code string
		ok   bool
	)
	err := h.query(ctx, func(h *Hub) {
		code, ok = h.registry.SessionOf(conn)
	})
	return code, ok, err
}
