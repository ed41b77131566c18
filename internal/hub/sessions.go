package hub

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/amplifyed/pulse/internal/metrics"
	"github.com/amplifyed/pulse/internal/ratelimit"
	"github.com/amplifyed/pulse/internal/session"
)

func invalid(req request, msg string) []Outbound {
	return []Outbound{toConn(req.Conn, EvValidationError, ValidationPayload{Event: req.Event, Message: msg})}
}

func sessionNotFound(req request, code string) []Outbound {
	return []Outbound{toConn(req.Conn, EvSessionNotFound, CodePayload{Code: code})}
}

// handleRegisterRole accepts either a bare role string or {"role": "..."}.
func handleRegisterRole(h *Hub, req request) []Outbound {
	var name string
	if err := json.Unmarshal(req.Data, &name); err != nil {
		var body struct {
			Role string `json:"role"`
		}
		if err := json.Unmarshal(req.Data, &body); err != nil {
			return invalid(req, "role must be a string")
		}
		name = body.Role
	}

	st, ok := h.conns[req.Conn]
	if !ok {
		st = &connState{}
		h.conns[req.Conn] = st
	}
	st.role = session.ParseRole(strings.TrimSpace(strings.ToLower(name)))
	h.logger.Debug("role registered", "conn", req.Conn, "role", st.role)
	return nil
}

func handleCreateSession(h *Hub, req request) []Outbound {
	out := h.leave(req.Conn)

	s, err := h.registry.Create(req.Conn)
	if err != nil {
		h.logger.Error("create session", "conn", req.Conn, "error", err)
		return append(out, invalid(req, "could not allocate a session code")...)
	}
	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Set(float64(h.registry.Count()))
	h.logger.Info("session created", "session", s.Code, "host", req.Conn)

	out = append(out, toConn(req.Conn, EvSessionCreated, CodePayload{Code: s.Code}))
	return append(out, h.pulseState(s.Code)...)
}

func handleJoinSession(h *Hub, req request) []Outbound {
	var body struct {
		Code string `json:"code"`
	}
	if err := decode(req.Data, &body); err != nil {
		return invalid(req, err.Error())
	}
	code := session.NormalizeCode(body.Code)
	if code == "" {
		return invalid(req, "code is required")
	}
	if _, ok := h.registry.Resolve(code); !ok {
		return sessionNotFound(req, code)
	}

	var out []Outbound
	if current, ok := h.registry.SessionOf(req.Conn); ok && current != code {
		out = h.leave(req.Conn)
	}

	s, name, err := h.registry.Join(code, req.Conn)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return append(out, sessionNotFound(req, code)...)
		}
		h.logger.Error("join session", "session", code, "conn", req.Conn, "error", err)
		return append(out, invalid(req, err.Error())...)
	}
	h.logger.Info("participant joined", "session", s.Code, "conn", req.Conn, "name", name)

	out = append(out,
		toConn(req.Conn, EvSessionJoined, CodePayload{Code: s.Code}),
		toConn(req.Conn, EvIdentity, IdentityPayload{AuthorName: name}),
		toConn(req.Conn, EvInitialState, h.ledger.List(s.Code)),
	)
	out = append(out, h.pulseState(s.Code)...)
	return append(out, toHost(s.Code, EvParticipantJoined, CountPayload{Count: h.registry.ParticipantCount(s.Code)}))
}

func handleLeaveSession(h *Hub, req request) []Outbound {
	return h.leave(req.Conn)
}

// handleReaction applies a reaction to the sender's scope. "pulse:update" is
// the session-bound form and requires a session; "reaction" falls back to
// the board when the sender has joined nothing.
func handleReaction(h *Hub, req request) []Outbound {
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := decode(req.Data, &body); err != nil {
		return invalid(req, err.Error())
	}
	value, err := parseNumber(body.Value)
	if err != nil {
		return invalid(req, err.Error())
	}

	scope, inSession := h.registry.SessionOf(req.Conn)
	if !inSession {
		if req.Event == EvPulseUpdate {
			return sessionNotFound(req, "")
		}
		scope = boardScope
	}

	if !h.limiter.Allow(req.Conn, ratelimit.Reaction, h.clock.Now()) {
		return []Outbound{toConn(req.Conn, EvReactionLimit, LimitPayload{Message: reactionLimitMessage})}
	}
	if err := h.pulse.Set(scope, req.Conn, value); err != nil {
		return invalid(req, err.Error())
	}
	return h.pulseState(scope)
}
